package journal

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/asdine/storm/v3"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/CodedInternet/gofoc/onboard"
)

func openTestDb(t *testing.T) *storm.DB {
	db, err := storm.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func flush(j *Journal) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	j.Run(ctx)
}

func TestJournal(t *testing.T) {
	Convey("Given an empty journal", t, func() {
		j, err := New(openTestDb(t), onboard.GearRatio(6))
		So(err, ShouldBeNil)

		Convey("recent is empty, not an error", func() {
			entries, err := j.Recent(10)
			So(err, ShouldBeNil)
			So(entries, ShouldBeEmpty)
		})

		Convey("recorded changes come back newest first", func() {
			j.Record(onboard.Change{Source: onboard.SourceSerial, Previous: 0, Value: 1})
			j.Record(onboard.Change{Source: onboard.SourceRemote, Previous: 1, Value: math.Pi})
			j.Record(onboard.Change{Source: onboard.SourceShell, Previous: math.Pi, Value: 2})
			flush(j)

			entries, err := j.Recent(2)
			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, 2)
			So(entries[0].Source, ShouldEqual, "shell")
			So(entries[1].Source, ShouldEqual, "remote")
			So(entries[1].Previous, ShouldEqual, 1)
			So(entries[1].OutDeg, ShouldAlmostEqual, 30, 1e-9)
			So(entries[0].ID, ShouldBeGreaterThan, entries[1].ID)
		})

		Convey("a full queue drops instead of blocking", func() {
			for i := 0; i < QUEUE_SIZE+5; i++ {
				j.Record(onboard.Change{Source: onboard.SourceHTTP, Value: float64(i)})
			}
			So(j.Dropped(), ShouldEqual, uint64(5))

			flush(j)
			entries, err := j.Recent(QUEUE_SIZE * 2)
			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, QUEUE_SIZE)
		})

		Convey("it follows a setpoint", func() {
			sp := new(onboard.Setpoint)
			sp.Subscribe(j.Record)
			So(sp.Commit(onboard.SourceSerial, 0.5), ShouldBeNil)
			So(sp.Commit(onboard.SourceSerial, math.Inf(1)), ShouldNotBeNil)
			flush(j)

			entries, _ := j.Recent(10)
			So(entries, ShouldHaveLength, 1)
			So(entries[0].Value, ShouldEqual, 0.5)
		})
	})
}
