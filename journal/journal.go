// Package journal keeps a persistent record of setpoint changes.
package journal

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/CodedInternet/gofoc/onboard"
)

const QUEUE_SIZE = 64

type Entry struct {
	ID       int       `storm:"id,increment" json:"id"`
	Source   string    `storm:"index" json:"source"`
	Previous float64   `json:"previous_rad"`
	Value    float64   `json:"value_rad"`
	OutDeg   float64   `json:"out_deg"`
	At       time.Time `storm:"index" json:"at"`
}

// Journal queues committed changes and writes them from its own goroutine so
// committing never waits on the disk.
type Journal struct {
	db      *storm.DB
	gear    onboard.GearRatio
	queue   chan Entry
	dropped atomic.Uint64
}

func New(db *storm.DB, gear onboard.GearRatio) (*Journal, error) {
	if err := db.Init(&Entry{}); err != nil {
		return nil, errors.Wrap(err, "unable to init journal bucket")
	}

	return &Journal{
		db:    db,
		gear:  gear,
		queue: make(chan Entry, QUEUE_SIZE),
	}, nil
}

// Record queues change for writing. It never blocks; when the queue is full
// the entry is counted as dropped.
func (j *Journal) Record(change onboard.Change) {
	e := Entry{
		Source:   string(change.Source),
		Previous: change.Previous,
		Value:    change.Value,
		OutDeg:   j.gear.OutputDeg(change.Value),
		At:       time.Now(),
	}

	select {
	case j.queue <- e:
	default:
		n := j.dropped.Add(1)
		log.Warn().Uint64("dropped", n).Str("source", e.Source).Msg("journal queue full")
	}
}

// Run writes queued entries until ctx is done, then drains what is left.
func (j *Journal) Run(ctx context.Context) error {
	for {
		select {
		case e := <-j.queue:
			j.save(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-j.queue:
					j.save(e)
				default:
					return nil
				}
			}
		}
	}
}

func (j *Journal) save(e Entry) {
	if err := j.db.Save(&e); err != nil {
		log.Error().Err(err).Str("source", e.Source).Msg("unable to save journal entry")
	}
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(n int) (entries []Entry, err error) {
	err = j.db.Select().OrderBy("ID").Reverse().Limit(n).Find(&entries)
	if err == storm.ErrNotFound {
		return []Entry{}, nil
	}
	return entries, err
}

func (j *Journal) Dropped() uint64 {
	return j.dropped.Load()
}
