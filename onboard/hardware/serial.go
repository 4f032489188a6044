package hardware

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goburrow/serial"
	"github.com/pkg/errors"
)

const (
	SERIAL_RX_BUFFER = 256
	SERIAL_TIMEOUT   = 50 * time.Millisecond
)

var (
	ErrNoData = errors.New("no byte available")
	ErrClosed = errors.New("serial transport closed")
)

// SerialTransport turns a blocking serial port into the polled byte source the
// line interpreter expects. A background reader moves bytes into a bounded
// channel; the control loop only ever drains what is already there.
type SerialTransport struct {
	port io.ReadWriteCloser
	lock sync.Mutex // writes may come from the control loop and the shell
	rx   chan byte

	done    chan struct{}
	stopped chan struct{}
	once    sync.Once

	// err is only read after rx is closed
	err      error
	dead     atomic.Bool
	reported atomic.Bool
}

// OpenSerial opens the device at address as 8N1 at the given baud rate.
func OpenSerial(address string, baud int) (*SerialTransport, error) {
	port, err := serial.Open(&serial.Config{
		Address:  address,
		BaudRate: baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  SERIAL_TIMEOUT,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open serial port %s", address)
	}

	return NewSerialTransport(port), nil
}

func NewSerialTransport(port io.ReadWriteCloser) *SerialTransport {
	t := &SerialTransport{
		port:    port,
		rx:      make(chan byte, SERIAL_RX_BUFFER),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go t.listen()

	return t
}

func (t *SerialTransport) listen() {
	defer close(t.stopped)

	buf := make([]byte, 64)
	for {
		n, err := t.port.Read(buf)
		for _, b := range buf[:n] {
			select {
			case t.rx <- b:
			case <-t.done:
				return
			}
		}

		if err == nil || err == serial.ErrTimeout {
			continue
		}

		select {
		case <-t.done:
			err = ErrClosed
		default:
		}

		// err is published before close so readers see it once rx drains
		t.err = err
		close(t.rx)
		t.dead.Store(true)
		return
	}
}

// ByteAvailable reports buffered bytes, and stays true after the port has
// gone away until ReadByte has returned the terminal error once.
func (t *SerialTransport) ByteAvailable() bool {
	return len(t.rx) > 0 || (t.dead.Load() && !t.reported.Load())
}

// ReadByte never blocks. It returns ErrNoData when nothing is buffered and the
// reader's terminal error once the port has gone away.
func (t *SerialTransport) ReadByte() (byte, error) {
	select {
	case b, ok := <-t.rx:
		if !ok {
			t.reported.Store(true)
			return 0, t.err
		}
		return b, nil
	default:
		return 0, ErrNoData
	}
}

func (t *SerialTransport) WriteLine(text string) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	_, err := io.WriteString(t.port, text+"\r\n")
	return err
}

// Close stops the background reader, even when it is waiting on a full
// buffer, and closes the port.
func (t *SerialTransport) Close() error {
	t.once.Do(func() { close(t.done) })
	return t.port.Close()
}
