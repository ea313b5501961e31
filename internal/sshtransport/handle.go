package sshtransport

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// readBufferSize matches the chunk size the relay reads from the shell.
const readBufferSize = 32 * 1024

// EventKind tags an Event.
type EventKind int

const (
	EventData EventKind = iota
	EventClosed
	EventErrored
)

func (k EventKind) String() string {
	switch k {
	case EventData:
		return "data"
	case EventClosed:
		return "closed"
	case EventErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Event is one occurrence on a shell. Data carries Data; Closed may carry
// ErrRemoteClosed in Err when the remote side ended the shell; Errored
// always carries Err.
type Event struct {
	Kind EventKind
	Data []byte
	Err  error
}

// Terminal reports whether e ends the event stream.
func (e Event) Terminal() bool {
	return e.Kind != EventData
}

// Handle is one live PTY shell. It is safe for concurrent use.
type Handle struct {
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	opts    Options

	events          chan Event
	closeReq        chan struct{}
	quit            chan struct{}
	done            chan struct{}
	keepaliveFailed chan error

	closeOnce sync.Once
	closeErr  error
	writeMu   sync.Mutex
	readers   sync.WaitGroup
}

func newHandle(client *ssh.Client, session *ssh.Session, stdin io.WriteCloser, opts Options) *Handle {
	return &Handle{
		client:          client,
		session:         session,
		stdin:           stdin,
		opts:            opts,
		events:          make(chan Event, 64),
		closeReq:        make(chan struct{}),
		quit:            make(chan struct{}),
		done:            make(chan struct{}),
		keepaliveFailed: make(chan error, 1),
	}
}

func (h *Handle) start(stdout, stderr io.Reader) {
	h.readers.Add(2)
	go h.relay(stdout)
	go h.relay(stderr)
	go h.keepalive()
	go h.supervise()
}

// Events returns the event stream. It yields Data events, then exactly one
// terminal event, then is closed.
func (h *Handle) Events() <-chan Event {
	return h.events
}

// Done is closed once the terminal event has been queued and all
// goroutines owned by the handle have exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Write sends p to the shell's stdin. Writing to a closed handle is a no-op.
func (h *Handle) Write(p []byte) error {
	if h.closed() {
		return nil
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if _, err := h.stdin.Write(p); err != nil {
		if h.closed() || isClosedErr(err) {
			return nil
		}
		return fmt.Errorf("write stdin: %w", err)
	}
	return nil
}

// Resize changes the PTY window. Resizing a closed handle is a no-op.
func (h *Handle) Resize(cols, rows int) error {
	if h.closed() {
		return nil
	}
	if err := h.session.WindowChange(rows, cols); err != nil {
		if h.closed() || isClosedErr(err) {
			return nil
		}
		return fmt.Errorf("window change: %w", err)
	}
	return nil
}

// Close tears the shell and its connection down. It is idempotent; the
// resulting Closed event is emitted once regardless of how many times
// Close is called.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		close(h.closeReq)
		if err := h.client.Close(); err != nil && !isClosedErr(err) {
			h.closeErr = err
		}
	})
	return h.closeErr
}

func (h *Handle) closed() bool {
	select {
	case <-h.closeReq:
		return true
	case <-h.quit:
		return true
	default:
		return false
	}
}

// discard closes h and drains its events in the background. Used for
// handles nobody is going to consume.
func (h *Handle) discard() {
	h.Close()
	go h.drain()
}

func (h *Handle) drain() {
	for range h.events {
	}
}

func (h *Handle) relay(r io.Reader) {
	defer h.readers.Done()
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			h.events <- Event{Kind: EventData, Data: data}
		}
		if err != nil {
			return
		}
	}
}

// supervise waits for the first reason the shell ends, tears everything
// down, and emits the single terminal event after the last Data event.
func (h *Handle) supervise() {
	sessionDone := make(chan error, 1)
	go func() { sessionDone <- h.session.Wait() }()
	connDone := make(chan error, 1)
	go func() { connDone <- h.client.Wait() }()

	var term Event
	select {
	case <-h.closeReq:
		term = Event{Kind: EventClosed}
	case err := <-h.keepaliveFailed:
		term = Event{Kind: EventErrored, Err: fmt.Errorf("%w: keepalive: %v", ErrNetwork, err)}
	case err := <-connDone:
		if err == nil || errors.Is(err, io.EOF) {
			term = Event{Kind: EventClosed, Err: ErrRemoteClosed}
		} else {
			term = Event{Kind: EventErrored, Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
		}
	case <-sessionDone:
		term = Event{Kind: EventClosed, Err: ErrRemoteClosed}
	}
	// A local Close racing a remote failure is still a local close.
	select {
	case <-h.closeReq:
		term = Event{Kind: EventClosed}
	default:
	}

	close(h.quit)
	h.session.Close()
	h.client.Close()
	h.readers.Wait()

	if term.Kind == EventErrored {
		log.Printf("[ssh] session to %s ended with error: %v", h.client.RemoteAddr(), term.Err)
	}
	h.events <- term
	close(h.events)
	close(h.done)
}

// keepalive probes the server every KeepaliveInterval and reports a dead
// path after KeepaliveMaxMissed consecutive failures. A negative interval
// disables it.
func (h *Handle) keepalive() {
	if h.opts.KeepaliveInterval < 0 {
		return
	}
	ticker := time.NewTicker(h.opts.KeepaliveInterval)
	defer ticker.Stop()

	missed := 0
	for {
		select {
		case <-h.quit:
			return
		case <-ticker.C:
			err := h.probe(h.opts.KeepaliveInterval)
			if err == nil {
				missed = 0
				continue
			}
			missed++
			log.Printf("[ssh] keepalive to %s failed (%d/%d): %v", h.client.RemoteAddr(), missed, h.opts.KeepaliveMaxMissed, err)
			if missed >= h.opts.KeepaliveMaxMissed {
				select {
				case h.keepaliveFailed <- err:
				default:
				}
				return
			}
		}
	}
}

var errKeepaliveTimeout = errors.New("no reply to keepalive")

func (h *Handle) probe(timeout time.Duration) error {
	res := make(chan error, 1)
	go func() {
		_, _, err := h.client.SendRequest("keepalive@openssh.com", true, nil)
		res <- err
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-res:
		return err
	case <-timer.C:
		return errKeepaliveTimeout
	case <-h.quit:
		return nil
	}
}
