package sshsession

import (
	"errors"
	"log"

	"github.com/sbjang123456/electron-ssh/internal/sshtransport"
)

// bridge forwards one session's transport events to the sink until the
// transport's event stream ends. It is the only reader of the stream.
func (m *Manager) bridge(s *Session) {
	defer close(s.bridgeDone)
	for ev := range s.transport.Events() {
		if !ev.Terminal() {
			s.bytesOut.Add(int64(len(ev.Data)))
			s.deliverData(m.sink, ev.Data)
			continue
		}
		m.finish(s, ev)
	}
}

// finish handles the transport's terminal event. If an explicit Disconnect
// already removed the session it has delivered Closed and nothing is done.
func (m *Manager) finish(s *Session, ev sshtransport.Event) {
	if _, ok := m.registry.Remove(s.ID); !ok {
		return
	}

	n := Notification{Kind: NotifyClosed, SessionID: s.ID}
	to, reason, eventType := StateClosed, "transport closed", EventDisconnected
	if errors.Is(ev.Err, sshtransport.ErrRemoteClosed) {
		reason, eventType = "remote closed", EventRemoteClosed
	}
	if ev.Kind == sshtransport.EventErrored {
		msg := "transport error"
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		n = Notification{Kind: NotifyErrored, SessionID: s.ID, Message: msg}
		to, reason, eventType = StateFailed, msg, EventErrored
	}

	s.terminate(m.sink, to, reason, n)
	m.events.log(s.ConnectionID, s.ID, eventType, reason)
	m.saveRecording(s)
	log.Printf("[session-mgr] session %s ended: %s (active=%d)", s.ID, reason, m.registry.Len())
}
