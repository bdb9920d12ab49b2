package session

// EventKind classifies a stream event.
type EventKind int

const (
	EventToken EventKind = iota
	EventDone
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventToken:
		return "token"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Event is one notification from a reply stream, tagged with the session key
// and turn that produced it.
type Event struct {
	Key   string
	Turn  uint64
	Kind  EventKind
	Token string
	Err   error
}

// Stream is the receiving end of one assistant reply.
type Stream struct {
	key    string
	turn   uint64
	tokens <-chan string
	errs   <-chan error
	ended  bool
}

// Next blocks until the next event. After a Done or Error event every further
// call returns Done.
func (st *Stream) Next() Event {
	ev := Event{Key: st.key, Turn: st.turn}
	if st.ended {
		ev.Kind = EventDone
		return ev
	}

	if tok, ok := <-st.tokens; ok {
		ev.Kind = EventToken
		ev.Token = tok
		return ev
	}

	st.ended = true
	if err, ok := <-st.errs; ok && err != nil {
		ev.Kind = EventError
		ev.Err = err
		return ev
	}
	ev.Kind = EventDone
	return ev
}

// Drain pumps the stream into s until the reply ends, calling onEvent after
// each applied event. It is a convenience for callers that own the session on
// the current goroutine, like the one-shot CLI.
func (st *Stream) Drain(s *Session, onEvent func(Event)) {
	for {
		ev := st.Next()
		applied := s.Apply(ev)
		if applied && onEvent != nil {
			onEvent(ev)
		}
		if ev.Kind != EventToken || !applied {
			return
		}
	}
}
