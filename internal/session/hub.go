package session

import "sync"

// hub fans session snapshots out to watchers. Subscriptions are keyed by
// session id, not by connection, so a desktop that reconnects simply
// subscribes again and receives the current snapshot.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[chan *Session]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[chan *Session]struct{})}
}

func (h *hub) subscribe(id string) chan *Session {
	ch := make(chan *Session, 16)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[id] == nil {
		h.subs[id] = make(map[chan *Session]struct{})
	}
	h.subs[id][ch] = struct{}{}
	return ch
}

func (h *hub) unsubscribe(id string, ch chan *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.subs[id]; ok {
		if _, ok := set[ch]; ok {
			delete(set, ch)
			close(ch)
		}
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
}

// publish delivers the snapshot to every watcher of the session. A slow
// watcher loses its oldest buffered snapshot rather than blocking the
// writer; only the latest value matters to subscribers.
func (h *hub) publish(record *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[record.ID] {
		snapshot := record.Clone()
		for {
			select {
			case ch <- snapshot:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}
