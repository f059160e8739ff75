package app

import "sync"

// Click is an answer button press routed to a running session.
type Click struct {
	SessionID string
	UserID    string
	Turn      int
	Choice    int
}

// DispatchResult tells the transport what happened to a click.
type DispatchResult int

const (
	// Delivered means the owning session received the click.
	Delivered DispatchResult = iota
	// NotParticipant means the click came from someone other than the session owner.
	NotParticipant
	// Expired means no session with that ID is waiting anymore.
	Expired
	// Busy means the session already has unread clicks queued.
	Busy
)

func (r DispatchResult) String() string {
	switch r {
	case Delivered:
		return "delivered"
	case NotParticipant:
		return "not_participant"
	case Expired:
		return "expired"
	default:
		return "busy"
	}
}

const clickBuffer = 4

type waiter struct {
	participant string
	ch          chan Click
}

// Dispatcher routes answer clicks to the session that owns them. Clicks from
// other users are refused before they reach the session.
type Dispatcher struct {
	mu      sync.Mutex
	waiters map[string]waiter
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{waiters: make(map[string]waiter)}
}

// Register opens a click queue for a session. The caller must invoke the
// returned release function when the session ends.
func (d *Dispatcher) Register(sessionID, participant string) (<-chan Click, func()) {
	ch := make(chan Click, clickBuffer)
	d.mu.Lock()
	d.waiters[sessionID] = waiter{participant: participant, ch: ch}
	d.mu.Unlock()

	release := func() {
		d.mu.Lock()
		if w, ok := d.waiters[sessionID]; ok && w.ch == ch {
			delete(d.waiters, sessionID)
		}
		d.mu.Unlock()
	}
	return ch, release
}

// Dispatch hands a click to its session without blocking.
func (d *Dispatcher) Dispatch(c Click) DispatchResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	w, ok := d.waiters[c.SessionID]
	if !ok {
		return Expired
	}
	if w.participant != c.UserID {
		return NotParticipant
	}
	select {
	case w.ch <- c:
		return Delivered
	default:
		return Busy
	}
}

// Active reports the number of sessions waiting for clicks.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.waiters)
}
