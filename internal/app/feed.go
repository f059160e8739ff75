package app

import (
	"sync"
	"time"

	"discord-quiz-bot/internal/domain"
)

// Feed fans quiz activity out to subscribers (the websocket feed, tests).
type Feed struct {
	now         func() time.Time
	mu          sync.RWMutex
	subscribers map[chan domain.QuizEvent]struct{}
}

func NewFeed() *Feed {
	return &Feed{
		now:         time.Now,
		subscribers: make(map[chan domain.QuizEvent]struct{}),
	}
}

// Subscribe returns a channel of events. The caller must invoke the returned
// cancel function to avoid leaks.
func (f *Feed) Subscribe() (<-chan domain.QuizEvent, func()) {
	ch := make(chan domain.QuizEvent, 16)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish stamps and broadcasts an event. A nil Feed drops events.
func (f *Feed) Publish(ev domain.QuizEvent) {
	if f == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = f.now()
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.subscribers {
		select {
		case ch <- ev:
		default:
			// slow reader: drop its oldest pending event
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
