package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"discord-quiz-bot/internal/domain"
	"discord-quiz-bot/internal/infra/memory"
	"discord-quiz-bot/internal/logging"
)

type staticRoles struct {
	required []string
	pass     string
}

func (r staticRoles) RolesFor(string) ([]string, string) { return r.required, r.pass }

type grant struct {
	guildID, userID, roleID string
}

type fakeGranter struct {
	mu     sync.Mutex
	grants []grant
	err    error
}

func (g *fakeGranter) GrantRole(_ context.Context, guildID, userID, roleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.grants = append(g.grants, grant{guildID, userID, roleID})
	return g.err
}

func (g *fakeGranter) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.grants)
}

// recordingAnchor captures every edit and can be told to fail, always or
// once. A panicking edit is not recorded.
type recordingAnchor struct {
	mu        sync.Mutex
	msgs      []domain.Message
	err       error
	failOnce  error
	panicOnce bool
	edits     chan domain.Message
}

func newAnchor() *recordingAnchor {
	return &recordingAnchor{edits: make(chan domain.Message, 64)}
}

func (a *recordingAnchor) Edit(_ context.Context, msg domain.Message) error {
	a.mu.Lock()
	if a.panicOnce {
		a.panicOnce = false
		a.mu.Unlock()
		panic("anchor exploded")
	}
	a.msgs = append(a.msgs, msg)
	err := a.err
	if a.failOnce != nil {
		err, a.failOnce = a.failOnce, nil
	}
	a.mu.Unlock()
	a.edits <- msg
	return err
}

func (a *recordingAnchor) next(t *testing.T) domain.Message {
	t.Helper()
	select {
	case msg := <-a.edits:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for anchor edit")
		return domain.Message{}
	}
}

// manualTimer hands out deadline channels that fire only when the test says so.
type manualTimer struct {
	created chan chan time.Time
}

func newManualTimer() *manualTimer {
	return &manualTimer{created: make(chan chan time.Time, 64)}
}

func (m *manualTimer) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	m.created <- ch
	return ch
}

// nextDeadline returns the next deadline the engine asked for, in order.
func (m *manualTimer) nextDeadline(t *testing.T) chan time.Time {
	t.Helper()
	select {
	case ch := <-m.created:
		return ch
	case <-time.After(2 * time.Second):
		t.Fatalf("no deadline requested")
		return nil
	}
}

// countingStore counts guild loads so tests can tell whether an outcome embed was fetched.
type countingStore struct {
	*memory.GuildStore
	loads atomic.Int32
}

func (s *countingStore) Load(ctx context.Context, guildID string) (domain.GuildConfig, bool, error) {
	s.loads.Add(1)
	return s.GuildStore.Load(ctx, guildID)
}

type harness struct {
	svc      *QuizService
	clicks   *Dispatcher
	store    *countingStore
	settings *GuildSettings
	granter  *fakeGranter
	feed     *Feed
	timer    *manualTimer
}

func newHarness(t *testing.T, bank []domain.QuizItem, roles staticRoles, opts ...QuizOption) *harness {
	t.Helper()
	logger := logging.Discard()
	store := &countingStore{GuildStore: memory.NewGuildStore()}
	settings := NewGuildSettings(store, logger)
	h := &harness{
		clicks:   NewDispatcher(),
		store:    store,
		settings: settings,
		granter:  &fakeGranter{},
		feed:     NewFeed(),
		timer:    newManualTimer(),
	}
	gate := NewGate(memory.NewCooldown(600*time.Second), roles, settings, false, logger)
	opts = append([]QuizOption{WithTimer(h.timer.After)}, opts...)
	h.svc = NewQuizService(QuizDeps{
		Bank:     memory.NewStaticBankLoader(bank),
		Settings: settings,
		Gate:     gate,
		Clicks:   h.clicks,
		Roles:    roles,
		Granter:  h.granter,
		Feed:     h.feed,
		Logger:   logger,
	}, QuizPolicy{AnswerTimeout: time.Minute, Cooldown: 10 * time.Minute}, opts...)
	return h
}

type runResult struct {
	outcome domain.Outcome
	err     error
}

func (h *harness) start(t *testing.T, m domain.Member, anchor Anchor) (*Session, <-chan runResult) {
	t.Helper()
	sess, err := h.svc.Admit(context.Background(), m)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	done := make(chan runResult, 1)
	go func() {
		outcome, err := h.svc.Run(context.Background(), sess, anchor)
		done <- runResult{outcome, err}
	}()
	return sess, done
}

// click presses the button at index on behalf of userID.
func (h *harness) click(t *testing.T, msg domain.Message, index int, userID string) DispatchResult {
	t.Helper()
	ev, err := domain.ParseCustomID(msg.Buttons[index].CustomID)
	if err != nil {
		t.Fatalf("parse custom id: %v", err)
	}
	return h.clicks.Dispatch(Click{SessionID: ev.Target, UserID: userID, Turn: ev.Turn, Choice: ev.Choice})
}

func wait(t *testing.T, done <-chan runResult) runResult {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not finish")
		return runResult{}
	}
}

// rightAnswer and wrongAnswer pick buttons from banks whose correct labels start with "right".
func rightAnswer(msg domain.Message) int {
	for i, b := range msg.Buttons {
		if strings.HasPrefix(b.Label, "right") {
			return i
		}
	}
	return -1
}

func wrongAnswer(msg domain.Message) int {
	for i, b := range msg.Buttons {
		if !strings.HasPrefix(b.Label, "right") {
			return i
		}
	}
	return -1
}

func threeItemBank() []domain.QuizItem {
	return []domain.QuizItem{
		{Question: "Q1", Correct: "right-1", Incorrect: []string{"wrong-1a", "wrong-1b"}},
		{Question: "Q2", Correct: "right-2", Incorrect: []string{"wrong-2a", "wrong-2b", "wrong-2c"}},
		{Question: "Q3", Correct: "right-3", Incorrect: []string{"wrong-3a"}},
	}
}

func fiveItemBank() []domain.QuizItem {
	bank := make([]domain.QuizItem, 0, 5)
	for i := 1; i <= 5; i++ {
		bank = append(bank, domain.QuizItem{
			Question:  fmt.Sprintf("Q%d", i),
			Correct:   fmt.Sprintf("right-%d", i),
			Incorrect: []string{fmt.Sprintf("wrong-%da", i), fmt.Sprintf("wrong-%db", i)},
		})
	}
	return bank
}

func member(userID string, roles ...string) domain.Member {
	return domain.Member{UserID: userID, GuildID: "g1", Roles: roles}
}
