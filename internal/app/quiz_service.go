package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	"discord-quiz-bot/internal/domain"
	"github.com/google/uuid"
)

// DefaultPassThreshold is the number of correct answers needed to pass. It is
// independent of the bank size: a bank smaller than the threshold cannot be passed.
const DefaultPassThreshold = 3

// noticeTimeout bounds the last-chance edit that tells a member their quiz broke.
const noticeTimeout = 5 * time.Second

// QuizPolicy holds the timing and scoring rules of a session.
type QuizPolicy struct {
	AnswerTimeout time.Duration
	IntroDelay    time.Duration
	Cooldown      time.Duration
	PassThreshold int
}

// QuizDeps are the collaborators of the quiz use cases.
type QuizDeps struct {
	Bank     BankRepository
	Settings *GuildSettings
	Gate     *Gate
	Clicks   *Dispatcher
	Roles    RolePolicy
	Granter  RoleGranter
	Feed     *Feed
	Logger   *slog.Logger
}

// QuizService admits members to the quiz and drives each session turn by turn.
type QuizService struct {
	bank     BankRepository
	settings *GuildSettings
	gate     *Gate
	clicks   *Dispatcher
	roles    RolePolicy
	granter  RoleGranter
	feed     *Feed
	logger   *slog.Logger
	policy   QuizPolicy
	after    func(time.Duration) <-chan time.Time

	mu  sync.Mutex
	rnd *rand.Rand
	wg  sync.WaitGroup
}

// QuizOption customizes a QuizService.
type QuizOption func(*QuizService)

// WithRand seeds question and answer shuffles; a fixed seed makes sessions reproducible.
func WithRand(r *rand.Rand) QuizOption {
	return func(s *QuizService) { s.rnd = r }
}

// WithTimer replaces time.After for intro delays and answer deadlines.
func WithTimer(after func(time.Duration) <-chan time.Time) QuizOption {
	return func(s *QuizService) { s.after = after }
}

func NewQuizService(deps QuizDeps, policy QuizPolicy, opts ...QuizOption) *QuizService {
	if policy.PassThreshold <= 0 {
		policy.PassThreshold = DefaultPassThreshold
	}
	if policy.AnswerTimeout <= 0 {
		policy.AnswerTimeout = 60 * time.Second
	}
	if policy.Cooldown <= 0 {
		policy.Cooldown = 10 * time.Minute
	}
	s := &QuizService{
		bank:     deps.Bank,
		settings: deps.Settings,
		gate:     deps.Gate,
		clicks:   deps.Clicks,
		roles:    deps.Roles,
		granter:  deps.Granter,
		feed:     deps.Feed,
		logger:   deps.Logger,
		policy:   policy,
		after:    time.After,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the effective rules.
func (s *QuizService) Policy() QuizPolicy {
	return s.policy
}

// Admit runs the eligibility gate and prepares a freshly shuffled session.
// Denials are returned as *domain.IneligibleError.
func (s *QuizService) Admit(ctx context.Context, m domain.Member) (*Session, error) {
	if err := s.gate.Check(ctx, m); err != nil {
		var inel *domain.IneligibleError
		if errors.As(err, &inel) {
			s.logger.Info("quiz denied", "guild", m.GuildID, "user", m.UserID, "reason", inel.Reason)
			s.feed.Publish(domain.QuizEvent{
				Type:    domain.EventDenied,
				GuildID: m.GuildID,
				UserID:  m.UserID,
				Reason:  string(inel.Reason),
			})
		}
		return nil, err
	}

	bank, err := s.bank.GetBank(ctx)
	if err != nil {
		return nil, fmt.Errorf("load question bank: %w", err)
	}
	if len(bank) == 0 {
		return nil, domain.ErrBankEmpty
	}

	s.mu.Lock()
	seed := s.rnd.Int63()
	s.mu.Unlock()
	rnd := rand.New(rand.NewSource(seed))

	items := make([]domain.QuizItem, len(bank))
	copy(items, bank)
	rnd.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })

	return newSession(uuid.NewString(), m, items, rnd), nil
}

// Launch runs a session in its own goroutine. Errors and panics are logged and
// end only that session.
func (s *QuizService) Launch(ctx context.Context, sess *Session, anchor Anchor) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("quiz session panicked", "session", sess.ID, "panic", r, "stack", string(debug.Stack()))
				sess.finish(StateAbandoned, domain.OutcomeAbandoned)
				s.notifyFailure(anchor, s.logger.With("session", sess.ID))
			}
		}()
		if _, err := s.Run(ctx, sess, anchor); err != nil {
			s.logger.Error("quiz session failed", "session", sess.ID, "guild", sess.GuildID, "user", sess.Participant, "error", err)
		}
	}()
}

// Wait blocks until every launched session has returned.
func (s *QuizService) Wait() {
	s.wg.Wait()
}

// Run drives a session to a terminal outcome. A vanished anchor or a cancelled
// context ends the session as abandoned without an error.
func (s *QuizService) Run(ctx context.Context, sess *Session, anchor Anchor) (domain.Outcome, error) {
	clicks, release := s.clicks.Register(sess.ID, sess.Participant)
	defer release()

	log := s.logger.With("session", sess.ID, "guild", sess.GuildID, "user", sess.Participant)
	total := sess.Total()
	log.Info("quiz started", "items", total)
	s.publish(sess, domain.QuizEvent{Type: domain.EventStarted, Total: total})

	if s.policy.IntroDelay > 0 {
		select {
		case <-s.after(s.policy.IntroDelay):
		case <-ctx.Done():
			return s.abandon(sess, release, anchor, log, ctx.Err())
		}
	}

	for {
		item, answers, turn, ok := sess.nextTurn()
		if !ok {
			break
		}
		if err := anchor.Edit(ctx, questionMessage(sess.ID, turn, item, answers)); err != nil {
			return s.abandon(sess, release, anchor, log, err)
		}

		click, err := s.await(ctx, clicks, turn, len(answers))
		if errors.Is(err, domain.ErrAnswerTimeout) {
			return s.timeout(ctx, sess, release, anchor, log)
		}
		if err != nil {
			return s.abandon(sess, release, anchor, log, err)
		}

		correct := sess.score(answers[click.Choice])
		log.Debug("answer scored", "turn", turn, "correct", correct)
		s.publish(sess, domain.QuizEvent{Type: domain.EventAnswered, Turn: turn, Correct: correct, Total: total})
	}

	return s.complete(ctx, sess, release, anchor, log)
}

// await blocks until the participant answers the current turn. Clicks on a
// previous turn's buttons are dropped without resetting the deadline.
func (s *QuizService) await(ctx context.Context, clicks <-chan Click, turn, choices int) (Click, error) {
	deadline := s.after(s.policy.AnswerTimeout)
	for {
		select {
		case c := <-clicks:
			if c.Turn != turn || c.Choice < 0 || c.Choice >= choices {
				continue
			}
			return c, nil
		case <-deadline:
			return Click{}, domain.ErrAnswerTimeout
		case <-ctx.Done():
			return Click{}, ctx.Err()
		}
	}
}

func (s *QuizService) timeout(ctx context.Context, sess *Session, release func(), anchor Anchor, log *slog.Logger) (domain.Outcome, error) {
	sess.finish(StateTimedOut, domain.OutcomeTimedOut)
	release()
	snap := sess.Snapshot()
	log.Info("quiz timed out", "turn", snap.Index)
	s.publish(sess, domain.QuizEvent{Type: domain.EventTimedOut, Turn: snap.Index, Score: snap.Correct, Total: snap.Total, Outcome: domain.OutcomeTimedOut})

	err := anchor.Edit(ctx, timeoutMessage(s.policy.Cooldown))
	if err != nil && !errors.Is(err, domain.ErrMessageUnreachable) {
		return domain.OutcomeTimedOut, fmt.Errorf("edit anchor: %w", err)
	}
	return domain.OutcomeTimedOut, nil
}

// abandon ends a session early. Unexpected causes leave a failure notice on
// the anchor so the member is not stuck on a live-looking question.
func (s *QuizService) abandon(sess *Session, release func(), anchor Anchor, log *slog.Logger, cause error) (domain.Outcome, error) {
	sess.finish(StateAbandoned, domain.OutcomeAbandoned)
	release()
	s.publish(sess, domain.QuizEvent{Type: domain.EventAbandoned, Outcome: domain.OutcomeAbandoned})

	if errors.Is(cause, domain.ErrMessageUnreachable) || errors.Is(cause, context.Canceled) {
		log.Info("quiz abandoned", "cause", cause)
		return domain.OutcomeAbandoned, nil
	}
	s.notifyFailure(anchor, log)
	return domain.OutcomeAbandoned, fmt.Errorf("quiz session: %w", cause)
}

// notifyFailure makes one best-effort edit with the failure notice. It runs on
// a fresh context because the session's own context may already be done.
func (s *QuizService) notifyFailure(anchor Anchor, log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("failure notice panicked", "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), noticeTimeout)
	defer cancel()
	if err := anchor.Edit(ctx, FailureMessage()); err != nil && !errors.Is(err, domain.ErrMessageUnreachable) {
		log.Warn("failure notice not delivered", "error", err)
	}
}

func (s *QuizService) complete(ctx context.Context, sess *Session, release func(), anchor Anchor, log *slog.Logger) (domain.Outcome, error) {
	snap := sess.Snapshot()
	outcome := domain.OutcomeFail
	if snap.Correct >= s.policy.PassThreshold {
		outcome = domain.OutcomePass
	}
	sess.finish(StateCompleted, outcome)
	release()

	cfg, err := s.settings.Get(ctx, sess.GuildID)
	if err != nil {
		_ = anchor.Edit(ctx, FailureMessage())
		return outcome, fmt.Errorf("load outcome embed: %w", err)
	}

	var errs []error
	kind := domain.EmbedFail
	if outcome == domain.OutcomePass {
		kind = domain.EmbedPass
		if _, role := s.roles.RolesFor(sess.GuildID); role != "" {
			if err := s.granter.GrantRole(ctx, sess.GuildID, sess.Participant, role); err != nil {
				errs = append(errs, fmt.Errorf("grant role %s: %w", role, err))
			}
		}
		if err := s.settings.MarkQuizzed(ctx, sess.GuildID, sess.Participant); err != nil {
			errs = append(errs, err)
		}
	}

	msg := outcomeMessage(outcome, snap.Correct, snap.Total, cfg.Embed(kind))
	if err := anchor.Edit(ctx, msg); err != nil && !errors.Is(err, domain.ErrMessageUnreachable) {
		errs = append(errs, fmt.Errorf("edit anchor: %w", err))
	}

	log.Info("quiz completed", "outcome", outcome, "correct", snap.Correct, "total", snap.Total)
	s.publish(sess, domain.QuizEvent{Type: domain.EventCompleted, Score: snap.Correct, Total: snap.Total, Outcome: outcome})
	return outcome, errors.Join(errs...)
}

func (s *QuizService) publish(sess *Session, ev domain.QuizEvent) {
	ev.GuildID = sess.GuildID
	ev.UserID = sess.Participant
	ev.SessionID = sess.ID
	s.feed.Publish(ev)
}

// SessionState is the position of a session in the quiz state machine.
type SessionState string

const (
	StateInitializing   SessionState = "initializing"
	StateAwaitingAnswer SessionState = "awaiting_answer"
	StateScoring        SessionState = "scoring"
	StateCompleted      SessionState = "completed"
	StateTimedOut       SessionState = "timed_out"
	StateAbandoned      SessionState = "abandoned"
)

// Session is one member's run through the quiz. It is driven by a single
// goroutine; the mutex only guards reads from observers.
type Session struct {
	ID          string
	GuildID     string
	Participant string

	rnd *rand.Rand

	mu        sync.RWMutex
	items     []domain.QuizItem
	state     SessionState
	index     int
	correct   int
	incorrect int
	outcome   domain.Outcome
}

// SessionSnapshot is a consistent copy of a session's counters.
type SessionSnapshot struct {
	State     SessionState
	Index     int
	Correct   int
	Incorrect int
	Total     int
	Outcome   domain.Outcome
}

func newSession(id string, m domain.Member, items []domain.QuizItem, rnd *rand.Rand) *Session {
	return &Session{
		ID:          id,
		GuildID:     m.GuildID,
		Participant: m.UserID,
		rnd:         rnd,
		items:       items,
		state:       StateInitializing,
	}
}

// Items returns the session's question order.
func (s *Session) Items() []domain.QuizItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.QuizItem, len(s.items))
	copy(out, s.items)
	return out
}

// Total is the number of questions in the session.
func (s *Session) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionSnapshot{
		State:     s.state,
		Index:     s.index,
		Correct:   s.correct,
		Incorrect: s.incorrect,
		Total:     len(s.items),
		Outcome:   s.outcome,
	}
}

// nextTurn shuffles the answers of the current item and moves to AwaitingAnswer.
func (s *Session) nextTurn() (domain.QuizItem, []string, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.items) {
		return domain.QuizItem{}, nil, 0, false
	}
	item := s.items[s.index]
	answers := item.Answers()
	s.rnd.Shuffle(len(answers), func(i, j int) { answers[i], answers[j] = answers[j], answers[i] })
	s.state = StateAwaitingAnswer
	return item, answers, s.index, true
}

// score compares the clicked label with the current item and advances.
func (s *Session) score(label string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateScoring
	correct := label == s.items[s.index].Correct
	if correct {
		s.correct++
	} else {
		s.incorrect++
	}
	s.index++
	return correct
}

func (s *Session) finish(state SessionState, outcome domain.Outcome) {
	s.mu.Lock()
	s.state = state
	s.outcome = outcome
	s.mu.Unlock()
}
