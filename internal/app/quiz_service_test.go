package app

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"discord-quiz-bot/internal/domain"
)

var verifiedRoles = staticRoles{required: []string{"r-verified"}, pass: "r-member"}

func TestQuizPassGrantsRole(t *testing.T) {
	h := newHarness(t, threeItemBank(), verifiedRoles)
	ctx := context.Background()
	if err := h.settings.SetEmbed(ctx, "g1", domain.EmbedPass, domain.Embed{Title: "Welcome aboard", Description: "Enjoy"}); err != nil {
		t.Fatalf("set embed: %v", err)
	}
	events, cancel := h.feed.Subscribe()
	defer cancel()

	anchor := newAnchor()
	_, done := h.start(t, member("u1", "r-verified"), anchor)

	for turn := 0; turn < 3; turn++ {
		msg := anchor.next(t)
		if msg.Embed == nil || msg.Embed.Title != "Quiz in Process" {
			t.Fatalf("turn %d: expected question embed, got %+v", turn, msg.Embed)
		}
		if res := h.click(t, msg, rightAnswer(msg), "u1"); res != Delivered {
			t.Fatalf("turn %d: click %s", turn, res)
		}
	}

	res := wait(t, done)
	if res.err != nil || res.outcome != domain.OutcomePass {
		t.Fatalf("expected pass, got %s err=%v", res.outcome, res.err)
	}
	final := anchor.next(t)
	if final.Content != "Great job! You got 3 out of 3 correct!" {
		t.Fatalf("unexpected final content %q", final.Content)
	}
	if final.Embed == nil || final.Embed.Title != "Welcome aboard" {
		t.Fatalf("expected pass embed, got %+v", final.Embed)
	}
	if len(final.Buttons) != 0 {
		t.Fatalf("expected buttons cleared, got %d", len(final.Buttons))
	}

	if h.granter.count() != 1 || h.granter.grants[0].roleID != "r-member" {
		t.Fatalf("expected pass role granted, got %+v", h.granter.grants)
	}
	cfg, _ := h.settings.Get(ctx, "g1")
	if !cfg.HasQuizzed("u1") {
		t.Fatalf("expected member recorded as passed")
	}
	if h.clicks.Active() != 0 {
		t.Fatalf("expected session released")
	}

	var types []domain.EventType
	for len(types) < 5 {
		select {
		case ev := <-events:
			types = append(types, ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("missing feed events, got %v", types)
		}
	}
	if types[0] != domain.EventStarted || types[4] != domain.EventCompleted {
		t.Fatalf("unexpected event order %v", types)
	}
}

func TestQuizFailShowsFailEmbed(t *testing.T) {
	h := newHarness(t, threeItemBank(), verifiedRoles)
	anchor := newAnchor()
	sess, done := h.start(t, member("u1", "r-verified"), anchor)

	for turn := 0; turn < 3; turn++ {
		msg := anchor.next(t)
		pick := rightAnswer(msg)
		if turn == 2 {
			pick = wrongAnswer(msg)
		}
		h.click(t, msg, pick, "u1")
	}

	res := wait(t, done)
	if res.err != nil || res.outcome != domain.OutcomeFail {
		t.Fatalf("expected fail, got %s err=%v", res.outcome, res.err)
	}
	final := anchor.next(t)
	if final.Content != "So close, but you only got 2 out of 3 correct." {
		t.Fatalf("unexpected final content %q", final.Content)
	}
	if final.Embed == nil || final.Embed.Title != domain.DefaultEmbed().Title {
		t.Fatalf("expected default fail embed, got %+v", final.Embed)
	}
	if h.granter.count() != 0 {
		t.Fatalf("expected no role granted")
	}
	snap := sess.Snapshot()
	if snap.Correct != 2 || snap.Incorrect != 1 || snap.State != StateCompleted {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	cfg, _ := h.settings.Get(context.Background(), "g1")
	if cfg.HasQuizzed("u1") {
		t.Fatalf("failed member must not be recorded")
	}
}

func TestQuizTimeoutStopsAcceptingClicks(t *testing.T) {
	h := newHarness(t, threeItemBank(), verifiedRoles)
	anchor := newAnchor()
	sess, done := h.start(t, member("u1", "r-verified"), anchor)

	first := anchor.next(t)
	h.timer.nextDeadline(t)
	h.click(t, first, rightAnswer(first), "u1")

	second := anchor.next(t)
	h.timer.nextDeadline(t) <- time.Now()

	res := wait(t, done)
	if res.err != nil || res.outcome != domain.OutcomeTimedOut {
		t.Fatalf("expected timeout, got %s err=%v", res.outcome, res.err)
	}
	final := anchor.next(t)
	if !strings.Contains(final.Content, "ran out of time") || !strings.Contains(final.Content, "10 minutes") {
		t.Fatalf("unexpected timeout text %q", final.Content)
	}
	if got := h.click(t, second, rightAnswer(second), "u1"); got != Expired {
		t.Fatalf("expected click after timeout to expire, got %s", got)
	}
	snap := sess.Snapshot()
	if snap.State != StateTimedOut || snap.Correct != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if h.granter.count() != 0 {
		t.Fatalf("expected no role on timeout")
	}
}

func TestQuizIgnoresOtherUsersAndStaleTurns(t *testing.T) {
	h := newHarness(t, threeItemBank(), verifiedRoles)
	anchor := newAnchor()
	sess, done := h.start(t, member("u1", "r-verified"), anchor)

	first := anchor.next(t)
	if got := h.click(t, first, rightAnswer(first), "intruder"); got != NotParticipant {
		t.Fatalf("expected other user refused, got %s", got)
	}
	h.click(t, first, rightAnswer(first), "u1")

	second := anchor.next(t)
	// A second press on the previous question must not advance the session.
	h.click(t, first, wrongAnswer(first), "u1")
	time.Sleep(50 * time.Millisecond)
	if snap := sess.Snapshot(); snap.Index != 1 || snap.Incorrect != 0 {
		t.Fatalf("stale click was scored: %+v", snap)
	}

	h.click(t, second, rightAnswer(second), "u1")
	third := anchor.next(t)
	h.click(t, third, rightAnswer(third), "u1")

	if res := wait(t, done); res.outcome != domain.OutcomePass {
		t.Fatalf("expected pass, got %s err=%v", res.outcome, res.err)
	}
}

func TestQuizBankSmallerThanThresholdCannotPass(t *testing.T) {
	bank := threeItemBank()[:2]
	h := newHarness(t, bank, staticRoles{pass: "r-member"})
	anchor := newAnchor()
	_, done := h.start(t, member("u1"), anchor)

	for turn := 0; turn < 2; turn++ {
		msg := anchor.next(t)
		h.click(t, msg, rightAnswer(msg), "u1")
	}
	res := wait(t, done)
	if res.outcome != domain.OutcomeFail {
		t.Fatalf("expected fail with all answers right on a short bank, got %s", res.outcome)
	}
	if final := anchor.next(t); final.Content != "So close, but you only got 2 out of 2 correct." {
		t.Fatalf("unexpected final content %q", final.Content)
	}
}

func TestQuizAnchorGoneAbandons(t *testing.T) {
	h := newHarness(t, threeItemBank(), staticRoles{})
	anchor := newAnchor()
	anchor.err = domain.ErrMessageUnreachable

	_, done := h.start(t, member("u1"), anchor)
	res := wait(t, done)
	if res.err != nil || res.outcome != domain.OutcomeAbandoned {
		t.Fatalf("expected quiet abandon, got %s err=%v", res.outcome, res.err)
	}
	if h.clicks.Active() != 0 {
		t.Fatalf("expected dispatcher released")
	}
}

func TestQuizContextCancelAbandons(t *testing.T) {
	h := newHarness(t, threeItemBank(), staticRoles{})
	anchor := newAnchor()
	sess, err := h.svc.Admit(context.Background(), member("u1"))
	if err != nil {
		t.Fatalf("admit: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan runResult, 1)
	go func() {
		outcome, err := h.svc.Run(ctx, sess, anchor)
		done <- runResult{outcome, err}
	}()
	anchor.next(t)
	cancel()

	res := wait(t, done)
	if res.err != nil || res.outcome != domain.OutcomeAbandoned {
		t.Fatalf("expected abandon on shutdown, got %s err=%v", res.outcome, res.err)
	}
}

func TestQuizSeededShuffleIsReproducible(t *testing.T) {
	bank := []domain.QuizItem{
		{Question: "A", Correct: "a", Incorrect: []string{"a1", "a2", "a3"}},
		{Question: "B", Correct: "b", Incorrect: []string{"b1", "b2", "b3"}},
		{Question: "C", Correct: "c", Incorrect: []string{"c1", "c2", "c3"}},
		{Question: "D", Correct: "d", Incorrect: []string{"d1", "d2", "d3"}},
		{Question: "E", Correct: "e", Incorrect: []string{"e1", "e2", "e3"}},
	}
	// play records the question order and every turn's button labels.
	play := func() []string {
		h := newHarness(t, bank, staticRoles{}, WithRand(rand.New(rand.NewSource(42))))
		anchor := newAnchor()
		sess, done := h.start(t, member("u1"), anchor)

		var out []string
		for _, item := range sess.Items() {
			out = append(out, item.Question)
		}
		for turn := 0; turn < len(bank); turn++ {
			msg := anchor.next(t)
			labels := make([]string, len(msg.Buttons))
			for i, b := range msg.Buttons {
				labels[i] = b.Label
			}
			out = append(out, strings.Join(labels, "|"))
			h.click(t, msg, 0, "u1")
		}
		wait(t, done)
		return out
	}

	first, second := play(), play()
	if len(first) != 2*len(bank) {
		t.Fatalf("expected every item asked once, got %v", first)
	}
	if strings.Join(first, ",") != strings.Join(second, ",") {
		t.Fatalf("expected same questions and answer orders for same seed:\n%v\n%v", first, second)
	}
	seen := map[string]bool{}
	for _, q := range first[:len(bank)] {
		seen[q] = true
	}
	if len(seen) != len(bank) {
		t.Fatalf("expected a permutation of the bank, got %v", first[:len(bank)])
	}
}

func TestQuizFiveItemOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		right   int
		outcome domain.Outcome
		grants  int
		content string
	}{
		{name: "all correct", right: 5, outcome: domain.OutcomePass, grants: 1, content: "Great job! You got 5 out of 5 correct!"},
		{name: "three of five", right: 3, outcome: domain.OutcomePass, grants: 1, content: "Great job! You got 3 out of 5 correct!"},
		{name: "two of five", right: 2, outcome: domain.OutcomeFail, grants: 0, content: "So close, but you only got 2 out of 5 correct."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, fiveItemBank(), verifiedRoles)
			anchor := newAnchor()
			sess, done := h.start(t, member("u1", "r-verified"), anchor)

			for turn := 0; turn < 5; turn++ {
				msg := anchor.next(t)
				snap := sess.Snapshot()
				if snap.Index != turn || snap.Correct+snap.Incorrect != snap.Index {
					t.Fatalf("turn %d: counters out of step %+v", turn, snap)
				}
				pick := wrongAnswer(msg)
				if turn < tc.right {
					pick = rightAnswer(msg)
				}
				if res := h.click(t, msg, pick, "u1"); res != Delivered {
					t.Fatalf("turn %d: click %s", turn, res)
				}
			}

			res := wait(t, done)
			if res.err != nil || res.outcome != tc.outcome {
				t.Fatalf("expected %s, got %s err=%v", tc.outcome, res.outcome, res.err)
			}
			if final := anchor.next(t); final.Content != tc.content {
				t.Fatalf("unexpected final content %q", final.Content)
			}
			snap := sess.Snapshot()
			if snap.Index != 5 || snap.Correct != tc.right || snap.Correct+snap.Incorrect != snap.Total {
				t.Fatalf("unexpected final snapshot %+v", snap)
			}
			if got := h.granter.count(); got != tc.grants {
				t.Fatalf("expected %d role grants, got %d", tc.grants, got)
			}
		})
	}
}

func TestQuizTimeoutOnSecondOfFiveFetchesNoEmbed(t *testing.T) {
	h := newHarness(t, fiveItemBank(), verifiedRoles)
	anchor := newAnchor()
	sess, done := h.start(t, member("u1", "r-verified"), anchor)

	first := anchor.next(t)
	h.timer.nextDeadline(t)
	h.click(t, first, rightAnswer(first), "u1")

	anchor.next(t)
	loads := h.store.loads.Load()
	h.timer.nextDeadline(t) <- time.Now()

	res := wait(t, done)
	if res.err != nil || res.outcome != domain.OutcomeTimedOut {
		t.Fatalf("expected timeout, got %s err=%v", res.outcome, res.err)
	}
	final := anchor.next(t)
	if final.Embed != nil || len(final.Buttons) != 0 {
		t.Fatalf("expected bare timeout notice, got %+v", final)
	}
	if got := h.store.loads.Load(); got != loads {
		t.Fatalf("expected no guild config read after timeout, loads %d -> %d", loads, got)
	}
	if snap := sess.Snapshot(); snap.Index != 1 || snap.State != StateTimedOut {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if h.granter.count() != 0 {
		t.Fatalf("expected no role on timeout")
	}
}

func TestQuizAnchorErrorLeavesFailureNotice(t *testing.T) {
	h := newHarness(t, threeItemBank(), staticRoles{})
	anchor := newAnchor()
	anchor.failOnce = errors.New("discord 503 service unavailable")

	_, done := h.start(t, member("u1"), anchor)
	res := wait(t, done)
	if res.err == nil || res.outcome != domain.OutcomeAbandoned {
		t.Fatalf("expected abandon with error, got %s err=%v", res.outcome, res.err)
	}
	if first := anchor.next(t); first.Embed == nil || first.Embed.Title != "Quiz in Process" {
		t.Fatalf("expected the failed question edit first, got %+v", first)
	}
	if notice := anchor.next(t); notice.Content != FailureMessage().Content || len(notice.Buttons) != 0 {
		t.Fatalf("expected failure notice, got %+v", notice)
	}
}

func TestLaunchPanicLeavesFailureNotice(t *testing.T) {
	h := newHarness(t, threeItemBank(), staticRoles{})
	anchor := newAnchor()
	anchor.panicOnce = true

	sess, err := h.svc.Admit(context.Background(), member("u1"))
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	h.svc.Launch(context.Background(), sess, anchor)
	h.svc.Wait()

	if notice := anchor.next(t); notice.Content != FailureMessage().Content {
		t.Fatalf("expected failure notice, got %+v", notice)
	}
	if snap := sess.Snapshot(); snap.State != StateAbandoned {
		t.Fatalf("expected abandoned session, got %+v", snap)
	}
	if h.clicks.Active() != 0 {
		t.Fatalf("expected dispatcher released")
	}
}

func TestAdmitDenials(t *testing.T) {
	h := newHarness(t, threeItemBank(), verifiedRoles)
	ctx := context.Background()
	events, cancel := h.feed.Subscribe()
	defer cancel()

	_, err := h.svc.Admit(ctx, member("u1"))
	var inel *domain.IneligibleError
	if !errors.As(err, &inel) || inel.Reason != domain.ReasonMissingRoles {
		t.Fatalf("expected missing roles, got %v", err)
	}
	if ev := <-events; ev.Type != domain.EventDenied || ev.Reason != string(domain.ReasonMissingRoles) {
		t.Fatalf("expected denied event, got %+v", ev)
	}

	// Missing roles do not spend the cooldown.
	if _, err := h.svc.Admit(ctx, member("u1", "r-verified")); err != nil {
		t.Fatalf("expected admit after gaining role, got %v", err)
	}
	_, err = h.svc.Admit(ctx, member("u1", "r-verified"))
	if !errors.Is(err, domain.ErrOnCooldown) {
		t.Fatalf("expected cooldown, got %v", err)
	}
}

func TestAdmitEmptyBank(t *testing.T) {
	h := newHarness(t, nil, staticRoles{})
	_, err := h.svc.Admit(context.Background(), member("u1"))
	if !errors.Is(err, domain.ErrBankEmpty) {
		t.Fatalf("expected empty bank error, got %v", err)
	}
}

func TestLaunchAndWait(t *testing.T) {
	h := newHarness(t, threeItemBank(), staticRoles{})
	anchor := newAnchor()
	anchor.err = domain.ErrMessageUnreachable

	sess, err := h.svc.Admit(context.Background(), member("u1"))
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	h.svc.Launch(context.Background(), sess, anchor)
	h.svc.Wait()
	if snap := sess.Snapshot(); snap.State != StateAbandoned {
		t.Fatalf("expected abandoned session, got %+v", snap)
	}
}
