package confirmation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/tiketa/internal/models"
)

type fakeConfirmer struct {
	mu      sync.Mutex
	calls   int
	result  models.ConfirmationResult
	err     error
	onCall  func()
	release chan struct{}
}

func (f *fakeConfirmer) Confirm(_ context.Context, _ string) (models.ConfirmationResult, error) {
	f.mu.Lock()
	f.calls++
	onCall := f.onCall
	f.mu.Unlock()

	if onCall != nil {
		onCall()
	}
	if f.release != nil {
		<-f.release
	}
	return f.result, f.err
}

func (f *fakeConfirmer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNavigator struct {
	mu      sync.Mutex
	targets []string
}

func (f *fakeNavigator) Navigate(_, target string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = append(f.targets, target)
}

func (f *fakeNavigator) Targets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.targets...)
}

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

// fire runs every timer that was not stopped.
func (c *fakeClock) fire() {
	for _, t := range c.timers {
		if !t.stopped {
			t.fn()
		}
	}
}

func newTestSession(confirmer Confirmer, nav Navigator, clock *fakeClock) *Session {
	return NewSession(Config{
		OrderID:         "ORD-1",
		Confirmer:       confirmer,
		Navigator:       nav,
		EventsURL:       "/events",
		TicketURLPrefix: "/tickets/",
		AfterFunc:       clock.AfterFunc,
	})
}

func TestSession_CloseBeforeOutcomeIsNoop(t *testing.T) {
	confirmer := &fakeConfirmer{}
	nav := &fakeNavigator{}
	clock := &fakeClock{}
	s := newTestSession(confirmer, nav, clock)

	d := s.HandleOutcome(context.Background(), models.OutcomeClosed)

	assert.Equal(t, Aborted, d.State)
	assert.Empty(t, d.Redirect)
	assert.Equal(t, 0, confirmer.Calls())
	assert.Empty(t, nav.Targets())
	assert.Empty(t, clock.timers)
}

func TestSession_SuccessResolves(t *testing.T) {
	for _, outcome := range []models.PaymentOutcome{models.OutcomeSuccess, models.OutcomePending} {
		t.Run(string(outcome), func(t *testing.T) {
			confirmer := &fakeConfirmer{result: models.ConfirmationResult{Success: true, UUIDs: []string{"u-1", "u-2"}}}
			nav := &fakeNavigator{}
			var resolved [][]string

			s := NewSession(Config{
				OrderID:         "ORD-1",
				Confirmer:       confirmer,
				Navigator:       nav,
				EventsURL:       "/events",
				TicketURLPrefix: "/tickets/",
				AfterFunc:       (&fakeClock{}).AfterFunc,
				OnResolved:      func(_ string, uuids []string) { resolved = append(resolved, uuids) },
			})

			d := s.HandleOutcome(context.Background(), outcome)

			assert.Equal(t, Resolved, d.State)
			assert.Equal(t, "/tickets/u-1", d.Redirect)
			assert.Equal(t, []string{"u-1", "u-2"}, d.TicketUUIDs)
			assert.Equal(t, []string{"/tickets/u-1"}, nav.Targets())
			assert.Equal(t, 1, confirmer.Calls())
			assert.Len(t, resolved, 1)

			again := s.HandleOutcome(context.Background(), outcome)
			assert.Equal(t, d, again)
			assert.Equal(t, 1, confirmer.Calls())
		})
	}
}

func TestSession_UnresolvedFallsBackToEvents(t *testing.T) {
	tests := []struct {
		name   string
		result models.ConfirmationResult
		err    error
	}{
		{"success false", models.ConfirmationResult{Success: false}, nil},
		{"empty uuids", models.ConfirmationResult{Success: true}, nil},
		{"confirm error", models.ConfirmationResult{}, errors.New("backend down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			confirmer := &fakeConfirmer{result: tt.result, err: tt.err}
			nav := &fakeNavigator{}
			clock := &fakeClock{}
			s := newTestSession(confirmer, nav, clock)

			d := s.HandleOutcome(context.Background(), models.OutcomeSuccess)

			assert.Equal(t, UnresolvedFallback, d.State)
			assert.Equal(t, MessageWaiting, d.Message)
			assert.Equal(t, "/events", d.Redirect)
			assert.Equal(t, int64(3500), d.DelayMS)
			assert.Empty(t, nav.Targets())

			require.Len(t, clock.timers, 1)
			assert.Equal(t, FallbackDelay, clock.timers[0].delay)
			clock.fire()
			assert.Equal(t, []string{"/events"}, nav.Targets())
		})
	}
}

func TestSession_ErrorIsRetryable(t *testing.T) {
	confirmer := &fakeConfirmer{result: models.ConfirmationResult{Success: true, UUIDs: []string{"u-9"}}}
	s := newTestSession(confirmer, &fakeNavigator{}, &fakeClock{})

	d := s.HandleOutcome(context.Background(), models.OutcomeError)
	assert.Equal(t, Failed, d.State)
	assert.True(t, d.Retryable)
	assert.Equal(t, MessageFailed, d.Message)
	assert.Equal(t, 0, confirmer.Calls())

	require.True(t, s.Reopen())
	assert.Equal(t, AwaitingOutcome, s.State())

	d = s.HandleOutcome(context.Background(), models.OutcomeSuccess)
	assert.Equal(t, Resolved, d.State)
}

func TestSession_ReopenOnlyFromFailedOrAborted(t *testing.T) {
	s := newTestSession(&fakeConfirmer{}, &fakeNavigator{}, &fakeClock{})
	assert.False(t, s.Reopen())

	s.HandleOutcome(context.Background(), models.OutcomeClosed)
	assert.True(t, s.Reopen())
}

func TestSession_TeardownStopsFallbackTimer(t *testing.T) {
	nav := &fakeNavigator{}
	clock := &fakeClock{}
	s := newTestSession(&fakeConfirmer{result: models.ConfirmationResult{Success: false}}, nav, clock)

	s.HandleOutcome(context.Background(), models.OutcomeSuccess)
	s.Teardown()

	require.Len(t, clock.timers, 1)
	assert.True(t, clock.timers[0].stopped)

	// A timer that fires anyway must still observe teardown.
	clock.timers[0].fn()
	assert.Empty(t, nav.Targets())
	assert.False(t, s.Alive())
}

func TestSession_TeardownDuringConfirmDiscardsResult(t *testing.T) {
	confirmer := &fakeConfirmer{
		result:  models.ConfirmationResult{Success: true, UUIDs: []string{"u-1"}},
		release: make(chan struct{}),
	}
	nav := &fakeNavigator{}
	resolvedCalls := 0
	s := NewSession(Config{
		OrderID:         "ORD-1",
		Confirmer:       confirmer,
		Navigator:       nav,
		TicketURLPrefix: "/tickets/",
		AfterFunc:       (&fakeClock{}).AfterFunc,
		OnResolved:      func(string, []string) { resolvedCalls++ },
	})

	started := make(chan struct{})
	confirmer.onCall = func() { close(started) }

	done := make(chan Directive)
	go func() { done <- s.HandleOutcome(context.Background(), models.OutcomeSuccess) }()

	<-started
	s.Teardown()
	close(confirmer.release)
	d := <-done

	assert.Equal(t, Confirming, d.State)
	assert.Empty(t, nav.Targets())
	assert.Equal(t, 0, resolvedCalls)
}

func TestSession_OutcomesAfterTeardownAreIgnored(t *testing.T) {
	confirmer := &fakeConfirmer{}
	s := newTestSession(confirmer, &fakeNavigator{}, &fakeClock{})
	s.Teardown()
	s.Teardown()

	d := s.HandleOutcome(context.Background(), models.OutcomeSuccess)
	assert.Equal(t, AwaitingOutcome, d.State)
	assert.Equal(t, 0, confirmer.Calls())
	assert.False(t, s.Reopen())
}

func TestSession_TransitionHook(t *testing.T) {
	var seen []Transition
	s := NewSession(Config{
		OrderID:         "ORD-1",
		Confirmer:       &fakeConfirmer{result: models.ConfirmationResult{Success: true, UUIDs: []string{"u-1"}}},
		TicketURLPrefix: "/tickets/",
		AfterFunc:       (&fakeClock{}).AfterFunc,
		OnTransition:    func(tr Transition) { seen = append(seen, tr) },
	})

	s.HandleOutcome(context.Background(), models.OutcomePending)

	require.Len(t, seen, 2)
	assert.Equal(t, Transition{OrderID: "ORD-1", From: AwaitingOutcome, To: Confirming, Outcome: models.OutcomePending}, seen[0])
	assert.Equal(t, Resolved, seen[1].To)
	assert.Equal(t, []string{"u-1"}, seen[1].UUIDs)
}

func TestPages_SuccessPage(t *testing.T) {
	pages := Pages{EventsURL: "/events", TicketURLPrefix: "/tickets/"}

	d, err := pages.SuccessPage(context.Background(), &fakeConfirmer{result: models.ConfirmationResult{Success: true, UUIDs: []string{"u-7"}}}, "ORD-7")
	require.NoError(t, err)
	assert.Equal(t, "/tickets/u-7", d.Redirect)

	d, err = pages.SuccessPage(context.Background(), &fakeConfirmer{result: models.ConfirmationResult{Success: false}}, "ORD-7")
	require.NoError(t, err)
	assert.Equal(t, UnresolvedFallback, d.State)
	assert.Equal(t, "/events", d.Redirect)
	assert.Equal(t, int64(3500), d.DelayMS)

	d, err = pages.SuccessPage(context.Background(), &fakeConfirmer{}, " ")
	require.NoError(t, err)
	assert.Equal(t, UnresolvedFallback, d.State)
}

func TestPages_SuccessPageDiscardsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	confirmer := &fakeConfirmer{
		result: models.ConfirmationResult{Success: true, UUIDs: []string{"u-7"}},
		onCall: cancel,
	}

	_, err := Pages{TicketURLPrefix: "/tickets/"}.SuccessPage(ctx, confirmer, "ORD-7")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPages_PendingPage(t *testing.T) {
	d := Pages{EventsURL: "/events"}.PendingPage()
	assert.Equal(t, "/events", d.Redirect)
	assert.Equal(t, int64(4000), d.DelayMS)
}
