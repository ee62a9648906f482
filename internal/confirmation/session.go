package confirmation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/tiketa/internal/logging"
	"github.com/example/tiketa/internal/models"
)

// State is the position of one registration in the confirmation handshake.
type State string

const (
	AwaitingOutcome    State = "awaiting_outcome"
	Confirming         State = "confirming"
	Resolved           State = "resolved"
	UnresolvedFallback State = "unresolved_fallback"
	Failed             State = "failed"
	Aborted            State = "aborted"
)

// Fixed one-shot client timers.
const (
	FallbackDelay = 3500 * time.Millisecond
	PendingDelay  = 4 * time.Second
)

const (
	MessageWaiting  = "Menunggu konfirmasi dari server..."
	MessageFailed   = "Pembayaran gagal. Silakan coba lagi."
	MessageResolved = "Pembayaran berhasil! Mengarahkan ke tiket kamu..."
	MessagePending  = "Pembayaran kamu sedang diproses. Tiket akan dikirim setelah pembayaran terkonfirmasi."
)

// Confirmer is the idempotent backend confirm call.
type Confirmer interface {
	Confirm(ctx context.Context, orderID string) (models.ConfirmationResult, error)
}

// Navigator applies a navigation decided by the orchestrator.
type Navigator interface {
	Navigate(orderID, target string)
}

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

// RealAfterFunc schedules on the runtime timer.
func RealAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Directive tells the browser what to show and where to go.
type Directive struct {
	State       State    `json:"state"`
	Redirect    string   `json:"redirect,omitempty"`
	DelayMS     int64    `json:"delay_ms,omitempty"`
	Message     string   `json:"message,omitempty"`
	Retryable   bool     `json:"retryable,omitempty"`
	TicketUUIDs []string `json:"ticket_uuids,omitempty"`
}

// Transition is reported to the OnTransition hook after every state change.
type Transition struct {
	OrderID string
	From    State
	To      State
	Outcome models.PaymentOutcome
	UUIDs   []string
}

// Config wires a Session.
type Config struct {
	OrderID         string
	Confirmer       Confirmer
	Navigator       Navigator
	EventsURL       string
	TicketURLPrefix string
	AfterFunc       AfterFunc
	OnResolved      func(orderID string, uuids []string)
	OnTransition    func(Transition)
	Log             *logrus.Entry
}

// Session is the orchestrator for one registration. Outcomes are handled one at a
// time; Teardown may be called at any point and every continuation checks it.
type Session struct {
	cfg Config
	log *logrus.Entry

	outcomeMu sync.Mutex
	alive     atomic.Bool

	mu        sync.Mutex
	state     State
	directive Directive
	timers    []Timer
	resolved  bool
}

// NewSession starts a session in AwaitingOutcome.
func NewSession(cfg Config) *Session {
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = RealAfterFunc
	}
	if cfg.Navigator == nil {
		cfg.Navigator = noopNavigator{}
	}
	log := cfg.Log
	if log == nil {
		log = logging.Component(nil, "confirmation")
	}

	s := &Session{
		cfg:       cfg,
		log:       log.WithField("order_id", cfg.OrderID),
		state:     AwaitingOutcome,
		directive: Directive{State: AwaitingOutcome},
	}
	s.alive.Store(true)
	return s
}

func (s *Session) OrderID() string {
	return s.cfg.OrderID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Directive returns the most recent directive.
func (s *Session) Directive() Directive {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.directive
}

func (s *Session) Alive() bool {
	return s.alive.Load()
}

// HandleOutcome advances the session for one widget outcome.
func (s *Session) HandleOutcome(ctx context.Context, outcome models.PaymentOutcome) Directive {
	s.outcomeMu.Lock()
	defer s.outcomeMu.Unlock()

	if !s.alive.Load() {
		return s.Directive()
	}

	current := s.State()
	entry := s.log.WithFields(logrus.Fields{"outcome": outcome, "state": current})

	switch outcome {
	case models.OutcomeClosed:
		if current != AwaitingOutcome {
			entry.Debug("close ignored")
			return s.Directive()
		}
		entry.Info("checkout closed without outcome")
		return s.transition(outcome, Directive{State: Aborted}, nil)

	case models.OutcomeError:
		if current == Resolved || current == UnresolvedFallback {
			entry.Debug("error ignored after confirmation")
			return s.Directive()
		}
		entry.Warn("payment reported error")
		return s.transition(outcome, Directive{State: Failed, Message: MessageFailed, Retryable: true}, nil)

	case models.OutcomeSuccess, models.OutcomePending:
		if current == Resolved {
			return s.Directive()
		}
		return s.confirm(ctx, outcome)
	}

	entry.Warn("unknown outcome")
	return s.Directive()
}

func (s *Session) confirm(ctx context.Context, outcome models.PaymentOutcome) Directive {
	s.transition(outcome, Directive{State: Confirming, Message: MessageWaiting}, nil)

	result, err := s.cfg.Confirmer.Confirm(ctx, s.cfg.OrderID)

	if !s.alive.Load() {
		s.log.WithField("outcome", outcome).Info("confirmation finished after teardown, result discarded")
		return s.Directive()
	}

	if err != nil {
		s.log.WithError(err).Warn("confirmation failed")
		return s.fallback(outcome)
	}
	if !result.Resolved() {
		s.log.WithField("success", result.Success).Info("confirmation returned no ticket yet")
		return s.fallback(outcome)
	}

	target := s.cfg.TicketURLPrefix + result.UUIDs[0]
	d := s.transition(outcome, Directive{
		State:       Resolved,
		Redirect:    target,
		Message:     MessageResolved,
		TicketUUIDs: append([]string(nil), result.UUIDs...),
	}, result.UUIDs)

	s.cfg.Navigator.Navigate(s.cfg.OrderID, target)

	s.mu.Lock()
	first := !s.resolved
	s.resolved = true
	s.mu.Unlock()
	if first && s.cfg.OnResolved != nil {
		s.cfg.OnResolved(s.cfg.OrderID, result.UUIDs)
	}
	return d
}

func (s *Session) fallback(outcome models.PaymentOutcome) Directive {
	d := s.transition(outcome, Directive{
		State:    UnresolvedFallback,
		Redirect: s.cfg.EventsURL,
		DelayMS:  FallbackDelay.Milliseconds(),
		Message:  MessageWaiting,
	}, nil)

	timer := s.cfg.AfterFunc(FallbackDelay, func() {
		if !s.alive.Load() {
			return
		}
		s.cfg.Navigator.Navigate(s.cfg.OrderID, s.cfg.EventsURL)
	})

	s.mu.Lock()
	s.timers = append(s.timers, timer)
	s.mu.Unlock()
	return d
}

func (s *Session) transition(outcome models.PaymentOutcome, d Directive, uuids []string) Directive {
	s.mu.Lock()
	from := s.state
	s.state = d.State
	s.directive = d
	s.mu.Unlock()

	if s.cfg.OnTransition != nil {
		s.cfg.OnTransition(Transition{OrderID: s.cfg.OrderID, From: from, To: d.State, Outcome: outcome, UUIDs: uuids})
	}
	return d
}

// Reopen returns a failed or aborted session to AwaitingOutcome so the widget can
// be opened again.
func (s *Session) Reopen() bool {
	s.outcomeMu.Lock()
	defer s.outcomeMu.Unlock()

	if !s.alive.Load() {
		return false
	}
	switch s.State() {
	case Failed, Aborted:
		s.transition("", Directive{State: AwaitingOutcome}, nil)
		return true
	}
	return false
}

// Teardown ends the session: pending timers are stopped and in-flight results are dropped.
func (s *Session) Teardown() {
	if !s.alive.Swap(false) {
		return
	}

	s.mu.Lock()
	timers := s.timers
	s.timers = nil
	s.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
}

type noopNavigator struct{}

func (noopNavigator) Navigate(string, string) {}
