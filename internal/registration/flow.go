package registration

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/tiketa/internal/checkout"
	"github.com/example/tiketa/internal/confirmation"
	"github.com/example/tiketa/internal/events"
	"github.com/example/tiketa/internal/logging"
	"github.com/example/tiketa/internal/metrics"
	"github.com/example/tiketa/internal/models"
	"github.com/example/tiketa/internal/services"
)

var (
	// ErrUnknownOrder is returned for an order this process has no open registration for.
	ErrUnknownOrder = errors.New("unknown registration")
	// ErrCannotReopen is returned when the checkout is not in a reopenable state.
	ErrCannotReopen = errors.New("checkout cannot be reopened")
	// ErrTierNotFound is returned when the submitted ticket does not belong to the event.
	ErrTierNotFound = errors.New("ticket tier not found")
)

// TransactionCreator opens a pending transaction in the backend.
type TransactionCreator interface {
	CreateTransaction(ctx context.Context, req services.CreateTransactionRequest) (*models.PendingTransaction, error)
}

// EventLookup resolves an event by id or slug.
type EventLookup interface {
	GetEvent(ctx context.Context, idOrSlug string) (*models.Event, error)
}

// CheckoutBridge is the hosted widget bridge.
type CheckoutBridge interface {
	EnsureWidgetLoaded(ctx context.Context) (checkout.Handle, error)
	OpenCheckout(ctx context.Context, token string, handlers checkout.Handlers) error
}

// OutcomeSink receives outcomes reported by the browser for an open widget session.
type OutcomeSink interface {
	Deliver(ctx context.Context, token string, outcome models.PaymentOutcome, payload map[string]any) error
	Cancel(token string)
}

// Config wires a Flow.
type Config struct {
	Backend         TransactionCreator
	Catalog         EventLookup
	Bridge          CheckoutBridge
	Widget          OutcomeSink
	Confirmer       confirmation.Confirmer
	Store           SessionStore
	Publisher       events.Publisher
	Metrics         *metrics.Metrics
	AdminFee        int64
	EventsURL       string
	TicketURLPrefix string
	AfterFunc       confirmation.AfterFunc
	MaxAge          time.Duration
	Now             func() time.Time
	Log             *logrus.Entry
}

// Submission is what the browser needs to open the hosted widget.
type Submission struct {
	OrderID   string                 `json:"order_id"`
	SnapToken string                 `json:"snap_token"`
	ClientKey string                 `json:"client_key"`
	ScriptURL string                 `json:"script_url"`
	Totals    Totals                 `json:"totals"`
	Directive confirmation.Directive `json:"directive"`
}

type registration struct {
	token     string
	buyer     models.Buyer
	session   *confirmation.Session
	handlers  checkout.Handlers
	createdAt time.Time
}

// Flow runs registrations from form submission to the confirmed ticket.
type Flow struct {
	cfg Config
	log *logrus.Entry

	mu            sync.Mutex
	registrations map[string]*registration
}

// NewFlow creates a Flow.
func NewFlow(cfg Config) *Flow {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 2 * time.Hour
	}
	log := cfg.Log
	if log == nil {
		log = logging.Component(nil, "registration")
	}
	return &Flow{cfg: cfg, log: log, registrations: make(map[string]*registration)}
}

// Submit validates the form, creates the pending transaction and opens the widget.
func (f *Flow) Submit(ctx context.Context, form Form) (*Submission, error) {
	if err := Validate(form); err != nil {
		return nil, err
	}

	event, err := f.cfg.Catalog.GetEvent(ctx, strings.TrimSpace(form.EventID))
	if err != nil {
		return nil, err
	}
	tier, ok := findTier(event.Tickets, form.TicketID)
	if !ok {
		return nil, ErrTierNotFound
	}

	totals := ComputeTotals(tier.Price, len(form.Holders), f.cfg.AdminFee)
	entry := f.log.WithFields(logrus.Fields{"event_id": event.ID, "ticket_id": tier.ID, "holders": len(form.Holders)})
	if len(form.Holders) > 1 {
		// Only the first holder reaches the backend while the total covers all of them.
		entry.Warn("multi-holder registration submitted with first holder only")
	}

	tx, err := f.cfg.Backend.CreateTransaction(ctx, services.CreateTransactionRequest{
		EventID:     event.ID,
		TicketID:    tier.ID,
		Quantity:    len(form.Holders),
		GrossAmount: totals.Total,
		Buyer:       form.Buyer,
		Holder:      form.Holders[0],
	})
	if err != nil {
		return nil, err
	}
	if tx.OrderID == "" || tx.SnapToken == "" {
		entry.Warn("backend returned no order id or checkout token")
		return nil, &services.UpstreamError{
			Service: "backend",
			Status:  http.StatusBadGateway,
			Message: "Gagal membuat transaksi. Silakan coba lagi.",
		}
	}
	entry = entry.WithField("order_id", tx.OrderID)

	handle, err := f.cfg.Bridge.EnsureWidgetLoaded(ctx)
	if err != nil {
		return nil, err
	}

	reg := &registration{token: tx.SnapToken, buyer: form.Buyer, createdAt: f.cfg.Now()}
	reg.session = confirmation.NewSession(confirmation.Config{
		OrderID:         tx.OrderID,
		Confirmer:       f.cfg.Confirmer,
		Navigator:       f,
		EventsURL:       f.cfg.EventsURL,
		TicketURLPrefix: f.cfg.TicketURLPrefix,
		AfterFunc:       f.cfg.AfterFunc,
		OnResolved:      func(orderID string, uuids []string) { f.announce(orderID, uuids, form.Buyer, totals.Total) },
		OnTransition:    f.journal,
		Log:             f.log,
	})
	reg.handlers = sessionHandlers(reg.session)

	if err := f.cfg.Store.Save(ctx, &models.CheckoutSession{
		OrderID:     tx.OrderID,
		EventID:     event.ID,
		TicketID:    tier.ID,
		GrossAmount: totals.Total,
		HolderCount: len(form.Holders),
		BuyerName:   form.Buyer.Name,
		BuyerPhone:  form.Buyer.Phone,
		State:       string(confirmation.AwaitingOutcome),
	}); err != nil {
		entry.WithError(err).Warn("journal write failed")
	}

	if err := f.cfg.Bridge.OpenCheckout(ctx, reg.token, reg.handlers); err != nil {
		reg.session.Teardown()
		f.journal(confirmation.Transition{OrderID: tx.OrderID, From: confirmation.AwaitingOutcome, To: confirmation.Failed})
		return nil, err
	}

	f.mu.Lock()
	f.registrations[tx.OrderID] = reg
	f.mu.Unlock()

	entry.WithField("total", totals.Total).Info("checkout opened")

	return &Submission{
		OrderID:   tx.OrderID,
		SnapToken: tx.SnapToken,
		ClientKey: handle.ClientKey,
		ScriptURL: handle.ScriptURL,
		Totals:    totals,
		Directive: reg.session.Directive(),
	}, nil
}

func sessionHandlers(s *confirmation.Session) checkout.Handlers {
	return checkout.Handlers{
		OnSuccess: func(ctx context.Context, _ map[string]any) { s.HandleOutcome(ctx, models.OutcomeSuccess) },
		OnPending: func(ctx context.Context, _ map[string]any) { s.HandleOutcome(ctx, models.OutcomePending) },
		OnError:   func(ctx context.Context, _ map[string]any) { s.HandleOutcome(ctx, models.OutcomeError) },
		OnClose:   func(ctx context.Context) { s.HandleOutcome(ctx, models.OutcomeClosed) },
	}
}

// Deliver hands a widget outcome reported by the browser to the registration's session.
// A repeated outcome for an already closed widget returns the current directive.
func (f *Flow) Deliver(ctx context.Context, orderID string, outcome models.PaymentOutcome, payload map[string]any) (confirmation.Directive, error) {
	reg, ok := f.lookup(orderID)
	if !ok {
		return confirmation.Directive{}, ErrUnknownOrder
	}

	err := f.cfg.Widget.Deliver(ctx, reg.token, outcome, payload)
	if err != nil && !errors.Is(err, checkout.ErrNoSession) {
		return confirmation.Directive{}, err
	}
	if err != nil {
		f.log.WithFields(logrus.Fields{"order_id": orderID, "outcome": outcome}).Debug("outcome for closed widget ignored")
	}

	d := reg.session.Directive()
	f.cfg.Metrics.ObserveOutcome(string(outcome), string(d.State))
	return d, nil
}

// Reopen opens the widget again after a failed or aborted checkout.
func (f *Flow) Reopen(ctx context.Context, orderID string) (confirmation.Directive, error) {
	reg, ok := f.lookup(orderID)
	if !ok {
		return confirmation.Directive{}, ErrUnknownOrder
	}
	if !reg.session.Reopen() {
		return reg.session.Directive(), ErrCannotReopen
	}
	if err := f.cfg.Bridge.OpenCheckout(ctx, reg.token, reg.handlers); err != nil {
		return confirmation.Directive{}, err
	}
	return reg.session.Directive(), nil
}

// Status returns the live directive, or the journalled state once the session ended.
func (f *Flow) Status(ctx context.Context, orderID string) (confirmation.Directive, error) {
	if reg, ok := f.lookup(orderID); ok {
		return reg.session.Directive(), nil
	}

	journal, err := f.cfg.Store.Get(ctx, orderID)
	if errors.Is(err, ErrSessionNotFound) {
		return confirmation.Directive{}, ErrUnknownOrder
	}
	if err != nil {
		return confirmation.Directive{}, err
	}

	d := confirmation.Directive{State: confirmation.State(journal.State), TicketUUIDs: journal.TicketUUIDs}
	switch d.State {
	case confirmation.Resolved:
		if len(journal.TicketUUIDs) > 0 {
			d.Redirect = f.cfg.TicketURLPrefix + journal.TicketUUIDs[0]
		}
	case confirmation.UnresolvedFallback:
		d.Redirect = f.cfg.EventsURL
	}
	return d, nil
}

// Teardown ends a registration: timers stop, in-flight results are discarded and
// the widget session is dropped.
func (f *Flow) Teardown(orderID string) bool {
	f.mu.Lock()
	reg, ok := f.registrations[orderID]
	delete(f.registrations, orderID)
	f.mu.Unlock()

	if !ok {
		return false
	}
	reg.session.Teardown()
	f.cfg.Widget.Cancel(reg.token)
	return true
}

// Navigate ends the registration once the orchestrator sends the user elsewhere.
func (f *Flow) Navigate(orderID, target string) {
	f.log.WithFields(logrus.Fields{"order_id": orderID, "target": target}).Info("navigating")
	f.Teardown(orderID)
}

// Announce publishes a confirmed order found by a path other than the widget callback.
func (f *Flow) Announce(ctx context.Context, orderID string, uuids []string) {
	var buyer models.Buyer
	var gross int64
	if journal, err := f.cfg.Store.Get(ctx, orderID); err == nil {
		buyer = models.Buyer{Name: journal.BuyerName, Phone: journal.BuyerPhone}
		gross = journal.GrossAmount
		if journal.State != string(confirmation.Resolved) {
			f.journal(confirmation.Transition{OrderID: orderID, From: confirmation.State(journal.State), To: confirmation.Resolved, UUIDs: uuids})
		}
	}
	f.announce(orderID, uuids, buyer, gross)
}

func (f *Flow) announce(orderID string, uuids []string, buyer models.Buyer, gross int64) {
	if f.cfg.Publisher == nil || len(uuids) == 0 {
		return
	}
	evt := events.NewTicketConfirmed(orderID, uuids, buyer.Name, buyer.Phone)
	evt.GrossAmount = gross
	if err := f.cfg.Publisher.PublishTicketConfirmed(context.Background(), evt); err != nil {
		f.log.WithError(err).WithField("order_id", orderID).Error("publish ticket confirmed failed")
	}
}

func (f *Flow) journal(t confirmation.Transition) {
	if err := f.cfg.Store.UpdateState(context.Background(), t.OrderID, string(t.To), string(t.Outcome), t.UUIDs); err != nil && !errors.Is(err, ErrSessionNotFound) {
		f.log.WithError(err).WithField("order_id", t.OrderID).Warn("journal update failed")
	}
}

// Sweep tears down registrations older than MaxAge that never reached an outcome.
func (f *Flow) Sweep() int {
	cutoff := f.cfg.Now().Add(-f.cfg.MaxAge)

	f.mu.Lock()
	var stale []string
	for orderID, reg := range f.registrations {
		if reg.createdAt.Before(cutoff) {
			stale = append(stale, orderID)
		}
	}
	f.mu.Unlock()

	for _, orderID := range stale {
		f.Teardown(orderID)
	}
	return len(stale)
}

// Run sweeps stale registrations until ctx is done.
func (f *Flow) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := f.Sweep(); n > 0 {
				f.log.WithField("count", n).Info("stale registrations swept")
			}
		}
	}
}

// Open reports how many registrations are live.
func (f *Flow) Open() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.registrations)
}

func (f *Flow) lookup(orderID string) (*registration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.registrations[orderID]
	return reg, ok
}

func findTier(tiers []models.EventTicket, id int64) (models.EventTicket, bool) {
	for _, t := range tiers {
		if t.ID == id {
			return t, true
		}
	}
	return models.EventTicket{}, false
}
