package confirmation

import (
	"context"
	"strings"
)

// Pages holds the navigation targets shared by the page-level flows.
type Pages struct {
	EventsURL       string
	TicketURLPrefix string
}

// SuccessPage is the confirmation path reached by direct navigation with an order id.
// It may race the widget callback for the same order; the confirmer is idempotent.
// ctx is the liveness flag: once it is done the result is discarded and ctx.Err() is
// returned.
func (p Pages) SuccessPage(ctx context.Context, confirmer Confirmer, orderID string) (Directive, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return p.Fallback(), nil
	}

	result, err := confirmer.Confirm(ctx, orderID)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Directive{}, ctxErr
	}
	if err != nil || !result.Resolved() {
		return p.Fallback(), nil
	}

	return Directive{
		State:       Resolved,
		Redirect:    p.TicketURLPrefix + result.UUIDs[0],
		Message:     MessageResolved,
		TicketUUIDs: result.UUIDs,
	}, nil
}

// PendingPage waits a fixed time and sends the user to the events listing.
// Settlement is announced later through the messaging relay, not polled.
func (p Pages) PendingPage() Directive {
	return Directive{
		State:    UnresolvedFallback,
		Redirect: p.EventsURL,
		DelayMS:  PendingDelay.Milliseconds(),
		Message:  MessagePending,
	}
}

// Fallback is the waiting message followed by a redirect to the events listing.
func (p Pages) Fallback() Directive {
	return Directive{
		State:    UnresolvedFallback,
		Redirect: p.EventsURL,
		DelayMS:  FallbackDelay.Milliseconds(),
		Message:  MessageWaiting,
	}
}
