package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/tiketa/internal/cache"
	"github.com/example/tiketa/internal/events"
	"github.com/example/tiketa/internal/logging"
	"github.com/example/tiketa/internal/metrics"
	"github.com/example/tiketa/internal/models"
	"github.com/example/tiketa/internal/utils"
)

const notifiedTTL = 24 * time.Hour

// TicketFetcher loads a ticket by id or uuid.
type TicketFetcher interface {
	GetTicket(ctx context.Context, idOrUUID string) (*models.TicketTransaction, error)
}

// Messenger delivers a text message to a phone number.
type Messenger interface {
	Send(ctx context.Context, to, message string) (json.RawMessage, error)
}

// AdminNotifier posts a confirmed-ticket notice to staff.
type AdminNotifier interface {
	NotifyTicketConfirmed(ctx context.Context, notice TicketNotice) error
}

// TicketNotifier delivers tickets to holders after confirmation, at most once per order.
type TicketNotifier struct {
	tickets   TicketFetcher
	messenger Messenger
	admins    AdminNotifier
	store     cache.Store
	ticketURL string
	metrics   *metrics.Metrics
	log       *logrus.Entry
}

// NewTicketNotifier creates a new TicketNotifier. ticketURL is the public prefix a
// ticket uuid is appended to.
func NewTicketNotifier(tickets TicketFetcher, messenger Messenger, admins AdminNotifier, store cache.Store, ticketURL string, m *metrics.Metrics, log *logrus.Entry) *TicketNotifier {
	if store == nil {
		store = cache.NewMemoryStore()
	}
	if log == nil {
		log = logging.Component(nil, "notifier")
	}
	return &TicketNotifier{
		tickets:   tickets,
		messenger: messenger,
		admins:    admins,
		store:     store,
		ticketURL: ticketURL,
		metrics:   m,
		log:       log,
	}
}

// Handle processes one TicketConfirmed event.
func (n *TicketNotifier) Handle(ctx context.Context, evt events.TicketConfirmed) error {
	if evt.OrderID == "" || len(evt.UUIDs) == 0 {
		return nil
	}
	entry := n.log.WithField("order_id", evt.OrderID)

	key := "notified:" + evt.OrderID
	first, err := n.store.SetNX(ctx, key, []byte(evt.EventID.String()), notifiedTTL)
	if err != nil {
		return fmt.Errorf("claim notification: %w", err)
	}
	if !first {
		entry.Debug("order already notified")
		n.metrics.ObserveNotification("whatsapp", "duplicate")
		return nil
	}

	notice := TicketNotice{
		OrderID:     evt.OrderID,
		BuyerName:   evt.BuyerName,
		BuyerPhone:  evt.BuyerPhone,
		GrossAmount: evt.GrossAmount,
		ConfirmedAt: evt.ConfirmedAt,
	}

	sent := 0
	var lastErr error
	for _, id := range evt.UUIDs {
		ticket, err := n.tickets.GetTicket(ctx, id)
		if err != nil {
			entry.WithError(err).WithField("uuid", id).Warn("ticket lookup failed")
			notice.Tickets = append(notice.Tickets, NoticeTicket{UUID: id})
			lastErr = err
			continue
		}
		if notice.EventTitle == "" {
			notice.EventTitle = ticket.EventTitle
		}
		notice.Tickets = append(notice.Tickets, NoticeTicket{UUID: id, Name: ticket.TicketName})

		phone := ticket.Phone
		if phone == "" {
			phone = evt.BuyerPhone
		}
		if _, err := n.messenger.Send(ctx, phone, n.ticketMessage(ticket, id, evt.ConfirmedAt)); err != nil {
			entry.WithError(err).WithField("uuid", id).Warn("ticket delivery failed")
			n.metrics.ObserveNotification("whatsapp", "failed")
			lastErr = err
			continue
		}
		n.metrics.ObserveNotification("whatsapp", "sent")
		sent++
	}

	if sent == 0 && lastErr != nil {
		// Release the claim so a redelivery can try again.
		if err := n.store.Del(ctx, key); err != nil {
			entry.WithError(err).Warn("release notification claim failed")
		}
		return lastErr
	}

	if err := n.admins.NotifyTicketConfirmed(ctx, notice); err != nil {
		entry.WithError(err).Warn("admin notice failed")
		n.metrics.ObserveNotification("telegram", "failed")
	} else {
		n.metrics.ObserveNotification("telegram", "sent")
	}

	entry.WithField("sent", sent).Info("tickets delivered")
	return nil
}

func (n *TicketNotifier) ticketMessage(ticket *models.TicketTransaction, id string, confirmedAt time.Time) string {
	var b strings.Builder
	name := ticket.Name
	if name == "" {
		name = "Pelanggan"
	}
	fmt.Fprintf(&b, "Halo %s, pembayaran kamu sudah kami terima.\n", name)
	if ticket.EventTitle != "" {
		fmt.Fprintf(&b, "Acara: %s\n", ticket.EventTitle)
	}
	if ticket.TicketName != "" {
		fmt.Fprintf(&b, "Tiket: %s\n", ticket.TicketName)
	}
	if !confirmedAt.IsZero() {
		fmt.Fprintf(&b, "Dikonfirmasi: %s\n", utils.FormatDate(confirmedAt))
	}
	fmt.Fprintf(&b, "Lihat tiket dan QR code kamu di: %s%s\n", n.ticketURL, id)
	b.WriteString("Tunjukkan QR code ini saat check-in.")
	return b.String()
}
