package models

import (
	"encoding/json"
	"time"
)

// TransactionStatus is owned by the backend; this service only reads it.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusPaid      TransactionStatus = "paid"
	TransactionStatusUsed      TransactionStatus = "used"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// Event is the backend event record, reduced to what tier selection needs.
type Event struct {
	ID      int64         `json:"id"`
	Slug    string        `json:"slug"`
	Title   string        `json:"title"`
	Tickets []EventTicket `json:"tickets"`
}

// EventTicket is one ticket tier of an event. A nil Quota means unlimited.
type EventTicket struct {
	ID        int64      `json:"id"`
	EventID   int64      `json:"event_id"`
	Title     string     `json:"title"`
	Price     int64      `json:"price"`
	IsActive  bool       `json:"is_active"`
	Quota     *int64     `json:"quota"`
	Sold      int64      `json:"sold"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

// HasQuota reports whether the tier can still sell at least one ticket.
func (t EventTicket) HasQuota() bool {
	if t.Quota == nil {
		return true
	}
	return *t.Quota-t.Sold > 0
}

// OnSale reports whether now falls inside the tier's sale window.
func (t EventTicket) OnSale(now time.Time) bool {
	if t.StartDate != nil && now.Before(*t.StartDate) {
		return false
	}
	if t.EndDate != nil && now.After(*t.EndDate) {
		return false
	}
	return true
}

// Buyer is the person paying for the registration.
type Buyer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	City  string `json:"city"`
}

// TicketHolder is the person a ticket is issued to.
type TicketHolder struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// PendingTransaction is the backend-side transaction created before payment.
type PendingTransaction struct {
	OrderID     string            `json:"order_id"`
	GrossAmount int64             `json:"gross_amount"`
	SnapToken   string            `json:"snap_token"`
	Buyer       Buyer             `json:"buyer"`
	Holder      TicketHolder      `json:"holder"`
	Status      TransactionStatus `json:"status"`
}

// TicketTransaction is a durable ticket as returned by the backend. Raw keeps
// the full record so it can be passed through untouched.
type TicketTransaction struct {
	ID         int64             `json:"id"`
	UUID       string            `json:"uuid"`
	OrderID    string            `json:"order_id"`
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone"`
	Status     TransactionStatus `json:"status"`
	EventTitle string            `json:"event_title"`
	TicketName string            `json:"ticket_name"`
	Raw        json.RawMessage   `json:"-"`
}
