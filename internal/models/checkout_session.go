package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// CheckoutSession is the journal entry of one registration's payment handshake.
// It is bookkeeping for support and admin views; tickets live in the backend.
type CheckoutSession struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID     string         `gorm:"uniqueIndex" json:"order_id"`
	EventID     int64          `json:"event_id"`
	TicketID    int64          `json:"ticket_id"`
	GrossAmount int64          `json:"gross_amount"`
	HolderCount int            `json:"holder_count"`
	BuyerName   string         `json:"buyer_name"`
	BuyerPhone  string         `json:"buyer_phone"`
	State       string         `gorm:"index" json:"state"`
	LastOutcome string         `json:"last_outcome"`
	TicketUUIDs pq.StringArray `gorm:"type:text[]" json:"ticket_uuids"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// BeforeCreate ensures UUIDs are generated for new records.
func (s *CheckoutSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
