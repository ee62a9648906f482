package registration

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/tiketa/internal/models"
	"github.com/example/tiketa/internal/utils"
)

// ErrSessionNotFound is returned when no journal entry exists for an order.
var ErrSessionNotFound = errors.New("checkout session not found")

// SessionStore journals checkout sessions for support and admin views.
type SessionStore interface {
	Save(ctx context.Context, s *models.CheckoutSession) error
	UpdateState(ctx context.Context, orderID, state, outcome string, uuids []string) error
	Get(ctx context.Context, orderID string) (*models.CheckoutSession, error)
	List(ctx context.Context, state string, p utils.Pagination) ([]models.CheckoutSession, int64, error)
}

// GormStore keeps the journal in postgres.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Save inserts the session, replacing an older entry for the same order.
func (s *GormStore) Save(ctx context.Context, session *models.CheckoutSession) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"event_id", "ticket_id", "gross_amount", "holder_count", "buyer_name", "buyer_phone", "state", "last_outcome", "updated_at"}),
	}).Create(session).Error
}

func (s *GormStore) UpdateState(ctx context.Context, orderID, state, outcome string, uuids []string) error {
	updates := map[string]any{"state": state, "updated_at": time.Now()}
	if outcome != "" {
		updates["last_outcome"] = outcome
	}
	if len(uuids) > 0 {
		updates["ticket_uuids"] = pq.StringArray(uuids)
	}

	res := s.db.WithContext(ctx).Model(&models.CheckoutSession{}).Where("order_id = ?", orderID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, orderID string) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	err := s.db.WithContext(ctx).First(&session, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *GormStore) List(ctx context.Context, state string, p utils.Pagination) ([]models.CheckoutSession, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.CheckoutSession{})
	if state != "" {
		query = query.Where("state = ?", state)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sessions []models.CheckoutSession
	if err := query.Order("created_at DESC").Limit(p.Limit).Offset(p.Offset).Find(&sessions).Error; err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// MemoryStore keeps the journal in process when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.CheckoutSession
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]models.CheckoutSession), now: time.Now}
}

func (s *MemoryStore) Save(_ context.Context, session *models.CheckoutSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.sessions[session.OrderID]; ok {
		session.ID = existing.ID
		session.CreatedAt = existing.CreatedAt
	}
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	s.sessions[session.OrderID] = *session
	return nil
}

func (s *MemoryStore) UpdateState(_ context.Context, orderID, state, outcome string, uuids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[orderID]
	if !ok {
		return ErrSessionNotFound
	}
	session.State = state
	if outcome != "" {
		session.LastOutcome = outcome
	}
	if len(uuids) > 0 {
		session.TicketUUIDs = append(pq.StringArray(nil), uuids...)
	}
	session.UpdatedAt = s.now()
	s.sessions[orderID] = session
	return nil
}

func (s *MemoryStore) Get(_ context.Context, orderID string) (*models.CheckoutSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[orderID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

func (s *MemoryStore) List(_ context.Context, state string, p utils.Pagination) ([]models.CheckoutSession, int64, error) {
	s.mu.RLock()
	all := make([]models.CheckoutSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		if state == "" || session.State == state {
			all = append(all, session)
		}
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].OrderID < all[j].OrderID
	})

	total := int64(len(all))
	if p.Offset >= len(all) {
		return []models.CheckoutSession{}, total, nil
	}
	end := p.Offset + p.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[p.Offset:end], total, nil
}
