package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/tiketa/internal/cache"
	"github.com/example/tiketa/internal/events"
	"github.com/example/tiketa/internal/models"
)

type fakeTickets struct{}

func (fakeTickets) GetTicket(_ context.Context, id string) (*models.TicketTransaction, error) {
	return &models.TicketTransaction{UUID: id, Name: "Sari", Phone: "0812", EventTitle: "Jazz Night", TicketName: "VIP"}, nil
}

type fakeMessenger struct {
	sent []string
	err  error
}

func (f *fakeMessenger) Send(_ context.Context, to, message string) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, to+"|"+message)
	return json.RawMessage(`{}`), nil
}

type fakeAdmins struct {
	notices []TicketNotice
}

func (f *fakeAdmins) NotifyTicketConfirmed(_ context.Context, notice TicketNotice) error {
	f.notices = append(f.notices, notice)
	return nil
}

func TestTicketNotifier_AtMostOncePerOrder(t *testing.T) {
	messenger := &fakeMessenger{}
	admins := &fakeAdmins{}
	n := NewTicketNotifier(fakeTickets{}, messenger, admins, cache.NewMemoryStore(), "https://tiketa.id/tickets/", nil, nil)

	evt := events.NewTicketConfirmed("ORD-1", []string{"u-1", "u-2"}, "Sari", "0812")
	require.NoError(t, n.Handle(context.Background(), evt))
	require.NoError(t, n.Handle(context.Background(), evt))

	require.Len(t, messenger.sent, 2)
	assert.Contains(t, messenger.sent[0], "https://tiketa.id/tickets/u-1")
	assert.Contains(t, messenger.sent[1], "https://tiketa.id/tickets/u-2")
	require.Len(t, admins.notices, 1)
	assert.Equal(t, "Jazz Night", admins.notices[0].EventTitle)
	assert.Equal(t, []NoticeTicket{{UUID: "u-1", Name: "VIP"}, {UUID: "u-2", Name: "VIP"}}, admins.notices[0].Tickets)
}

type partialTickets struct{}

func (partialTickets) GetTicket(_ context.Context, id string) (*models.TicketTransaction, error) {
	if id == "u-1" {
		return nil, &UpstreamError{Service: "backend", Status: 404, Message: "not found"}
	}
	return &models.TicketTransaction{UUID: id, Phone: "0812", EventTitle: "Jazz Night", TicketName: "Tier " + id}, nil
}

func TestTicketNotifier_FailedLookupKeepsTicketsAligned(t *testing.T) {
	messenger := &fakeMessenger{}
	admins := &fakeAdmins{}
	n := NewTicketNotifier(partialTickets{}, messenger, admins, cache.NewMemoryStore(), "/tickets/", nil, nil)

	evt := events.NewTicketConfirmed("ORD-4", []string{"u-1", "u-2", "u-3"}, "Sari", "0812")
	require.NoError(t, n.Handle(context.Background(), evt))

	assert.Len(t, messenger.sent, 2)
	require.Len(t, admins.notices, 1)
	assert.Equal(t, []NoticeTicket{
		{UUID: "u-1"},
		{UUID: "u-2", Name: "Tier u-2"},
		{UUID: "u-3", Name: "Tier u-3"},
	}, admins.notices[0].Tickets)

	text := TicketNoticeText(admins.notices[0])
	assert.Contains(t, text, "1. <code>u-1</code> -")
	assert.Contains(t, text, "2. <code>u-2</code> Tier u-2")
	assert.Contains(t, text, "3. <code>u-3</code> Tier u-3")
}

func TestTicketNotifier_MessagesCarryAmountAndDate(t *testing.T) {
	messenger := &fakeMessenger{}
	admins := &fakeAdmins{}
	n := NewTicketNotifier(fakeTickets{}, messenger, admins, cache.NewMemoryStore(), "/tickets/", nil, nil)

	evt := events.NewTicketConfirmed("ORD-5", []string{"u-1"}, "Sari", "0812")
	evt.GrossAmount = 152000
	evt.ConfirmedAt = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, n.Handle(context.Background(), evt))

	require.Len(t, messenger.sent, 1)
	assert.Contains(t, messenger.sent[0], "Dikonfirmasi: 1 Maret 2025")

	require.Len(t, admins.notices, 1)
	text := TicketNoticeText(admins.notices[0])
	assert.Contains(t, text, "Rp 152.000")
	assert.Contains(t, text, "1 Maret 2025")
}

func TestTicketNotifier_ReleasesClaimWhenNothingSent(t *testing.T) {
	messenger := &fakeMessenger{err: errors.New("relay down")}
	admins := &fakeAdmins{}
	store := cache.NewMemoryStore()
	n := NewTicketNotifier(fakeTickets{}, messenger, admins, store, "/tickets/", nil, nil)

	evt := events.NewTicketConfirmed("ORD-2", []string{"u-1"}, "", "")
	require.Error(t, n.Handle(context.Background(), evt))
	assert.Empty(t, admins.notices)

	messenger.err = nil
	require.NoError(t, n.Handle(context.Background(), evt))
	assert.Len(t, messenger.sent, 1)
	assert.Len(t, admins.notices, 1)
}

func TestTicketNotifier_IgnoresEmptyEvents(t *testing.T) {
	messenger := &fakeMessenger{}
	n := NewTicketNotifier(fakeTickets{}, messenger, &fakeAdmins{}, nil, "/tickets/", nil, nil)

	require.NoError(t, n.Handle(context.Background(), events.TicketConfirmed{OrderID: "ORD-3"}))
	assert.Empty(t, messenger.sent)
}
