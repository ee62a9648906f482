package services

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/tiketa/internal/logging"
	"github.com/example/tiketa/internal/utils"
)

const telegramService = "telegram"

// TelegramService handles sending notifications to Telegram.
type TelegramService struct {
	botToken    string
	adminChatID string
	apiURL      string
	client      *http.Client
	log         *logrus.Entry
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string, log *logrus.Entry) *TelegramService {
	if log == nil {
		log = logging.Component(nil, "telegram")
	}
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		apiURL:      "https://api.telegram.org",
		client:      httpClient,
		log:         log,
	}
}

// WithAPIURL points the service at a different Bot API host.
func (s *TelegramService) WithAPIURL(apiURL string) *TelegramService {
	s.apiURL = strings.TrimRight(apiURL, "/")
	return s
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		s.log.Debug("bot token not configured")
		return nil
	}

	resp, err := doRequest(ctx, s.client, telegramService, s.apiURL, RequestOpts{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/bot%s/sendMessage", s.botToken),
		Body: telegramMessage{
			ChatID:    chatID,
			Text:      text,
			ParseMode: "HTML",
		},
	})
	if err != nil {
		s.log.WithError(err).Error("failed to send message")
		return err
	}

	if resp.Status != http.StatusOK {
		s.log.WithField("status", resp.Status).Warn("unexpected status")
		return &UpstreamError{Service: telegramService, Status: resp.Status, Message: upstreamMessage(resp.Body)}
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s.adminChatID == "" {
		s.log.Debug("admin chat ID not configured")
		return nil
	}
	return s.SendMessage(ctx, s.adminChatID, text)
}

// TicketNotice contains confirmed-ticket data for the admin chat.
type TicketNotice struct {
	OrderID     string
	BuyerName   string
	BuyerPhone  string
	EventTitle  string
	GrossAmount int64
	ConfirmedAt time.Time
	Tickets     []NoticeTicket
}

// NoticeTicket is one ticket of a notice. Name is empty when the lookup failed.
type NoticeTicket struct {
	UUID string
	Name string
}

// NotifyTicketConfirmed tells admins an order turned into tickets.
func (s *TelegramService) NotifyTicketConfirmed(ctx context.Context, notice TicketNotice) error {
	if s.adminChatID == "" {
		return nil
	}
	return s.SendToAdmin(ctx, TicketNoticeText(notice))
}

// TicketNoticeText renders the admin notice as Telegram HTML.
func TicketNoticeText(notice TicketNotice) string {
	var tickets strings.Builder
	for i, t := range notice.Tickets {
		name := t.Name
		if name == "" {
			name = "-"
		}
		tickets.WriteString(fmt.Sprintf("%d. <code>%s</code> %s\n", i+1, html.EscapeString(t.UUID), html.EscapeString(name)))
	}

	total := "-"
	if notice.GrossAmount > 0 {
		total = utils.FormatRupiah(notice.GrossAmount)
	}

	message := fmt.Sprintf(`<b>🎟 TIKET TERKONFIRMASI</b>
<b>📋 Order:</b> %s
<b>🎪 Acara:</b> %s
<b>👤 Pembeli:</b> %s
<b>📞 Telepon:</b> %s
<b>💰 Total:</b> %s
<b>📅 Tanggal:</b> %s
<b>🎫 Tiket:</b>
%s━━━━━━━━━━━━━━━━━━`,
		html.EscapeString(notice.OrderID),
		html.EscapeString(notice.EventTitle),
		html.EscapeString(notice.BuyerName),
		html.EscapeString(utils.ToWa(notice.BuyerPhone)),
		total,
		utils.FormatDate(notice.ConfirmedAt),
		tickets.String(),
	)

	return strings.TrimSpace(message)
}
