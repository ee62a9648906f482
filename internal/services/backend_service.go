package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/example/tiketa/internal/logging"
	"github.com/example/tiketa/internal/models"
)

const backendService = "backend"

// BackendService talks to the external ticket backend with its shared API key.
type BackendService struct {
	baseURL      string
	apiKey       string
	apiKeyHeader string
	client       *http.Client
	log          *logrus.Entry
}

// NewBackendService creates a new BackendService.
func NewBackendService(baseURL, apiKey, apiKeyHeader string, log *logrus.Entry) *BackendService {
	if apiKeyHeader == "" {
		apiKeyHeader = "x-api-key"
	}
	if log == nil {
		log = logging.Component(nil, "backend")
	}
	return &BackendService{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		apiKeyHeader: apiKeyHeader,
		client:       httpClient,
		log:          log,
	}
}

// Do performs a backend request and turns non-2xx answers into UpstreamError.
func (s *BackendService) Do(ctx context.Context, opts RequestOpts) (*Response, error) {
	if s.baseURL == "" {
		return nil, &ConfigurationError{Setting: "BACKEND_API_URL"}
	}

	headers := make(map[string]string, len(opts.Headers)+1)
	for k, v := range opts.Headers {
		headers[k] = v
	}
	if s.apiKey != "" {
		headers[s.apiKeyHeader] = s.apiKey
	}
	opts.Headers = headers

	resp, err := doRequest(ctx, s.client, backendService, s.baseURL, opts)
	if err != nil {
		s.log.WithError(err).WithField("path", opts.Path).Error("backend request failed")
		return nil, err
	}
	if !resp.OK() {
		message := upstreamMessage(resp.Body)
		s.log.WithFields(logrus.Fields{"path": opts.Path, "status": resp.Status}).Warn("backend rejected request")
		return nil, &UpstreamError{Service: backendService, Status: resp.Status, Message: message, Payload: resp.Body}
	}
	return resp, nil
}

// CreateTransactionRequest is one pending transaction for one ticket holder.
type CreateTransactionRequest struct {
	EventID     int64               `json:"event_id"`
	TicketID    int64               `json:"ticket_id"`
	Quantity    int                 `json:"quantity"`
	GrossAmount int64               `json:"gross_amount"`
	Buyer       models.Buyer        `json:"buyer"`
	Holder      models.TicketHolder `json:"holder"`
}

// CreateTransaction asks the backend to open a pending transaction and a checkout token.
func (s *BackendService) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*models.PendingTransaction, error) {
	resp, err := s.Do(ctx, RequestOpts{
		Method: http.MethodPost,
		Path:   "/dashboard/ticket-transactions",
		Body:   req,
	})
	if err != nil {
		return nil, err
	}

	var created struct {
		OrderID     string                   `json:"order_id"`
		SnapToken   string                   `json:"snap_token"`
		Token       string                   `json:"token"`
		GrossAmount int64                    `json:"gross_amount"`
		Status      models.TransactionStatus `json:"status"`
	}
	if err := json.Unmarshal(unwrapData(resp.Body), &created); err != nil {
		return nil, fmt.Errorf("unmarshal create transaction response: %w", err)
	}

	tx := &models.PendingTransaction{
		OrderID:     created.OrderID,
		GrossAmount: created.GrossAmount,
		SnapToken:   created.SnapToken,
		Buyer:       req.Buyer,
		Holder:      req.Holder,
		Status:      created.Status,
	}
	if tx.SnapToken == "" {
		tx.SnapToken = created.Token
	}
	if tx.GrossAmount == 0 {
		tx.GrossAmount = req.GrossAmount
	}
	if tx.Status == "" {
		tx.Status = models.TransactionStatusPending
	}
	return tx, nil
}

// Confirm reconciles a paid order with the backend. The backend is idempotent per order.
func (s *BackendService) Confirm(ctx context.Context, orderID string) (models.ConfirmationResult, error) {
	orderID = strings.TrimSpace(orderID)
	if err := required("order_id", orderID); err != nil {
		return models.ConfirmationResult{}, err
	}

	resp, err := s.Do(ctx, RequestOpts{
		Method: http.MethodPost,
		Path:   "/dashboard/payment/midtrans/confirm",
		Body:   map[string]string{"order_id": orderID},
	})
	if err != nil {
		return models.ConfirmationResult{}, err
	}

	result, err := ParseConfirmation(resp.Body)
	if err != nil {
		return models.ConfirmationResult{}, err
	}
	s.log.WithFields(logrus.Fields{"order_id": orderID, "success": result.Success, "uuids": len(result.UUIDs)}).Info("order confirmed")
	return result, nil
}

// ParseConfirmation normalizes `{success, uuid | uuids[]}`, optionally wrapped in data.
func ParseConfirmation(body []byte) (models.ConfirmationResult, error) {
	type payload struct {
		Success *bool    `json:"success"`
		UUID    string   `json:"uuid"`
		UUIDs   []string `json:"uuids"`
	}

	var outer struct {
		payload
		Data *payload `json:"data"`
	}
	if err := json.Unmarshal(body, &outer); err != nil {
		return models.ConfirmationResult{}, fmt.Errorf("unmarshal confirm response: %w", err)
	}

	p := outer.payload
	if p.UUID == "" && len(p.UUIDs) == 0 && outer.Data != nil {
		if p.Success != nil && outer.Data.Success == nil {
			outer.Data.Success = p.Success
		}
		p = *outer.Data
	}

	result := models.ConfirmationResult{Raw: json.RawMessage(body)}
	for _, id := range append([]string{p.UUID}, p.UUIDs...) {
		id = strings.TrimSpace(id)
		if id != "" && !contains(result.UUIDs, id) {
			result.UUIDs = append(result.UUIDs, id)
		}
	}
	if p.Success != nil {
		result.Success = *p.Success
	} else {
		result.Success = len(result.UUIDs) > 0
	}
	return result, nil
}

// GetTicket fetches one ticket transaction by numeric id or uuid.
func (s *BackendService) GetTicket(ctx context.Context, idOrUUID string) (*models.TicketTransaction, error) {
	idOrUUID = strings.TrimSpace(idOrUUID)
	if err := required("id", idOrUUID); err != nil {
		return nil, err
	}

	resp, err := s.Do(ctx, RequestOpts{
		Method: http.MethodGet,
		Path:   "/dashboard/ticket-transactions/" + url.PathEscape(idOrUUID),
	})
	if err != nil {
		return nil, err
	}

	data := unwrapData(resp.Body)
	var ticket models.TicketTransaction
	if err := json.Unmarshal(data, &ticket); err != nil {
		return nil, fmt.Errorf("unmarshal ticket: %w", err)
	}
	ticket.Raw = data
	return &ticket, nil
}

// SearchTransactions looks up transactions by exact phone match.
func (s *BackendService) SearchTransactions(ctx context.Context, phone string) (json.RawMessage, error) {
	phone = strings.TrimSpace(phone)
	if err := required("phone", phone); err != nil {
		return nil, err
	}

	resp, err := s.Do(ctx, RequestOpts{
		Method: http.MethodGet,
		Path:   "/transactions/search",
		Query:  map[string]string{"phone": phone},
	})
	if err != nil {
		return nil, err
	}
	return unwrapData(resp.Body), nil
}

// CheckInEvents lists events available for door check-in.
func (s *BackendService) CheckInEvents(ctx context.Context, query map[string]string) (json.RawMessage, error) {
	resp, err := s.Do(ctx, RequestOpts{
		Method: http.MethodGet,
		Path:   "/admin/events/check-in",
		Query:  query,
	})
	if err != nil {
		return nil, err
	}
	return unwrapData(resp.Body), nil
}

// CheckIn marks a ticket as used by the given admin.
func (s *BackendService) CheckIn(ctx context.Context, ticketUUID, adminID string) (json.RawMessage, error) {
	ticketUUID = strings.TrimSpace(ticketUUID)
	if err := required("uuid", ticketUUID); err != nil {
		return nil, err
	}

	resp, err := s.Do(ctx, RequestOpts{
		Method: http.MethodPost,
		Path:   "/admin/check-in",
		Body:   map[string]string{"uuid": ticketUUID, "admin_id": adminID},
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"uuid": ticketUUID, "admin_id": adminID}).Info("ticket checked in")
	return unwrapData(resp.Body), nil
}

// GetEvent fetches an event with its ticket tiers by id or slug.
func (s *BackendService) GetEvent(ctx context.Context, idOrSlug string) (*models.Event, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if err := required("event", idOrSlug); err != nil {
		return nil, err
	}

	resp, err := s.Do(ctx, RequestOpts{
		Method: http.MethodGet,
		Path:   "/events/" + url.PathEscape(idOrSlug),
	})
	if err != nil {
		return nil, err
	}

	var event models.Event
	if err := json.Unmarshal(unwrapData(resp.Body), &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &event, nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
