package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/example/tiketa/internal/logging"
)

const (
	midtransSandboxAppURL    = "https://app.sandbox.midtrans.com"
	midtransProductionAppURL = "https://app.midtrans.com"
	midtransSandboxAPIURL    = "https://api.sandbox.midtrans.com"
	midtransProductionAPIURL = "https://api.midtrans.com"
	midtransScriptPath       = "/snap/snap.js"
	midtransService          = "midtrans"
)

// Bank is one entry of the supported virtual-account enumeration.
type Bank struct {
	Code  string
	Label string
}

var supportedBanks = []Bank{
	{Code: "bca", Label: "BCA"},
	{Code: "bni", Label: "BNI"},
	{Code: "bri", Label: "BRI"},
	{Code: "permata", Label: "Permata"},
	{Code: "cimb", Label: "CIMB Niaga"},
}

// bankMatchOrder scans codes that can hide inside longer names first: "cimbniaga"
// contains "bni".
var bankMatchOrder = []int{4, 3, 0, 1, 2}

// MapBank resolves a free-text bank key. BJB is simulated through Permata in the
// sandbox, anything unrecognized falls back to BCA.
func MapBank(key string) Bank {
	k := strings.ToLower(strings.TrimSpace(key))
	if strings.Contains(k, "bjb") {
		return supportedBanks[3]
	}
	for _, i := range bankMatchOrder {
		if k != "" && strings.Contains(k, supportedBanks[i].Code) {
			return supportedBanks[i]
		}
	}
	return supportedBanks[0]
}

// Customer is the buyer block forwarded to the provider.
type Customer struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// SnapRequest is the create-checkout input.
type SnapRequest struct {
	OrderID     string    `json:"order_id"`
	GrossAmount int64     `json:"gross_amount"`
	Customer    *Customer `json:"customer,omitempty"`
}

// VARequest is the create-bank-transfer input.
type VARequest struct {
	OrderID     string    `json:"order_id"`
	GrossAmount int64     `json:"gross_amount"`
	Bank        string    `json:"bank"`
	Customer    *Customer `json:"customer,omitempty"`
}

// SnapTransaction is the normalized create-checkout result.
type SnapTransaction struct {
	ID          string `json:"id"`
	TotalAmount int64  `json:"total_amount"`
	SnapToken   string `json:"snap_token"`
	PaymentURL  string `json:"payment_url"`
}

// VATransaction is the normalized create-bank-transfer result.
type VATransaction struct {
	ID          string `json:"id"`
	TotalAmount int64  `json:"total_amount"`
	VANumber    string `json:"va_number"`
	VABank      string `json:"va_bank"`
	PaymentURL  string `json:"payment_url"`
}

type transactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type snapPayload struct {
	TransactionDetails transactionDetails `json:"transaction_details"`
	CustomerDetails    *Customer          `json:"customer_details,omitempty"`
}

type chargePayload struct {
	PaymentType        string             `json:"payment_type"`
	TransactionDetails transactionDetails `json:"transaction_details"`
	BankTransfer       struct {
		Bank string `json:"bank"`
	} `json:"bank_transfer"`
	CustomerDetails *Customer `json:"customer_details,omitempty"`
}

type snapResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

type chargeResponse struct {
	StatusCode      string `json:"status_code"`
	StatusMessage   string `json:"status_message"`
	OrderID         string `json:"order_id"`
	PermataVANumber string `json:"permata_va_number"`
	VANumbers       []struct {
		Bank     string `json:"bank"`
		VANumber string `json:"va_number"`
	} `json:"va_numbers"`
	Actions []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"actions"`
}

// MidtransService wraps the payment provider's REST API with server-only credentials.
type MidtransService struct {
	serverKey  string
	clientKey  string
	production bool
	appURL     string
	apiURL     string
	client     *http.Client
	log        *logrus.Entry
}

// NewMidtransService creates a new MidtransService.
func NewMidtransService(serverKey, clientKey string, production bool, log *logrus.Entry) *MidtransService {
	if log == nil {
		log = logging.Component(nil, "midtrans")
	}
	s := &MidtransService{
		serverKey:  strings.TrimSpace(serverKey),
		clientKey:  strings.TrimSpace(clientKey),
		production: production,
		appURL:     midtransSandboxAppURL,
		apiURL:     midtransSandboxAPIURL,
		client:     httpClient,
		log:        log,
	}
	if production {
		s.appURL = midtransProductionAppURL
		s.apiURL = midtransProductionAPIURL
	}
	return s
}

// WithBaseURLs points the service at different hosts, e.g. a test server.
func (s *MidtransService) WithBaseURLs(appURL, apiURL string) *MidtransService {
	s.appURL = strings.TrimRight(appURL, "/")
	s.apiURL = strings.TrimRight(apiURL, "/")
	return s
}

// ScriptURL is the widget script for the configured environment.
func (s *MidtransService) ScriptURL() string {
	if s.production {
		return midtransProductionAppURL + midtransScriptPath
	}
	return midtransSandboxAppURL + midtransScriptPath
}

// ClientKey is the public key the widget script is loaded with.
func (s *MidtransService) ClientKey() string {
	return s.clientKey
}

// Configured reports whether the server credential is present.
func (s *MidtransService) Configured() bool {
	return s.serverKey != ""
}

func (s *MidtransService) authHeaders() map[string]string {
	token := base64.StdEncoding.EncodeToString([]byte(s.serverKey + ":"))
	return map[string]string{"Authorization": "Basic " + token}
}

func (s *MidtransService) precheck(orderID string) error {
	if !s.Configured() {
		return &ConfigurationError{Setting: "MIDTRANS_SERVER_KEY"}
	}
	return required("order_id", strings.TrimSpace(orderID))
}

// CreateSnap mints a hosted checkout session for an order.
func (s *MidtransService) CreateSnap(ctx context.Context, req SnapRequest) (*SnapTransaction, error) {
	if err := s.precheck(req.OrderID); err != nil {
		return nil, err
	}

	resp, err := doRequest(ctx, s.client, midtransService, s.appURL, RequestOpts{
		Method:  http.MethodPost,
		Path:    "/snap/v1/transactions",
		Headers: s.authHeaders(),
		Body: snapPayload{
			TransactionDetails: transactionDetails{OrderID: req.OrderID, GrossAmount: req.GrossAmount},
			CustomerDetails:    req.Customer,
		},
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, s.upstream(resp)
	}

	var parsed snapResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal snap response: %w", err)
	}
	if parsed.Token == "" {
		return nil, &UpstreamError{Service: midtransService, Message: "snap response missing token", Payload: resp.Body}
	}

	s.log.WithField("order_id", req.OrderID).Info("snap checkout created")

	return &SnapTransaction{
		ID:          req.OrderID,
		TotalAmount: req.GrossAmount,
		SnapToken:   parsed.Token,
		PaymentURL:  parsed.RedirectURL,
	}, nil
}

// CreateBankTransfer charges an order through a bank virtual account.
func (s *MidtransService) CreateBankTransfer(ctx context.Context, req VARequest) (*VATransaction, error) {
	if err := s.precheck(req.OrderID); err != nil {
		return nil, err
	}

	bank := MapBank(req.Bank)
	payload := chargePayload{
		PaymentType:        "bank_transfer",
		TransactionDetails: transactionDetails{OrderID: req.OrderID, GrossAmount: req.GrossAmount},
		CustomerDetails:    req.Customer,
	}
	payload.BankTransfer.Bank = bank.Code

	resp, err := doRequest(ctx, s.client, midtransService, s.apiURL, RequestOpts{
		Method:  http.MethodPost,
		Path:    "/v2/charge",
		Headers: s.authHeaders(),
		Body:    payload,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, s.upstream(resp)
	}

	var parsed chargeResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal charge response: %w", err)
	}
	// The charge API answers 200 with the real outcome in status_code.
	if !strings.HasPrefix(parsed.StatusCode, "2") {
		return nil, &UpstreamError{Service: midtransService, Message: upstreamMessage(resp.Body), Payload: resp.Body}
	}

	vaNumber := parsed.PermataVANumber
	if vaNumber == "" && len(parsed.VANumbers) > 0 {
		vaNumber = parsed.VANumbers[0].VANumber
	}

	var paymentURL string
	for _, action := range parsed.Actions {
		if action.URL != "" {
			paymentURL = action.URL
			break
		}
	}

	s.log.WithFields(logrus.Fields{"order_id": req.OrderID, "bank": bank.Code}).Info("virtual account created")

	return &VATransaction{
		ID:          req.OrderID,
		TotalAmount: req.GrossAmount,
		VANumber:    vaNumber,
		VABank:      bank.Label,
		PaymentURL:  paymentURL,
	}, nil
}

// GetStatus queries the provider for the live transaction status. Never cached.
func (s *MidtransService) GetStatus(ctx context.Context, orderID string) (json.RawMessage, error) {
	if err := s.precheck(orderID); err != nil {
		return nil, err
	}

	resp, err := doRequest(ctx, s.client, midtransService, s.apiURL, RequestOpts{
		Method:  http.MethodGet,
		Path:    "/v2/" + url.PathEscape(orderID) + "/status",
		Headers: s.authHeaders(),
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, s.upstream(resp)
	}
	return json.RawMessage(resp.Body), nil
}

func (s *MidtransService) upstream(resp *Response) error {
	message := upstreamMessage(resp.Body)
	s.log.WithFields(logrus.Fields{"status": resp.Status, "message": message}).Warn("provider rejected request")
	return &UpstreamError{Service: midtransService, Status: resp.Status, Message: message, Payload: resp.Body}
}
