package services

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/example/tiketa/internal/logging"
	"github.com/example/tiketa/internal/utils"
)

const whatsappService = "whatsapp relay"

// WhatsAppService forwards messages to the third-party WhatsApp relay.
type WhatsAppService struct {
	relayURL    string
	token       string
	countryCode string
	client      *http.Client
	log         *logrus.Entry
}

// NewWhatsAppService creates a new WhatsAppService.
func NewWhatsAppService(relayURL, token, countryCode string, log *logrus.Entry) *WhatsAppService {
	if countryCode == "" {
		countryCode = utils.DefaultCountryCode
	}
	if log == nil {
		log = logging.Component(nil, "whatsapp")
	}
	return &WhatsAppService{
		relayURL:    relayURL,
		token:       strings.TrimSpace(token),
		countryCode: countryCode,
		client:      httpClient,
		log:         log,
	}
}

type relayMessage struct {
	Target      string `json:"target"`
	Message     string `json:"message"`
	CountryCode string `json:"countryCode"`
}

// Send normalizes the recipient and relays the message. It fails closed when the
// relay token is missing.
func (s *WhatsAppService) Send(ctx context.Context, to, message string) (json.RawMessage, error) {
	if s.token == "" || s.relayURL == "" {
		return nil, &ConfigurationError{Setting: "WA_RELAY_TOKEN"}
	}

	target := utils.ToWaWithCountry(to, s.countryCode)
	if target == "" {
		return nil, &ValidationError{Field: "to", Message: "to is required"}
	}
	if strings.TrimSpace(message) == "" {
		return nil, &ValidationError{Field: "message", Message: "message is required"}
	}

	resp, err := doRequest(ctx, s.client, whatsappService, s.relayURL, RequestOpts{
		Method:  http.MethodPost,
		Headers: map[string]string{"Authorization": s.token},
		Body: relayMessage{
			Target:      target,
			Message:     message,
			CountryCode: s.countryCode,
		},
	})
	if err != nil {
		s.log.WithError(err).Error("relay unreachable")
		return nil, err
	}
	if !resp.OK() {
		return nil, &UpstreamError{Service: whatsappService, Status: resp.Status, Message: upstreamMessage(resp.Body), Payload: resp.Body}
	}

	// The relay reports delivery refusals as 200 with status=false.
	var ack struct {
		Status *bool  `json:"status"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(resp.Body, &ack); err == nil && ack.Status != nil && !*ack.Status {
		if ack.Reason == "" {
			ack.Reason = "relay rejected the message"
		}
		return nil, &UpstreamError{Service: whatsappService, Message: ack.Reason, Payload: resp.Body}
	}

	s.log.WithField("target", target).Info("message relayed")
	return json.RawMessage(resp.Body), nil
}
