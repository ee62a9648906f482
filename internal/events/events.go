package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/example/tiketa/internal/logging"
)

// ErrDisabled is returned when no brokers are configured.
var ErrDisabled = errors.New("kafka disabled")

// TicketConfirmed is published once an order resolves to durable tickets.
type TicketConfirmed struct {
	EventID     uuid.UUID `json:"event_id"`
	OrderID     string    `json:"order_id"`
	UUIDs       []string  `json:"uuids"`
	BuyerName   string    `json:"buyer_name,omitempty"`
	BuyerPhone  string    `json:"buyer_phone,omitempty"`
	GrossAmount int64     `json:"gross_amount,omitempty"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// NewTicketConfirmed stamps a fresh event.
func NewTicketConfirmed(orderID string, uuids []string, buyerName, buyerPhone string) TicketConfirmed {
	return TicketConfirmed{
		EventID:     uuid.New(),
		OrderID:     orderID,
		UUIDs:       append([]string(nil), uuids...),
		BuyerName:   buyerName,
		BuyerPhone:  buyerPhone,
		ConfirmedAt: time.Now().UTC(),
	}
}

// Handler processes one TicketConfirmed event.
type Handler func(ctx context.Context, evt TicketConfirmed) error

// Publisher emits TicketConfirmed events.
type Publisher interface {
	PublishTicketConfirmed(ctx context.Context, evt TicketConfirmed) error
}

// Client holds the broker list.
type Client struct {
	Brokers []string
}

// NewClient parses a comma-separated broker list.
func NewClient(brokersCSV string) *Client {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return &Client{Brokers: brokers}
}

func (c *Client) Enabled() bool {
	return len(c.Brokers) > 0
}

func (c *Client) NewWriter(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

func (c *Client) NewReader(topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.Brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher writes events keyed by order id so one order stays on one partition.
type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) PublishTicketConfirmed(ctx context.Context, evt TicketConfirmed) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(evt.OrderID), Value: data, Time: time.Now().UTC()})
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Consume feeds messages to handle until ctx is done. A message is committed after
// the handler returns, even on failure, so one poisoned order does not block the topic.
func Consume(ctx context.Context, reader MessageReader, handle Handler, log *logrus.Entry) error {
	if log == nil {
		log = logging.Component(nil, "events")
	}

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var evt TicketConfirmed
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			log.WithError(err).WithField("offset", msg.Offset).Warn("skipping malformed event")
		} else if err := handle(ctx, evt); err != nil {
			log.WithError(err).WithField("order_id", evt.OrderID).Error("event handler failed")
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// DirectDispatcher runs the handler in-process when no broker is configured.
type DirectDispatcher struct {
	handle  Handler
	timeout time.Duration
	log     *logrus.Entry
}

func NewDirectDispatcher(handle Handler, log *logrus.Entry) *DirectDispatcher {
	if log == nil {
		log = logging.Component(nil, "events")
	}
	return &DirectDispatcher{handle: handle, timeout: 30 * time.Second, log: log}
}

// PublishTicketConfirmed returns immediately; the handler runs on its own goroutine
// with a context detached from the caller's request.
func (d *DirectDispatcher) PublishTicketConfirmed(_ context.Context, evt TicketConfirmed) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.handle(ctx, evt); err != nil {
			d.log.WithError(err).WithField("order_id", evt.OrderID).Error("event handler failed")
		}
	}()
	return nil
}
