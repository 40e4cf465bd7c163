package rabbitmq

import (
	"fmt"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Defaults for the loan event topology.
const (
	DefaultExchange   = "library"
	DefaultQueue      = "loan_events"
	DefaultBindingKey = "loan.*"
)

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.Mutex // guards publishes on channel
	cfg     Config
	logger  *zap.Logger
}

// Config holds RabbitMQ connection details and the event topology.
type Config struct {
	URL        string
	Exchange   string
	Queue      string
	BindingKey string
}

func (c Config) withDefaults() Config {
	if c.Exchange == "" {
		c.Exchange = DefaultExchange
	}
	if c.Queue == "" {
		c.Queue = DefaultQueue
	}
	if c.BindingKey == "" {
		c.BindingKey = DefaultBindingKey
	}
	return c
}

// NewClient connects to RabbitMQ, opens a channel and declares the topic
// exchange plus the durable loan event queue bound to it.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Info("rabbitmq client connected",
		zap.String("exchange", cfg.Exchange),
		zap.String("queue", cfg.Queue))

	return &Client{
		conn:    conn,
		channel: ch,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

func declareTopology(ch *amqp.Channel, cfg Config) error {
	err := ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // kind
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	_, err = ch.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", cfg.Queue, err)
	}

	if err := ch.QueueBind(cfg.Queue, cfg.BindingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", cfg.Queue, err)
	}
	return nil
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing RabbitMQ client: %v", errs)
	}
	return nil
}

// Publish sends a persistent JSON message to exchange with routingKey.
func (c *Client) Publish(exchange, routingKey string, body []byte) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.channel.Publish(
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.Debug("event published", zap.String("routing_key", routingKey))
	return nil
}

// MessageHandler processes one delivery. A nil error acknowledges it.
type MessageHandler func(msg amqp.Delivery) error

// ConsumeLoanEvents starts a goroutine that feeds deliveries from the loan
// event queue to handler until the channel closes. Failed deliveries are
// rejected without requeue so a poison message cannot loop forever.
func (c *Client) ConsumeLoanEvents(handler MessageHandler) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	msgs, err := c.channel.Consume(
		c.cfg.Queue, // queue
		"",          // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("waiting for loan events", zap.String("queue", c.cfg.Queue))

	go func() {
		for msg := range msgs {
			dispatch(c.logger, handler, msg)
		}
		c.logger.Info("loan event consumer stopped")
	}()

	return nil
}

func dispatch(logger *zap.Logger, handler MessageHandler, msg amqp.Delivery) {
	if err := handler(msg); err != nil {
		logger.Warn("failed to process message",
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err))
		if nackErr := msg.Nack(false, false); nackErr != nil {
			logger.Error("failed to nack message", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(nackErr))
		}
		return
	}
	if ackErr := msg.Ack(false); ackErr != nil {
		logger.Error("failed to ack message", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(ackErr))
	}
}

// LoanEvent is the payload of a loan lifecycle message.
type LoanEvent struct {
	Event      string `json:"event"`
	LoanID     uint   `json:"id_emprestimo"`
	BookID     uint   `json:"livro_id"`
	UserID     uint   `json:"usuario_id"`
	OccurredAt string `json:"occurred_at"`
}

// DecodeLoanEvent parses a loan event body.
func DecodeLoanEvent(body []byte) (LoanEvent, error) {
	var event LoanEvent
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(body, &event); err != nil {
		return LoanEvent{}, fmt.Errorf("failed to decode loan event: %w", err)
	}
	if event.Event == "" || event.LoanID == 0 {
		return LoanEvent{}, fmt.Errorf("incomplete loan event: %s", body)
	}
	return event, nil
}

// LogLoanEvents returns a handler that records each loan event in the log.
func LogLoanEvents(logger *zap.Logger) MessageHandler {
	return func(msg amqp.Delivery) error {
		event, err := DecodeLoanEvent(msg.Body)
		if err != nil {
			return err
		}
		logger.Info("loan event",
			zap.String("event", event.Event),
			zap.String("routing_key", msg.RoutingKey),
			zap.Uint("loan_id", event.LoanID),
			zap.Uint("book_id", event.BookID),
			zap.Uint("user_id", event.UserID),
			zap.String("occurred_at", event.OccurredAt))
		return nil
	}
}
