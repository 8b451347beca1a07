package amqp

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	amqp091 "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"

	"github.com/ogurasousui/codex-library-loans/internal/core/loan"
)

const (
	// RoutingKeyLoanCreated は貸出作成イベントのルーティングキーです。
	RoutingKeyLoanCreated = "loan.created"

	exchangeKind    = "topic"
	contentTypeJSON = "application/json"
	dueDateLayout   = time.DateOnly
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher は RabbitMQ の topic exchange へ貸出イベントを送信します。
type Publisher struct {
	conn     *amqp091.Connection
	ch       channel
	exchange string
	now      func() time.Time
}

// Dial は RabbitMQ へ接続し、exchange を宣言した Publisher を返します。
func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, exchangeKind, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: declare exchange %s: %w", exchange, err)
	}

	p := newPublisher(ch, exchange)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string) *Publisher {
	return &Publisher{
		ch:       ch,
		exchange: exchange,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type loanCreatedEvent struct {
	LoanID     string    `json:"loanId"`
	BookID     string    `json:"bookId"`
	BookName   string    `json:"bookName"`
	UserID     string    `json:"userId"`
	LoanDate   time.Time `json:"loanDate"`
	DueDate    string    `json:"dueDate"`
	OccurredAt time.Time `json:"occurredAt"`
}

// PublishLoanCreated は loan.created イベントを永続メッセージとして送信します。
func (p *Publisher) PublishLoanCreated(ctx context.Context, created *loan.Loan) error {
	if created == nil {
		return fmt.Errorf("amqp: loan is required")
	}

	now := p.now()
	body, err := json.Marshal(loanCreatedEvent{
		LoanID:     created.ID,
		BookID:     created.BookID,
		BookName:   created.BookName,
		UserID:     created.UserID,
		LoanDate:   created.LoanDate,
		DueDate:    created.DueDate.Format(dueDateLayout),
		OccurredAt: now,
	})
	if err != nil {
		return fmt.Errorf("amqp: encode event: %w", err)
	}

	headers := amqp091.Table{}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier(headers))

	msg := amqp091.Publishing{
		Headers:      headers,
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp091.Persistent,
		MessageId:    created.ID,
		Timestamp:    now,
		Type:         RoutingKeyLoanCreated,
		Body:         body,
	}

	if err := p.ch.PublishWithContext(ctx, p.exchange, RoutingKeyLoanCreated, false, false, msg); err != nil {
		return fmt.Errorf("amqp: publish %s: %w", RoutingKeyLoanCreated, err)
	}
	return nil
}

// Close はチャネルと接続を閉じます。
func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// headerCarrier は AMQP ヘッダーをトレースコンテキストの伝搬に使います。
type headerCarrier amqp091.Table

func (c headerCarrier) Get(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	c[key] = value
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
