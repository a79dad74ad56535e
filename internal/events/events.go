// Package events publishes post-commit wallet notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const (
	TypeBalanceUpdated     = "balance.updated"
	TypeTransactionCreated = "transaction.created"
	TypeWithdrawalCreated  = "withdrawal.created"
	TypeWithdrawalUpdated  = "withdrawal.updated"
)

type Event struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

type Publisher interface {
	Publish(ctx context.Context, subject string, ev Event) error
}

func BalanceSubject(userID string) string     { return "wallet.balances." + userID }
func TransactionSubject(userID string) string { return "wallet.transactions." + userID }
func WithdrawalSubject(userID string) string  { return "wallet.withdrawals." + userID }

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error { return nil }

type NATSPublisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

func Connect(url, token string, logger zerolog.Logger) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("wallet-service"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &NATSPublisher{conn: conn, logger: logger}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// Notifier publishes best-effort: errors are logged and swallowed.
type Notifier struct {
	pub    Publisher
	logger zerolog.Logger
	now    func() time.Time
}

func NewNotifier(pub Publisher, logger zerolog.Logger) *Notifier {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Notifier{pub: pub, logger: logger, now: time.Now}
}

func (n *Notifier) Notify(ctx context.Context, subject, eventType string, data any) {
	ev := Event{Type: eventType, At: n.now().UTC(), Data: data}
	if err := n.pub.Publish(ctx, subject, ev); err != nil {
		n.logger.Warn().Err(err).Str("subject", subject).Str("type", eventType).Msg("Event publish failed")
	}
}
