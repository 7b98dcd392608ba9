package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dropDatabas3/portero/internal/domain/repository"
	"github.com/dropDatabas3/portero/internal/observability/logger"
)

// ─── PostgreSQL / memoria ───

// RepoSink persiste en un RequestLogRepository.
type RepoSink struct {
	Repo repository.RequestLogRepository
}

func (s RepoSink) Name() string { return "repo" }

func (s RepoSink) Write(ctx context.Context, l *repository.APIRequestLog) error {
	return s.Repo.Insert(ctx, l)
}

// ─── zap ───

// LogSink emite cada request como línea de log estructurada.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Write(_ context.Context, l *repository.APIRequestLog) error {
	logger.L().Debug("api request",
		logger.Component("audit"),
		logger.ClientID(l.ClientID),
		logger.TenantID(l.TenantID),
		logger.Method(l.Method),
		logger.Path(l.Endpoint),
		logger.Status(l.Status),
		logger.DurationMs(l.DurationMs),
		logger.Bool("rate_limit_hit", l.RateLimitHit),
	)
	return nil
}

// ─── RabbitMQ ───

// Publisher es el subconjunto de *amqp.Channel que usa AMQPSink.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publica cada log como JSON en un exchange topic.
type AMQPSink struct {
	Pub        Publisher
	Exchange   string
	RoutingKey string
}

func (s *AMQPSink) Name() string { return "amqp" }

func (s *AMQPSink) Write(ctx context.Context, l *repository.APIRequestLog) error {
	body, err := json.Marshal(l)
	if err != nil {
		return err
	}
	return s.Pub.PublishWithContext(ctx, s.Exchange, s.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    l.CreatedAt,
		Type:         "api.request",
		Body:         body,
	})
}

// AMQPConn agrupa conexión y canal para cerrarlos juntos.
type AMQPConn struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
}

// DialAMQP conecta y declara el exchange (topic, durable).
func DialAMQP(url, exchange string) (*AMQPConn, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{Heartbeat: 10 * time.Second, Locale: "en_US"})
	if err != nil {
		return nil, fmt.Errorf("amqp: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp: declare %s: %w", exchange, err)
	}
	return &AMQPConn{Conn: conn, Channel: ch}, nil
}

func (c *AMQPConn) Close() error {
	if c == nil {
		return nil
	}
	_ = c.Channel.Close()
	return c.Conn.Close()
}
