// Package publisher handles publishing sweep events to RabbitMQ.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/m0h1nd4/parallel-ping-sweeper/internal/sweeper"
)

// Publisher sends CloudEvents to RabbitMQ.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.SugaredLogger
}

// CloudEvent represents the CloudEvents 1.0 specification structure.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	ID              string      `json:"id"`
	Time            string      `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`
}

// HostOnlineData represents data for a host that answered a probe.
type HostOnlineData struct {
	SweepID   string   `json:"sweep_id"`
	Network   string   `json:"network"`
	IP        string   `json:"ip"`
	RTTMillis *float64 `json:"rtt_ms,omitempty"`
}

// SweepCompletedData represents data for a finished sweep.
type SweepCompletedData struct {
	SweepID     string `json:"sweep_id"`
	Network     string `json:"network"`
	Hosts       int    `json:"hosts"`
	Online      int    `json:"online"`
	GeneratedAt string `json:"generated_at"`
}

// New creates a new Publisher connected to RabbitMQ.
func New(url, exchange string, logger *zap.SugaredLogger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &Publisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// Close closes the RabbitMQ connection.
func (p *Publisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// PublishResult publishes one host.online event per online host followed by
// a sweep.completed summary. Publish failures are logged and counted but do
// not interrupt the remaining events.
func (p *Publisher) PublishResult(sweepID string, result *sweeper.Result) error {
	failures := 0
	for _, outcome := range result.Outcomes {
		if !outcome.Online {
			continue
		}
		data := HostOnlineData{
			SweepID:   sweepID,
			Network:   result.Network.String(),
			IP:        outcome.IP,
			RTTMillis: outcome.RTTMillis,
		}
		if err := p.publish(p.createEvent("sweep.host.online", data), "host.online"); err != nil {
			failures++
			p.logger.Errorw("Failed to publish host event", "ip", outcome.IP, "error", err)
		}
	}

	completed := SweepCompletedData{
		SweepID:     sweepID,
		Network:     result.Network.String(),
		Hosts:       len(result.Outcomes),
		Online:      result.OnlineCount,
		GeneratedAt: result.GeneratedAt.UTC().Format(time.RFC3339),
	}
	if err := p.publish(p.createEvent("sweep.completed", completed), "sweep.completed"); err != nil {
		return fmt.Errorf("failed to publish completion event: %w", err)
	}

	if failures > 0 {
		return fmt.Errorf("%d host events failed to publish", failures)
	}
	return nil
}

func (p *Publisher) createEvent(eventType string, data interface{}) CloudEvent {
	return CloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          "/tools/parallel-ping-sweeper",
		ID:              uuid.New().String(),
		Time:            time.Now().UTC().Format(time.RFC3339),
		DataContentType: "application/json",
		Data:            data,
	}
}

func (p *Publisher) publish(event CloudEvent, routingKey string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/cloudevents+json",
			Body:        body,
			MessageId:   event.ID,
			Timestamp:   time.Now(),
		},
	)

	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debugw("Event published",
		"type", event.Type,
		"id", event.ID,
		"routing_key", routingKey,
	)

	return nil
}
