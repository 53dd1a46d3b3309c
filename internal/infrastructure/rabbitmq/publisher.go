// Package rabbitmq publica los eventos del ledger en un exchange topic después de cada commit.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/jhoicas/feria-api/internal/application/ports"
	"github.com/jhoicas/feria-api/internal/domain/entity"
	"github.com/jhoicas/feria-api/pkg/logger"
)

var _ ports.CommitHook = (*Publisher)(nil)

const publishTimeout = 3 * time.Second

// channel subconjunto de *amqp091.Channel usado por el publicador.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	IsClosed() bool
	Close() error
}

// Publisher hook post-commit. Los fallos se registran y nunca llegan a la operación que lo disparó.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	ch       channel
	reopen   func() (channel, error)
	exchange string
	log      *logger.Logger
}

// NormalizeURL limpia comillas y espacios y exige esquema amqp/amqps.
func NormalizeURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("la URL de RabbitMQ debe usar amqp:// o amqps://")
	}
	return clean, nil
}

// Dial conecta, abre un canal y declara el exchange durable.
func Dial(rawURL, exchange string, log *logger.Logger) (*Publisher, error) {
	clean, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	conn, err := amqp091.Dial(clean)
	if err != nil {
		return nil, fmt.Errorf("conectar a RabbitMQ: %w", err)
	}
	open := func() (channel, error) { return conn.Channel() }
	ch, err := open()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("abrir canal: %w", err)
	}
	p := newPublisher(ch, open, exchange, log)
	p.conn = conn
	if err := p.declare(ch); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func newPublisher(ch channel, reopen func() (channel, error), exchange string, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{ch: ch, reopen: reopen, exchange: exchange, log: log}
}

func (p *Publisher) declare(ch channel) error {
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declarar exchange %s: %w", p.exchange, err)
	}
	return nil
}

// AfterCommit publica el evento con routing key = tipo de evento.
func (p *Publisher) AfterCommit(ctx context.Context, ev entity.LedgerEvent) {
	if err := p.Publish(ctx, ev); err != nil {
		p.log.Warn().Err(err).
			Str("event", ev.Type).
			Str("ref_id", ev.RefID).
			Msg("publicar evento del ledger")
	}
}

// Publish serializa y envía el evento. Si el canal se cerró intenta reabrirlo una vez.
func (p *Publisher) Publish(ctx context.Context, ev entity.LedgerEvent) error {
	ev.OrgID, ev.EventID = ev.Tenant.OrganizationID, ev.Tenant.EventID
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("serializar evento: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		if p.reopen == nil {
			return errors.New("canal de RabbitMQ cerrado")
		}
		ch, err := p.reopen()
		if err != nil {
			return fmt.Errorf("reabrir canal: %w", err)
		}
		if err := p.declare(ch); err != nil {
			return err
		}
		p.ch = ch
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	return p.ch.PublishWithContext(pubCtx, p.exchange, ev.Type, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    ev.RefID,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	})
}

// Close cierra canal y conexión.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
