// Package webhook unpacks verified webhook payloads into individual chat messages and
// hands each one to the dispatcher.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"expensebot/internal/cache"
	"expensebot/internal/core"
	"expensebot/internal/log"
	"expensebot/internal/whatsapp"
)

// ErrUnknownObject is returned for payloads that are not WhatsApp Business Account events.
var ErrUnknownObject = errors.New("unknown webhook object")

// MessageHandler consumes one inbound message.
type MessageHandler interface {
	Handle(ctx context.Context, msg core.InboundMessage)
}

// Processor is safe for concurrent use.
type Processor struct {
	handler MessageHandler
	seen    *cache.LRUCache[struct{}]
	logger  *log.Logger
}

type Option func(*Processor)

// WithDedup drops messages whose id was already processed within ttl.
// A ttl of zero leaves dedup off.
func WithDedup(ttl time.Duration, size int) Option {
	return func(p *Processor) {
		if ttl > 0 {
			p.seen = cache.NewLRUCache[struct{}](size, ttl)
		}
	}
}

func NewProcessor(handler MessageHandler, logger *log.Logger, opts ...Option) *Processor {
	p := &Processor{handler: handler, logger: logger.WithComponent(log.ComponentWebhook)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DedupCache exposes the dedup cache so it can be purged periodically. Nil when dedup is off.
func (p *Processor) DedupCache() *cache.LRUCache[struct{}] { return p.seen }

// Decode parses a raw payload and checks the envelope object.
func Decode(payload []byte) (whatsapp.Envelope, error) {
	var env whatsapp.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Object != whatsapp.ObjectBusinessAccount {
		return env, fmt.Errorf("%w: %q", ErrUnknownObject, env.Object)
	}
	return env, nil
}

// Process decodes payload and dispatches every message in it.
func (p *Processor) Process(ctx context.Context, payload []byte) error {
	env, err := Decode(payload)
	if err != nil {
		return err
	}
	p.ProcessEnvelope(ctx, env)
	return nil
}

// ProcessEnvelope walks entries and their "messages" changes. Status updates are logged only.
func (p *Processor) ProcessEnvelope(ctx context.Context, env whatsapp.Envelope) {
	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			if change.Field != whatsapp.FieldMessages {
				p.logger.Debug("Ignoring change", "field", change.Field, "entry", entry.ID)
				continue
			}
			for _, st := range change.Value.Statuses {
				p.logStatus(st)
			}
			for _, m := range change.Value.Messages {
				if p.duplicate(m.ID) {
					p.logger.Info("Skipping duplicate message", log.FieldMessageID, m.ID)
					continue
				}
				msg := m.Inbound(change.Value.SenderName(m.From))
				p.logger.DebugContext(ctx, "Dispatching message",
					log.FieldOperation, log.OpDispatch,
					log.FieldMessageID, msg.ID,
					log.FieldMessageTyp, string(msg.Type),
				)
				p.handler.Handle(ctx, msg)
			}
		}
	}
}

func (p *Processor) duplicate(id string) bool {
	if p.seen == nil || id == "" {
		return false
	}
	return !p.seen.Add(id, struct{}{})
}

func (p *Processor) logStatus(st whatsapp.Status) {
	if len(st.Errors) > 0 {
		p.logger.Warn("Message delivery failed",
			log.FieldMessageID, st.ID,
			"status", st.Status,
			"error_code", st.Errors[0].Code,
			"error_title", st.Errors[0].Title,
		)
		return
	}
	p.logger.Debug("Message status", log.FieldMessageID, st.ID, "status", st.Status)
}
