// Package bot turns one inbound chat message into exactly one reply. Text is routed
// through an ordered list of intent rules; images go straight to receipt extraction.
package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"expensebot/internal/ai"
	"expensebot/internal/core"
	"expensebot/internal/format"
	"expensebot/internal/log"
	"expensebot/internal/storage"
)

// Sender delivers a reply to a chat user.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
}

// MediaDownloader fetches an inbound image by its platform media id.
type MediaDownloader interface {
	DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error)
}

// ExpenseMirror receives every saved expense, for example a spreadsheet copy.
type ExpenseMirror interface {
	MirrorExpense(ctx context.Context, user core.User, e core.ExpenseRecord) error
}

type Deps struct {
	Repo      storage.Repository
	Extractor ai.Extractor
	Sender    Sender
	Media     MediaDownloader
	Mirror    ExpenseMirror
	Logger    *log.Logger
}

type Config struct {
	DefaultTimezone string
	CurrencySymbol  string
}

type Dispatcher struct {
	repo   storage.Repository
	ai     ai.Extractor
	sender Sender
	media  MediaDownloader
	mirror ExpenseMirror
	fmt    format.Formatter
	tz     string
	now    func() time.Time
	logger *log.Logger
	rules  []rule
}

func New(deps Deps, cfg Config) *Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	tz := cfg.DefaultTimezone
	if tz == "" {
		tz = "UTC"
	}
	d := &Dispatcher{
		repo:   deps.Repo,
		ai:     deps.Extractor,
		sender: deps.Sender,
		media:  deps.Media,
		mirror: deps.Mirror,
		fmt:    format.New(cfg.CurrencySymbol),
		tz:     tz,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentBot),
	}
	d.rules = d.buildRules()
	return d
}

// request is everything a handler needs about the message being answered.
type request struct {
	user  core.User
	msg   core.InboundMessage
	raw   string // trimmed original text
	text  string // lower-cased, whitespace-collapsed text
	now   time.Time
	today core.Date
}

// Handle answers msg. It never returns an error: failures are logged and turned
// into a reply, and a failed delivery is only logged.
func (d *Dispatcher) Handle(ctx context.Context, msg core.InboundMessage) {
	logger := d.logger.With(log.FieldMessageID, msg.ID, log.FieldUser, msg.From)
	reply, intent := d.reply(log.NewContext(ctx, logger), msg)
	if reply == "" {
		messagesTotal.WithLabelValues(string(intent), "none").Inc()
		return
	}
	if err := d.sender.SendText(ctx, msg.From, reply); err != nil {
		messagesTotal.WithLabelValues(string(intent), "failed").Inc()
		logger.ErrorContext(ctx, "reply delivery failed",
			log.FieldOperation, log.OpSend, log.FieldIntent, intent, log.FieldError, err)
		return
	}
	messagesTotal.WithLabelValues(string(intent), "sent").Inc()
	logger.InfoContext(ctx, "message handled", log.FieldIntent, intent, log.FieldMessageTyp, string(msg.Type))
}

func (d *Dispatcher) reply(ctx context.Context, msg core.InboundMessage) (reply string, in Intent) {
	in = IntentUnknown
	defer func() {
		if r := recover(); r != nil {
			log.FromContext(ctx).ErrorContext(ctx, "handler panic", log.FieldIntent, in,
				log.FieldError, fmt.Sprint(r), "stack", string(debug.Stack()))
			reply = ApologyMessage
		}
	}()

	now := d.now()
	user, err := d.repo.TouchUser(ctx, msg.From, msg.SenderName, d.tz, now)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "touch user failed", log.FieldError, err)
		return ApologyMessage, in
	}
	req := &request{
		user:  user,
		msg:   msg,
		now:   now.In(user.Location()),
		today: user.Today(now),
	}

	var handle handlerFunc
	switch msg.Type {
	case core.MessageText:
		req.raw, req.text = normalizeText(msg.Text)
		var r rule
		r, in = d.classify(req.text)
		handle = r.handle
	case core.MessageImage:
		in, handle = IntentReceipt, d.handleReceipt
	default:
		in, handle = IntentUnsupported, func(context.Context, *request) (string, error) {
			return UnsupportedMessage, nil
		}
	}

	out, err := handle(ctx, req)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "handler failed", log.FieldIntent, in, log.FieldError, err)
		return ApologyMessage, in
	}
	return out, in
}
