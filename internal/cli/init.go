// Package cli wires configuration into the running components shared by the
// serve and worker commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"expensebot/internal/ai"
	"expensebot/internal/ai/openai"
	"expensebot/internal/ai/rules"
	"expensebot/internal/backend"
	"expensebot/internal/bot"
	"expensebot/internal/config"
	"expensebot/internal/format"
	"expensebot/internal/log"
	gsheet "expensebot/internal/sheets/google"
	"expensebot/internal/webhook"
	"expensebot/internal/whatsapp"
)

// dedupCacheSize bounds the number of message ids remembered for dedup.
const dedupCacheSize = 10000

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and installs
// it as the slog default.
func SetupLogger(cfg *config.Config) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Capabilities records which optional integrations came up.
type Capabilities struct {
	AIText    bool
	AIVision  bool
	Messaging bool
	Sheets    bool
}

// Pipeline is everything needed to turn a webhook payload into replies.
type Pipeline struct {
	Backend      *backend.Result
	Dispatcher   *bot.Dispatcher
	Processor    *webhook.Processor
	Capabilities Capabilities
}

func (p *Pipeline) Close() error {
	if p.Backend != nil && p.Backend.Cleanup != nil {
		return p.Backend.Cleanup()
	}
	return nil
}

// BuildPipeline opens storage and assembles extraction, messaging, the optional
// Sheets mirror, the dispatcher and the webhook processor.
func BuildPipeline(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Pipeline, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{Backend: res}
	extractor := buildExtractor(cfg, logger, &p.Capabilities)

	deps := bot.Deps{
		Repo:      res.Repository,
		Extractor: extractor,
		Logger:    logger,
	}
	if cfg.MessagingEnabled() {
		client := whatsapp.NewClient(whatsapp.Config{
			BaseURL:       cfg.WhatsAppAPIBase,
			AccessToken:   cfg.WhatsAppAccessToken,
			PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		}, logger)
		deps.Sender, deps.Media = client, client
		p.Capabilities.Messaging = true
	} else {
		logger.Warn("WhatsApp credentials missing, replies will only be logged")
		fallback := whatsapp.LogSender{Logger: logger.WithComponent(log.ComponentWhatsApp)}
		deps.Sender, deps.Media = fallback, fallback
	}

	if cfg.SheetsEnabled() {
		mirror, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("google sheets mirror: %w", err)
		}
		deps.Mirror = mirror
		p.Capabilities.Sheets = true
		logger.Info("Google Sheets mirror enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	p.Dispatcher = bot.New(deps, bot.Config{
		DefaultTimezone: cfg.DefaultTimezone,
		CurrencySymbol:  cfg.CurrencySymbol,
	})
	p.Processor = webhook.NewProcessor(p.Dispatcher, logger, webhook.WithDedup(cfg.DedupTTL, dedupCacheSize))
	return p, nil
}

func buildExtractor(cfg *config.Config, logger *log.Logger, caps *Capabilities) ai.Extractor {
	opts := []ai.Option{ai.WithTimeout(cfg.AITimeout), ai.WithFormatter(format.New(cfg.CurrencySymbol))}
	if cfg.OpenAIAPIKey != "" {
		provider, err := openai.New(openai.Config{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			VisionModel: cfg.OpenAIVisionModel,
		})
		if err == nil {
			caps.AIText, caps.AIVision = true, true
			opts = append(opts, ai.WithVision(provider), ai.WithSummarizer(provider))
			return ai.NewAdapter(provider, logger, opts...)
		}
		logger.Error("OpenAI provider unavailable, falling back to rules", log.FieldError, err)
	} else {
		logger.Warn("OPENAI_API_KEY not set, using rule-based text extraction without receipt support")
	}
	return ai.NewAdapter(rules.New(), logger, opts...)
}
