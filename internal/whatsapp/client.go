package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"expensebot/internal/log"
)

const (
	DefaultBaseURL = "https://graph.facebook.com/v21.0"
	maxTextLen     = 4096
	maxMediaBytes  = 16 << 20
)

var ErrNotConfigured = errors.New("whatsapp: access token or phone number id not configured")

type Config struct {
	BaseURL       string
	AccessToken   string
	PhoneNumberID string
	Timeout       time.Duration
}

// Client talks to the Graph API with the business access token.
type Client struct {
	http          *resty.Client
	phoneNumberID string
	configured    bool
	logger        *log.Logger
}

func NewClient(cfg Config, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := resty.New().
		SetBaseURL(base).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.AccessToken).
		SetTimeout(timeout)

	return &Client{
		http:          c,
		phoneNumberID: cfg.PhoneNumberID,
		configured:    cfg.AccessToken != "" && cfg.PhoneNumberID != "",
		logger:        logger.WithComponent(log.ComponentWhatsApp),
	}
}

// Configured reports whether outbound messaging credentials are present.
func (c *Client) Configured() bool { return c.configured }

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

// SendText delivers a text reply to the recipient's phone number.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	if !c.configured {
		return ErrNotConfigured
	}
	if utf8.RuneCountInString(body) > maxTextLen {
		body = string([]rune(body)[:maxTextLen-1]) + "…"
	}
	req := sendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             sendText{Body: body},
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&req).
		Post("/" + c.phoneNumberID + "/messages")
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("send message: status %d: %s", resp.StatusCode(), resp.String())
	}
	c.logger.DebugContext(ctx, "reply sent", log.FieldOperation, log.OpSend, log.FieldUser, to)
	return nil
}

type mediaInfo struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// DownloadMedia resolves a media id to its URL and fetches the bytes.
func (c *Client) DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	if !c.configured {
		return nil, "", ErrNotConfigured
	}
	resp, err := c.http.R().SetContext(ctx).Get("/" + mediaID)
	if err != nil {
		return nil, "", fmt.Errorf("lookup media: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, "", fmt.Errorf("lookup media: status %d: %s", resp.StatusCode(), resp.String())
	}
	var info mediaInfo
	if err := json.Unmarshal(resp.Body(), &info); err != nil {
		return nil, "", fmt.Errorf("decode media info: %w", err)
	}
	if info.URL == "" {
		return nil, "", errors.New("media info has no url")
	}
	if info.FileSize > maxMediaBytes {
		return nil, "", fmt.Errorf("media too large: %d bytes", info.FileSize)
	}

	// the media URL is absolute and still needs the bearer token
	file, err := c.http.R().SetContext(ctx).Get(info.URL)
	if err != nil {
		return nil, "", fmt.Errorf("download media: %w", err)
	}
	if file.StatusCode() != http.StatusOK {
		return nil, "", fmt.Errorf("download media: status %d", file.StatusCode())
	}
	mime := info.MimeType
	if mime == "" {
		mime = file.Header().Get("Content-Type")
	}
	return file.Body(), mime, nil
}

// LogSender stands in for the client when no credentials are configured; replies are
// written to the log instead of being delivered.
type LogSender struct {
	Logger *log.Logger
}

func (s LogSender) SendText(ctx context.Context, to, body string) error {
	s.Logger.InfoContext(ctx, "reply not delivered, messaging not configured",
		log.FieldOperation, log.OpSend, log.FieldUser, to, "body", body)
	return nil
}

func (s LogSender) DownloadMedia(context.Context, string) ([]byte, string, error) {
	return nil, "", ErrNotConfigured
}
