// Package openai implements the ai providers on any OpenAI-compatible chat completion API.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"expensebot/internal/ai"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultVisionModel = "gpt-4o-mini"
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	VisionModel string
}

type Provider struct {
	client      *goopenai.Client
	model       string
	visionModel string
}

func New(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	p := &Provider{
		client:      goopenai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		visionModel: cfg.VisionModel,
	}
	if p.model == "" {
		p.model = DefaultModel
	}
	if p.visionModel == "" {
		p.visionModel = DefaultVisionModel
	}
	return p, nil
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) ExtractExpense(ctx context.Context, text string, categories []string) (ai.ExpenseScan, error) {
	var scan ai.ExpenseScan
	msgs := []goopenai.ChatCompletionMessage{
		{Role: goopenai.ChatMessageRoleSystem, Content: textPrompt(categories)},
		{Role: goopenai.ChatMessageRoleUser, Content: text},
	}
	content, err := p.complete(ctx, p.model, msgs, true)
	if err != nil {
		return scan, err
	}
	if err := decodeJSON(content, &scan); err != nil {
		return scan, err
	}
	return scan, nil
}

func (p *Provider) ExtractReceipt(ctx context.Context, img []byte, mimeType string, categories []string) (ai.ReceiptScan, error) {
	var scan ai.ReceiptScan
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(img)
	msgs := []goopenai.ChatCompletionMessage{
		{Role: goopenai.ChatMessageRoleSystem, Content: receiptPrompt(categories)},
		{
			Role: goopenai.ChatMessageRoleUser,
			MultiContent: []goopenai.ChatMessagePart{
				{Type: goopenai.ChatMessagePartTypeText, Text: "Extract this receipt."},
				{Type: goopenai.ChatMessagePartTypeImageURL, ImageURL: &goopenai.ChatMessageImageURL{
					URL:    dataURL,
					Detail: goopenai.ImageURLDetailHigh,
				}},
			},
		},
	}
	content, err := p.complete(ctx, p.visionModel, msgs, true)
	if err != nil {
		return scan, err
	}
	if err := decodeJSON(content, &scan); err != nil {
		return scan, err
	}
	return scan, nil
}

func (p *Provider) Summarize(ctx context.Context, prompt string) (string, error) {
	msgs := []goopenai.ChatCompletionMessage{
		{Role: goopenai.ChatMessageRoleSystem, Content: "You are a friendly personal finance assistant inside a chat app."},
		{Role: goopenai.ChatMessageRoleUser, Content: prompt},
	}
	return p.complete(ctx, p.model, msgs, false)
}

func (p *Provider) complete(ctx context.Context, model string, msgs []goopenai.ChatCompletionMessage, jsonMode bool) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: 0.1,
	}
	if jsonMode {
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject}
	}
	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// decodeJSON tolerates models that wrap the object in a markdown code fence.
func decodeJSON(content string, v any) error {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("empty model response")
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("decode model response: %w", err)
	}
	return nil
}

func textPrompt(categories []string) string {
	return fmt.Sprintf(`You extract a single expense from a chat message.
Return only a JSON object, no markdown:
{"amount": number, "description": string, "category": string, "merchant": string, "date": string}

Rules:
- amount is the money spent as a plain number without currency symbols. Use 0 if there is no amount.
- category MUST be exactly one of: %s.
- description is a short lowercase phrase of what was bought, for example "lunch".
- merchant is the shop or service name if mentioned, else "".
- date is YYYY-MM-DD only if the message names a specific date, else "".`, strings.Join(categories, ", "))
}

func receiptPrompt(categories []string) string {
	return fmt.Sprintf(`You read photos of shop receipts.
Return only a JSON object, no markdown:
{"merchant": string, "description": string, "category": string, "date": string,
 "items": [string], "total": number, "subtotal": number, "tax": number, "amounts": [number]}

Rules:
- total is the FINAL amount paid (grand total, after tax and discounts). Use 0 if unreadable.
- subtotal and tax are the printed subtotal and tax lines, 0 if absent.
- amounts lists every other money value you can read on the receipt.
- items are the purchased product names only, never totals, tax, cash or change lines.
- category MUST be exactly one of: %s.
- date is YYYY-MM-DD if printed, else "".`, strings.Join(categories, ", "))
}
