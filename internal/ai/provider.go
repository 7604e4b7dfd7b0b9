package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

var ErrUnsupported = errors.New("operation not supported by provider")

// ExpenseScan is the raw structured answer for a free-text expense.
type ExpenseScan struct {
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Merchant    string      `json:"merchant"`
	Date        string      `json:"date"`
}

// ReceiptScan keeps every amount a provider saw on a receipt so the adapter,
// not the model, decides which one is the amount paid.
type ReceiptScan struct {
	Merchant    string        `json:"merchant"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	Date        string        `json:"date"`
	Items       ItemList      `json:"items"`
	Total       json.Number   `json:"total"`
	Subtotal    json.Number   `json:"subtotal"`
	Tax         json.Number   `json:"tax"`
	Amounts     []json.Number `json:"amounts"`
}

type TextProvider interface {
	Name() string
	ExtractExpense(ctx context.Context, text string, categories []string) (ExpenseScan, error)
}

type VisionProvider interface {
	ExtractReceipt(ctx context.Context, img []byte, mimeType string, categories []string) (ReceiptScan, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// ItemList accepts either plain strings or objects carrying a name/title.
type ItemList []string

func (l *ItemList) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		if string(b) == "null" {
			*l = nil
			return nil
		}
		return err
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
			continue
		}
		var obj struct {
			Name  string `json:"name"`
			Title string `json:"title"`
		}
		if err := json.Unmarshal(r, &obj); err != nil {
			return err
		}
		name := obj.Name
		if name == "" {
			name = obj.Title
		}
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	*l = out
	return nil
}
