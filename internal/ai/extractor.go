// Package ai turns free text and receipt photos into expense guesses, and spending
// history into short insights. Providers do the model calls; the Adapter owns the
// fail-closed normalization so callers only ever see a guess or an explicit failure.
package ai

import (
	"context"

	"expensebot/internal/core"
)

// NoDataMessage is returned by SummarizeSpending when there is nothing to summarize.
const NoDataMessage = "📭 No expenses in the last 30 days yet, so there is nothing to analyze. Log a few and ask again!"

type Extractor interface {
	ParseTextExpense(ctx context.Context, text string) Extraction
	ParseReceiptImage(ctx context.Context, img []byte, mimeType string) Extraction
	SummarizeSpending(ctx context.Context, records []core.ExpenseRecord) string
}

// Extraction is either a complete guess or a failure with a reason for the logs.
type Extraction struct {
	guess  core.ParsedExpenseGuess
	reason string
	ok     bool
}

func Extracted(g core.ParsedExpenseGuess) Extraction {
	if g.Items == nil {
		g.Items = []string{}
	}
	return Extraction{guess: g, ok: true}
}

func ExtractionFailed(reason string) Extraction {
	return Extraction{reason: reason}
}

func (e Extraction) OK() bool { return e.ok }

func (e Extraction) Guess() core.ParsedExpenseGuess { return e.guess }

func (e Extraction) Reason() string { return e.reason }
