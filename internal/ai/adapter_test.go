package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensebot/internal/core"
	"expensebot/internal/format"
	"expensebot/internal/log"
)

type fakeText struct {
	scan ExpenseScan
	err  error
}

func (f fakeText) Name() string { return "fake" }

func (f fakeText) ExtractExpense(context.Context, string, []string) (ExpenseScan, error) {
	return f.scan, f.err
}

type fakeVision struct {
	scan ReceiptScan
	err  error
}

func (f fakeVision) ExtractReceipt(context.Context, []byte, string, []string) (ReceiptScan, error) {
	return f.scan, f.err
}

type fakeSummarizer struct {
	out   string
	err   error
	calls int
}

func (f *fakeSummarizer) Summarize(context.Context, string) (string, error) {
	f.calls++
	return f.out, f.err
}

type slowText struct{}

func (slowText) Name() string { return "slow" }

func (slowText) ExtractExpense(ctx context.Context, _ string, _ []string) (ExpenseScan, error) {
	<-ctx.Done()
	return ExpenseScan{}, ctx.Err()
}

func TestParseTextExpense(t *testing.T) {
	a := NewAdapter(fakeText{scan: ExpenseScan{Amount: "250", Description: "lunch", Category: "Food"}}, nil)
	ex := a.ParseTextExpense(context.Background(), "Spent 250 on lunch")
	require.True(t, ex.OK())
	g := ex.Guess()
	assert.True(t, g.Amount.Valid)
	assert.Equal(t, "250", g.Amount.Decimal.String())
	assert.Equal(t, "food", g.Category)
	assert.Equal(t, "lunch", g.Description)
	assert.NotNil(t, g.Items)
}

func TestParseTextExpenseFailsClosed(t *testing.T) {
	cases := map[string]TextProvider{
		"provider error":  fakeText{err: errors.New("boom")},
		"zero amount":     fakeText{scan: ExpenseScan{Amount: "0"}},
		"negative amount": fakeText{scan: ExpenseScan{Amount: "-5"}},
		"missing amount":  fakeText{scan: ExpenseScan{Description: "lunch"}},
		"non-numeric":     fakeText{scan: ExpenseScan{Amount: "abc"}},
	}
	for name, p := range cases {
		ex := NewAdapter(p, nil).ParseTextExpense(context.Background(), "spent something")
		assert.False(t, ex.OK(), name)
		assert.NotEmpty(t, ex.Reason(), name)
	}
	assert.False(t, NewAdapter(nil, nil).ParseTextExpense(context.Background(), "spent 5").OK())
}

func TestParseTextExpenseTimeout(t *testing.T) {
	a := NewAdapter(slowText{}, nil, WithTimeout(20*time.Millisecond))
	ex := a.ParseTextExpense(context.Background(), "spent 10")
	assert.False(t, ex.OK())
}

func TestUnknownCategoryNormalizedToOther(t *testing.T) {
	a := NewAdapter(fakeText{scan: ExpenseScan{Amount: "10", Category: "groceries"}}, nil)
	ex := a.ParseTextExpense(context.Background(), "spent 10")
	require.True(t, ex.OK())
	assert.Equal(t, "other", ex.Guess().Category)
}

func TestAdapterWarningsUseRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	reqLogger := log.New(log.Config{Format: "json", Output: &buf}).With(log.FieldMessageID, "wamid.42")
	ctx := log.NewContext(context.Background(), reqLogger)

	a := NewAdapter(fakeText{scan: ExpenseScan{Amount: "10", Category: "groceries"}}, log.Discard())
	require.True(t, a.ParseTextExpense(ctx, "spent 10").OK())
	assert.Contains(t, buf.String(), "outside the fixed set")
	assert.Contains(t, buf.String(), `"message_id":"wamid.42"`)
	assert.Contains(t, buf.String(), `"component":"ai"`)

	buf.Reset()
	failing := NewAdapter(fakeText{err: errors.New("upstream 500")}, log.Discard())
	require.False(t, failing.ParseTextExpense(ctx, "spent 10").OK())
	assert.Contains(t, buf.String(), `"provider":"fake"`)
	assert.Contains(t, buf.String(), `"operation":"extract"`)
	assert.Contains(t, buf.String(), `"message_id":"wamid.42"`)
}

func TestReceiptTotalPrefersFinalTotal(t *testing.T) {
	cases := []struct {
		name string
		scan ReceiptScan
		want string
	}{
		{"total wins", ReceiptScan{Total: "118", Subtotal: "100", Tax: "18", Amounts: []json.Number{"40", "60", "500"}}, "118"},
		{"subtotal plus tax", ReceiptScan{Subtotal: "100", Tax: "18", Amounts: []json.Number{"40", "60"}}, "118"},
		{"largest amount", ReceiptScan{Amounts: []json.Number{"40", "60.5", "12"}}, "60.5"},
		{"explicit zero", ReceiptScan{Total: "0"}, "0"},
	}
	for _, tc := range cases {
		got, ok := receiptTotal(tc.scan)
		require.True(t, ok, tc.name)
		assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "%s: got %s", tc.name, got)
	}
	_, ok := receiptTotal(ReceiptScan{})
	assert.False(t, ok)
}

func TestParseReceiptImage(t *testing.T) {
	v := fakeVision{scan: ReceiptScan{Merchant: "Big Bazaar", Category: "shopping", Total: "560.40", Subtotal: "500", Tax: "60.40"}}
	a := NewAdapter(nil, nil, WithVision(v))
	ex := a.ParseReceiptImage(context.Background(), []byte{0xff, 0xd8}, "image/jpeg")
	require.True(t, ex.OK())
	assert.Equal(t, "560.4", ex.Guess().Amount.Decimal.String())
	assert.Equal(t, "Big Bazaar", ex.Guess().Merchant)
	assert.Equal(t, []string{}, ex.Guess().Items)

	assert.False(t, NewAdapter(nil, nil).ParseReceiptImage(context.Background(), []byte{1}, "image/png").OK())
	assert.False(t, a.ParseReceiptImage(context.Background(), nil, "image/png").OK())
}

func TestItemListAcceptsStringsAndObjects(t *testing.T) {
	var scan ReceiptScan
	err := json.Unmarshal([]byte(`{"items":["Milk",{"name":"Bread","price":40},{"title":"Eggs"}," "],"total":"99.5"}`), &scan)
	require.NoError(t, err)
	assert.Equal(t, ItemList{"Milk", "Bread", "Eggs"}, scan.Items)
	assert.Equal(t, "99.5", scan.Total.String())
}

func TestSummarizeSpending(t *testing.T) {
	s := &fakeSummarizer{out: "You eat out a lot."}
	a := NewAdapter(nil, nil, WithSummarizer(s), WithFormatter(format.New("₹")))

	assert.Equal(t, NoDataMessage, a.SummarizeSpending(context.Background(), nil))
	assert.Equal(t, 0, s.calls)

	records := []core.ExpenseRecord{
		{Amount: decimal.NewFromInt(300), Category: core.Food, Date: core.NewDate(2026, 10, 1)},
		{Amount: decimal.NewFromInt(100), Category: core.Transport, Date: core.NewDate(2026, 10, 2)},
	}
	assert.Contains(t, a.SummarizeSpending(context.Background(), records), "You eat out a lot.")
	assert.Equal(t, 1, s.calls)

	s.err = errors.New("down")
	out := a.SummarizeSpending(context.Background(), records)
	assert.Contains(t, out, "₹400")
	assert.Contains(t, out, "food")
	assert.Contains(t, out, "75%")
}
