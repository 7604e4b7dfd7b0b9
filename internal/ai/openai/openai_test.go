package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionServer(t *testing.T, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newProvider(t *testing.T, url string) *Provider {
	t.Helper()
	p, err := New(Config{APIKey: "test-key", BaseURL: url + "/v1", Model: "m", VisionModel: "v"})
	require.NoError(t, err)
	return p
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestExtractExpense(t *testing.T) {
	var body map[string]any
	srv := completionServer(t, `{"amount": 250, "description": "lunch", "category": "food", "merchant": "", "date": ""}`, &body)
	scan, err := newProvider(t, srv.URL).ExtractExpense(context.Background(), "Spent 250 on lunch", []string{"food", "other"})
	require.NoError(t, err)
	assert.Equal(t, "250", scan.Amount.String())
	assert.Equal(t, "food", scan.Category)
	assert.Equal(t, "m", body["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
}

func TestExtractReceiptUsesVisionModel(t *testing.T) {
	var body map[string]any
	srv := completionServer(t, "```json\n{\"merchant\":\"Cafe\",\"total\":118,\"subtotal\":100,\"tax\":18,\"items\":[\"Latte\"]}\n```", &body)
	scan, err := newProvider(t, srv.URL).ExtractReceipt(context.Background(), []byte{1, 2, 3}, "image/png", []string{"food"})
	require.NoError(t, err)
	assert.Equal(t, "v", body["model"])
	assert.Equal(t, "118", scan.Total.String())
	assert.Equal(t, "Cafe", scan.Merchant)
	assert.Len(t, scan.Items, 1)
}

func TestMalformedJSONIsAnError(t *testing.T) {
	srv := completionServer(t, "I think you spent about 250", nil)
	_, err := newProvider(t, srv.URL).ExtractExpense(context.Background(), "x", nil)
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	srv := completionServer(t, "Eat out less.", nil)
	out, err := newProvider(t, srv.URL).Summarize(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Eat out less.", out)
}

func TestProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"nope","type":"invalid_request_error"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()
	_, err := newProvider(t, srv.URL).Summarize(context.Background(), "prompt")
	assert.Error(t, err)
}
