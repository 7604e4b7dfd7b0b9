package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensebot/internal/core"
)

const samplePayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "1",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "15550000000", "phone_number_id": "123"},
        "contacts": [{"wa_id": "15551234567", "profile": {"name": "Asha"}}],
        "messages": [
          {"from": "15551234567", "id": "wamid.1", "timestamp": "1760000000", "type": "text", "text": {"body": "Spent 250 on lunch"}},
          {"from": "15551234567", "id": "wamid.2", "timestamp": "1760000001", "type": "image", "image": {"id": "media-9", "mime_type": "image/jpeg", "caption": "dinner"}},
          {"from": "15551234567", "id": "wamid.3", "timestamp": "1760000002", "type": "sticker"}
        ]
      }
    }]
  }]
}`

func TestEnvelopeInbound(t *testing.T) {
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(samplePayload), &env))
	assert.Equal(t, ObjectBusinessAccount, env.Object)

	v := env.Entry[0].Changes[0].Value
	name := v.SenderName("15551234567")
	assert.Equal(t, "Asha", name)

	text := v.Messages[0].Inbound(name)
	assert.Equal(t, core.MessageText, text.Type)
	assert.Equal(t, "Spent 250 on lunch", text.Text)
	assert.Equal(t, int64(1760000000), text.Timestamp.Unix())

	img := v.Messages[1].Inbound(name)
	assert.Equal(t, core.MessageImage, img.Type)
	assert.Equal(t, "media-9", img.MediaID)
	assert.Equal(t, "image/jpeg", img.MimeType)

	assert.Equal(t, core.MessageUnsupported, v.Messages[2].Inbound(name).Type)
}

func TestSendText(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/123/messages", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"messages":[{"id":"wamid.x"}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, AccessToken: "tok", PhoneNumberID: "123"}, nil)
	require.NoError(t, c.SendText(context.Background(), "15551234567", "hello"))
	assert.Equal(t, "15551234567", got["to"])
	assert.Equal(t, "whatsapp", got["messaging_product"])
	assert.Equal(t, map[string]any{"preview_url": false, "body": "hello"}, got["text"])
}

func TestSendTextErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad token"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, AccessToken: "tok", PhoneNumberID: "123"}, nil)
	assert.Error(t, c.SendText(context.Background(), "1", "hi"))

	unconfigured := NewClient(Config{BaseURL: srv.URL}, nil)
	assert.False(t, unconfigured.Configured())
	assert.ErrorIs(t, unconfigured.SendText(context.Background(), "1", "hi"), ErrNotConfigured)
}

func TestDownloadMedia(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/media-9", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"url": srv.URL + "/files/abc", "mime_type": "image/png", "file_size": 3})
	})
	mux.HandleFunc("/files/abc", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte{1, 2, 3})
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, AccessToken: "tok", PhoneNumberID: "123"}, nil)
	data, mime, err := c.DownloadMedia(context.Background(), "media-9")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
	assert.Equal(t, "image/png", mime)

	_, _, err = c.DownloadMedia(context.Background(), "missing")
	assert.Error(t, err)
}
