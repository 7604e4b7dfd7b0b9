package webhook

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensebot/internal/core"
	"expensebot/internal/log"
)

type recordingHandler struct {
	mu   sync.Mutex
	msgs []core.InboundMessage
}

func (h *recordingHandler) Handle(_ context.Context, msg core.InboundMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
}

const textPayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "15550000000", "phone_number_id": "123"},
        "contacts": [{"wa_id": "919876543210", "profile": {"name": "Asha"}}],
        "messages": [
          {"from": "919876543210", "id": "wamid.A", "timestamp": "1760000000", "type": "text", "text": {"body": "coffee 150"}},
          {"from": "919876543210", "id": "wamid.B", "timestamp": "1760000001", "type": "image", "image": {"id": "media-1", "mime_type": "image/jpeg"}}
        ]
      }
    }]
  }]
}`

func TestProcessDispatchesMessages(t *testing.T) {
	h := &recordingHandler{}
	p := NewProcessor(h, log.Discard())

	require.NoError(t, p.Process(context.Background(), []byte(textPayload)))
	require.Len(t, h.msgs, 2)

	assert.Equal(t, core.MessageText, h.msgs[0].Type)
	assert.Equal(t, "coffee 150", h.msgs[0].Text)
	assert.Equal(t, "Asha", h.msgs[0].SenderName)
	assert.Equal(t, time.Unix(1760000000, 0).UTC(), h.msgs[0].Timestamp)

	assert.Equal(t, core.MessageImage, h.msgs[1].Type)
	assert.Equal(t, "media-1", h.msgs[1].MediaID)
	assert.Equal(t, "image/jpeg", h.msgs[1].MimeType)
}

func TestProcessStatusesAreNotDispatched(t *testing.T) {
	payload := `{"object":"whatsapp_business_account","entry":[{"id":"W","changes":[{"field":"messages","value":{
		"statuses":[{"id":"wamid.X","status":"delivered","timestamp":"1760000000","recipient_id":"91"},
		            {"id":"wamid.Y","status":"failed","errors":[{"code":131047,"title":"Re-engagement message"}]}]}}]}]}`
	h := &recordingHandler{}
	p := NewProcessor(h, log.Discard())

	require.NoError(t, p.Process(context.Background(), []byte(payload)))
	assert.Empty(t, h.msgs)
}

func TestProcessIgnoresOtherFields(t *testing.T) {
	payload := `{"object":"whatsapp_business_account","entry":[{"id":"W","changes":[{"field":"account_update","value":{
		"messages":[{"from":"1","id":"wamid.Z","type":"text","text":{"body":"hi"}}]}}]}]}`
	h := &recordingHandler{}
	p := NewProcessor(h, log.Discard())

	require.NoError(t, p.Process(context.Background(), []byte(payload)))
	assert.Empty(t, h.msgs)
}

func TestProcessRejectsUnknownObject(t *testing.T) {
	p := NewProcessor(&recordingHandler{}, log.Discard())

	err := p.Process(context.Background(), []byte(`{"object":"page","entry":[]}`))
	assert.ErrorIs(t, err, ErrUnknownObject)

	err = p.Process(context.Background(), []byte(`{not json`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownObject)
}

func TestProcessUnsupportedType(t *testing.T) {
	payload := `{"object":"whatsapp_business_account","entry":[{"changes":[{"field":"messages","value":{
		"messages":[{"from":"1","id":"wamid.S","timestamp":"1760000000","type":"sticker"}]}}]}]}`
	h := &recordingHandler{}
	p := NewProcessor(h, log.Discard())

	require.NoError(t, p.Process(context.Background(), []byte(payload)))
	require.Len(t, h.msgs, 1)
	assert.Equal(t, core.MessageUnsupported, h.msgs[0].Type)
}

func TestDedup(t *testing.T) {
	t.Run("off by default", func(t *testing.T) {
		h := &recordingHandler{}
		p := NewProcessor(h, log.Discard(), WithDedup(0, 100))
		assert.Nil(t, p.DedupCache())

		require.NoError(t, p.Process(context.Background(), []byte(textPayload)))
		require.NoError(t, p.Process(context.Background(), []byte(textPayload)))
		assert.Len(t, h.msgs, 4)
	})

	t.Run("drops redelivered ids", func(t *testing.T) {
		h := &recordingHandler{}
		p := NewProcessor(h, log.Discard(), WithDedup(time.Hour, 100))

		require.NoError(t, p.Process(context.Background(), []byte(textPayload)))
		require.NoError(t, p.Process(context.Background(), []byte(textPayload)))
		assert.Len(t, h.msgs, 2)
		assert.Equal(t, 2, p.DedupCache().Size())
	})
}
