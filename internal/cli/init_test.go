package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensebot/internal/config"
	"expensebot/internal/core"
	"expensebot/internal/log"
)

func TestBuildPipelineWithoutIntegrations(t *testing.T) {
	cfg := &config.Config{
		DataBackend:     config.BackendMemory,
		DefaultTimezone: "UTC",
		CurrencySymbol:  "₹",
		AITimeout:       time.Second,
	}
	p, err := BuildPipeline(context.Background(), cfg, log.Discard())
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, Capabilities{}, p.Capabilities)
	assert.Nil(t, p.Processor.DedupCache())

	payload := `{"object":"whatsapp_business_account","entry":[{"changes":[{"field":"messages","value":{
		"contacts":[{"wa_id":"15550001","profile":{"name":"Sam"}}],
		"messages":[{"from":"15550001","id":"wamid.1","timestamp":"1760000000","type":"text","text":{"body":"spent 250 on lunch at cafe"}}]}}]}]}`
	require.NoError(t, p.Processor.Process(context.Background(), []byte(payload)))

	recs, err := p.Backend.Repository.ExpensesBetween(context.Background(), "15550001",
		core.DateRange{From: core.NewDate(2000, 1, 1), To: core.NewDate(2100, 1, 1)})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestBuildPipelineEnablesDedupAndOpenAI(t *testing.T) {
	cfg := &config.Config{
		DataBackend:     config.BackendMemory,
		DefaultTimezone: "UTC",
		OpenAIAPIKey:    "sk-test",
		DedupTTL:        time.Minute,
		AITimeout:       time.Second,
	}
	p, err := BuildPipeline(context.Background(), cfg, log.Discard())
	require.NoError(t, err)
	defer p.Close()

	assert.True(t, p.Capabilities.AIText)
	assert.True(t, p.Capabilities.AIVision)
	assert.False(t, p.Capabilities.Messaging)
	assert.NotNil(t, p.Processor.DedupCache())
}

func TestBuildPipelineRejectsBadBackend(t *testing.T) {
	_, err := BuildPipeline(context.Background(), &config.Config{DataBackend: "sheets"}, log.Discard())
	assert.Error(t, err)
}
