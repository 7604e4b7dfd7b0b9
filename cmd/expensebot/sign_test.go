package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensebot/internal/validate"
)

func TestSignCommandFromFile(t *testing.T) {
	payload := []byte(`{"object":"whatsapp_business_account","entry":[]}`)
	path := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(path, payload, 0o600))

	cmd := newSignCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--secret", "s3cret", path})
	require.NoError(t, cmd.Execute())

	header := strings.TrimPrefix(strings.TrimSpace(out.String()), "X-Hub-Signature-256: ")
	assert.True(t, validate.VerifySignature(payload, header, "s3cret"))
}

func TestSignCommandFromStdinUsesEnvSecret(t *testing.T) {
	t.Setenv("WHATSAPP_APP_SECRET", "from-env")
	payload := []byte(`{"entry":[]}`)

	cmd := newSignCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(bytes.NewReader(payload))
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "X-Hub-Signature-256: "+validate.Sign(payload, "from-env")+"\n", out.String())
}

func TestSignCommandRequiresSecret(t *testing.T) {
	t.Setenv("WHATSAPP_APP_SECRET", "")
	cmd := newSignCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("{}"))
	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute())
}
