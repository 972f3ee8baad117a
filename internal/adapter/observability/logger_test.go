package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castmate/castmate-ai/internal/config"
)

func TestSetupLogger_DevAndProd(t *testing.T) {
	assert.NotNil(t, SetupLogger(config.Config{AppEnv: "dev", OTELServiceName: "svc"}))

	var buf bytes.Buffer
	lg := newLogger(&buf, config.Config{AppEnv: "prod", OTELServiceName: "castmate-ai"})
	lg.Debug("hidden")
	lg.Info("shown", "job_id", "j1")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "castmate-ai", rec["service"])
	assert.Equal(t, "prod", rec["env"])
	assert.Equal(t, "j1", rec["job_id"])
}

func TestSetupLogger_DevLogsDebug(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, config.Config{AppEnv: "dev"}).Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}
