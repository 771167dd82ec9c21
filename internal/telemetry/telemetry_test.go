package telemetry_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polling/internal/config"
	"polling/internal/telemetry"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := telemetry.NewLogger(&buf, "warn", "json")
	require.NoError(t, err)
	log.Info("dropped")
	log.Warn("kept", "op", "stake")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "stake", rec["op"])

	_, err = telemetry.NewLogger(&buf, "loud", "text")
	assert.Error(t, err)
	_, err = telemetry.NewLogger(&buf, "info", "xml")
	assert.Error(t, err)
}

func TestSetupNoopWithoutEndpoint(t *testing.T) {
	shutdown, err := telemetry.Setup(context.Background(), config.Runtime{OTelEnabled: true})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetupNoopWhenDisabled(t *testing.T) {
	shutdown, err := telemetry.Setup(context.Background(), config.Runtime{OTelEndpoint: "http://192.0.2.1:4318"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetupCreatesProvider(t *testing.T) {
	// Non-routable address so nothing is exported.
	shutdown, err := telemetry.Setup(context.Background(), config.Runtime{OTelEndpoint: "http://192.0.2.1:4318", OTelEnabled: true})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
