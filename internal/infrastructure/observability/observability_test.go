package observability

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-dify-bridge/internal/config"
)

func TestSetup_DisabledIsNoop(t *testing.T) {
	cases := []*config.Config{
		{EnableTracing: false, OTLPEndpoint: "collector:4318"},
		{EnableTracing: true, OTLPEndpoint: ""},
		{OTLPMetrics: true, OTLPEndpoint: ""},
	}
	for _, cfg := range cases {
		shutdown, err := Setup(context.Background(), cfg, zerolog.Nop())
		require.NoError(t, err)
		require.NotNil(t, shutdown)
		assert.NoError(t, shutdown(context.Background()))
	}
}

func TestSetup_MetricsOnly(t *testing.T) {
	cfg := &config.Config{
		ServiceName:    "line-dify-bridge",
		Environment:    "test",
		OTLPEndpoint:   "127.0.0.1:1",
		OTLPMetrics:    true,
		MetricInterval: time.Hour,
	}
	shutdown, err := Setup(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// the exporter never reached a collector; shutdown must still return
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = shutdown(ctx)
}
