package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tcprelay/pkg/metrics"
	_ "github.com/marmos91/tcprelay/pkg/metrics/prometheus"
)

func TestInitializeMetrics_Disabled(t *testing.T) {
	metrics.ResetRegistry()
	t.Cleanup(metrics.ResetRegistry)

	res := InitializeMetrics(GetDefaultConfig())
	assert.Nil(t, res.Server)
	assert.Nil(t, res.Relay)
	assert.False(t, metrics.IsEnabled())
}

func TestInitializeMetrics_Enabled(t *testing.T) {
	metrics.ResetRegistry()
	t.Cleanup(metrics.ResetRegistry)

	cfg := GetDefaultConfig()
	cfg.Metrics.Enabled = true
	ApplyDefaults(cfg)

	res := InitializeMetrics(cfg)
	require.NotNil(t, res.Server)
	require.NotNil(t, res.Relay)
	assert.Equal(t, 9090, res.Server.Port())
	assert.True(t, metrics.IsEnabled())

	res.Relay.RecordConnectionAccepted()
	families, err := metrics.GetRegistry().Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "tcprelay_connections_accepted_total" {
			found = true
		}
	}
	assert.True(t, found)
}
