package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanvanderbyl/gmg-smoker/pkg/config"
	"github.com/ivanvanderbyl/gmg-smoker/pkg/gmgtest"
)

func TestRunPollsUntilCancelled(t *testing.T) {
	g := gmgtest.New(t, gmgtest.WithState(gmgtest.State{Power: 1, GrillTemp: 225}))

	cfg := config.Default()
	cfg.Grill.Host = "127.0.0.1"
	cfg.Grill.Port = g.Port()
	cfg.PollSeconds = 1
	cfg.HomeKit.Enabled = false

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	require.NoError(t, Run(ctx, cfg))

	// Identity lookup, the immediate poll and one tick.
	assert.GreaterOrEqual(t, g.Count("UR001"), 3)
	assert.Equal(t, 1, g.Count("UN"))
	assert.Equal(t, 1, g.Count("UL"))
}

func TestRunFailsWithoutGrill(t *testing.T) {
	g := gmgtest.New(t, gmgtest.Silent())

	cfg := config.Default()
	cfg.Grill.Host = "127.0.0.1"
	cfg.Grill.Port = g.Port()
	cfg.Grill.Tries = 1
	cfg.Grill.RetryIntervalMS = 10
	cfg.HomeKit.Enabled = false

	assert.Error(t, Run(context.Background(), cfg))
}
