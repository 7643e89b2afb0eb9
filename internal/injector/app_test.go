package injector

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/indicator/internal/core/config"
	"github.com/zeusync/indicator/internal/core/geom"
	"github.com/zeusync/indicator/internal/core/indicator"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.Session = uuid.NewString()
	cfg.Server.TickRate = 5 * time.Millisecond
	cfg.Indicators = map[string]config.IndicatorTemplate{
		"ping": {State: indicator.DefaultState()},
	}
	return cfg
}

func TestInitializeAppWiresHostPlayer(t *testing.T) {
	app, cleanup, err := InitializeApp(testConfig())
	require.NoError(t, err)
	defer cleanup()

	assert.True(t, app.Session.IsRegistered(app.Registry))

	actor := app.World.SpawnActor(geom.V3(0, 0, 0), geom.V3(50, 50, 50))
	d, entry, err := app.Spawn("ping", indicator.Anchor{Target: actor})
	require.NoError(t, err)
	assert.NotZero(t, entry)
	assert.True(t, app.Registry.Contains(d))
	assert.Equal(t, 1, app.Canvas.Tracked())

	b := indicator.New(indicator.Anchor{Target: actor})
	require.NoError(t, app.Session.BroadcastIndicator(b))
	assert.Equal(t, 2, app.Registry.Len())
	assert.Equal(t, uint64(2), app.Set.Seq(), "broadcast replicates without a second host add")

	_, _, err = app.Spawn("missing", indicator.Anchor{})
	require.ErrorIs(t, err, config.ErrUnknownTemplate)
}

func TestRunAppliesReloadAndStops(t *testing.T) {
	app, cleanup, err := InitializeApp(testConfig())
	require.NoError(t, err)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	reload := make(chan *config.Config, 1)
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx, reload) }()

	next := testConfig()
	next.Canvas.Viewport = config.Size{Width: 800, Height: 600}
	reload <- next

	require.Eventually(t, func() bool { return len(reload) == 0 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err = <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestInitializeAppRejectsDuplicateSession(t *testing.T) {
	cfg := testConfig()
	_, cleanup, err := InitializeApp(cfg)
	require.NoError(t, err)
	defer cleanup()

	_, _, err = InitializeApp(cfg)
	require.Error(t, err)
}
