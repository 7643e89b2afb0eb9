// Package injector assembles the host process: replicated set, session,
// websocket server and the host player's canvas.
package injector

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/zeusync/indicator/internal/core/canvas"
	"github.com/zeusync/indicator/internal/core/config"
	"github.com/zeusync/indicator/internal/core/indicator"
	"github.com/zeusync/indicator/internal/core/observability/log"
	"github.com/zeusync/indicator/internal/core/replication"
	"github.com/zeusync/indicator/internal/core/scene"
	"github.com/zeusync/indicator/internal/core/session"
	"github.com/zeusync/indicator/internal/server"
)

// App is the listen-server: it replicates to remote clients and also lays
// out indicators for its own local player.
type App struct {
	Config   *config.Config
	Logger   *log.Logger
	Set      *replication.Set
	Session  *session.Session
	Server   *server.Server
	World    *scene.World
	Registry *indicator.Registry
	Canvas   *canvas.Canvas
}

func NewApp(
	cfg *config.Config,
	logger *log.Logger,
	set *replication.Set,
	sess *session.Session,
	srv *server.Server,
	world *scene.World,
	reg *indicator.Registry,
	cv *canvas.Canvas,
) (*App, error) {
	set.AttachLocal(reg)
	if err := sess.RegisterRegistry(reg, true); err != nil {
		return nil, errors.Wrap(err, "register host registry")
	}
	return &App{
		Config:   cfg,
		Logger:   logger,
		Set:      set,
		Session:  sess,
		Server:   srv,
		World:    world,
		Registry: reg,
		Canvas:   cv,
	}, nil
}

// Run serves clients and ticks the host canvas until ctx ends. Config
// updates received on reload are applied between ticks.
func (a *App) Run(ctx context.Context, reload <-chan *config.Config) error {
	if err := a.Server.Start(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(a.Config.Server.TickRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.Server.Stop(stopCtx); err != nil && !errors.Is(err, server.ErrServerNotRunning) {
				return err
			}
			return nil
		case <-ticker.C:
			a.Canvas.Tick()
		case cfg, ok := <-reload:
			if !ok {
				reload = nil
				continue
			}
			a.apply(cfg)
		}
	}
}

// apply takes the settings that can change without a restart.
func (a *App) apply(cfg *config.Config) {
	a.Logger.SetLevel(log.ParseLevel(cfg.Log.Level))
	a.Canvas.SetViewport(cfg.Canvas.Viewport.Vec())
	a.Canvas.SetDrawInOrder(cfg.Canvas.DrawInOrder)
	a.Logger.Info("Config applied",
		log.String("level", cfg.Log.Level),
		log.Float64("viewport_w", cfg.Canvas.Viewport.Width),
		log.Float64("viewport_h", cfg.Canvas.Viewport.Height))
}

// Spawn creates an authoritative indicator from a config template. Every
// client and the host player receive it.
func (a *App) Spawn(template string, anchor indicator.Anchor) (*indicator.Descriptor, replication.EntryID, error) {
	d, err := a.Config.NewIndicator(template, anchor)
	if err != nil {
		return nil, 0, err
	}
	id, err := a.Set.AddAuthoritative(d)
	if err != nil {
		return nil, 0, err
	}
	return d, id, nil
}
