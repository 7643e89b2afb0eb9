package injector

import (
	"github.com/google/wire"
	"github.com/zeusync/indicator/internal/core/camera"
	"github.com/zeusync/indicator/internal/core/canvas"
	"github.com/zeusync/indicator/internal/core/config"
	"github.com/zeusync/indicator/internal/core/geom"
	"github.com/zeusync/indicator/internal/core/indicator"
	"github.com/zeusync/indicator/internal/core/observability/log"
	"github.com/zeusync/indicator/internal/core/replication"
	"github.com/zeusync/indicator/internal/core/scene"
	"github.com/zeusync/indicator/internal/core/session"
	"github.com/zeusync/indicator/internal/core/widget"
	"github.com/zeusync/indicator/internal/server"
	"golang.org/x/time/rate"
)

// HostPlayer names the listen-server's own player registry.
const HostPlayer = "host"

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideSet,
	ProvideSession,
	ProvideServerConfig,
	ProvideServer,
	ProvideWorld,
	ProvideHostRegistry,
	ProvideFactory,
	ProvideCanvas,
	NewApp,
	wire.Bind(new(server.OpSource), new(*replication.Set)),
)

func ProvideLogger(cfg *config.Config) *log.Logger {
	return log.New(log.ParseLevel(cfg.Log.Level))
}

func ProvideSet(cfg *config.Config, logger *log.Logger) *replication.Set {
	return replication.NewSet(
		replication.WithRetention(cfg.Server.Retention),
		replication.WithSetLogger(logger),
	)
}

// ProvideSession opens the session with the replicated set as its multicaster.
func ProvideSession(cfg *config.Config, set *replication.Set, logger *log.Logger) (*session.Session, func(), error) {
	s, err := session.Open(cfg.Server.Session, session.WithMulticaster(set), session.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}

func ProvideServerConfig(cfg *config.Config) server.Config {
	sc := server.DefaultServerConfig()
	sc.ListenAddr = cfg.Server.Addr
	sc.Path = cfg.Server.Path
	if cfg.Server.SendBuffer > 0 {
		sc.SendBuffer = cfg.Server.SendBuffer
	}
	if cfg.Server.WriteTimeout > 0 {
		sc.Connection.WriteTimeout = cfg.Server.WriteTimeout
	}
	if cfg.Server.ResyncInterval > 0 {
		sc.ResyncRate = rate.Every(cfg.Server.ResyncInterval)
	}
	return sc
}

func ProvideServer(sc server.Config, source server.OpSource, logger *log.Logger) (*server.Server, func()) {
	srv := server.NewServer(sc, source, logger)
	return srv, func() { _ = srv.Close() }
}

func ProvideWorld() *scene.World {
	return scene.NewWorld()
}

func ProvideHostRegistry(logger *log.Logger) *indicator.Registry {
	return indicator.NewRegistry(HostPlayer, indicator.Local(), indicator.WithLogger(logger))
}

func ProvideFactory(cfg *config.Config, logger *log.Logger) *widget.Factory {
	return widget.NewFactory(cfg.Catalog(),
		widget.WithConcurrency(cfg.Widgets.Concurrency),
		widget.WithLogger(logger))
}

// ProvideCanvas lays out the host player's indicators from a fixed overview camera.
func ProvideCanvas(cfg *config.Config, reg *indicator.Registry, world *scene.World, factory *widget.Factory, logger *log.Logger) (*canvas.Canvas, func(), error) {
	c, err := canvas.New(reg, world, factory,
		canvas.WithView(camera.New(geom.V3(-500, 0, 300), geom.V3(0, 0, 0), camera.DefaultFOV)),
		canvas.WithViewport(cfg.Canvas.Viewport.Vec()),
		canvas.WithArrowSize(cfg.Canvas.ArrowSize.Vec()),
		canvas.WithArrowPool(cfg.Canvas.ArrowPool),
		canvas.WithDrawInOrder(cfg.Canvas.DrawInOrder),
		canvas.WithDefaultWidgetClass(cfg.Canvas.DefaultWidgetClass),
		canvas.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}
