package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/dcrodman/railyard/internal/core"
	"github.com/dcrodman/railyard/internal/core/data"
	"github.com/dcrodman/railyard/internal/core/debug"
	"github.com/dcrodman/railyard/internal/session"
	"github.com/dcrodman/railyard/internal/world"
)

const (
	eventBacklog   = 1024
	auditQueueSize = 256
	backendName    = "SESSION"
)

// Controller is the main entrypoint for the server. It's responsible for initializing
// any shared resources (such as database and logging), wiring the session server to
// its transports, and launching everything.
type Controller struct {
	Config *core.Config
	// ConfigPath is the directory Config was read from. It's only needed when
	// world.reload_layout is set.
	ConfigPath string

	logger *logrus.Logger
	db     *gorm.DB
	world  *world.Memory
	loop   *session.Loop
	server *session.Server
	// layout is the most recent config to take weather and rolling stock
	// from. Only touched on the event loop.
	layout *core.Config
}

// Start runs the server until ctx is cancelled or a component fails.
func (c *Controller) Start(ctx context.Context) error {
	var err error
	// Set up the logger, which will be used by every component.
	c.logger, err = core.NewLogger(c.Config)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}

	// Start any debug utilities if we're configured to do so.
	if c.Config.Debugging.PprofEnabled {
		debug.StartPprofServer(c.logger, c.Config.Debugging.PprofPort)
	}

	g, ctx := errgroup.WithContext(ctx)

	c.world = world.NewMemory(worldOptions(c.Config))
	c.loop = session.NewLoop(c.logger, eventBacklog)
	c.layout = c.Config
	c.server = &session.Server{
		Config: c.Config,
		Logger: c.logger,
		World:  c.world,
		Mirror: c.world,
		Store:  c.world,
	}

	if c.Config.Database.Enabled {
		c.db, err = data.Initialize(c.Config.Database.Engine, c.Config.DatabaseSource(), c.Config.Debugging.DatabaseLoggingEnabled)
		if err != nil {
			return err
		}
		defer c.shutdownDatabase()

		audit := data.NewAuditWriter(c.db, c.logger, auditQueueSize)
		c.server.Audit = audit
		g.Go(func() error { return audit.Run(ctx) })
	}

	if err := c.server.Init(); err != nil {
		return fmt.Errorf("error initializing session server: %w", err)
	}
	g.Go(func() error { return c.loop.Run(ctx) })
	g.Go(func() error { return c.runWorld(ctx) })

	if c.Config.World.ReloadLayout {
		if err := core.WatchConfig(c.ConfigPath, c.layoutChanged); err != nil {
			return fmt.Errorf("error watching config: %w", err)
		}
	}

	backend := &sessionBackend{name: backendName, loop: c.loop, server: c.server, logger: c.logger}
	if c.Config.Transport.TCPPort != 0 {
		f := &frontend{
			Address: c.Config.TCPAddress(),
			Backend: backend,
			Config:  c.Config,
			Logger:  c.logger,
		}
		g.Go(func() error { return f.Run(ctx) })
	}
	if c.Config.Transport.WebsocketPort != 0 {
		f := &websocketFrontend{
			Address: c.Config.WebsocketAddress(),
			Path:    c.Config.Transport.WebsocketPath,
			Backend: backend,
			Config:  c.Config,
			Logger:  c.logger,
		}
		g.Go(func() error { return f.Run(ctx) })
	}

	return g.Wait()
}

// runWorld drives the in-memory world: it reports the world as loaded after
// the configured delay and then ticks it, flushing vehicle updates every tick.
func (c *Controller) runWorld(ctx context.Context) error {
	load := time.NewTimer(c.Config.World.LoadDelay)
	defer load.Stop()
	ticker := time.NewTicker(c.Config.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-load.C:
			// Loading and draining the join queue happen in one event so that
			// no ready signal can slip in between them.
			if err := c.loop.Post(c.loadWorld); err != nil {
				return nil
			}
		case <-ticker.C:
			if !c.world.Loaded() || c.world.Paused() {
				continue
			}
			c.world.AdvanceTick()
			if err := c.loop.Post(c.server.OnTick); err != nil {
				return nil
			}
		}
	}
}

func (c *Controller) loadWorld() {
	c.applyLayout(c.layout)
	c.world.SetLoaded(true)
	c.logger.Info("world loaded")
	c.server.OnWorldLoaded()
}

// layoutChanged is called by the config watcher whenever the config file is
// written. Only weather and rolling stock are picked up.
func (c *Controller) layoutChanged(cfg *core.Config, err error) {
	if err != nil {
		c.logger.Warnf("ignoring config change: %v", err)
		return
	}
	err = c.loop.Post(func() {
		c.layout = cfg
		if c.world.Loaded() {
			c.applyLayout(cfg)
		}
	})
	if err != nil {
		c.logger.Debugf("dropping config change: %v", err)
	}
}

// applyLayout brings the world's weather and vehicles in line with cfg,
// replicating every difference to the connected players.
func (c *Controller) applyLayout(cfg *core.Config) {
	if weather := worldWeather(cfg); weather != c.world.Weather() {
		c.logger.Infof("weather changed to %s", weather.Preset)
		c.server.ChangeWeather(weather)
	}

	want := make(map[world.VehicleID]world.Vehicle, len(cfg.World.RollingStock))
	for _, r := range cfg.World.RollingStock {
		v := rollingStockVehicle(r)
		want[v.ID] = v
	}
	for _, v := range c.world.Vehicles() {
		if _, ok := want[v.ID]; !ok {
			c.server.DestroyVehicle(v.ID)
		}
	}
	for _, r := range cfg.World.RollingStock {
		v := want[world.VehicleID(r.ID)]
		if existing, ok := c.world.Vehicle(v.ID); ok && existing == v {
			continue
		}
		c.server.SpawnVehicle(v)
	}
}

func rollingStockVehicle(r core.RollingStock) world.Vehicle {
	bogie := world.Bogie{Track: r.Track, Position: r.Position}
	return world.Vehicle{
		ID:      world.VehicleID(r.ID),
		Livery:  r.Livery,
		Visible: !r.Hidden,
		Front:   bogie,
		Rear:    bogie,
		Health:  1,
	}
}

func (c *Controller) shutdownDatabase() {
	if err := data.Shutdown(c.db); err != nil {
		c.logger.Warnf("error closing database: %v", err)
	}
}

func worldOptions(cfg *core.Config) world.Options {
	w := cfg.World
	return world.Options{
		Junctions:  w.Junctions,
		Turntables: w.Turntables,
		Paused:     w.PausedUntilPlayers,
		Weather:    worldWeather(cfg),
		GameParams: world.GameParams{
			TimeScale:          w.GameParams.TimeScale,
			DerailmentEnabled:  w.GameParams.DerailmentEnabled,
			DerailStress:       w.GameParams.DerailStress,
			MaxSpeedKmh:        w.GameParams.MaxSpeedKmh,
			ResourcesUnlimited: w.GameParams.ResourcesUnlimited,
		},
	}
}

func worldWeather(cfg *core.Config) world.Weather {
	w := cfg.World.Weather
	return world.Weather{
		Preset:      w.Preset,
		Rain:        w.Rain,
		Clouds:      w.Clouds,
		Fog:         w.Fog,
		Wetness:     w.Wetness,
		Temperature: w.Temperature,
	}
}
