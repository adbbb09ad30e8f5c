package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// MaxPeers is the number of distinct peer identifiers the protocol can address,
// since a peer id travels as a single byte.
const MaxPeers = 256

// ErrInvalidConfig is returned by Validate when a config value is unusable.
var ErrInvalidConfig = errors.New("invalid config")

// Mod is one entry of the server's loaded extension list.
type Mod struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// RollingStock is a vehicle placed in the world when it loads.
type RollingStock struct {
	ID       uint16  `mapstructure:"id"`
	Livery   string  `mapstructure:"livery"`
	Track    uint16  `mapstructure:"track"`
	Position float64 `mapstructure:"position"`
	// Hidden vehicles are simulated but never streamed to clients.
	Hidden bool `mapstructure:"hidden"`
}

// Config contains all of the configuration options available to any of the
// server's components.
type Config struct {
	// Hostname or IP address on which the servers will listen for connections.
	Hostname string `mapstructure:"hostname"`
	// Shared secret every client has to present on login. Blank disables the check
	// for clients that also send a blank password.
	Password string `mapstructure:"password"`
	// Major build version of the game that clients must match.
	BuildMajorVersion int `mapstructure:"build_major_version"`
	// Maximum number of concurrently connected players (1-256).
	MaxPlayers int `mapstructure:"max_players"`
	// Username of the player hosting the world. That peer already holds the
	// authoritative state so it never receives a world snapshot.
	HostUsername string `mapstructure:"host_username"`
	// Extensions the server runs with; clients must present the same set.
	Mods []Mod `mapstructure:"mods"`

	Logging struct {
		// Full path to file to which logs will be written. Blank will write to stdout.
		LogFilePath string `mapstructure:"log_file_path"`
		// Minimum level of a log required to be written. Options: debug, info, warn, error
		LogLevel string `mapstructure:"log_level"`
		// Include the calling function in each log line.
		IncludeCaller bool `mapstructure:"include_caller"`
	} `mapstructure:"logging"`

	Transport struct {
		// Port for the TCP transport. 0 disables it.
		TCPPort int `mapstructure:"tcp_port"`
		// Port for the WebSocket transport. 0 disables it.
		WebsocketPort int `mapstructure:"websocket_port"`
		// HTTP path on which WebSocket upgrades are accepted.
		WebsocketPath string `mapstructure:"websocket_path"`
		// Number of pending outbound messages after which unreliable ones are dropped.
		SendQueueSize int `mapstructure:"send_queue_size"`
		// How often each peer is pinged to measure latency.
		PingInterval time.Duration `mapstructure:"ping_interval"`
	} `mapstructure:"transport"`

	World struct {
		// Simulation ticks per second.
		TickRate int `mapstructure:"tick_rate"`
		// Time to wait before the world reports itself loaded.
		LoadDelay time.Duration `mapstructure:"load_delay"`
		// Number of junctions and turntables in the map.
		Junctions  int `mapstructure:"junctions"`
		Turntables int `mapstructure:"turntables"`
		// Start the simulation paused until the first player becomes active,
		// and pause it again whenever the last one leaves.
		PausedUntilPlayers bool `mapstructure:"paused_until_players"`
		// Re-read weather and rolling_stock whenever the config file changes.
		ReloadLayout bool `mapstructure:"reload_layout"`

		RollingStock []RollingStock `mapstructure:"rolling_stock"`

		Weather struct {
			Preset      string  `mapstructure:"preset"`
			Rain        float32 `mapstructure:"rain"`
			Clouds      float32 `mapstructure:"clouds"`
			Fog         float32 `mapstructure:"fog"`
			Wetness     float32 `mapstructure:"wetness"`
			Temperature float32 `mapstructure:"temperature"`
		} `mapstructure:"weather"`

		GameParams struct {
			TimeScale          float32 `mapstructure:"time_scale"`
			DerailmentEnabled  bool    `mapstructure:"derailment_enabled"`
			DerailStress       float32 `mapstructure:"derail_stress"`
			MaxSpeedKmh        float32 `mapstructure:"max_speed_kmh"`
			ResourcesUnlimited bool    `mapstructure:"resources_unlimited"`
		} `mapstructure:"game_params"`
	} `mapstructure:"world"`

	Database struct {
		// Record login attempts and session times.
		Enabled bool `mapstructure:"enabled"`
		// Either "postgres" or "sqlite".
		Engine string `mapstructure:"engine"`
		// Database file used by the sqlite engine.
		Filename string `mapstructure:"filename"`
		// Hostname of the Postgres database instance.
		Host string `mapstructure:"host"`
		// Port on db_host on which the Postgres instance is accepting connections.
		Port int `mapstructure:"port"`
		// Name of the database in Postgres.
		Name string `mapstructure:"name"`
		// Username and password of a user with full RW privileges to ${db_name}.
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		// Set to verify-full if the Postgres instance supports SSL.
		SSLMode string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	Debugging struct {
		// Enable a pprof server on localhost.
		PprofEnabled bool `mapstructure:"pprof_enabled"`
		// Port on which a pprof server will be started if enabled.
		PprofPort int `mapstructure:"pprof_port"`
		// Dump every decoded client message to stdout.
		PacketLoggingEnabled bool `mapstructure:"packet_logging_enabled"`
		// Enable database-level query logging.
		DatabaseLoggingEnabled bool `mapstructure:"database_logging_enabled"`
	} `mapstructure:"debugging"`
}

const envVarPrefix = "RAILYARD"

func setDefaults(v *viper.Viper) {
	v.SetDefault("hostname", "0.0.0.0")
	v.SetDefault("build_major_version", 99)
	v.SetDefault("max_players", 8)
	v.SetDefault("logging.log_level", "info")
	v.SetDefault("transport.tcp_port", 7777)
	v.SetDefault("transport.websocket_path", "/ws")
	v.SetDefault("transport.send_queue_size", 256)
	v.SetDefault("transport.ping_interval", time.Second)
	v.SetDefault("world.tick_rate", 24)
	v.SetDefault("world.weather.preset", "clear")
	v.SetDefault("world.weather.temperature", 18)
	v.SetDefault("world.game_params.time_scale", 1)
	v.SetDefault("world.game_params.derailment_enabled", true)
	v.SetDefault("world.game_params.derail_stress", 1)
	v.SetDefault("world.game_params.max_speed_kmh", 120)
	v.SetDefault("database.engine", "sqlite")
	v.SetDefault("database.filename", "railyard.db")
	v.SetDefault("debugging.pprof_port", 6060)
}

// LoadConfig reads config.yaml under configPath, applying defaults and any
// RAILYARD_-prefixed environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	v, err := readConfig(configPath)
	if err != nil {
		return nil, err
	}
	return unmarshalConfig(v)
}

// WatchConfig calls onChange with the re-read config every time the config
// file under configPath changes. A reload that doesn't parse or validate is
// passed on as an error.
func WatchConfig(configPath string, onChange func(*Config, error)) error {
	v, err := readConfig(configPath)
	if err != nil {
		return err
	}
	v.OnConfigChange(func(fsnotify.Event) {
		onChange(unmarshalConfig(v))
	})
	v.WatchConfig()
	return nil
}

func readConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(configPath)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envVarPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: no config file in path %s", configPath)
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, database.host can be set using: <envVarPrefix>_DATABASE_HOST
	for _, k := range v.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := v.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			return nil, fmt.Errorf("error binding %s to %s: %w", k, envVarPrefix+"_"+envVar, err)
		}
	}
	return v, nil
}

func unmarshalConfig(v *viper.Viper) (*Config, error) {
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config object: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the values that the server cannot start without.
func (c *Config) Validate() error {
	if c.MaxPlayers < 1 || c.MaxPlayers > MaxPeers {
		return fmt.Errorf("%w: max_players must be between 1 and %d, got %d", ErrInvalidConfig, MaxPeers, c.MaxPlayers)
	}
	if c.Transport.TCPPort == 0 && c.Transport.WebsocketPort == 0 {
		return fmt.Errorf("%w: at least one of transport.tcp_port and transport.websocket_port is required", ErrInvalidConfig)
	}
	if c.World.TickRate <= 0 {
		return fmt.Errorf("%w: world.tick_rate must be positive", ErrInvalidConfig)
	}
	seen := make(map[Mod]bool, len(c.Mods))
	for _, m := range c.Mods {
		if seen[m] {
			return fmt.Errorf("%w: duplicate mod %s %s", ErrInvalidConfig, m.Name, m.Version)
		}
		seen[m] = true
	}
	vehicles := make(map[uint16]bool, len(c.World.RollingStock))
	for _, r := range c.World.RollingStock {
		if r.ID == 0 {
			return fmt.Errorf("%w: rolling stock id 0 is reserved", ErrInvalidConfig)
		}
		if vehicles[r.ID] {
			return fmt.Errorf("%w: duplicate rolling stock id %d", ErrInvalidConfig, r.ID)
		}
		vehicles[r.ID] = true
	}
	if c.Database.Enabled && c.Database.Engine != "postgres" && c.Database.Engine != "sqlite" {
		return fmt.Errorf("%w: unknown database engine %q", ErrInvalidConfig, c.Database.Engine)
	}
	return nil
}

const databaseURITemplate = "host=%s port=%d dbname=%s user=%s password=%s sslmode=%s"

// DatabaseURL returns a database URL generated from the provided config values.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		databaseURITemplate,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Username,
		c.Database.Password,
		c.Database.SSLMode,
	)
}

// TCPAddress returns the address on which the TCP transport listens.
func (c *Config) TCPAddress() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Transport.TCPPort)
}

// WebsocketAddress returns the address on which the WebSocket transport listens.
func (c *Config) WebsocketAddress() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Transport.WebsocketPort)
}

// TickInterval is the duration of one simulation tick.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.World.TickRate)
}

// DatabaseSource returns what the configured engine needs to open the
// database: a file path for sqlite, a DSN for postgres.
func (c *Config) DatabaseSource() string {
	if c.Database.Engine == "sqlite" {
		return c.Database.Filename
	}
	return c.DatabaseURL()
}
