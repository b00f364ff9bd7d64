// pkg/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/viper"

	"github.com/opd-ai/go-arcadeflight/pkg/flight"
	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

// EnvPrefix is prepended to every environment override, e.g.
// FLIGHT_AIRCRAFT_MAXTHRUST or FLIGHT_SIMULATION_TIMESTEP.
const EnvPrefix = "FLIGHT"

var (
	// ErrInvalidTunable is returned for a non-positive handling parameter.
	ErrInvalidTunable = flight.ErrInvalidTunable
	// ErrInvalidTimeStep is returned for a non-positive simulation step.
	ErrInvalidTimeStep = errors.New("invalid time step")
	// ErrInvalidConfig covers every other rejected value.
	ErrInvalidConfig = errors.New("invalid config")
)

// Config contains the full configuration of a simulation run
type Config struct {
	Aircraft   AircraftConfig   `json:"aircraft" mapstructure:"aircraft"`
	Simulation SimulationConfig `json:"simulation" mapstructure:"simulation"`
	Spawn      SpawnConfig      `json:"spawn" mapstructure:"spawn"`
	Telemetry  TelemetryConfig  `json:"telemetry" mapstructure:"telemetry"`
	Health     HealthConfig     `json:"health" mapstructure:"health"`
	LogLevel   string           `json:"logLevel" mapstructure:"logLevel"`
}

// Vector is a 3D vector in config files.
type Vector struct {
	X float64 `json:"x" mapstructure:"x"`
	Y float64 `json:"y" mapstructure:"y"`
	Z float64 `json:"z" mapstructure:"z"`
}

func (v Vector) Vec3() mgl64.Vec3 { return mgl64.Vec3{v.X, v.Y, v.Z} }

// AircraftConfig holds the handling tunables and the rigid body settings.
type AircraftConfig struct {
	flight.Tunables `mapstructure:",squash"`
	Body            BodyConfig `json:"body" mapstructure:"body"`
}

// BodyConfig contains rigid body configuration
type BodyConfig struct {
	Mass           float64 `json:"mass" mapstructure:"mass"`
	LinearDamping  float64 `json:"linearDamping" mapstructure:"linearDamping"`
	AngularDamping float64 `json:"angularDamping" mapstructure:"angularDamping"`
	UseGravity     bool    `json:"useGravity" mapstructure:"useGravity"`
	Interpolate    bool    `json:"interpolate" mapstructure:"interpolate"`
	Inertia        Vector  `json:"inertia" mapstructure:"inertia"`
}

// Settings converts the body config for physics.Body.Configure.
func (b BodyConfig) Settings() physics.BodySettings {
	return physics.BodySettings{
		Mass:           b.Mass,
		LinearDamping:  b.LinearDamping,
		AngularDamping: b.AngularDamping,
		UseGravity:     b.UseGravity,
		Interpolate:    b.Interpolate,
		Inertia:        b.Inertia.Vec3(),
	}
}

// SimulationConfig contains fixed-step scheduler configuration
type SimulationConfig struct {
	// TimeStep is the fixed tick length in seconds.
	TimeStep     float64 `json:"timeStep" mapstructure:"timeStep"`
	Gravity      float64 `json:"gravity" mapstructure:"gravity"`
	GroundHeight float64 `json:"groundHeight" mapstructure:"groundHeight"`
}

// SpawnConfig is the initial state of spawned aircraft.
type SpawnConfig struct {
	Position   Vector  `json:"position" mapstructure:"position"`
	Velocity   Vector  `json:"velocity" mapstructure:"velocity"`
	HeadingDeg float64 `json:"headingDeg" mapstructure:"headingDeg"`
}

// TelemetryConfig contains telemetry export configuration
type TelemetryConfig struct {
	// Every publishes a frame each N ticks.
	Every      int            `json:"every" mapstructure:"every"`
	BufferSize int            `json:"bufferSize" mapstructure:"bufferSize"`
	Recorder   RecorderConfig `json:"recorder" mapstructure:"recorder"`
	Influx     InfluxConfig   `json:"influx" mapstructure:"influx"`
	Breaker    BreakerConfig  `json:"breaker" mapstructure:"breaker"`
}

// RecorderConfig selects the SQLite flight recorder.
type RecorderConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// InfluxConfig selects the InfluxDB frame sink.
type InfluxConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	URL        string `json:"url" mapstructure:"url"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org"`
	Bucket     string `json:"bucket" mapstructure:"bucket"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// BreakerConfig contains circuit breaker configuration for remote sinks
type BreakerConfig struct {
	MaxRequests         uint32        `json:"maxRequests" mapstructure:"maxRequests"`
	Interval            time.Duration `json:"interval" mapstructure:"interval"`
	Timeout             time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxConsecutiveFails uint32        `json:"maxConsecutiveFails" mapstructure:"maxConsecutiveFails"`
}

// HealthConfig contains health endpoint configuration
type HealthConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	Port    int  `json:"port" mapstructure:"port"`
}

// DefaultConfig returns the stock configuration
func DefaultConfig() *Config {
	body := flight.AircraftBodySettings()
	return &Config{
		Aircraft: AircraftConfig{
			Tunables: flight.DefaultTunables(),
			Body: BodyConfig{
				Mass:           body.Mass,
				LinearDamping:  body.LinearDamping,
				AngularDamping: body.AngularDamping,
				UseGravity:     body.UseGravity,
				Interpolate:    body.Interpolate,
				Inertia:        Vector{X: body.Inertia.X(), Y: body.Inertia.Y(), Z: body.Inertia.Z()},
			},
		},
		Simulation: SimulationConfig{
			TimeStep:     1.0 / 60.0,
			Gravity:      physics.DefaultGravity,
			GroundHeight: 0,
		},
		Spawn: SpawnConfig{
			Position: Vector{Y: 500},
			Velocity: Vector{Z: 60},
		},
		Telemetry: TelemetryConfig{
			Every:      1,
			BufferSize: 1024,
			Recorder: RecorderConfig{
				Path: "flight.db",
			},
			Influx: InfluxConfig{
				URL:    "http://localhost:8086",
				Org:    "arcadeflight",
				Bucket: "flight",
			},
			Breaker: BreakerConfig{
				MaxRequests:         1,
				Interval:            time.Minute,
				Timeout:             30 * time.Second,
				MaxConsecutiveFails: 5,
			},
		},
		Health: HealthConfig{
			Port: 8080,
		},
		LogLevel: "info",
	}
}

// setDefaults registers every key so env overrides and Unmarshal see them.
func setDefaults(v *viper.Viper, d *Config) {
	t := d.Aircraft.Tunables
	v.SetDefault("aircraft.pitchTorque", t.PitchTorque)
	v.SetDefault("aircraft.rollTorque", t.RollTorque)
	v.SetDefault("aircraft.yawTorque", t.YawTorque)
	v.SetDefault("aircraft.maxThrust", t.MaxThrust)
	v.SetDefault("aircraft.throttleSensitivity", t.ThrottleSensitivity)
	v.SetDefault("aircraft.liftFactor", t.LiftFactor)
	v.SetDefault("aircraft.stabilizationStrength", t.StabilizationStrength)

	b := d.Aircraft.Body
	v.SetDefault("aircraft.body.mass", b.Mass)
	v.SetDefault("aircraft.body.linearDamping", b.LinearDamping)
	v.SetDefault("aircraft.body.angularDamping", b.AngularDamping)
	v.SetDefault("aircraft.body.useGravity", b.UseGravity)
	v.SetDefault("aircraft.body.interpolate", b.Interpolate)
	setVectorDefault(v, "aircraft.body.inertia", b.Inertia)

	v.SetDefault("simulation.timeStep", d.Simulation.TimeStep)
	v.SetDefault("simulation.gravity", d.Simulation.Gravity)
	v.SetDefault("simulation.groundHeight", d.Simulation.GroundHeight)

	setVectorDefault(v, "spawn.position", d.Spawn.Position)
	setVectorDefault(v, "spawn.velocity", d.Spawn.Velocity)
	v.SetDefault("spawn.headingDeg", d.Spawn.HeadingDeg)

	tel := d.Telemetry
	v.SetDefault("telemetry.every", tel.Every)
	v.SetDefault("telemetry.bufferSize", tel.BufferSize)
	v.SetDefault("telemetry.recorder.enabled", tel.Recorder.Enabled)
	v.SetDefault("telemetry.recorder.path", tel.Recorder.Path)
	v.SetDefault("telemetry.influx.enabled", tel.Influx.Enabled)
	v.SetDefault("telemetry.influx.url", tel.Influx.URL)
	v.SetDefault("telemetry.influx.token", tel.Influx.Token)
	v.SetDefault("telemetry.influx.org", tel.Influx.Org)
	v.SetDefault("telemetry.influx.bucket", tel.Influx.Bucket)
	v.SetDefault("telemetry.influx.backupPath", tel.Influx.BackupPath)
	v.SetDefault("telemetry.breaker.maxRequests", tel.Breaker.MaxRequests)
	v.SetDefault("telemetry.breaker.interval", tel.Breaker.Interval)
	v.SetDefault("telemetry.breaker.timeout", tel.Breaker.Timeout)
	v.SetDefault("telemetry.breaker.maxConsecutiveFails", tel.Breaker.MaxConsecutiveFails)

	v.SetDefault("health.enabled", d.Health.Enabled)
	v.SetDefault("health.port", d.Health.Port)
	v.SetDefault("logLevel", d.LogLevel)
}

func setVectorDefault(v *viper.Viper, key string, vec Vector) {
	v.SetDefault(key+".x", vec.X)
	v.SetDefault(key+".y", vec.Y)
	v.SetDefault(key+".z", vec.Z)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads a JSON config file over the defaults and applies FLIGHT_*
// environment overrides. An empty path or a missing file yields the
// defaults plus environment.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration as indented JSON
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the values the simulation cannot run without.
func (c *Config) Validate() error {
	if err := c.Aircraft.Tunables.Validate(); err != nil {
		return err
	}
	if !(c.Aircraft.Body.Mass > 0) || math.IsInf(c.Aircraft.Body.Mass, 0) {
		return fmt.Errorf("%w: aircraft.body.mass must be positive, got %v", ErrInvalidConfig, c.Aircraft.Body.Mass)
	}
	if c.Aircraft.Body.LinearDamping < 0 || c.Aircraft.Body.AngularDamping < 0 {
		return fmt.Errorf("%w: damping must not be negative", ErrInvalidConfig)
	}
	if !(c.Simulation.TimeStep > 0) || math.IsInf(c.Simulation.TimeStep, 0) {
		return fmt.Errorf("%w: simulation.timeStep must be positive, got %v", ErrInvalidTimeStep, c.Simulation.TimeStep)
	}
	if c.Telemetry.Every < 1 {
		return fmt.Errorf("%w: telemetry.every must be at least 1, got %d", ErrInvalidConfig, c.Telemetry.Every)
	}
	if c.Telemetry.BufferSize < 1 {
		return fmt.Errorf("%w: telemetry.bufferSize must be at least 1, got %d", ErrInvalidConfig, c.Telemetry.BufferSize)
	}
	if c.Health.Enabled && (c.Health.Port <= 0 || c.Health.Port > 65535) {
		return fmt.Errorf("%w: health.port out of range: %d", ErrInvalidConfig, c.Health.Port)
	}
	return nil
}

// TickDuration is the simulation step as a wall-clock duration.
func (c *Config) TickDuration() time.Duration {
	return time.Duration(c.Simulation.TimeStep * float64(time.Second))
}
