// Package config loads the service configuration with viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"reflow_oven/internal/control"
	"reflow_oven/internal/hardware"
	"reflow_oven/internal/models"
	"reflow_oven/internal/telemetry"

	"github.com/spf13/viper"
)

const (
	DriverSimulator = "simulator"
	DriverSerial    = "serial"

	envPrefix = "OVEN"
)

type Config struct {
	Port      string          `mapstructure:"port"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Oven      OvenConfig      `mapstructure:"oven"`
	Sensors   []SensorConfig  `mapstructure:"sensors"`
	Hardware  HardwareConfig  `mapstructure:"hardware"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Profiles  ProfilesConfig  `mapstructure:"profiles"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	// Format is "console" or "json".
	Format string `mapstructure:"format"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	SigningKey       string        `mapstructure:"signing_key"`
	TokenTTL         time.Duration `mapstructure:"token_ttl"`
	OperatorUser     string        `mapstructure:"operator_user"`
	OperatorPassword string        `mapstructure:"operator_password"`
}

// OvenConfig holds the run driver and control loop settings.
type OvenConfig struct {
	Tick             time.Duration   `mapstructure:"tick"`
	CoolDownFanSpeed int             `mapstructure:"cool_down_fan_speed"`
	MinimumFanSpeed  int             `mapstructure:"minimum_fan_speed"`
	MaxHeaterTime    time.Duration   `mapstructure:"max_heater_time"`
	BusTimeout       time.Duration   `mapstructure:"bus_timeout"`
	PID              control.Tunings `mapstructure:"pid"`
	PIDInterval      time.Duration   `mapstructure:"pid_interval"`
}

// SensorConfig configures one thermocouple channel, in channel order.
type SensorConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	OffsetC float64 `mapstructure:"offset_c"`
}

type HardwareConfig struct {
	Driver string                `mapstructure:"driver"`
	Serial hardware.SerialConfig `mapstructure:"serial"`
}

type SimulatorConfig struct {
	hardware.SimConfig `mapstructure:",squash"`
	Step               time.Duration `mapstructure:"step"`
}

type TelemetryConfig struct {
	Redis telemetry.RedisConfig `mapstructure:"redis"`
}

type ProfilesConfig struct {
	SeedFile string `mapstructure:"seed_file"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("db.path", "oven.db")
	v.SetDefault("auth.token_ttl", time.Hour)

	v.SetDefault("oven.tick", time.Second)
	v.SetDefault("oven.cool_down_fan_speed", 100)
	v.SetDefault("oven.minimum_fan_speed", 30)
	v.SetDefault("oven.max_heater_time", 600*time.Second)
	v.SetDefault("oven.bus_timeout", 50*time.Millisecond)
	v.SetDefault("oven.pid.kp", 40.0)
	v.SetDefault("oven.pid.ki", 0.05)
	v.SetDefault("oven.pid.kd", 62.5)
	v.SetDefault("oven.pid_interval", 250*time.Millisecond)

	v.SetDefault("hardware.driver", DriverSimulator)
	v.SetDefault("hardware.serial.baud", hardware.DefaultBaudRate)
	v.SetDefault("hardware.serial.timeout", hardware.DefaultReadTimeout)

	v.SetDefault("simulator.ambient_c", hardware.AmbientC)
	v.SetDefault("simulator.step", 100*time.Millisecond)

	v.SetDefault("telemetry.redis.addr", "localhost:6379")
	v.SetDefault("telemetry.redis.channel", "oven:status")
	v.SetDefault("telemetry.redis.history", 600)
}

// Load reads configName from the given directories into a Config. A missing
// file is not an error; defaults and OVEN_* environment variables apply.
func Load(v *viper.Viper, configName string, paths ...string) (Config, error) {
	SetDefaults(v)
	v.SetConfigName(configName)
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return Decode(v)
}

// Decode unmarshals and validates what v holds.
func Decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Sensors) == 0 {
		cfg.Sensors = make([]SensorConfig, models.NumThermocouples)
		for i := range cfg.Sensors {
			cfg.Sensors[i].Enabled = true
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var problems []string
	if len(c.Sensors) > models.NumThermocouples {
		problems = append(problems, fmt.Sprintf("at most %d sensors", models.NumThermocouples))
	}
	switch c.Hardware.Driver {
	case DriverSimulator:
	case DriverSerial:
		if c.Hardware.Serial.Port == "" {
			problems = append(problems, "hardware.serial.port is required for the serial driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown hardware.driver %q", c.Hardware.Driver))
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("unknown log.format %q", c.Log.Format))
	}
	if c.Auth.OperatorUser != "" && c.Auth.OperatorPassword == "" {
		problems = append(problems, "auth.operator_password is required with auth.operator_user")
	}
	if c.Oven.Tick <= 0 {
		problems = append(problems, "oven.tick must be positive")
	}
	if c.Oven.MaxHeaterTime <= 0 {
		problems = append(problems, "oven.max_heater_time must be positive")
	}
	for _, pct := range []int{c.Oven.CoolDownFanSpeed, c.Oven.MinimumFanSpeed} {
		if pct < 0 || pct > 100 {
			problems = append(problems, "fan speeds must be within 0..100")
			break
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
