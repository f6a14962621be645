package appconf

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"ubicate.osuc.dev/internal/campus"
)

// EnvPrefix namespaces environment overrides, e.g. UBICATE_DIRECTIONS_ACCESS_TOKEN.
const EnvPrefix = "UBICATE"

type SensorConfig struct {
	GPSDAddress       string        `mapstructure:"gpsd_address" validate:"omitempty,hostname_port"`
	MaximumAge        time.Duration `mapstructure:"maximum_age" validate:"min=0"`
	PermissionTimeout time.Duration `mapstructure:"permission_timeout" validate:"min=0"`
	CardinalPoints    int           `mapstructure:"cardinal_points" validate:"oneof=4 8"`
}

type DirectionsConfig struct {
	BaseURL           string        `mapstructure:"base_url" validate:"required,url"`
	AccessToken       string        `mapstructure:"access_token"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"min=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"min=0"`
	Burst             int           `mapstructure:"burst" validate:"min=0"`
}

type NavigationConfig struct {
	WaitTimeout     time.Duration `mapstructure:"wait_timeout" validate:"min=0"`
	RouteTimeout    time.Duration `mapstructure:"route_timeout" validate:"min=0"`
	MaxCoordinators int           `mapstructure:"max_coordinators" validate:"min=0"`
	// IdleTimeout evicts directions controls nobody has used for this long.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0"`
}

// Config holds every setting of the API server.
type Config struct {
	Port       int         `mapstructure:"port" validate:"min=1,max=65535"`
	Env        Environment `mapstructure:"-"`
	ApiKeys    []string    `mapstructure:"api_keys" validate:"min=1,dive,required"`
	RateLimit  int         `mapstructure:"rate_limit" validate:"min=0"`
	LogLevel   string      `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	DBPath     string      `mapstructure:"db_path" validate:"required"`
	PlacesFile string      `mapstructure:"places_file"`

	Sensor     SensorConfig     `mapstructure:"sensor"`
	Directions DirectionsConfig `mapstructure:"directions"`
	Navigation NavigationConfig `mapstructure:"navigation"`

	// Campuses replaces the built-in campus table when set.
	Campuses []campus.Definition `mapstructure:"campuses" validate:"dive"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("port", 4000)
	v.SetDefault("api_keys", []string{"test"})
	v.SetDefault("rate_limit", 100)
	v.SetDefault("log_level", "info")
	v.SetDefault("db_path", "ubicate.db")
	v.SetDefault("places_file", "")

	v.SetDefault("sensor.gpsd_address", "")
	v.SetDefault("sensor.maximum_age", "60s")
	v.SetDefault("sensor.permission_timeout", "15s")
	v.SetDefault("sensor.cardinal_points", 8)

	v.SetDefault("directions.base_url", "https://api.mapbox.com")
	v.SetDefault("directions.access_token", "")
	v.SetDefault("directions.timeout", "10s")
	v.SetDefault("directions.requests_per_second", 5)
	v.SetDefault("directions.burst", 2)

	v.SetDefault("navigation.wait_timeout", "10s")
	v.SetDefault("navigation.route_timeout", "20s")
	v.SetDefault("navigation.max_coordinators", 256)
	v.SetDefault("navigation.idle_timeout", "10m")
}

// Load reads defaults, then the optional config file, then UBICATE_* environment variables.
func Load(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}
	cfg.Env = EnvFlagToEnvironment(v.GetString("env"))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct constraints, then builds the campus catalog to reject bad bounds early.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if len(c.Campuses) > 0 {
		if _, err := campus.NewCatalog(c.Campuses); err != nil {
			return fmt.Errorf("invalid campuses: %w", err)
		}
	}
	return nil
}

// Catalog returns the configured campus catalog, or the built-in one.
func (c Config) Catalog() (*campus.Catalog, error) {
	if len(c.Campuses) == 0 {
		return campus.DefaultCatalog(), nil
	}
	return campus.NewCatalog(c.Campuses)
}
