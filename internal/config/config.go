package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// LogConfig configures the slog handler of the CLI.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig configures the metrics and readiness endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// TargetConfig describes one dependency. Which fields apply depends on Kind.
type TargetConfig struct {
	Name       string        `mapstructure:"name"`
	Kind       string        `mapstructure:"kind"`
	Importance string        `mapstructure:"importance"`
	Group      string        `mapstructure:"group"`
	Label      string        `mapstructure:"label"`
	Timeout    time.Duration `mapstructure:"timeout"`

	// tcp, postgres
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// postgres, mysql
	DBName         string `mapstructure:"dbname"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"sslmode"`
	Driver         string `mapstructure:"driver"`
	DSN            string `mapstructure:"dsn"`
	Query          string `mapstructure:"query"`
	Expect         any    `mapstructure:"expect"`
	PrintResult    bool   `mapstructure:"printResult"`
	RedactPassword bool   `mapstructure:"redactPassword"`

	// http, graphql, nats, rabbitmq
	URL    string `mapstructure:"url"`
	Method string `mapstructure:"method"`
	Status int    `mapstructure:"status"`

	// redis
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`

	// kafka
	Brokers []string `mapstructure:"brokers"`
	Topics  []string `mapstructure:"topics"`

	// docker
	Labels map[string]string `mapstructure:"labels"`

	// all, any, quorum
	Checks []TargetConfig `mapstructure:"checks"`
	Min    int            `mapstructure:"min"`
}

// Config is the top-level configuration of the await command.
type Config struct {
	Timeout        time.Duration  `mapstructure:"timeout"`
	Tick           time.Duration  `mapstructure:"tick"`
	AttemptTimeout time.Duration  `mapstructure:"attemptTimeout"`
	Log            LogConfig      `mapstructure:"log"`
	Metrics        MetricsConfig  `mapstructure:"metrics"`
	Targets        []TargetConfig `mapstructure:"targets"`
}

// Load reads configuration from a YAML/TOML/JSON file, AWAIT_* environment
// variables and flags, in increasing order of precedence. When path is empty
// the AWAIT_CONFIG variable is consulted, then ./await.yaml.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("AWAIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	if path == "" {
		path = v.GetString("config")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("await")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports configuration errors that would only surface mid-wait.
func (c *Config) Validate() error {
	var errs []error

	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.Tick <= 0 {
		errs = append(errs, errors.New("tick must be positive"))
	}

	for i, target := range c.Targets {
		prefix := fmt.Sprintf("targets[%d]", i)
		errs = append(errs, target.validate(prefix)...)

		switch target.Importance {
		case "", "low", "high":
		default:
			errs = append(errs, fmt.Errorf("%s: unknown importance %q", prefix, target.Importance))
		}
	}

	return errors.Join(errs...)
}

// validate checks the fields each kind cannot work without.
func (t TargetConfig) validate(prefix string) []error {
	var errs []error

	require := func(ok bool, fields string) {
		if !ok {
			errs = append(errs, fmt.Errorf("%s: %s: %s required", prefix, t.Kind, fields))
		}
	}

	switch t.Kind {
	case "":
		errs = append(errs, fmt.Errorf("%s: kind is required", prefix))
	case "tcp", "postgres":
		require(t.Host != "" && t.Port > 0, "host and port are")
	case "mysql":
		require(t.DSN != "" || (t.Host != "" && t.Port > 0), "dsn or host and port are")
	case "http", "graphql", "nats", "rabbitmq":
		require(t.URL != "", "url is")
	case "redis":
		require(t.Addr != "", "addr is")
	case "kafka":
		require(len(t.Brokers) > 0, "brokers are")
	case "docker":
		require(len(t.Labels) > 0, "labels are")
	case "all", "any", "quorum":
		require(len(t.Checks) > 0, "checks are")
		if t.Kind == "quorum" {
			require(t.Min > 0 && t.Min <= len(t.Checks), "min between 1 and the number of checks is")
		}
		for i, child := range t.Checks {
			errs = append(errs, child.validate(fmt.Sprintf("%s.checks[%d]", prefix, i))...)
		}
	}

	return errs
}

// bindFlags binds --metrics-addr to metrics.addr, --log-level to log.level.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error

	flags.VisitAll(func(flag *pflag.Flag) {
		if err != nil {
			return
		}
		key := strings.ReplaceAll(flag.Name, "-", ".")
		if bindErr := v.BindPFlag(key, flag); bindErr != nil {
			err = fmt.Errorf("bind flag %s: %w", flag.Name, bindErr)
		}
	})

	return err
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("timeout", "60s")
	v.SetDefault("tick", "500ms")
	v.SetDefault("attemptTimeout", "1s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.addr", "")
}
