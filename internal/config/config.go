package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalnine/calcbench/internal/logging"
	"github.com/signalnine/calcbench/internal/measure"
	"github.com/signalnine/calcbench/internal/retry"
	"github.com/signalnine/calcbench/internal/soap"
)

const (
	DefaultPath   = "calcbench.yaml"
	DefaultEpochs = 15
	DefaultMethod = "SOAP_Calculator"
)

type Config struct {
	Dataset   string  `yaml:"dataset"`
	Epochs    int     `yaml:"epochs"`
	Method    string  `yaml:"method"`
	Tolerance float64 `yaml:"tolerance"`
	Service   Service `yaml:"service"`
	Retry     Retry   `yaml:"retry"`
	Results   Results `yaml:"results"`
	Log       Log     `yaml:"log"`
}

type Service struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64   `yaml:"rate_limit"`
	Container Container `yaml:"container"`
}

// Container describes an optional local calculator image started for the
// run. An empty Image means the remote endpoint is used as is.
type Container struct {
	Image string `yaml:"image"`
	Port  int    `yaml:"port"`
	Path  string `yaml:"path"`
}

type Retry struct {
	MaxRetries        int           `yaml:"max_retries"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	SkipDeterministic bool          `yaml:"skip_deterministic"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

type Log struct {
	Level string `yaml:"level"`
}

// Policy converts the retry section into a retry policy.
func (r Retry) Policy() retry.Policy {
	return retry.Policy{
		MaxRetries:        r.MaxRetries,
		BaseDelay:         r.BaseDelay,
		SkipDeterministic: r.SkipDeterministic,
	}
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Epochs:    DefaultEpochs,
		Method:    DefaultMethod,
		Tolerance: measure.DefaultTolerance,
		Service: Service{
			Endpoint:  soap.DefaultEndpoint,
			Timeout:   soap.DefaultTimeout,
			Container: Container{Port: 8080, Path: "/calculator.asmx"},
		},
		Retry: Retry{
			MaxRetries: retry.DefaultMaxRetries,
			BaseDelay:  retry.DefaultBaseDelay,
		},
		Results: Results{Dir: "results"},
		Log:     Log{Level: "info"},
	}
}

// Load reads path over the defaults and validates the result. Keys missing
// from the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration after defaults and flag overrides have
// been applied. Dataset is not checked; only commands that read it need it.
func (c *Config) Validate() error {
	var errs []error
	if c.Epochs < 1 {
		errs = append(errs, errors.New("epochs must be at least 1"))
	}
	if c.Tolerance <= 0 {
		errs = append(errs, errors.New("tolerance must be positive"))
	}
	if c.Service.Endpoint == "" && c.Service.Container.Image == "" {
		errs = append(errs, errors.New("service: endpoint or container image is required"))
	}
	if c.Service.Timeout <= 0 {
		errs = append(errs, errors.New("service: timeout must be positive"))
	}
	if c.Service.RateLimit < 0 {
		errs = append(errs, errors.New("service: rate_limit must not be negative"))
	}
	if c.Service.Container.Image != "" && (c.Service.Container.Port < 1 || c.Service.Container.Port > 65535) {
		errs = append(errs, fmt.Errorf("service: container port %d out of range", c.Service.Container.Port))
	}
	if c.Retry.MaxRetries < 1 {
		errs = append(errs, errors.New("retry: max_retries must be at least 1"))
	}
	if c.Retry.BaseDelay < 0 {
		errs = append(errs, errors.New("retry: base_delay must not be negative"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	return errors.Join(errs...)
}
