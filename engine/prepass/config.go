package prepass

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration for YAML unmarshaling ("500ms", "2s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config is the file form of the prepass options. Absent fields keep the NewPrepass defaults.
type Config struct {
	QueueWorkers       int      `yaml:"queue_workers"`
	CompileConcurrency int      `yaml:"compile_concurrency"`
	RetainFrames       *int     `yaml:"retain_frames"`
	ShaderValidation   *bool    `yaml:"shader_validation"`
	AsyncCompile       bool     `yaml:"async_compile"`
	Profiling          bool     `yaml:"profiling"`
	ProfileInterval    Duration `yaml:"profile_interval"`
}

// ParseConfig decodes a YAML prepass config. Unknown fields are rejected; empty input yields
// an empty config.
//
// Parameters:
//   - data: the YAML document
//
// Returns:
//   - *Config: the decoded config
//   - error: an error if the document is malformed or names an unknown field
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("prepass: parsing config: %w", err)
	}
	return &cfg, nil
}

// LoadConfig reads and decodes the YAML prepass config at path.
//
// Parameters:
//   - path: the config file
//
// Returns:
//   - *Config: the decoded config
//   - error: an error if the file cannot be read or decoded
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prepass: reading config: %w", err)
	}
	return ParseConfig(data)
}

// Options converts c into builder options for NewPrepass.
//
// Returns:
//   - []PrepassBuilderOption: one option per field set in c
func (c *Config) Options() []PrepassBuilderOption {
	var opts []PrepassBuilderOption
	if c.QueueWorkers > 0 {
		opts = append(opts, WithQueueWorkers(c.QueueWorkers))
	}
	if c.CompileConcurrency > 0 {
		opts = append(opts, WithCompileConcurrency(c.CompileConcurrency))
	}
	if c.RetainFrames != nil {
		opts = append(opts, WithRetainFrames(*c.RetainFrames))
	}
	if c.ShaderValidation != nil {
		opts = append(opts, WithShaderValidation(*c.ShaderValidation))
	}
	if c.AsyncCompile {
		opts = append(opts, WithAsyncCompile(true))
	}
	if c.Profiling {
		opts = append(opts, WithProfiling(true, c.ProfileInterval.Duration()))
	}
	return opts
}
