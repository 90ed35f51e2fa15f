package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalnine/mcpbench/internal/result"
)

type Config struct {
	Datasets     []Dataset `yaml:"datasets"`
	Environments []string  `yaml:"environments"`
	Metrics      []string  `yaml:"metrics"`
	OpsMetrics   []string  `yaml:"ops_metrics"`
	MCP          MCP       `yaml:"mcp"`
	Results      Results   `yaml:"results"`
}

// Dataset ties a report label to the eval file each run directory holds.
type Dataset struct {
	Name     string `yaml:"name"`
	File     string `yaml:"file"`
	Mode     string `yaml:"mode"`
	Template string `yaml:"template"`
}

type MCP struct {
	URL         string        `yaml:"url"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	TopP        float64       `yaml:"top_p"`
	// Retries is how many extra attempts a failed request gets.
	Retries int `yaml:"retries"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

const (
	ModeText  = "text"
	ModeYesNo = "yesno"
)

// Sampling defaults. They are seeded before decoding so an explicit 0 in
// the file survives.
const (
	DefaultTemperature = 0.2
	DefaultTopP        = 0.9
)

const (
	EnvBareMetal = "Bare-Metal"
	EnvContainer = "Container"
)

// Default mirrors the three-dataset, two-environment layout the benchmark
// scripts produce.
func Default() *Config {
	cfg := &Config{
		Datasets: []Dataset{
			{Name: "Alpaca", File: "alpaca_eval.json", Mode: ModeText},
			{Name: "SQuADv2", File: "squad_eval.json", Mode: ModeText,
				Template: "You are a question answering assistant. Answer concisely using only the provided context.\n\nContext:\n{{.Context}}\n\nQuestion: {{.Question}}\nAnswer:"},
			{Name: "BoolQ", File: "boolq_eval.json", Mode: ModeYesNo,
				Template: "Answer the question with yes or no.\n\nPassage:\n{{.Context}}\n\nQuestion: {{.Question}}\nAnswer:"},
		},
		Environments: []string{EnvBareMetal, EnvContainer},
		MCP:          MCP{Temperature: DefaultTemperature, TopP: DefaultTopP},
	}
	applyDefaults(cfg)
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := Config{MCP: MCP{Temperature: DefaultTemperature, TopP: DefaultTopP}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not
// exist and the caller did not ask for it explicitly.
func LoadOrDefault(path string, explicit bool) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return nil, err
}

func applyDefaults(cfg *Config) {
	if len(cfg.Metrics) == 0 {
		cfg.Metrics = slices.Clone(result.DatasetMetrics)
	}
	if len(cfg.OpsMetrics) == 0 {
		cfg.OpsMetrics = slices.Clone(result.OpsMetrics)
	}
	for i := range cfg.Datasets {
		if cfg.Datasets[i].Mode == "" {
			cfg.Datasets[i].Mode = ModeText
		}
	}
	if cfg.MCP.URL == "" {
		cfg.MCP.URL = "http://localhost:8000/mcp"
	}
	if cfg.MCP.Timeout == 0 {
		cfg.MCP.Timeout = 180 * time.Second
	}
	if cfg.MCP.MaxTokens == 0 {
		cfg.MCP.MaxTokens = 128
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
}

func validate(cfg *Config) error {
	if len(cfg.Datasets) == 0 {
		return fmt.Errorf("no datasets defined")
	}
	names := map[string]bool{}
	files := map[string]bool{}
	for i, d := range cfg.Datasets {
		if d.Name == "" {
			return fmt.Errorf("dataset %d: name is required", i)
		}
		if d.File == "" {
			return fmt.Errorf("dataset %q: file is required", d.Name)
		}
		if names[d.Name] {
			return fmt.Errorf("dataset %q: duplicate name", d.Name)
		}
		if files[d.File] {
			return fmt.Errorf("dataset %q: file %q already used", d.Name, d.File)
		}
		if d.Mode != ModeText && d.Mode != ModeYesNo {
			return fmt.Errorf("dataset %q: unknown mode %q", d.Name, d.Mode)
		}
		names[d.Name] = true
		files[d.File] = true
	}
	if len(cfg.Environments) == 0 {
		return fmt.Errorf("no environments defined")
	}
	for i, env := range cfg.Environments {
		if env == "" {
			return fmt.Errorf("environment %d: label is required", i)
		}
		if slices.Contains(cfg.Environments[:i], env) {
			return fmt.Errorf("environment %q: duplicate label", env)
		}
	}
	for _, m := range cfg.Metrics {
		if !slices.Contains(result.DatasetMetrics, m) {
			return fmt.Errorf("unknown dataset metric %q", m)
		}
	}
	for _, m := range cfg.OpsMetrics {
		if !slices.Contains(result.OpsMetrics, m) {
			return fmt.Errorf("unknown ops metric %q", m)
		}
	}
	if cfg.MCP.Timeout < 0 {
		return fmt.Errorf("mcp timeout must be positive")
	}
	if cfg.MCP.Retries < 0 {
		return fmt.Errorf("mcp retries must not be negative")
	}
	return nil
}

// Dataset looks up a dataset by name.
func (c *Config) Dataset(name string) (*Dataset, bool) {
	for i := range c.Datasets {
		if c.Datasets[i].Name == name {
			return &c.Datasets[i], true
		}
	}
	return nil, false
}

func (c *Config) DatasetNames() []string {
	names := make([]string, len(c.Datasets))
	for i, d := range c.Datasets {
		names[i] = d.Name
	}
	return names
}
