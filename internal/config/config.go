package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/devblac/chain-sentry/internal/event"
	"github.com/devblac/chain-sentry/internal/predicate"
)

// Config holds the YAML configuration.
type Config struct {
	Version    int             `yaml:"version"`
	Global     GlobalConfig    `yaml:"global"`
	Predicates []PredicateSpec `yaml:"predicates"`
	Sinks      []Sink          `yaml:"sinks"`
}

type GlobalConfig struct {
	JournalPath   string `yaml:"journal_path"`
	LogLevel      string `yaml:"log_level"`
	MaxReorgDepth uint64 `yaml:"max_reorg_depth"`
}

// FiltersSpec mirrors predicate.Filters in YAML form. Empty fields are
// wildcards; min_amount accepts decimal or 0x-hex strings.
type FiltersSpec struct {
	FunctionName string `yaml:"function_name"`
	Sender       string `yaml:"sender"`
	Recipient    string `yaml:"recipient"`
	MinAmount    string `yaml:"min_amount"`
}

// PredicateSpec is the YAML form of a predicate definition.
type PredicateSpec struct {
	ID              string      `yaml:"id"`
	Name            string      `yaml:"name"`
	Network         string      `yaml:"network"`
	ContractAddress string      `yaml:"contract_address"`
	EventType       string      `yaml:"event_type"`
	Filters         FiltersSpec `yaml:"filters"`
	Actions         []string    `yaml:"actions"`
	Enabled         *bool       `yaml:"enabled,omitempty"`
}

// Sink configures a named notification target registered as an action.
type Sink struct {
	ID         string `yaml:"id"`
	Type       string `yaml:"type"`
	WebhookURL string `yaml:"webhook_url"`
	Template   string `yaml:"template"`
	URL        string `yaml:"url"`
	Method     string `yaml:"method"`
}

var envPattern = regexp.MustCompile(`\${([A-Za-z_][A-Za-z0-9_]*)}`)

// Load reads, interpolates env vars, parses YAML, and validates.
func Load(path string) (*Config, error) {
	cfg, err := Parse(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads and interpolates the file without validating. The validate
// command uses it to report the complete error list instead of failing on
// the first problem.
func Parse(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}

	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	interpolated, err := interpolateEnv(string(raw))
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func loadDotEnv(configPath string) error {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

func interpolateEnv(input string) (string, error) {
	missing := []string{}
	out := envPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		missing = append(missing, name)
		return match
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("missing environment variables: %s", strings.Join(dedup(missing), ", "))
	}
	return out, nil
}

// Validate performs small, direct schema checks plus full predicate
// validation.
func (c *Config) Validate() error {
	if c.Version == 0 {
		return errors.New("version is required")
	}
	if len(c.Predicates) == 0 {
		return errors.New("at least one predicate is required")
	}

	sinkIDs := map[string]struct{}{}
	for i := range c.Sinks {
		s := &c.Sinks[i]
		if _, exists := sinkIDs[s.ID]; exists {
			return fmt.Errorf("duplicate sink id: %s", s.ID)
		}
		sinkIDs[s.ID] = struct{}{}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("sink %s: %w", s.ID, err)
		}
	}

	predicateIDs := map[string]struct{}{}
	for _, spec := range c.Predicates {
		if spec.ID != "" {
			if _, exists := predicateIDs[spec.ID]; exists {
				return fmt.Errorf("duplicate predicate id: %s", spec.ID)
			}
			predicateIDs[spec.ID] = struct{}{}
		}
		if _, err := spec.Build(); err != nil {
			return fmt.Errorf("predicate %s: %w", spec.Name, err)
		}
	}

	return nil
}

// Build assembles the predicate config through the builder, so the same
// fail-fast validation applies to file-loaded and code-built predicates.
func (s PredicateSpec) Build() (predicate.Config, error) {
	b := predicate.NewBuilder()
	if s.ID != "" {
		b.WithID(s.ID)
	}
	b.WithName(s.Name)
	if s.Network != "" {
		b.WithNetwork(predicate.Network(s.Network))
	}
	if s.ContractAddress != "" {
		b.WithContractAddress(s.ContractAddress)
	}
	if s.EventType != "" {
		b.WithEventType(event.Type(s.EventType))
	}
	if s.Filters.FunctionName != "" {
		b.WithFunctionName(s.Filters.FunctionName)
	}
	if s.Filters.Sender != "" {
		b.WithSender(s.Filters.Sender)
	}
	if s.Filters.Recipient != "" {
		b.WithRecipient(s.Filters.Recipient)
	}
	if s.Filters.MinAmount != "" {
		amount, err := event.ParseAmount(s.Filters.MinAmount)
		if err != nil {
			return predicate.Config{}, fmt.Errorf("min_amount: %w", err)
		}
		b.WithMinAmount(amount)
	}
	if len(s.Actions) > 0 {
		b.WithActions(s.Actions...)
	}
	if s.Enabled != nil {
		b.Enabled(*s.Enabled)
	}
	return b.Build()
}

// BuildPredicates assembles every predicate spec.
func (c *Config) BuildPredicates() ([]predicate.Config, error) {
	out := make([]predicate.Config, 0, len(c.Predicates))
	for _, spec := range c.Predicates {
		cfg, err := spec.Build()
		if err != nil {
			return nil, fmt.Errorf("predicate %s: %w", spec.Name, err)
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (s *Sink) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.Type == "" {
		return errors.New("type is required")
	}

	switch strings.ToLower(s.Type) {
	case "slack", "teams":
		if s.WebhookURL == "" {
			return errors.New("webhook_url is required for slack/teams sinks")
		}
	case "webhook":
		if s.URL == "" {
			return errors.New("url is required for webhook sink")
		}
		if s.Method == "" {
			s.Method = "POST"
		}
	default:
		return fmt.Errorf("unsupported sink type: %s", s.Type)
	}
	return nil
}

func dedup(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
