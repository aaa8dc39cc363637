package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	Version             = "rasa-captain-proxy-1.0"
	DefaultBackendURL   = "http://rede_andrade_rasa-server:5005"
	DefaultModelName    = "rasa-proxy"
	DefaultTimeout      = 15 * time.Second
	DefaultMaxMessage   = 12000
	DefaultMaxBodyBytes = 700 * 1024
)

// ContentContract selects how assistant-mode results are placed in
// choices[0].message.content.
type ContentContract string

const (
	// ContractJSONString delivers the result object JSON-encoded as a string.
	ContractJSONString ContentContract = "json-string"
	// ContractObject delivers the result object verbatim.
	ContractObject ContentContract = "object"
)

// OAuthConfig configures client-credentials auth against the backend.
type OAuthConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	TokenURL     string   `yaml:"token_url"`
	Scopes       []string `yaml:"scopes"`
}

// ServerConfig holds all server configuration. It is built once at startup
// and treated as read-only afterwards.
type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Verbose bool   `yaml:"verbose"`
	Debug   bool   `yaml:"debug"`

	// AccessToken, when set, is required as a Bearer token on /v1/ routes.
	AccessToken string `yaml:"api_key"`

	BackendURL     string        `yaml:"rasa_url"`
	LocalLLMURL    string        `yaml:"local_llm_url"`
	BackendTimeout time.Duration `yaml:"rasa_timeout"`
	BackendToken   string        `yaml:"rasa_token"`
	BackendOAuth   OAuthConfig   `yaml:"rasa_oauth"`

	DefaultModel     string          `yaml:"default_model"`
	LocaleCorrection bool            `yaml:"portuguese_correction"`
	MaxMessageLen    int             `yaml:"max_message_len"`
	MaxBodyBytes     int64           `yaml:"max_body_bytes"`
	ContentContract  ContentContract `yaml:"content_contract"`

	MetricsEnabled bool   `yaml:"metrics_enabled"`
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	LogFile        string `yaml:"log_file"`
}

// Defaults returns a ServerConfig populated with built-in defaults only.
func Defaults() *ServerConfig {
	return &ServerConfig{
		Host:            "0.0.0.0",
		Port:            3000,
		BackendURL:      DefaultBackendURL,
		BackendTimeout:  DefaultTimeout,
		DefaultModel:    DefaultModelName,
		MaxMessageLen:   DefaultMaxMessage,
		MaxBodyBytes:    DefaultMaxBodyBytes,
		ContentContract: ContractJSONString,
		MetricsEnabled:  true,
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// DefaultFromEnv creates a ServerConfig with defaults from environment variables.
func DefaultFromEnv() *ServerConfig {
	cfg := Defaults()
	applyEnv(cfg)
	return cfg
}

// Load reads an optional YAML file on top of the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*ServerConfig, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if err := validateURL("rasa_url", c.BackendURL); err != nil {
		return err
	}
	if c.LocalLLMURL != "" {
		if err := validateURL("local_llm_url", c.LocalLLMURL); err != nil {
			return err
		}
	}
	if c.BackendTimeout <= 0 {
		return fmt.Errorf("rasa_timeout must be positive, got %s", c.BackendTimeout)
	}
	if c.MaxMessageLen <= 100 {
		return fmt.Errorf("max_message_len must be greater than 100, got %d", c.MaxMessageLen)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", c.MaxBodyBytes)
	}
	switch c.ContentContract {
	case ContractJSONString, ContractObject:
	default:
		return fmt.Errorf("content_contract must be %q or %q, got %q", ContractJSONString, ContractObject, c.ContentContract)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log_format must be json or text, got %q", c.LogFormat)
	}
	if c.BackendOAuth.ClientID != "" && c.BackendOAuth.TokenURL == "" {
		return fmt.Errorf("rasa_oauth.token_url is required when client_id is set")
	}
	return nil
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ResolveModel returns model, or the configured default when model is blank.
func (c *ServerConfig) ResolveModel(model string) string {
	if m := strings.TrimSpace(model); m != "" {
		return m
	}
	return c.DefaultModel
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host: %q", field, raw)
	}
	return nil
}

func applyEnv(cfg *ServerConfig) {
	if v := envString("HOST"); v != "" {
		cfg.Host = v
	}
	if v, ok := envInt("PORT"); ok {
		cfg.Port = v
	}
	if v := envString("RASA_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := envString("LOCAL_LLM_URL"); v != "" {
		cfg.LocalLLMURL = v
	}
	if v, ok := envInt("RASA_TIMEOUT_MS"); ok {
		cfg.BackendTimeout = time.Duration(v) * time.Millisecond
	}
	if v := envString("RASA_TOKEN"); v != "" {
		cfg.BackendToken = v
	}
	if v := envString("RASA_OAUTH_CLIENT_ID"); v != "" {
		cfg.BackendOAuth.ClientID = v
	}
	if v := envString("RASA_OAUTH_CLIENT_SECRET"); v != "" {
		cfg.BackendOAuth.ClientSecret = v
	}
	if v := envString("RASA_OAUTH_TOKEN_URL"); v != "" {
		cfg.BackendOAuth.TokenURL = v
	}
	if v := envString("RASA_OAUTH_SCOPES"); v != "" {
		cfg.BackendOAuth.Scopes = strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	}
	if v := envString("DEFAULT_MODEL"); v != "" {
		cfg.DefaultModel = v
	}
	if v := envString("API_KEY"); v != "" {
		cfg.AccessToken = v
	}
	if v, ok := envInt("MAX_MESSAGE_LEN"); ok {
		cfg.MaxMessageLen = v
	}
	if v, ok := envInt("MAX_BODY_BYTES"); ok {
		cfg.MaxBodyBytes = int64(v)
	}
	if v := envString("CONTENT_CONTRACT"); v != "" {
		cfg.ContentContract = ContentContract(strings.ToLower(v))
	}
	if v := envString("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := envString("LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v := envString("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if _, ok := os.LookupEnv("DEBUG"); ok {
		cfg.Debug = envBool("DEBUG")
	}
	if _, ok := os.LookupEnv("VERBOSE"); ok {
		cfg.Verbose = envBool("VERBOSE")
	}
	if _, ok := os.LookupEnv("PORTUGUESE_CORRECTION"); ok {
		cfg.LocaleCorrection = envBool("PORTUGUESE_CORRECTION")
	}
	if _, ok := os.LookupEnv("METRICS_ENABLED"); ok {
		cfg.MetricsEnabled = envBool("METRICS_ENABLED")
	}
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envInt(key string) (int, bool) {
	v := envString(key)
	if v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func envBool(key string) bool {
	return ParseBool(os.Getenv(key))
}

// ParseBool reports whether v is one of the accepted truthy spellings.
func ParseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}
