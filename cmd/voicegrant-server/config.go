package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	voicegrant "github.com/MrEthical07/voicegrant"
	"github.com/MrEthical07/voicegrant/httpapi"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// serverConfig is the full process configuration. Precedence, lowest first:
// defaults, YAML file, environment, flags.
type serverConfig struct {
	Addr            string        `yaml:"addr"`
	LogLevel        string        `yaml:"log_level"`
	LogPretty       bool          `yaml:"log_pretty"`
	RedisAddr       string        `yaml:"redis_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// AuditLog enables JSON audit lines: "-" for stdout, otherwise a file path.
	AuditLog string `yaml:"audit_log"`
	// OTel registers engine metrics on the global OpenTelemetry meter provider.
	OTel bool `yaml:"otel"`

	HTTP   httpapi.Config    `yaml:"http"`
	Engine voicegrant.Config `yaml:"engine"`
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		Addr:            ":3000",
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,
		HTTP:            httpapi.DefaultConfig(),
		Engine:          voicegrant.DefaultConfig(),
	}
}

// Environment variables read at startup.
const (
	envAccountID         = "TWILIO_ACCOUNT_SID"
	envKeyID             = "TWILIO_API_KEY"
	envSecret            = "TWILIO_API_SECRET"
	envApplicationTarget = "TWIML_APP_SID"
	envAddr              = "VOICEGRANT_ADDR"
	envRedisAddr         = "VOICEGRANT_REDIS_ADDR"
	envLogLevel          = "VOICEGRANT_LOG_LEVEL"
)

func loadConfig(args []string, getenv func(string) string) (serverConfig, error) {
	cfg := defaultServerConfig()

	var (
		configPath   string
		addr         string
		redisAddr    string
		logLevel     string
		logPretty    bool
		rateLimit    bool
		auditLog     string
		exposeErrors bool
		jtiMode      string
		otelEnabled  bool
	)

	flagSet := pflag.NewFlagSet("voicegrant-server", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML config file")
	flagSet.StringVar(&addr, "addr", cfg.Addr, "listen address")
	flagSet.StringVar(&redisAddr, "redis-addr", "", "redis address for issuance rate limiting")
	flagSet.StringVar(&logLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flagSet.BoolVar(&logPretty, "log-pretty", false, "human-readable console logs")
	flagSet.BoolVar(&rateLimit, "rate-limit", false, "enable per-identity rate limiting (requires --redis-addr)")
	flagSet.StringVar(&auditLog, "audit-log", "", `write audit events as JSON lines to this file ("-" for stdout)`)
	flagSet.BoolVar(&exposeErrors, "expose-internal-errors", false, "return internal error text to HTTP callers")
	flagSet.StringVar(&jtiMode, "jti-mode", string(cfg.Engine.Token.JTIMode), "jti derivation: per_second or random")
	flagSet.BoolVar(&otelEnabled, "otel", false, "register metrics on the global OpenTelemetry meter provider")

	if err := flagSet.Parse(args); err != nil {
		return cfg, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return cfg, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	if configPath != "" {
		if err := loadConfigFile(configPath, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg, getenv)

	if flagSet.Changed("addr") {
		cfg.Addr = addr
	}
	if flagSet.Changed("redis-addr") {
		cfg.RedisAddr = redisAddr
	}
	if flagSet.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flagSet.Changed("log-pretty") {
		cfg.LogPretty = logPretty
	}
	if flagSet.Changed("rate-limit") {
		cfg.Engine.RateLimit.Enabled = rateLimit
	}
	if flagSet.Changed("audit-log") {
		cfg.AuditLog = auditLog
	}
	if flagSet.Changed("expose-internal-errors") {
		cfg.Engine.Security.ExposeInternalErrors = exposeErrors
	}
	if flagSet.Changed("jti-mode") {
		cfg.Engine.Token.JTIMode = voicegrant.JTIMode(jtiMode)
	}
	if flagSet.Changed("otel") {
		cfg.OTel = otelEnabled
	}

	if cfg.AuditLog != "" {
		cfg.Engine.Audit.Enabled = true
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *serverConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *serverConfig, getenv func(string) string) {
	set := func(dst *string, name string) {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}

	set(&cfg.Engine.Keys.AccountID, envAccountID)
	set(&cfg.Engine.Keys.KeyID, envKeyID)
	set(&cfg.Engine.Keys.Secret, envSecret)
	set(&cfg.Engine.Keys.ApplicationTarget, envApplicationTarget)
	set(&cfg.Addr, envAddr)
	set(&cfg.RedisAddr, envRedisAddr)
	set(&cfg.LogLevel, envLogLevel)
}

func (c serverConfig) validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("addr must be set")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown_timeout must be > 0")
	}
	if c.Engine.RateLimit.Enabled && c.RedisAddr == "" {
		return errors.New("rate limiting requires a redis address")
	}
	return c.Engine.Validate()
}
