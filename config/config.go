package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Portal names accepted in configuration
const (
	PortalWherex         = "wherex"
	PortalMercadoPublico = "mercado_publico"
	PortalSenegocia      = "senegocia"
	PortalFacebook       = "facebook"
)

// PortalOrder is the order in which enabled portals run
var PortalOrder = []string{PortalWherex, PortalMercadoPublico, PortalSenegocia, PortalFacebook}

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Catalog       CatalogConfig       `mapstructure:"catalog"`
	Matching      MatchingConfig      `mapstructure:"matching"`
	Bidding       BiddingConfig       `mapstructure:"bidding"`
	Portals       PortalsConfig       `mapstructure:"portals"`
	SubmissionLog SubmissionLogConfig `mapstructure:"submissionlog"`
	Cache         CacheConfig         `mapstructure:"cache"`
	RateLimit     RateLimitConfig     `mapstructure:"ratelimit"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	Environment     string        `mapstructure:"environment"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CatalogConfig locates the price list
type CatalogConfig struct {
	Path     string `mapstructure:"path" validate:"required"`
	Encoding string `mapstructure:"encoding" validate:"omitempty,oneof=utf-8 utf8 windows-1252 cp1252 iso-8859-1 latin1"`
}

// MatchingConfig tunes the product matcher
type MatchingConfig struct {
	Bidirectional      bool `mapstructure:"bidirectional"`
	FoldAccents        bool `mapstructure:"fold_accents"`
	EnableDebugLogging bool `mapstructure:"enable_debug_logging"`
}

// BiddingConfig tunes the bidding sessions
type BiddingConfig struct {
	SettleDelay    time.Duration `mapstructure:"settle_delay" validate:"gte=0"`
	DatasheetDir   string        `mapstructure:"datasheet_dir"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// PortalConfig holds one portal account
type PortalConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	BaseURL  string `mapstructure:"base_url" validate:"omitempty,url"`
}

// PortalsConfig holds the account of every supported portal
type PortalsConfig struct {
	Wherex         PortalConfig `mapstructure:"wherex"`
	MercadoPublico PortalConfig `mapstructure:"mercado_publico"`
	Senegocia      PortalConfig `mapstructure:"senegocia"`
	Facebook       PortalConfig `mapstructure:"facebook"`
}

// Get returns the account configured for name
func (p PortalsConfig) Get(name string) (PortalConfig, bool) {
	switch name {
	case PortalWherex:
		return p.Wherex, true
	case PortalMercadoPublico:
		return p.MercadoPublico, true
	case PortalSenegocia:
		return p.Senegocia, true
	case PortalFacebook:
		return p.Facebook, true
	}
	return PortalConfig{}, false
}

// Enabled returns the enabled portal names in run order
func (p PortalsConfig) Enabled() []string {
	var names []string
	for _, name := range PortalOrder {
		if pc, _ := p.Get(name); pc.Enabled {
			names = append(names, name)
		}
	}
	return names
}

// SubmissionLogConfig selects and configures the submission log sink
type SubmissionLogConfig struct {
	Type            string `mapstructure:"type" validate:"oneof=sheets csv postgres"`
	SpreadsheetID   string `mapstructure:"spreadsheet_id" validate:"required_if=Type sheets"`
	CredentialsFile string `mapstructure:"credentials_file" validate:"required_if=Type sheets"`
	Range           string `mapstructure:"range"`
	MaxAttempts     int    `mapstructure:"max_attempts" validate:"gte=1"`
	CSVPath         string `mapstructure:"csv_path" validate:"required_if=Type csv"`
	DatabaseURL     string `mapstructure:"database_url" validate:"required_if=Type postgres"`
}

// CacheConfig configures the submission ledger
type CacheConfig struct {
	Type            string        `mapstructure:"type" validate:"oneof=memory redis"` // "memory" or "redis"
	RedisURL        string        `mapstructure:"redis_url" validate:"required_if=Type redis"`
	TTL             time.Duration `mapstructure:"ttl" validate:"gt=0"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP       int     `mapstructure:"per_ip" validate:"gte=0"` // API requests per minute per client
	PortalRPS   float64 `mapstructure:"portal_rps" validate:"gt=0"`
	PortalBurst int     `mapstructure:"portal_burst" validate:"gte=1"`
}

// legacyEnv maps configuration keys to the variable names used by the standalone bots
var legacyEnv = map[string][]string{
	"portals.wherex.username":          {"WHEREX_USER", "WHEREX_USERNAME"},
	"portals.wherex.password":          {"WHEREX_PASS", "WHEREX_PASSWORD"},
	"portals.mercado_publico.username": {"MP_USER"},
	"portals.mercado_publico.password": {"MP_PASS"},
	"portals.senegocia.username":       {"SENEGOCIA_USER"},
	"portals.senegocia.password":       {"SENEGOCIA_PASS"},
	"portals.facebook.username":        {"FB_USER"},
	"portals.facebook.password":        {"FB_PASS"},
	"submissionlog.spreadsheet_id":     {"SHEETS_ID", "GOOGLE_SHEET_ID"},
	"submissionlog.credentials_file":   {"GOOGLE_CREDENTIALS_FILE"},
	"catalog.path":                     {"PRICE_LIST_PATH"},
	"bidding.datasheet_dir":            {"TECH_SHEET_DIR"},
}

// flagKeys binds command-line flags to configuration keys
var flagKeys = map[string]string{
	"catalog":       "catalog.path",
	"datasheet-dir": "bidding.datasheet_dir",
	"settle-delay":  "bidding.settle_delay",
	"log-sink":      "submissionlog.type",
	"environment":   "server.environment",
}

// RegisterFlags adds the configuration flags to fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a config file (yaml, toml or json)")
	fs.String("catalog", "", "price list path (.csv or .json)")
	fs.String("datasheet-dir", "", "directory holding <code>.pdf datasheets")
	fs.Duration("settle-delay", 0, "pause after each submitted offer")
	fs.String("log-sink", "", "submission log sink: sheets, csv or postgres")
	fs.String("environment", "", "development or production")
}

// Load loads configuration from .env, config files, environment variables and flags.
// flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	// .env never overrides variables already set
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/vendedor360/")

	v.SetEnvPrefix("VENDEDOR360")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
		if f := flags.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
		}
	}

	// Config file is optional; env vars and defaults cover everything
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	enableConfiguredPortals(v, &config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("catalog.path", "data/lista_precios.csv")
	v.SetDefault("catalog.encoding", "utf-8")

	v.SetDefault("matching.bidirectional", false)
	v.SetDefault("matching.fold_accents", false)
	v.SetDefault("matching.enable_debug_logging", false)

	v.SetDefault("bidding.settle_delay", "3s")
	v.SetDefault("bidding.datasheet_dir", "")
	v.SetDefault("bidding.request_timeout", "30s")
	v.SetDefault("bidding.user_agent", "Vendedor360/1.0")

	for _, name := range PortalOrder {
		v.SetDefault("portals."+name+".enabled", false)
		v.SetDefault("portals."+name+".username", "")
		v.SetDefault("portals."+name+".password", "")
		v.SetDefault("portals."+name+".base_url", "")
	}

	v.SetDefault("submissionlog.type", "sheets")
	v.SetDefault("submissionlog.spreadsheet_id", "")
	v.SetDefault("submissionlog.credentials_file", "credentials.json")
	v.SetDefault("submissionlog.range", "A:E")
	v.SetDefault("submissionlog.max_attempts", 3)
	v.SetDefault("submissionlog.csv_path", "postulaciones.csv")
	v.SetDefault("submissionlog.database_url", "")

	// Ledger defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "720h") // 30 days
	v.SetDefault("cache.cleanup_interval", "10m")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)
	v.SetDefault("ratelimit.portal_rps", 1.0)
	v.SetDefault("ratelimit.portal_burst", 3)
}

// bindLegacyEnv makes the prefixed variable win over its legacy aliases
func bindLegacyEnv(v *viper.Viper) error {
	for key, aliases := range legacyEnv {
		prefixed := "VENDEDOR360_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		names := append([]string{key, prefixed}, aliases...)
		if err := v.BindEnv(names...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// enableConfiguredPortals turns on portals that have credentials and no explicit enabled setting
func enableConfiguredPortals(v *viper.Viper, config *Config) {
	accounts := map[string]*PortalConfig{
		PortalWherex:         &config.Portals.Wherex,
		PortalMercadoPublico: &config.Portals.MercadoPublico,
		PortalSenegocia:      &config.Portals.Senegocia,
		PortalFacebook:       &config.Portals.Facebook,
	}
	for name, pc := range accounts {
		if pc.Enabled || isExplicit(v, "portals."+name+".enabled") {
			continue
		}
		pc.Enabled = pc.Username != "" && pc.Password != ""
	}
}

// isExplicit reports whether key was set by a file or the environment rather than a default
func isExplicit(v *viper.Viper, key string) bool {
	if v.InConfig(key) {
		return true
	}
	_, ok := os.LookupEnv("VENDEDOR360_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	return ok
}

// validate validates the configuration
func validate(config *Config) error {
	if err := validator.New().Struct(config); err != nil {
		return err
	}

	for _, name := range config.Portals.Enabled() {
		pc, _ := config.Portals.Get(name)
		if pc.Username == "" || pc.Password == "" {
			return fmt.Errorf("portal %s is enabled but has no username/password (set VENDEDOR360_PORTALS_%s_USERNAME and _PASSWORD)",
				name, strings.ToUpper(name))
		}
	}

	return nil
}
