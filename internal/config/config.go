package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultTableName is the dataset table produced by the seed/ETL path.
const DefaultTableName = "indice_complexidade_institucional"

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

		// PublicBaseURL prefixes the signed fallback download links
		// handed out by email, e.g. https://api.ici.example.org.
		PublicBaseURL string `yaml:"public_base_url"`
	} `yaml:"server"`

	Storage struct {
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"`                  // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // dev only
	} `yaml:"smtp"`

	Email struct {
		AdminAddress  string `yaml:"admin_address"`
		TeamName      string `yaml:"team_name"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"email"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`

		Download struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"download"`

		Contact struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"contact"`
	} `yaml:"rate"`

	Download struct {
		MaxRows       int           `yaml:"max_rows"`
		LinkTTL       time.Duration `yaml:"link_ttl"`
		SigningSecret string        `yaml:"signing_secret"`
	} `yaml:"download"`

	Dataset struct {
		Table    string `yaml:"table"`
		YearFrom int    `yaml:"year_from"`
		YearTo   int    `yaml:"year_to"`
	} `yaml:"dataset"`

	Mirror struct {
		Enabled    bool   `yaml:"enabled"`
		BaseURL    string `yaml:"base_url"` // Supabase PostgREST endpoint
		ServiceKey string `yaml:"service_key"`
		Table      string `yaml:"table"`
		BatchSize  int    `yaml:"batch_size"`
	} `yaml:"mirror"`

	Admin struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"admin"`

	Flags struct {
		Migrate bool `yaml:"migrate"`
	} `yaml:"flags"`
}

// Load reads a YAML config, applies defaults, env overrides and validation.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// Overrides run before defaults: a SENDER_EMAIL override must be in
	// place when the From fallback copies the username.
	c.applyEnvOverrides()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// FromEnv builds the config from environment variables only (used with -env).
// Honors the deployment env-file contract: SMTP_SERVER, SMTP_PORT,
// SENDER_EMAIL, SENDER_PASSWORD, ADMIN_EMAIL.
func FromEnv() *Config {
	c := &Config{}

	c.App.Env = getenv("APP_ENV", "dev")

	// --- Server ---
	c.Server.Addr = getenv("SERVER_ADDR", ":8080")
	c.Server.CORSAllowedOrigins = splitCSV(getenv("SERVER_CORS_ALLOWED_ORIGINS", "http://localhost:8501"))
	c.Server.PublicBaseURL = getenv("PUBLIC_BASE_URL", "")

	// --- Storage ---
	c.Storage.DSN = getenv("STORAGE_DSN", buildDSNFromParts())
	c.Storage.Postgres.MaxOpenConns = getenvInt("POSTGRES_MAX_OPEN_CONNS", 5)
	c.Storage.Postgres.MaxIdleConns = getenvInt("POSTGRES_MAX_IDLE_CONNS", 2)
	c.Storage.Postgres.ConnMaxLifetime = getenv("POSTGRES_CONN_MAX_LIFETIME", "30m")

	// --- Cache ---
	c.Cache.Kind = getenv("CACHE_KIND", "memory")
	c.Cache.Redis.Addr = getenv("REDIS_ADDR", "localhost:6379")
	c.Cache.Redis.DB = getenvInt("REDIS_DB", 0)
	c.Cache.Redis.Prefix = getenv("REDIS_PREFIX", "ici:")
	c.Cache.Memory.DefaultTTL = getenv("CACHE_MEMORY_DEFAULT_TTL", "1h")

	// --- SMTP (runbook contract) ---
	c.SMTP.Host = getenv("SMTP_SERVER", getenv("SMTP_HOST", "smtp.gmail.com"))
	c.SMTP.Port = getenvInt("SMTP_PORT", 587)
	c.SMTP.Username = getenv("SENDER_EMAIL", getenv("SMTP_USERNAME", ""))
	c.SMTP.Password = getenv("SENDER_PASSWORD", getenv("SMTP_PASSWORD", ""))
	c.SMTP.From = getenv("SMTP_FROM", c.SMTP.Username)
	c.SMTP.TLS = getenv("SMTP_TLS", "auto")
	c.SMTP.InsecureSkipVerify = getenvBool("SMTP_INSECURE_SKIP_VERIFY", false)

	// --- Email ---
	c.Email.AdminAddress = getenv("ADMIN_EMAIL", "")
	c.Email.TeamName = getenv("EMAIL_TEAM_NAME", "Institutional Complexity Index Team")
	c.Email.SubjectPrefix = getenv("EMAIL_SUBJECT_PREFIX", "")

	// --- Rate ---
	c.Rate.Enabled = getenvBool("RATE_ENABLED", true)
	c.Rate.Window = getenv("RATE_WINDOW", "1m")
	c.Rate.MaxRequests = getenvInt("RATE_MAX_REQUESTS", 60)
	c.Rate.Download.Limit = getenvInt("RATE_DOWNLOAD_LIMIT", 5)
	c.Rate.Download.Window = getenv("RATE_DOWNLOAD_WINDOW", "10m")
	c.Rate.Contact.Limit = getenvInt("RATE_CONTACT_LIMIT", 5)
	c.Rate.Contact.Window = getenv("RATE_CONTACT_WINDOW", "10m")

	// --- Download ---
	c.Download.MaxRows = getenvInt("DOWNLOAD_MAX_ROWS", 500000)
	if d, err := time.ParseDuration(getenv("DOWNLOAD_LINK_TTL", "1h")); err == nil {
		c.Download.LinkTTL = d
	} else {
		c.Download.LinkTTL = time.Hour
	}
	c.Download.SigningSecret = getenv("DOWNLOAD_SIGNING_SECRET", "")

	// --- Dataset ---
	c.Dataset.Table = getenv("DATASET_TABLE", DefaultTableName)
	c.Dataset.YearFrom = getenvInt("DATASET_YEAR_FROM", 2015)
	c.Dataset.YearTo = getenvInt("DATASET_YEAR_TO", 2023)

	// --- Mirror (Supabase) ---
	c.Mirror.Enabled = getenvBool("MIRROR_ENABLED", false)
	c.Mirror.BaseURL = getenv("SUPABASE_URL", "")
	c.Mirror.ServiceKey = getenv("SUPABASE_SERVICE_KEY", getenv("SUPABASE_KEY", ""))
	c.Mirror.Table = getenv("MIRROR_TABLE", c.Dataset.Table)
	c.Mirror.BatchSize = getenvInt("MIRROR_BATCH_SIZE", 500)

	// --- Admin ---
	c.Admin.APIKey = getenv("ADMIN_API_KEY", "")

	// --- Flags ---
	c.Flags.Migrate = getenvBool("FLAGS_MIGRATE", true)

	c.applyDefaults()
	return c
}

// buildDSNFromParts assembles a postgres DSN from the legacy DB_* variables
// the original deployment used (DB_USUARIO, DB_SENHA, DB_HOST, DB_BANCO).
func buildDSNFromParts() string {
	user := getenv("DB_USUARIO", "")
	pass := getenv("DB_SENHA", "")
	host := getenv("DB_HOST", "")
	name := getenv("DB_BANCO", "")
	port := getenv("DB_PORT", "5432")
	if user == "" || host == "" || name == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		// matches the original dashboard's 3600s data cache
		c.Cache.Memory.DefaultTTL = "1h"
	}
	if c.SMTP.Host == "" {
		c.SMTP.Host = "smtp.gmail.com"
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
	if c.SMTP.From == "" {
		c.SMTP.From = c.SMTP.Username
	}
	if c.Email.TeamName == "" {
		c.Email.TeamName = "Institutional Complexity Index Team"
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 60
	}
	if c.Rate.Download.Limit == 0 {
		c.Rate.Download.Limit = 5
	}
	if c.Rate.Download.Window == "" {
		c.Rate.Download.Window = "10m"
	}
	if c.Rate.Contact.Limit == 0 {
		c.Rate.Contact.Limit = 5
	}
	if c.Rate.Contact.Window == "" {
		c.Rate.Contact.Window = "10m"
	}
	if c.Download.MaxRows == 0 {
		c.Download.MaxRows = 500000
	}
	if c.Download.LinkTTL == 0 {
		c.Download.LinkTTL = time.Hour
	}
	if c.Dataset.Table == "" {
		c.Dataset.Table = DefaultTableName
	}
	if c.Dataset.YearFrom == 0 {
		c.Dataset.YearFrom = 2015
	}
	if c.Dataset.YearTo == 0 {
		c.Dataset.YearTo = 2023
	}
	if c.Mirror.Table == "" {
		c.Mirror.Table = c.Dataset.Table
	}
	if c.Mirror.BatchSize == 0 {
		c.Mirror.BatchSize = 500
	}

	// Gmail renders app passwords in groups of four separated by spaces;
	// the pasted value works either way.
	c.SMTP.Password = NormalizeAppPassword(c.SMTP.Password)
}

// applyEnvOverrides lets env vars override YAML values (env wins).
func (c *Config) applyEnvOverrides() {
	if v := getenv("SMTP_SERVER", ""); v != "" {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v := getenv("SENDER_EMAIL", ""); v != "" {
		c.SMTP.Username = v
		if c.SMTP.From == "" {
			c.SMTP.From = v
		}
	}
	if v := getenv("SENDER_PASSWORD", ""); v != "" {
		c.SMTP.Password = NormalizeAppPassword(v)
	}
	if v := getenv("ADMIN_EMAIL", ""); v != "" {
		c.Email.AdminAddress = v
	}
	if v := getenv("STORAGE_DSN", ""); v != "" {
		c.Storage.DSN = v
	}
	if v := getenv("PUBLIC_BASE_URL", ""); v != "" {
		c.Server.PublicBaseURL = v
	}
	if v := getenv("ADMIN_API_KEY", ""); v != "" {
		c.Admin.APIKey = v
	}
	if v := getenv("DOWNLOAD_SIGNING_SECRET", ""); v != "" {
		c.Download.SigningSecret = v
	}
	if v := getenv("SUPABASE_URL", ""); v != "" {
		c.Mirror.BaseURL = v
	}
	if v := getenv("SUPABASE_SERVICE_KEY", ""); v != "" {
		c.Mirror.ServiceKey = v
	}
}

// MailConfigured reports whether the three mail-feature variables are set.
// Mirrors the original dashboard's all([sender, password, admin]) gate.
func (c *Config) MailConfigured() bool {
	return strings.TrimSpace(c.SMTP.Username) != "" &&
		strings.TrimSpace(c.SMTP.Password) != "" &&
		strings.TrimSpace(c.Email.AdminAddress) != ""
}

// Validate checks hard requirements. Mail config absence is NOT fatal here:
// the read API stays useful without it and handlers answer 503 for the mail
// features (same degradation the dashboard showed).
func (c *Config) Validate() error {
	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		return fmt.Errorf("config: smtp port %d out of range", c.SMTP.Port)
	}
	switch c.SMTP.TLS {
	case "auto", "starttls", "ssl", "none":
	default:
		return fmt.Errorf("config: smtp tls mode %q (want auto|starttls|ssl|none)", c.SMTP.TLS)
	}
	for _, w := range []struct {
		name, val string
	}{
		{"rate.window", c.Rate.Window},
		{"rate.download.window", c.Rate.Download.Window},
		{"rate.contact.window", c.Rate.Contact.Window},
		{"storage.postgres.conn_max_lifetime", c.Storage.Postgres.ConnMaxLifetime},
		{"cache.memory.default_ttl", c.Cache.Memory.DefaultTTL},
	} {
		if w.val == "" {
			continue
		}
		if _, err := time.ParseDuration(w.val); err != nil {
			return fmt.Errorf("config: %s: %w", w.name, err)
		}
	}
	if c.Dataset.YearFrom > c.Dataset.YearTo {
		return fmt.Errorf("config: dataset year range %d-%d inverted", c.Dataset.YearFrom, c.Dataset.YearTo)
	}
	if c.Mirror.Enabled {
		if c.Mirror.BaseURL == "" || c.Mirror.ServiceKey == "" {
			return fmt.Errorf("config: mirror enabled but SUPABASE_URL/SUPABASE_SERVICE_KEY missing")
		}
	}
	return nil
}

// NormalizeAppPassword strips the grouping spaces Gmail displays around an
// app password. Returns the value otherwise untouched.
func NormalizeAppPassword(p string) string {
	return strings.ReplaceAll(strings.TrimSpace(p), " ", "")
}

// AppPasswordLooksValid reports whether the normalized password has the
// 16-character shape Google issues. Callers warn, never fail: regular
// account passwords are still accepted by some relays.
func AppPasswordLooksValid(p string) bool {
	return len(NormalizeAppPassword(p)) == 16
}

// ─── env helpers ───

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvInt(key string, def int) int {
	n, ok := getEnvInt(key)
	if !ok {
		return def
	}
	return n
}

func getEnvInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func splitCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
