// Command service runs the Institutional Complexity Index API server.
//
// Configuration comes from a YAML file (-config) or from environment
// variables only (-env), optionally loading a dotenv file first
// (-env-file, default ".env"). -print-config dumps the effective
// configuration with secrets masked and exits.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"

	"github.com/cei-unisinos/ici-backend/internal/cache"
	"github.com/cei-unisinos/ici-backend/internal/config"
	"github.com/cei-unisinos/ici-backend/internal/download"
	"github.com/cei-unisinos/ici-backend/internal/email"
	httpx "github.com/cei-unisinos/ici-backend/internal/http"
	"github.com/cei-unisinos/ici-backend/internal/http/handlers"
	"github.com/cei-unisinos/ici-backend/internal/mirror"
	"github.com/cei-unisinos/ici-backend/internal/observability/logger"
	"github.com/cei-unisinos/ici-backend/internal/rate"
	"github.com/cei-unisinos/ici-backend/internal/store/pg"
	"github.com/cei-unisinos/ici-backend/internal/util"
	migrations "github.com/cei-unisinos/ici-backend/migrations/postgres"
)

var (
	flagConfigPath = flag.String("config", "", "Path to YAML config (default: $CONFIG_PATH, then configs/config.yaml)")
	flagEnvOnly    = flag.Bool("env", false, "Build configuration from environment variables only")
	flagEnvFile    = flag.String("env-file", ".env", "Dotenv file to load before reading the environment")
	flagPrint      = flag.Bool("print-config", false, "Print the effective configuration (secrets masked) and exit")
)

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func printConfigSummary(cfg *config.Config) {
	fmt.Println("── effective configuration ──")
	fmt.Printf("app.env:               %s\n", cfg.App.Env)
	fmt.Printf("server.addr:           %s\n", cfg.Server.Addr)
	fmt.Printf("server.public_base:    %s\n", cfg.Server.PublicBaseURL)
	fmt.Printf("server.cors_origins:   %s\n", strings.Join(cfg.Server.CORSAllowedOrigins, ", "))
	fmt.Printf("storage.dsn:           %s\n", util.MaskSecret(cfg.Storage.DSN))
	fmt.Printf("cache.kind:            %s\n", cfg.Cache.Kind)
	if cfg.Cache.Kind == "redis" {
		fmt.Printf("cache.redis.addr:      %s (db %d, prefix %q)\n", cfg.Cache.Redis.Addr, cfg.Cache.Redis.DB, cfg.Cache.Redis.Prefix)
	}
	fmt.Printf("smtp.host:             %s:%d (tls %s)\n", cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.TLS)
	fmt.Printf("smtp.username:         %s\n", util.MaskEmail(cfg.SMTP.Username))
	fmt.Printf("smtp.password:         %s\n", util.MaskSecret(cfg.SMTP.Password))
	fmt.Printf("email.admin_address:   %s\n", util.MaskEmail(cfg.Email.AdminAddress))
	fmt.Printf("email.configured:      %t\n", cfg.MailConfigured())
	fmt.Printf("rate.enabled:          %t (global %d/%s, download %d/%s, contact %d/%s)\n",
		cfg.Rate.Enabled, cfg.Rate.MaxRequests, cfg.Rate.Window,
		cfg.Rate.Download.Limit, cfg.Rate.Download.Window,
		cfg.Rate.Contact.Limit, cfg.Rate.Contact.Window)
	fmt.Printf("download.max_rows:     %d\n", cfg.Download.MaxRows)
	fmt.Printf("download.link_ttl:     %s\n", cfg.Download.LinkTTL)
	fmt.Printf("download.secret:       %s\n", util.MaskSecret(cfg.Download.SigningSecret))
	fmt.Printf("dataset.table:         %s (%d-%d)\n", cfg.Dataset.Table, cfg.Dataset.YearFrom, cfg.Dataset.YearTo)
	fmt.Printf("mirror.enabled:        %t\n", cfg.Mirror.Enabled)
	if cfg.Mirror.Enabled {
		fmt.Printf("mirror.base_url:       %s\n", cfg.Mirror.BaseURL)
		fmt.Printf("mirror.service_key:    %s\n", util.MaskSecret(cfg.Mirror.ServiceKey))
		fmt.Printf("mirror.table:          %s (batch %d)\n", cfg.Mirror.Table, cfg.Mirror.BatchSize)
	}
	fmt.Printf("admin.api_key:         %s\n", util.MaskSecret(cfg.Admin.APIKey))
	fmt.Printf("flags.migrate:         %t\n", cfg.Flags.Migrate)
}

// parseWindow falls back to def when the config value does not parse.
func parseWindow(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}

// newLimiter picks the backend for a fixed-window limiter: Redis when the
// cache runs on Redis (shared across replicas), in-process otherwise.
func newLimiter(cfg *config.Config, rc *rdb.Client, scope string, max int, window time.Duration) rate.Limiter {
	if max <= 0 || !cfg.Rate.Enabled {
		return nil
	}
	if rc != nil {
		return rate.NewRedisLimiter(rc, cfg.Cache.Redis.Prefix+"rl:"+scope+":", max, window)
	}
	return rate.NewMemoryLimiter(max, window)
}

func main() {
	flag.Parse()

	// Dotenv first so -env and YAML overrides both see it.
	if *flagEnvFile != "" && (fileExists(*flagEnvFile) || *flagEnvOnly) {
		_ = godotenv.Load(*flagEnvFile)
	}

	var (
		cfg *config.Config
		err error
	)
	if *flagEnvOnly {
		cfg = config.FromEnv()
		if err := cfg.Validate(); err != nil {
			log.Fatalf("config: %v", err)
		}
	} else {
		cfgPath := *flagConfigPath
		if cfgPath == "" {
			cfgPath = os.Getenv("CONFIG_PATH")
		}
		if cfgPath == "" {
			if fileExists("configs/config.yaml") {
				cfgPath = "configs/config.yaml"
			} else {
				cfgPath = "configs/config.example.yaml"
			}
		}
		cfg, err = config.Load(cfgPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	if *flagPrint {
		printConfigSummary(cfg)
		return
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		ServiceName: "ici-backend",
	})
	defer func() { _ = logger.Sync() }()
	lg := logger.Named("main")

	if cfg.SMTP.Password != "" && !config.AppPasswordLooksValid(cfg.SMTP.Password) {
		lg.Warn("SMTP password does not look like a 16-character app password",
			logger.String("host", cfg.SMTP.Host))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Storage ──
	if strings.TrimSpace(cfg.Storage.DSN) == "" {
		log.Fatal("no DSN configured (STORAGE_DSN, DB_* parts, or storage.dsn in YAML)")
	}
	store, err := pg.New(ctx, cfg.Storage.DSN, pg.Config{
		MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		Table:           cfg.Dataset.Table,
	})
	if err != nil {
		log.Fatalf("store open: %v", err)
	}
	defer store.Close()

	if cfg.Flags.Migrate {
		if err := store.RunMigrations(ctx, migrations.FS); err != nil {
			log.Fatalf("migrations: %v", err)
		}
		lg.Info("migrations applied")
	}

	// ── Cache ──
	cacheTTL := parseWindow(cfg.Cache.Memory.DefaultTTL, time.Hour)
	cc, err := cache.New(cache.Config{
		Kind:       cfg.Cache.Kind,
		RedisAddr:  cfg.Cache.Redis.Addr,
		RedisDB:    cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: cacheTTL,
	})
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	defer func() { _ = cc.Close() }()

	// ── Email ──
	var sender email.Sender
	if cfg.MailConfigured() {
		s := email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
		s.TLSMode = cfg.SMTP.TLS
		s.InsecureSkipVerify = cfg.SMTP.InsecureSkipVerify
		sender = s
	} else {
		lg.Warn("mail features disabled: SENDER_EMAIL, SENDER_PASSWORD or ADMIN_EMAIL missing")
	}
	mailer, err := email.NewService(email.ServiceConfig{
		Sender:        sender,
		AdminAddress:  cfg.Email.AdminAddress,
		TeamName:      cfg.Email.TeamName,
		SubjectPrefix: cfg.Email.SubjectPrefix,
	})
	if err != nil {
		log.Fatalf("email: %v", err)
	}

	// ── Download links ──
	secret := cfg.Download.SigningSecret
	if secret == "" {
		// Ephemeral secret: links stop working on restart. Fine for dev,
		// set DOWNLOAD_SIGNING_SECRET in production.
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			log.Fatalf("signing secret: %v", err)
		}
		secret = hex.EncodeToString(b)
		lg.Warn("DOWNLOAD_SIGNING_SECRET not set, using an ephemeral secret")
	}
	signer, err := download.NewSigner(secret, cfg.Download.LinkTTL)
	if err != nil {
		log.Fatalf("download signer: %v", err)
	}

	// ── Mirror (optional) ──
	var mir *mirror.Mirror
	if cfg.Mirror.Enabled {
		mir, err = mirror.New(mirror.Config{
			BaseURL:    cfg.Mirror.BaseURL,
			ServiceKey: cfg.Mirror.ServiceKey,
			Table:      cfg.Mirror.Table,
			BatchSize:  cfg.Mirror.BatchSize,
		}, store)
		if err != nil {
			log.Fatalf("mirror: %v", err)
		}
	}

	// ── Rate limiting ──
	var rc *rdb.Client
	if cfg.Rate.Enabled && strings.EqualFold(cfg.Cache.Kind, "redis") {
		rc = rdb.NewClient(&rdb.Options{
			Addr: cfg.Cache.Redis.Addr,
			DB:   cfg.Cache.Redis.DB,
		})
		defer func() { _ = rc.Close() }()
	}
	globalLimiter := newLimiter(cfg, rc, "global", cfg.Rate.MaxRequests, parseWindow(cfg.Rate.Window, time.Minute))
	downloadLimiter := newLimiter(cfg, rc, "download", cfg.Rate.Download.Limit, parseWindow(cfg.Rate.Download.Window, 10*time.Minute))
	contactLimiter := newLimiter(cfg, rc, "contact", cfg.Rate.Contact.Limit, parseWindow(cfg.Rate.Contact.Window, 10*time.Minute))

	// ── HTTP ──
	api := handlers.New(handlers.Deps{
		Repo:          store,
		Cache:         cc,
		CacheTTL:      cacheTTL,
		Email:         mailer,
		Signer:        signer,
		Mirror:        mir,
		MaxRows:       cfg.Download.MaxRows,
		PublicBaseURL: strings.TrimRight(cfg.Server.PublicBaseURL, "/"),
	})

	metricsHandler, err := httpx.RegisterMetrics(httpx.MetricsConfig{
		Pool: store.Pool,
	})
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}

	router := httpx.NewRouter(httpx.RouterConfig{
		API:             api,
		Metrics:         metricsHandler,
		AdminAPIKey:     cfg.Admin.APIKey,
		DownloadLimiter: downloadLimiter,
		ContactLimiter:  contactLimiter,
	})
	handler := httpx.Chain(router, cfg.Server.CORSAllowedOrigins, globalLimiter)

	mode := "yaml"
	if *flagEnvOnly {
		mode = "env"
	}
	lg.Info("service up",
		logger.String("mode", mode),
		logger.String("addr", cfg.Server.Addr),
		logger.String("cache", cfg.Cache.Kind),
		logger.Bool("mail", cfg.MailConfigured()),
		logger.Bool("mirror", cfg.Mirror.Enabled))

	if err := httpx.Start(ctx, cfg.Server.Addr, handler); err != nil {
		log.Fatalf("http: %v", err)
	}
}
