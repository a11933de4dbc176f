// Command migrate applies the Postgres schema migrations.
//
// Usage:
//
//	migrate [-config configs/config.yaml] [-dir migrations/postgres] [up|down]
//
// With no -dir it runs the migrations embedded in the binary, so the
// deployed image needs no SQL files on disk.
package main

import (
	"context"
	"flag"
	"io/fs"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/cei-unisinos/ici-backend/internal/config"
	"github.com/cei-unisinos/ici-backend/internal/store/pg"
	migrations "github.com/cei-unisinos/ici-backend/migrations/postgres"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "Path to YAML config")
		dir        = flag.String("dir", "", "Migrations directory (default: embedded migrations)")
	)
	flag.Parse()

	action := "up"
	if args := flag.Args(); len(args) >= 1 && args[0] != "" {
		action = strings.ToLower(args[0])
	}

	_ = godotenv.Load(".env")

	// DSN resolution: env wins over YAML, same as the service.
	dsn := strings.TrimSpace(os.Getenv("STORAGE_DSN"))
	if dsn == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("config load: %v (set STORAGE_DSN to skip the YAML)", err)
		}
		dsn = cfg.Storage.DSN
	}
	if dsn == "" {
		log.Fatal("no DSN (STORAGE_DSN or storage.dsn in the config)")
	}

	var fsys fs.FS = migrations.FS
	if *dir != "" {
		fsys = os.DirFS(*dir)
	}

	ctx := context.Background()
	store, err := pg.New(ctx, dsn, pg.Config{})
	if err != nil {
		log.Fatalf("store open: %v", err)
	}
	defer store.Close()

	switch action {
	case "up":
		if err := store.RunMigrations(ctx, fsys); err != nil {
			log.Fatalf("migrate up: %v", err)
		}
		log.Println("up migrations completed")
	case "down":
		if err := store.RunMigrationsDown(ctx, fsys); err != nil {
			log.Fatalf("migrate down: %v", err)
		}
		log.Println("down migrations completed")
	default:
		log.Fatalf("unknown action %q. Use: up | down", action)
	}
}
