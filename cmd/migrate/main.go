package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/kamishop/kamishop-backend/internal/catalog"
	"github.com/kamishop/kamishop-backend/pkg/config"
	"github.com/kamishop/kamishop-backend/pkg/db"
	"github.com/kamishop/kamishop-backend/pkg/logger"
	"github.com/kamishop/kamishop-backend/pkg/migrate"
)

func main() {
	ctx := context.Background()
	// bootstrap logger early (then re-init after config load)
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	// Flags
	cmd := flag.String("cmd", "up", "command: up|down|status|version|create|validate|seed-cards")
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")

	// Command-specific flags
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	productID := flag.String("product", "", "product id (for seed-cards)")
	cardsFile := flag.String("file", "", "path to a file with one card code per line (for seed-cards)")

	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx = logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	// Commands that do NOT require DB
	switch *cmd {
	case "create":
		if *name == "" {
			fmt.Fprintln(os.Stderr, "missing -name for create")
			os.Exit(1)
		}
		logg.Info(ctx, "migrate ready")
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create migration: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("created migration:", path)
		return

	case "validate":
		logg.Info(ctx, "migrate ready")
		if err := migrate.ValidateDir(*dir); err != nil {
			fmt.Fprintf(os.Stderr, "migration validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migration validation passed")
		return
	}

	// Everything else needs DB
	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	if *cmd == "seed-cards" {
		seedCards(ctx, logg, dbClient, *productID, *cardsFile)
		return
	}

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	logg.Info(ctx, "migrate ready")

	switch *cmd {
	case "up":
		if err := migrate.Run(ctx, sqlDB, *dir, "up"); err != nil {
			fmt.Fprintf(os.Stderr, "goose up failed: %v\n", err)
			os.Exit(1)
		}

	case "down":
		if err := migrate.Run(ctx, sqlDB, *dir, "down"); err != nil {
			fmt.Fprintf(os.Stderr, "goose down failed: %v\n", err)
			os.Exit(1)
		}

	case "status":
		if err := migrate.Run(ctx, sqlDB, *dir, "status"); err != nil {
			fmt.Fprintf(os.Stderr, "goose status failed: %v\n", err)
			os.Exit(1)
		}

	case "version":
		if *version == "" {
			fmt.Fprintln(os.Stderr, "missing -version for version command")
			os.Exit(1)
		}
		if err := migrate.MigrateToVersion(ctx, sqlDB, *dir, *version); err != nil {
			fmt.Fprintf(os.Stderr, "goose version migrate failed: %v\n", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
}

// seedCards bulk-loads unsold cards for a product from a plain text file,
// one code per line. Blank lines are skipped by the catalog service.
func seedCards(ctx context.Context, logg *logger.Logger, dbClient *db.Client, rawProductID, path string) {
	if rawProductID == "" || path == "" {
		fmt.Fprintln(os.Stderr, "seed-cards requires -product and -file")
		os.Exit(1)
	}

	pid, err := uuid.Parse(rawProductID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -product id: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Open(path)
	requireResource(ctx, logg, "cards file", err)
	defer f.Close()

	var contents []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		contents = append(contents, scanner.Text())
	}
	requireResource(ctx, logg, "cards file read", scanner.Err())

	svc, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "catalog service", err)

	imported, err := svc.ImportCards(ctx, pid, contents)
	if err != nil {
		fmt.Fprintf(os.Stderr, "card import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("imported %d cards for product %s\n", imported, pid)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "resource", resource), "bootstrap failed", err)
	os.Exit(1)
}
