package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"recruitcore.io/internal/auth"
	"recruitcore.io/internal/migrate"
	"recruitcore.io/internal/obs"
	store "recruitcore.io/internal/store/mongo"
)

func main() {
	_ = godotenv.Load()
	var (
		uri           = flag.String("uri", envOr("MONGO_URI", "mongodb://localhost:27017"), "MongoDB connection URI")
		database      = flag.String("db", envOr("MONGO_DATABASE", "recruitcore"), "MongoDB database name")
		adminEmail    = flag.String("admin-email", os.Getenv("ADMIN_EMAIL"), "bootstrap administrator email (seed)")
		adminPassword = flag.String("admin-password", os.Getenv("ADMIN_PASSWORD"), "bootstrap administrator password (seed)")
	)
	flag.Parse()

	logger := obs.NewLogger(envOr("LOG_LEVEL", "info"), true)
	if len(flag.Args()) == 0 {
		logger.Fatal().Msg("usage: migrate [up|down|seed|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	ctx = logger.WithContext(ctx)

	st, err := store.Connect(ctx, *uri, *database, 10*time.Second)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect mongo")
	}
	defer func() { _ = st.Close(context.Background()) }()

	mgr := migrate.NewManager(st.Database())

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		var report auth.SeedReport
		report, err = mgr.Seed(ctx, st, auth.SeedOptions{AdminEmail: *adminEmail, AdminPassword: *adminPassword})
		if err == nil {
			logger.Info().
				Int("permissions_created", report.PermissionsCreated).
				Int("actors_created", report.ActorsCreated).
				Int("links_created", report.LinksCreated).
				Bool("admin_created", report.AdminCreated).
				Msg("seed finished")
		}
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		logger.Fatal().Str("command", flag.Arg(0)).Msg("unknown command")
	}
	if err != nil {
		logger.Fatal().Err(err).Str("command", flag.Arg(0)).Msg("migrate failed")
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
