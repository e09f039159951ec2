package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	chemtrack "github.com/chemtrackhq/chemtrack"
	"github.com/chemtrackhq/chemtrack/inventory"
	"github.com/gofiber/fiber/v2"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type envConfig struct{}

func (envConfig) GetSigningKey() string {
	return getenv("CHEMTRACK_SIGNING_KEY", "development-signing-key")
}

func (envConfig) GetContextKey() string {
	return getenv("CHEMTRACK_COOKIE_NAME", "chemtrack_session")
}

func (envConfig) GetTokenExpiration() int {
	raw := getenv("CHEMTRACK_TOKEN_EXPIRATION_HOURS", "72")
	if hours, err := strconv.Atoi(raw); err == nil && hours > 0 {
		return hours
	}
	return 72
}

func (envConfig) GetIssuer() string {
	return getenv("CHEMTRACK_ISSUER", "chemtrack")
}

func (envConfig) GetAudience() []string {
	raw := getenv("CHEMTRACK_AUDIENCE", "chemtrack")
	return strings.Split(raw, ",")
}

func (envConfig) GetProfileFetchTimeout() time.Duration {
	raw := getenv("CHEMTRACK_PROFILE_FETCH_TIMEOUT", "5s")
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return chemtrack.DefaultProfileFetchTimeout
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx := context.Background()
	cfg := envConfig{}

	sqldb, err := sql.Open(sqliteshim.ShimName, getenv("CHEMTRACK_DSN", "file:chemtrack.db?cache=shared"))
	if err != nil {
		log.Fatal(err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer db.Close()

	if err := chemtrack.ApplyMigrations(ctx, db, nil); err != nil {
		log.Fatal(err)
	}

	repo := chemtrack.NewRepositoryManager(db)
	repo.MustValidate()

	auther := chemtrack.NewAuthenticator(repo.Profiles(), cfg)
	exchanger := chemtrack.NewMagicLinkExchanger(repo, auther)
	bootstrap := chemtrack.NewBootstrapper(auther, repo.Profiles(), cfg)
	guard := chemtrack.NewRouteGuard(bootstrap, cfg)
	controller := chemtrack.NewAuthController(repo, auther, exchanger, cfg)

	invRepo := inventory.NewManager(db)
	invRepo.MustValidate()

	blobs, err := inventory.NewFSBlobStore(getenv("CHEMTRACK_BLOB_DIR", "./data/blobs"))
	if err != nil {
		log.Fatal(err)
	}

	workflow := inventory.NewAssessmentStateMachine(invRepo.RiskAssessments())
	invController := inventory.NewController(invRepo, blobs, workflow, nil)

	app := fiber.New(fiber.Config{
		AppName: "chemtrack",
	})

	chemtrack.RegisterAuthRoutes(app, controller, guard)
	inventory.RegisterRoutes(app, invController, guard)

	go func() {
		if err := app.Listen(getenv("CHEMTRACK_ADDR", ":3000")); err != nil {
			log.Fatal(err)
		}
	}()

	WaitExitSignal()

	if err := app.Shutdown(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// WaitExitSignal blocks until the process receives an exit signal.
func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	return <-ch
}
