/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the absence accounting server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Wire engine service, notification sink and token authority
  4. Optionally seed a bootstrap admin account
  5. Start the monthly accrual scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port        HTTP server port (default: 8080)
  -db          SQLite database path (default: absence.db)
               Use ":memory:" for an in-memory database
  -seed-admin  email:password to create a bootstrap admin account when
               the database has no employees yet
  -accrual     enable the monthly accrual scheduler (default: true)

ENVIRONMENT:
  JWT_SECRET     HMAC secret for bearer tokens (required outside dev)
  SMTP_HOST      Mail relay host; mail is skipped when unset
  SMTP_PORT      Mail relay port
  SMTP_USER      Relay username
  SMTP_PASSWORD  Relay password
  SMTP_FROM      Sender address
  SMTP_TLS       "true" to use implicit TLS
  LOG_LEVEL      logrus level name (default: info)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the accrual scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Monthly accrual scheduler
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/nimbushr/absence-engine/absence"
	"github.com/nimbushr/absence-engine/api"
	"github.com/nimbushr/absence-engine/notify"
	"github.com/nimbushr/absence-engine/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "absence.db", "SQLite database path")
	seedAdmin := flag.String("seed-admin", "", "email:password for a bootstrap admin account")
	accrual := flag.Bool("accrual", true, "enable the monthly accrual scheduler")
	flag.Parse()

	configureLogging()

	// Store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	// Notification sink: SMTP when configured, log-only otherwise.
	var notifier absence.Notifier
	smtpCfg := smtpConfigFromEnv()
	if smtpCfg.Configured() {
		notifier = notify.NewSMTP(smtpCfg)
		log.WithField("host", smtpCfg.Host).Info("smtp notifications enabled")
	} else {
		notifier = notify.NewLog()
		log.Info("smtp not configured, notifications go to the log")
	}

	svc := absence.NewService(store, notifier)

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
		log.Warn("JWT_SECRET not set, using insecure development secret")
	}
	auth := api.NewTokenAuthority(secret, 24*time.Hour)

	if *seedAdmin != "" {
		if err := seedAdminAccount(context.Background(), svc, store, *seedAdmin); err != nil {
			log.WithError(err).Fatal("failed to seed admin account")
		}
	}

	handler := api.NewHandler(svc, store, auth)
	router := api.NewRouter(handler)

	// Monthly accrual scheduler
	scheduler := api.NewAccrualScheduler(svc)
	scheduler.Enabled = *accrual
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}

func configureLogging() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if lvl, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}
}

func smtpConfigFromEnv() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:       os.Getenv("SMTP_HOST"),
		Port:       os.Getenv("SMTP_PORT"),
		User:       os.Getenv("SMTP_USER"),
		Password:   os.Getenv("SMTP_PASSWORD"),
		From:       os.Getenv("SMTP_FROM"),
		TLSEnabled: strings.EqualFold(os.Getenv("SMTP_TLS"), "true"),
	}
}

// seedAdminAccount creates a bootstrap admin when the database is still
// empty. A non-empty database leaves the flag a no-op so restarts are safe.
func seedAdminAccount(ctx context.Context, svc *absence.Service, store absence.Store, spec string) error {
	email, password, ok := strings.Cut(spec, ":")
	if !ok || email == "" || password == "" {
		return fmt.Errorf("seed-admin wants email:password, got %q", spec)
	}

	existing, err := store.ListEmployees(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.Info("database not empty, skipping admin seed")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin, err := svc.RegisterEmployee(ctx, absence.RegisterInput{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    "Admin",
		LastName:     "Account",
		Role:         absence.RoleAdmin,
	})
	if err != nil {
		return err
	}

	log.WithField("email", admin.Email).Info("bootstrap admin created")
	return nil
}
