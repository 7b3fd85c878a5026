package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/jrsteele09/go-pm-server/auth"
	"github.com/jrsteele09/go-pm-server/federated"
	"github.com/jrsteele09/go-pm-server/internal/config"
	"github.com/jrsteele09/go-pm-server/internal/metrics"
	"github.com/jrsteele09/go-pm-server/notify"
	"github.com/jrsteele09/go-pm-server/server"
	"github.com/jrsteele09/go-pm-server/token"
	"github.com/jrsteele09/go-pm-server/users"
	"github.com/jrsteele09/go-pm-server/users/mongorepo"
	fakeuserrepo "github.com/jrsteele09/go-pm-server/users/repofake"
)

const (
	startupTimeout  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
	}

	c := config.New()
	setupLogging(c.GetEnv())

	if err := run(c); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run(c config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	if err := config.Validate(c); err != nil {
		return err
	}
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	userRepo, closeStore, err := openUserStore(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	tokens := token.New(
		token.NewHMACSigner(c.GetJWTSecret()),
		token.WithIssuer(c.GetJWTIssuer()),
		token.WithTokenExpiry(c.GetSessionTokenExpiry(), c.GetResetTokenExpiry()),
	)

	notifier, err := newNotifier(c)
	if err != nil {
		return err
	}

	authService, err := auth.NewAuthenticationService(
		auth.Repos{Users: userRepo},
		tokens,
		notifier,
		auth.WithFrontendURL(c.GetFrontendURL()),
		auth.WithIdentityProviders(newIdentityProviders(c)),
		auth.WithMetrics(collector),
	)
	if err != nil {
		return errors.Wrap(err, "[run] NewAuthenticationService")
	}

	if err := bootstrapAdmin(ctx, c, authService); err != nil {
		return err
	}

	options := []server.ServerOption{server.WithMetrics(collector, registry)}
	if c.GetEnableRateLimiting() {
		limiter := server.NewRateLimiter(server.RateLimiterConfig{
			PerMinute:       c.GetAuthRatePerMinute(),
			Burst:           c.GetAuthRateBurst(),
			CleanupInterval: c.GetRateLimiterCleanupInterval(),
		})
		defer limiter.Stop()
		options = append(options, server.WithRateLimiter(limiter))
	}

	handler, err := server.New(c, authService, options...)
	if err != nil {
		return errors.Wrap(err, "[run] server.New")
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(httpServer)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer, authService)
}

// openUserStore returns the configured credential store and a function that releases it.
func openUserStore(ctx context.Context, c config.Config) (users.UserRepo, func(), error) {
	if c.GetStore() == config.StoreMemory {
		log.Warn().Msg("Using in-memory user store; accounts are lost on restart")
		return fakeuserrepo.NewFakeUserRepo(), func() {}, nil
	}

	client, err := mongorepo.Connect(ctx, c.GetMongoURI())
	if err != nil {
		return nil, nil, errors.Wrap(err, "[openUserStore] Connect")
	}
	closeFn := func() { disconnect(client) }

	store := mongorepo.New(client.Database(c.GetMongoDatabase()))
	if err := store.EnsureIndexes(ctx); err != nil {
		closeFn()
		return nil, nil, errors.Wrap(err, "[openUserStore] EnsureIndexes")
	}
	log.Info().Str("database", c.GetMongoDatabase()).Msg("Connected to MongoDB")
	return store, closeFn, nil
}

func disconnect(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.Err(err).Msg("MongoDB disconnect failed")
	}
}

func newIdentityProviders(c config.Config) *federated.Registry {
	registry := federated.NewRegistry()
	timeout := federated.WithTimeout(c.GetFederatedVerifyTimeout())

	if clientID := c.GetGoogleClientID(); clientID != "" {
		registry.Register(federated.NewGoogleProvider(clientID, timeout, federated.WithClientSecret(c.GetGoogleClientSecret())))
	}
	if projectID := c.GetFirebaseProjectID(); projectID != "" {
		registry.Register(federated.NewFirebaseProvider(projectID, timeout))
	}
	if registry.Len() == 0 {
		log.Warn().Msg("No federated identity providers configured")
	} else {
		log.Info().Strs("providers", registry.Names()).Msg("Federated identity providers")
	}
	return registry
}

func newNotifier(c config.Config) (notify.Notifier, error) {
	if c.GetSmtpAccount() == "" {
		log.Warn().Msg("SMTP_ACCOUNT not set; emails are logged instead of sent")
		return notify.LogNotifier{IncludeLinks: c.GetEnv() == config.EnvDevelopment}, nil
	}

	n, err := notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     c.GetSmtpHost(),
		Port:     c.GetSmtpPort(),
		Username: c.GetSmtpAccount(),
		Password: c.GetSmtpPassword(),
		From:     c.GetMailFrom(),
	},
		notify.WithAppName(c.GetAppName()),
		notify.WithResetExpiry(c.GetResetTokenExpiry()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[newNotifier]")
	}
	return n, nil
}

func bootstrapAdmin(ctx context.Context, c config.Config, authService *auth.AuthenticationService) error {
	email := c.GetAdminEmail()
	if email == "" {
		return nil
	}
	created, err := authService.EnsureAdmin(ctx, "Administrator", email, c.GetAdminPassword())
	if err != nil {
		return errors.Wrap(err, "[bootstrapAdmin]")
	}
	if created {
		log.Info().Str("email", email).Msg("Created admin account")
	}
	return nil
}

func listenAndServe(httpServer *http.Server) error {
	log.Info().Str("addr", httpServer.Addr).Msg("Server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "server.ListenAndServe")
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(httpServer *http.Server, authService *auth.AuthenticationService) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server.Shutdown")
	}
	if err := authService.Wait(ctx); err != nil {
		log.Warn().Err(err).Msg("Pending notifications abandoned")
	}
	return nil
}

func setupLogging(env string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if env == config.EnvDevelopment || env == "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
