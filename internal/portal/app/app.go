package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata" // working hours need zone data in minimal images

	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/blob"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/calendar"
	httpapi "github.com/aussiebroadwan/ledgerdesk/internal/portal/http"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/mail"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/service"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/settings"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/store/drivers/sqlstore"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/tasks"
	"github.com/aussiebroadwan/ledgerdesk/pkg/cryptox"
	"github.com/aussiebroadwan/ledgerdesk/pkg/jwtx"
	"github.com/aussiebroadwan/ledgerdesk/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the portal with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db     *sqlstore.Store
	blobs  blob.Store
	sealer *cryptox.Sealer
	tokens *jwtx.HS256
	queue  *tasks.Queue

	// Services
	settingsService     *service.SettingsService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "portal",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
			File:    cfg.LogFile,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := app.initServices(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

func (app *Application) initDatabase() error {
	dialect, err := sqlstore.ParseDialect(app.cfg.DatabaseDriver)
	if err != nil {
		return err
	}

	dsn := app.cfg.DatabaseURL
	if dialect == sqlstore.DialectSQLite {
		dsn = sqlstore.SQLiteDSN(app.cfg.DatabaseFile)
	}

	db, err := sqlstore.NewStore(dialect, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	app.db = db
	app.logger.Info("database ready", "driver", dialect)
	return nil
}

func (app *Application) initServices(ctx context.Context) error {
	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}
	passwords := cryptox.NewPasswordHasher(pepper)

	app.sealer = cryptox.NewSealer([]byte(app.cfg.DocumentKey))
	if !app.sealer.Configured() {
		app.logger.Warn("document key not set, document and secret setting operations are disabled")
	}

	app.tokens, err = app.initTokens()
	if err != nil {
		return err
	}

	app.settingsService, err = service.NewSettingsService(app.db, app.sealer, app.cfg.SettingsCacheSize, app.cfg.SettingsCacheTTL, settings.SystemClock)
	if err != nil {
		return fmt.Errorf("failed to create settings service: %w", err)
	}

	app.blobs, err = app.initBlobs(ctx)
	if err != nil {
		return err
	}

	cal, hours, err := app.initCalendar(ctx)
	if err != nil {
		return err
	}

	app.queue = tasks.NewQueue(app.db.DeadLetters(), app.logger, tasks.Options{
		Workers:     app.cfg.TaskWorkers,
		MaxAttempts: app.cfg.TaskMaxAttempts,
	})
	app.queue.Register(tasks.KindEmailSend, mail.TaskHandler(app.initMailer()))
	app.queue.Register(tasks.KindReplayDetected, service.ReplayAlertHandler(app.db, app.queue, app.settingsService))
	app.queue.Register(tasks.KindIntegrityFailure, service.IntegrityAlertHandler(app.queue, app.settingsService))

	app.housekeepingService = service.NewHousekeepingService(app.db, app.logger, app.cfg.HousekeepingInterval)

	mobile := &service.MobileTokenService{Store: app.db, Tokens: app.tokens, Passwords: passwords, Tasks: app.queue}

	app.router = httpapi.NewRouter(app.tokens, BuildVersion, app.db, app.blobs, app.sealer, app.logger)
	app.router.TrustProxy = app.cfg.TrustProxy
	app.router.SecureCookies = app.cfg.SecureCookies
	app.router.MobileTokenService = mobile
	app.router.UserService = &service.UserService{
		Store:          app.db,
		Passwords:      passwords,
		BootstrapToken: app.cfg.BootstrapToken,
		Tokens:         mobile,
	}
	app.router.SessionService = &service.SessionService{Store: app.db, Passwords: passwords, TTL: app.cfg.SessionTTL}
	app.router.DocumentService = &service.DocumentService{
		Store:          app.db,
		Blobs:          app.blobs,
		Sealer:         app.sealer,
		Tasks:          app.queue,
		Inbox:          app.settingsService,
		MaxUploadBytes: app.cfg.MaxUploadBytes,
	}
	app.router.LeadService = &service.LeadService{Store: app.db, Blobs: app.blobs, Sealer: app.sealer, Tasks: app.queue, Issuer: app.cfg.Issuer}
	app.router.AppointmentService = &service.AppointmentService{
		Store:    app.db,
		Calendar: cal,
		Hours:    hours,
		Tasks:    app.queue,
		Inbox:    app.settingsService,
	}
	app.router.EnquiryService = &service.EnquiryService{Store: app.db, Tasks: app.queue, Inbox: app.settingsService}
	app.router.SettingsService = app.settingsService
	app.router.ApplyRoutes()

	var handler http.Handler = app.router.Handler()
	if len(app.cfg.CORSAllowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   app.cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
		}).Handler(handler)
	}

	app.server = &http.Server{
		Addr:              ":" + strconv.Itoa(app.cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}

// errMissingJWTSecret is returned in production when no signing secret is
// configured.
var errMissingJWTSecret = errors.New("config: jwt_secret is required in production")

func isProduction(env string) bool {
	switch strings.ToLower(env) {
	case "prod", "production":
		return true
	}
	return false
}

// initTokens builds the HS256 signer. Outside production a missing secret is
// replaced by a random one, so tokens do not survive a restart.
func (app *Application) initTokens() (*jwtx.HS256, error) {
	secret := []byte(app.cfg.JWTSecret)
	if len(secret) == 0 {
		if isProduction(app.cfg.Env) {
			return nil, errMissingJWTSecret
		}
		secret = make([]byte, jwtx.MinSecretSize)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate signing secret: %w", err)
		}
		app.logger.Warn("jwt secret not configured, using an ephemeral secret")
	}

	signer, err := jwtx.NewHS256(secret, app.cfg.Issuer, jwtx.WithTTLs(app.cfg.AccessTokenTTL, app.cfg.RefreshTokenTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to create token signer: %w", err)
	}
	return signer, nil
}

func (app *Application) initBlobs(ctx context.Context) (blob.Store, error) {
	switch app.cfg.StorageBackend {
	case "s3":
		s, err := blob.NewS3Store(ctx, blob.S3Config{
			Bucket:          app.cfg.S3Bucket,
			Region:          app.cfg.S3Region,
			Endpoint:        app.cfg.S3Endpoint,
			AccessKeyID:     app.cfg.S3AccessKeyID,
			SecretAccessKey: app.cfg.S3SecretAccessKey,
			UsePathStyle:    app.cfg.S3UsePathStyle,
			Prefix:          app.cfg.S3Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 storage: %w", err)
		}
		app.logger.Info("document storage ready", "backend", "s3", "bucket", app.cfg.S3Bucket)
		return s, nil
	default:
		s, err := blob.NewLocalStore(app.cfg.StorageDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create local storage: %w", err)
		}
		app.logger.Info("document storage ready", "backend", "local", "root", s.Root())
		return s, nil
	}
}

// initCalendar picks the free/busy source. Credentials missing from config
// are read from stored settings.
func (app *Application) initCalendar(ctx context.Context) (calendar.Client, calendar.WorkingHours, error) {
	loc, err := time.LoadLocation(app.cfg.CalendarTimezone)
	if err != nil {
		return nil, calendar.WorkingHours{}, fmt.Errorf("invalid calendar timezone %q: %w", app.cfg.CalendarTimezone, err)
	}
	hours := calendar.DefaultWorkingHours(loc)

	if app.cfg.CalendarBaseURL == "" {
		app.logger.Info("calendar not configured, availability uses working hours only")
		return calendar.Static{}, hours, nil
	}

	id := app.settingOr(ctx, app.cfg.CalendarID, settings.CalendarID)
	clientID := app.settingOr(ctx, app.cfg.CalendarClientID, settings.CalendarClientID)
	clientSecret := app.settingOr(ctx, app.cfg.CalendarClientSecret, settings.CalendarClientSecret)

	client, err := calendar.NewHTTPClient(ctx, calendar.HTTPConfig{
		BaseURL:      app.cfg.CalendarBaseURL,
		CalendarID:   id,
		TokenURL:     app.cfg.CalendarTokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
	if err != nil {
		return nil, calendar.WorkingHours{}, err
	}
	app.logger.Info("calendar ready", "calendar_id", id)
	return client, hours, nil
}

func (app *Application) settingOr(ctx context.Context, configured, key string) string {
	if configured != "" {
		return configured
	}
	v, err := app.settingsService.Value(ctx, key)
	if err != nil {
		app.logger.Warn("failed to read setting", "key", key, "error", err)
		return ""
	}
	return v
}

func (app *Application) initMailer() mail.Mailer {
	if app.cfg.MailMode == "log" {
		app.logger.Info("mail mode is log, outbound email is written to the log")
		return mail.LogMailer{Logger: app.logger}
	}
	return mail.NewSMTPMailer(app.settingsService)
}

// Handler exposes the wrapped HTTP handler.
func (app *Application) Handler() http.Handler { return app.server.Handler }

// Run starts the server and background workers and blocks until a shutdown
// signal arrives or one of them fails.
func (app *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.RunContext(ctx)
}

// RunContext is Run driven by ctx instead of process signals.
func (app *Application) RunContext(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return app.queue.Run(gctx) })
	g.Go(func() error { return app.housekeepingService.Run(gctx) })
	g.Go(func() error {
		app.logger.Info("portal starting", "port", app.cfg.Port, "version", BuildVersion)
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutdown requested")
		app.shutdownServer()
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if cerr := app.db.Close(); cerr != nil {
		app.logger.Error("error closing database", "error", cerr)
		if err == nil {
			err = cerr
		}
	}

	app.logger.Info("portal stopped", "pending_tasks", app.queue.Len())
	return err
}

func (app *Application) shutdownServer() {
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}
}
