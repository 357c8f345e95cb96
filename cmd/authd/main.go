package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/keyline-id/keyline/internal/background"
	"github.com/keyline-id/keyline/internal/config"
	"github.com/keyline-id/keyline/internal/database"
	"github.com/keyline-id/keyline/internal/models"
	"github.com/keyline-id/keyline/internal/repositories"
	"github.com/keyline-id/keyline/internal/services"
	"github.com/keyline-id/keyline/internal/token"
	"github.com/keyline-id/keyline/pkg/password"
)

// application bundles the wired service graph the daemon carries. Transports
// attach to these services; the daemon itself uses them for bootstrap and
// background work.
type application struct {
	cfg    *config.Config
	logger *slog.Logger

	users    *services.UserService
	accounts *services.AccountService
	oauth    *services.OAuthService
	sso      *services.SSOService

	userRepo   *repositories.UserRepository
	clientRepo *repositories.OAuthClientRepository

	cleanup *background.CleanupManager
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := runMigrations(db); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	clientRepo := repositories.NewOAuthClientRepository(db)
	codeRepo := repositories.NewAuthorizationCodeRepository(db)
	tokenRepo := repositories.NewTokenRepository(db)
	sessionRepo := repositories.NewSSOSessionRepository(db)

	// Token signing
	signer := token.NewSigner(cfg.Auth.JWTSecret)
	verificationService := token.NewVerificationService(
		signer,
		cfg.Auth.VerificationTokenTTL,
		cfg.Auth.PasswordResetTTL,
	)

	// AWS SES email service
	emailService, err := services.NewAWSSESEmailService(
		cfg.Email.AWSRegion,
		cfg.Email.FromAddress,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
	userService := services.NewUserService(userRepo, logger)
	ssoService := services.NewSSOService(sessionRepo, logger)
	accountService := services.NewAccountService(
		userService,
		userRepo,
		verificationService,
		signer,
		ssoService,
		emailService,
		logger,
		services.AccountConfig{
			BaseURL:    cfg.Email.BaseURL,
			SessionTTL: cfg.Auth.SessionTTL,
		},
	)
	oauthService := services.NewOAuthService(
		clientRepo,
		codeRepo,
		tokenRepo,
		userRepo,
		signer,
		logger,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)

	app := &application{
		cfg:        cfg,
		logger:     logger,
		users:      userService,
		accounts:   accountService,
		oauth:      oauthService,
		sso:        ssoService,
		userRepo:   userRepo,
		clientRepo: clientRepo,
		cleanup: background.NewCleanupManager(map[string]background.ExpiredStore{
			"authorization_codes": codeRepo,
			"oauth_tokens":        tokenRepo,
			"sso_sessions":        sessionRepo,
		}, logger, cfg.Auth.CleanupInterval),
	}

	// Bootstrap first admin user and seed client if configured
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := app.ensureAdminUser(bootCtx); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	if err := app.ensureSeedClient(bootCtx); err != nil {
		logger.Error("failed to ensure seed client", slog.Any("error", err))
	}
	bootCancel()

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go app.cleanup.Start(cleanupCtx)

	logger.Info("authd ready")

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	app.cleanup.Stop()

	logger.Info("authd stopped gracefully")
}

// runMigrations applies goose migrations over a stdlib adapter of the pool.
func runMigrations(db *database.DB) error {
	sqlDB := stdlib.OpenDB(*db.Pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(sqlDB, "migrations"); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// ensureAdminUser registers the first user through the directory if
// ADMIN_EMAIL and ADMIN_PASSWORD are set, and marks it verified so it can
// operate immediately.
func (app *application) ensureAdminUser(ctx context.Context) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		app.logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, err := app.userRepo.FindByEmail(ctx, adminEmail)
	if err == nil {
		app.logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	passwordHash, err := password.Hash(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin, err := app.users.Register(ctx, adminEmail, "admin", adminPassword, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	if err := app.userRepo.MarkEmailVerified(ctx, admin.ID, time.Now()); err != nil {
		return fmt.Errorf("failed to mark admin verified: %w", err)
	}

	app.logger.Info("admin user created", slog.String("user_id", admin.ID))
	return nil
}

// ensureSeedClient registers a first-party OAuth client if SEED_CLIENT_NAME
// and SEED_CLIENT_REDIRECT_URI are set. The generated secret is logged once;
// it cannot be recovered later.
func (app *application) ensureSeedClient(ctx context.Context) error {
	name := os.Getenv("SEED_CLIENT_NAME")
	redirectURI := os.Getenv("SEED_CLIENT_REDIRECT_URI")

	if name == "" || redirectURI == "" {
		app.logger.Info("no SEED_CLIENT_NAME or SEED_CLIENT_REDIRECT_URI set, skipping seed client")
		return nil
	}

	existing, err := app.clientRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list clients: %w", err)
	}
	for _, c := range existing {
		if c.Name == name {
			app.logger.Info("seed client already exists", slog.String("client_id", c.ID))
			return nil
		}
	}

	client, err := app.oauth.RegisterClient(ctx, services.RegisterClientInput{
		Name:         name,
		RedirectURIs: []string{redirectURI},
		Scopes:       []string{"openid", "profile", "email"},
		GrantTypes:   []string{models.GrantAuthorizationCode, models.GrantRefreshToken},
	})
	if err != nil {
		return fmt.Errorf("failed to register seed client: %w", err)
	}

	app.logger.Info("seed client registered",
		slog.String("client_id", client.ID),
		slog.String("client_secret", client.Secret))
	return nil
}
