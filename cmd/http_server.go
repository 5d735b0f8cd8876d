package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/frahmantamala/document-management/internal"
	"github.com/frahmantamala/document-management/internal/audit"
	auditpg "github.com/frahmantamala/document-management/internal/audit/postgres"
	"github.com/frahmantamala/document-management/internal/auth"
	authpg "github.com/frahmantamala/document-management/internal/auth/postgres"
	"github.com/frahmantamala/document-management/internal/document"
	documentpg "github.com/frahmantamala/document-management/internal/document/postgres"
	"github.com/frahmantamala/document-management/internal/role"
	rolepg "github.com/frahmantamala/document-management/internal/role/postgres"
	"github.com/frahmantamala/document-management/internal/transport/rest"
	"github.com/frahmantamala/document-management/internal/user"
	userpg "github.com/frahmantamala/document-management/internal/user/postgres"
	"github.com/frahmantamala/document-management/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	Router *chi.Mux
	Logger *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	cfg, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.InitWithLevel(os.Getenv("APP_ENV"), cfg.Observability.Logging.Level)
	lg := logger.LoggerWrapper()

	db, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// gorm shares the sqlx connection pool so there is a single pool to size.
	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	storage, err := document.NewDiskStorage(cfg.Storage.DocumentRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize document storage: %w", err)
	}

	auditRepo := auditpg.NewAuditRepository(gormDB)
	auditService := audit.NewService(auditRepo, lg)

	credentialRepo := authpg.NewRepository(gormDB)
	sessionRepo := authpg.NewSessionRepository(gormDB)
	tokenGen := auth.NewJWTTokenGenerator(
		cfg.Security.AccessTokenSecret,
		cfg.Security.RefreshTokenSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(credentialRepo, sessionRepo, tokenGen, cfg.Security.BCryptCost, lg)
	authHandler := auth.NewHandler(authService, auth.CookieConfig{
		Secure: cfg.Security.CookieSecure,
		Domain: cfg.Security.CookieDomain,
	})

	documentRepo := documentpg.NewDocumentRepository(gormDB, auditRepo)
	documentService := document.NewService(documentRepo, storage, auditRepo, lg)

	userRepo := userpg.NewUserRepository(gormDB, auditRepo)
	userService := user.NewService(userRepo, cfg.Security.BCryptCost, lg)

	roleRepo := rolepg.NewRoleRepository(gormDB, auditRepo)
	roleService := role.NewService(roleRepo, lg)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, db.DB, rest.Handlers{
		Auth:     authHandler,
		User:     user.NewHandler(userService),
		Role:     role.NewHandler(roleService),
		Document: document.NewHandler(documentService),
		Audit:    audit.NewHandler(auditService),
	}, rest.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		StorageRoot:    cfg.Storage.DocumentRoot,
		OpenAPIPath:    "./api/openapi.yml",
	}, lg)

	return &Dependencies{
		Config: cfg,
		Logger: lg,
		DB:     db,
		Router: router,
	}, nil
}

func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
