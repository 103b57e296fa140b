package entrypoint

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/locallibrary/internal/audit"
	"github.com/mrlokans/locallibrary/internal/auth"
	"github.com/mrlokans/locallibrary/internal/catalog"
	"github.com/mrlokans/locallibrary/internal/config"
	"github.com/mrlokans/locallibrary/internal/database"
	auditrepo "github.com/mrlokans/locallibrary/internal/database/audit"
	"github.com/mrlokans/locallibrary/internal/database/authors"
	"github.com/mrlokans/locallibrary/internal/database/books"
	"github.com/mrlokans/locallibrary/internal/database/instances"
	"github.com/mrlokans/locallibrary/internal/database/reviews"
	"github.com/mrlokans/locallibrary/internal/database/taxonomy"
	"github.com/mrlokans/locallibrary/internal/database/users"
	http_controllers "github.com/mrlokans/locallibrary/internal/http"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// App holds the services shared by the HTTP server and the CLI.
type App struct {
	Config  *config.Config
	DB      *database.Database
	Users   *users.Repository
	Catalog *catalog.Service
	Auth    *auth.Service
	Audit   *audit.Service
}

// Build opens the database and wires the catalog, auth and audit services.
func Build(cfg *config.Config) (*App, error) {
	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	auditService := audit.NewService(auditrepo.NewRepository(db.DB))
	userRepo := users.NewRepository(db.DB)

	catalogService := catalog.NewService(catalog.Stores{
		Authors:   authors.NewRepository(db.DB),
		Books:     books.NewRepository(db.DB),
		Instances: instances.NewRepository(db.DB),
		Reviews:   reviews.NewRepository(db.DB),
		Genres:    taxonomy.NewGenreRepository(db.DB),
		Languages: taxonomy.NewLanguageRepository(db.DB),
		Users:     userRepo,
	}, catalog.WithAuditRecorder(auditService))

	return &App{
		Config:  cfg,
		DB:      db,
		Users:   userRepo,
		Catalog: catalogService,
		Auth:    auth.NewService(userRepo, cfg.Auth),
		Audit:   auditService,
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// sessionSecret decodes AUTH_SESSION_SECRET, accepting hex or raw text, and
// generates a throwaway secret when none is configured.
func sessionSecret(configured string) ([]byte, error) {
	if configured != "" {
		if secret, err := hex.DecodeString(configured); err == nil {
			return secret, nil
		}
		return []byte(configured), nil
	}

	generated, err := auth.GenerateSessionSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session secret: %w", err)
	}
	log.Printf("Generated session secret (set AUTH_SESSION_SECRET to persist)")
	return hex.DecodeString(generated)
}

// Router builds the HTTP handler. The returned stop function releases the
// background cleanup of the rate limiters.
func (a *App) Router(version string) (*gin.Engine, func(), error) {
	cfg := a.Config

	sqlDB, err := a.DB.DB.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get SQL DB for sessions: %w", err)
	}
	sessionManager, err := auth.NewSessionManager(sqlDB, cfg.Database.Driver, cfg.Auth)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize session manager: %w", err)
	}

	csrfSecret, err := sessionSecret(cfg.Auth.SessionSecret)
	if err != nil {
		return nil, nil, err
	}

	var throttle *auth.Throttle
	if cfg.Throttle.Enabled {
		throttle = auth.NewThrottle(cfg.Throttle)
	}

	templates, err := http_controllers.LoadTemplates(cfg.UI.TemplatesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load templates: %w", err)
	}
	authController := auth.NewAuthController(a.Auth, sessionManager, templates, cfg.Auth, a.Audit)

	router, err := http_controllers.NewRouter(http_controllers.RouterConfig{
		Catalog:        a.Catalog,
		Database:       a.DB,
		AuthService:    a.Auth,
		SessionManager: sessionManager,
		AuthMiddleware: auth.NewMiddleware(a.Auth, sessionManager),
		AuthConfig:     cfg.Auth,
		AuthRecorder:   a.Audit,
		AuthController: authController,
		CSRFSecret:     csrfSecret,
		SecureCookies:  cfg.Auth.SecureCookies,
		Throttle:       throttle,
		Templates:      templates,
		StaticPath:     cfg.UI.StaticPath,
		Version:        version,
	})
	if err != nil {
		authController.Stop()
		if throttle != nil {
			throttle.Stop()
		}
		return nil, nil, err
	}

	stop := func() {
		authController.Stop()
		if throttle != nil {
			throttle.Stop()
		}
	}
	return router, stop, nil
}

func Serve(router http.Handler, cfg *config.Config, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-quit:
	}
	log.Printf("Shutdown Server, waiting %v before killing", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Println("Server exiting")
	return nil
}

// Run starts the catalog web server and blocks until it is stopped.
func Run(cfg *config.Config, version string) error {
	log.Printf("Starting Local Library v%s", version)

	app, err := Build(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	if hasUsers, err := app.Auth.HasUsers(context.Background()); err == nil && !hasUsers {
		log.Printf("No users found. Visit /setup or run 'locallibrary createuser --superuser' to create an administrator.")
	}

	router, stop, err := app.Router(version)
	if err != nil {
		return err
	}

	return Serve(router, cfg, func(context.Context) { stop() })
}
