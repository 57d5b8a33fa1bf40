package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	githubadapter "github.com/ericfisherdev/repomover/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/repomover/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/repomover/internal/application"
	"github.com/ericfisherdev/repomover/internal/config"
)

// app is the wired object graph shared by every command.
type app struct {
	cfg      *config.Config
	db       *sqliteadapter.DB
	identity *application.IdentityService
	workflow *application.WorkflowService
	health   *application.HealthService
	stop     context.CancelFunc
}

// bootstrap loads configuration, opens the database, wires the services, and
// restores any stored session. The repository inventory is fetched only when
// loadInventory is set; other commands skip the listing calls. The destination
// resolver runs until close.
func bootstrap(ctx context.Context, loadInventory bool) (*app, error) {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	if !cfg.HasSecretKey() {
		return nil, errors.New("REPOMOVER_SECRET_KEY is required to store credentials (64 hex characters)")
	}

	// 2. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Debug("database opened", "path", cfg.DBPath)

	// 3. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}

	// 4. Wire adapters and services.
	credentialStore := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	transferLog := sqliteadapter.NewTransferLogRepo(db)

	provider := application.NewGitHubClientProvider()
	cache := application.NewValidationCache(cfg.ValidationCacheTTL)
	identity := application.NewIdentityService(githubadapter.NewFactory(), credentialStore, provider, cache)
	inventory := application.NewInventoryService(provider, cfg.PageSize)
	resolver := application.NewDestinationResolver(identity, cfg.ValidationDebounce)
	executor := application.NewTransferExecutor(provider, cfg.TransferPacing)
	workflow := application.NewWorkflowService(identity, inventory, resolver, executor, transferLog)
	health := application.NewHealthService(db, identity)

	runCtx, stop := context.WithCancel(ctx)
	go resolver.Start(runCtx)

	a := &app{
		cfg:      cfg,
		db:       db,
		identity: identity,
		workflow: workflow,
		health:   health,
		stop:     stop,
	}

	// 5. Restore the stored session, or seed one from REPOMOVER_GITHUB_TOKEN.
	if err := workflow.Restore(ctx, loadInventory); err != nil {
		slog.Warn("restoring session failed", "error", err)
	}
	if identity.Current() == nil && cfg.GitHubToken != "" {
		a.seedSession(ctx, cfg.GitHubToken, loadInventory)
	}

	return a, nil
}

// seedSession logs in with token. Without loadInventory the stored credential
// is restored step-only, as for an existing session.
func (a *app) seedSession(ctx context.Context, token string, loadInventory bool) {
	if loadInventory {
		if _, err := a.workflow.Authenticate(ctx, token); err != nil {
			slog.Warn("REPOMOVER_GITHUB_TOKEN was rejected", "error", err)
		}
		return
	}

	if _, err := a.identity.Authenticate(ctx, token); err != nil {
		slog.Warn("REPOMOVER_GITHUB_TOKEN was rejected", "error", err)
		return
	}
	if err := a.workflow.Restore(ctx, false); err != nil {
		slog.Warn("restoring seeded session failed", "error", err)
	}
}

// close stops the resolver and any running batch, then closes the database.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := a.workflow.Reset(ctx); err != nil {
		slog.Debug("reset on close", "error", err)
	}
	a.stop()
	if err := a.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// requireLogin returns the active login or an error telling the user how to
// authenticate.
func (a *app) requireLogin() (string, error) {
	id := a.identity.Current()
	if id == nil {
		return "", errors.New("not logged in: run 'repomover login'")
	}
	return id.Login, nil
}
