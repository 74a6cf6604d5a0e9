package bootstrap

import (
	"context"
	"fmt"

	"github.com/finverge/fieldops/internal/config"
	"github.com/finverge/fieldops/internal/core/ports"
	"github.com/finverge/fieldops/internal/core/usecase"
	"github.com/finverge/fieldops/internal/infrastructure/queue/nats"
	"github.com/finverge/fieldops/internal/infrastructure/repository/postgres"
	"github.com/finverge/fieldops/internal/infrastructure/resilience"
	"github.com/finverge/fieldops/internal/infrastructure/rules/yamlrules"
	"github.com/finverge/fieldops/internal/infrastructure/storage/localfs"
	"github.com/finverge/fieldops/internal/infrastructure/upstream/loanserv"
)

type App struct {
	Config config.Config

	Queue ports.MessageQueue
	Repo  ports.SubmissionRepository

	Submissions ports.SubmissionService
	Recorder    ports.RecorderService
	Dispatcher  ports.SubmissionDispatcher

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewSubmissionRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	clips, err := localfs.New(cfg.ClipStoragePath)
	if err != nil {
		return nil, fmt.Errorf("init clip storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	rules, err := yamlrules.Load(cfg.RulesFilePath)
	if err != nil {
		return nil, fmt.Errorf("load validation rules: %w", err)
	}

	sink := loanserv.New(cfg.LoanServURL, cfg.LoanServAPIKey, executor)

	submitUC := usecase.NewSubmitOperationUseCase(repo, queue, rules)
	recorderUC := usecase.NewRecorderUseCase(clips, cfg.MaxRecordingSeconds)
	dispatchUC := usecase.NewDispatchSubmissionUseCase(repo, sink)

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,

		Submissions: submitUC,
		Recorder:    recorderUC,
		Dispatcher:  dispatchUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
