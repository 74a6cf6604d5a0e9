package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/finverge/fieldops/internal/bootstrap"
	"github.com/finverge/fieldops/internal/config"
	"github.com/finverge/fieldops/internal/observability/logging"
	"github.com/finverge/fieldops/internal/observability/metrics"
)

const dispatchTimeout = 2 * time.Minute

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("fieldops-worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := serveMetrics(cfg.WorkerMetricsPort, workerMetrics)
	defer shutdownMetrics(metricsServer)

	sweeper := startSweep(ctx, cfg.SweepCronSpec, app, workerMetrics)
	defer sweeper.Stop()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeSubmissionCreated(ctx, func(handlerCtx context.Context, submissionID string) error {
		dispatchCtx, cancel := context.WithTimeout(handlerCtx, dispatchTimeout)
		defer cancel()

		if rec, err := app.Repo.GetByID(dispatchCtx, submissionID); err == nil {
			workerMetrics.ObserveQueueLag(rec.CreatedAt)
		}

		finish := workerMetrics.ObserveDispatch("worker")
		err := app.Dispatcher.DispatchByID(dispatchCtx, submissionID)
		finish(err)
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_error", "error", err)
		os.Exit(1)
	}
}

// startSweep schedules the periodic re-dispatch of records still pending or
// failed, covering events lost between publish and subscribe.
func startSweep(ctx context.Context, spec string, app *bootstrap.App, workerMetrics *metrics.WorkerMetrics) *cron.Cron {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(spec, func() {
		sweepCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
		defer cancel()

		delivered, err := app.Dispatcher.DispatchPending(sweepCtx)
		workerMetrics.RecordSweep("worker", delivered, err)
		if err != nil {
			slog.Warn("sweep_incomplete", "delivered", delivered, "error", err)
			return
		}
		if delivered > 0 {
			slog.Info("sweep_delivered", "count", delivered)
		}
	})
	if err != nil {
		slog.Error("sweep_schedule_error", "spec", spec, "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	return scheduler
}

func serveMetrics(port string, workerMetrics *metrics.WorkerMetrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", workerMetrics.Handler())

	server := &http.Server{Addr: ":" + port, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker_metrics_server_error", "error", err)
		}
	}()
	return server
}

func shutdownMetrics(server *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}
