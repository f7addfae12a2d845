package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/awssnssqs"
	_ "gocloud.dev/pubsub/mem"

	"github.com/preservica/dr-replicator/internal/config"
	"github.com/preservica/dr-replicator/internal/coordinator"
	"github.com/preservica/dr-replicator/internal/localstore"
	"github.com/preservica/dr-replicator/internal/notify"
	"github.com/preservica/dr-replicator/internal/ocfl"
	"github.com/preservica/dr-replicator/internal/preservica"
	"github.com/preservica/dr-replicator/internal/queue"
	"github.com/preservica/dr-replicator/internal/resolver"
)

// trapSignals derives a context that cancels on SIGINT/SIGTERM so the
// poll loop can shut down cleanly.
func trapSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

var (
	statusStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// runner holds every collaborator wired from configuration, and drives
// the receive -> process -> repeat poll loop.
type runner struct {
	cfg     *config.Config
	logger  *slog.Logger
	queue   *queue.Client
	notify  *notify.Notifier
	coord   *coordinator.Coordinator
	sub     *pubsub.Subscription
	topic   *pubsub.Topic
}

// newRunner loads configuration and opens every external collaborator:
// the queue subscription, the notification topic, the local OCFL
// repository, and the upstream entity client.
func newRunner(ctx context.Context, cfgPath string, logger *slog.Logger) (*runner, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	sub, err := pubsub.OpenSubscription(ctx, cfg.SQSQueueURL)
	if err != nil {
		return nil, fmt.Errorf("opening queue subscription: %w", err)
	}

	topic, err := pubsub.OpenTopic(ctx, cfg.TopicARN)
	if err != nil {
		sub.Shutdown(ctx)
		return nil, fmt.Errorf("opening notification topic: %w", err)
	}

	repoFS, err := ocfl.NewLocalFS(cfg.OCFLRepoDir)
	if err != nil {
		return nil, fmt.Errorf("binding OCFL repo dir: %w", err)
	}
	store, err := localstore.Open(ctx, repoFS, ".")
	if err != nil {
		if err2 := localstore.Init(ctx, repoFS, ".", "dr-replicator mirror"); err2 != nil {
			return nil, fmt.Errorf("opening local store: %w (init also failed: %v)", err, err2)
		}
		store, err = localstore.Open(ctx, repoFS, ".")
		if err != nil {
			return nil, fmt.Errorf("opening freshly initialized local store: %w", err)
		}
	}
	if err := store.Healthy(ctx); err != nil {
		return nil, fmt.Errorf("local store health check: %w", err)
	}

	// config.Load already resolves PreservicaSecretName to the secret's
	// actual value via the DR_REPLICATOR_PRESERVICA_SECRET env override;
	// the name itself is only a lookup key in deployments that resolve
	// secrets some other way before setting that env var.
	entities := preservica.New(cfg.PreservicaBaseURL, cfg.PreservicaSecretName)

	r := &runner{
		cfg:    cfg,
		logger: logger,
		queue:  queue.New(sub),
		notify: notify.New(topic),
		sub:    sub,
		topic:  topic,
	}
	r.coord = &coordinator.Coordinator{
		Resolver:    resolver.New(entities, nil),
		Store:       store,
		Entities:    entities,
		Notifier:    r.notify,
		WorkDir:     cfg.OCFLWorkDir,
		Concurrency: cfg.Concurrency,
	}
	return r, nil
}

// Loop polls the queue for batches and hands each to the Coordinator
// until ctx is cancelled.
func (r *runner) Loop(ctx context.Context) error {
	interval := time.Duration(r.cfg.PollIntervalSeconds) * time.Second
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		carriers, err := r.queue.Receive(ctx, r.cfg.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.ErrorContext(ctx, "receive failed", "error", err)
			r.sleep(ctx, interval)
			continue
		}
		if len(carriers) == 0 {
			r.sleep(ctx, interval)
			continue
		}
		report, err := r.coord.Process(ctx, carriers)
		if err != nil {
			fmt.Fprintln(os.Stderr, warnStyle.Render(fmt.Sprintf("batch failed: %v", err)))
			continue
		}
		fmt.Fprintln(os.Stdout, statusStyle.Render(fmt.Sprintf(
			"batch: received=%d resolved=%d committed=%d published=%d acked=%d",
			report.Received, report.Resolved, report.Committed, report.Published, report.Acked)))
	}
}

func (r *runner) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Close shuts down every opened collaborator.
func (r *runner) Close(ctx context.Context) error {
	if r.sub != nil {
		r.sub.Shutdown(ctx)
	}
	if r.topic != nil {
		r.topic.Shutdown(ctx)
	}
	return nil
}
