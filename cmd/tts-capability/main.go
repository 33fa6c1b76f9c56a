// main package for the tts-capability service
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-capability/internal/assets"
	"github.com/book-expert/tts-capability/internal/config"
	"github.com/book-expert/tts-capability/internal/hardware"
	"github.com/book-expert/tts-capability/internal/health"
	"github.com/book-expert/tts-capability/internal/objectstore"
	"github.com/book-expert/tts-capability/internal/server"
	"github.com/book-expert/tts-capability/internal/tts"
	"github.com/book-expert/tts-capability/internal/voices"
	"github.com/book-expert/tts-capability/internal/worker"
	"github.com/dustin/go-humanize"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"
)

const (
	bootstrapLogFile = "tts-capability-bootstrap.log"
	serviceLogFile   = "tts-capability.log"
	natsClientName   = "tts-capability"
)

// services holds the wired components of one process.
type services struct {
	probe      *hardware.Probe
	catalog    *voices.Catalog
	dispatcher *tts.Dispatcher
	status     *assets.Status
	acquirer   *assets.Acquirer
	aggregator *health.Aggregator
	server     *server.Server
}

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger in %s: %w", logPath, err)
	}

	return log, nil
}

// newServices wires every component from cfg.
func newServices(cfg *config.Config, probe *hardware.Probe, log *logger.Logger) *services {
	catalog := voices.NewCatalog(cfg.Models.Dir, cfg.Espeak.Binary)
	resolver := voices.NewResolver(catalog, cfg.Piper.ModelPath, cfg.Piper.ConfigPath)
	piper := tts.NewPiperEngine(cfg.Piper.Binary, cfg.Piper.FallbackPaths, cfg.SynthesisTimeout())
	espeak := tts.NewEspeakEngine(cfg.Espeak.Binary, cfg.SynthesisTimeout(), "", log)
	dispatcher := tts.NewDispatcher(resolver, piper, espeak, log)

	status := assets.NewStatus(cfg.Download.Enabled, cfg.Download.Voice)
	acquirer := assets.NewAcquirer(assets.Options{
		VoiceID:    cfg.Download.Voice,
		IndexURL:   cfg.Download.IndexURL,
		BaseURL:    cfg.Download.BaseURL,
		ModelPath:  cfg.Piper.ModelPath,
		ConfigPath: cfg.Piper.ConfigPath,
		Timeout:    cfg.DownloadTimeout(),
		Client:     nil,
	}, status, log)

	aggregator := health.NewAggregator(health.Sources{
		Piper:             piper,
		Espeak:            espeak,
		Voices:            catalog,
		Hardware:          probe,
		Download:          status,
		DefaultModelPath:  cfg.Piper.ModelPath,
		DefaultConfigPath: cfg.Piper.ConfigPath,
	})

	return &services{
		probe:      probe,
		catalog:    catalog,
		dispatcher: dispatcher,
		status:     status,
		acquirer:   acquirer,
		aggregator: aggregator,
		server:     server.New(dispatcher, aggregator, catalog, cfg.Server.Workers, log),
	}
}

// logBanner records the host and the resources advertised for it.
func logBanner(log *logger.Logger, cfg *config.Config, snapshot hardware.Snapshot) {
	recommendation := hardware.Recommend(snapshot)

	log.System("tts-capability starting on %s", cfg.ListenAddr())
	log.System("Hardware: arch=%s ram=%s available=%s cores=%d cpu=%q accelerator=%s",
		snapshot.Architecture,
		humanize.IBytes(uint64(max(snapshot.RAMMB, 0))<<20),
		humanize.IBytes(uint64(max(snapshot.AvailableRAMMB, 0))<<20),
		snapshot.CPUCores, snapshot.CPUModel, snapshot.Accelerator)
	log.System("Recommended resources: ram=%dMB cpu=%d accelerator=%s",
		recommendation.RAMMB, recommendation.CPUCores, recommendation.Accelerator)
	log.System("Models dir: %s, default model: %s, auto download: %t (%s)",
		cfg.Models.Dir, cfg.Piper.ModelPath, cfg.Download.Enabled, cfg.Download.Voice)
}

// runWorker serves NATS jobs until ctx is done. Connection problems are
// logged and leave the HTTP surface running.
func runWorker(ctx context.Context, cfg *config.Config, synthesizer *tts.Dispatcher, log *logger.Logger) error {
	natsConnection, err := nats.Connect(cfg.NATS.URL, nats.Name(natsClientName))
	if err != nil {
		log.Error("NATS worker disabled, failed to connect to %s: %v", cfg.NATS.URL, err)

		return nil
	}
	defer natsConnection.Close()

	js, err := jetstream.New(natsConnection)
	if err != nil {
		log.Error("NATS worker disabled, JetStream unavailable: %v", err)

		return nil
	}

	texts, err := objectstore.New(ctx, js, cfg.NATS.TextBucket)
	if err != nil {
		log.Error("NATS worker disabled: %v", err)

		return nil
	}

	audio, err := objectstore.New(ctx, js, cfg.NATS.AudioBucket)
	if err != nil {
		log.Error("NATS worker disabled: %v", err)

		return nil
	}

	natsWorker, err := worker.NewNatsWorker(natsConnection, cfg.NATS.Subject, texts, audio, synthesizer, log)
	if err != nil {
		return fmt.Errorf("failed to create NATS worker: %w", err)
	}

	return natsWorker.Run(ctx)
}

func run() error {
	// 1. Bootstrap logger for configuration loading
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	defer func() { _ = bootstrapLog.Close() }()

	// 2. Configuration
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 3. Final logger
	log, err := setupLogger(cfg.Paths.BaseLogsDir, serviceLogFile)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return err
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := newServices(cfg, hardware.NewProbe(hardware.DefaultSources()), log)

	logBanner(log, cfg, svc.probe.Detect())
	log.Info("Found %d neural voices under %s", len(svc.catalog.NeuralVoices()), cfg.Models.Dir)

	// 4. Background acquisition, HTTP surface and the optional NATS worker
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		snapshot := svc.acquirer.Run(groupCtx)
		log.Info("Default voice acquisition finished: %s", snapshot.State)

		return nil
	})

	group.Go(func() error {
		return svc.server.ListenAndServe(groupCtx, cfg.ListenAddr())
	})

	if cfg.NATS.URL != "" {
		group.Go(func() error {
			return runWorker(groupCtx, cfg, svc.dispatcher, log)
		})
	}

	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Service stopped with error: %v", err)

		return err
	}

	log.System("tts-capability stopped")

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
