package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/ignite/feedback-processor/internal/api"
	"github.com/ignite/feedback-processor/internal/archive"
	"github.com/ignite/feedback-processor/internal/config"
	"github.com/ignite/feedback-processor/internal/consumer"
	"github.com/ignite/feedback-processor/internal/envelope"
	"github.com/ignite/feedback-processor/internal/metrics"
	"github.com/ignite/feedback-processor/internal/params"
	"github.com/ignite/feedback-processor/internal/pkg/logger"
	"github.com/ignite/feedback-processor/internal/resolve"
	"github.com/ignite/feedback-processor/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional, env vars cover everything)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "error", err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWS.Region)}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWS.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		logger.Error("loading AWS config failed", "error", err.Error())
		os.Exit(1)
	}

	st := store.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.Storage.TableName)
	resolver := resolve.NewResolver(st, st)
	verifier := envelope.NewVerifier(envelope.NewCertCache(), nil)

	provider := params.NewProvider(
		params.NewCache(),
		params.EnvSource{},
		params.EnvSource{},
		cfg.Feedback.EmailHashSecretName,
		cfg.Feedback.EngagementTTLParamName,
		cfg.Feedback.DefaultEngagementTTL,
	)

	registry := prometheus.NewRegistry()
	emitter := metrics.NewEmitter(registry)
	emitter.Start()
	defer emitter.Stop()

	var archiver consumer.Archiver
	if cfg.Storage.ArchiveBucket != "" {
		archiver = archive.NewS3Archiver(s3.NewFromConfig(awsCfg), cfg.Storage.ArchiveBucket)
		logger.Info("envelope archival enabled", "bucket", cfg.Storage.ArchiveBucket)
	}

	proc := consumer.NewProcessor(verifier, resolver, st, provider, emitter, archiver, nil)
	poller := consumer.NewPoller(sqs.NewFromConfig(awsCfg), cfg.Queue.URL, proc)
	poller.Start(ctx)

	opsServer := api.NewServer(cfg.Server.Addr(), proc, registry)
	go func() {
		logger.Info("ops server listening", "addr", cfg.Server.Addr())
		if err := opsServer.ListenAndServe(); err != nil {
			logger.Warn("ops server stopped", "error", err.Error())
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	poller.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ops server shutdown failed", "error", err.Error())
	}
}
