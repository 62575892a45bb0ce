// Package main implements the cardsync ingestion CLI. One invocation runs
// one pipeline: fetch the bulk dataset, stage it durably, normalize, then
// either write a local sample artifact or append to the warehouse and
// trigger the downstream build.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/manalake/cardsync/internal/build"
	"github.com/manalake/cardsync/internal/config"
	connhttp "github.com/manalake/cardsync/internal/connector/http"
	"github.com/manalake/cardsync/internal/connector/minio"
	"github.com/manalake/cardsync/internal/connector/scryfall"
	"github.com/manalake/cardsync/internal/dataset"
	"github.com/manalake/cardsync/internal/normalize"
	"github.com/manalake/cardsync/internal/pipeline"
	"github.com/manalake/cardsync/internal/stage"
	"github.com/manalake/cardsync/internal/warehouse"
	"github.com/manalake/cardsync/pkg/version"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to a YAML config file overlaid on the environment")
		datasetName = flag.String("dataset", "", "dataset name override")
		sampleOnly  = flag.Bool("sample", false, "write a local sample artifact instead of loading the warehouse")
	)
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cardsync: init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := config.Load()
	if *configPath != "" {
		if err := cfg.ApplyFile(*configPath); err != nil {
			logger.Fatal("load config file", zap.Error(err))
		}
	}
	if *datasetName != "" {
		cfg.Dataset = *datasetName
	}
	if *sampleOnly {
		cfg.SampleOnly = true
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("run failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	codec := version.NewCodec(version.Granularity(cfg.Granularity))
	fetcher := scryfall.NewFetcher(&connhttp.ClientConfig{
		Timeout:   time.Duration(cfg.FetchTimeout) * time.Second,
		RateLimit: cfg.RateLimit,
	}, codec, logger)

	store, err := minio.Open(&minio.Config{
		EndpointURL:     cfg.StoreEndpoint,
		Region:          cfg.StoreRegion,
		AccessKeyID:     cfg.StoreAccessKey,
		SecretAccessKey: cfg.StoreSecretKey,
		Bucket:          cfg.StoreBucket,
	})
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}

	stager, err := stage.NewStager(store, cfg.StoreBucket, cfg.ScratchDir, logger)
	if err != nil {
		return fmt.Errorf("init stager: %w", err)
	}

	normalizer := normalize.NewNormalizer(cfg.Currency, normalize.Policy(cfg.ParsePolicy), logger)

	var loader pipeline.Loader
	var trigger pipeline.BuildTrigger
	if !cfg.SampleOnly {
		wh, err := warehouse.NewLoader(cfg.WarehouseDSN, cfg.ChunkSize, logger)
		if err != nil {
			return fmt.Errorf("init warehouse loader: %w", err)
		}
		defer wh.Close()
		if err := wh.Ping(ctx); err != nil {
			return fmt.Errorf("warehouse unreachable: %w", err)
		}
		if err := wh.EnsureTable(ctx, cfg.Table); err != nil {
			return err
		}
		loader = wh

		if cfg.BuildCommand != "" {
			trigger = &build.Trigger{
				Command: cfg.BuildCommand,
				Args:    cfg.BuildArgs,
				Dir:     cfg.BuildDir,
				Timeout: cfg.BuildTimeout(),
				Logger:  logger,
			}
		}
	}

	p := pipeline.New(fetcher, stager, normalizer, loader, trigger, logger)
	if cfg.LakeEnabled {
		p = p.WithLake(&normalize.LakePublisher{
			Store:  store,
			Bucket: cfg.StoreBucket,
			Prefix: cfg.LakePrefix,
			Logger: logger,
		})
	}

	res, err := p.Run(ctx, pipeline.Options{
		Descriptor: dataset.Descriptor{Name: cfg.Dataset, Endpoint: cfg.SourceEndpoint},
		Table:      cfg.Table,
		SampleOnly: cfg.SampleOnly,
		SamplePath: cfg.SamplePath,
	})
	if err != nil {
		if res != nil {
			return fmt.Errorf("run %s failed in state %s: %w", res.RunID, res.FailedState, err)
		}
		return err
	}

	logger.Info("run complete",
		zap.String("run_id", res.RunID),
		zap.String("version", res.Version.String()),
		zap.Int64("rows", res.Rows),
		zap.Int("parse_fallbacks", res.Fallbacks))
	return nil
}
