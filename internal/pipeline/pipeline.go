// Package pipeline sequences one ingestion run: fetch, durable stage,
// read-back, normalize, then either a local sample artifact or a warehouse
// append followed by the downstream build trigger. Data flows strictly
// forward; each stage consumes only the previous stage's output.
package pipeline

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/manalake/cardsync/internal/build"
	"github.com/manalake/cardsync/internal/connector/scryfall"
	"github.com/manalake/cardsync/internal/dataset"
	"github.com/manalake/cardsync/internal/normalize"
	"github.com/manalake/cardsync/internal/stage"
	"github.com/manalake/cardsync/internal/warehouse"
	"github.com/manalake/cardsync/pkg/version"
)

// State names one step of the run state machine.
type State string

const (
	StateFetching    State = "fetching"
	StateStaging     State = "staging"
	StateReading     State = "reading"
	StateNormalizing State = "normalizing"
	StateSampleOnly  State = "sample_only"
	StateLoading     State = "loading"
	StateTriggering  State = "triggering"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Fetcher retrieves the raw table and its version from the source.
type Fetcher interface {
	Fetch(ctx context.Context, desc dataset.Descriptor) (*scryfall.BulkResult, error)
}

// Stager writes the raw table durably and reads it back for the transform.
type Stager interface {
	Write(ctx context.Context, records []dataset.Record, ver version.Version, desc dataset.Descriptor) (*stage.Artifact, error)
	ReadBack(ctx context.Context, ver version.Version, desc dataset.Descriptor) (string, error)
}

// Normalizer reshapes the staged table into the fixed output schema.
type Normalizer interface {
	Transform(ctx context.Context, localPath string, ver version.Version) ([]normalize.Record, *normalize.Report, error)
}

// Loader appends normalized records to the warehouse table.
type Loader interface {
	Append(ctx context.Context, records []normalize.Record, table string) (*warehouse.LoadResult, error)
}

// BuildTrigger runs the downstream transformation build.
type BuildTrigger interface {
	Run(ctx context.Context) (*build.Result, error)
}

// LakePublisher optionally keeps a parquet copy of the normalized load in
// object storage.
type LakePublisher interface {
	Publish(ctx context.Context, records []normalize.Record, ver version.Version, desc dataset.Descriptor) (string, error)
}

// Options carries the per-run caller inputs.
type Options struct {
	Descriptor dataset.Descriptor
	Table      string

	// SampleOnly short-circuits to a local sample artifact after
	// normalizing; Loader and BuildTrigger are never invoked.
	SampleOnly bool
	SamplePath string
}

// RunResult reports a finished run, successful or not.
type RunResult struct {
	RunID       string
	State       State
	FailedState State
	Version     version.Version
	Rows        int64
	Fallbacks   int
	SamplePath  string
	LakeKey     string
	Err         error
}

// Pipeline is the run orchestrator.
type Pipeline struct {
	fetcher    Fetcher
	stager     Stager
	normalizer Normalizer
	loader     Loader
	trigger    BuildTrigger
	lake       LakePublisher
	logger     *zap.Logger

	// sampleWriter is swappable for tests.
	sampleWriter func(path string, records []normalize.Record) error
}

// New assembles a pipeline. Loader and trigger may be nil for sample-only
// use; lake is optional.
func New(fetcher Fetcher, stager Stager, normalizer Normalizer, loader Loader, trigger BuildTrigger, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		fetcher:      fetcher,
		stager:       stager,
		normalizer:   normalizer,
		loader:       loader,
		trigger:      trigger,
		logger:       logger,
		sampleWriter: normalize.WriteSample,
	}
}

// WithLake attaches an optional lake publisher.
func (p *Pipeline) WithLake(lake LakePublisher) *Pipeline {
	p.lake = lake
	return p
}

// Run executes one ingestion run to completion. Any stage error transitions
// to the failed state and stops; nothing is retried here beyond the
// fetcher's internal attempt budget, and committed warehouse appends are
// never retracted.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*RunResult, error) {
	res := &RunResult{
		RunID: "run-" + uuid.New().String(),
		State: StateFetching,
	}
	log := p.logger.With(
		zap.String("runId", res.RunID),
		zap.String("dataset", opts.Descriptor.Name))

	fail := func(st State, err error) (*RunResult, error) {
		res.State = StateFailed
		res.FailedState = st
		res.Err = err
		log.Error("run failed",
			zap.String("stage", string(st)),
			zap.Error(err))
		return res, err
	}

	log.Info("run started", zap.String("state", string(StateFetching)))
	bulk, err := p.fetcher.Fetch(ctx, opts.Descriptor)
	if err != nil {
		return fail(StateFetching, err)
	}
	res.Version = bulk.Version
	log = log.With(zap.String("version", bulk.Version.String()))

	res.State = StateStaging
	log.Info("state transition", zap.String("state", string(StateStaging)))
	if _, err := p.stager.Write(ctx, bulk.Records, bulk.Version, opts.Descriptor); err != nil {
		return fail(StateStaging, err)
	}

	res.State = StateReading
	log.Info("state transition", zap.String("state", string(StateReading)))
	localPath, err := p.stager.ReadBack(ctx, bulk.Version, opts.Descriptor)
	if err != nil {
		return fail(StateReading, err)
	}

	res.State = StateNormalizing
	log.Info("state transition", zap.String("state", string(StateNormalizing)))
	records, report, err := p.normalizer.Transform(ctx, localPath, bulk.Version)
	if err != nil {
		return fail(StateNormalizing, err)
	}
	if report != nil {
		res.Fallbacks = report.ParseFallbacks
	}

	if opts.SampleOnly {
		res.State = StateSampleOnly
		log.Info("state transition", zap.String("state", string(StateSampleOnly)))
		if err := p.sampleWriter(opts.SamplePath, records); err != nil {
			return fail(StateSampleOnly, err)
		}
		res.SamplePath = opts.SamplePath
		res.Rows = int64(len(records))
		res.State = StateDone
		log.Info("run complete",
			zap.String("state", string(StateDone)),
			zap.String("samplePath", opts.SamplePath),
			zap.Int64("rows", res.Rows))
		return res, nil
	}

	res.State = StateLoading
	log.Info("state transition", zap.String("state", string(StateLoading)))
	loadRes, err := p.loader.Append(ctx, records, opts.Table)
	if err != nil {
		return fail(StateLoading, err)
	}
	res.Rows = loadRes.Rows

	if p.lake != nil {
		key, err := p.lake.Publish(ctx, records, bulk.Version, opts.Descriptor)
		if err != nil {
			// The warehouse append already committed; a lake copy failure
			// is reported but does not fail the run.
			log.Warn("lake publish failed", zap.Error(err))
		} else {
			res.LakeKey = key
		}
	}

	if p.trigger != nil {
		res.State = StateTriggering
		log.Info("state transition", zap.String("state", string(StateTriggering)))
		if _, err := p.trigger.Run(ctx); err != nil {
			return fail(StateTriggering, err)
		}
	}

	res.State = StateDone
	log.Info("run complete",
		zap.String("state", string(StateDone)),
		zap.Int64("rows", res.Rows))
	return res, nil
}
