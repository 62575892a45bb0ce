package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/manalake/cardsync/internal/build"
	"github.com/manalake/cardsync/internal/connector/scryfall"
	"github.com/manalake/cardsync/internal/dataset"
	"github.com/manalake/cardsync/internal/normalize"
	"github.com/manalake/cardsync/internal/stage"
	"github.com/manalake/cardsync/internal/warehouse"
	"github.com/manalake/cardsync/pkg/version"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeFetcher struct {
	result *scryfall.BulkResult
	err    error
	calls  int
}

func (f *fakeFetcher) Fetch(ctx context.Context, desc dataset.Descriptor) (*scryfall.BulkResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeStager struct {
	writeErr    error
	readErr     error
	localPath   string
	writeCalls  int
	readCalls   int
	lastVersion version.Version
}

func (s *fakeStager) Write(ctx context.Context, records []dataset.Record, ver version.Version, desc dataset.Descriptor) (*stage.Artifact, error) {
	s.writeCalls++
	s.lastVersion = ver
	if s.writeErr != nil {
		return nil, s.writeErr
	}
	return &stage.Artifact{Key: "raw/key", Records: len(records)}, nil
}

func (s *fakeStager) ReadBack(ctx context.Context, ver version.Version, desc dataset.Descriptor) (string, error) {
	s.readCalls++
	if s.readErr != nil {
		return "", s.readErr
	}
	return s.localPath, nil
}

type fakeNormalizer struct {
	records []normalize.Record
	report  *normalize.Report
	err     error
	calls   int
}

func (n *fakeNormalizer) Transform(ctx context.Context, localPath string, ver version.Version) ([]normalize.Record, *normalize.Report, error) {
	n.calls++
	if n.err != nil {
		return nil, nil, n.err
	}
	return n.records, n.report, nil
}

type fakeLoader struct {
	err   error
	calls int
	table string
}

func (l *fakeLoader) Append(ctx context.Context, records []normalize.Record, table string) (*warehouse.LoadResult, error) {
	l.calls++
	l.table = table
	if l.err != nil {
		return nil, l.err
	}
	return &warehouse.LoadResult{Rows: int64(len(records)), Chunks: 1}, nil
}

type fakeTrigger struct {
	err   error
	calls int
}

func (t *fakeTrigger) Run(ctx context.Context) (*build.Result, error) {
	t.calls++
	if t.err != nil {
		return nil, t.err
	}
	return &build.Result{ExitCode: 0}, nil
}

type fakeLake struct {
	err   error
	calls int
}

func (l *fakeLake) Publish(ctx context.Context, records []normalize.Record, ver version.Version, desc dataset.Descriptor) (string, error) {
	l.calls++
	if l.err != nil {
		return "", l.err
	}
	return "lake/oracle_cards/dt=2024-03-01/part-000000.parquet", nil
}

// =============================================================================
// HELPERS
// =============================================================================

func testVersion(t *testing.T) version.Version {
	t.Helper()
	ver, err := version.NewCodec(version.GranularityDate).ToVersion("2024-03-01T09:00:00Z")
	if err != nil {
		t.Fatalf("ToVersion failed: %v", err)
	}
	return ver
}

func normalized(n int) []normalize.Record {
	out := make([]normalize.Record, n)
	for i := range out {
		out[i] = normalize.Record{
			CardID:        "c" + string(rune('1'+i)),
			IngestionDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		}
	}
	return out
}

type fixture struct {
	fetcher    *fakeFetcher
	stager     *fakeStager
	normalizer *fakeNormalizer
	loader     *fakeLoader
	trigger    *fakeTrigger
}

func newFixture(t *testing.T) *fixture {
	ver := testVersion(t)
	return &fixture{
		fetcher: &fakeFetcher{result: &scryfall.BulkResult{
			Records: []dataset.Record{{"id": "c1"}, {"id": "c2"}},
			Version: ver,
		}},
		stager:     &fakeStager{localPath: "/tmp/staged.jsonl.gz"},
		normalizer: &fakeNormalizer{records: normalized(2), report: &normalize.Report{Rows: 2}},
		loader:     &fakeLoader{},
		trigger:    &fakeTrigger{},
	}
}

func (f *fixture) pipeline() *Pipeline {
	return New(f.fetcher, f.stager, f.normalizer, f.loader, f.trigger, nil)
}

func defaultOptions() Options {
	return Options{
		Descriptor: dataset.Descriptor{Name: "oracle_cards", Endpoint: "https://example.test/bulk"},
		Table:      "mtg_card_data.default_cards",
	}
}

// =============================================================================
// TESTS
// =============================================================================

func TestRun_FullPipeline(t *testing.T) {
	f := newFixture(t)
	res, err := f.pipeline().Run(context.Background(), defaultOptions())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.State != StateDone {
		t.Errorf("Expected state %s, got %s", StateDone, res.State)
	}
	if res.Rows != 2 {
		t.Errorf("Expected 2 rows loaded, got %d", res.Rows)
	}
	if res.Version.String() != "2024-03-01" {
		t.Errorf("Expected version 2024-03-01, got %s", res.Version.String())
	}
	if res.RunID == "" {
		t.Error("Expected a run ID")
	}

	if f.stager.writeCalls != 1 || f.stager.readCalls != 1 {
		t.Errorf("Expected one stage write and one read-back, got %d/%d",
			f.stager.writeCalls, f.stager.readCalls)
	}
	if f.loader.calls != 1 {
		t.Errorf("Expected one append, got %d", f.loader.calls)
	}
	if f.loader.table != "mtg_card_data.default_cards" {
		t.Errorf("Loader got wrong table %q", f.loader.table)
	}
	if f.trigger.calls != 1 {
		t.Errorf("Expected one build trigger, got %d", f.trigger.calls)
	}
}

func TestRun_StagerGetsFetchedVersion(t *testing.T) {
	f := newFixture(t)
	if _, err := f.pipeline().Run(context.Background(), defaultOptions()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if f.stager.lastVersion.String() != "2024-03-01" {
		t.Errorf("Stager received version %s", f.stager.lastVersion.String())
	}
}

func TestRun_SampleOnlySkipsLoaderAndTrigger(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline()

	var sampledPath string
	var sampledRows int
	p.sampleWriter = func(path string, records []normalize.Record) error {
		sampledPath = path
		sampledRows = len(records)
		return nil
	}

	opts := defaultOptions()
	opts.SampleOnly = true
	opts.SamplePath = "pq/sample_for_warehouse.parquet"

	res, err := p.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.State != StateDone {
		t.Errorf("Expected state %s, got %s", StateDone, res.State)
	}
	if res.SamplePath != opts.SamplePath {
		t.Errorf("Expected sample path reported, got %q", res.SamplePath)
	}
	if sampledPath != opts.SamplePath || sampledRows != 2 {
		t.Errorf("Sample writer got (%q, %d)", sampledPath, sampledRows)
	}
	if f.loader.calls != 0 {
		t.Errorf("Loader must not run in sample mode, got %d calls", f.loader.calls)
	}
	if f.trigger.calls != 0 {
		t.Errorf("Trigger must not run in sample mode, got %d calls", f.trigger.calls)
	}
}

func TestRun_FetchFailureStopsEverything(t *testing.T) {
	f := newFixture(t)
	f.fetcher.err = errors.New("source unreachable")

	res, err := f.pipeline().Run(context.Background(), defaultOptions())
	if err == nil {
		t.Fatal("Expected run to fail")
	}
	if res.State != StateFailed || res.FailedState != StateFetching {
		t.Errorf("Expected failure in %s, got %s/%s", StateFetching, res.State, res.FailedState)
	}
	if f.stager.writeCalls != 0 || f.loader.calls != 0 || f.trigger.calls != 0 {
		t.Error("Downstream stages ran after a fetch failure")
	}
}

func TestRun_StageWriteFailure(t *testing.T) {
	f := newFixture(t)
	f.stager.writeErr = errors.New("bucket gone")

	res, err := f.pipeline().Run(context.Background(), defaultOptions())
	if err == nil {
		t.Fatal("Expected run to fail")
	}
	if res.FailedState != StateStaging {
		t.Errorf("Expected failure in %s, got %s", StateStaging, res.FailedState)
	}
	if f.stager.readCalls != 0 {
		t.Error("Read-back ran after a failed write")
	}
}

func TestRun_ReadBackFailure(t *testing.T) {
	f := newFixture(t)
	f.stager.readErr = errors.New("object missing")

	res, err := f.pipeline().Run(context.Background(), defaultOptions())
	if err == nil {
		t.Fatal("Expected run to fail")
	}
	if res.FailedState != StateReading {
		t.Errorf("Expected failure in %s, got %s", StateReading, res.FailedState)
	}
	if f.normalizer.calls != 0 {
		t.Error("Normalizer ran after a failed read-back")
	}
}

func TestRun_LoadFailure(t *testing.T) {
	f := newFixture(t)
	f.loader.err = errors.New("connection reset")

	res, err := f.pipeline().Run(context.Background(), defaultOptions())
	if err == nil {
		t.Fatal("Expected run to fail")
	}
	if res.FailedState != StateLoading {
		t.Errorf("Expected failure in %s, got %s", StateLoading, res.FailedState)
	}
	if f.trigger.calls != 0 {
		t.Error("Trigger ran after a failed load")
	}
}

func TestRun_TriggerFailureFailsRun(t *testing.T) {
	f := newFixture(t)
	f.trigger.err = errors.New("dbt exited 2")

	res, err := f.pipeline().Run(context.Background(), defaultOptions())
	if err == nil {
		t.Fatal("Expected run to fail")
	}
	if res.FailedState != StateTriggering {
		t.Errorf("Expected failure in %s, got %s", StateTriggering, res.FailedState)
	}
	// The append committed before the trigger ran.
	if res.Rows != 2 {
		t.Errorf("Expected committed rows reported, got %d", res.Rows)
	}
}

func TestRun_NilTriggerIsSkipped(t *testing.T) {
	f := newFixture(t)
	p := New(f.fetcher, f.stager, f.normalizer, f.loader, nil, nil)

	res, err := p.Run(context.Background(), defaultOptions())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.State != StateDone {
		t.Errorf("Expected state %s, got %s", StateDone, res.State)
	}
}

func TestRun_LakePublishFailureDoesNotFailRun(t *testing.T) {
	f := newFixture(t)
	lake := &fakeLake{err: errors.New("lake write refused")}
	p := f.pipeline().WithLake(lake)

	res, err := p.Run(context.Background(), defaultOptions())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if lake.calls != 1 {
		t.Errorf("Expected lake publish attempt, got %d", lake.calls)
	}
	if res.LakeKey != "" {
		t.Errorf("Expected no lake key on publish failure, got %q", res.LakeKey)
	}
	if f.trigger.calls != 1 {
		t.Error("Trigger should still run after a lake publish failure")
	}
}

func TestRun_LakePublishReportsKey(t *testing.T) {
	f := newFixture(t)
	lake := &fakeLake{}
	p := f.pipeline().WithLake(lake)

	res, err := p.Run(context.Background(), defaultOptions())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.LakeKey == "" {
		t.Error("Expected the lake key reported on success")
	}
}

func TestRun_FallbacksReported(t *testing.T) {
	f := newFixture(t)
	f.normalizer.report = &normalize.Report{Rows: 2, ParseFallbacks: 3}

	res, err := f.pipeline().Run(context.Background(), defaultOptions())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Fallbacks != 3 {
		t.Errorf("Expected 3 fallbacks reported, got %d", res.Fallbacks)
	}
}
