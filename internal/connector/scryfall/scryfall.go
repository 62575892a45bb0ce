// Package scryfall implements the bulk-catalog source connector. A fetch is
// two requests: a metadata probe that reports the download location and the
// source update timestamp, then the bulk payload download itself. Either the
// complete table and its version come back, or an error does.
package scryfall

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	connhttp "github.com/manalake/cardsync/internal/connector/http"
	"github.com/manalake/cardsync/internal/dataset"
	"github.com/manalake/cardsync/pkg/version"
)

// BulkMetadata is the source API's bulk-data descriptor.
type BulkMetadata struct {
	DownloadURI string `json:"download_uri"`
	UpdatedAt   string `json:"updated_at"`
}

// BulkResult is a completed fetch: the full raw table plus its version.
type BulkResult struct {
	Records   []dataset.Record
	Version   version.Version
	UpdatedAt string
}

// Fetcher retrieves bulk dataset payloads with retry on transient failures.
type Fetcher struct {
	client *connhttp.Client
	codec  *version.Codec
	logger *zap.Logger
}

// NewFetcher builds a Fetcher. A nil client config gets the shared defaults
// (3-attempt budget, rate limited).
func NewFetcher(cfg *connhttp.ClientConfig, codec *version.Codec, logger *zap.Logger) *Fetcher {
	if codec == nil {
		codec = version.NewCodec(version.GranularityDate)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client: connhttp.NewClient(cfg),
		codec:  codec,
		logger: logger,
	}
}

// Fetch retrieves the dataset metadata and bulk payload. No partial success:
// the raw table is either complete or absent.
func (f *Fetcher) Fetch(ctx context.Context, desc dataset.Descriptor) (*BulkResult, error) {
	if desc.Endpoint == "" {
		return nil, wrapError(0, fmt.Errorf("descriptor endpoint is required"))
	}

	meta, err := f.fetchMetadata(ctx, desc)
	if err != nil {
		return nil, err
	}

	ver, err := f.codec.ToVersion(meta.UpdatedAt)
	if err != nil {
		return nil, wrapError(0, err)
	}

	f.logger.Info("bulk metadata resolved",
		zap.String("dataset", desc.Name),
		zap.String("version", ver.String()),
		zap.String("updatedAt", meta.UpdatedAt))

	records, err := f.fetchPayload(ctx, meta.DownloadURI)
	if err != nil {
		return nil, err
	}

	f.logger.Info("bulk payload fetched",
		zap.String("dataset", desc.Name),
		zap.Int("records", len(records)))

	return &BulkResult{
		Records:   records,
		Version:   ver,
		UpdatedAt: meta.UpdatedAt,
	}, nil
}

func (f *Fetcher) fetchMetadata(ctx context.Context, desc dataset.Descriptor) (*BulkMetadata, error) {
	resp, err := f.client.Get(ctx, desc.Endpoint, nil)
	if err != nil {
		return nil, classifyFetchError(err)
	}
	if !resp.IsSuccess() {
		return nil, wrapError(resp.StatusCode, fmt.Errorf("metadata request for %s", desc.Name))
	}

	var meta BulkMetadata
	if err := resp.JSON(&meta); err != nil {
		return nil, wrapError(resp.StatusCode, fmt.Errorf("decode metadata: %w", err))
	}
	if meta.DownloadURI == "" || meta.UpdatedAt == "" {
		return nil, wrapError(resp.StatusCode, fmt.Errorf("metadata missing download_uri or updated_at"))
	}
	return &meta, nil
}

func (f *Fetcher) fetchPayload(ctx context.Context, downloadURI string) ([]dataset.Record, error) {
	resp, err := f.client.Get(ctx, downloadURI, nil)
	if err != nil {
		return nil, classifyFetchError(err)
	}
	if !resp.IsSuccess() {
		return nil, wrapError(resp.StatusCode, fmt.Errorf("bulk download"))
	}

	var records []dataset.Record
	if err := resp.JSON(&records); err != nil {
		return nil, wrapError(resp.StatusCode, fmt.Errorf("decode bulk payload: %w", err))
	}
	return records, nil
}
