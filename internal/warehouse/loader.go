// Package warehouse appends normalized records to the analytical table.
// Writes are append-only in bounded chunks: existing rows are never updated
// or truncated, and a mid-batch failure leaves the already-committed prefix
// in place (the error reports how far the load got so a caller can resume).
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/manalake/cardsync/internal/normalize"
)

// DefaultChunkSize is the number of rows committed per chunk.
const DefaultChunkSize = 10000

// maxInsertRows bounds one INSERT statement: lib/pq caps prepared-statement
// parameters at 65535, 9 columns per row. Chunks larger than this commit in
// one transaction split across several statements.
const maxInsertRows = 7000

var columns = []string{
	"card_id",
	"name",
	"released_at",
	"colors",
	"color_identity",
	"set_name",
	"artist",
	"price",
	"ingestion_date",
}

// LoadResult reports a completed append.
type LoadResult struct {
	Rows   int64
	Chunks int
}

// Loader writes normalized records to a warehouse table over database/sql.
type Loader struct {
	db        *sql.DB
	chunkSize int
	logger    *zap.Logger
}

// NewLoader opens a PostgreSQL connection pool for the given DSN.
func NewLoader(dsn string, chunkSize int, logger *zap.Logger) (*Loader, error) {
	if dsn == "" {
		return nil, fmt.Errorf("warehouse DSN is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}

	// Configure pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return NewLoaderWithDB(db, chunkSize, logger), nil
}

// NewLoaderWithDB wraps an existing handle; used by tests.
func NewLoaderWithDB(db *sql.DB, chunkSize int, logger *zap.Logger) *Loader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{db: db, chunkSize: chunkSize, logger: logger}
}

// Close releases database resources.
func (l *Loader) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Ping verifies connectivity.
func (l *Loader) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return l.db.PingContext(ctx)
}

// EnsureTable creates the fixed-schema target table when it does not exist.
func (l *Loader) EnsureTable(ctx context.Context, table string) error {
	stmt := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			card_id        TEXT NOT NULL,
			name           TEXT,
			released_at    DATE,
			colors         TEXT,
			color_identity TEXT,
			set_name       TEXT,
			artist         TEXT,
			price          DOUBLE PRECISION,
			ingestion_date DATE NOT NULL
		)`, quoteTable(table))
	if _, err := l.db.ExecContext(ctx, stmt); err != nil {
		return wrapError(0, 0, fmt.Errorf("ensure table %s: %w", table, err))
	}
	return nil
}

// Append writes all records to the table in append mode.
func (l *Loader) Append(ctx context.Context, records []normalize.Record, table string) (*LoadResult, error) {
	return l.AppendFrom(ctx, records, table, 0)
}

// AppendFrom resumes an append starting at the given chunk index. After a
// partial failure the returned Error carries ChunksCommitted; passing that
// value here skips the already-durable prefix instead of re-appending it.
func (l *Loader) AppendFrom(ctx context.Context, records []normalize.Record, table string, fromChunk int) (*LoadResult, error) {
	if table == "" {
		return nil, wrapError(0, 0, fmt.Errorf("destination table is required"))
	}
	if len(records) == 0 {
		return &LoadResult{}, nil
	}

	chunks := chunkRanges(len(records), l.chunkSize)
	if fromChunk < 0 || fromChunk > len(chunks) {
		return nil, wrapError(0, 0, fmt.Errorf("resume chunk %d out of range", fromChunk))
	}

	var rows int64
	committed := fromChunk
	for idx := fromChunk; idx < len(chunks); idx++ {
		lo, hi := chunks[idx][0], chunks[idx][1]
		if err := l.appendChunk(ctx, records[lo:hi], table); err != nil {
			return nil, wrapError(committed, rows, fmt.Errorf("append chunk %d: %w", idx, err))
		}
		rows += int64(hi - lo)
		committed = idx + 1
		l.logger.Debug("chunk appended",
			zap.String("table", table),
			zap.Int("chunk", idx),
			zap.Int("rows", hi-lo))
	}

	l.logger.Info("append complete",
		zap.String("table", table),
		zap.Int64("rows", rows),
		zap.Int("chunks", len(chunks)-fromChunk))

	return &LoadResult{Rows: rows, Chunks: len(chunks) - fromChunk}, nil
}

// appendChunk commits one chunk atomically, splitting it across INSERT
// statements that stay under the parameter cap.
func (l *Loader) appendChunk(ctx context.Context, records []normalize.Record, table string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, r := range chunkRanges(len(records), maxInsertRows) {
		stmt, args := buildInsert(table, records[r[0]:r[1]])
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// chunkRanges splits n records into [lo, hi) index pairs of at most size.
func chunkRanges(n, size int) [][2]int {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var out [][2]int
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		out = append(out, [2]int{lo, hi})
	}
	return out
}

// buildInsert renders one multi-row append statement for a chunk.
func buildInsert(table string, records []normalize.Record) (string, []any) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(quoteTable(table))
	sb.WriteString(" (")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(records)*len(columns))
	for i, rec := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := range columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*len(columns)+j+1)
		}
		sb.WriteString(")")

		var releasedAt any
		if !rec.ReleasedAt.IsZero() {
			releasedAt = rec.ReleasedAt
		}
		var price any
		if rec.Price != nil {
			price = *rec.Price
		}
		args = append(args,
			rec.CardID,
			rec.Name,
			releasedAt,
			rec.Colors,
			rec.ColorIdentity,
			rec.SetName,
			rec.Artist,
			price,
			rec.IngestionDate,
		)
	}
	return sb.String(), args
}

// quoteTable quotes a possibly schema-qualified table name.
func quoteTable(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}
