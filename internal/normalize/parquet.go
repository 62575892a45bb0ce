package normalize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	writerfile "github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"go.uber.org/zap"

	"github.com/manalake/cardsync/internal/connector/minio"
	"github.com/manalake/cardsync/internal/dataset"
	"github.com/manalake/cardsync/pkg/version"
)

// parquetBytes encodes normalized records as a single SNAPPY-compressed
// parquet file.
func parquetBytes(records []Record) ([]byte, error) {
	buf := &bytes.Buffer{}
	pfw := writerfile.NewWriterFile(buf)
	schemaDef := buildParquetSchema(Schema())
	pw, err := writer.NewJSONWriter(schemaDef, pfw, 4)
	if err != nil {
		return nil, fmt.Errorf("open parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, rec := range records {
		row, err := json.Marshal(rec.asRow())
		if err != nil {
			_ = pw.WriteStop()
			_ = pfw.Close()
			return nil, fmt.Errorf("encode parquet row: %w", err)
		}
		if err := pw.Write(string(row)); err != nil {
			_ = pw.WriteStop()
			_ = pfw.Close()
			return nil, fmt.Errorf("write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = pfw.Close()
		return nil, fmt.Errorf("finalize parquet: %w", err)
	}
	_ = pfw.Close()
	return buf.Bytes(), nil
}

// WriteSample writes the normalized set to a local parquet artifact. Used by
// the sample-only run mode for first-time warehouse-table bootstrap.
func WriteSample(path string, records []Record) error {
	data, err := parquetBytes(records)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create sample dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write sample artifact: %w", err)
	}
	return nil
}

// LakePublisher keeps a parquet copy of each normalized load in object
// storage under a date-partitioned layout.
type LakePublisher struct {
	Store  minio.ObjectStore
	Bucket string
	Prefix string
	Logger *zap.Logger
}

// Publish writes the normalized records as a parquet object and returns the
// object key.
func (p *LakePublisher) Publish(ctx context.Context, records []Record, ver version.Version, desc dataset.Descriptor) (string, error) {
	if p.Store == nil {
		return "", fmt.Errorf("object store is required")
	}
	prefix := p.Prefix
	if prefix == "" {
		prefix = "lake"
	}

	data, err := parquetBytes(records)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s/%s/dt=%s/part-%06d.parquet",
		prefix, desc.Name, ver.Date().Format("2006-01-02"), 0)
	if err := p.Store.PutObject(ctx, p.Bucket, key, data); err != nil {
		return "", err
	}

	if p.Logger != nil {
		p.Logger.Info("published lake artifact",
			zap.String("dataset", desc.Name),
			zap.String("key", key),
			zap.Int("rows", len(records)))
	}
	return key, nil
}

func buildParquetSchema(schema *dataset.Schema) string {
	fields := make([]map[string]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		fieldType := parquetPhysicalType(f.DataType)
		fields = append(fields, map[string]string{
			"Tag": fmt.Sprintf("name=%s, type=%s, repetitiontype=OPTIONAL", f.Name, fieldType),
		})
	}
	out := map[string]any{
		"Tag":    "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": fields,
	}
	b, _ := json.Marshal(out)
	return string(b)
}

func parquetPhysicalType(dataType string) string {
	switch dataType {
	case "BOOLEAN":
		return "BOOLEAN"
	case "INTEGER", "INT", "BIGINT":
		return "INT64"
	case "FLOAT", "DOUBLE", "NUMBER", "NUMERIC", "DECIMAL":
		return "DOUBLE"
	default:
		return "BYTE_ARRAY"
	}
}
