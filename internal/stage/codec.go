package stage

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"

	"github.com/manalake/cardsync/internal/dataset"
)

// encodeRecords writes records as JSONL, optionally gzip-compressed. The
// encoding is deterministic for a given record sequence, which is what makes
// repeated stage writes byte-stable.
func encodeRecords(w io.Writer, records []dataset.Record, compress bool) error {
	var writer io.Writer = w
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(w)
		writer = gz
	}
	enc := json.NewEncoder(writer)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			if gz != nil {
				_ = gz.Close()
			}
			return err
		}
	}
	// Close once to capture flush errors.
	if gz != nil {
		if err := gz.Close(); err != nil {
			return err
		}
	}
	return nil
}

// decodeRecords reads JSONL records, transparently handling gzip input.
func decodeRecords(r io.Reader) ([]dataset.Record, error) {
	br := bufio.NewReader(r)
	var reader io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}
	dec := json.NewDecoder(reader)
	var records []dataset.Record
	for dec.More() {
		var rec dataset.Record
		if err := dec.Decode(&rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// DecodeFile loads a staged artifact from a local read-back path.
func DecodeFile(path string) ([]dataset.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeRecords(f)
}
