// Package normalize reshapes raw catalog records into the fixed warehouse
// schema: typed columns, parsed dates, a single selected currency, and the
// ingestion date derived from the dataset version.
package normalize

import (
	"time"

	"github.com/manalake/cardsync/internal/dataset"
)

// Record is one normalized output row. Every row has exactly these fields;
// Price is either a finite non-negative number or nil, never a raw nested
// structure. ReleasedAt is the zero time when the source omitted it.
type Record struct {
	CardID        string
	Name          string
	ReleasedAt    time.Time
	Colors        string
	ColorIdentity string
	SetName       string
	Artist        string
	Price         *float64
	IngestionDate time.Time
}

// requiredColumns are the source columns the transform cannot run without.
var requiredColumns = []string{
	"id",
	"name",
	"released_at",
	"colors",
	"color_identity",
	"set_name",
	"artist",
	"prices",
}

// Schema returns the fixed output column set for artifact writers.
func Schema() *dataset.Schema {
	return &dataset.Schema{
		Fields: []*dataset.FieldDefinition{
			{Name: "card_id", DataType: "STRING"},
			{Name: "name", DataType: "STRING", Nullable: true},
			{Name: "released_at", DataType: "DATE", Nullable: true},
			{Name: "colors", DataType: "STRING", Nullable: true},
			{Name: "color_identity", DataType: "STRING", Nullable: true},
			{Name: "set_name", DataType: "STRING", Nullable: true},
			{Name: "artist", DataType: "STRING", Nullable: true},
			{Name: "price", DataType: "DOUBLE", Nullable: true},
			{Name: "ingestion_date", DataType: "DATE"},
		},
	}
}

// asRow flattens a normalized record into artifact-writer form.
func (r Record) asRow() map[string]any {
	row := map[string]any{
		"card_id":        r.CardID,
		"name":           r.Name,
		"colors":         r.Colors,
		"color_identity": r.ColorIdentity,
		"set_name":       r.SetName,
		"artist":         r.Artist,
		"ingestion_date": r.IngestionDate.Format("2006-01-02"),
	}
	if !r.ReleasedAt.IsZero() {
		row["released_at"] = r.ReleasedAt.Format("2006-01-02")
	} else {
		row["released_at"] = nil
	}
	if r.Price != nil {
		row["price"] = *r.Price
	} else {
		row["price"] = nil
	}
	return row
}
