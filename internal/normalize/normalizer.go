package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/manalake/cardsync/internal/dataset"
	"github.com/manalake/cardsync/internal/stage"
	"github.com/manalake/cardsync/pkg/version"
)

// Policy controls what happens when a list-literal fails to parse.
type Policy string

const (
	// PolicyLenient keeps the original unparsed string and counts the
	// fallback in the report.
	PolicyLenient Policy = "lenient"
	// PolicyStrict fails the run on the first unparseable literal.
	PolicyStrict Policy = "strict"
)

// DefaultCurrency is the price currency selected when none is configured.
const DefaultCurrency = "eur"

// Report summarizes a transform pass.
type Report struct {
	Rows           int
	ParseFallbacks int
	// MalformedDates counts non-empty released_at values that failed to
	// parse and were kept as the zero date.
	MalformedDates int
}

// Normalizer reshapes staged raw records into the fixed output schema.
type Normalizer struct {
	currency string
	policy   Policy
	logger   *zap.Logger
}

// NewNormalizer builds a Normalizer selecting the given price currency.
func NewNormalizer(currency string, policy Policy, logger *zap.Logger) *Normalizer {
	if currency == "" {
		currency = DefaultCurrency
	}
	if policy == "" {
		policy = PolicyLenient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{currency: strings.ToLower(currency), policy: policy, logger: logger}
}

// Transform loads the staged artifact at localPath and normalizes every row.
// Either the whole table normalizes or the stage fails; the only tolerated
// degradation is the literal-parse fallback under PolicyLenient.
func (n *Normalizer) Transform(ctx context.Context, localPath string, ver version.Version) ([]Record, *Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	raw, err := stage.DecodeFile(localPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load staged artifact %s: %w", localPath, err)
	}

	if missing := missingColumns(raw); len(missing) > 0 {
		return nil, nil, &Error{Code: CodeSchemaMissing, Columns: missing}
	}

	ingestionDate := ver.Date()
	report := &Report{}
	records := make([]Record, 0, len(raw))

	for _, row := range raw {
		rec := Record{
			CardID:        asString(row["id"]),
			Name:          asString(row["name"]),
			SetName:       asString(row["set_name"]),
			Artist:        asString(row["artist"]),
			IngestionDate: ingestionDate,
		}

		if released := asString(row["released_at"]); released != "" {
			ts, err := time.Parse("2006-01-02", released)
			if err != nil {
				report.MalformedDates++
			} else {
				rec.ReleasedAt = ts.UTC()
			}
		}

		var fellBack bool
		rec.Colors, fellBack = concatList(row["colors"])
		if fellBack {
			report.ParseFallbacks++
		}
		rec.ColorIdentity, fellBack = concatList(row["color_identity"])
		if fellBack {
			report.ParseFallbacks++
		}

		rec.Price = n.selectPrice(row["prices"])
		records = append(records, rec)
	}

	if report.ParseFallbacks > 0 {
		if n.policy == PolicyStrict {
			return nil, nil, &Error{
				Code: CodeLiteralParse,
				Err:  fmt.Errorf("%d list literals failed to parse", report.ParseFallbacks),
			}
		}
		n.logger.Warn("list literals kept unparsed",
			zap.Int("fallbacks", report.ParseFallbacks),
			zap.String("version", ver.String()))
	}
	if report.MalformedDates > 0 {
		n.logger.Warn("release dates dropped as malformed",
			zap.Int("rows", report.MalformedDates),
			zap.String("version", ver.String()))
	}

	report.Rows = len(records)
	n.logger.Info("normalized staged table",
		zap.Int("rows", report.Rows),
		zap.String("currency", n.currency),
		zap.String("ingestionDate", ingestionDate.Format("2006-01-02")))

	return records, report, nil
}

// missingColumns reports required source columns absent from the whole
// table. A column counts as present when any record carries the key.
func missingColumns(raw []dataset.Record) []string {
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(requiredColumns))
	for _, row := range raw {
		for _, col := range requiredColumns {
			if _, ok := row[col]; ok {
				seen[col] = true
			}
		}
	}
	var missing []string
	for _, col := range requiredColumns {
		if !seen[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

// selectPrice picks the configured currency out of the nested price mapping
// and casts it to a float. Absent or unparseable prices become nil, never an
// error.
func (n *Normalizer) selectPrice(value any) *float64 {
	var prices map[string]any
	switch v := value.(type) {
	case map[string]any:
		prices = v
	case string:
		// Some staged forms carry the mapping JSON-encoded.
		if err := json.Unmarshal([]byte(v), &prices); err != nil {
			return nil
		}
	default:
		return nil
	}

	raw, ok := prices[n.currency]
	if !ok {
		return nil
	}

	var price float64
	switch v := raw.(type) {
	case float64:
		price = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		price = parsed
	default:
		return nil
	}

	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return nil
	}
	return &price
}

func asString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
