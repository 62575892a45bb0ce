package version

import (
	"testing"
	"time"
)

func TestToVersion_DateGranularity(t *testing.T) {
	codec := NewCodec(GranularityDate)

	ver, err := codec.ToVersion("2024-03-01T09:00:00.000+00:00")
	if err != nil {
		t.Fatalf("ToVersion failed: %v", err)
	}
	if ver.String() != "2024-03-01" {
		t.Errorf("Expected version 2024-03-01, got %s", ver.String())
	}

	want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if !ver.Date().Equal(want) {
		t.Errorf("Expected date %v, got %v", want, ver.Date())
	}
}

func TestToVersion_SameDayIsIdempotent(t *testing.T) {
	codec := NewCodec(GranularityDate)

	a, err := codec.ToVersion("2024-03-01T09:00:00+00:00")
	if err != nil {
		t.Fatalf("ToVersion failed: %v", err)
	}
	b, err := codec.ToVersion("2024-03-01T23:59:59+00:00")
	if err != nil {
		t.Fatalf("ToVersion failed: %v", err)
	}
	if a.String() != b.String() {
		t.Errorf("Same-day timestamps produced different versions: %s vs %s", a.String(), b.String())
	}
}

func TestToVersion_NormalizesToUTC(t *testing.T) {
	codec := NewCodec(GranularityDate)

	// 01:00 at +03:00 is still the previous day at UTC.
	ver, err := codec.ToVersion("2024-03-02T01:00:00+03:00")
	if err != nil {
		t.Fatalf("ToVersion failed: %v", err)
	}
	if ver.String() != "2024-03-01" {
		t.Errorf("Expected UTC-normalized version 2024-03-01, got %s", ver.String())
	}
}

func TestToVersion_HourGranularity(t *testing.T) {
	codec := NewCodec(GranularityHour)

	ver, err := codec.ToVersion("2024-03-01T10:30:45+00:00")
	if err != nil {
		t.Fatalf("ToVersion failed: %v", err)
	}
	if ver.String() != "2024-03-01T10" {
		t.Errorf("Expected version 2024-03-01T10, got %s", ver.String())
	}
}

func TestToVersion_Malformed(t *testing.T) {
	codec := NewCodec(GranularityDate)

	for _, bad := range []string{"", "yesterday", "2024-03-01", "2024-13-01T00:00:00Z"} {
		if _, err := codec.ToVersion(bad); err == nil {
			t.Errorf("Expected error for timestamp %q", bad)
		}
	}
}

func TestNewCodec_DefaultsToDate(t *testing.T) {
	codec := NewCodec("")
	if codec.Granularity != GranularityDate {
		t.Errorf("Expected date granularity default, got %s", codec.Granularity)
	}
}

func TestParse_Roundtrip(t *testing.T) {
	codec := NewCodec(GranularityDate)

	original, err := codec.ToVersion("2024-03-01T09:00:00Z")
	if err != nil {
		t.Fatalf("ToVersion failed: %v", err)
	}

	parsed, err := Parse(original.String())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed.String() != original.String() {
		t.Errorf("Roundtrip changed version: %s vs %s", parsed.String(), original.String())
	}
	if !parsed.Date().Equal(original.Date()) {
		t.Errorf("Roundtrip changed date: %v vs %v", parsed.Date(), original.Date())
	}
}

func TestParse_Malformed(t *testing.T) {
	if _, err := Parse("not-a-version"); err == nil {
		t.Error("Expected error for malformed version string")
	}
}

func TestVersion_IsZero(t *testing.T) {
	var zero Version
	if !zero.IsZero() {
		t.Error("Expected zero value to report IsZero")
	}

	codec := NewCodec(GranularityDate)
	ver, err := codec.ToVersion("2024-03-01T00:00:00Z")
	if err != nil {
		t.Fatalf("ToVersion failed: %v", err)
	}
	if ver.IsZero() {
		t.Error("Derived version should not report IsZero")
	}
}
