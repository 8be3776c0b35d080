package importer

import (
	"strings"
	"testing"
	"time"
)

func TestValidFilename(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"2025-01-06report.json", true},
		{"2024-12-30report.json", true},
		{"report.json", false},
		{"2025-01-06report.JSON", false},
		{"2025-1-6report.json", false},
		{"2025-01-06report.json.bak", false},
		{"notes-2025-01-06report.json", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidFilename(tc.name); got != tc.valid {
			t.Errorf("ValidFilename(%q) = %v, want %v", tc.name, got, tc.valid)
		}
	}
}

func TestFilenameDate(t *testing.T) {
	date, err := FilenameDate("2025-01-06report.json")
	if err != nil {
		t.Fatal(err)
	}
	if date.Year() != 2025 || date.Month() != time.January || date.Day() != 6 {
		t.Fatalf("unexpected date %v", date)
	}

	if _, err := FilenameDate("picks.json"); err == nil {
		t.Fatal("expected error for non-matching filename")
	}
}

func TestPeriodKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2025-01-06T00:00:00Z", "2025-W02"},
		{"2025-01-12T23:59:59Z", "2025-W02"},
		// ISO week years differ from calendar years at the boundary.
		{"2024-12-30T12:00:00Z", "2025-W01"},
		{"2027-01-01T12:00:00Z", "2026-W53"},
	}
	for _, tc := range cases {
		ts, err := time.Parse(time.RFC3339, tc.in)
		if err != nil {
			t.Fatal(err)
		}
		if got := PeriodKey(ts); got != tc.want {
			t.Errorf("PeriodKey(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func validPayload() *ReportPayload {
	return &ReportPayload{
		SchemaVersion: "v1",
		Title:         "Weekly Alpha Picks",
		PublishedAt:   time.Date(2025, 1, 8, 13, 0, 0, 0, time.UTC),
		Version:       "v1",
		Picks: []PickPayload{
			{Ticker: "AAPL", Exchange: "NASDAQ", Side: "long", TargetChangePct: 12.5},
			{Ticker: "MSFT", Exchange: "NASDAQ", Side: "short", TargetChangePct: -4},
		},
	}
}

func TestValidateAccepts(t *testing.T) {
	v := NewValidator(DefaultRules())
	if err := v.Validate("2025-01-06report.json", validPayload()); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	v := NewValidator(DefaultRules())

	cases := []struct {
		name    string
		mutate  func(p *ReportPayload)
		wantMsg string
	}{
		{
			name:    "missing title",
			mutate:  func(p *ReportPayload) { p.Title = "  " },
			wantMsg: "title required",
		},
		{
			name:    "missing published_at",
			mutate:  func(p *ReportPayload) { p.PublishedAt = time.Time{} },
			wantMsg: "published_at required",
		},
		{
			name:    "missing version",
			mutate:  func(p *ReportPayload) { p.Version = "" },
			wantMsg: "version required",
		},
		{
			name:    "bad side",
			mutate:  func(p *ReportPayload) { p.Picks[0].Side = "hold" },
			wantMsg: "side must be",
		},
		{
			name:    "target change out of bounds",
			mutate:  func(p *ReportPayload) { p.Picks[0].TargetChangePct = 1500 },
			wantMsg: "target_change_pct",
		},
		{
			name:    "unknown exchange",
			mutate:  func(p *ReportPayload) { p.Picks[0].Exchange = "MOEX" },
			wantMsg: "not supported",
		},
		{
			name: "duplicate ticker and side",
			mutate: func(p *ReportPayload) {
				p.Picks[1] = p.Picks[0]
				p.Picks[1].Ticker = "aapl"
			},
			wantMsg: "duplicate pick",
		},
		{
			name:    "publish week mismatch",
			mutate:  func(p *ReportPayload) { p.PublishedAt = time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC) },
			wantMsg: "publish period",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := validPayload()
			tc.mutate(payload)
			err := v.Validate("2025-01-06report.json", payload)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !IsValidationError(err) {
				t.Fatalf("error %v is not a validation error", err)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("error %q does not mention %q", err.Error(), tc.wantMsg)
			}
		})
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Weekly Alpha Picks", "weekly-alpha-picks"},
		{"  Q1: Tech & Energy!  ", "q1-tech-energy"},
		{"already-slugged", "already-slugged"},
	}
	for _, tc := range cases {
		if got := slugify(tc.in); got != tc.want {
			t.Errorf("slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDerivePermalink(t *testing.T) {
	if got := derivePermalink("Weekly Alpha Picks", "2025-W02"); got != "weekly-alpha-picks-2025-w02" {
		t.Fatalf("unexpected permalink %q", got)
	}
}
