package importer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pickwire/platform/pkg/common/models"
)

// Upload filenames carry the report date directly before the fixed suffix,
// e.g. 2025-01-06report.json.
var filenamePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})report\.json$`)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

func ValidFilename(name string) bool {
	return filenamePattern.MatchString(name)
}

// FilenameDate extracts the date embedded in an upload filename.
func FilenameDate(name string) (time.Time, error) {
	matches := filenamePattern.FindStringSubmatch(name)
	if matches == nil {
		return time.Time{}, fmt.Errorf("filename %q does not match expected pattern", name)
	}
	return time.Parse("2006-01-02", matches[1])
}

// PeriodKey derives the server-controlled period identifier from a publish
// timestamp. ISO week form, e.g. 2025-W02. Client-supplied values are never
// used.
func PeriodKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

type Validator struct {
	rules            Rules
	allowedExchanges map[string]struct{}
}

func NewValidator(rules Rules) *Validator {
	allowed := make(map[string]struct{})
	for _, ex := range rules.AllowedExchanges {
		if trimmed := strings.TrimSpace(strings.ToUpper(ex)); trimmed != "" {
			allowed[trimmed] = struct{}{}
		}
	}
	return &Validator{rules: rules, allowedExchanges: allowed}
}

// Validate runs schema and cross-field checks on a decoded payload. The
// filename's embedded date must land in the same ISO week as published_at; a
// mismatch is a validation failure, not a duplicate.
func (v *Validator) Validate(filename string, payload *ReportPayload) error {
	if strings.TrimSpace(payload.Title) == "" {
		return ValidationError{reason: errors.New("title required")}
	}
	if payload.PublishedAt.IsZero() {
		return ValidationError{reason: errors.New("published_at required")}
	}
	if strings.TrimSpace(payload.Version) == "" {
		return ValidationError{reason: errors.New("version required")}
	}

	if count := len(payload.Picks); count < v.rules.MinPicks || count > v.rules.MaxPicks {
		return ValidationError{reason: fmt.Errorf("report must contain between %d and %d picks, got %d",
			v.rules.MinPicks, v.rules.MaxPicks, count)}
	}

	seen := make(map[string]struct{}, len(payload.Picks))
	for i, pick := range payload.Picks {
		if err := v.validatePick(i, pick); err != nil {
			return err
		}
		key := strings.ToUpper(pick.Ticker) + "|" + strings.ToLower(pick.Side)
		if _, dup := seen[key]; dup {
			return ValidationError{reason: fmt.Errorf("duplicate pick %s/%s within report", pick.Ticker, pick.Side)}
		}
		seen[key] = struct{}{}
	}

	fileDate, err := FilenameDate(filename)
	if err != nil {
		return ValidationError{reason: err}
	}
	if PeriodKey(fileDate) != PeriodKey(payload.PublishedAt) {
		return ValidationError{reason: fmt.Errorf("filename date %s is not in the report's publish period %s",
			fileDate.Format("2006-01-02"), PeriodKey(payload.PublishedAt))}
	}

	return nil
}

func (v *Validator) validatePick(index int, pick PickPayload) error {
	if strings.TrimSpace(pick.Ticker) == "" {
		return ValidationError{reason: fmt.Errorf("pick %d: ticker required", index)}
	}

	side := strings.ToLower(strings.TrimSpace(pick.Side))
	if side != models.SideLong && side != models.SideShort {
		return ValidationError{reason: fmt.Errorf("pick %d: side must be %q or %q", index, models.SideLong, models.SideShort)}
	}

	if bound := v.rules.MaxTargetChangePct; pick.TargetChangePct < -bound || pick.TargetChangePct > bound {
		return ValidationError{reason: fmt.Errorf("pick %d: target_change_pct %.2f outside [%.0f, %.0f]",
			index, pick.TargetChangePct, -bound, bound)}
	}

	if len(v.allowedExchanges) > 0 {
		exchange := strings.ToUpper(strings.TrimSpace(pick.Exchange))
		if _, ok := v.allowedExchanges[exchange]; !ok {
			return ValidationError{reason: fmt.Errorf("pick %d: exchange %q not supported", index, pick.Exchange)}
		}
	}

	return nil
}
