package importer

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/smart-student/edu-import-api/internal/models"
)

// Score scales accepted from source files.
const (
	ScalePercent = "percent"
	ScaleOneTo7  = "1-7"
	ScaleOneTo10 = "1-10"
)

var (
	fractionPattern = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)\s*/\s*(\d+(?:[.,]\d+)?)$`)
	percentPattern  = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)\s*%$`)
	dmyPattern      = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{4})$`)
	ymdPattern      = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})$`)
	ordinalPattern  = regexp.MustCompile(`(\d+)\s*(?:ro|do|to|er|vo|mo|no)\b`)
	spacePattern    = regexp.MustCompile(`\s+`)
	idCleanPattern  = regexp.MustCompile(`[^a-z0-9]`)
)

// NormalizeScore converts heterogeneous score text to a 0–100 value.
// Fractions and percentages bypass the scale; plain numbers are read with
// locale-tolerant separators and converted from the configured scale.
func NormalizeScore(raw string, scale string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("score is empty")
	}

	if m := fractionPattern.FindStringSubmatch(raw); m != nil {
		num := parseLocaleFloat(m[1])
		den := parseLocaleFloat(m[2])
		if den == 0 {
			return 0, fmt.Errorf("score %q divides by zero", raw)
		}
		return checkScoreRange((num/den)*100, raw)
	}

	if m := percentPattern.FindStringSubmatch(raw); m != nil {
		return checkScoreRange(parseLocaleFloat(m[1]), raw)
	}

	value := parseLocaleFloat(raw)
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("score %q is not a number", raw)
	}
	if value > 1000 {
		return 0, fmt.Errorf("score %q is malformed", raw)
	}

	switch scale {
	case ScaleOneTo7:
		value = ((value - 1) / 6) * 100
	case ScaleOneTo10:
		value = value * 10
	}

	return checkScoreRange(value, raw)
}

func checkScoreRange(value float64, raw string) (float64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("score %q is not a number", raw)
	}
	if value < 0 || value > 100 {
		return 0, fmt.Errorf("score %q is outside 0-100", raw)
	}
	return value, nil
}

// parseLocaleFloat reads a number whose decimal separator may be either a
// period or a comma; the rightmost of the two is taken as the decimal point
// and the other is treated as a thousands separator.
func parseLocaleFloat(raw string) float64 {
	raw = strings.TrimSpace(raw)
	lastDot := strings.LastIndex(raw, ".")
	lastComma := strings.LastIndex(raw, ",")

	switch {
	case lastComma > lastDot:
		raw = strings.ReplaceAll(raw, ".", "")
		idx := strings.LastIndex(raw, ",")
		raw = strings.ReplaceAll(raw[:idx], ",", "") + "." + raw[idx+1:]
	case lastDot > lastComma:
		raw = strings.ReplaceAll(raw, ",", "")
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN()
	}
	return value
}

// serialEpoch is the spreadsheet day-serial epoch.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// NormalizeDate resolves the many date shapes seen in uploads. A missing or
// unparseable date falls back to now so it never blocks a valid score.
// Resolved dates land at local noon to avoid timezone day-shift.
func NormalizeDate(raw string, now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now
	}

	if serial, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64); err == nil {
		if serial > 40000 && serial < 80000 {
			day := serialEpoch.AddDate(0, 0, int(serial))
			return time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, loc)
		}
	}

	if m := dmyPattern.FindStringSubmatch(raw); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if t, ok := makeDate(year, month, day, loc); ok {
			return t
		}
	}

	if m := ymdPattern.FindStringSubmatch(raw); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if t, ok := makeDate(year, month, day, loc); ok {
			return t
		}
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "January 2, 2006", "Jan 2, 2006"} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t
		}
	}

	return now
}

func makeDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 12, 0, 0, 0, loc), true
}

// DayKey renders a timestamp's local calendar day, the granularity activity
// grouping works at.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// NormalizeName folds text for catalog matching: decompose, drop combining
// marks and ordinal markers, collapse ordinal suffixes and whitespace,
// lower-case. Two strings match iff their normalized forms are identical.
func NormalizeName(raw string) string {
	decomposed := norm.NFD.String(raw)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) || r == 'º' || r == '°' {
			continue
		}
		b.WriteRune(r)
	}

	folded := strings.ToLower(b.String())
	folded = ordinalPattern.ReplaceAllString(folded, "$1")
	folded = spacePattern.ReplaceAllString(folded, " ")
	return strings.TrimSpace(folded)
}

// CleanIdentifier strips punctuation from student identifiers (RUT dots and
// dashes) and case-folds them.
func CleanIdentifier(raw string) string {
	return idCleanPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(raw)), "")
}

// ClassifyType maps the free-text activity type to the three-way vocabulary;
// anything unrecognized is an evaluacion.
func ClassifyType(raw string) models.ActivityType {
	switch NormalizeName(raw) {
	case "tarea", "task", "homework":
		return models.ActivityTarea
	case "prueba", "test", "examen", "quiz", "exam":
		return models.ActivityPrueba
	default:
		return models.ActivityEvaluacion
	}
}

// ParseAttendanceStatus maps free-text status to the canonical vocabulary.
// The boolean is false for unknown statuses, which reject the row.
func ParseAttendanceStatus(raw string) (models.AttendanceStatus, bool) {
	switch NormalizeName(raw) {
	case "present", "presente", "p", "asiste":
		return models.AttendancePresent, true
	case "absent", "ausente", "a", "falta":
		return models.AttendanceAbsent, true
	case "late", "atraso", "atrasado", "tarde", "l", "t":
		return models.AttendanceLate, true
	case "excused", "justificado", "justificada", "j", "e":
		return models.AttendanceExcused, true
	default:
		return "", false
	}
}
