package query

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Format selects the output encoding of a result set.
type Format string

const (
	FormatJSON Format = "json"
	FormatICal Format = "ical"
	FormatICS  Format = "ics"
)

// IsCalendar reports whether the format re-encodes results as an iCalendar
// document.
func (f Format) IsCalendar() bool {
	return f == FormatICal || f == FormatICS
}

// RawMode controls the raw-payload projection of JSON results.
type RawMode string

const (
	// RawInclude is the default: all fields including raw.
	RawInclude RawMode = ""
	// RawOnly returns only identifier and raw payload per record.
	RawOnly RawMode = "only"
	// RawExclude strips the raw field.
	RawExclude RawMode = "exclude"
)

// MatchMode is the comparison strategy applied to a text filter field.
type MatchMode string

const (
	// MatchSubstring is the default: case-sensitive substring containment.
	MatchSubstring MatchMode = ""
	MatchStrict    MatchMode = "strict"
	MatchRegex     MatchMode = "regex"
)

// TextFilter is one per-field text predicate. Pattern is non-nil exactly when
// Mode is MatchRegex.
type TextFilter struct {
	Value   string
	Mode    MatchMode
	Pattern *regexp.Regexp
}

// Params is the validated, typed form of a search request.
type Params struct {
	Start  *int64
	End    *int64
	After  *int64
	Before *int64

	Summary     *TextFilter
	Location    *TextFilter
	Description *TextFilter

	Sort   bool
	Raw    RawMode
	Format Format
}

// Options tunes request parsing.
type Options struct {
	// IngestOffset is subtracted from textual date bounds after parsing,
	// compensating the fixed one-hour skew the upstream applies regardless
	// of daylight saving.
	IngestOffset time.Duration
	// MaxPatternLength caps regex pattern input length. Go's regexp is
	// RE2-based and matches in linear time, so the cap bounds compile cost
	// and pathological pattern sizes rather than backtracking blowups.
	MaxPatternLength int
}

// DefaultMaxPatternLength caps regex filter patterns when Options does not
// set an explicit limit.
const DefaultMaxPatternLength = 512

// ValidationError reports every invalid query parameter of one request.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface with a deterministic rendering of all
// recorded field problems.
func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "invalid query parameters"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v.FieldErrors[field])
	}
	return strings.Join(parts, "; ")
}

// HasErrors reports whether any field problems were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// BoundKind tags the outcome of parsing one date bound value.
type BoundKind int

const (
	// BoundNumeric means the value was already integer seconds since epoch.
	BoundNumeric BoundKind = iota
	// BoundParsed means the value was a calendar date-time string and the
	// seconds were derived from it.
	BoundParsed
	// BoundInvalid means the value parses as neither form.
	BoundInvalid
)

// DateBound is the tagged result of ParseDateBound.
type DateBound struct {
	Kind    BoundKind
	Seconds int64
}

// Accepted textual date-time layouts, tried in order. Layouts without an
// explicit zone are interpreted as UTC.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDateBound classifies one date bound value as numeric epoch seconds, a
// parsed calendar date-time, or invalid. It is the single place deciding how
// mixed-unit date input is read; the offset correction for parsed values is
// applied by the caller so that stored numeric timestamps are never touched.
func ParseDateBound(value string) DateBound {
	value = strings.TrimSpace(value)
	if value == "" {
		return DateBound{Kind: BoundInvalid}
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return DateBound{Kind: BoundNumeric, Seconds: seconds}
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return DateBound{Kind: BoundParsed, Seconds: t.Unix()}
		}
	}

	return DateBound{Kind: BoundInvalid}
}

// ParseFormat validates an output format value, matched case-insensitively.
// An empty value selects JSON.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "json":
		return FormatJSON, nil
	case "ical":
		return FormatICal, nil
	case "ics":
		return FormatICS, nil
	default:
		return "", fmt.Errorf("unsupported format %q", value)
	}
}

// ParseParams validates the full search parameter set. All problems are
// collected into one ValidationError: every bad date bound is reported, not
// only the first.
func ParseParams(values url.Values, opts Options) (Params, error) {
	maxPattern := opts.MaxPatternLength
	if maxPattern <= 0 {
		maxPattern = DefaultMaxPatternLength
	}

	var params Params
	vErr := &ValidationError{}

	format, err := ParseFormat(values.Get("format"))
	if err != nil {
		vErr.add("format", err.Error())
	} else {
		params.Format = format
	}

	params.Start = parseBoundParam(values, "start", opts.IngestOffset, vErr)
	params.End = parseBoundParam(values, "end", opts.IngestOffset, vErr)
	params.After = parseBoundParam(values, "after", opts.IngestOffset, vErr)
	params.Before = parseBoundParam(values, "before", opts.IngestOffset, vErr)

	params.Summary = parseTextParam(values, "summary", "summaryMatchType", maxPattern, vErr)
	params.Location = parseTextParam(values, "location", "locationMatchType", maxPattern, vErr)
	params.Description = parseTextParam(values, "description", "descriptionMatchType", maxPattern, vErr)

	params.Sort = parseBool(values.Get("sort"))

	switch RawMode(strings.ToLower(values.Get("raw"))) {
	case RawInclude:
		params.Raw = RawInclude
	case RawOnly:
		params.Raw = RawOnly
	case RawExclude:
		params.Raw = RawExclude
	default:
		vErr.add("raw", fmt.Sprintf("unsupported raw mode %q", values.Get("raw")))
	}

	if vErr.HasErrors() {
		return Params{}, vErr
	}
	return params, nil
}

func parseBoundParam(values url.Values, name string, offset time.Duration, vErr *ValidationError) *int64 {
	raw := values.Get(name)
	if raw == "" {
		return nil
	}

	bound := ParseDateBound(raw)
	switch bound.Kind {
	case BoundNumeric:
		return &bound.Seconds
	case BoundParsed:
		seconds := bound.Seconds - int64(offset/time.Second)
		return &seconds
	default:
		vErr.add(name, fmt.Sprintf("%q is neither epoch seconds nor a calendar date-time", raw))
		return nil
	}
}

func parseTextParam(values url.Values, field, modeParam string, maxPattern int, vErr *ValidationError) *TextFilter {
	value := values.Get(field)
	mode := MatchMode(strings.ToLower(values.Get(modeParam)))

	switch mode {
	case MatchSubstring, MatchStrict:
		if value == "" {
			return nil
		}
		return &TextFilter{Value: value, Mode: mode}
	case MatchRegex:
		// A regex mode with no value has nothing to match against.
		if value == "" {
			vErr.add(field, "regex match requested without a value")
			return nil
		}
		if len(value) > maxPattern {
			vErr.add(field, fmt.Sprintf("regex pattern exceeds %d characters", maxPattern))
			return nil
		}
		pattern, err := regexp.Compile(value)
		if err != nil {
			vErr.add(field, fmt.Sprintf("invalid regex pattern: %v", err))
			return nil
		}
		return &TextFilter{Value: value, Mode: mode, Pattern: pattern}
	default:
		vErr.add(modeParam, fmt.Sprintf("unsupported match type %q", values.Get(modeParam)))
		return nil
	}
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
