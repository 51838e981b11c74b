package testutils

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"testing"

	"github.com/mcuadros/go-defaults"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// PresencePlaceholder in expected JSON matches any actual value for that key.
const PresencePlaceholder = "<<PRESENCE>>"

func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

type JSONAssertOptions struct {
	IgnoreExtraKeys          bool     `default:"true"`
	AllowPresencePlaceholder bool     `default:"true"`
	IgnoredFields            []string `default:""`
	IgnoreArrayOrder         bool     `default:"false"`

	// FloatPrecision rounds every number to this many decimals before
	// comparing. Negative disables rounding.
	FloatPrecision int `default:"-1"`
}

type Option func(*JSONAssertOptions)

// JSONAsserter compares JSON documents structurally and reports a readable diff.
type JSONAsserter struct {
	t       testing.TB
	options JSONAssertOptions
}

func NewJSONAsserter(t testing.TB) *JSONAsserter {
	opts := JSONAssertOptions{}
	defaults.SetDefaults(&opts)
	return &JSONAsserter{t: t, options: opts}
}

func (ja *JSONAsserter) WithOptions(opts ...Option) *JSONAsserter {
	for _, opt := range opts {
		opt(&ja.options)
	}
	return ja
}

func (ja *JSONAsserter) Assert(actualJSON, expectedJSON string) {
	ja.t.Helper()
	if diff := ja.Diff(actualJSON, expectedJSON); diff != "" {
		ja.t.Errorf("JSON assertion failed:\n%s", diff)
	}
}

// AssertValue marshals v and compares it against expectedJSON.
func (ja *JSONAsserter) AssertValue(v any, expectedJSON string) {
	ja.t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		ja.t.Errorf("failed to marshal actual value: %v", err)
		return
	}
	ja.Assert(string(data), expectedJSON)
}

// Diff returns an empty string when the documents match.
func (ja *JSONAsserter) Diff(actualJSON, expectedJSON string) string {
	var expected, actual any
	if err := json.Unmarshal([]byte(expectedJSON), &expected); err != nil {
		return fmt.Sprintf("invalid expected JSON: %v", err)
	}
	if err := json.Unmarshal([]byte(actualJSON), &actual); err != nil {
		return fmt.Sprintf("invalid actual JSON: %v", err)
	}

	// gojsondiff compares objects only
	expected = map[string]any{"doc": expected}
	actual = map[string]any{"doc": actual}

	ja.reconcile(expected, actual)
	if p := ja.options.FloatPrecision; p >= 0 {
		expected = roundNumbers(expected, math.Pow10(p))
		actual = roundNumbers(actual, math.Pow10(p))
	}
	if ja.options.IgnoreArrayOrder {
		sortArrays(expected)
		sortArrays(actual)
	}

	expectedBytes, _ := json.Marshal(expected)
	actualBytes, _ := json.Marshal(actual)

	diff, err := gojsondiff.New().Compare(expectedBytes, actualBytes)
	if err != nil {
		return fmt.Sprintf("JSON comparison failed: %v", err)
	}
	if !diff.Modified() {
		return ""
	}

	f := formatter.NewAsciiFormatter(expected, formatter.AsciiFormatterConfig{ShowArrayIndex: true})
	out, _ := f.Format(diff)
	return out
}

// reconcile walks both documents in step, filling placeholders, dropping
// ignored fields and pruning keys the expected side does not mention.
// Arrays are paired by index.
func (ja *JSONAsserter) reconcile(expected, actual any) {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return
		}
		for _, f := range ja.options.IgnoredFields {
			delete(exp, f)
			delete(act, f)
		}
		for k, v := range exp {
			if ja.options.AllowPresencePlaceholder && v == PresencePlaceholder {
				if av, present := act[k]; present {
					exp[k] = av
				}
				continue
			}
			ja.reconcile(v, act[k])
		}
		if ja.options.IgnoreExtraKeys {
			for k := range act {
				if _, mentioned := exp[k]; !mentioned {
					delete(act, k)
				}
			}
		}
	case []any:
		act, ok := actual.([]any)
		if !ok {
			return
		}
		for i := 0; i < len(exp) && i < len(act); i++ {
			ja.reconcile(exp[i], act[i])
		}
	}
}

func roundNumbers(v any, scale float64) any {
	switch x := v.(type) {
	case float64:
		return math.Round(x*scale) / scale
	case map[string]any:
		for k, e := range x {
			x[k] = roundNumbers(e, scale)
		}
	case []any:
		for i, e := range x {
			x[i] = roundNumbers(e, scale)
		}
	}
	return v
}

// sortArrays sorts arrays by the JSON encoding of their elements.
func sortArrays(data any) {
	switch v := data.(type) {
	case map[string]any:
		for _, e := range v {
			sortArrays(e)
		}
	case []any:
		for _, e := range v {
			sortArrays(e)
		}
		sort.Slice(v, func(i, j int) bool {
			return MustJSON(v[i]) < MustJSON(v[j])
		})
	}
}

func WithIgnoreExtraKeys(ignore bool) Option {
	return func(opts *JSONAssertOptions) {
		opts.IgnoreExtraKeys = ignore
	}
}

// WithIgnoredFields drops these keys at every depth on both sides.
func WithIgnoredFields(fields ...string) Option {
	return func(opts *JSONAssertOptions) {
		opts.IgnoredFields = fields
	}
}

func WithIgnoreArrayOrder(ignore bool) Option {
	return func(opts *JSONAssertOptions) {
		opts.IgnoreArrayOrder = ignore
	}
}

// WithFloatPrecision compares numbers rounded to digits decimals, which
// keeps scaled sensor readings like 25.009999999999998 comparable to 25.01.
func WithFloatPrecision(digits int) Option {
	return func(opts *JSONAssertOptions) {
		opts.FloatPrecision = digits
	}
}
