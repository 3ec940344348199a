package eq

import "fmt"

// MaxBands is the number of equalizer bands the device accepts; parsing stops
// once this many valid bands have been collected.
const MaxBands = 7

// FilterType identifies the shape of a parametric EQ filter.
type FilterType string

const (
	LowShelf  FilterType = "LOWSHELF"
	Peaking   FilterType = "PEAKING"
	HighShelf FilterType = "HIGHSHELF"
	LowPass   FilterType = "LOWPASS"
	HighPass  FilterType = "HIGHPASS"
)

// ParseFilterType resolves a canonical filter type name. Abbreviated REW codes
// must be mapped through filterCodes before calling this.
func ParseFilterType(s string) (FilterType, error) {
	switch ft := FilterType(s); ft {
	case LowShelf, Peaking, HighShelf, LowPass, HighPass:
		return ft, nil
	}
	return "", fmt.Errorf("unknown filter type %q", s)
}

// Band is a single parametric EQ band.
// Gain and Q are nil when the source line omitted the clause; for pass filters
// that is the normal case, and nil is distinct from an explicit zero.
type Band struct {
	Index  int        `json:"index"` // zero-based
	Filter FilterType `json:"filter"`
	Freq   int        `json:"freq"` // Hz
	Gain   *float64   `json:"gain,omitempty"`
	Q      *float64   `json:"q,omitempty"`
}

// UserEQ is the ordered band list applied to the device in one request.
type UserEQ struct {
	Bands []Band `json:"bands"`
}
