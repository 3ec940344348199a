package eq

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"rew2streammagic/internal/logger"
)

// bandPattern matches a REW filter line such as
//
//	Filter  1: ON  PK  Fc  63.5 Hz  Gain  -3.2 dB  Q  4.32
//
// The Gain and Q clauses are independently optional. The pattern anchors at
// the start only, so trailing text after a match is ignored. Lines with any
// status other than ON never match.
var bandPattern = regexp.MustCompile(
	`^Filter\s+(\d+):\s+ON\s+([A-Z]+)\s+Fc\s+([\d.]+)\s*Hz(?:\s+Gain\s+([-\d.]+)\s*dB)?(?:\s+Q\s+([\d.]+))?`,
)

// filterCodes maps REW's abbreviated filter codes to canonical filter types.
// Codes outside the table pass through unmapped and are rejected by
// ParseFilterType, keeping this table the single source of truth.
var filterCodes = map[string]string{
	"LS": string(LowShelf),
	"PK": string(Peaking),
	"HS": string(HighShelf),
	"LP": string(LowPass),
	"HP": string(HighPass),
}

// ParseFile opens path and scans it for filter bands. Open and read failures
// are returned with the offending path; see Parse for the scan semantics.
func ParseFile(path string, log *logger.Logger) (UserEQ, error) {
	f, err := os.Open(path)
	if err != nil {
		return UserEQ{}, fmt.Errorf("open eq file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f, log)
}

// Parse scans r line by line and collects up to MaxBands valid filter bands in
// source order. Malformed or unrecognized lines are skipped with a warning,
// never an error; the only error condition is a failed read. An empty result
// is not an error here — callers decide whether zero bands is fatal.
func Parse(r io.Reader, log *logger.Logger) (UserEQ, error) {
	var bands []Band

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m := bandPattern.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}
		band, err := buildBand(m)
		if err != nil {
			log.Warnw("skipping filter line", "filter", m[1], "err", err)
			continue
		}
		bands = append(bands, band)
		if len(bands) == MaxBands {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return UserEQ{}, fmt.Errorf("read eq file: %w", err)
	}
	return UserEQ{Bands: bands}, nil
}

// buildBand converts one regex match into a Band. The captured filter number
// is 1-based in the file and stored zero-based.
func buildBand(m []string) (Band, error) {
	num, err := strconv.Atoi(m[1])
	if err != nil {
		return Band{}, fmt.Errorf("filter number %q: %w", m[1], err)
	}

	code := m[2]
	if canonical, ok := filterCodes[code]; ok {
		code = canonical
	}
	ft, err := ParseFilterType(code)
	if err != nil {
		return Band{}, err
	}

	freq, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Band{}, fmt.Errorf("frequency %q: %w", m[3], err)
	}

	band := Band{
		Index:  num - 1,
		Filter: ft,
		Freq:   int(freq), // truncated, fractional Hz not preserved
	}

	if m[4] != "" {
		gain, err := strconv.ParseFloat(m[4], 64)
		if err != nil {
			return Band{}, fmt.Errorf("gain %q: %w", m[4], err)
		}
		band.Gain = &gain
	}
	if m[5] != "" {
		q, err := strconv.ParseFloat(m[5], 64)
		if err != nil {
			return Band{}, fmt.Errorf("q %q: %w", m[5], err)
		}
		band.Q = &q
	}
	return band, nil
}
