package monitor

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Classify splits a line on commas, spaces and tabs and collects the
// tokens that parse as finite numbers. A line counts as plotter data only
// when more than one such token is present; single readings and free text
// stay plain log output. Classification is stateless, one line at a time.
func Classify(line string) ([]float64, bool) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	var values []float64
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		values = append(values, v)
	}
	if len(values) > 1 {
		return values, true
	}
	return nil, false
}
