package server

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/royalcat/fieldgrid/geomerr"
)

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}

func isNumber(c byte) bool {
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E'
}

// unmarshalPointsFast parses a JSON array of [lon, lat] or [lon, lat, alt]
// pairs without reflection. Every tuple must carry two numbers.
func unmarshalPointsFast(data []byte, result *[]orb.Point) error {
	i := 0
	n := len(data)

	skip := func() {
		for i < n && isSpace(data[i]) {
			i++
		}
	}
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: offset %d: %s", geomerr.ErrInvalidGeometry, i, fmt.Sprintf(format, args...))
	}

	*result = slices.Grow(*result, n/16) // n/16 is a heuristic

	skip()
	if i >= n || data[i] != '[' {
		return invalid("expected '['")
	}
	i++

	for first := true; ; first = false {
		skip()
		if first && i < n && data[i] == ']' {
			i++
			break
		}

		if i >= n || data[i] != '[' {
			return invalid("expected '[' for point")
		}
		i++

		var point orb.Point
		for axis := 0; ; axis++ {
			skip()
			start := i
			for i < n && isNumber(data[i]) {
				i++
			}
			if start == i {
				return invalid("expected number")
			}
			num, err := strconv.ParseFloat(string(data[start:i]), 64)
			if err != nil {
				return invalid("invalid number: %v", err)
			}
			if axis < 2 {
				point[axis] = num
			}

			skip()
			if i < n && data[i] == ',' {
				if axis == 2 {
					return invalid("too many coordinates")
				}
				i++
				continue
			}
			if i < n && data[i] == ']' {
				if axis == 0 {
					return invalid("expected two coordinates")
				}
				i++
				break
			}
			return invalid("expected ',' or ']'")
		}

		*result = append(*result, point)

		skip()
		if i < n && data[i] == ',' {
			i++
			continue
		}
		if i < n && data[i] == ']' {
			i++
			break
		}
		return invalid("expected ',' or ']' after point")
	}

	skip()
	if i != n {
		return invalid("trailing data")
	}
	return nil
}
