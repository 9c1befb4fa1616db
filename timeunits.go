/*
Copyright © 2019 the windstorm authors.
This file is part of windstorm.

windstorm is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

windstorm is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with windstorm.  If not, see <http://www.gnu.org/licenses/>.
*/

package windstorm

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ordinalEpoch is the ordinal of 1970-01-01, counting 0001-01-01 as day 1
// of the proleptic Gregorian calendar.
const ordinalEpoch = 719163

// Ordinal returns the proleptic Gregorian ordinal of the date of t.
func Ordinal(t time.Time) int {
	t = t.UTC()
	days := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix() / 86400
	return int(days) + ordinalEpoch
}

// FromOrdinal returns midnight UTC of the day with the given proleptic
// Gregorian ordinal.
func FromOrdinal(ord int) time.Time {
	return time.Unix(int64(ord-ordinalEpoch)*86400, 0).UTC()
}

var cfUnits = map[string]time.Duration{
	"second":  time.Second,
	"seconds": time.Second,
	"sec":     time.Second,
	"secs":    time.Second,
	"s":       time.Second,
	"minute":  time.Minute,
	"minutes": time.Minute,
	"min":     time.Minute,
	"mins":    time.Minute,
	"hour":    time.Hour,
	"hours":   time.Hour,
	"hr":      time.Hour,
	"hrs":     time.Hour,
	"h":       time.Hour,
	"day":     24 * time.Hour,
	"days":    24 * time.Hour,
	"d":       24 * time.Hour,
}

var cfReferenceLayouts = []string{
	"2006-1-2 15:4:5",
	"2006-1-2T15:4:5",
	"2006-1-2 15:4:5Z",
	"2006-1-2T15:4:5Z",
	"2006-1-2 15:4",
	"2006-1-2T15:4",
	"2006-1-2",
}

// parseCFTime converts value, expressed in CF time units such as
// "hours since 1949-12-01 00:00:00", to a UTC time.
func parseCFTime(units string, value float64) (time.Time, error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid time units %q", units)
	}
	step, ok := cfUnits[strings.ToLower(strings.TrimSpace(parts[0]))]
	if !ok {
		return time.Time{}, fmt.Errorf("unsupported time unit %q", parts[0])
	}
	ref, err := parseReference(parts[1])
	if err != nil {
		return time.Time{}, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return time.Time{}, fmt.Errorf("invalid time value %g", value)
	}
	// Whole days are added separately so that offsets of many years
	// don't overflow time.Duration.
	days := math.Floor(value * float64(step) / float64(24*time.Hour))
	rest := value*float64(step) - days*float64(24*time.Hour)
	return ref.AddDate(0, 0, int(days)).Add(time.Duration(math.Round(rest))), nil
}

func parseReference(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	// Drop a trailing time zone offset such as "UTC" or "+00:00".
	if f := strings.Fields(s); len(f) == 3 {
		s = f[0] + " " + f[1]
	}
	s = strings.TrimSuffix(s, ".0")
	for _, layout := range cfReferenceLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid reference time %q", s)
}
