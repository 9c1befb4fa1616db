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
	"math"
	"reflect"
	"testing"

	"github.com/ctessum/sparse"
)

func smallHazard(t *testing.T) *Hazard {
	g := regularGrid(t, 0, 0, 1, 3, 1)
	h := &Hazard{
		HazType:   "WS",
		Units:     "m/s",
		EventID:   []int{1, 2},
		Date:      []int{730114, 733831},
		EventName: []string{"a", "b"},
		Frequency: frequency(2, []int{1999, 2010}),
		Orig:      []bool{true, true},
		Files:     []string{"a.nc", "b.nc"},
		Intensity: sparse.ZerosSparse(2, 3),
		Fraction:  sparse.ZerosSparse(2, 3),
		Centroids: g,
		Strategy:  StrategyOwnGrid,
	}
	for _, v := range []struct {
		e, c int
		i, f float64
	}{{0, 2, 30, 1}, {0, 0, 20, 0.5}, {1, 1, 40, 1}} {
		h.Intensity.Set(v.i, v.e, v.c)
		h.Fraction.Set(v.f, v.e, v.c)
	}
	return h
}

func TestHazardCheck(t *testing.T) {
	h := smallHazard(t)
	if err := h.Check(); err != nil {
		t.Fatal(err)
	}
	if n := h.NumEvents(); n != 2 {
		t.Errorf("events: have %d", n)
	}

	tests := map[string]func(*Hazard){
		"names":    func(h *Hazard) { h.EventName = h.EventName[:1] },
		"ids":      func(h *Hazard) { h.EventID[1] = 5 },
		"shape":    func(h *Hazard) { h.Intensity.Shape = []int{2, 4} },
		"sparsity": func(h *Hazard) { delete(h.Fraction.Elements, 2) },
		"zero":     func(h *Hazard) { h.Intensity.Elements[1] = 0; h.Fraction.Elements[1] = 1 },
		"nan":      func(h *Hazard) { h.Intensity.Elements[2] = math.NaN() },
		"nil":      func(h *Hazard) { h.Fraction = nil },
	}
	for name, mod := range tests {
		h := smallHazard(t)
		mod(h)
		if err := h.Check(); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestHazardRow(t *testing.T) {
	h := smallHazard(t)
	cols, intensity, fraction := h.Row(0)
	if !reflect.DeepEqual(cols, []int{0, 2}) {
		t.Errorf("columns: have %v", cols)
	}
	if !reflect.DeepEqual(intensity, []float64{20, 30}) {
		t.Errorf("intensity: have %v", intensity)
	}
	if !reflect.DeepEqual(fraction, []float64{0.5, 1}) {
		t.Errorf("fraction: have %v", fraction)
	}
	if cols, _, _ := h.Row(1); !reflect.DeepEqual(cols, []int{1}) {
		t.Errorf("event 1 columns: have %v", cols)
	}
}

func TestHazardRows(t *testing.T) {
	h := smallHazard(t)
	rows := h.Rows()
	if len(rows) != 2 {
		t.Fatalf("have %d rows, want 2", len(rows))
	}
	for e, r := range rows {
		cols, intensity, fraction := h.Row(e)
		if !reflect.DeepEqual(r, EventRow{Cols: cols, Intensity: intensity, Fraction: fraction}) {
			t.Errorf("event %d: have %+v, want %v %v %v", e, r, cols, intensity, fraction)
		}
	}

	// An event without stored cells has an empty row.
	delete(h.Intensity.Elements, 1*3+1)
	delete(h.Fraction.Elements, 1*3+1)
	if r := h.Rows()[1]; len(r.Cols) != 0 || len(r.Intensity) != 0 {
		t.Errorf("empty event: have %+v", r)
	}
}

func TestSSI(t *testing.T) {
	h := smallHazard(t)
	ssi := h.SSI(25)
	// All centroids are on the equator, so each cell is a square of one
	// degree on a side.
	area := math.Pow(earthRadius*math.Pi/180, 2)
	want := []float64{area * 30 * 30 * 30, area * 40 * 40 * 40}
	for i := range want {
		if math.Abs(ssi[i]-want[i])/want[i] > 1.e-12 {
			t.Errorf("event %d: have %g, want %g", i, ssi[i], want[i])
		}
	}
}

func TestFrequency(t *testing.T) {
	if f := frequency(3, []int{2000, 2000, 2000}); !reflect.DeepEqual(f, []float64{1, 1, 1}) {
		t.Errorf("single year: have %v", f)
	}
	if f := frequency(2, []int{1990, 2010}); !reflect.DeepEqual(f, []float64{0.05, 0.05}) {
		t.Errorf("twenty years: have %v", f)
	}
}
