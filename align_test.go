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
	"errors"
	"reflect"
	"testing"

	"github.com/ctessum/geom"
)

func TestAlignIdentity(t *testing.T) {
	g := regularGrid(t, 0, 0, 1, 4, 3)
	a := &Aligner{Tolerance: 1.e-4, MaxDistanceFactor: 1}
	m, err := a.Align(g, g)
	if err != nil {
		t.Fatal(err)
	}
	if m.Method != MethodIdentity {
		t.Errorf("method: have %v, want identity", m.Method)
	}
	if m.Mapped != 12 || m.Dropped != 0 {
		t.Errorf("have %d mapped and %d dropped, want 12 and 0", m.Mapped, m.Dropped)
	}
	if !reflect.DeepEqual(m.Index, g.IDs()) {
		t.Errorf("index: have %v", m.Index)
	}
}

func TestAlignRegular(t *testing.T) {
	target := regularGrid(t, 0, 0, 1, 4, 3)
	// Moved one cell east and one cell south.
	native := regularGrid(t, 1, -1, 1, 4, 3)
	a := &Aligner{Tolerance: 1.e-4, MaxDistanceFactor: 1}
	m, err := a.Align(native, target)
	if err != nil {
		t.Fatal(err)
	}
	if m.Method != MethodRegular {
		t.Errorf("method: have %v, want regular", m.Method)
	}
	want := []int{
		-1, -1, -1, -1,
		1, 2, 3, -1,
		5, 6, 7, -1,
	}
	if !reflect.DeepEqual(m.Index, want) {
		t.Errorf("index: have %v, want %v", m.Index, want)
	}
	if m.Mapped != 6 || m.Dropped != 6 {
		t.Errorf("have %d mapped and %d dropped, want 6 and 6", m.Mapped, m.Dropped)
	}
}

func TestAlignExact(t *testing.T) {
	target := regularGrid(t, 0, 0, 1, 3, 2)
	pts := append([]geom.Point(nil), target.Points...)
	pts[0], pts[5] = pts[5], pts[0]
	native := NewGeoGrid(pts)
	a := &Aligner{Tolerance: 1.e-4, MaxDistanceFactor: 1}
	m, err := a.Align(native, target)
	if err != nil {
		t.Fatal(err)
	}
	if m.Method != MethodExact {
		t.Errorf("method: have %v, want exact", m.Method)
	}
	if want := []int{5, 1, 2, 3, 4, 0}; !reflect.DeepEqual(m.Index, want) {
		t.Errorf("index: have %v, want %v", m.Index, want)
	}
}

func TestAlignNearest(t *testing.T) {
	target := regularGrid(t, 0, 0, 1, 3, 3)
	native := NewGeoGrid([]geom.Point{
		{X: 0.2, Y: 0.1},  // 0
		{X: 1.9, Y: 2.3},  // 8
		{X: 0.9, Y: 1.05}, // 4
		{X: 10, Y: 10},    // too far
	})
	a := &Aligner{Tolerance: 1.e-4, MaxDistanceFactor: 1}
	m, err := a.Align(native, target)
	if err != nil {
		t.Fatal(err)
	}
	if m.Method != MethodNearest {
		t.Errorf("method: have %v, want nearest", m.Method)
	}
	if want := []int{0, 8, 4, -1}; !reflect.DeepEqual(m.Index, want) {
		t.Errorf("index: have %v, want %v", m.Index, want)
	}
	if m.Mapped != 3 || m.Dropped != 1 {
		t.Errorf("have %d mapped and %d dropped, want 3 and 1", m.Mapped, m.Dropped)
	}
}

func TestAlignNearestEdge(t *testing.T) {
	regular := regularGrid(t, 0, 0, 1, 3, 3)
	native := NewGeoGrid([]geom.Point{
		{X: 2.4, Y: 1},    // 5
		{X: 2.6, Y: 1},    // east of the last column
		{X: 1, Y: -0.7},   // south of the first row
		{X: -0.45, Y: 0},  // 0
		{X: 1.2, Y: 2.55}, // north of the last row
	})
	a := &Aligner{Tolerance: 1.e-4, MaxDistanceFactor: 1}
	for name, target := range map[string]*GeoGrid{
		"regular":      regular,
		"unstructured": NewGeoGrid(regular.Points),
	} {
		m, err := a.Align(native, target)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if want := []int{5, -1, -1, 0, -1}; !reflect.DeepEqual(m.Index, want) {
			t.Errorf("%s: index: have %v, want %v", name, m.Index, want)
		}
		if m.Dropped != 3 {
			t.Errorf("%s: have %d dropped, want 3", name, m.Dropped)
		}
	}
}

func TestAlignDisjoint(t *testing.T) {
	target := regularGrid(t, 0, 0, 1, 3, 3)
	a := &Aligner{Tolerance: 1.e-4, MaxDistanceFactor: 1}
	for _, native := range []*GeoGrid{
		regularGrid(t, 100, 100, 1, 3, 3),
		NewGeoGrid([]geom.Point{{X: 50, Y: 50}}),
	} {
		_, err := a.Align(native, target)
		var aErr *AlignmentError
		if !errors.As(err, &aErr) {
			t.Errorf("have error %v, want *AlignmentError", err)
		}
	}
}
