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
	"context"
	"math"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSaveReadHazard(t *testing.T) {
	f := setupFootprints(t)
	cent, err := OpenCentroids(f.centroids)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := newTestAssembler(t, DefaultConfig())
	for _, c := range []*GeoGrid{nil, cent} {
		h, err := a.Ingest(context.Background(), []string{f.lothar, f.xynthia}, c, "")
		if err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(t.TempDir(), "hazard.nc")
		if err := h.Save(path); err != nil {
			t.Fatal(err)
		}
		h2, err := ReadHazard(path)
		if err != nil {
			t.Fatal(err)
		}
		compareHazards(t, h, h2)
	}
}

func TestSaveReadSmallHazard(t *testing.T) {
	h := smallHazard(t)
	h.EventName[1] = "Kyrill (2007)"
	path := filepath.Join(t.TempDir(), "small.nc")
	if err := h.Save(path); err != nil {
		t.Fatal(err)
	}
	h2, err := ReadHazard(path)
	if err != nil {
		t.Fatal(err)
	}
	compareHazards(t, h, h2)
}

func compareHazards(t *testing.T, want, have *Hazard) {
	t.Helper()
	if have.HazType != want.HazType || have.Units != want.Units || have.Strategy != want.Strategy {
		t.Errorf("attributes: have (%q, %q, %q), want (%q, %q, %q)",
			have.HazType, have.Units, have.Strategy, want.HazType, want.Units, want.Strategy)
	}
	for _, c := range []struct {
		name       string
		have, want interface{}
	}{
		{"event ids", have.EventID, want.EventID},
		{"dates", have.Date, want.Date},
		{"names", have.EventName, want.EventName},
		{"frequency", have.Frequency, want.Frequency},
		{"orig", have.Orig, want.Orig},
		{"files", have.Files, want.Files},
		{"intensity", have.Intensity, want.Intensity},
		{"fraction", have.Fraction, want.Fraction},
		{"points", have.Centroids.Points, want.Centroids.Points},
	} {
		if !reflect.DeepEqual(c.have, c.want) {
			t.Errorf("%s differ", c.name)
		}
	}
	if (have.Centroids.RegionID == nil) != (want.Centroids.RegionID == nil) {
		t.Fatalf("region ids: have %v, want %v", have.Centroids.RegionID == nil, want.Centroids.RegionID == nil)
	}
	for i, r := range want.Centroids.RegionID {
		hr := have.Centroids.RegionID[i]
		if r != hr && !(math.IsNaN(r) && math.IsNaN(hr)) {
			t.Fatalf("region id %d: have %g, want %g", i, hr, r)
		}
	}
	wnx, wny, _ := want.Centroids.Shape()
	hnx, hny, _ := have.Centroids.Shape()
	if wnx != hnx || wny != hny {
		t.Errorf("shape: have %d×%d, want %d×%d", hnx, hny, wnx, wny)
	}
}
