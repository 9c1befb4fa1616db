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
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spatialmodel/windstorm/internal/fixture"
)

func writeFootprint(t *testing.T, name string, s fixture.Footprint) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := fixture.Write(path, s); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeText(path, s string) error {
	return os.WriteFile(path, []byte(s), 0644)
}

func newTestParser(t *testing.T) (*Parser, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	p, err := NewParser(DefaultVarNames(), "m/s", log)
	if err != nil {
		t.Fatal(err)
	}
	return p, hook
}

func TestParse(t *testing.T) {
	path := writeFootprint(t, "fp_lothar.nc", fixture.Lothar())
	p, hook := newTestParser(t)
	fp, err := p.Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	if fp.Name != "Lothar" {
		t.Errorf("name: have %q", fp.Name)
	}
	if fp.Units != "m/s" {
		t.Errorf("units: have %q", fp.Units)
	}
	if want := time.Date(1999, 12, 26, 6, 0, 0, 0, time.UTC); !fp.Date.Equal(want) {
		t.Errorf("date: have %v, want %v", fp.Date, want)
	}
	if fp.EventID != 1 {
		t.Errorf("event id: have %d", fp.EventID)
	}
	if fp.Grid.Size() != 10000 || len(fp.Intensity) != 10000 {
		t.Fatalf("have %d cells and %d values, want 10000", fp.Grid.Size(), len(fp.Intensity))
	}
	if fp.Fraction != nil {
		t.Error("fraction should be nil")
	}
	for i := 0; i < 100; i++ {
		if !math.IsNaN(fp.Intensity[i]) {
			t.Fatalf("fill value at cell %d read as %g", i, fp.Intensity[i])
		}
	}
	if v := fp.Intensity[60*100+40]; math.Abs(v-42) > 1.e-4 {
		t.Errorf("peak: have %g, want 42", v)
	}
	x0, y0, dx, dy, ok := fp.Grid.Regular()
	if !ok || math.Abs(x0+5) > 1.e-9 || math.Abs(y0-42) > 1.e-9 ||
		math.Abs(dx-0.1) > 1.e-9 || math.Abs(dy-0.1) > 1.e-9 {
		t.Errorf("grid: have (%g, %g, %g, %g, %v)", x0, y0, dx, dy, ok)
	}
	if len(hook.AllEntries()) != 0 {
		t.Errorf("unexpected log entries: %v", hook.AllEntries())
	}
}

func TestParseDefaults(t *testing.T) {
	s := fixture.Xynthia()
	s.Name = ""
	s.Units = ""
	path := writeFootprint(t, "fp_noname.nc", s)
	p, hook := newTestParser(t)
	fp, err := p.Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	if fp.Name != "unnamed-fp_noname" {
		t.Errorf("name: have %q", fp.Name)
	}
	if fp.Units != "m/s" {
		t.Errorf("units: have %q", fp.Units)
	}
	e := hook.LastEntry()
	if e == nil || e.Level != logrus.WarnLevel {
		t.Errorf("missing units should log a warning; have %v", e)
	}
}

func TestParseRecords(t *testing.T) {
	for _, recordDim := range []bool{false, true} {
		s := fixture.Footprint{
			Nx: 3, Ny: 2, X0: 0, Y0: 0, Dx: 1, Dy: 1,
			Name: "multi", Units: "m/s",
			Date: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
			Records: [][]float64{
				{1, 5, 3, math.NaN(), 0, 9},
				{2, 4, 3, 7, math.NaN(), 8},
				{0, 6, 1, 1, math.NaN(), 10},
			},
			RecordDim: recordDim,
		}
		path := writeFootprint(t, "multi.nc", s)
		p, _ := newTestParser(t)
		fp, err := p.Parse(path)
		if err != nil {
			t.Fatalf("record dimension %v: %v", recordDim, err)
		}
		want := []float64{2, 6, 3, 7, 0, 10}
		for i, v := range fp.Intensity {
			if v != want[i] {
				t.Errorf("record dimension %v: cell %d: have %g, want %g", recordDim, i, v, want[i])
			}
		}
		if !fp.Date.Equal(s.Date) {
			t.Errorf("record dimension %v: date: have %v", recordDim, fp.Date)
		}
	}
}

func TestParseCurvilinear(t *testing.T) {
	s := fixture.Footprint{
		Nx: 4, Ny: 3, X0: 5, Y0: 45, Dx: 0.5, Dy: 0.25,
		Curvilinear: true,
		NoTimeDim:   true,
		Name:        "curvy", Units: "m/s",
		Date:     time.Date(2005, 1, 8, 0, 0, 0, 0, time.UTC),
		Records:  [][]float64{fixture.Gust(4, 3, 1, 1, 30)},
		Fraction: []float64{1, 1, 0.5, 0.5, 1, 1, 0.5, 0.5, 1, 1, 0, 0},
	}
	path := writeFootprint(t, "curvy.nc", s)
	vars := DefaultVarNames()
	vars.Fraction = "fraction"
	p, err := NewParser(vars, "m/s", nil)
	if err != nil {
		t.Fatal(err)
	}
	fp, err := p.Parse(path)
	if err != nil {
		t.Fatal(err)
	}
	if nx, ny, _ := fp.Grid.Shape(); nx != 4 || ny != 3 {
		t.Errorf("shape: have %d×%d", nx, ny)
	}
	if _, _, _, _, ok := fp.Grid.Regular(); !ok {
		t.Error("regular 2-D coordinates not detected")
	}
	if len(fp.Fraction) != 12 || fp.Fraction[2] != 0.5 || fp.Fraction[11] != 0 {
		t.Errorf("fraction: have %v", fp.Fraction)
	}
}

func TestParseFloat32Coordinates(t *testing.T) {
	s := fixture.Xynthia()
	s.X0, s.Y0 = -4.8, 42
	s.Float32Coords = true
	p, _ := newTestParser(t)
	fp, err := p.Parse(writeFootprint(t, "float32.nc", s))
	if err != nil {
		t.Fatal(err)
	}
	x0, y0, dx, dy, ok := fp.Grid.Regular()
	if !ok {
		t.Fatal("single precision coordinates not detected as regular")
	}
	if math.Abs(x0+4.8) > 1.e-5 || math.Abs(y0-42) > 1.e-5 ||
		math.Abs(dx-0.1) > 1.e-6 || math.Abs(dy-0.1) > 1.e-6 {
		t.Errorf("grid: have (%g, %g, %g, %g)", x0, y0, dx, dy)
	}

	// Two columns east of the 100 × 100 grid at -5°, 42°.
	target := regularGrid(t, -5, 42, 0.1, 100, 100)
	a := &Aligner{Tolerance: 1.e-4, MaxDistanceFactor: 1}
	m, err := a.Align(fp.Grid, target)
	if err != nil {
		t.Fatal(err)
	}
	if m.Method != MethodRegular || m.Dropped != 200 {
		t.Errorf("have method %v with %d dropped, want regular with 200", m.Method, m.Dropped)
	}
	if m.Index[50*100+10] != 50*100+12 {
		t.Errorf("cell (50, 10) mapped to %d", m.Index[50*100+10])
	}
}

func TestParseMalformed(t *testing.T) {
	noTime := fixture.Xynthia()
	noTime.NoTime = true
	p, _ := newTestParser(t)
	_, err := p.Parse(writeFootprint(t, "notime.nc", noTime))
	var mErr *MalformedFileError
	if !errors.As(err, &mErr) {
		t.Fatalf("missing time: have %v, want *MalformedFileError", err)
	}
	if mErr.Var != "time" {
		t.Errorf("variable: have %q, want time", mErr.Var)
	}

	vars := DefaultVarNames()
	vars.Intensity = "gust"
	p2, err := NewParser(vars, "m/s", nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = p2.Parse(writeFootprint(t, "xynthia.nc", fixture.Xynthia()))
	if !errors.As(err, &mErr) {
		t.Errorf("missing intensity: have %v, want *MalformedFileError", err)
	}

	notNCF := filepath.Join(t.TempDir(), "bad.nc")
	if err := writeText(notNCF, "not a netcdf file"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Parse(notNCF); !errors.As(err, &mErr) {
		t.Errorf("invalid file: have %v, want *MalformedFileError", err)
	}

	if _, err := p.Parse(filepath.Join(t.TempDir(), "missing.nc")); err == nil || errors.As(err, &mErr) {
		t.Errorf("missing file: have %v, want an I/O error", err)
	}
}

func TestVarNamesValidate(t *testing.T) {
	v := DefaultVarNames()
	if err := v.Validate(); err != nil {
		t.Fatal(err)
	}
	v.Lat = ""
	var cErr *ConfigurationError
	if err := v.Validate(); !errors.As(err, &cErr) {
		t.Errorf("empty name: have %v", err)
	}
	v = DefaultVarNames()
	v.Fraction = v.Intensity
	if err := v.Validate(); !errors.As(err, &cErr) {
		t.Errorf("duplicate name: have %v", err)
	}
	if _, err := NewParser(v, "m/s", nil); err == nil {
		t.Error("NewParser accepted invalid names")
	}
}
