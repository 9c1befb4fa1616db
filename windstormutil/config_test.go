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


package windstormutil

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/windstorm"
)

func TestAssemblerConfig(t *testing.T) {
	os.Setenv("WINDSTORM_TEST_OMIT", "fp_bad.nc")
	defer os.Unsetenv("WINDSTORM_TEST_OMIT")

	cfg := viper.New()
	cfg.Set("Vars.Intensity", "FX")
	cfg.Set("Vars.Lon", "lon")
	cfg.Set("Vars.Lat", "lat")
	cfg.Set("Vars.Time", "time")
	cfg.Set("Vars.NameAttr", "storm_name")
	cfg.Set("Vars.UnitsAttr", "units")
	cfg.Set("HazType", "WS")
	cfg.Set("DefaultUnits", "m/s")
	cfg.Set("IntensityThreshold", "20")
	cfg.Set("Tolerance", 0.001)
	cfg.Set("MaxDistanceFactor", "1.5")
	cfg.Set("Workers", "2")
	cfg.Set("SkipInvalid", true)
	cfg.Set("Omit", []interface{}{"$WINDSTORM_TEST_OMIT"})

	c, err := AssemblerConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := windstorm.Config{
		Vars: windstorm.VarNames{
			Intensity: "FX",
			Lon:       "lon",
			Lat:       "lat",
			Time:      "time",
			NameAttr:  "storm_name",
			UnitsAttr: "units",
		},
		HazType:            "WS",
		DefaultUnits:       "m/s",
		IntensityThreshold: 20,
		Tolerance:          0.001,
		MaxDistanceFactor:  1.5,
		SkipInvalid:        true,
		Workers:            2,
		Omit:               []string{"fp_bad.nc"},
	}
	if !reflect.DeepEqual(c, want) {
		t.Errorf("have %+v\nwant %+v", c, want)
	}

	cfg.Set("IntensityThreshold", "fast")
	if _, err := AssemblerConfig(cfg); err == nil {
		t.Error("expected an error for an invalid threshold")
	}
	cfg.Set("IntensityThreshold", -1)
	if _, err := AssemblerConfig(cfg); err == nil {
		t.Error("expected an error for a negative threshold")
	}
}

func TestFootprintPaths(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"fp_b.nc", "fp_a.nc", "notes.txt"} {
		if err := ioutil.WriteFile(filepath.Join(dir, f), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	a, b := filepath.Join(dir, "fp_a.nc"), filepath.Join(dir, "fp_b.nc")
	d := testDownloader(t)
	ctx := context.Background()

	t.Run("dir", func(t *testing.T) {
		files, err := footprintPaths(ctx, d, []string{dir})
		if err != nil {
			t.Fatal(err)
		}
		if want := []string{a, b}; !reflect.DeepEqual(files, want) {
			t.Errorf("%v != %v", files, want)
		}
	})
	t.Run("order", func(t *testing.T) {
		files, err := footprintPaths(ctx, d, []string{b, filepath.Join(dir, "fp_*.nc"), ""})
		if err != nil {
			t.Fatal(err)
		}
		if want := []string{b, a, b}; !reflect.DeepEqual(files, want) {
			t.Errorf("%v != %v", files, want)
		}
	})
	t.Run("no match", func(t *testing.T) {
		if _, err := footprintPaths(ctx, d, []string{filepath.Join(dir, "*.grib")}); err == nil {
			t.Error("expected an error")
		}
	})
	t.Run("empty", func(t *testing.T) {
		if _, err := footprintPaths(ctx, d, nil); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestCheckOutputFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := checkOutputFile(""); err == nil {
		t.Error("expected an error for an empty path")
	}
	if f, err := checkOutputFile(filepath.Join(dir, "hazard.nc")); err != nil || f != filepath.Join(dir, "hazard.nc") {
		t.Errorf("%s, %v", f, err)
	}
	if _, err := checkOutputFile(filepath.Join(dir, "missing", "hazard.nc")); err == nil {
		t.Error("expected an error for a missing directory")
	}
	if f, err := checkAuxFile(""); err != nil || f != "" {
		t.Errorf("%q, %v", f, err)
	}
}

func TestNewLogger(t *testing.T) {
	log, err := newLogger("debug")
	if err != nil {
		t.Fatal(err)
	}
	if log.Level != logrus.DebugLevel {
		t.Errorf("level %v", log.Level)
	}
	if _, err := newLogger("loud"); err == nil {
		t.Error("expected an error")
	}
}
