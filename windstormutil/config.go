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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/windstorm"
	"github.com/spf13/cast"
)

// AssemblerConfig builds an ingestion configuration from the
// values in cfg.
func AssemblerConfig(cfg *viper.Viper) (windstorm.Config, error) {
	c := windstorm.Config{
		Vars: windstorm.VarNames{
			Intensity: os.ExpandEnv(cfg.GetString("Vars.Intensity")),
			Lon:       os.ExpandEnv(cfg.GetString("Vars.Lon")),
			Lat:       os.ExpandEnv(cfg.GetString("Vars.Lat")),
			Time:      os.ExpandEnv(cfg.GetString("Vars.Time")),
			Fraction:  os.ExpandEnv(cfg.GetString("Vars.Fraction")),
			NameAttr:  os.ExpandEnv(cfg.GetString("Vars.NameAttr")),
			UnitsAttr: os.ExpandEnv(cfg.GetString("Vars.UnitsAttr")),
		},
		HazType:      os.ExpandEnv(cfg.GetString("HazType")),
		DefaultUnits: os.ExpandEnv(cfg.GetString("DefaultUnits")),
		SkipInvalid:  cfg.GetBool("SkipInvalid"),
	}
	var err error
	if c.IntensityThreshold, err = cast.ToFloat64E(cfg.Get("IntensityThreshold")); err != nil {
		return c, fmt.Errorf("windstormutil: invalid IntensityThreshold: %v", err)
	}
	if c.Tolerance, err = cast.ToFloat64E(cfg.Get("Tolerance")); err != nil {
		return c, fmt.Errorf("windstormutil: invalid Tolerance: %v", err)
	}
	if c.MaxDistanceFactor, err = cast.ToFloat64E(cfg.Get("MaxDistanceFactor")); err != nil {
		return c, fmt.Errorf("windstormutil: invalid MaxDistanceFactor: %v", err)
	}
	if c.Workers, err = cast.ToIntE(cfg.Get("Workers")); err != nil {
		return c, fmt.Errorf("windstormutil: invalid Workers: %v", err)
	}
	omit, err := cast.ToStringSliceE(cfg.Get("Omit"))
	if err != nil {
		return c, fmt.Errorf("windstormutil: invalid Omit: %v", err)
	}
	c.Omit = expandStringSlice(omit)
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// footprintPaths resolves the Footprints setting into a list of local
// files. Remote files are downloaded, directories are replaced by the
// netCDF files they contain and glob patterns are expanded. Each
// directory and pattern contributes its matches in lexical order.
func footprintPaths(ctx context.Context, d *downloader, entries []string) ([]string, error) {
	var files []string
	for _, e := range expandStringSlice(entries) {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if IsBlob(e) || strings.HasPrefix(e, "http://") || strings.HasPrefix(e, "https://") {
			f, err := d.maybeDownload(ctx, e)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
			continue
		}
		if fi, err := os.Stat(e); err == nil && fi.IsDir() {
			e = filepath.Join(e, "*.nc")
		}
		if !strings.ContainsAny(e, "*?[") {
			files = append(files, e)
			continue
		}
		matches, err := filepath.Glob(e)
		if err != nil {
			return nil, fmt.Errorf("windstormutil: invalid Footprints pattern %q: %v", e, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("windstormutil: no footprint files match %q", e)
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("windstormutil: you need to specify at least one footprint file " +
			"(for example: Footprints=[\"footprints/fp_*.nc\"])")
	}
	return files, nil
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expand any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an output file configuration variable (for example: OutputFile="hazard.nc")`)
	}
	return checkAuxFile(f)
}

// checkAuxFile is like checkOutputFile, but an empty path is allowed
// and means the file is not written.
func checkAuxFile(f string) (string, error) {
	f = os.ExpandEnv(f)
	if f == "" {
		return f, nil
	}
	if IsBlob(f) {
		bucket, _, err := splitBlob(f)
		if err != nil {
			return f, err
		}
		if _, err = OpenBucket(context.TODO(), bucket); err != nil {
			return f, fmt.Errorf("windstormutil: error when checking output location %s: %v", f, err)
		}
		return f, nil
	}
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("windstormutil: the output directory for %s doesn't exist: %v", f, err)
	}
	return f, nil
}

// newLogger returns a logger that writes text with full timestamps at
// the given level.
func newLogger(level string) (*logrus.Logger, error) {
	log := logrus.New()
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	if level == "" {
		return log, nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("windstormutil: invalid LogLevel: %v", err)
	}
	log.Level = lvl
	return log, nil
}
