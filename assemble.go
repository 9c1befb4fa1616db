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
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// Config holds the settings for footprint ingestion.
type Config struct {
	Vars VarNames

	// HazType is the hazard type code given to the output.
	HazType string

	// DefaultUnits are the intensity units assumed for files that
	// don't specify them.
	DefaultUnits string

	// IntensityThreshold is the gust speed at or below which a cell is
	// not stored.
	IntensityThreshold float64

	// Tolerance is the largest coordinate difference [degrees] at which
	// two points are treated as the same location.
	Tolerance float64

	// MaxDistanceFactor bounds nearest-neighbor alignment, as a multiple
	// of the target cell size.
	MaxDistanceFactor float64

	// SkipInvalid causes malformed files and files that can't be aligned
	// to be skipped with a warning instead of failing the ingestion.
	SkipInvalid bool

	// Workers is the number of files processed concurrently. Zero means
	// one per available processor.
	Workers int

	// Omit lists files, by base name or full path, to leave out.
	Omit []string
}

// DefaultConfig returns the configuration for WISC observed storm
// footprints.
func DefaultConfig() Config {
	return Config{
		Vars:               DefaultVarNames(),
		HazType:            "WS",
		DefaultUnits:       "m/s",
		IntensityThreshold: 14.7,
		Tolerance:          1.e-4,
		MaxDistanceFactor:  1,
	}
}

// Validate returns a *ConfigurationError if c is not usable.
func (c Config) Validate() error {
	if err := c.Vars.Validate(); err != nil {
		return err
	}
	switch {
	case c.HazType == "":
		return &ConfigurationError{Reason: "HazType is empty"}
	case c.IntensityThreshold < 0:
		return &ConfigurationError{Reason: fmt.Sprintf("IntensityThreshold %g is negative", c.IntensityThreshold)}
	case c.Tolerance < 0:
		return &ConfigurationError{Reason: fmt.Sprintf("Tolerance %g is negative", c.Tolerance)}
	case c.MaxDistanceFactor <= 0:
		return &ConfigurationError{Reason: fmt.Sprintf("MaxDistanceFactor %g must be positive", c.MaxDistanceFactor)}
	case c.Workers < 0:
		return &ConfigurationError{Reason: fmt.Sprintf("Workers %d is negative", c.Workers)}
	}
	return nil
}

// An Option customizes an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(a *Assembler) { a.log = log }
}

// WithMetrics sets the metrics that record ingestion progress.
func WithMetrics(m *Metrics) Option {
	return func(a *Assembler) { a.metrics = m }
}

// WithGridCache sets the cache used to share identical native grids,
// which allows grids to be shared across calls to Ingest.
func WithGridCache(c *GridCache) Option {
	return func(a *Assembler) { a.grids = c }
}

// Assembler builds hazards from footprint files.
type Assembler struct {
	cfg     Config
	parser  *Parser
	aligner *Aligner
	log     logrus.FieldLogger
	metrics *Metrics
	grids   *GridCache
}

// NewAssembler returns an assembler with the given configuration.
func NewAssembler(cfg Config, opts ...Option) (*Assembler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(-1)
	}
	a := &Assembler{
		cfg: cfg,
		aligner: &Aligner{
			Tolerance:         cfg.Tolerance,
			MaxDistanceFactor: cfg.MaxDistanceFactor,
		},
		log: logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.grids == nil {
		a.grids = NewGridCache(64)
	}
	var err error
	if a.parser, err = NewParser(cfg.Vars, cfg.DefaultUnits, a.log); err != nil {
		return nil, err
	}
	return a, nil
}

// Ingest reads the given footprint files and stacks them, in order,
// into a hazard. The target grid is centroids if it is not nil,
// otherwise the grid of refRaster if it is not empty, otherwise the
// grid of the first file. When both centroids and refRaster are given,
// the reference raster must match the centroids exactly.
func (a *Assembler) Ingest(ctx context.Context, files []string, centroids *GeoGrid, refRaster string) (*Hazard, error) {
	files = a.omit(files)
	if len(files) == 0 {
		return nil, &ConfigurationError{Reason: "no footprint files to ingest"}
	}
	target, strategy, err := a.resolveTarget(ctx, files, centroids, refRaster)
	if err != nil {
		return nil, err
	}
	log := a.log.WithFields(logrus.Fields{
		"strategy":  strategy,
		"centroids": target.Size(),
		"files":     len(files),
	})
	log.Info("ingesting footprints")

	pool := pond.NewResultPool[*fileResult](a.cfg.Workers)
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)
	for _, f := range files {
		f := f
		group.SubmitErr(func() (*fileResult, error) {
			return a.ingestFile(ctx, f, target)
		})
	}
	results, err := group.Wait()
	if err != nil {
		return nil, err
	}

	h, err := a.stack(results, target, strategy)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"events":   h.NumEvents(),
		"stored":   len(h.Intensity.Elements),
		"warnings": len(h.Warnings),
	}).Info("finished ingesting footprints")
	return h, nil
}

// omit removes the files listed in the configuration.
func (a *Assembler) omit(files []string) []string {
	if len(a.cfg.Omit) == 0 {
		return files
	}
	skip := make(map[string]bool)
	for _, o := range a.cfg.Omit {
		skip[o] = true
	}
	var out []string
	for _, f := range files {
		if skip[f] || skip[filepath.Base(f)] {
			a.log.WithField("file", f).Info("omitting footprint file")
			continue
		}
		out = append(out, f)
	}
	return out
}

// resolveTarget chooses the grid that all footprints are aligned onto.
func (a *Assembler) resolveTarget(ctx context.Context, files []string, centroids *GeoGrid, refRaster string) (*GeoGrid, GridStrategy, error) {
	switch {
	case centroids != nil:
		if centroids.Size() == 0 {
			return nil, "", &ConfigurationError{Reason: "no centroids"}
		}
		if refRaster != "" {
			ref, err := a.parser.ParseGrid(refRaster)
			if err != nil {
				return nil, "", err
			}
			if ref.AlignTo(centroids, a.cfg.Tolerance) == nil {
				return nil, "", &ConfigurationError{
					Reason: fmt.Sprintf("reference raster %s doesn't match the centroids", refRaster),
				}
			}
		}
		return centroids, StrategyCentroids, nil
	case refRaster != "":
		ref, err := a.parser.ParseGrid(refRaster)
		if err != nil {
			return nil, "", err
		}
		ref, err = a.grids.Canonical(ctx, ref)
		if err != nil {
			return nil, "", err
		}
		return ref, StrategyReferenceRaster, nil
	default:
		for _, f := range files {
			g, err := a.parser.ParseGrid(f)
			if err != nil {
				if a.skippable(err) {
					a.log.WithFields(logrus.Fields{"file": f, "error": err}).Warn("can't read grid; trying next file")
					continue
				}
				return nil, "", err
			}
			g, err = a.grids.Canonical(ctx, g)
			if err != nil {
				return nil, "", err
			}
			return g, StrategyOwnGrid, nil
		}
		return nil, "", fmt.Errorf("windstorm: none of the %d footprint files has a readable grid", len(files))
	}
}

// skippable reports whether err should drop a file rather than fail the
// ingestion.
func (a *Assembler) skippable(err error) bool {
	if !a.cfg.SkipInvalid {
		return false
	}
	var mErr *MalformedFileError
	var aErr *AlignmentError
	return errors.As(err, &mErr) || errors.As(err, &aErr)
}

// cell is a stored value of an event row.
type cell struct {
	intensity, fraction float64
}

// fileResult is the outcome of processing one footprint file. Exactly
// one of footprint and warning is set.
type fileResult struct {
	path      string
	footprint *Footprint
	cells     map[int]cell
	warning   string
}

func (a *Assembler) ingestFile(ctx context.Context, path string, target *GeoGrid) (*fileResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	fp, err := a.parser.Parse(path)
	if err != nil {
		return a.skip(path, err)
	}
	native, err := a.grids.Canonical(ctx, fp.Grid)
	if err != nil {
		return nil, err
	}
	mapping, err := a.aligner.Align(native, target)
	if err != nil {
		var aErr *AlignmentError
		if errors.As(err, &aErr) && aErr.Path == "" {
			aErr.Path = path
		}
		return a.skip(path, err)
	}
	cells := a.scatter(fp, mapping)
	a.metrics.observeFile(mapping, start)
	a.log.WithFields(logrus.Fields{
		"file":    path,
		"event":   fp.Name,
		"method":  mapping.Method,
		"mapped":  mapping.Mapped,
		"dropped": mapping.Dropped,
		"stored":  len(cells),
	}).Debug("aligned footprint")
	return &fileResult{path: path, footprint: fp, cells: cells}, nil
}

func (a *Assembler) skip(path string, err error) (*fileResult, error) {
	if !a.skippable(err) {
		return nil, err
	}
	a.metrics.skipFile()
	a.log.WithFields(logrus.Fields{"file": path, "error": err}).Warn("skipping footprint file")
	return &fileResult{path: path, warning: fmt.Sprintf("skipped %s: %v", path, err)}, nil
}

// scatter moves the footprint values onto the target centroids. Cells
// that are unobserved, unmapped, at or below the intensity threshold,
// or have a fraction of zero are left out. When several native cells
// map onto the same centroid, the largest intensity wins.
func (a *Assembler) scatter(fp *Footprint, m *Mapping) map[int]cell {
	cells := make(map[int]cell)
	for i, t := range m.Index {
		if t < 0 {
			continue
		}
		v := fp.Intensity[i]
		if math.IsNaN(v) || v <= a.cfg.IntensityThreshold {
			continue
		}
		f := 1.
		if fp.Fraction != nil {
			f = fp.Fraction[i]
			if math.IsNaN(f) {
				f = 1
			}
			if f == 0 {
				continue
			}
		}
		if c, ok := cells[t]; ok && c.intensity >= v {
			continue
		}
		cells[t] = cell{intensity: v, fraction: f}
	}
	return cells
}

// stack builds the hazard from the per-file results, in input order.
func (a *Assembler) stack(results []*fileResult, target *GeoGrid, strategy GridStrategy) (*Hazard, error) {
	h := &Hazard{
		HazType:   a.cfg.HazType,
		Centroids: target,
		Strategy:  strategy,
	}
	var rows []map[int]cell
	var years []int
	for _, r := range results {
		if r.footprint == nil {
			h.Warnings = append(h.Warnings, r.warning)
			continue
		}
		fp := r.footprint
		if h.Units == "" {
			h.Units = fp.Units
		} else if fp.Units != h.Units {
			msg := fmt.Sprintf("%s has units %q; expected %q", r.path, fp.Units, h.Units)
			a.log.WithField("file", r.path).Warn(msg)
			h.Warnings = append(h.Warnings, msg)
		}
		rows = append(rows, r.cells)
		h.EventID = append(h.EventID, len(rows))
		h.Date = append(h.Date, Ordinal(fp.Date))
		h.EventName = append(h.EventName, fp.Name)
		h.Orig = append(h.Orig, true)
		h.Files = append(h.Files, r.path)
		years = append(years, fp.Date.Year())
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("windstorm: all %d footprint files were skipped", len(results))
	}
	h.Frequency = frequency(len(rows), years)

	m := target.Size()
	h.Intensity = sparse.ZerosSparse(len(rows), m)
	h.Fraction = sparse.ZerosSparse(len(rows), m)
	for e, row := range rows {
		for t, c := range row {
			h.Intensity.Set(c.intensity, e, t)
			h.Fraction.Set(c.fraction, e, t)
		}
	}
	return h, nil
}
