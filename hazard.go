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

// Package windstorm ingests observed windstorm footprints into a hazard
// collection: a sparse event × centroid matrix of gust intensities and a
// matching matrix of affected fractions, with per-event metadata.
//
// Footprints are read from NetCDF files. Each file is parsed on its own
// native grid, which is aligned onto a common target grid: the grid of
// the first file, the grid of a reference raster, or a set of centroids
// supplied by the caller.
package windstorm

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/sparse"
)

// GridStrategy records how the target grid of a hazard was chosen.
type GridStrategy string

// These are the supported grid strategies.
const (
	StrategyOwnGrid         GridStrategy = "own-grid"
	StrategyReferenceRaster GridStrategy = "reference-raster"
	StrategyCentroids       GridStrategy = "centroids"
)

// Hazard is a collection of windstorm events on a common set of
// centroids.
type Hazard struct {
	// HazType is the hazard type code, "WS" for windstorms.
	HazType string

	// Units are the units of Intensity.
	Units string

	// EventID holds the event identifiers, 1..N in input order.
	EventID []int

	// Date holds the event dates as proleptic Gregorian ordinals.
	Date []int

	EventName []string

	// Frequency is the annual frequency of each event.
	Frequency []float64

	// Orig is true for observed (as opposed to synthetic) events.
	Orig []bool

	// Files holds the source file of each event.
	Files []string

	// Intensity and Fraction have shape [N, M], where N is the number
	// of events and M is the number of centroids. They share a sparsity
	// pattern.
	Intensity *sparse.SparseArray
	Fraction  *sparse.SparseArray

	Centroids *GeoGrid
	Strategy  GridStrategy

	// Warnings lists the problems that were skipped during ingestion.
	Warnings []string
}

// NumEvents returns the number of events in h.
func (h *Hazard) NumEvents() int { return len(h.EventID) }

// Check returns an error if h is internally inconsistent.
func (h *Hazard) Check() error {
	n := len(h.EventID)
	lengths := map[string]int{
		"Date":      len(h.Date),
		"EventName": len(h.EventName),
		"Frequency": len(h.Frequency),
		"Orig":      len(h.Orig),
		"Files":     len(h.Files),
	}
	for name, l := range lengths {
		if l != n {
			return fmt.Errorf("windstorm: hazard has %d events but %d values of %s", n, l, name)
		}
	}
	for i, id := range h.EventID {
		if id != i+1 {
			return fmt.Errorf("windstorm: event %d has id %d", i, id)
		}
	}
	if h.Centroids == nil {
		return fmt.Errorf("windstorm: hazard has no centroids")
	}
	m := h.Centroids.Size()
	if h.Centroids.RegionID != nil && len(h.Centroids.RegionID) != m {
		return fmt.Errorf("windstorm: %d region ids for %d centroids", len(h.Centroids.RegionID), m)
	}
	for name, a := range map[string]*sparse.SparseArray{"intensity": h.Intensity, "fraction": h.Fraction} {
		if a == nil {
			return fmt.Errorf("windstorm: hazard has no %s matrix", name)
		}
		if len(a.Shape) != 2 || a.Shape[0] != n || a.Shape[1] != m {
			return fmt.Errorf("windstorm: %s has shape %v; want [%d %d]", name, a.Shape, n, m)
		}
		for i, v := range a.Elements {
			if v == 0 || math.IsNaN(v) {
				return fmt.Errorf("windstorm: %s stores %g at index %d", name, v, i)
			}
		}
	}
	if len(h.Intensity.Elements) != len(h.Fraction.Elements) {
		return fmt.Errorf("windstorm: intensity has %d stored values but fraction has %d",
			len(h.Intensity.Elements), len(h.Fraction.Elements))
	}
	for i := range h.Intensity.Elements {
		if _, ok := h.Fraction.Elements[i]; !ok {
			return fmt.Errorf("windstorm: intensity and fraction sparsity differ at index %d", i)
		}
	}
	return nil
}

// Row returns the stored centroid ids, intensities and fractions of
// event e (counting from zero), ordered by centroid id.
func (h *Hazard) Row(e int) (cols []int, intensity, fraction []float64) {
	m := h.Centroids.Size()
	lo, hi := e*m, (e+1)*m
	for i := range h.Intensity.Elements {
		if i >= lo && i < hi {
			cols = append(cols, i-lo)
		}
	}
	sort.Ints(cols)
	intensity = make([]float64, len(cols))
	fraction = make([]float64, len(cols))
	for k, c := range cols {
		intensity[k] = h.Intensity.Elements[lo+c]
		fraction[k] = h.Fraction.Elements[lo+c]
	}
	return cols, intensity, fraction
}

// EventRow holds the stored cells of one event, ordered by centroid id.
type EventRow struct {
	Cols                []int
	Intensity, Fraction []float64
}

// Rows returns the stored cells of every event. Unlike calling Row for
// each event, it visits the stored elements once.
func (h *Hazard) Rows() []EventRow {
	m := h.Centroids.Size()
	rows := make([]EventRow, h.NumEvents())
	if m == 0 {
		return rows
	}
	for i := range h.Intensity.Elements {
		e := i / m
		if e < len(rows) {
			rows[e].Cols = append(rows[e].Cols, i-e*m)
		}
	}
	for e := range rows {
		r := &rows[e]
		sort.Ints(r.Cols)
		r.Intensity = make([]float64, len(r.Cols))
		r.Fraction = make([]float64, len(r.Cols))
		for k, c := range r.Cols {
			r.Intensity[k] = h.Intensity.Elements[e*m+c]
			r.Fraction[k] = h.Fraction.Elements[e*m+c]
		}
	}
	return rows
}

// earthRadius is the mean radius of the Earth [km].
const earthRadius = 6371.

// SSI returns the storm severity index of each event: the sum over the
// centroids where the intensity is at least threshold of the cell area
// [km²] times the cube of the intensity.
func (h *Hazard) SSI(threshold float64) []float64 {
	kmPerDegree := earthRadius * math.Pi / 180
	w, ht := h.Centroids.CellSize(), h.Centroids.CellSize()
	if _, _, dx, dy, ok := h.Centroids.Regular(); ok {
		w, ht = math.Abs(dx), math.Abs(dy)
	}
	m := h.Centroids.Size()
	ssi := make([]float64, h.NumEvents())
	for i, v := range h.Intensity.Elements {
		if v < threshold {
			continue
		}
		e, c := i/m, i%m
		lat := h.Centroids.Points[c].Y * math.Pi / 180
		area := w * kmPerDegree * ht * kmPerDegree * math.Cos(lat)
		ssi[e] += area * v * v * v
	}
	return ssi
}

// frequency returns the annual frequency assigned to each of n observed
// events spanning the given years.
func frequency(n int, years []int) []float64 {
	f := make([]float64, n)
	if len(years) == 0 {
		return f
	}
	first, last := years[0], years[0]
	for _, y := range years {
		if y < first {
			first = y
		}
		if y > last {
			last = y
		}
	}
	span := last - first
	if span < 1 {
		span = 1
	}
	for i := range f {
		f[i] = 1 / float64(span)
	}
	return f
}
