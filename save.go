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
	"os"
	"sort"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

// Save writes h to a NetCDF file at path. The intensity and fraction
// matrices are stored in coordinate format, ordered by event and then
// by centroid.
func (h *Hazard) Save(path string) error {
	if err := h.Check(); err != nil {
		return err
	}
	n, m := h.NumEvents(), h.Centroids.Size()
	if n == 0 {
		return fmt.Errorf("windstorm: saving hazard: no events")
	}
	idx := make([]int, 0, len(h.Intensity.Elements))
	for i := range h.Intensity.Elements {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	nameLen, fileLen := maxLen(h.EventName), maxLen(h.Files)
	header := cdf.NewHeader(
		[]string{"event", "centroid", "nnz", "name_len", "file_len"},
		// A zero length would make a dimension unlimited.
		[]int{n, m, imax(len(idx), 1), nameLen, fileLen},
	)
	header.AddAttribute("", "haz_type", h.HazType)
	header.AddAttribute("", "units", h.Units)
	header.AddAttribute("", "grid_strategy", string(h.Strategy))
	header.AddAttribute("", "nnz", []int32{int32(len(idx))})
	nx, ny, _ := h.Centroids.Shape()
	header.AddAttribute("", "grid_shape", []int32{int32(nx), int32(ny)})

	header.AddVariable("event_id", []string{"event"}, []int32{0})
	header.AddVariable("date", []string{"event"}, []int32{0})
	header.AddAttribute("date", "description", "proleptic Gregorian ordinal; 0001-01-01 is 1")
	header.AddVariable("frequency", []string{"event"}, []float64{0})
	header.AddAttribute("frequency", "units", "1/year")
	header.AddVariable("orig", []string{"event"}, []int32{0})
	header.AddVariable("event_name", []string{"event", "name_len"}, "")
	header.AddVariable("file_name", []string{"event", "file_len"}, "")
	header.AddVariable("lon", []string{"centroid"}, []float64{0})
	header.AddAttribute("lon", "units", "degrees_east")
	header.AddVariable("lat", []string{"centroid"}, []float64{0})
	header.AddAttribute("lat", "units", "degrees_north")
	if h.Centroids.RegionID != nil {
		header.AddVariable("region_id", []string{"centroid"}, []float64{0})
	}
	header.AddVariable("row", []string{"nnz"}, []int32{0})
	header.AddVariable("col", []string{"nnz"}, []int32{0})
	header.AddVariable("intensity", []string{"nnz"}, []float64{0})
	header.AddAttribute("intensity", "units", h.Units)
	header.AddVariable("fraction", []string{"nnz"}, []float64{0})
	header.Define()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("windstorm: saving hazard: %w", err)
	}
	ff, err := cdf.Create(f, header)
	if err != nil {
		f.Close()
		return fmt.Errorf("windstorm: saving hazard: %w", err)
	}

	orig := make([]int32, n)
	for i, o := range h.Orig {
		if o {
			orig[i] = 1
		}
	}
	rows := make([]int32, imax(len(idx), 1))
	cols := make([]int32, len(rows))
	intensity := make([]float64, len(rows))
	fraction := make([]float64, len(rows))
	for k, i := range idx {
		rows[k], cols[k] = int32(i/m), int32(i%m)
		intensity[k] = h.Intensity.Elements[i]
		fraction[k] = h.Fraction.Elements[i]
	}
	data := []struct {
		name string
		vals interface{}
	}{
		{"event_id", toInt32(h.EventID)},
		{"date", toInt32(h.Date)},
		{"frequency", h.Frequency},
		{"orig", orig},
		{"event_name", padStrings(h.EventName, nameLen)},
		{"file_name", padStrings(h.Files, fileLen)},
		{"lon", h.Centroids.Lon()},
		{"lat", h.Centroids.Lat()},
		{"row", rows},
		{"col", cols},
		{"intensity", intensity},
		{"fraction", fraction},
	}
	if h.Centroids.RegionID != nil {
		data = append(data, struct {
			name string
			vals interface{}
		}{"region_id", h.Centroids.RegionID})
	}
	for _, d := range data {
		if err := writeNCF(ff, d.name, d.vals); err != nil {
			f.Close()
			return fmt.Errorf("windstorm: saving hazard variable %s: %w", d.name, err)
		}
	}
	return f.Close()
}

// writeNCF writes all of the values of variable v.
func writeNCF(f *cdf.File, v string, vals interface{}) error {
	end := f.Header.Lengths(v)
	start := make([]int, len(end))
	_, err := f.Writer(v, start, end).Write(vals)
	return err
}

// ReadHazard reads a hazard that was written by Save.
func ReadHazard(path string) (*Hazard, error) {
	n, err := openNCF(path)
	if err != nil {
		return nil, err
	}
	defer n.Close()

	h := new(Hazard)
	h.HazType, _ = n.stringAttr("", "haz_type")
	h.Units, _ = n.stringAttr("", "units")
	strategy, _ := n.stringAttr("", "grid_strategy")
	h.Strategy = GridStrategy(strategy)

	vars := make(map[string][]float64)
	for _, v := range []string{"event_id", "date", "frequency", "orig", "lon", "lat", "row", "col", "intensity", "fraction"} {
		if vars[v], err = n.readAll(v); err != nil {
			return nil, err
		}
	}
	h.EventID = toInt(vars["event_id"])
	h.Date = toInt(vars["date"])
	h.Frequency = vars["frequency"]
	for _, o := range vars["orig"] {
		h.Orig = append(h.Orig, o != 0)
	}
	if h.EventName, err = n.readStrings("event_name"); err != nil {
		return nil, err
	}
	if h.Files, err = n.readStrings("file_name"); err != nil {
		return nil, err
	}

	lon, lat := vars["lon"], vars["lat"]
	var shape []int
	if s, ok := n.ff.Header.GetAttribute("", "grid_shape").([]int32); ok && len(s) == 2 {
		shape = []int{int(s[0]), int(s[1])}
	}
	if len(shape) == 2 && shape[0] > 0 && shape[1] > 0 {
		if h.Centroids, err = NewGeoGridFromNative(lon, lat, shape[0], shape[1]); err != nil {
			return nil, &MalformedFileError{Path: path, Err: err}
		}
	} else {
		points := make([]geom.Point, len(lon))
		for i := range lon {
			points[i] = geom.Point{X: lon[i], Y: lat[i]}
		}
		h.Centroids = NewGeoGrid(points)
	}
	if n.has("region_id") {
		region, err := n.readAll("region_id")
		if err != nil {
			return nil, err
		}
		if h.Centroids, err = h.Centroids.WithRegions(region); err != nil {
			return nil, &MalformedFileError{Path: path, Err: err}
		}
	}

	nnz := len(vars["row"])
	if v, ok := n.floatAttr("", "nnz"); ok {
		nnz = int(v)
	}
	ne, m := len(h.EventID), h.Centroids.Size()
	h.Intensity = sparse.ZerosSparse(ne, m)
	h.Fraction = sparse.ZerosSparse(ne, m)
	for k := 0; k < nnz; k++ {
		r, c := int(vars["row"][k]), int(vars["col"][k])
		if r < 0 || r >= ne || c < 0 || c >= m {
			return nil, malformed(path, "row", "index (%d, %d) out of range", r, c)
		}
		h.Intensity.Set(vars["intensity"][k], r, c)
		h.Fraction.Set(vars["fraction"][k], r, c)
	}
	if err := h.Check(); err != nil {
		return nil, &MalformedFileError{Path: path, Err: err}
	}
	return h, nil
}

func maxLen(s []string) int {
	l := 1
	for _, v := range s {
		l = imax(l, len(v))
	}
	return l
}

func padStrings(s []string, width int) []uint8 {
	out := make([]uint8, len(s)*width)
	for i, v := range s {
		copy(out[i*width:], v)
	}
	return out
}

func toInt32(v []int) []int32 {
	out := make([]int32, len(v))
	for i, x := range v {
		out[i] = int32(x)
	}
	return out
}

func toInt(v []float64) []int {
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(math.Round(x))
	}
	return out
}

func imax(a, b int) int {
	if a > b {
		return a
	}
	return b
}
