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

// Package fixture writes small synthetic storm footprint files and
// centroid tables for tests.
package fixture

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/ctessum/cdf"
)

// TimeUnits are the units of the time variable in the files written by
// Write.
const TimeUnits = "hours since 1949-12-01 00:00:00"

var timeRef = time.Date(1949, 12, 1, 0, 0, 0, 0, time.UTC)

// Footprint describes a footprint file.
type Footprint struct {
	// Nx and Ny are the numbers of columns and rows.
	Nx, Ny int

	// X0 and Y0 are the coordinates of the first cell center and Dx and
	// Dy are the cell spacing [degrees].
	X0, Y0, Dx, Dy float64

	// Jitter, when not zero, writes two-dimensional coordinate fields
	// with each point moved by up to ±Jitter degrees.
	Jitter float64

	// Curvilinear writes two-dimensional coordinate fields.
	Curvilinear bool

	// Name and Units are left out of the file when empty.
	Name, Units string

	Date time.Time

	// Records holds the gust field of each time record, in row-major
	// order.
	Records [][]float64

	// RecordDim writes time as the unlimited dimension.
	RecordDim bool

	// NoTimeDim writes the gust field with dimensions (latitude,
	// longitude) only.
	NoTimeDim bool

	// NoTime leaves out the time variable.
	NoTime bool

	// Float32Coords stores the coordinates in single precision.
	Float32Coords bool

	// Fill, when not zero, is written as the _FillValue of the gust
	// field. NaN values in Records are written as Fill.
	Fill float32

	// Fraction is written as a "fraction" variable when not nil.
	Fraction []float64
}

// Gust returns an nx × ny field with a single peak of the given speed
// at column ci and row cj, decaying to zero away from it.
func Gust(nx, ny, ci, cj int, peak float64) []float64 {
	v := make([]float64, nx*ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			d2 := float64((i-ci)*(i-ci) + (j-cj)*(j-cj))
			v[j*nx+i] = peak * math.Exp(-d2/800)
		}
	}
	return v
}

// Lothar returns a 100 × 100 footprint of the storm of 26 December
// 1999. The first row is not observed.
func Lothar() Footprint {
	v := Gust(100, 100, 40, 60, 42)
	for i := 0; i < 100; i++ {
		v[i] = math.NaN()
	}
	return Footprint{
		Nx: 100, Ny: 100,
		X0: -5, Y0: 42, Dx: 0.1, Dy: 0.1,
		Name:    "Lothar",
		Units:   "m/s",
		Date:    time.Date(1999, 12, 26, 6, 0, 0, 0, time.UTC),
		Records: [][]float64{v},
		Fill:    -999,
	}
}

// Xynthia returns a 100 × 100 footprint of the storm of 28 February
// 2010, on the grid of Lothar moved two cells east and one cell north.
func Xynthia() Footprint {
	return Footprint{
		Nx: 100, Ny: 100,
		X0: -4.8, Y0: 42.1, Dx: 0.1, Dy: 0.1,
		Name:    "Xynthia",
		Units:   "m/s",
		Date:    time.Date(2010, 2, 28, 0, 0, 0, 0, time.UTC),
		Records: [][]float64{Gust(100, 100, 20, 30, 38)},
	}
}

// Coordinates returns the longitude and latitude of every cell of s in
// row-major order.
func (s Footprint) Coordinates() (lon, lat []float64) {
	lon, lat = make([]float64, s.Nx*s.Ny), make([]float64, s.Nx*s.Ny)
	for j := 0; j < s.Ny; j++ {
		for i := 0; i < s.Nx; i++ {
			k := j*s.Nx + i
			lon[k] = s.X0 + float64(i)*s.Dx
			lat[k] = s.Y0 + float64(j)*s.Dy
			if s.Jitter != 0 {
				// Deterministic pseudo-random offsets.
				lon[k] += s.Jitter * math.Sin(float64(7*k+1))
				lat[k] += s.Jitter * math.Cos(float64(11*k+3))
			}
		}
	}
	return lon, lat
}

// Write writes the footprint described by s to path.
func Write(path string, s Footprint) error {
	if len(s.Records) == 0 {
		return fmt.Errorf("fixture: no records")
	}
	nrec := len(s.Records)
	timeLen := nrec
	if s.RecordDim {
		timeLen = 0
	}
	h := cdf.NewHeader(
		[]string{"time", "latitude", "longitude"},
		[]int{timeLen, s.Ny, s.Nx},
	)
	h.AddAttribute("", "Conventions", "CF-1.6")
	if s.Name != "" {
		h.AddAttribute("", "storm_name", s.Name)
	}
	curvilinear := s.Curvilinear || s.Jitter != 0
	var coordType interface{} = []float64{0}
	if s.Float32Coords {
		coordType = []float32{0}
	}
	if curvilinear {
		h.AddVariable("longitude", []string{"latitude", "longitude"}, coordType)
		h.AddVariable("latitude", []string{"latitude", "longitude"}, coordType)
	} else {
		h.AddVariable("longitude", []string{"longitude"}, coordType)
		h.AddVariable("latitude", []string{"latitude"}, coordType)
	}
	h.AddAttribute("longitude", "units", "degrees_east")
	h.AddAttribute("latitude", "units", "degrees_north")
	if !s.NoTime {
		h.AddVariable("time", []string{"time"}, []float64{0})
		h.AddAttribute("time", "units", TimeUnits)
		h.AddAttribute("time", "calendar", "gregorian")
	}
	dims := []string{"time", "latitude", "longitude"}
	if s.NoTimeDim {
		dims = dims[1:]
	}
	h.AddVariable("max_wind_gust", dims, []float32{0})
	if s.Units != "" {
		h.AddAttribute("max_wind_gust", "units", s.Units)
	}
	if s.Fill != 0 {
		h.AddAttribute("max_wind_gust", "_FillValue", []float32{s.Fill})
	}
	if s.Fraction != nil {
		h.AddVariable("fraction", dims, []float32{0})
	}
	h.Define()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	ff, err := cdf.Create(f, h)
	if err != nil {
		return err
	}

	lon, lat := s.Coordinates()
	if !curvilinear {
		lon, lat = lon[:s.Nx], make([]float64, s.Ny)
		for j := range lat {
			lat[j] = s.Y0 + float64(j)*s.Dy
		}
	}
	var lonVals, latVals interface{} = lon, lat
	if s.Float32Coords {
		lonVals, latVals = toFloat32(lon, 0), toFloat32(lat, 0)
	}
	if err := write(ff, "longitude", nil, lonVals); err != nil {
		return err
	}
	if err := write(ff, "latitude", nil, latVals); err != nil {
		return err
	}
	hours := s.Date.Sub(timeRef).Hours()
	for r, rec := range s.Records {
		if len(rec) != s.Nx*s.Ny {
			return fmt.Errorf("fixture: record %d has %d values; want %d", r, len(rec), s.Nx*s.Ny)
		}
		if !s.NoTime {
			if err := write(ff, "time", []int{r}, []float64{hours + float64(r)}); err != nil {
				return err
			}
		}
		start := []int{r, 0, 0}
		if s.NoTimeDim {
			start = nil
		}
		if err := write(ff, "max_wind_gust", start, toFloat32(rec, s.Fill)); err != nil {
			return err
		}
		if s.Fraction != nil {
			if err := write(ff, "fraction", start, toFloat32(s.Fraction, 0)); err != nil {
				return err
			}
		}
		if s.NoTimeDim {
			break
		}
	}
	return f.Close()
}

// write writes vals to variable v, starting at the given index of the
// outermost dimension.
func write(f *cdf.File, v string, start []int, vals interface{}) error {
	l := f.Header.Lengths(v)
	begin, end := make([]int, len(l)), make([]int, len(l))
	copy(end, l)
	if start != nil {
		begin[0] = start[0]
		end[0] = start[0] + 1
		for i := 1; i < len(end); i++ {
			end[i] = 0
		}
	}
	_, err := f.Writer(v, begin, end).Write(vals)
	return err
}

func toFloat32(v []float64, fill float32) []float32 {
	o := make([]float32, len(v))
	for i, x := range v {
		if math.IsNaN(x) && fill != 0 {
			o[i] = fill
		} else {
			o[i] = float32(x)
		}
	}
	return o
}

// UnclassifiedCentroids is the number of centroids without a region in
// the table written by WriteCentroids.
const UnclassifiedCentroids = 7515

// WriteCentroids writes a centroids table over the cells of s. All but
// the first n - UnclassifiedCentroids centroids have no region.
func WriteCentroids(w io.Writer, s Footprint) error {
	lon, lat := s.Coordinates()
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"lon", "lat", "region_id"}); err != nil {
		return err
	}
	classified := len(lon) - UnclassifiedCentroids
	for i := range lon {
		region := ""
		if i < classified {
			region = "250"
		}
		rec := []string{
			strconv.FormatFloat(lon[i], 'g', -1, 64),
			strconv.FormatFloat(lat[i], 'g', -1, 64),
			region,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
