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
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
)

var centroidColumns = map[string][]string{
	"lon":       {"lon", "longitude", "x"},
	"lat":       {"lat", "latitude", "y"},
	"region_id": {"region_id", "region"},
}

// ReadCentroidsCSV reads centroids from CSV data with a header row
// naming lon and lat columns and, optionally, a region_id column.
// Empty and NaN region ids mark unclassified centroids.
func ReadCentroidsCSV(r io.Reader) (*GeoGrid, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("windstorm: reading centroids header: %w", err)
	}
	col := make(map[string]int)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for name, aliases := range centroidColumns {
			for _, alias := range aliases {
				if h == alias {
					col[name] = i
				}
			}
		}
	}
	for _, name := range []string{"lon", "lat"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("windstorm: centroids have no %s column", name)
		}
	}
	ri, hasRegion := col["region_id"]

	var points []geom.Point
	var regions []float64
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("windstorm: reading centroids: %w", err)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(rec[col["lon"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("windstorm: centroids line %d: invalid longitude: %w", line, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(rec[col["lat"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("windstorm: centroids line %d: invalid latitude: %w", line, err)
		}
		points = append(points, geom.Point{X: x, Y: y})
		if hasRegion {
			r, err := parseRegion(rec[ri])
			if err != nil {
				return nil, fmt.Errorf("windstorm: centroids line %d: invalid region id: %w", line, err)
			}
			regions = append(regions, r)
		}
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("windstorm: no centroids")
	}
	g := NewGeoGrid(points)
	if hasRegion {
		return g.WithRegions(regions)
	}
	return g, nil
}

// parseRegion returns NaN for an empty or NaN region id.
func parseRegion(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// WriteCentroidsCSV writes g in the format read by ReadCentroidsCSV.
func WriteCentroidsCSV(w io.Writer, g *GeoGrid) error {
	cw := csv.NewWriter(w)
	header := []string{"lon", "lat"}
	if g.RegionID != nil {
		header = append(header, "region_id")
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, p := range g.Points {
		rec := []string{
			strconv.FormatFloat(p.X, 'g', -1, 64),
			strconv.FormatFloat(p.Y, 'g', -1, 64),
		}
		if g.RegionID != nil {
			if r := g.RegionID[i]; math.IsNaN(r) {
				rec = append(rec, "")
			} else {
				rec = append(rec, strconv.FormatFloat(r, 'g', -1, 64))
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// OpenCentroids reads centroids from the CSV file at path.
func OpenCentroids(path string) (*GeoGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("windstorm: opening centroids: %w", err)
	}
	defer f.Close()
	return ReadCentroidsCSV(f)
}
