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
	"sort"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/spatialmodel/windstorm/internal/hash"
	"gonum.org/v1/gonum/floats"
)

// GeoGrid is an ordered set of centroids. The identifier of each centroid
// is its position in Points. A GeoGrid must not be modified after it
// has been created.
type GeoGrid struct {
	// Points are the centroid locations, with X as longitude and
	// Y as latitude [degrees].
	Points []geom.Point

	// RegionID optionally classifies each centroid. NaN marks a centroid
	// that is outside of any known region. RegionID is nil when no
	// classification is available.
	RegionID []float64

	// nx and ny are the numbers of columns and rows of a structured
	// grid. They are zero for unstructured point sets.
	nx, ny int

	// regular is true when the grid is a structured lon/lat grid with
	// constant spacing, in which case the center of cell (row j, column i)
	// is at (x0 + i*dx, y0 + j*dy).
	regular        bool
	x0, y0, dx, dy float64

	indexOnce sync.Once
	index     *rtree.Rtree

	cellSizeOnce sync.Once
	cellSize     float64
}

// gridPoint is a centroid stored in the spatial index.
type gridPoint struct {
	geom.Point
	id int
}

// NewGeoGrid creates an unstructured grid from the given centroid
// locations.
func NewGeoGrid(points []geom.Point) *GeoGrid {
	return &GeoGrid{Points: points}
}

// NewGeoGridFromNative creates a grid from the coordinate arrays of a
// raster with nx columns and ny rows. lon and lat can either be
// coordinate vectors (len(lon) == nx and len(lat) == ny) or full
// coordinate fields of length nx*ny in row-major order. Centroid ids are
// assigned in row-major scan order.
func NewGeoGridFromNative(lon, lat []float64, nx, ny int) (*GeoGrid, error) {
	if nx <= 0 || ny <= 0 {
		return nil, fmt.Errorf("windstorm: invalid grid dimensions %d×%d", nx, ny)
	}
	g := &GeoGrid{
		Points: make([]geom.Point, nx*ny),
		nx:     nx,
		ny:     ny,
	}
	switch {
	case len(lon) == nx && len(lat) == ny:
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				g.Points[j*nx+i] = geom.Point{X: lon[i], Y: lat[j]}
			}
		}
	case len(lon) == nx*ny && len(lat) == nx*ny:
		for k := range g.Points {
			g.Points[k] = geom.Point{X: lon[k], Y: lat[k]}
		}
	default:
		return nil, fmt.Errorf("windstorm: coordinate lengths (lon=%d, lat=%d) don't match grid dimensions %d×%d",
			len(lon), len(lat), nx, ny)
	}
	g.detectRegular()
	return g, nil
}

// detectRegular checks whether longitude only varies by column and
// latitude only by row, both with constant spacing. The spacing is
// taken from the end points of the first row and column, and the
// check allows for coordinates stored in single precision.
func (g *GeoGrid) detectRegular() {
	if g.nx < 2 || g.ny < 2 {
		return
	}
	x0, y0 := g.Points[0].X, g.Points[0].Y
	dx := (g.Points[g.nx-1].X - x0) / float64(g.nx-1)
	dy := (g.Points[(g.ny-1)*g.nx].Y - y0) / float64(g.ny-1)
	if dx == 0 || dy == 0 {
		return
	}
	var maxAbs float64
	for _, p := range g.Points {
		maxAbs = math.Max(maxAbs, math.Max(math.Abs(p.X), math.Abs(p.Y)))
	}
	tol := math.Max(1.e-4*math.Min(math.Abs(dx), math.Abs(dy)), float32Eps*maxAbs)
	for j := 0; j < g.ny; j++ {
		for i := 0; i < g.nx; i++ {
			p := g.Points[j*g.nx+i]
			if math.Abs(p.X-(x0+float64(i)*dx)) > tol || math.Abs(p.Y-(y0+float64(j)*dy)) > tol {
				return
			}
		}
	}
	g.regular = true
	g.x0, g.y0, g.dx, g.dy = x0, y0, dx, dy
}

// float32Eps bounds the relative rounding error of a coordinate stored
// as float32, with a factor of two to spare.
const float32Eps = 2.4e-7

// WithRegions returns a copy of g that carries the given region
// classification.
func (g *GeoGrid) WithRegions(regionID []float64) (*GeoGrid, error) {
	if len(regionID) != len(g.Points) {
		return nil, fmt.Errorf("windstorm: %d region ids for %d centroids", len(regionID), len(g.Points))
	}
	return &GeoGrid{
		Points:   g.Points,
		RegionID: regionID,
		nx:       g.nx,
		ny:       g.ny,
		regular:  g.regular,
		x0:       g.x0,
		y0:       g.y0,
		dx:       g.dx,
		dy:       g.dy,
	}, nil
}

// Size returns the number of centroids.
func (g *GeoGrid) Size() int { return len(g.Points) }

// Point returns the location of centroid id.
func (g *GeoGrid) Point(id int) geom.Point { return g.Points[id] }

// IDs returns the centroid identifiers.
func (g *GeoGrid) IDs() []int {
	ids := make([]int, len(g.Points))
	for i := range ids {
		ids[i] = i
	}
	return ids
}

// Shape returns the number of columns and rows of a structured grid.
// ok is false for unstructured point sets.
func (g *GeoGrid) Shape() (nx, ny int, ok bool) {
	return g.nx, g.ny, g.nx > 0 && g.ny > 0
}

// Regular returns the center of the first cell and the cell spacing of
// a regular grid. ok is false if the grid is not regular.
func (g *GeoGrid) Regular() (x0, y0, dx, dy float64, ok bool) {
	return g.x0, g.y0, g.dx, g.dy, g.regular
}

// Unclassified returns the number of centroids whose region is unknown.
func (g *GeoGrid) Unclassified() int {
	var n int
	for _, r := range g.RegionID {
		if math.IsNaN(r) {
			n++
		}
	}
	return n
}

// Lon returns the centroid longitudes.
func (g *GeoGrid) Lon() []float64 {
	o := make([]float64, len(g.Points))
	for i, p := range g.Points {
		o[i] = p.X
	}
	return o
}

// Lat returns the centroid latitudes.
func (g *GeoGrid) Lat() []float64 {
	o := make([]float64, len(g.Points))
	for i, p := range g.Points {
		o[i] = p.Y
	}
	return o
}

// Bounds returns the bounding box of the centroids.
func (g *GeoGrid) Bounds() *geom.Bounds {
	if len(g.Points) == 0 {
		return &geom.Bounds{}
	}
	lon, lat := g.Lon(), g.Lat()
	return &geom.Bounds{
		Min: geom.Point{X: floats.Min(lon), Y: floats.Min(lat)},
		Max: geom.Point{X: floats.Max(lon), Y: floats.Max(lat)},
	}
}

// Fingerprint returns a key that is identical for grids with identical
// coordinates and shape.
func (g *GeoGrid) Fingerprint() string {
	return hash.Floats([]int{g.nx, g.ny}, g.Lon(), g.Lat())
}

// CellSize returns the typical distance between neighboring centroids
// [degrees]. For regular grids this is the larger of the two spacings;
// for other structured grids it is the larger of the median distances
// between neighbors along rows and along columns; for unstructured point
// sets it is the larger of the median spacings between distinct
// longitudes and distinct latitudes.
func (g *GeoGrid) CellSize() float64 {
	g.cellSizeOnce.Do(func() {
		switch {
		case g.regular:
			g.cellSize = math.Max(math.Abs(g.dx), math.Abs(g.dy))
		case g.nx > 0 && g.ny > 0 && (g.nx > 1 || g.ny > 1):
			var along, across []float64
			for j := 0; j < g.ny; j++ {
				for i := 0; i < g.nx; i++ {
					p := g.Points[j*g.nx+i]
					if i+1 < g.nx {
						along = append(along, distance(p, g.Points[j*g.nx+i+1]))
					}
					if j+1 < g.ny {
						across = append(across, distance(p, g.Points[(j+1)*g.nx+i]))
					}
				}
			}
			g.cellSize = math.Max(median(along), median(across))
		default:
			g.cellSize = math.Max(medianSpacing(g.Lon()), medianSpacing(g.Lat()))
		}
	})
	return g.cellSize
}

func (g *GeoGrid) spatialIndex() *rtree.Rtree {
	g.indexOnce.Do(func() {
		g.index = rtree.NewTree(25, 50)
		for i, p := range g.Points {
			g.index.Insert(&gridPoint{Point: p, id: i})
		}
	})
	return g.index
}

// nearest returns the id of the centroid closest to p that is no
// farther than radius from it. Ties go to the lowest id. ok is false if
// there is no such centroid.
func (g *GeoGrid) nearest(p geom.Point, radius float64) (id int, ok bool) {
	b := &geom.Bounds{
		Min: geom.Point{X: p.X - radius, Y: p.Y - radius},
		Max: geom.Point{X: p.X + radius, Y: p.Y + radius},
	}
	best := math.Inf(1)
	id = -1
	for _, item := range g.spatialIndex().SearchIntersect(b) {
		c := item.(*gridPoint)
		d := distance(p, c.Point)
		if d > radius {
			continue
		}
		if d < best || (d == best && c.id < id) {
			best, id = d, c.id
		}
	}
	return id, id >= 0
}

// AlignTo returns a mapping from the ids of g to the ids of other when
// every centroid of g matches a centroid of other within tol [degrees],
// otherwise it returns nil. Aligning a grid to itself returns the
// identity mapping without searching.
func (g *GeoGrid) AlignTo(other *GeoGrid, tol float64) []int {
	if g == other || samePoints(g.Points, other.Points, tol) {
		return identity(len(g.Points))
	}
	m := make([]int, len(g.Points))
	for i, p := range g.Points {
		id, ok := other.nearest(p, tol)
		if !ok {
			return nil
		}
		m[i] = id
	}
	return m
}

func samePoints(a, b []geom.Point, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i, p := range a {
		if math.Abs(p.X-b[i].X) > tol || math.Abs(p.Y-b[i].Y) > tol {
			return false
		}
	}
	return true
}

func identity(n int) []int {
	m := make([]int, n)
	for i := range m {
		m[i] = i
	}
	return m
}

func distance(p, q geom.Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	return s[len(s)/2]
}

// medianSpacing returns the median gap between the distinct values in v.
func medianSpacing(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	var gaps []float64
	for i := 1; i < len(s); i++ {
		if d := s[i] - s[i-1]; d > 1.e-9 {
			gaps = append(gaps, d)
		}
	}
	return median(gaps)
}
