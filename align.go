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

	"github.com/ctessum/geom"
)

// AlignMethod identifies how a native grid was mapped onto a target grid.
type AlignMethod int

// These are the alignment methods, in the order in which they are tried.
const (
	MethodIdentity AlignMethod = iota
	MethodRegular
	MethodExact
	MethodNearest
)

func (m AlignMethod) String() string {
	switch m {
	case MethodIdentity:
		return "identity"
	case MethodRegular:
		return "regular"
	case MethodExact:
		return "exact"
	case MethodNearest:
		return "nearest"
	default:
		return fmt.Sprintf("AlignMethod(%d)", int(m))
	}
}

// Mapping relates the cells of a native grid to the centroids of a
// target grid.
type Mapping struct {
	// Index holds the target centroid id for each native cell, or -1
	// if the native cell has no counterpart in the target grid.
	Index []int

	Method AlignMethod

	// Mapped and Dropped are the numbers of native cells with and
	// without a target centroid.
	Mapped, Dropped int
}

func newMapping(index []int, method AlignMethod) *Mapping {
	m := &Mapping{Index: index, Method: method}
	for _, t := range index {
		if t < 0 {
			m.Dropped++
		} else {
			m.Mapped++
		}
	}
	return m
}

// Aligner maps native footprint grids onto target grids.
type Aligner struct {
	// Tolerance is the largest coordinate difference [degrees] at which
	// two points are considered to be the same location.
	Tolerance float64

	// MaxDistanceFactor is the nearest-neighbor search radius as a
	// multiple of the target cell size. Native cells farther than this
	// from every target centroid are dropped.
	MaxDistanceFactor float64
}

// Align returns the mapping from native to target. It tries, in order,
// the identity mapping for the same grid object, offset arithmetic for
// regular grids with the same spacing, an exact point-by-point match, and
// finally a bounded nearest-neighbor search. The search only considers
// native cells inside the area covered by the target cells, so cells
// beyond the edge of the target grid are dropped rather than assigned to
// an edge centroid. An *AlignmentError is
// returned when no native cell can be mapped.
func (a *Aligner) Align(native, target *GeoGrid) (*Mapping, error) {
	if native == target {
		return newMapping(identity(native.Size()), MethodIdentity), nil
	}
	if native.Size() == 0 || target.Size() == 0 {
		return nil, &AlignmentError{Reason: "empty grid"}
	}
	if idx := a.alignRegular(native, target); idx != nil {
		m := newMapping(idx, MethodRegular)
		if m.Mapped == 0 {
			return nil, &AlignmentError{Reason: "footprint grid doesn't overlap the target grid"}
		}
		return m, nil
	}
	if idx := native.AlignTo(target, a.Tolerance); idx != nil {
		return newMapping(idx, MethodExact), nil
	}
	radius := math.Max(a.MaxDistanceFactor*target.CellSize(), a.Tolerance)
	cover := a.coverage(target)
	idx := make([]int, native.Size())
	for i, p := range native.Points {
		if !pointInBounds(p, cover) {
			idx[i] = -1
			continue
		}
		if id, ok := target.nearest(p, radius); ok {
			idx[i] = id
		} else {
			idx[i] = -1
		}
	}
	m := newMapping(idx, MethodNearest)
	if m.Mapped == 0 {
		return nil, &AlignmentError{Reason: fmt.Sprintf("no footprint cell is within %g° of a target centroid", radius)}
	}
	return m, nil
}

// coverage returns the area covered by the target cells: the centroid
// bounding box widened by half a cell and the tolerance on each side.
func (a *Aligner) coverage(target *GeoGrid) *geom.Bounds {
	hx := target.CellSize() / 2
	hy := hx
	if _, _, dx, dy, ok := target.Regular(); ok {
		hx, hy = math.Abs(dx)/2, math.Abs(dy)/2
	}
	b := target.Bounds()
	return &geom.Bounds{
		Min: geom.Point{X: b.Min.X - hx - a.Tolerance, Y: b.Min.Y - hy - a.Tolerance},
		Max: geom.Point{X: b.Max.X + hx + a.Tolerance, Y: b.Max.Y + hy + a.Tolerance},
	}
}

func pointInBounds(p geom.Point, b *geom.Bounds) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// alignRegular maps two regular grids with the same spacing whose
// origins are a whole number of cells apart. It returns nil if the
// grids don't qualify.
func (a *Aligner) alignRegular(native, target *GeoGrid) []int {
	nx0, ny0, ndx, ndy, ok := native.Regular()
	if !ok {
		return nil
	}
	tx0, ty0, tdx, tdy, ok := target.Regular()
	if !ok {
		return nil
	}
	if math.Abs(ndx-tdx) > a.Tolerance || math.Abs(ndy-tdy) > a.Tolerance {
		return nil
	}
	di, ok := cellOffset(nx0-tx0, tdx, a.Tolerance)
	if !ok {
		return nil
	}
	dj, ok := cellOffset(ny0-ty0, tdy, a.Tolerance)
	if !ok {
		return nil
	}
	nnx, nny, _ := native.Shape()
	tnx, tny, _ := target.Shape()
	idx := make([]int, native.Size())
	for j := 0; j < nny; j++ {
		for i := 0; i < nnx; i++ {
			ti, tj := i+di, j+dj
			if ti < 0 || ti >= tnx || tj < 0 || tj >= tny {
				idx[j*nnx+i] = -1
				continue
			}
			idx[j*nnx+i] = tj*tnx + ti
		}
	}
	return idx
}

// cellOffset returns the whole number of cells of size d that make up
// the distance diff.
func cellOffset(diff, d, tol float64) (int, bool) {
	n := math.Round(diff / d)
	if math.Abs(n*d-diff) > tol {
		return 0, false
	}
	return int(n), true
}
