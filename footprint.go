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
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// VarNames maps the fields of a footprint onto the names used in the
// NetCDF files.
type VarNames struct {
	// Intensity is the gust speed variable, with dimensions
	// (y, x) or (time, y, x).
	Intensity string
	Lon, Lat  string
	Time      string

	// Fraction is the optional fraction variable, with the same shape
	// as Intensity. When it is empty or missing from a file, the fraction
	// of every stored cell is 1.
	Fraction string

	// NameAttr is the global attribute that holds the storm name.
	NameAttr string

	// UnitsAttr is the attribute of Intensity that holds its units.
	UnitsAttr string
}

// DefaultVarNames returns the variable names used by the WISC
// observed storm footprints.
func DefaultVarNames() VarNames {
	return VarNames{
		Intensity: "max_wind_gust",
		Lon:       "longitude",
		Lat:       "latitude",
		Time:      "time",
		NameAttr:  "storm_name",
		UnitsAttr: "units",
	}
}

// Validate checks that every required name is set and that no two
// fields refer to the same variable.
func (v VarNames) Validate() error {
	required := []struct{ field, name string }{
		{"Intensity", v.Intensity},
		{"Lon", v.Lon},
		{"Lat", v.Lat},
		{"Time", v.Time},
		{"NameAttr", v.NameAttr},
		{"UnitsAttr", v.UnitsAttr},
	}
	for _, r := range required {
		if strings.TrimSpace(r.name) == "" {
			return &ConfigurationError{Reason: fmt.Sprintf("variable name %s is empty", r.field)}
		}
	}
	seen := make(map[string]bool)
	for _, name := range []string{v.Intensity, v.Lon, v.Lat, v.Time, v.Fraction} {
		if name == "" {
			continue
		}
		if seen[name] {
			return &ConfigurationError{Reason: fmt.Sprintf("variable %q is used for more than one field", name)}
		}
		seen[name] = true
	}
	return nil
}

// Footprint is the gust field of a single storm.
type Footprint struct {
	Path string

	// EventID is the position of the event within its file.
	EventID int

	Name  string
	Date  time.Time
	Units string

	// Grid is the native grid of the file.
	Grid *GeoGrid

	// Intensity holds one value per grid cell. NaN marks a cell that
	// was not observed.
	Intensity []float64

	// Fraction is nil if the file has no fraction field.
	Fraction []float64
}

// Parser reads footprint files.
type Parser struct {
	vars         VarNames
	defaultUnits string
	log          logrus.FieldLogger
}

// NewParser returns a parser for files that use the given variable
// names. Files whose intensity variable has no units attribute are
// assumed to be in defaultUnits.
func NewParser(vars VarNames, defaultUnits string, log logrus.FieldLogger) (*Parser, error) {
	if err := vars.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Parser{vars: vars, defaultUnits: defaultUnits, log: log}, nil
}

// Parse reads the footprint in the file at path. When the intensity
// variable has a time dimension with several records, the footprint is
// their cell-by-cell maximum.
func (p *Parser) Parse(path string) (*Footprint, error) {
	n, err := openNCF(path)
	if err != nil {
		return nil, err
	}
	defer n.Close()

	grid, err := p.grid(n)
	if err != nil {
		return nil, err
	}
	fp := &Footprint{
		Path:    path,
		EventID: 1,
		Grid:    grid,
	}
	if fp.Intensity, err = p.field(n, p.vars.Intensity, grid); err != nil {
		return nil, err
	}
	if p.vars.Fraction != "" {
		if n.has(p.vars.Fraction) {
			if fp.Fraction, err = p.field(n, p.vars.Fraction, grid); err != nil {
				return nil, err
			}
		} else {
			p.log.WithFields(logrus.Fields{
				"file":     path,
				"variable": p.vars.Fraction,
			}).Debug("fraction variable not in file; using a fraction of 1")
		}
	}
	if fp.Date, err = p.date(n); err != nil {
		return nil, err
	}

	var ok bool
	if fp.Name, ok = n.stringAttr("", p.vars.NameAttr); !ok {
		fp.Name = "unnamed-" + strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if fp.Units, ok = n.stringAttr(p.vars.Intensity, p.vars.UnitsAttr); !ok {
		fp.Units = p.defaultUnits
		p.log.WithFields(logrus.Fields{
			"file":     path,
			"variable": p.vars.Intensity,
			"units":    p.defaultUnits,
		}).Warn("intensity has no units attribute; assuming default units")
	}
	return fp, nil
}

// ParseGrid reads only the native grid of the file at path.
func (p *Parser) ParseGrid(path string) (*GeoGrid, error) {
	n, err := openNCF(path)
	if err != nil {
		return nil, err
	}
	defer n.Close()
	return p.grid(n)
}

// gridShape returns the number of columns and rows of the native grid,
// taken from the intensity variable when it is present and from the
// coordinates otherwise.
func (p *Parser) gridShape(n *ncfFile) (nx, ny int, err error) {
	if l := n.lengths(p.vars.Intensity); l != nil {
		if len(l) < 2 || len(l) > 3 {
			return 0, 0, malformed(n.path, p.vars.Intensity, "has %d dimensions; want 2 or 3", len(l))
		}
		return l[len(l)-1], l[len(l)-2], nil
	}
	lon, lat := n.lengths(p.vars.Lon), n.lengths(p.vars.Lat)
	switch {
	case lon == nil:
		return 0, 0, malformed(n.path, p.vars.Lon, "variable not in file")
	case lat == nil:
		return 0, 0, malformed(n.path, p.vars.Lat, "variable not in file")
	case len(lon) == 1 && len(lat) == 1:
		return lon[0], lat[0], nil
	case len(lon) == 2:
		return lon[1], lon[0], nil
	default:
		return 0, 0, malformed(n.path, p.vars.Lon, "can't determine grid shape")
	}
}

func (p *Parser) grid(n *ncfFile) (*GeoGrid, error) {
	nx, ny, err := p.gridShape(n)
	if err != nil {
		return nil, err
	}
	lon, err := p.coordinate(n, p.vars.Lon, nx, ny)
	if err != nil {
		return nil, err
	}
	lat, err := p.coordinate(n, p.vars.Lat, ny, nx)
	if err != nil {
		return nil, err
	}
	g, err := NewGeoGridFromNative(lon, lat, nx, ny)
	if err != nil {
		return nil, &MalformedFileError{Path: n.path, Err: err}
	}
	return g, nil
}

// coordinate reads a coordinate variable, which must either be a vector
// of length n or a field of shape (ny, nx).
func (p *Parser) coordinate(n *ncfFile, v string, length, other int) ([]float64, error) {
	l := n.lengths(v)
	if l == nil {
		return nil, malformed(n.path, v, "variable not in file")
	}
	ok := (len(l) == 1 && l[0] == length) || (len(l) == 2 && l[0]*l[1] == length*other)
	if !ok {
		return nil, malformed(n.path, v, "shape %v doesn't match the %d×%d grid", l, length, other)
	}
	return n.readAll(v)
}

// field reads a gridded variable and reduces its records by the
// cell-by-cell maximum.
func (p *Parser) field(n *ncfFile, v string, g *GeoGrid) ([]float64, error) {
	l := n.lengths(v)
	if l == nil {
		return nil, malformed(n.path, v, "variable not in file")
	}
	nx, ny, _ := g.Shape()
	if len(l) < 2 || l[len(l)-1] != nx || l[len(l)-2] != ny {
		return nil, malformed(n.path, v, "shape %v doesn't match the %d×%d grid", l, ny, nx)
	}
	if len(l) == 2 {
		return n.readAll(v)
	}
	if len(l) != 3 {
		return nil, malformed(n.path, v, "has %d dimensions; want 2 or 3", len(l))
	}
	if l[0] == 0 {
		return nil, malformed(n.path, v, "no records")
	}
	out, err := n.readRecord(v, 0)
	if err != nil {
		return nil, err
	}
	for rec := 1; rec < l[0]; rec++ {
		d, err := n.readRecord(v, rec)
		if err != nil {
			return nil, err
		}
		for i, x := range d {
			if math.IsNaN(out[i]) || x > out[i] {
				out[i] = x
			}
		}
	}
	return out, nil
}

var errNoTime = errors.New("time variable has no values")

// date returns the time of the first record.
func (p *Parser) date(n *ncfFile) (time.Time, error) {
	l := n.lengths(p.vars.Time)
	if l == nil {
		return time.Time{}, malformed(n.path, p.vars.Time, "variable not in file")
	}
	units, ok := n.stringAttr(p.vars.Time, "units")
	if !ok {
		return time.Time{}, malformed(n.path, p.vars.Time, "no units attribute")
	}
	var v []float64
	var err error
	if len(l) == 0 {
		v, err = n.readAll(p.vars.Time)
	} else {
		if l[0] == 0 {
			return time.Time{}, &MalformedFileError{Path: n.path, Var: p.vars.Time, Err: errNoTime}
		}
		v, err = n.readRecord(p.vars.Time, 0)
	}
	if err != nil {
		return time.Time{}, err
	}
	if len(v) == 0 {
		return time.Time{}, &MalformedFileError{Path: n.path, Var: p.vars.Time, Err: errNoTime}
	}
	t, err := parseCFTime(units, v[0])
	if err != nil {
		return time.Time{}, &MalformedFileError{Path: n.path, Var: p.vars.Time, Err: err}
	}
	return t, nil
}
