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
	"strings"

	"github.com/ctessum/cdf"
)

// ncfFile is an open NetCDF classic file.
type ncfFile struct {
	path string
	f    *os.File
	ff   *cdf.File
	nrec int
}

func openNCF(path string) (*ncfFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("windstorm: opening footprint file: %w", err)
	}
	ff, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, &MalformedFileError{Path: path, Err: err}
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("windstorm: opening footprint file: %w", err)
	}
	return &ncfFile{
		path: path,
		f:    f,
		ff:   ff,
		nrec: int(ff.Header.NumRecs(fi.Size())),
	}, nil
}

func (n *ncfFile) Close() error { return n.f.Close() }

func (n *ncfFile) has(v string) bool { return v != "" && n.ff.Header.Lengths(v) != nil }

// lengths returns the dimension lengths of variable v with the record
// dimension resolved to the number of records in the file.
func (n *ncfFile) lengths(v string) []int {
	l := n.ff.Header.Lengths(v)
	if l == nil {
		return nil
	}
	o := append([]int(nil), l...)
	if n.ff.Header.IsRecordVariable(v) {
		o[0] = n.nrec
	}
	return o
}

// readAll reads every value of variable v in storage order.
func (n *ncfFile) readAll(v string) ([]float64, error) {
	l := n.lengths(v)
	if l == nil {
		return nil, malformed(n.path, v, "variable not in file")
	}
	if !n.ff.Header.IsRecordVariable(v) {
		count := 1
		for _, x := range l {
			count *= x
		}
		if count == 0 {
			return nil, nil
		}
		return n.read(v, nil, nil, count)
	}
	var out []float64
	for rec := 0; rec < l[0]; rec++ {
		d, err := n.readRecord(v, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, d...)
	}
	return out, nil
}

// readRecord reads the slice of variable v at index rec of its
// outermost dimension.
func (n *ncfFile) readRecord(v string, rec int) ([]float64, error) {
	l := n.lengths(v)
	if len(l) == 0 {
		return nil, malformed(n.path, v, "variable not in file")
	}
	if rec < 0 || rec >= l[0] {
		return nil, malformed(n.path, v, "record %d out of range [0, %d)", rec, l[0])
	}
	begin, end := make([]int, len(l)), make([]int, len(l))
	begin[0], end[0] = rec, rec
	count := 1
	for i := 1; i < len(l); i++ {
		end[i] = l[i] - 1
		count *= l[i]
	}
	if count == 0 {
		return nil, nil
	}
	return n.read(v, begin, end, count)
}

// read reads count values of v between begin and end, converts them to
// float64 and applies the CF packing and missing value conventions.
// Missing values are returned as NaN.
func (n *ncfFile) read(v string, begin, end []int, count int) ([]float64, error) {
	r := n.ff.Reader(v, begin, end)
	if r == nil {
		return nil, malformed(n.path, v, "variable not in file")
	}
	buf := r.Zero(count)
	if _, err := r.Read(buf); err != nil {
		return nil, malformed(n.path, v, "reading data: %v", err)
	}
	out := make([]float64, count)
	switch b := buf.(type) {
	case []uint8:
		for i, x := range b {
			out[i] = float64(int8(x))
		}
	case []int16:
		for i, x := range b {
			out[i] = float64(x)
		}
	case []int32:
		for i, x := range b {
			out[i] = float64(x)
		}
	case []float32:
		for i, x := range b {
			out[i] = float64(x)
		}
	case []float64:
		copy(out, b)
	default:
		return nil, malformed(n.path, v, "unsupported data type %T", buf)
	}
	n.decoder(v).apply(out)
	return out, nil
}

// cfDecoder unpacks values according to the CF conventions.
type cfDecoder struct {
	scale, offset float64
	missing       []float64
}

func (n *ncfFile) decoder(v string) cfDecoder {
	d := cfDecoder{scale: 1}
	if s, ok := n.floatAttr(v, "scale_factor"); ok {
		d.scale = s
	}
	if o, ok := n.floatAttr(v, "add_offset"); ok {
		d.offset = o
	}
	for _, a := range []string{"_FillValue", "missing_value"} {
		if m, ok := n.floatAttr(v, a); ok {
			d.missing = append(d.missing, m)
		}
	}
	return d
}

func (d cfDecoder) apply(vals []float64) {
	for i, x := range vals {
		if math.IsNaN(x) || d.isMissing(x) {
			vals[i] = math.NaN()
			continue
		}
		vals[i] = x*d.scale + d.offset
	}
}

func (d cfDecoder) isMissing(x float64) bool {
	for _, m := range d.missing {
		if x == m {
			return true
		}
	}
	return false
}

// stringAttr returns the text attribute a of variable v, or the global
// attribute a if v is empty.
func (n *ncfFile) stringAttr(v, a string) (string, bool) {
	switch val := n.ff.Header.GetAttribute(v, a).(type) {
	case string:
		s := strings.TrimSpace(strings.TrimRight(val, "\x00"))
		return s, s != ""
	case []uint8:
		s := strings.TrimSpace(strings.TrimRight(string(val), "\x00"))
		return s, s != ""
	default:
		return "", false
	}
}

// floatAttr returns the first value of the numeric attribute a of
// variable v.
func (n *ncfFile) floatAttr(v, a string) (float64, bool) {
	switch val := n.ff.Header.GetAttribute(v, a).(type) {
	case []uint8:
		if len(val) > 0 {
			return float64(int8(val[0])), true
		}
	case []int16:
		if len(val) > 0 {
			return float64(val[0]), true
		}
	case []int32:
		if len(val) > 0 {
			return float64(val[0]), true
		}
	case []float32:
		if len(val) > 0 {
			return float64(val[0]), true
		}
	case []float64:
		if len(val) > 0 {
			return val[0], true
		}
	}
	return 0, false
}

// readStrings reads a two-dimensional CHAR variable as one string per
// row, with trailing NUL padding removed.
func (n *ncfFile) readStrings(v string) ([]string, error) {
	l := n.lengths(v)
	if len(l) != 2 {
		return nil, malformed(n.path, v, "want a two-dimensional character variable")
	}
	r := n.ff.Reader(v, nil, nil)
	buf, ok := r.Zero(l[0] * l[1]).([]uint8)
	if !ok {
		return nil, malformed(n.path, v, "not a character variable")
	}
	if _, err := r.Read(buf); err != nil {
		return nil, malformed(n.path, v, "reading data: %v", err)
	}
	out := make([]string, l[0])
	for i := range out {
		out[i] = strings.TrimRight(string(buf[i*l[1]:(i+1)*l[1]]), "\x00")
	}
	return out, nil
}
