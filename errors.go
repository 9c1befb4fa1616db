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

import "fmt"

// MalformedFileError is returned when a footprint file is missing a
// required variable or holds fields whose shapes are inconsistent.
type MalformedFileError struct {
	Path string
	// Var is the variable that caused the problem, if any.
	Var string
	Err error
}

func (e *MalformedFileError) Error() string {
	if e.Var != "" {
		return fmt.Sprintf("windstorm: malformed footprint file %s: variable %q: %v", e.Path, e.Var, e.Err)
	}
	return fmt.Sprintf("windstorm: malformed footprint file %s: %v", e.Path, e.Err)
}

func (e *MalformedFileError) Unwrap() error { return e.Err }

// AlignmentError is returned when none of the cells of a footprint can
// be mapped onto the target grid.
type AlignmentError struct {
	Path   string
	Reason string
	Err    error
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("windstorm: can't align %s to the target grid: %s", e.Path, e.Reason)
}

func (e *AlignmentError) Unwrap() error { return e.Err }

// ConfigurationError is returned for invalid or contradictory settings.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "windstorm: invalid configuration: " + e.Reason
}

func malformed(path, variable string, format string, args ...interface{}) error {
	return &MalformedFileError{Path: path, Var: variable, Err: fmt.Errorf(format, args...)}
}
