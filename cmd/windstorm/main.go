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


// Command windstorm is a command-line interface for ingesting European
// windstorm footprints into a hazard set.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/windstorm/windstormutil"
)

func main() {
	if err := windstormutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
