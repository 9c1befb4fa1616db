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
	"context"
	"runtime"

	"github.com/ctessum/requestcache"
)

// GridCache returns a single shared object for native grids with
// identical coordinates, so that footprints on the same grid can be
// aligned by identity. It is safe for concurrent use.
type GridCache struct {
	cache *requestcache.Cache
}

// NewGridCache creates a cache that holds up to maxEntries grids.
func NewGridCache(maxEntries int) *GridCache {
	return &GridCache{
		cache: requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
			// The first grid with a given fingerprint becomes the
			// shared one.
			return request.(*GeoGrid), nil
		}, runtime.GOMAXPROCS(-1), requestcache.Deduplicate(), requestcache.Memory(maxEntries)),
	}
}

// Canonical returns the shared grid with the same coordinates as g.
func (c *GridCache) Canonical(ctx context.Context, g *GeoGrid) (*GeoGrid, error) {
	r, err := c.cache.NewRequest(ctx, g, g.Fingerprint()).Result()
	if err != nil {
		return nil, err
	}
	return r.(*GeoGrid), nil
}
