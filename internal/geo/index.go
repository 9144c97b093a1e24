package geo

import (
	"math"
	"sync"
	"time"
)

// cellDeg is the grid cell edge in degrees. 0.05° is roughly 5.5 km of
// latitude, so a default-radius query touches a handful of cells instead of
// scanning every entry.
const cellDeg = 0.05

type cell struct {
	row, col int
}

type entry struct {
	point    Point
	lastSeen time.Time
	cell     cell
}

// Match is a single index query result.
type Match struct {
	ID         string
	Point      Point
	DistanceKm float64
}

// Index is a grid-bucketed spatial index over moving entities. Entries may
// carry a staleness TTL: entries older than the TTL are excluded from queries
// and purged lazily. A TTL of zero disables expiry.
type Index struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
	cells   map[cell]map[string]struct{}
	now     func() time.Time
}

// NewIndex returns an empty index. ttl bounds entry staleness; zero means
// entries never expire.
func NewIndex(ttl time.Duration) *Index {
	return &Index{
		ttl:     ttl,
		entries: make(map[string]entry),
		cells:   make(map[cell]map[string]struct{}),
		now:     time.Now,
	}
}

func cellFor(p Point) cell {
	return cell{
		row: int(math.Floor(p.Lat / cellDeg)),
		col: int(math.Floor(p.Lng / cellDeg)),
	}
}

// Upsert inserts or moves an entity and refreshes its last-seen time.
func (ix *Index) Upsert(id string, p Point) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	c := cellFor(p)
	if old, ok := ix.entries[id]; ok && old.cell != c {
		ix.removeFromCell(old.cell, id)
	}
	ix.entries[id] = entry{point: p, lastSeen: ix.now(), cell: c}
	if ix.cells[c] == nil {
		ix.cells[c] = make(map[string]struct{})
	}
	ix.cells[c][id] = struct{}{}
}

// Remove deletes an entity from the index. Removing an absent id is a no-op.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	e, ok := ix.entries[id]
	if !ok {
		return
	}
	ix.removeFromCell(e.cell, id)
	delete(ix.entries, id)
}

func (ix *Index) removeFromCell(c cell, id string) {
	delete(ix.cells[c], id)
	if len(ix.cells[c]) == 0 {
		delete(ix.cells, c)
	}
}

// Query returns all live entities within radiusKm of p, inclusive. Expired
// entries are skipped and purged.
func (ix *Index) Query(p Point, radiusKm float64) []Match {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	now := ix.now()

	// Bounding box in grid cells. Longitude degrees shrink with latitude;
	// clamp the cosine away from zero so polar queries stay finite.
	latDeg := radiusKm / 111.0
	cosLat := math.Cos(p.Lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lngDeg := radiusKm / (111.0 * cosLat)

	minRow := int(math.Floor((p.Lat - latDeg) / cellDeg))
	maxRow := int(math.Floor((p.Lat + latDeg) / cellDeg))
	minCol := int(math.Floor((p.Lng - lngDeg) / cellDeg))
	maxCol := int(math.Floor((p.Lng + lngDeg) / cellDeg))

	var out []Match
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			ids, ok := ix.cells[cell{row, col}]
			if !ok {
				continue
			}
			for id := range ids {
				e := ix.entries[id]
				if ix.ttl > 0 && now.Sub(e.lastSeen) > ix.ttl {
					ix.removeFromCell(e.cell, id)
					delete(ix.entries, id)
					continue
				}
				if d := DistanceKm(p, e.point); d <= radiusKm {
					out = append(out, Match{ID: id, Point: e.point, DistanceKm: d})
				}
			}
		}
	}
	return out
}

// Len reports the number of entries, including any not yet purged.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}
