// Package stats assembles the engine's observability snapshot
// (spec.md §2, §6: engine.stats() → {queue, year_cache, tile_cache,
// navigator}), formatting cache byte totals for human consumption
// alongside the raw integers (SPEC_FULL.md §4.8).
package stats

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/MeKo-Tech/capstripeviz/internal/lru"
	"github.com/MeKo-Tech/capstripeviz/internal/navigator"
	"github.com/MeKo-Tech/capstripeviz/internal/queue"
)

// CacheStats is one LruCache's occupancy snapshot, plus a humanized byte
// total for CLI/log output.
type CacheStats struct {
	Count             int
	TotalBytes        int64
	TotalBytesHuman   string
	LabelsOldestFirst []string
}

// FromLRU converts a raw lru.Stats into a CacheStats, adding the
// human-readable byte total.
func FromLRU(s lru.Stats) CacheStats {
	return CacheStats{
		Count:             s.Count,
		TotalBytes:        s.TotalBytes,
		TotalBytesHuman:   humanize.Bytes(uint64(s.TotalBytes)),
		LabelsOldestFirst: s.LabelsOldestFirst,
	}
}

// Snapshot is the complete engine.stats() result.
type Snapshot struct {
	Queue     queue.Stats
	YearCache CacheStats
	TileCache CacheStats
	Navigator navigator.Snapshot
}

// Build assembles a Snapshot from each component's own stats.
func Build(q queue.Stats, yearCache, tileCache lru.Stats, nav navigator.Snapshot) Snapshot {
	return Snapshot{
		Queue:     q,
		YearCache: FromLRU(yearCache),
		TileCache: FromLRU(tileCache),
		Navigator: nav,
	}
}

// String renders a Snapshot as a multi-line human-readable report, for the
// CLI "stats" command and log output.
func (s Snapshot) String() string {
	return fmt.Sprintf(
		"queue: in_flight=%d queued=%d consecutive_failures=%d breaker_open=%t\n"+
			"year_cache: count=%d total=%s\n"+
			"tile_cache: count=%d total=%s\n"+
			"navigator: offset=%d state=%s anim=%s velocity=%.2f",
		s.Queue.InFlight, s.Queue.Queued, s.Queue.ConsecutiveFailures, s.Queue.BreakerOpen,
		s.YearCache.Count, s.YearCache.TotalBytesHuman,
		s.TileCache.Count, s.TileCache.TotalBytesHuman,
		s.Navigator.Offset, s.Navigator.State, s.Navigator.AnimKind, s.Navigator.Velocity,
	)
}
