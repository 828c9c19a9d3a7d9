package stats

import (
	"strings"
	"testing"

	"github.com/MeKo-Tech/capstripeviz/internal/lru"
	"github.com/MeKo-Tech/capstripeviz/internal/navigator"
	"github.com/MeKo-Tech/capstripeviz/internal/queue"
)

func TestFromLRUHumanizesBytes(t *testing.T) {
	cs := FromLRU(lru.Stats{Count: 3, TotalBytes: 4_200_000, LabelsOldestFirst: []string{"a", "b", "c"}})
	if cs.Count != 3 {
		t.Fatalf("Count = %d, want 3", cs.Count)
	}
	if !strings.Contains(cs.TotalBytesHuman, "MB") {
		t.Fatalf("TotalBytesHuman = %q, want it to mention MB", cs.TotalBytesHuman)
	}
}

func TestSnapshotStringIncludesAllSections(t *testing.T) {
	snap := Build(
		queue.Stats{InFlight: 1, Queued: 2, ConsecutiveFailures: 0, BreakerOpen: false},
		lru.Stats{Count: 1, TotalBytes: 100},
		lru.Stats{Count: 2, TotalBytes: 200},
		navigator.Snapshot{Offset: 10, State: "idle", AnimKind: "none", Velocity: 0},
	)
	out := snap.String()
	for _, want := range []string{"queue:", "year_cache:", "tile_cache:", "navigator:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("String() = %q, missing section %q", out, want)
		}
	}
}
