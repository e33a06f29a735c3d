package cache

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	c, err := New(t.TempDir(), ttl, 8, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestKeyDeterministic(t *testing.T) {
	a := Key(map[string]any{"dataset": "chirps", "start": "2023-01-01"})
	b := Key(map[string]any{"start": "2023-01-01", "dataset": "chirps"})
	if a != b {
		t.Fatal("same params produced different keys")
	}
	c := Key(map[string]any{"dataset": "chirps", "start": "2023-01-02"})
	if a == c {
		t.Fatal("different params produced the same key")
	}
	if len(a) != 64 {
		t.Fatalf("key length = %d, want 64 hex chars", len(a))
	}
}

type doc struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestJSONRoundTrip(t *testing.T) {
	c := newTestCache(t, time.Hour)
	key := Key(map[string]any{"t": "roundtrip"})

	var miss doc
	if c.GetJSON(key, &miss) {
		t.Fatal("hit on empty cache")
	}

	c.SetJSON(key, doc{Name: "precip", Value: 12.5})
	var got doc
	if !c.GetJSON(key, &got) {
		t.Fatal("miss after set")
	}
	if got.Name != "precip" || got.Value != 12.5 {
		t.Fatalf("got %+v", got)
	}
}

func TestJSONSurvivesMemoryEviction(t *testing.T) {
	c := newTestCache(t, time.Hour)
	key := Key(map[string]any{"t": "disk"})
	c.SetJSON(key, doc{Name: "x", Value: 1})
	c.mem.Purge()

	var got doc
	if !c.GetJSON(key, &got) {
		t.Fatal("disk tier miss after memory purge")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t, time.Hour)
	base := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	key := Key(map[string]any{"t": "ttl"})
	c.SetJSON(key, doc{Name: "x"})
	c.mem.Purge() // force the disk path, where TTL applies

	var got doc
	c.now = func() time.Time { return base.Add(59 * time.Minute) }
	if !c.GetJSON(key, &got) {
		t.Fatal("fresh entry expired early")
	}

	c.mem.Purge()
	c.now = func() time.Time { return base.Add(2 * time.Hour) }
	if c.GetJSON(key, &got) {
		t.Fatal("stale entry served")
	}
	if _, err := os.Stat(c.path(key, "json")); !os.IsNotExist(err) {
		t.Fatal("stale entry not unlinked on access")
	}
}

func TestTTLExpiryAppliesToMemoryTier(t *testing.T) {
	c := newTestCache(t, time.Hour)
	base := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	key := Key(map[string]any{"t": "mem-ttl"})
	c.SetJSON(key, doc{Name: "x"})

	// no purge: the entry is still resident in the memory tier
	c.now = func() time.Time { return base.Add(48 * time.Hour) }
	var got doc
	if c.GetJSON(key, &got) {
		t.Fatal("stale entry served from memory tier")
	}
	if _, err := os.Stat(c.path(key, "json")); !os.IsNotExist(err) {
		t.Fatal("stale entry not unlinked on access")
	}
}

func TestCorruptEntryDiscarded(t *testing.T) {
	c := newTestCache(t, time.Hour)
	key := Key(map[string]any{"t": "corrupt"})
	if err := os.WriteFile(c.path(key, "json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	var got doc
	if c.GetJSON(key, &got) {
		t.Fatal("corrupt entry served")
	}
	if _, err := os.Stat(c.path(key, "json")); !os.IsNotExist(err) {
		t.Fatal("corrupt entry not removed")
	}
}

func TestFileRoundTrip(t *testing.T) {
	c := newTestCache(t, time.Hour)
	key := Key(map[string]any{"t": "file"})

	if p := c.GetFile(key, "csv"); p != "" {
		t.Fatalf("hit on empty cache: %s", p)
	}

	src := filepath.Join(t.TempDir(), "src.csv")
	if err := os.WriteFile(src, []byte("date,precip_mm\n2023-01-01,4.2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if p := c.SetFile(key, "csv", src); p == "" {
		t.Fatal("SetFile failed")
	}

	p := c.GetFile(key, "csv")
	if p == "" {
		t.Fatal("miss after SetFile")
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "date,precip_mm\n2023-01-01,4.2\n" {
		t.Fatalf("content mangled: %q", b)
	}
}

func TestSweep(t *testing.T) {
	c := newTestCache(t, time.Hour)
	base := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }
	c.SetJSON(Key(map[string]any{"n": 1}), doc{})
	c.SetJSON(Key(map[string]any{"n": 2}), doc{})

	c.now = func() time.Time { return base.Add(3 * time.Hour) }
	if removed := c.Sweep(); removed != 2 {
		t.Fatalf("Sweep removed %d, want 2", removed)
	}
}

func TestStats(t *testing.T) {
	c := newTestCache(t, time.Hour)
	key := Key(map[string]any{"t": "stats"})
	var got doc
	c.GetJSON(key, &got) // miss
	c.SetJSON(key, doc{})
	c.GetJSON(key, &got) // hit

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Fatalf("stats = %+v", st)
	}
}
