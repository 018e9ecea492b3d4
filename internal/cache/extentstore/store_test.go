package extentstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/geoharvest/extentd/internal/cache/keys"
	"github.com/geoharvest/extentd/internal/cache/redisstore"
)

func newTestStore(t *testing.T) (Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cli, err := redisstore.New(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("redisstore.New: %v", err)
	}
	t.Cleanup(func() { _ = cli.Close() })
	return NewRedisStore(cli, time.Minute), mr
}

func TestPutGet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	key := keys.MergeKey("usgs", "bbox", 7, []byte(`{}`))

	_, found, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Fatalf("unexpected hit before Put")
	}

	if err := s.Put(ctx, key, []byte(`{"bbox":[0,0,1,1]}`), 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	body, found, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found || string(body) != `{"bbox":[0,0,1,1]}` {
		t.Fatalf("got (%q,%v)", body, found)
	}
}

func TestPut_ZeroTTLUsesDefault(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	mr.FastForward(61 * time.Second)
	_, found, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Fatalf("key survived the default TTL")
	}
}

func TestInvalidate_DropsOnlyTheSource(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	usgsA := keys.MergeKey("usgs", "bbox", 7, []byte(`a`))
	usgsB := keys.MergeKey("usgs", "hull", 7, []byte(`b`))
	other := keys.MergeKey("sentinel", "bbox", 7, []byte(`c`))
	for _, k := range []string{usgsA, usgsB, other} {
		if err := s.Put(ctx, k, []byte("x"), 0); err != nil {
			t.Fatalf("Put %q: %v", k, err)
		}
	}

	n, err := s.Invalidate(ctx, "usgs")
	if err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if n != 2 {
		t.Fatalf("invalidated %d keys, want 2", n)
	}
	for _, k := range []string{usgsA, usgsB} {
		if _, found, _ := s.Get(ctx, k); found {
			t.Fatalf("key %q survived invalidation", k)
		}
	}
	if _, found, _ := s.Get(ctx, other); !found {
		t.Fatalf("unrelated source was invalidated too")
	}
}

func TestInvalidate_NothingToDrop(t *testing.T) {
	s, _ := newTestStore(t)
	n, err := s.Invalidate(context.Background(), "empty-source")
	if err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if n != 0 {
		t.Fatalf("invalidated %d keys, want 0", n)
	}
}
