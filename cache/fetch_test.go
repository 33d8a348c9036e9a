// ABOUTME: Tests for the read-through fetch policy: fresh hits, write-through, stale and fallback serving.
// ABOUTME: Validates that transport failures degrade to cached data instead of surfacing to dashboards.
package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/2389-research/switchboard/api"
)

// fakeFetcher counts calls and returns a fixed payload or error.
type fakeFetcher struct {
	calls   atomic.Int32
	payload []byte
	err     error
}

func (f *fakeFetcher) fetch(ctx context.Context) ([]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

var errUnreachable = &api.NetworkError{APIError: api.APIError{Kind: api.KindNetworkError, Message: "could not reach the server"}}

func TestFetchFreshEntrySkipsTransport(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Put("GET /agents", []byte(`["cached"]`))
	f := &fakeFetcher{payload: []byte(`["live"]`)}

	res, err := c.Fetch(context.Background(), "GET /agents", Options{}, f.fetch)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Source != SourceCache || string(res.Payload) != `["cached"]` {
		t.Errorf("got %s from %v, want cached payload", res.Payload, res.Source)
	}
	if f.calls.Load() != 0 {
		t.Errorf("transport calls = %d, want 0", f.calls.Load())
	}
}

func TestFetchStaleEntryRefetchesAndWritesThrough(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	c.Put("k", []byte(`["old"]`))
	clock.Advance(2 * time.Minute)
	f := &fakeFetcher{payload: []byte(`["new"]`)}

	res, err := c.Fetch(context.Background(), "k", Options{}, f.fetch)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Source != SourceLive || string(res.Payload) != `["new"]` {
		t.Errorf("got %s from %v, want live payload", res.Payload, res.Source)
	}
	e, _ := c.Get("k")
	if string(e.Payload) != `["new"]` || !c.IsFresh(e) {
		t.Errorf("cache not written through: %s", e.Payload)
	}
}

func TestFetchForceRefreshBypassesFreshEntry(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Put("k", []byte(`1`))
	f := &fakeFetcher{payload: []byte(`2`)}

	res, _ := c.Fetch(context.Background(), "k", Options{ForceRefresh: true}, f.fetch)
	if f.calls.Load() != 1 || string(res.Payload) != "2" {
		t.Errorf("force refresh should call transport: calls=%d payload=%s", f.calls.Load(), res.Payload)
	}
	e, _ := c.Get("k")
	if string(e.Payload) != "2" {
		t.Errorf("force refresh should still write through, cache has %s", e.Payload)
	}
}

func TestFetchFailureServesStaleEntry(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	c.Put("k", []byte(`["old"]`))
	clock.Advance(10 * time.Minute)
	f := &fakeFetcher{err: errUnreachable}

	res, err := c.Fetch(context.Background(), "k", Options{Strict: true, Label: "GET /agents"}, f.fetch)
	if err != nil {
		t.Fatalf("stale entry should be served instead of error, got %v", err)
	}
	if res.Source != SourceStale || string(res.Payload) != `["old"]` {
		t.Errorf("got %s from %v, want stale payload", res.Payload, res.Source)
	}
	if !errors.Is(res.Err, api.ErrStaleDataServed) {
		t.Errorf("Result.Err = %v, want stale-data signal", res.Err)
	}
	if !errors.Is(res.Err, errUnreachable) {
		t.Error("stale signal should wrap the transport failure")
	}
	if !res.Degraded() {
		t.Error("stale result should be degraded")
	}
}

func TestFetchFailureWithoutEntryReturnsFallback(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	f := &fakeFetcher{err: errUnreachable}

	res, err := c.Fetch(context.Background(), "k", Options{Fallback: []byte(`[]`)}, f.fetch)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Source != SourceFallback || string(res.Payload) != `[]` {
		t.Errorf("got %s from %v, want fallback", res.Payload, res.Source)
	}
	if !errors.Is(res.Err, errUnreachable) {
		t.Errorf("Result.Err = %v, want transport failure", res.Err)
	}
	if c.Len() != 0 {
		t.Error("failures must not be cached")
	}
}

func TestFetchStrictPropagatesError(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	f := &fakeFetcher{err: errUnreachable}

	_, err := c.Fetch(context.Background(), "k", Options{Strict: true}, f.fetch)
	if api.KindOf(err) != api.KindNetworkError {
		t.Errorf("err = %v, want network error", err)
	}
}

func TestSourceString(t *testing.T) {
	names := map[Source]string{SourceLive: "live", SourceCache: "cache", SourceStale: "stale", SourceFallback: "fallback", Source(9): "unknown"}
	for s, want := range names {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
