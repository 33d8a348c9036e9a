// ABOUTME: Read-through fetch policy over the response cache with stale fallback on failure.
// ABOUTME: Decides whether a transport error is swallowed (stale entry or fallback) or propagated.
package cache

import (
	"context"
	"log"
	"time"

	"github.com/2389-research/switchboard/api"
)

// Source says where a fetched payload came from.
type Source int

const (
	// SourceLive means the payload was fetched just now.
	SourceLive Source = iota
	// SourceCache means a fresh cache entry answered without a network call.
	SourceCache
	// SourceStale means the live fetch failed and a cached entry was served.
	SourceStale
	// SourceFallback means the live fetch failed with nothing cached, so the
	// caller's fallback value was returned.
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceLive:
		return "live"
	case SourceCache:
		return "cache"
	case SourceStale:
		return "stale"
	case SourceFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// FetchFunc performs the live call for a fingerprint.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Options controls one read.
type Options struct {
	// ForceRefresh skips the fresh-entry shortcut. Success still writes through.
	ForceRefresh bool
	// Strict propagates the transport error when no cache entry exists instead
	// of returning Fallback. Views that must show failure state set this.
	Strict bool
	// Fallback is returned when the live fetch fails with nothing cached.
	Fallback []byte
	// Label names the request in logs and in StaleDataError.
	Label string
}

// Result is the outcome of a read. Err is nil for live and cached reads; for
// stale reads it is an *api.StaleDataError wrapping the transport failure, and
// for fallback reads it is the transport failure itself.
type Result struct {
	Payload   []byte
	Source    Source
	FetchedAt time.Time
	Err       error
}

// Degraded reports whether the payload is not a successful live or fresh read.
func (r Result) Degraded() bool {
	return r.Source == SourceStale || r.Source == SourceFallback
}

// Fetch applies the read policy for fp:
//   - a fresh entry is returned without calling fetch unless ForceRefresh is set;
//   - a successful fetch is written through and returned;
//   - a failed fetch returns any entry for fp, even a stale one;
//   - with no entry, Strict returns the error, otherwise Fallback is returned.
func (c *Cache) Fetch(ctx context.Context, fp string, opts Options, fetch FetchFunc) (Result, error) {
	label := opts.Label
	if label == "" {
		label = fp
	}

	if !opts.ForceRefresh {
		if e, ok := c.Get(fp); ok && c.IsFresh(e) {
			return Result{Payload: e.Payload, Source: SourceCache, FetchedAt: e.FetchedAt}, nil
		}
	}

	payload, err := fetch(ctx)
	if err == nil {
		c.Put(fp, payload)
		return Result{Payload: payload, Source: SourceLive, FetchedAt: c.now()}, nil
	}

	if e, ok := c.Get(fp); ok {
		log.Printf("component=cache action=serve_stale request=%q age=%s err=%v",
			label, c.now().Sub(e.FetchedAt).Round(time.Millisecond), err)
		return Result{
			Payload:   e.Payload,
			Source:    SourceStale,
			FetchedAt: e.FetchedAt,
			Err:       api.NewStaleDataError(label, err),
		}, nil
	}

	if opts.Strict {
		return Result{}, err
	}

	log.Printf("component=cache action=serve_fallback request=%q err=%v", label, err)
	return Result{Payload: opts.Fallback, Source: SourceFallback, Err: err}, nil
}
