// ABOUTME: Data-access service composing the transport client and the response cache.
// ABOUTME: Reads go through the cache read policy; writes go straight to the transport.
package resource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/2389-research/switchboard/api"
	"github.com/2389-research/switchboard/cache"
	"github.com/tidwall/gjson"
)

// DefaultGoalTimeout bounds a goal conversion, which runs an LLM on the backend
// and routinely outlasts the ordinary request timeout.
const DefaultGoalTimeout = 60 * time.Second

// ErrMalformedResponse reports a 2xx response whose body is not JSON.
var ErrMalformedResponse = errors.New("malformed response body")

// Sender performs one API call. *api.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, req api.Request) ([]byte, error)
}

// ReadOptions controls a single read.
type ReadOptions struct {
	// ForceRefresh skips a fresh cache entry but still writes through on success.
	ForceRefresh bool
	// Strict returns the transport error instead of the fallback value when
	// nothing is cached. A stale entry is still served.
	Strict bool
}

// Freshness describes where a read's data came from.
type Freshness struct {
	Source    cache.Source
	FetchedAt time.Time
	// Err is set for degraded reads: a *api.StaleDataError for stale data, or
	// the transport error when the fallback was used.
	Err error
}

// Stale reports whether the data was served from an expired cache entry after
// a failed refresh.
func (f Freshness) Stale() bool {
	return f.Source == cache.SourceStale
}

// Degraded reports whether the data is anything other than a successful read.
func (f Freshness) Degraded() bool {
	return f.Source == cache.SourceStale || f.Source == cache.SourceFallback
}

// Service exposes one method per platform resource.
type Service struct {
	client      Sender
	cache       *cache.Cache
	goalTimeout time.Duration
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithGoalTimeout sets the finite timeout used for goal conversion.
func WithGoalTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.goalTimeout = d
		}
	}
}

// NewService creates a Service. A nil cache gets a private cache with the default TTL.
func NewService(client Sender, c *cache.Cache, opts ...ServiceOption) *Service {
	if c == nil {
		c = cache.New(cache.DefaultTTL)
	}
	s := &Service{
		client:      client,
		cache:       c,
		goalTimeout: DefaultGoalTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache returns the cache the service reads through.
func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// ClearCache drops every cached response.
func (s *Service) ClearCache() {
	s.cache.Clear()
}

// read applies the cache read policy to req.
func (s *Service) read(ctx context.Context, req api.Request, fallback []byte, opts ReadOptions) ([]byte, Freshness, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	fp, err := cache.Fingerprint(method, req.Endpoint(), req.Body)
	if err != nil {
		return nil, Freshness{}, err
	}

	res, err := s.cache.Fetch(ctx, fp, cache.Options{
		ForceRefresh: opts.ForceRefresh,
		Strict:       opts.Strict,
		Fallback:     fallback,
		Label:        method + " " + req.Endpoint(),
	}, func(ctx context.Context) ([]byte, error) {
		return s.send(ctx, req)
	})
	if err != nil {
		return nil, Freshness{}, err
	}
	return res.Payload, Freshness{Source: res.Source, FetchedAt: res.FetchedAt, Err: res.Err}, nil
}

// send performs req and rejects 2xx bodies that are not JSON so they are
// never cached.
func (s *Service) send(ctx context.Context, req api.Request) ([]byte, error) {
	payload, err := s.client.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 && !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("%s: %w", req.Endpoint(), ErrMalformedResponse)
	}
	return payload, nil
}
