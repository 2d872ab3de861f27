// Package location resolves a user's GPS position from the device and turns
// it into a human-readable place via reverse geocoding.
package location

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-glance/internal/log"
	"github.com/teslashibe/go-glance/pkg/device"
)

// DefaultTTL is how long a cached snapshot is served before a live fetch.
const DefaultTTL = 30 * time.Second

// Snapshot is one GPS fix.
type Snapshot struct {
	Latitude      float64
	Longitude     float64
	Accuracy      float64
	Altitude      *float64
	Timestamp     time.Time
	CorrelationID string
}

// Resolved pairs a fix with its geocoded place. Place may be empty.
type Resolved struct {
	Location *Snapshot
	Place    Place
}

// Geocoder turns coordinates into a Place.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (Place, error)
}

type cached struct {
	snap    *Snapshot
	fetched time.Time
}

// Resolver fetches and caches per-user locations.
type Resolver struct {
	geocoder Geocoder
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string]cached
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTTL sets the cache lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) { r.ttl = ttl }
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a resolver. geocoder may be nil, in which case places are always empty.
func NewResolver(geocoder Geocoder, opts ...Option) *Resolver {
	r := &Resolver{
		geocoder: geocoder,
		ttl:      DefaultTTL,
		now:      time.Now,
		logger:   log.L(),
		cache:    make(map[string]cached),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "location.Resolver")
	return r
}

// Resolve returns the user's location. With useCache, a snapshot younger than
// the TTL is returned without asking the device. Failures return false.
func (r *Resolver) Resolve(ctx context.Context, loc device.Locator, userID string, useCache bool) (*Snapshot, bool) {
	if useCache {
		r.mu.Lock()
		c, ok := r.cache[userID]
		r.mu.Unlock()
		if ok && r.now().Sub(c.fetched) < r.ttl {
			return c.snap, true
		}
	}

	raw, err := loc.LatestLocation(ctx, device.AccuracyHigh)
	if err != nil {
		r.logger.Warn("location request failed", "user_id", userID, "error", err)
		return nil, false
	}

	snap, missing := parseSnapshot(raw)
	if snap == nil {
		r.logger.Warn("location missing required fields", "user_id", userID, "missing", missing, "raw", raw)
		return nil, false
	}

	r.mu.Lock()
	r.cache[userID] = cached{snap: snap, fetched: r.now()}
	r.mu.Unlock()
	return snap, true
}

// ResolveAndGeocode resolves the location with the cache enabled and
// reverse-geocodes it. A geocoding failure yields an empty Place, not false.
func (r *Resolver) ResolveAndGeocode(ctx context.Context, loc device.Locator, userID string) (*Resolved, bool) {
	snap, ok := r.Resolve(ctx, loc, userID, true)
	if !ok {
		return nil, false
	}
	res := &Resolved{Location: snap}
	if r.geocoder == nil {
		return res, true
	}
	place, err := r.geocoder.Reverse(ctx, snap.Latitude, snap.Longitude)
	if err != nil {
		r.logger.Warn("reverse geocode failed", "user_id", userID, "error", err)
		return res, true
	}
	res.Place = place
	return res, true
}

// Forget drops the cached snapshot for userID.
func (r *Resolver) Forget(userID string) {
	r.mu.Lock()
	delete(r.cache, userID)
	r.mu.Unlock()
}

// parseSnapshot probes the field names used by different firmware versions.
// It returns the names of missing required fields when the payload is unusable.
func parseSnapshot(raw map[string]any) (*Snapshot, []string) {
	if raw == nil {
		return nil, []string{"latitude", "longitude", "accuracy", "timestamp"}
	}
	if coords, ok := raw["coords"].(map[string]any); ok {
		merged := make(map[string]any, len(raw)+len(coords))
		for k, v := range raw {
			merged[k] = v
		}
		for k, v := range coords {
			merged[k] = v
		}
		raw = merged
	}

	var missing []string
	lat, ok := number(raw, "latitude", "lat")
	if !ok {
		missing = append(missing, "latitude")
	}
	lon, ok := number(raw, "longitude", "lng", "lon")
	if !ok {
		missing = append(missing, "longitude")
	}
	acc, ok := number(raw, "accuracy", "horizontalAccuracy")
	if !ok {
		missing = append(missing, "accuracy")
	}
	ts, ok := timestamp(raw)
	if !ok {
		missing = append(missing, "timestamp")
	}
	if len(missing) > 0 {
		return nil, missing
	}

	snap := &Snapshot{Latitude: lat, Longitude: lon, Accuracy: acc, Timestamp: ts}
	if alt, ok := number(raw, "altitude", "alt"); ok {
		snap.Altitude = &alt
	}
	for _, k := range []string{"correlationId", "correlation_id"} {
		if s, ok := raw[k].(string); ok && s != "" {
			snap.CorrelationID = s
			break
		}
	}
	return snap, nil
}

func number(raw map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case float64:
			return v, true
		case float32:
			return float64(v), true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		}
	}
	return 0, false
}

// timestamp accepts epoch milliseconds or an RFC 3339 string.
func timestamp(raw map[string]any) (time.Time, bool) {
	for _, k := range []string{"timestamp", "time"} {
		v, present := raw[k]
		if !present {
			continue
		}
		switch t := v.(type) {
		case string:
			if parsed, err := time.Parse(time.RFC3339, t); err == nil {
				return parsed, true
			}
		case time.Time:
			return t, true
		default:
			if ms, ok := number(raw, k); ok {
				return time.UnixMilli(int64(ms)), true
			}
		}
	}
	return time.Time{}, false
}
