// Package ads provides a stand-in ad network for environments without a real
// ad SDK, such as the command-line client and tests.
package ads

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/arcana/internal/domain"
)

// ErrNotLoaded is returned by Show when no ad has been loaded.
var ErrNotLoaded = errors.New("no rewarded ad loaded")

// BannerRefreshInterval is how long a banner stays before it is replaced.
const BannerRefreshInterval = time.Minute

// Simulated plays "ads" by waiting. A shown ad always grants its reward unless
// the context is cancelled first.
type Simulated struct {
	duration  time.Duration
	loadDelay time.Duration
	logger    *slog.Logger

	mu          sync.Mutex
	loaded      bool
	bannerEdge  domain.BannerEdge
	bannerShown time.Time
	impressions int
}

// NewSimulated creates a provider whose ads last duration.
func NewSimulated(duration, loadDelay time.Duration, logger *slog.Logger) *Simulated {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulated{
		duration:  duration,
		loadDelay: loadDelay,
		logger:    logger.With("component", "simulated_ads"),
	}
}

// IsReady reports whether an ad is loaded.
func (s *Simulated) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Load waits for the load delay and marks an ad as loaded.
func (s *Simulated) Load(ctx context.Context) error {
	if err := wait(ctx, s.loadDelay); err != nil {
		return err
	}
	s.mu.Lock()
	s.loaded = true
	s.mu.Unlock()
	s.logger.Debug("rewarded ad loaded")
	return nil
}

// Show consumes the loaded ad, waits for its duration, fires onReward and
// returns as the ad is dismissed.
func (s *Simulated) Show(ctx context.Context, onReward func()) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	s.loaded = false
	s.impressions++
	s.mu.Unlock()

	if err := wait(ctx, s.duration); err != nil {
		s.logger.Info("rewarded ad dismissed early")
		return nil
	}
	if onReward != nil {
		onReward()
	}
	return nil
}

// ShowBanner records the banner placement.
func (s *Simulated) ShowBanner(_ context.Context, edge domain.BannerEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bannerEdge = edge
	s.bannerShown = time.Now()
	s.logger.Debug("banner displayed", "edge", edge, "refresh_interval", BannerRefreshInterval)
	return nil
}

// Banner returns the edge of the current banner, empty if none is showing or
// it is due for refresh.
func (s *Simulated) Banner() domain.BannerEdge {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bannerShown.IsZero() || time.Since(s.bannerShown) > BannerRefreshInterval {
		return ""
	}
	return s.bannerEdge
}

// Impressions returns how many rewarded ads have been shown.
func (s *Simulated) Impressions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.impressions
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
