package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/umahmood/haversine"

	"blitzmap-server/internal/blitzortung"
	"blitzmap-server/internal/modules/lightning/repository"
	"blitzmap-server/internal/modules/lightning/types"
	"blitzmap-server/internal/render"
)

const (
	// retention matches the oldest age band of the strike color scale and
	// the span of the activity graph. Strikes beyond it are pruned.
	retention = 120 * time.Minute

	// maxStrikesPerFrame caps one frame's draw list during extreme storms.
	maxStrikesPerFrame = 100000
)

// FeedClient fetches strikes from the upstream network.
type FeedClient interface {
	FetchStrikes(ctx context.Context) ([]blitzortung.Strike, error)
}

// Publisher pushes new state to Home Assistant after each cycle. A nil-safe
// no-op implementation is used when MQTT is unavailable.
type Publisher interface {
	PublishUpdate(update types.Update)
	PublishAnimation(gif []byte)
	PublishSettings(settings types.Settings)
}

type nopPublisher struct{}

func (nopPublisher) PublishUpdate(types.Update)     {}
func (nopPublisher) PublishAnimation([]byte)        {}
func (nopPublisher) PublishSettings(types.Settings) {}

// NopPublisher returns a Publisher that drops everything.
func NopPublisher() Publisher { return nopPublisher{} }

// Service runs the fetch-render-publish loop and owns the current animation.
type Service struct {
	feed      FeedClient
	strikes   repository.StrikeRepository
	settings  repository.SettingsRepository
	renderer  *render.Renderer
	store     *FrameStore
	publisher Publisher
	logger    *slog.Logger
	interval  time.Duration
	now       func() time.Time

	// cycleMu serializes update cycles; the ticker and forced refreshes
	// must not render concurrently.
	cycleMu sync.Mutex

	mu        sync.RWMutex
	animation []byte
}

type Options struct {
	Feed      FeedClient
	Strikes   repository.StrikeRepository
	Settings  repository.SettingsRepository
	Renderer  *render.Renderer
	Store     *FrameStore
	Publisher Publisher
	Logger    *slog.Logger
	Interval  time.Duration
}

func New(opts Options) *Service {
	if opts.Publisher == nil {
		opts.Publisher = NopPublisher()
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	return &Service{
		feed:      opts.Feed,
		strikes:   opts.Strikes,
		settings:  opts.Settings,
		renderer:  opts.Renderer,
		store:     opts.Store,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		interval:  opts.Interval,
		now:       time.Now,
	}
}

// Run performs one immediate cycle and then repeats on the configured
// interval until the context is canceled. Cycle errors are logged, not fatal;
// the next tick retries.
func (s *Service) Run(ctx context.Context) {
	if err := s.store.Ensure(); err != nil {
		s.logger.Error("frame store unavailable", "error", err)
		return
	}
	if err := s.restoreAnimation(); err != nil {
		s.logger.Warn("could not restore animation from disk", "error", err)
	}

	if err := s.UpdateCycle(ctx); err != nil {
		s.logger.Error("update cycle failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("update loop stopping")
			return
		case <-ticker.C:
			if err := s.UpdateCycle(ctx); err != nil {
				s.logger.Error("update cycle failed", "error", err)
			}
		}
	}
}

// restoreAnimation reloads the last written animation so the camera has an
// image immediately after a restart.
func (s *Service) restoreAnimation() error {
	data, ok, err := s.store.ReadAnimation()
	if err != nil || !ok {
		return err
	}
	s.mu.Lock()
	s.animation = data
	s.mu.Unlock()
	return nil
}

// UpdateCycle fetches new strikes, stores them, renders the next frame,
// rebuilds the animation, and publishes the derived entity state.
func (s *Service) UpdateCycle(ctx context.Context) error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	now := s.now()

	// A feed outage degrades to an empty batch; the frame is still rendered
	// from stored strikes, which keep aging through the color bands.
	fetched, err := s.feed.FetchStrikes(ctx)
	if err != nil {
		s.logger.Error("fetch strikes failed, rendering from stored data", "error", err)
		fetched = nil
	}

	batch := make([]types.Strike, len(fetched))
	for i, f := range fetched {
		batch[i] = types.Strike{TimeNs: f.TimeNs, Lat: f.Lat, Lon: f.Lon}
	}
	inserted, err := s.strikes.InsertStrikes(batch)
	if err != nil {
		return fmt.Errorf("store strikes: %w", err)
	}

	pruned, err := s.strikes.DeleteStrikesBefore(now.Add(-retention))
	if err != nil {
		return fmt.Errorf("prune strikes: %w", err)
	}

	current, err := s.strikes.GetStrikesSince(now.Add(-retention), maxStrikesPerFrame)
	if err != nil {
		return fmt.Errorf("load strikes: %w", err)
	}

	frame := s.renderer.Frame(toRenderStrikes(current), now)
	if err := s.store.SaveFrame(now, frame); err != nil {
		return fmt.Errorf("save frame: %w", err)
	}

	settings, err := s.rebuildAnimation(now)
	if err != nil {
		return err
	}

	update := types.Update{
		LastUpdated: now,
		StrikeCount: len(current),
	}
	if settings.ShowMarker {
		update.NearestStrikeKm = nearestStrikeKm(current, settings.MarkerLatitude, settings.MarkerLongitude)
	}
	s.publisher.PublishUpdate(update)

	s.logger.Info("update cycle complete",
		"fetched", len(fetched),
		"inserted", inserted,
		"pruned", pruned,
		"on_map", len(current),
	)
	return nil
}

// ForceRefresh recomposites the animation from the stored frames with the
// current settings. It does not fetch new strikes; that stays on the regular
// schedule.
func (s *Service) ForceRefresh(ctx context.Context) error {
	s.logger.Info("forced refresh requested")

	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	_, err := s.rebuildAnimation(s.now())
	return err
}

// rebuildAnimation composites the current overlays onto the stored frames and
// swaps in the new GIF. Returns the settings used, so the caller can derive
// entity state from the same snapshot.
func (s *Service) rebuildAnimation(now time.Time) (types.Settings, error) {
	settings, err := s.settings.Load()
	if err != nil {
		return types.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	frames, err := s.store.LoadFrames()
	if err != nil {
		return types.Settings{}, fmt.Errorf("load frames: %w", err)
	}
	if len(frames) == 0 {
		return settings, nil
	}

	overlays := render.Overlays{
		ShowLegend:   settings.ShowLegend,
		ShowMarker:   settings.ShowMarker,
		MarkerLat:    settings.MarkerLatitude,
		MarkerLon:    settings.MarkerLongitude,
		ShowActivity: settings.ShowActivityGraph,
	}
	if settings.ShowActivityGraph {
		current, err := s.strikes.GetStrikesSince(now.Add(-retention), maxStrikesPerFrame)
		if err != nil {
			return types.Settings{}, fmt.Errorf("load strikes for activity: %w", err)
		}
		overlays.Activity = render.BucketStrikes(toRenderStrikes(current), now)
	}

	anim := s.renderer.Animation(frames, overlays)
	var buf bytes.Buffer
	if err := render.EncodeGIF(&buf, anim); err != nil {
		return types.Settings{}, fmt.Errorf("encode animation: %w", err)
	}
	if err := s.store.WriteAnimation(buf.Bytes()); err != nil {
		return types.Settings{}, err
	}

	s.mu.Lock()
	s.animation = buf.Bytes()
	s.mu.Unlock()

	s.publisher.PublishAnimation(buf.Bytes())
	return settings, nil
}

// AnimatedImage returns the current animation, or ok=false before the first
// frame has been rendered.
func (s *Service) AnimatedImage() ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.animation == nil {
		return nil, false
	}
	return s.animation, true
}

// Settings returns the persisted render settings.
func (s *Service) Settings() (types.Settings, error) {
	return s.settings.Load()
}

// ApplySettings validates and persists a partial settings update, then
// recomposites the animation so the change is visible without waiting for the
// next cycle.
func (s *Service) ApplySettings(patch types.SettingsPatch) (types.Settings, error) {
	if err := patch.Validate(); err != nil {
		return types.Settings{}, err
	}

	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	current, err := s.settings.Load()
	if err != nil {
		return types.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	updated := patch.Apply(current)
	if updated == current {
		return current, nil
	}
	if err := s.settings.Save(updated); err != nil {
		return types.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	if _, err := s.rebuildAnimation(s.now()); err != nil {
		return types.Settings{}, err
	}
	s.publisher.PublishSettings(updated)
	return updated, nil
}

// Activity reports strike counts per age bucket for the API.
func (s *Service) Activity() ([]types.ActivityBucket, error) {
	now := s.now()
	current, err := s.strikes.GetStrikesSince(now.Add(-retention), maxStrikesPerFrame)
	if err != nil {
		return nil, fmt.Errorf("load strikes: %w", err)
	}
	counts := render.BucketStrikes(toRenderStrikes(current), now)

	buckets := make([]types.ActivityBucket, len(counts))
	for i, n := range counts {
		buckets[i] = types.ActivityBucket{AgeMinutes: i * 20, Count: n}
	}
	return buckets, nil
}

func toRenderStrikes(strikes []types.Strike) []render.Strike {
	out := make([]render.Strike, len(strikes))
	for i, s := range strikes {
		out[i] = render.Strike{Lat: s.Lat, Lon: s.Lon, Time: s.Time()}
	}
	return out
}

// nearestStrikeKm finds the distance from the marker to the closest strike on
// the map, or nil when the map is empty.
func nearestStrikeKm(strikes []types.Strike, lat, lon float64) *float64 {
	if len(strikes) == 0 {
		return nil
	}
	marker := haversine.Coord{Lat: lat, Lon: lon}
	best := -1.0
	for _, s := range strikes {
		_, km := haversine.Distance(marker, haversine.Coord{Lat: s.Lat, Lon: s.Lon})
		if best < 0 || km < best {
			best = km
		}
	}
	return &best
}
