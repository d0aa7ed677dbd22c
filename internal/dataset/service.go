package dataset

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/cache"
	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/models"
	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/normalize"
	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/opendata"
	"github.com/wyhuang-tw/taichung-airmicro-viewer/internal/snapshot"
)

// DefaultCacheTTL is how long a fetched dataset is served before the
// next live refresh.
const DefaultCacheTTL = 60 * time.Second

// Fetcher resolves and fetches the raw dataset.
type Fetcher interface {
	Fetch(ctx context.Context) (*opendata.Result, error)
}

// Dataset is the working table plus its provenance.
type Dataset struct {
	Readings []models.Reading
	Meta     models.FetchMeta
}

// Options configure the dataset service.
type Options struct {
	CacheTTL time.Duration

	// HintURL and Credential form the cache key, so changing either in
	// configuration never serves data fetched under the old identity.
	HintURL    string
	Credential string

	// FetchDisabled serves the on-disk snapshot only, never the network.
	FetchDisabled bool

	Log logrus.FieldLogger
	Now func() time.Time
}

// Service owns the refresh pipeline: fetch → normalize → dedupe with a
// snapshot write-through, a short-TTL result cache, and a snapshot
// fallback when every endpoint candidate fails.
type Service struct {
	fetcher  Fetcher
	store    *snapshot.Store
	cache    *cache.TTL
	cacheKey string
	disabled bool
	log      logrus.FieldLogger
	now      func() time.Time

	// mu serializes live fetches; concurrent callers wait and then hit
	// the freshly filled cache.
	mu sync.Mutex
}

// New builds the service. fetcher may be nil when opts.FetchDisabled is
// set.
func New(fetcher Fetcher, store *snapshot.Store, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	return &Service{
		fetcher:  fetcher,
		store:    store,
		cache:    cache.New(opts.CacheTTL, opts.Now),
		cacheKey: opts.HintURL + "\n" + opts.Credential,
		disabled: opts.FetchDisabled || fetcher == nil,
		log:      opts.Log.WithField("component", "dataset"),
		now:      opts.Now,
	}
}

// Current returns the working dataset, serving the cached copy while it
// is fresh.
func (s *Service) Current(ctx context.Context) (*Dataset, error) {
	if v, ok := s.cache.Get(s.cacheKey); ok {
		return v.(*Dataset), nil
	}
	return s.refresh(ctx)
}

// Refresh drops the cached dataset and fetches anew.
func (s *Service) Refresh(ctx context.Context) (*Dataset, error) {
	s.cache.Invalidate(s.cacheKey)
	return s.refresh(ctx)
}

// ClearCache drops every cached dataset.
func (s *Service) ClearCache() {
	s.cache.Clear()
}

func (s *Service) refresh(ctx context.Context) (*Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A caller that waited on the lock finds the winner's result here.
	if v, ok := s.cache.Get(s.cacheKey); ok {
		return v.(*Dataset), nil
	}

	if s.disabled {
		ds, err := s.FromSnapshot()
		if err != nil {
			return nil, err
		}
		s.cache.Put(s.cacheKey, ds)
		return ds, nil
	}

	res, err := s.fetcher.Fetch(ctx)
	if err != nil {
		var resErr *opendata.ResolutionError
		if !errors.As(err, &resErr) {
			return nil, err
		}

		s.log.WithError(err).Warn("live fetch failed, falling back to snapshot")
		ds, snapErr := s.FromSnapshot()
		if snapErr != nil {
			return nil, err
		}
		ds.Meta.Stale = true
		ds.Meta.StaleReason = resErr.Error()
		ds.Meta.Attempts = resErr.Attempts
		s.cache.Put(s.cacheKey, ds)
		return ds, nil
	}

	now := s.now()
	readings, dropped := normalize.Normalize(res.Records)
	readings = normalize.Dedupe(readings)
	if dropped > 0 {
		s.log.WithField("dropped", dropped).Info("records dropped during normalization")
	}

	// The snapshot lagging one cycle is better than losing a good fetch.
	if err := s.store.Write(res.Records, res.URL, now); err != nil {
		s.log.WithError(err).Warn("snapshot write failed")
	}

	ds := &Dataset{
		Readings: readings,
		Meta: models.FetchMeta{
			SourceURL:    res.URL,
			FetchedAt:    now.Format(models.LocalTimeLayout),
			RecordCount:  len(readings),
			DroppedCount: dropped,
			LoadedAt:     now,
		},
	}
	s.cache.Put(s.cacheKey, ds)
	return ds, nil
}

// FromSnapshot builds a dataset from the on-disk snapshot, bypassing
// both the network and the cache.
func (s *Service) FromSnapshot() (*Dataset, error) {
	snap, err := s.store.Read()
	if err != nil {
		return nil, err
	}

	readings, dropped := normalize.Normalize(snap.Records)
	readings = normalize.Dedupe(readings)

	savedAt := snap.SavedAtLocal
	if savedAt == "" && !snap.ModTime.IsZero() {
		savedAt = snap.ModTime.Format(models.LocalTimeLayout)
	}

	return &Dataset{
		Readings: readings,
		Meta: models.FetchMeta{
			SourceURL:    snap.SourceAPI,
			FetchedAt:    savedAt,
			RecordCount:  len(readings),
			DroppedCount: dropped,
			FromSnapshot: true,
			LoadedAt:     s.now(),
		},
	}, nil
}
