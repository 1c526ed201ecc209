package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/labelreader/labelreader/internal/remote"
	"github.com/labelreader/labelreader/internal/storage"
	"github.com/labelreader/labelreader/pkg/types"
)

// State names a phase of a sync run.
type State string

const (
	StateIdle            State = "idle"
	StateCheckingVersion State = "checking_version"
	StateDownloading     State = "downloading"
	StatePersisting      State = "persisting"
	StateUpToDate        State = "up_to_date"
	StateError           State = "error"
)

// Phase identifies which collection a progress report belongs to.
type Phase string

const (
	PhaseProducts       Phase = "products"
	PhaseSecondaryCodes Phase = "secondary_codes"
)

// StatusEvent reports a state transition of one sync run.
type StatusEvent struct {
	RunID   string
	State   State
	Message string
}

// Progress reports download progress for one collection.
type Progress struct {
	Loaded int
	Total  int
	Phase  Phase
}

// Catalog is the remote surface the coordinator needs.
type Catalog interface {
	Ping(ctx context.Context) error
	FetchVersion(ctx context.Context) (*types.VersionInfo, error)
	DownloadProducts(ctx context.Context, onProgress remote.ProgressFunc) ([]types.Product, error)
	DownloadSecondaryCodes(ctx context.Context, onProgress remote.ProgressFunc) ([]types.SecondaryCode, error)
}

// Syncer reconciles the local mirror against the remote catalog. Reconciling
// is pull-based and version-gated: a content fingerprint comparison decides
// whether anything downloads at all.
type Syncer struct {
	store      storage.Store
	catalog    Catalog
	log        *zap.Logger
	group      singleflight.Group
	onStatus   func(StatusEvent)
	onProgress func(Progress)
	invalidate func()
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithStatusSink registers a callback for state transitions.
func WithStatusSink(fn func(StatusEvent)) Option {
	return func(s *Syncer) { s.onStatus = fn }
}

// WithProgressSink registers a callback for download progress.
func WithProgressSink(fn func(Progress)) Option {
	return func(s *Syncer) { s.onProgress = fn }
}

// WithInvalidate registers a hook run after every successful apply. The
// search engine hangs its cache invalidation here.
func WithInvalidate(fn func()) Option {
	return func(s *Syncer) { s.invalidate = fn }
}

// WithLogger attaches a logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Syncer) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a Syncer over the given store and remote catalog.
func New(store storage.Store, catalog Catalog, opts ...Option) *Syncer {
	s := &Syncer{
		store:   store,
		catalog: catalog,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync runs one reconciliation pass. Concurrent calls coalesce: a caller
// arriving while a run is in flight receives that run's result instead of
// starting another. force skips the fingerprint gate and downloads
// unconditionally.
//
// A pass that fails while the store already holds products reports
// SyncFailed with the cause in the result and a nil error, so callers keep
// serving local data. The same failure against an empty store returns the
// error: there is nothing to fall back to.
func (s *Syncer) Sync(ctx context.Context, force bool) (types.SyncResult, error) {
	v, err, _ := s.group.Do("sync", func() (interface{}, error) {
		return s.run(ctx, force)
	})
	result, _ := v.(types.SyncResult)
	return result, err
}

func (s *Syncer) run(ctx context.Context, force bool) (types.SyncResult, error) {
	runID := uuid.NewString()
	log := s.log.With(zap.String("run_id", runID))

	emit := func(state State, msg string) {
		log.Debug("sync state", zap.String("state", string(state)), zap.String("message", msg))
		if s.onStatus != nil {
			s.onStatus(StatusEvent{RunID: runID, State: state, Message: msg})
		}
	}

	emit(StateCheckingVersion, "comparing catalog fingerprints")

	// Cheap one-row probe first: surfaces unreachable endpoints and rejected
	// credentials before any version or download traffic.
	if err := s.catalog.Ping(ctx); err != nil {
		return s.fail(ctx, emit, log, fmt.Errorf("probing remote: %w", err))
	}

	localHash, err := s.store.GetConfig(ctx, storage.ConfigVersionHash)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return s.fail(ctx, emit, log, fmt.Errorf("reading local fingerprint: %w", err))
	}

	remoteVer, err := s.catalog.FetchVersion(ctx)
	if err != nil {
		return s.fail(ctx, emit, log, fmt.Errorf("fetching remote version: %w", err))
	}

	if !force {
		if remoteVer == nil {
			emit(StateUpToDate, "remote has no version record")
			return types.SyncResult{Status: types.SyncUpToDate}, nil
		}
		if localHash == remoteVer.Hash {
			emit(StateUpToDate, "fingerprints match")
			return types.SyncResult{Status: types.SyncUpToDate}, nil
		}
	}

	emit(StateDownloading, "downloading products")
	products, err := s.catalog.DownloadProducts(ctx, s.progressFunc(PhaseProducts))
	if err != nil {
		return s.fail(ctx, emit, log, fmt.Errorf("downloading products: %w", err))
	}

	emit(StateDownloading, "downloading secondary codes")
	codes, err := s.catalog.DownloadSecondaryCodes(ctx, s.progressFunc(PhaseSecondaryCodes))
	if err != nil {
		return s.fail(ctx, emit, log, fmt.Errorf("downloading secondary codes: %w", err))
	}

	emit(StatePersisting, fmt.Sprintf("persisting %d products, %d secondary codes", len(products), len(codes)))
	if err := s.store.ReplaceProducts(ctx, products); err != nil {
		return s.fail(ctx, emit, log, fmt.Errorf("persisting products: %w", err))
	}
	if err := s.store.ReplaceSecondaryCodes(ctx, codes); err != nil {
		// Products already applied: the store now holds new products with
		// the previous alias generation, which exact search tolerates.
		return s.fail(ctx, emit, log, fmt.Errorf("persisting secondary codes: %w", err))
	}

	// The fingerprint is recorded only once both collections landed, so an
	// interrupted pass re-downloads next time instead of lying about its
	// version. A forced pass against a versionless remote has no hash to
	// record.
	if remoteVer != nil {
		if err := s.store.SetConfig(ctx, storage.ConfigVersionHash, remoteVer.Hash); err != nil {
			log.Warn("fingerprint write failed, next sync will re-download", zap.Error(err))
		}
	}
	if err := s.store.SetConfig(ctx, storage.ConfigLastSync, time.Now().UTC().Format(time.RFC3339)); err != nil {
		log.Warn("last-sync write failed", zap.Error(err))
	}

	if s.invalidate != nil {
		s.invalidate()
	}

	emit(StateUpToDate, "catalog updated")
	log.Info("sync applied",
		zap.Int("products", len(products)),
		zap.Int("secondary_codes", len(codes)),
	)
	return types.SyncResult{Status: types.SyncUpdated, Products: len(products), Aliases: len(codes)}, nil
}

// fail decides between degraded-continue and hard failure based on whether
// any local data exists to serve.
func (s *Syncer) fail(ctx context.Context, emit func(State, string), log *zap.Logger, cause error) (types.SyncResult, error) {
	emit(StateError, cause.Error())
	result := types.SyncResult{Status: types.SyncFailed, Cause: cause}

	n, err := s.store.CountProducts(ctx)
	if err == nil && n > 0 {
		log.Warn("sync failed, continuing with local catalog",
			zap.Int("local_products", n),
			zap.Error(cause),
		)
		return result, nil
	}
	return result, cause
}

func (s *Syncer) progressFunc(phase Phase) remote.ProgressFunc {
	if s.onProgress == nil {
		return nil
	}
	return func(p remote.Progress) {
		s.onProgress(Progress{Loaded: p.Loaded, Total: p.Total, Phase: phase})
	}
}
