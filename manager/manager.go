// Package manager implements the Asset Manager façade (C7): it owns the
// Source, Cache, Data and Operation controllers, exposes the mutating
// operation surface (Create, Import, Delete, Load, UpdateCache) and the
// periodic Update() reconciliation pass, the way AssetMgr.h's
// Update()/Shutdown()/SetGlobal() own the original engine's asset
// subsystem.
package manager

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/liteforge/assetcore/asset"
	"github.com/liteforge/assetcore/controller"
	"github.com/liteforge/assetcore/opqueue"
)

// reconcileFanOut bounds how many domains are reconciled concurrently during
// an Update() pass.
const reconcileFanOut = 4

// Manager is the Asset Manager façade (C7).
type Manager struct {
	cfg    *config
	logger *zap.Logger

	source *controller.Source
	cache  *controller.Cache
	data   *controller.Data
	ops    *opqueue.Controller

	watcher  *fsnotify.Watcher
	watchMu  sync.Mutex
	dirtySig map[string]bool // domain -> has a pending fast-path reconcile

	closeOnce sync.Once
}

// New constructs a Manager from opts. SourceRoot, CacheRoot, a
// serialize.Registry and a serialize.Stream are required; every other knob
// defaults to a safe, opt-in-extras posture.
func New(opts ...Option) (*Manager, error) {
	cfg := defaultConfig()
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:      cfg,
		logger:   cfg.logger,
		source:   controller.NewSource(cfg.sourceRoot),
		dirtySig: make(map[string]bool),
	}

	uidNext := newUUIDTruncatingCounter()
	m.cache = controller.NewCache(cfg.cacheRoot, uidNext, cfg.logger, cfg.enableBlobDir)
	m.data = controller.NewData(m.source, m.cache, cfg.reflect, cfg.stream)

	if cfg.registry != nil {
		met := controller.NewPromMetrics(cfg.registry)
		m.cache.SetMetrics(met)
		m.data.SetMetrics(met)
	}

	m.ops = opqueue.New(opqueue.Config{
		Executor: cfg.executor,
		Logger:   cfg.logger,
		RingCap:  cfg.ringCap,
	})

	for i, domain := range cfg.domains {
		generation := uint32(i + 1)
		if _, err := m.cache.Open(domain, generation); err != nil {
			return nil, err
		}
	}

	if cfg.watchSource {
		if err := m.startWatch(); err != nil {
			m.logger.Warn("source watch unavailable, falling back to pure polling", zap.Error(err))
		}
	}

	return m, nil
}

// newUUIDTruncatingCounter produces CacheIndex.uid values by truncating a
// fresh google/uuid v4 to its leading 4 bytes, keeping per-object freshness
// tags unambiguous across re-created domains. Blob/generation ids
// (cacheblock.Open's generation argument) come instead from each domain's
// 1-based position in WithDomains, assigned in New.
func newUUIDTruncatingCounter() func() uint32 {
	return func() uint32 {
		id := uuid.New()
		return binary.BigEndian.Uint32(id[:4])
	}
}

// Create reserves a new record at path, serialises obj (or, if obj is nil,
// a freshly instantiated default) through the configured Stream, and writes
// the result as the record's source file before returning it. Synchronous:
// a brand-new record isn't yet a valid Operation Controller target for
// anything else to order against, so there is nothing to gain by queueing
// this call itself. SubmitCreate is the queued form, for callers that
// already drive the Operation Controller's dispatch loop and want Create
// ordered against a concurrent SubmitDelete of the same path.
func (m *Manager) Create(path asset.Path, concreteType string, obj asset.Object, parent *asset.TypeRecord) (*asset.TypeRecord, error) {
	return m.data.Create(path, concreteType, obj, parent)
}

// SubmitCreate is Create's queued counterpart: it enqueues the Create op
// through the Operation Controller (C5) and returns immediately. The
// created record is available on the returned Op's Target field once the
// Promise resolves with asset.Ok.
func (m *Manager) SubmitCreate(path asset.Path, concreteType string, obj asset.Object, parent *asset.TypeRecord, timeout time.Duration) (*opqueue.Op, *opqueue.Promise) {
	return m.submitCreate(path, concreteType, obj, parent, timeout)
}

func (m *Manager) submitCreate(path asset.Path, concreteType string, obj asset.Object, parent *asset.TypeRecord, timeout time.Duration) (*opqueue.Op, *opqueue.Promise) {
	op := &opqueue.Op{
		Kind:    opqueue.KindCreate,
		Domain:  path.Domain(),
		Path:    path,
		Parent:  parent,
		Object:  obj,
		Timeout: timeout,
	}
	op.Exec = func(ctx context.Context, op *opqueue.Op) (asset.ExitCondition, error) {
		rec, err := m.data.Create(op.Path, concreteType, op.Object, op.Parent)
		if err != nil {
			var opErr *asset.OpError
			if errors.As(err, &opErr) {
				return opErr.Code, err
			}
			return asset.IoError, err
		}
		op.Target = rec
		return asset.Ok, nil
	}
	return op, m.ops.Submit(op)
}

// Import probes source for path and, if present, synchronously loads it.
func (m *Manager) Import(ctx context.Context, path asset.Path, concreteType string) (*asset.TypeRecord, error) {
	return m.data.Import(ctx, path, concreteType)
}

// SubmitImport is Import's queued counterpart, routed through the
// Operation Controller the same way SubmitCreate is.
func (m *Manager) SubmitImport(path asset.Path, concreteType string, timeout time.Duration) (*opqueue.Op, *opqueue.Promise) {
	return m.submitImport(path, concreteType, timeout)
}

func (m *Manager) submitImport(path asset.Path, concreteType string, timeout time.Duration) (*opqueue.Op, *opqueue.Promise) {
	op := &opqueue.Op{
		Kind:    opqueue.KindImport,
		Domain:  path.Domain(),
		Path:    path,
		Timeout: timeout,
	}
	op.Exec = func(ctx context.Context, op *opqueue.Op) (asset.ExitCondition, error) {
		rec, err := m.data.Import(ctx, op.Path, concreteType)
		if err != nil {
			var opErr *asset.OpError
			if errors.As(err, &opErr) {
				return opErr.Code, err
			}
			return asset.IoError, err
		}
		op.Target = rec
		return asset.Ok, nil
	}
	return op, m.ops.Submit(op)
}

// Find resolves path to its TypeRecord.
func (m *Manager) Find(path asset.Path) (*asset.TypeRecord, bool) { return m.data.Find(path) }

// SubmitLoad enqueues a Load op for rec through the Operation Controller,
// which guarantees at most one in-flight Load per record and FIFO ordering
// against any other op already queued for the same target.
func (m *Manager) SubmitLoad(rec *asset.TypeRecord, flags asset.LoadFlags, timeout time.Duration) *opqueue.Promise {
	op := &opqueue.Op{
		Kind:    opqueue.KindLoad,
		Domain:  rec.Path().Domain(),
		Target:  rec,
		Flags:   flags,
		Timeout: timeout,
		Exec: func(ctx context.Context, op *opqueue.Op) (asset.ExitCondition, error) {
			if err := m.data.PublishLoad(ctx, op.Target, op.Flags); err != nil {
				var opErr *asset.OpError
				if errors.As(err, &opErr) {
					return opErr.Code, err
				}
				return asset.IoError, err
			}
			return asset.Ok, nil
		},
	}
	return m.ops.Submit(op)
}

// SubmitUpdateCache enqueues an UpdateCache op for rec.
func (m *Manager) SubmitUpdateCache(rec *asset.TypeRecord, timeout time.Duration) *opqueue.Promise {
	op := &opqueue.Op{
		Kind:    opqueue.KindUpdateCache,
		Domain:  rec.Path().Domain(),
		Target:  rec,
		Timeout: timeout,
		Exec: func(ctx context.Context, op *opqueue.Op) (asset.ExitCondition, error) {
			if err := m.data.UpdateCache(op.Target); err != nil {
				var opErr *asset.OpError
				if errors.As(err, &opErr) {
					return opErr.Code, err
				}
				return asset.IoError, err
			}
			return asset.Ok, nil
		},
	}
	return m.ops.Submit(op)
}

// SubmitDelete enqueues a Delete op for rec, depending on the completion of
// deleteDepsOn (ops that must finish first — e.g. the Deletes of every
// strong referrer).
func (m *Manager) SubmitDelete(rec *asset.TypeRecord, deleteDepsOn []*opqueue.Op, timeout time.Duration) *opqueue.Promise {
	op := &opqueue.Op{
		Kind:      opqueue.KindDelete,
		Domain:    rec.Path().Domain(),
		Target:    rec,
		DependsOn: deleteDepsOn,
		Timeout:   timeout,
		Exec: func(ctx context.Context, op *opqueue.Op) (asset.ExitCondition, error) {
			if err := m.data.Delete(op.Target); err != nil {
				var opErr *asset.OpError
				if errors.As(err, &opErr) {
					return opErr.Code, err
				}
				return asset.IoError, err
			}
			return asset.Ok, nil
		},
	}
	return m.ops.Submit(op)
}

// SubmitSaveDomain enqueues a SaveDomain op: it flushes domain's dirty-set
// through the Source Controller (C3), re-serialising every dirty record's
// current prototype to its source file and reclaiming the source file and
// cache object of anything marked Deleted.
func (m *Manager) SubmitSaveDomain(domain string, timeout time.Duration) *opqueue.Promise {
	op := &opqueue.Op{
		Kind:    opqueue.KindSaveDomain,
		Domain:  domain,
		Timeout: timeout,
		Exec: func(ctx context.Context, op *opqueue.Op) (asset.ExitCondition, error) {
			if err := m.data.SaveDomain(op.Domain); err != nil {
				var opErr *asset.OpError
				if errors.As(err, &opErr) {
					return opErr.Code, err
				}
				return asset.IoError, err
			}
			return asset.Ok, nil
		},
	}
	return m.ops.Submit(op)
}

// SubmitSaveDomainCache enqueues a SaveDomainCache op: it flushes domain's
// pending coalesced cache writes (C2) and clears the dirty-set, the second
// half of a domain save alongside SubmitSaveDomain.
func (m *Manager) SubmitSaveDomainCache(domain string, timeout time.Duration) *opqueue.Promise {
	op := &opqueue.Op{
		Kind:    opqueue.KindSaveDomainCache,
		Domain:  domain,
		Timeout: timeout,
		Exec: func(ctx context.Context, op *opqueue.Op) (asset.ExitCondition, error) {
			if err := m.cache.Flush(op.Domain); err != nil {
				var opErr *asset.OpError
				if errors.As(err, &opErr) {
					return opErr.Code, err
				}
				return asset.IoError, err
			}
			m.data.ClearDirty(op.Domain)
			return asset.Ok, nil
		},
	}
	return m.ops.Submit(op)
}

// Run drives the Operation Controller's dispatch loop and the periodic
// Update() reconciliation tick until ctx is done, analogous to AssetMgr.h's
// single-threaded Update() pump.
func (m *Manager) Run(ctx context.Context) error {
	go m.ops.Run(ctx)

	ticker := time.NewTicker(m.cfg.updateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.Update(ctx); err != nil {
				m.logger.Warn("reconciliation pass failed", zap.Error(err))
			}
		}
	}
}

// Update runs one reconciliation pass: flushes each domain's dirty set to
// source/cache, reaps TypeRecords whose strong refs, weak refs, and pin
// count have all reached zero since being marked Deleted, and, for domains
// flagged by the fsnotify fast path (or simply on every tick if watching is
// disabled), samples records whose modify_date predates their source
// file's mtime and re-imports them.
// Domains are fanned out with a bounded errgroup, one goroutine per domain
// capped at reconcileFanOut concurrent reconciliations.
func (m *Manager) Update(ctx context.Context) error {
	domains := m.cfg.domains
	if len(domains) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, reconcileFanOut)
	for _, domain := range domains {
		domain := domain
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}
			return m.reconcileDomain(gctx, domain)
		})
	}
	return g.Wait()
}

func (m *Manager) reconcileDomain(ctx context.Context, domain string) error {
	if err := m.flushDirty(domain); err != nil {
		return err
	}
	m.reapRemovable(domain)
	// When the fsnotify fast path is active, skip the mtime-sampling sweep
	// for domains with no reported filesystem activity since the last tick —
	// the watcher already told us nothing changed there.
	if m.watcher != nil && !m.consumeDirtySignal(domain) {
		return nil
	}
	return m.sampleStaleSources(ctx, domain)
}

// consumeDirtySignal reports and clears whether domain was flagged by the
// fsnotify fast path since the last call.
func (m *Manager) consumeDirtySignal(domain string) bool {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	dirty := m.dirtySig[domain]
	delete(m.dirtySig, domain)
	return dirty
}

// flushDirty runs both halves of a domain save directly (not through the
// Operation Controller — the periodic reconciliation tick already
// serialises itself via Run's single ticker goroutine): SaveDomain (C3)
// re-serialises dirty prototypes to source and reclaims Deleted records'
// source files/cache objects, then SaveDomainCache (C2) flushes the
// coalesced cache write buffer. The dirty-set is cleared only once both
// have committed.
func (m *Manager) flushDirty(domain string) error {
	dirty := m.data.DirtySet(domain)
	if len(dirty) == 0 {
		return nil
	}
	if err := m.data.SaveDomain(domain); err != nil {
		return err
	}
	if err := m.cache.Flush(domain); err != nil {
		return err
	}
	m.data.ClearDirty(domain)
	return nil
}

// reapRemovable drops every record in domain whose handle-protocol refs,
// pin count, and Deleted phase together satisfy IsRemovable: nothing can
// observe it anymore and its physical teardown (done by flushDirty before
// this runs) already completed.
func (m *Manager) reapRemovable(domain string) {
	reg := m.data.Registry(domain)
	for _, rec := range reg.All() {
		if rec.IsRemovable() {
			reg.Remove(rec)
		}
	}
}

// sampleStaleSources checks every record in domain whose modify_date
// predates its source file's current mtime and re-runs PublishLoad for it.
// The sample is the whole registry, since the in-process registry is
// already bounded by what has been resolved, not the full on-disk corpus.
func (m *Manager) sampleStaleSources(ctx context.Context, domain string) error {
	reg := m.data.Registry(domain)
	for _, rec := range reg.All() {
		rec.RLock()
		_, modifyDate := rec.ModifyMeta()
		rec.RUnlock()
		loadState := rec.LoadState()
		if loadState != asset.Loaded {
			continue
		}

		mtime, err := m.source.ModTime(rec.Path())
		if err != nil {
			continue // source file removed or never existed; not this pass's concern
		}
		if !mtime.After(modifyDate) {
			continue
		}

		if err := m.data.PublishLoad(ctx, rec, asset.Source); err != nil {
			m.logger.Warn("stale-source reconciliation failed",
				zap.String("path", rec.Path().String()), zap.Error(err))
			continue
		}
		rec.Lock()
		rec.SetModifyMeta(0, mtime)
		rec.Unlock()
	}
	return nil
}

// startWatch installs an fsnotify watcher on every configured domain's
// source-tree root. Because fsnotify does not watch recursively, any event
// anywhere under a domain simply flags that whole domain dirty for the next
// Update() tick rather than attempting to resolve the exact changed path —
// a coarser but correct fast path, trading precision for the complexity of
// a full recursive-watch implementation.
func (m *Manager) startWatch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	m.watcher = w

	for _, domain := range m.cfg.domains {
		if err := w.Add(m.source.DomainRoot(domain)); err != nil {
			m.logger.Warn("could not watch domain root",
				zap.String("domain", domain), zap.Error(err))
		}
	}

	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				m.markDomainDirtyFromEvent(event)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				m.logger.Warn("fsnotify watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

func (m *Manager) markDomainDirtyFromEvent(event fsnotify.Event) {
	for _, domain := range m.cfg.domains {
		if strings.HasPrefix(event.Name, m.source.DomainRoot(domain)) {
			m.watchMu.Lock()
			m.dirtySig[domain] = true
			m.watchMu.Unlock()
			return
		}
	}
}

// Close releases the watcher and cache resources. It does not stop the
// Operation Controller from accepting new submissions — that has no
// explicit stop; callers cancel the Run context instead.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		if m.watcher != nil {
			_ = m.watcher.Close()
		}
		err = m.cache.Close()
	})
	return err
}

var (
	globalMu sync.RWMutex
	global   *Manager
)

// SetGlobal installs m as the process-wide default Asset Manager, the Go
// analogue of AssetMgr.h's SetGlobal() singleton hook.
func SetGlobal(m *Manager) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = m
}

// Global returns the process-wide default Asset Manager, or nil if none has
// been installed.
func Global() *Manager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}
