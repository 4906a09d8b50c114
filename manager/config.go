package manager

// config.go defines the Asset Manager's configuration object and the set of
// functional options that influence it: an Option/defaultConfig/applyOptions
// shape with no generic type parameters, since the façade has no K/V to
// parameterise over.
//
// Design notes
// ------------
// - All fields are initialised with sensible defaults in defaultConfig().
// - Options never allocate unless strictly necessary.
// - The config struct itself stays unexported: callers only influence
//   behaviour through Option values.

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/liteforge/assetcore/executor"
	"github.com/liteforge/assetcore/serialize"
)

// Option is a functional option passed to New.
type Option func(*config)

type config struct {
	sourceRoot string
	cacheRoot  string
	domains    []string

	logger   *zap.Logger
	registry *prometheus.Registry
	executor executor.Executor
	reflect  serialize.Registry
	stream   serialize.Stream

	enableBlobDir  bool
	watchSource    bool
	updateInterval time.Duration
	ringCap        int
}

func defaultConfig() *config {
	return &config{
		logger:         zap.NewNop(),
		executor:       executor.NewPool(0),
		updateInterval: 5 * time.Second,
		ringCap:        256,
	}
}

// WithSourceRoot sets the Source Controller's root directory.
func WithSourceRoot(root string) Option { return func(c *config) { c.sourceRoot = root } }

// WithCacheRoot sets the Cache Controller's root directory.
func WithCacheRoot(root string) Option { return func(c *config) { c.cacheRoot = root } }

// WithDomains declares the domains the manager manages up front, needed to
// set up per-domain cache blocks and (when enabled) source-tree watches.
func WithDomains(domains ...string) Option {
	return func(c *config) { c.domains = append([]string(nil), domains...) }
}

// WithLogger plugs an external zap.Logger. Hot paths never log; only slow
// events (cache-block open failures, blob-directory errors, reconciliation
// failures, source-watch errors) are emitted.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics collection. Passing nil leaves
// metrics disabled (the default).
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) { c.registry = reg }
}

// WithExecutor overrides the default unbounded goroutine-pool Executor.
func WithExecutor(e executor.Executor) Option {
	return func(c *config) {
		if e != nil {
			c.executor = e
		}
	}
}

// WithReflect installs the reflection collaborator. Required.
func WithReflect(r serialize.Registry) Option { return func(c *config) { c.reflect = r } }

// WithStream installs the serialisation stream collaborator. Required.
func WithStream(s serialize.Stream) Option { return func(c *config) { c.stream = s } }

// WithBlobDir turns on the optional Badger-backed debuggability index for
// every domain's cache block.
func WithBlobDir(enabled bool) Option { return func(c *config) { c.enableBlobDir = enabled } }

// WithSourceWatch turns on fsnotify-based change tracking: a change in a
// watched domain's source tree flags that domain, and the next Update() tick
// runs mtime sampling only for flagged domains. No reconciliation pass runs
// between ticks.
func WithSourceWatch(enabled bool) Option { return func(c *config) { c.watchSource = enabled } }

// WithUpdateInterval sets the façade's periodic Update() tick when run via
// Run(ctx). Defaults to 5s.
func WithUpdateInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.updateInterval = d
		}
	}
}

// WithRingCapacity overrides the Operation Controller's dispatch ring
// capacity (default 256).
func WithRingCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.ringCap = n
		}
	}
}

func applyOptions(cfg *config, opts []Option) error {
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.sourceRoot == "" {
		return errInvalidSourceRoot
	}
	if cfg.cacheRoot == "" {
		return errInvalidCacheRoot
	}
	if cfg.reflect == nil {
		return errMissingReflect
	}
	if cfg.stream == nil {
		return errMissingStream
	}
	return nil
}

var (
	errInvalidSourceRoot = errors.New("manager: source root must be set")
	errInvalidCacheRoot  = errors.New("manager: cache root must be set")
	errMissingReflect    = errors.New("manager: reflection registry must be set")
	errMissingStream     = errors.New("manager: serialisation stream must be set")
)
