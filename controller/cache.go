package controller

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/liteforge/assetcore/asset"
	"github.com/liteforge/assetcore/cacheblock"
)

const defaultMaxSubBlobSize = 64 << 20 // 64 MiB per-generation sub-blob size

// Cache is the Cache Controller (C2): owns one cacheblock.CacheBlock per
// loaded domain plus an optional Badger-backed blob directory used purely
// for debuggability lookups (uid -> object_id). The directory stores the
// object id only; no path hash is recorded.
//
// Writes are coalesced: WriteObject only ever keeps the latest pending
// buffer for a given object id, so a record that's rewritten twice before
// the next flush only costs one disk write.
type Cache struct {
	root     string
	logger   *zap.Logger
	uidNext  func() uint32
	blobDirs bool
	metrics  Metrics

	mu     sync.Mutex
	blocks map[string]*cacheblock.CacheBlock // domain -> current-generation block
	dirs   map[string]*badger.DB            // domain -> blob directory

	pendingMu sync.Mutex
	pending   map[string]map[uint32]pendingWrite // domain -> object_id -> latest buffer
}

// pendingWrite is a coalesced write waiting for the next Flush.
type pendingWrite struct {
	idx  asset.CacheIndex
	data []byte
}

// NewCache constructs a Cache Controller rooted at root
// ("<cache_root>/<domain>/..."). uidNext supplies freshness tags for
// newly allocated cache objects. logger defaults to a no-op logger.
// enableBlobDir turns on the optional Badger-backed debuggability index.
func NewCache(root string, uidNext func() uint32, logger *zap.Logger, enableBlobDir bool) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		root:     root,
		logger:   logger,
		uidNext:  uidNext,
		blobDirs: enableBlobDir,
		metrics:  NoopMetrics(),
		blocks:   make(map[string]*cacheblock.CacheBlock),
		dirs:     make(map[string]*badger.DB),
		pending:  make(map[string]map[uint32]pendingWrite),
	}
}

// SetMetrics installs m as the controller's metrics sink, replacing the
// default no-op. Intended to be called once during Asset Manager wiring,
// before any domain is opened.
func (c *Cache) SetMetrics(m Metrics) {
	if m == nil {
		m = NoopMetrics()
	}
	c.metrics = m
}

func (c *Cache) domainDir(domain string) string {
	return filepath.Join(c.root, domain)
}

// Open loads (or creates) generation's CacheBlock for domain and runs the
// integrity check: every object table entry is assumed
// live; a corrupt index simply fails to open, which the caller reports as
// DeserialisationError on the whole domain rather than per-record, since at
// open time no TypeRecords have been associated with cache indices yet.
func (c *Cache) Open(domain string, generation uint32) (*cacheblock.CacheBlock, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.blocks[domain]; ok {
		return b, nil
	}

	block, err := cacheblock.Open(c.domainDir(domain), domain, generation, defaultMaxSubBlobSize, c.uidNext)
	if err != nil {
		c.logger.Warn("cache block failed integrity check on open",
			zap.String("domain", domain), zap.Uint32("generation", generation), zap.Error(err))
		return nil, err
	}
	c.blocks[domain] = block

	if c.blobDirs {
		dir, err := c.openBlobDir(domain)
		if err != nil {
			c.logger.Warn("blob directory unavailable, continuing without it",
				zap.String("domain", domain), zap.Error(err))
		} else {
			c.dirs[domain] = dir
		}
	}
	return block, nil
}

func (c *Cache) openBlobDir(domain string) (*badger.DB, error) {
	opts := badger.DefaultOptions(filepath.Join(c.domainDir(domain), "blobdir")).WithLogger(nil)
	return badger.Open(opts)
}

// ReadObject reads the object idx refers to from domain's block. Intended
// to be called from an executor-pool goroutine (the Load publication
// protocol's step 2), not the façade's single update() thread.
func (c *Cache) ReadObject(domain string, idx asset.CacheIndex) ([]byte, error) {
	c.mu.Lock()
	block := c.blocks[domain]
	c.mu.Unlock()
	if block == nil {
		return nil, asset.NewOpError(asset.NotFound, fmt.Errorf("cache: domain %q not open", domain))
	}

	_, size, ok := block.GetObject(idx)
	if !ok {
		return nil, asset.NewOpError(asset.StaleUID, nil)
	}
	buf := make([]byte, size)
	if err := block.Read(idx, buf); err != nil {
		return nil, err
	}
	c.metrics.IncCacheHit(domain)
	return buf, nil
}

// WriteObject stages data as the latest pending write for idx.ObjectID in
// domain; the actual disk write happens on the next Flush, coalescing
// repeated writes between flushes: only the latest pending buffer for a
// given object_id is flushed.
func (c *Cache) WriteObject(domain string, idx asset.CacheIndex, data []byte) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if c.pending[domain] == nil {
		c.pending[domain] = make(map[uint32]pendingWrite)
	}
	c.pending[domain][idx.ObjectID] = pendingWrite{idx: idx, data: data}
}

// Allocate reserves space for a new object of size bytes in domain's
// current block.
func (c *Cache) Allocate(domain string, size uint32) (asset.CacheIndex, error) {
	c.mu.Lock()
	block := c.blocks[domain]
	dir := c.dirs[domain]
	c.mu.Unlock()
	if block == nil {
		return asset.CacheIndex{}, asset.NewOpError(asset.NotFound, fmt.Errorf("cache: domain %q not open", domain))
	}
	idx, err := block.Allocate(size)
	if err != nil {
		return idx, err
	}
	c.metrics.AddCacheBytes(domain, int64(size))
	if dir != nil {
		if err := dir.Update(func(txn *badger.Txn) error {
			return txn.Set(uidKey(idx.UID), objectIDValue(idx.ObjectID))
		}); err != nil {
			c.logger.Warn("blob directory write failed, debug lookups for this object will miss",
				zap.String("domain", domain), zap.Uint32("uid", idx.UID), zap.Error(err))
		}
	}
	return idx, nil
}

// DeleteObject reclaims objectID's region in domain's block and drops any
// write still pending for it.
func (c *Cache) DeleteObject(domain string, objectID uint32) error {
	c.mu.Lock()
	block := c.blocks[domain]
	c.mu.Unlock()
	if block == nil {
		return asset.NewOpError(asset.NotFound, fmt.Errorf("cache: domain %q not open", domain))
	}
	c.pendingMu.Lock()
	delete(c.pending[domain], objectID)
	c.pendingMu.Unlock()
	return block.Delete(objectID)
}

// LookupDebug resolves uid to the object id it was last allocated under, via
// the optional Badger blob directory. It exists purely for debuggability
// and is never consulted on the
// Read/Write hot path; ok is false if the blob directory is disabled or the
// uid was never recorded.
func (c *Cache) LookupDebug(domain string, uid uint32) (objectID uint32, ok bool) {
	c.mu.Lock()
	dir := c.dirs[domain]
	c.mu.Unlock()
	if dir == nil {
		return 0, false
	}
	err := dir.View(func(txn *badger.Txn) error {
		item, err := txn.Get(uidKey(uid))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			objectID = binary.BigEndian.Uint32(v)
			return nil
		})
	})
	return objectID, err == nil
}

func uidKey(uid uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uid)
	return b
}

func objectIDValue(objectID uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, objectID)
	return b
}

// Flush writes every pending coalesced buffer for domain to its block and
// persists the block's index.
func (c *Cache) Flush(domain string) error {
	c.mu.Lock()
	block := c.blocks[domain]
	c.mu.Unlock()
	if block == nil {
		return asset.NewOpError(asset.NotFound, fmt.Errorf("cache: domain %q not open", domain))
	}

	c.pendingMu.Lock()
	pending := c.pending[domain]
	delete(c.pending, domain)
	c.pendingMu.Unlock()

	for _, w := range pending {
		if err := block.WriteAt(w.idx, w.data); err != nil {
			return err
		}
	}
	return block.Flush()
}

// ValidateDomain runs the integrity check against domain's block
// outside the normal Open-time path, backing the façade's
// CacheControllerValidate hook.
func (c *Cache) ValidateDomain(domain string) error {
	c.mu.Lock()
	block := c.blocks[domain]
	c.mu.Unlock()
	if block == nil {
		return asset.NewOpError(asset.NotFound, fmt.Errorf("cache: domain %q not open", domain))
	}
	return block.Validate()
}

// Close flushes and closes every open domain block and blob directory.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for domain, b := range c.blocks {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.blocks, domain)
	}
	for domain, d := range c.dirs {
		if err := d.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.dirs, domain)
	}
	return firstErr
}
