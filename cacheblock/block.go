package cacheblock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/liteforge/assetcore/asset"
	"github.com/liteforge/assetcore/internal/rwpriority"
)

// region is a free, reusable span inside one sub-blob file.
type region struct {
	SubBlob uint16
	Offset  uint64
	Size    uint32
}

// CacheBlock is one domain's packed binary container for one generation
// (blob id): an in-memory object table, a free-list of reclaimed regions,
// and the pool of "_HH.cache" sub-blob files backing it (C1).
//
// Invariants maintained by this type: objects never overlap (each
// allocation either extends the tail or reuses a disjoint free-list
// region), and a uid is never reused for a different object_id within the
// block's lifetime.
type CacheBlock struct {
	domain     string
	generation uint32
	dir        string

	lock rwpriority.Lock

	pool    *subBlobPool
	uidNext func() uint32

	maxSubBlobSize uint64

	objects  map[uint32]objectEntry
	freeList []region

	nextObjectID   uint32
	currentSubBlob uint16
	currentOffset  uint64

	dirty bool
}

func indexPath(dir string, generation uint32) string {
	return filepath.Join(dir, fmt.Sprintf("block_%04X.index", generation))
}

// Open loads an existing block's index file under dir, or creates a fresh
// one if it does not exist yet. uidNext supplies freshness tags for newly
// allocated objects (the manager wires this to a truncated google/uuid
// generator).
func Open(dir, domain string, generation uint32, maxSubBlobSize uint64, uidNext func() uint32) (*CacheBlock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cacheblock: mkdir %s: %w", dir, err)
	}

	b := &CacheBlock{
		domain:         domain,
		generation:     generation,
		dir:            dir,
		pool:           newSubBlobPool(dir, generation),
		uidNext:        uidNext,
		maxSubBlobSize: maxSubBlobSize,
		objects:        make(map[uint32]objectEntry),
	}

	data, err := os.ReadFile(indexPath(dir, generation))
	if os.IsNotExist(err) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cacheblock: read index: %w", err)
	}

	onDiskDomain, entries, err := decodeIndex(data)
	if err != nil {
		return nil, asset.NewOpError(asset.DeserialisationError, err)
	}
	if onDiskDomain != domain {
		return nil, asset.NewOpError(asset.DeserialisationError,
			fmt.Errorf("cacheblock: index domain mismatch: file has %q, opened as %q", onDiskDomain, domain))
	}

	for _, e := range entries {
		b.objects[e.ObjectID] = e
		if e.ObjectID >= b.nextObjectID {
			b.nextObjectID = e.ObjectID + 1
		}
		end := e.Offset + uint64(e.Size)
		if e.SubBlob > b.currentSubBlob || (e.SubBlob == b.currentSubBlob && end > b.currentOffset) {
			b.currentSubBlob = e.SubBlob
			b.currentOffset = end
		}
	}
	return b, nil
}

// GetObject returns the object table entry idx resolves to, verifying the
// uid matches, the way the original engine's CacheBlock::GetObject feeds
// CacheReader::Open (original_source CacheReader.cpp).
func (b *CacheBlock) GetObject(idx asset.CacheIndex) (objectID uint32, size uint32, ok bool) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	e, found := b.objects[idx.ObjectID]
	if !found || e.UID != idx.UID {
		return 0, 0, false
	}
	return e.ObjectID, e.Size, true
}

// Allocate reserves size bytes for a new object, preferring a big-enough
// free-list region, else extending the current sub-blob, else rolling over
// to a new one.
func (b *CacheBlock) Allocate(size uint32) (asset.CacheIndex, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	reg, reused := b.takeFreeRegion(size)
	if !reused {
		if b.currentOffset+uint64(size) > b.maxSubBlobSize {
			if b.currentSubBlob == ^uint16(0) {
				return asset.CacheIndex{}, asset.NewOpError(asset.OutOfSpace, nil)
			}
			b.currentSubBlob++
			b.currentOffset = 0
		}
		reg = region{SubBlob: b.currentSubBlob, Offset: b.currentOffset, Size: size}
		b.currentOffset += uint64(size)
	}

	objectID := b.nextObjectID
	b.nextObjectID++
	uid := b.uidNext()

	b.objects[objectID] = objectEntry{
		ObjectID: objectID,
		UID:      uid,
		SubBlob:  reg.SubBlob,
		Offset:   reg.Offset,
		Size:     size,
	}
	b.dirty = true
	return asset.CacheIndex{BlobID: b.generation, ObjectID: objectID, UID: uid}, nil
}

// takeFreeRegion removes and returns the first free-list region at least
// size bytes, if any.
func (b *CacheBlock) takeFreeRegion(size uint32) (region, bool) {
	for i, r := range b.freeList {
		if r.Size >= size {
			b.freeList = append(b.freeList[:i], b.freeList[i+1:]...)
			return region{SubBlob: r.SubBlob, Offset: r.Offset, Size: size}, true
		}
	}
	return region{}, false
}

// WriteAt stores data into the region previously returned by Allocate for
// idx. The write length must equal the allocated size exactly.
func (b *CacheBlock) WriteAt(idx asset.CacheIndex, data []byte) error {
	b.lock.RLock()
	e, ok := b.objects[idx.ObjectID]
	b.lock.RUnlock()
	if !ok || e.UID != idx.UID {
		return asset.NewOpError(asset.NotFound, nil)
	}
	if uint32(len(data)) != e.Size {
		return asset.NewOpError(asset.IoError, fmt.Errorf("cacheblock: write size %d != allocated size %d", len(data), e.Size))
	}
	if err := b.pool.WriteAt(e.SubBlob, int64(e.Offset), data); err != nil {
		return asset.NewOpError(asset.IoError, err)
	}
	return nil
}

// Read verifies idx.UID against the stored uid, then reads exactly the
// object's size into dst.
func (b *CacheBlock) Read(idx asset.CacheIndex, dst []byte) error {
	b.lock.RLock()
	e, ok := b.objects[idx.ObjectID]
	b.lock.RUnlock()
	if !ok {
		return asset.NewOpError(asset.NotFound, nil)
	}
	if e.UID != idx.UID {
		return asset.NewOpError(asset.StaleUID, nil)
	}
	if uint32(len(dst)) != e.Size {
		return asset.NewOpError(asset.IoError, fmt.Errorf("cacheblock: read buffer size %d != object size %d", len(dst), e.Size))
	}
	if err := b.pool.ReadAt(e.SubBlob, int64(e.Offset), dst); err != nil {
		return asset.NewOpError(asset.IoError, err)
	}
	return nil
}

// Delete returns objectID's region to the free-list and removes its object
// table entry. Object ids are never reused, so a subsequent Read with the
// old CacheIndex reports NotFound instead of silently returning reused
// bytes.
func (b *CacheBlock) Delete(objectID uint32) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	e, ok := b.objects[objectID]
	if !ok {
		return asset.NewOpError(asset.NotFound, nil)
	}
	delete(b.objects, objectID)
	b.freeList = append(b.freeList, region{SubBlob: e.SubBlob, Offset: e.Offset, Size: e.Size})
	b.dirty = true
	return nil
}

// Flush writes the index header to disk if it has changed since the last
// flush. It writes to a temp file and renames into place so a crash never
// leaves a half-written index — a domain mismatch or corrupt footer marks
// the block unreadable on next open, and the rename makes that case
// unreachable in the normal shutdown path.
func (b *CacheBlock) Flush() error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if !b.dirty {
		return nil
	}

	entries := make([]objectEntry, 0, len(b.objects))
	for _, e := range b.objects {
		entries = append(entries, e)
	}
	data := encodeIndex(b.domain, entries)

	tmp := indexPath(b.dir, b.generation) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return asset.NewOpError(asset.IoError, err)
	}
	if err := os.Rename(tmp, indexPath(b.dir, b.generation)); err != nil {
		return asset.NewOpError(asset.IoError, err)
	}
	b.dirty = false
	return nil
}

// ObjectCount returns the number of live objects currently tracked.
func (b *CacheBlock) ObjectCount() int {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return len(b.objects)
}

// Validate re-reads every tracked object's bytes and confirms its stored
// size is actually retrievable from its sub-blob, the out-of-cycle
// counterpart to the integrity check Open runs automatically, backing the
// façade's CacheControllerValidate hook. It returns the first error
// encountered, if any.
func (b *CacheBlock) Validate() error {
	b.lock.RLock()
	entries := make([]objectEntry, 0, len(b.objects))
	for _, e := range b.objects {
		entries = append(entries, e)
	}
	b.lock.RUnlock()

	buf := make([]byte, 0)
	for _, e := range entries {
		idx := asset.CacheIndex{BlobID: b.generation, ObjectID: e.ObjectID, UID: e.UID}
		if cap(buf) < int(e.Size) {
			buf = make([]byte, e.Size)
		}
		if err := b.Read(idx, buf[:e.Size]); err != nil {
			return fmt.Errorf("cacheblock: validate object %d: %w", e.ObjectID, err)
		}
	}
	return nil
}

// Close flushes pending changes and releases sub-blob file handles.
func (b *CacheBlock) Close() error {
	if err := b.Flush(); err != nil {
		return err
	}
	return b.pool.Close()
}
