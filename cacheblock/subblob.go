package cacheblock

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// subBlobPool lazily opens and caches *os.File handles for a block's
// "_HH.cache" payload files, so repeated reads/writes don't pay open()/
// close() cost on every call. Files are opened read-write, created on first
// use.
type subBlobPool struct {
	dir        string
	generation uint32

	mu    sync.Mutex
	files map[uint16]*os.File
}

func newSubBlobPool(dir string, generation uint32) *subBlobPool {
	return &subBlobPool{
		dir:        dir,
		generation: generation,
		files:      make(map[uint16]*os.File),
	}
}

// filename returns the on-disk path for a sub-blob, matching
// "block_<NNNN>_<HH>.cache".
func (p *subBlobPool) filename(subBlob uint16) string {
	return filepath.Join(p.dir, fmt.Sprintf("block_%04X_%02X.cache", p.generation, subBlob))
}

func (p *subBlobPool) handle(subBlob uint16) (*os.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f, ok := p.files[subBlob]; ok {
		return f, nil
	}
	f, err := os.OpenFile(p.filename(subBlob), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cacheblock: open sub-blob %02X: %w", subBlob, err)
	}
	p.files[subBlob] = f
	return f, nil
}

// ReadAt reads len(dst) bytes from subBlob at offset.
func (p *subBlobPool) ReadAt(subBlob uint16, offset int64, dst []byte) error {
	f, err := p.handle(subBlob)
	if err != nil {
		return err
	}
	_, err = f.ReadAt(dst, offset)
	return err
}

// WriteAt writes src to subBlob at offset.
func (p *subBlobPool) WriteAt(subBlob uint16, offset int64, src []byte) error {
	f, err := p.handle(subBlob)
	if err != nil {
		return err
	}
	_, err = f.WriteAt(src, offset)
	return err
}

// Size returns the current size of subBlob, 0 if it has never been opened.
func (p *subBlobPool) Size(subBlob uint16) (int64, error) {
	f, err := p.handle(subBlob)
	if err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Close closes every open handle.
func (p *subBlobPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, f := range p.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.files = make(map[uint16]*os.File)
	return firstErr
}
