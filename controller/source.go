// Package controller implements the Source, Cache and Data controllers
// (C2/C3/C4): the two parallel on-disk representations of an asset (an
// editable source tree and a packed cache) plus the in-memory registry
// mapping paths to TypeRecords.
package controller

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/liteforge/assetcore/asset"
)

// Source is the Source Controller (C3): one human-editable file per asset,
// grouped by domain, modelled on the original engine's
// AssetMgr::GetSourceData / GetSourcePaths surface.
type Source struct {
	root string
}

// NewSource constructs a Source Controller rooted at root
// ("<source_root>/<domain>/<scope...>/<name>.<ext>").
func NewSource(root string) *Source {
	return &Source{root: root}
}

// filePath maps a canonical asset Path to its on-disk file path.
func (s *Source) filePath(p asset.Path) string {
	segments := strings.Split(strings.TrimPrefix(p.String(), p.Domain()+"//"), "/")
	parts := append([]string{s.root, p.Domain()}, segments...)
	return filepath.Join(parts...)
}

// DomainRoot returns the on-disk directory backing domain, used by the
// façade's fsnotify fast path to install a watch.
func (s *Source) DomainRoot(domain string) string {
	return filepath.Join(s.root, domain)
}

// Exists reports whether the source file for p is present.
func (s *Source) Exists(p asset.Path) bool {
	_, err := os.Stat(s.filePath(p))
	return err == nil
}

// Read returns the raw bytes of the source file for p.
func (s *Source) Read(p asset.Path) ([]byte, error) {
	data, err := os.ReadFile(s.filePath(p))
	if os.IsNotExist(err) {
		return nil, asset.NewOpError(asset.NotFound, err)
	}
	if err != nil {
		return nil, asset.NewOpError(asset.IoError, err)
	}
	return data, nil
}

// Write creates or overwrites the source file for p, creating any missing
// parent directories (an asset's scope segments become directories).
func (s *Source) Write(p asset.Path, data []byte) error {
	path := s.filePath(p)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return asset.NewOpError(asset.IoError, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return asset.NewOpError(asset.IoError, err)
	}
	return nil
}

// Delete removes the source file for p.
func (s *Source) Delete(p asset.Path) error {
	err := os.Remove(s.filePath(p))
	if err != nil && !os.IsNotExist(err) {
		return asset.NewOpError(asset.IoError, err)
	}
	return nil
}

// ModTime returns the source file's modification time, used by the
// façade's reconciliation pass to detect external edits.
func (s *Source) ModTime(p asset.Path) (time.Time, error) {
	info, err := os.Stat(s.filePath(p))
	if err != nil {
		return time.Time{}, asset.NewOpError(asset.NotFound, err)
	}
	return info.ModTime(), nil
}

// Enumerate walks every source file under domain and returns their
// canonical Paths, sorted for deterministic iteration.
func (s *Source) Enumerate(domain string) ([]asset.Path, error) {
	domainRoot := filepath.Join(s.root, domain)
	var out []asset.Path
	err := filepath.Walk(domainRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == domainRoot {
				return filepath.SkipDir
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		out = append(out, asset.NewPath(domain+"//"+strings.TrimPrefix(filepath.ToSlash(rel), domain+"/")))
		return nil
	})
	if err != nil {
		return nil, asset.NewOpError(asset.IoError, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// QueryResult is the lightweight probe result returned by Query, distinct
// from a full Import: it answers "does source exist, and what does its
// extension suggest about concrete type" without reading or decoding the
// file. Grounded on AssetMgr.h's QuerySourceInfo.
type QueryResult struct {
	Exists           bool
	ConcreteTypeHint string
	ModTime          time.Time
	Size             int64
}

// Query probes path without importing it.
func (s *Source) Query(p asset.Path) (QueryResult, bool) {
	info, err := os.Stat(s.filePath(p))
	if err != nil {
		return QueryResult{}, false
	}
	return QueryResult{
		Exists:           true,
		ConcreteTypeHint: p.Extension(),
		ModTime:          info.ModTime(),
		Size:             info.Size(),
	}, true
}
