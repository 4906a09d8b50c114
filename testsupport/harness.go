// Package testsupport collects shared test fixtures: a manager.Manager wired
// to temp source/cache roots with one registered concrete type, and a clock
// that can be advanced without sleeping. The package tests in this
// repository declare their own helpers and do not import it.
package testsupport

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/liteforge/assetcore/asset"
	"github.com/liteforge/assetcore/manager"
	"github.com/liteforge/assetcore/serialize"
)

// RawText is the fixture concrete type registered by NewFixtureManager: its
// entire Load/Save round trip is the UTF-8 bytes of Text, the same
// body-as-bytes approach every hand-rolled example/benchmark Stream in this
// repository already uses.
type RawText struct{ Text string }

// RawTextStream implements serialize.Stream for RawText with no
// dependencies.
type RawTextStream struct{}

func (RawTextStream) Encode(obj asset.Object, _ serialize.DependencyWalker) ([]byte, error) {
	return []byte(obj.(*RawText).Text), nil
}

func (RawTextStream) Decode(data []byte, into asset.Object, _ serialize.DependencyWalker) error {
	into.(*RawText).Text = string(data)
	return nil
}

// NewFixtureRegistry returns a serialize.Registry with RawText registered
// under concrete type "RawText".
func NewFixtureRegistry() serialize.Registry {
	reg := serialize.NewRegistry()
	reg.Register("RawText",
		func() asset.Object { return &RawText{} },
		func(dst, src asset.Object) { dst.(*RawText).Text = src.(*RawText).Text },
	)
	return reg
}

// NewFixtureManager builds a Manager rooted at fresh t.TempDir() source/cache
// directories, with RawText as its only registered type and domains opened.
// It registers t.Cleanup to close the Manager, freeing callers from doing so
// themselves.
func NewFixtureManager(t testing.TB, domains ...string) *manager.Manager {
	t.Helper()
	m, err := manager.New(
		manager.WithSourceRoot(t.TempDir()),
		manager.WithCacheRoot(t.TempDir()),
		manager.WithDomains(domains...),
		manager.WithReflect(NewFixtureRegistry()),
		manager.WithStream(RawTextStream{}),
	)
	if err != nil {
		t.Fatalf("testsupport: manager.New: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// FakeClock is a time source that advances only when told to. The Manager
// takes no clock: its source-file staleness check reads real file mtimes.
type FakeClock struct {
	nanos atomic.Int64
}

// NewFakeClock returns a FakeClock initialised to start.
func NewFakeClock(start time.Time) *FakeClock {
	c := &FakeClock{}
	c.nanos.Store(start.UnixNano())
	return c
}

// Now returns the clock's current time.
func (c *FakeClock) Now() time.Time {
	return time.Unix(0, c.nanos.Load())
}

// Advance moves the clock forward by d and returns the new time.
func (c *FakeClock) Advance(d time.Duration) time.Time {
	return time.Unix(0, c.nanos.Add(int64(d)))
}

// Set pins the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.nanos.Store(t.UnixNano())
}
