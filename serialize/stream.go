// Package serialize defines the collaborator interfaces the asset core
// consumes for object (de)serialisation and reflection. The core never
// implements a concrete binary format itself — it is explicitly agnostic to
// how a concrete asset type encodes its own fields; asset-specific
// compilation is out of scope.
package serialize

import "github.com/liteforge/assetcore/asset"

// DependencyWalker is invoked once per reference a Stream discovers while
// encoding or decoding an object, so the Data Controller can maintain
// dependency edges (C8) without the stream needing to know about
// TypeRecords.
type DependencyWalker func(path asset.Path, strong bool)

// Stream is the serialisation collaborator: it turns an in-memory object
// into bytes and back, reporting every asset reference it walks through
// along the way.
type Stream interface {
	Encode(obj asset.Object, walk DependencyWalker) ([]byte, error)
	Decode(data []byte, into asset.Object, walk DependencyWalker) error
}
