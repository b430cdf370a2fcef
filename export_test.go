// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package tailspin

import (
	"github.com/juju/mgo/v3/bson"
)

// BuilderFilter exposes the filter a builder would pass to the server.
func BuilderFilter(b *Builder) bson.D {
	return b.filter
}

// NewStreamFromIterator returns a stream reading through the given
// iterator directly, so tests can drive it without a server.
func NewStreamFromIterator(iter Iterator) *Oplog {
	return &Oplog{iter: iter}
}

// NewTailerFromIterator starts a tailer over a stream reading through
// the given iterator.
func NewTailerFromIterator(iter Iterator) *Tailer {
	return newTailer(&Oplog{iter: iter})
}
