// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package tailspin

import (
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/mgo/v3"
	"github.com/juju/mgo/v3/bson"
)

var logger = loggo.GetLogger("tailspin")

const (
	localDB         = "local"
	oplogCollection = "oplog.rs"

	// oplogAwaitInterval bounds a single server-side await cycle on the
	// tailable cursor. A cycle that elapses without new data is retried
	// inside Next and is invisible to the consumer.
	oplogAwaitInterval = 5 * time.Second
)

// Iterator is the subset of *mgo.Iter an Oplog reads raw entries
// through. It exists so tests can drive a stream without a server.
type Iterator interface {
	// Next reads the next raw entry into result, blocking until one is
	// available. It returns false on error or when the await window
	// elapsed without data; Timeout distinguishes the two.
	Next(result interface{}) bool

	// Timeout reports whether the last Next returned false only because
	// the await window elapsed.
	Timeout() bool

	// Err returns the error that stopped iteration, if any.
	Err() error

	// Close releases the server cursor.
	Close() error
}

// Oplog is a live, forward-only stream of operations read from a
// replica set's oplog. Once the stream has terminated - because the
// cursor failed, an entry could not be decoded, or Close was called -
// it never yields again; there is no rewind, checkpoint or reopen.
//
// An Oplog is a single-consumer resource: calling Next concurrently on
// the same stream is not supported.
type Oplog struct {
	session *mgo.Session
	iter    Iterator

	// mu guards closed, which Close may set from another goroutine
	// while the consumer is blocked in Next.
	mu     sync.Mutex
	closed bool

	done   bool
	reason error
}

// Next returns the next operation logged by the server, blocking until
// one is available. Operations are yielded in the server's log order,
// which is the commit order. It returns false once the stream has
// terminated, and keeps returning false on every subsequent call; Err
// reports why.
func (o *Oplog) Next() (Operation, bool) {
	if o.done {
		return nil, false
	}
	for {
		if o.isClosed() {
			o.terminate(nil)
			return nil, false
		}
		var entry bson.M
		if o.iter.Next(&entry) {
			op, err := Decode(entry)
			if err != nil {
				logger.Debugf("oplog stream stopping: %v", err)
				o.terminate(errors.Trace(err))
				return nil, false
			}
			return op, true
		}
		if o.iter.Timeout() {
			// The await window elapsed with nothing new; go around
			// again without surfacing anything to the consumer.
			continue
		}
		err := o.iter.Err()
		if o.isClosed() {
			// The consumer closed the stream; whatever the aborted
			// cursor reports now is not a fault.
			err = nil
		} else if err != nil {
			logger.Debugf("oplog cursor failed: %v", err)
			err = errors.Trace(err)
		}
		o.terminate(err)
		return nil, false
	}
}

// Err returns the read error or decode failure that terminated the
// stream. It returns nil while the stream is still active, and nil when
// the stream was ended by Close rather than by a fault. Decode failures
// satisfy IsMissingField or IsUnrecognizedKind.
func (o *Oplog) Err() error {
	return o.reason
}

// Close terminates the stream and releases the underlying cursor and
// session. It is safe to call while another goroutine is blocked in
// Next; the pending pull will observe end-of-stream. Closing an
// already closed stream does nothing.
func (o *Oplog) Close() error {
	o.mu.Lock()
	alreadyClosed := o.closed
	o.closed = true
	o.mu.Unlock()
	if alreadyClosed {
		return nil
	}
	if o.session != nil {
		// Closing the session interrupts a read in flight and kills
		// the server cursor with it.
		o.session.Close()
		return nil
	}
	return o.iter.Close()
}

func (o *Oplog) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *Oplog) terminate(reason error) {
	o.done = true
	if err := o.iter.Close(); err != nil && reason == nil && !o.isClosed() {
		reason = errors.Trace(err)
	}
	o.reason = reason
}

// Builder assembles the configuration for an Oplog. The zero filter
// returns every entry in the log; Filter narrows it. A Builder may be
// consumed by Build any number of times, each call producing an
// independent stream over its own cursor.
type Builder struct {
	session *mgo.Session
	filter  bson.D
}

// NewBuilder returns a Builder that will tail the oplog reachable
// through the given session. The session is only a handle: each Build
// copies it, so the caller keeps ownership and may share it freely.
func NewBuilder(session *mgo.Session) *Builder {
	return &Builder{session: session}
}

// Filter restricts the entries the server returns to those matching
// the given query document, for example KindFilter or NamespaceFilter
// output. It replaces any previously set filter; nil restores the
// default of returning everything.
func (b *Builder) Filter(filter bson.D) *Builder {
	b.filter = filter
	return b
}

// Build issues the tailable query and returns the resulting stream.
// The cursor is opened tailable and awaiting, with the server's idle
// cursor timeout disabled, so it survives long quiet stretches. Build
// fails if the server cannot be reached; no stream is returned on
// failure.
func (b *Builder) Build() (*Oplog, error) {
	if b.session == nil {
		return nil, errors.NotValidf("oplog builder with nil session")
	}
	session := b.session.Copy()
	if err := session.Ping(); err != nil {
		session.Close()
		return nil, errors.Annotate(err, "cannot establish oplog cursor")
	}
	session.SetCursorTimeout(0)
	iter := session.DB(localDB).C(oplogCollection).Find(b.filter).Tail(oplogAwaitInterval)
	return &Oplog{session: session, iter: iter}, nil
}

// New returns a stream over the full, unfiltered oplog reachable
// through the given session.
func New(session *mgo.Session) (*Oplog, error) {
	return NewBuilder(session).Build()
}
