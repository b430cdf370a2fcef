// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package tailspin

import (
	"github.com/juju/errors"
	"github.com/juju/mgo/v3"
	"github.com/juju/mgo/v3/bson"
	"github.com/juju/worker/v4"
	"gopkg.in/tomb.v2"
)

// TailerConfig contains the configuration parameters required for a
// NewTailer.
type TailerConfig struct {
	// Session is the handle the oplog is tailed through. The tailer
	// takes its own copy, so the caller keeps ownership.
	Session *mgo.Session

	// Filter optionally restricts which entries the server returns.
	// Nil means every entry.
	Filter bson.D
}

// Validate ensures that all the values that have to be set are set.
func (config TailerConfig) Validate() error {
	if config.Session == nil {
		return errors.NotValidf("missing Session")
	}
	return nil
}

// Tailer reads operations from an oplog stream and delivers them on a
// channel until it is killed or the stream terminates. It exists for
// callers that want an explicit kill switch over the indefinitely
// blocking read; the channel stays a single-consumer feed, and nothing
// is retried or resumed on failure.
type Tailer struct {
	tomb   tomb.Tomb
	stream *Oplog
	out    chan Operation
}

// NewTailer builds a stream for the given configuration and starts a
// Tailer delivering its operations.
func NewTailer(config TailerConfig) (*Tailer, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Annotate(err, "new oplog tailer invalid config")
	}
	stream, err := NewBuilder(config.Session).Filter(config.Filter).Build()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return newTailer(stream), nil
}

func newTailer(stream *Oplog) *Tailer {
	t := &Tailer{
		stream: stream,
		out:    make(chan Operation),
	}
	t.tomb.Go(func() error {
		defer close(t.out)
		return t.loop()
	})
	// The loop blocks in Next with no way to select on tomb.Dying, so
	// a second goroutine closes the stream when the tomb starts dying,
	// unblocking any read in flight.
	t.tomb.Go(func() error {
		<-t.tomb.Dying()
		if err := t.stream.Close(); err != nil {
			logger.Warningf("closing oplog stream: %v", err)
		}
		return tomb.ErrDying
	})
	return t
}

// Out returns the channel operations are delivered on. It is closed
// once the tailer has stopped.
func (t *Tailer) Out() <-chan Operation {
	return t.out
}

// Kill is part of the worker.Worker interface.
func (t *Tailer) Kill() {
	t.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface. It returns the read
// error or decode failure that terminated the stream, or nil if the
// tailer was killed.
func (t *Tailer) Wait() error {
	return t.tomb.Wait()
}

// Stop stops the tailer and waits for it to exit.
func (t *Tailer) Stop() error {
	return worker.Stop(t)
}

// Dead returns a channel that is closed when the tailer has stopped.
func (t *Tailer) Dead() <-chan struct{} {
	return t.tomb.Dead()
}

// Err returns the error with which the tailer stopped. It returns nil
// if the tailer stopped cleanly, tomb.ErrStillAlive if it is still
// running, or the respective error otherwise.
func (t *Tailer) Err() error {
	return t.tomb.Err()
}

func (t *Tailer) loop() error {
	for {
		op, ok := t.stream.Next()
		if !ok {
			select {
			case <-t.tomb.Dying():
				return tomb.ErrDying
			default:
			}
			if err := t.stream.Err(); err != nil {
				return errors.Trace(err)
			}
			return nil
		}
		select {
		case <-t.tomb.Dying():
			return tomb.ErrDying
		case t.out <- op:
		}
	}
}
