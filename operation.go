// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package tailspin

import (
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/mgo/v3/bson"
)

// Kind identifies the category of write an oplog entry represents. The
// values are the single-letter codes the server records in the entry's
// "op" field.
type Kind string

const (
	KindInsert  Kind = "i"
	KindUpdate  Kind = "u"
	KindDelete  Kind = "d"
	KindCommand Kind = "c"
	KindNoop    Kind = "n"
)

var knownKinds = set.NewStrings(
	string(KindInsert),
	string(KindUpdate),
	string(KindDelete),
	string(KindCommand),
	string(KindNoop),
)

// Validate returns an error if the kind is not one of the operation
// codes the decoder understands.
func (k Kind) Validate() error {
	if !knownKinds.Contains(string(k)) {
		return errors.NotValidf("operation kind %q", string(k))
	}
	return nil
}

// String returns the descriptive name of the kind, or the raw code if
// it isn't a known one.
func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	case KindCommand:
		return "command"
	case KindNoop:
		return "noop"
	}
	return string(k)
}

// Operation is a single decoded oplog entry. The concrete types behind
// this interface form a closed set - Insert, Update, Delete, Command and
// Noop - so consumers dispatch with a type switch over exactly those
// five.
type Operation interface {
	// Kind identifies which category of write the operation represents.
	Kind() Kind

	// Timestamp returns the logical time at which the server logged the
	// operation. Operations pulled from a single stream carry
	// non-decreasing timestamps, the server's commit order. It is zero
	// for the degenerate case of an entry logged without a "ts" field.
	Timestamp() bson.MongoTimestamp
}

// Insert is the addition of a complete document to a collection.
type Insert struct {
	// Namespace is the "database.collection" the document was added to.
	Namespace string

	// Document is the full inserted document.
	Document bson.M

	// Time is the logical time the insert was logged.
	Time bson.MongoTimestamp
}

// Kind is part of the Operation interface.
func (op Insert) Kind() Kind { return KindInsert }

// Timestamp is part of the Operation interface.
func (op Insert) Timestamp() bson.MongoTimestamp { return op.Time }

// Update is a modification of an existing document.
type Update struct {
	// Namespace is the "database.collection" holding the document.
	Namespace string

	// Update is the update specification that was applied.
	Update bson.M

	// Selector identifies the document that was modified.
	Selector bson.M

	// Time is the logical time the update was logged.
	Time bson.MongoTimestamp
}

// Kind is part of the Operation interface.
func (op Update) Kind() Kind { return KindUpdate }

// Timestamp is part of the Operation interface.
func (op Update) Timestamp() bson.MongoTimestamp { return op.Time }

// Delete is the removal of a document.
type Delete struct {
	// Namespace is the "database.collection" the document was removed
	// from.
	Namespace string

	// Selector identifies the document that was removed.
	Selector bson.M

	// Time is the logical time the delete was logged.
	Time bson.MongoTimestamp
}

// Kind is part of the Operation interface.
func (op Delete) Kind() Kind { return KindDelete }

// Timestamp is part of the Operation interface.
func (op Delete) Timestamp() bson.MongoTimestamp { return op.Time }

// Command is an administrative operation such as a collection create or
// drop.
type Command struct {
	// Namespace is the command namespace, typically "database.$cmd".
	Namespace string

	// Command is the command document that was run.
	Command bson.M

	// Time is the logical time the command was logged.
	Time bson.MongoTimestamp
}

// Kind is part of the Operation interface.
func (op Command) Kind() Kind { return KindCommand }

// Timestamp is part of the Operation interface.
func (op Command) Timestamp() bson.MongoTimestamp { return op.Time }

// Noop is a periodic heartbeat entry carrying no actionable change.
type Noop struct {
	// Message is the informational text the server attached to the
	// entry, if any.
	Message string

	// Time is the logical time the entry was logged.
	Time bson.MongoTimestamp
}

// Kind is part of the Operation interface.
func (op Noop) Kind() Kind { return KindNoop }

// Timestamp is part of the Operation interface.
func (op Noop) Timestamp() bson.MongoTimestamp { return op.Time }

// Decode maps one raw oplog entry to its typed Operation. It inspects
// the entry's "op" code and requires the fields that code implies: "ns"
// and "o" for inserts and commands, "ns", "o" and "o2" for updates,
// "ns" and "o2" for deletes, and "o" alone for noops. An entry with an
// unknown or malformed code fails such that IsUnrecognizedKind returns
// true; a recognized entry lacking a required field fails such that
// IsMissingField returns true. There is no partial decode - a failed
// entry yields no Operation at all.
//
// The entry's "ts" timestamp is carried through to the Operation
// unchanged. It is bookkeeping the server supplies on every entry
// rather than a required field, so an entry without one (or with a
// mistyped one) decodes with the zero timestamp instead of failing.
//
// Decode is pure and deterministic, and safe to call concurrently on
// independent entries.
func Decode(entry bson.M) (Operation, error) {
	code, ok := entry["op"].(string)
	if !ok {
		return nil, &unrecognizedKindError{}
	}
	kind := Kind(code)
	ts, _ := entry["ts"].(bson.MongoTimestamp)
	switch kind {
	case KindInsert:
		ns, err := stringField(entry, "ns", kind)
		if err != nil {
			return nil, errors.Trace(err)
		}
		document, err := documentField(entry, "o", kind)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return Insert{Namespace: ns, Document: document, Time: ts}, nil
	case KindUpdate:
		ns, err := stringField(entry, "ns", kind)
		if err != nil {
			return nil, errors.Trace(err)
		}
		update, err := documentField(entry, "o", kind)
		if err != nil {
			return nil, errors.Trace(err)
		}
		selector, err := documentField(entry, "o2", kind)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return Update{Namespace: ns, Update: update, Selector: selector, Time: ts}, nil
	case KindDelete:
		ns, err := stringField(entry, "ns", kind)
		if err != nil {
			return nil, errors.Trace(err)
		}
		selector, err := documentField(entry, "o2", kind)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return Delete{Namespace: ns, Selector: selector, Time: ts}, nil
	case KindCommand:
		ns, err := stringField(entry, "ns", kind)
		if err != nil {
			return nil, errors.Trace(err)
		}
		command, err := documentField(entry, "o", kind)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return Command{Namespace: ns, Command: command, Time: ts}, nil
	case KindNoop:
		document, err := documentField(entry, "o", kind)
		if err != nil {
			return nil, errors.Trace(err)
		}
		message, _ := document["msg"].(string)
		return Noop{Message: message, Time: ts}, nil
	}
	return nil, &unrecognizedKindError{kind: code}
}

func stringField(entry bson.M, name string, kind Kind) (string, error) {
	value, ok := entry[name].(string)
	if !ok || value == "" {
		return "", &missingFieldError{kind: kind, field: name}
	}
	return value, nil
}

func documentField(entry bson.M, name string, kind Kind) (bson.M, error) {
	value, ok := entry[name].(bson.M)
	if !ok {
		return nil, &missingFieldError{kind: kind, field: name}
	}
	return value, nil
}

// KindFilter returns a filter document matching only entries of the
// given operation kinds, suitable for passing to Builder.Filter.
func KindFilter(kinds ...Kind) (bson.D, error) {
	codes := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		if err := kind.Validate(); err != nil {
			return nil, errors.Trace(err)
		}
		codes = append(codes, string(kind))
	}
	return bson.D{{Name: "op", Value: bson.D{{Name: "$in", Value: codes}}}}, nil
}

// NamespaceFilter returns a filter document matching only entries for
// the given "database.collection" namespace, suitable for passing to
// Builder.Filter.
func NamespaceFilter(namespace string) bson.D {
	return bson.D{{Name: "ns", Value: namespace}}
}
