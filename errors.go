// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package tailspin

import (
	"fmt"

	"github.com/juju/errors"
)

// missingFieldError reports an oplog entry that names a recognized
// operation kind but lacks a field that kind requires.
type missingFieldError struct {
	kind  Kind
	field string
}

// Error is part of the error interface.
func (e *missingFieldError) Error() string {
	return fmt.Sprintf("oplog %s entry missing %q field", e.kind, e.field)
}

// IsMissingField reports whether err was caused by an oplog entry of a
// recognized kind that lacked a field required for that kind.
func IsMissingField(err error) bool {
	_, ok := errors.Cause(err).(*missingFieldError)
	return ok
}

// unrecognizedKindError reports an oplog entry whose operation kind
// code is unknown, or absent entirely.
type unrecognizedKindError struct {
	kind string
}

// Error is part of the error interface.
func (e *unrecognizedKindError) Error() string {
	if e.kind == "" {
		return "oplog entry has no operation kind"
	}
	return fmt.Sprintf("unrecognized oplog operation kind %q", e.kind)
}

// IsUnrecognizedKind reports whether err was caused by an oplog entry
// with an unknown or malformed operation kind code.
func IsUnrecognizedKind(err error) bool {
	_, ok := errors.Cause(err).(*unrecognizedKindError)
	return ok
}
