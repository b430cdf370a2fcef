// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package tailspin reads a live, ordered stream of typed operations from
// a MongoDB replica set's oplog.
//
// The oplog is the capped collection (local.oplog.rs) a replica set
// primary appends every write to so that secondaries can replay them.
// Tailing it gives a commit-ordered feed of every insert, update, delete
// and command applied to the server, which is useful for replication,
// auditing, cache invalidation and search indexing.
//
// An Oplog is obtained from a Builder (or directly via New) and pulled
// one operation at a time:
//
//	session, err := mgo.Dial("localhost")
//	if err != nil {
//		...
//	}
//	stream, err := tailspin.New(session)
//	if err != nil {
//		...
//	}
//	defer stream.Close()
//	for {
//		op, ok := stream.Next()
//		if !ok {
//			break
//		}
//		switch op := op.(type) {
//		case tailspin.Insert:
//			...
//		}
//	}
//
// Next blocks until the server logs a matching entry, so a quiet oplog
// holds the caller indefinitely. For channel-based consumption with an
// explicit kill switch, wrap the same configuration in a Tailer instead.
package tailspin
