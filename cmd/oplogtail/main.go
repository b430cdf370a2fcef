// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// oplogtail connects to a MongoDB replica set member and prints every
// operation logged to its oplog until interrupted. It is the
// connection-management layer around the tailspin library: dialling,
// filter assembly and signal handling live here, tailing lives there.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo"
	"github.com/juju/mgo/v3"
	"github.com/juju/mgo/v3/bson"

	"github.com/mudge/tailspin"
)

const dialTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		url       string
		namespace string
		kinds     string
		verbose   bool
	)
	flags := gnuflag.NewFlagSet("oplogtail", gnuflag.ContinueOnError)
	flags.StringVar(&url, "url", "localhost:27017", "address of a replica set member")
	flags.StringVar(&namespace, "namespace", "", "only show operations for this database.collection")
	flags.StringVar(&kinds, "kinds", "", "comma separated operation kind codes (i,u,d,c,n)")
	flags.BoolVar(&verbose, "verbose", false, "enable debug logging")
	if err := flags.Parse(true, args); err != nil {
		return errors.Trace(err)
	}
	if verbose {
		if err := loggo.ConfigureLoggers("<root>=DEBUG"); err != nil {
			return errors.Trace(err)
		}
	}

	filter, err := tailFilter(namespace, kinds)
	if err != nil {
		return errors.Trace(err)
	}

	session, err := mgo.DialWithTimeout(url, dialTimeout)
	if err != nil {
		return errors.Annotatef(err, "cannot dial %q", url)
	}
	defer session.Close()

	tailer, err := tailspin.NewTailer(tailspin.TailerConfig{
		Session: session,
		Filter:  filter,
	})
	if err != nil {
		return errors.Trace(err)
	}
	defer tailer.Stop()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		tailer.Kill()
	}()

	for op := range tailer.Out() {
		fmt.Println(formatOperation(op))
	}
	return errors.Trace(tailer.Wait())
}

// tailFilter combines the namespace and kind restrictions into one
// server-side filter document, or nil if neither was given.
func tailFilter(namespace, kinds string) (bson.D, error) {
	var filter bson.D
	if kinds != "" {
		var kindList []tailspin.Kind
		for _, code := range strings.Split(kinds, ",") {
			kindList = append(kindList, tailspin.Kind(strings.TrimSpace(code)))
		}
		kindFilter, err := tailspin.KindFilter(kindList...)
		if err != nil {
			return nil, errors.Trace(err)
		}
		filter = append(filter, kindFilter...)
	}
	if namespace != "" {
		filter = append(filter, tailspin.NamespaceFilter(namespace)...)
	}
	return filter, nil
}

func formatOperation(op tailspin.Operation) string {
	switch op := op.(type) {
	case tailspin.Insert:
		return fmt.Sprintf("%v insert %s %v", op.Time, op.Namespace, op.Document)
	case tailspin.Update:
		return fmt.Sprintf("%v update %s %v -> %v", op.Time, op.Namespace, op.Selector, op.Update)
	case tailspin.Delete:
		return fmt.Sprintf("%v delete %s %v", op.Time, op.Namespace, op.Selector)
	case tailspin.Command:
		return fmt.Sprintf("%v command %s %v", op.Time, op.Namespace, op.Command)
	case tailspin.Noop:
		return fmt.Sprintf("%v noop %q", op.Time, op.Message)
	}
	return fmt.Sprintf("%v %s", op.Timestamp(), op.Kind())
}
