/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Mon Apr  9 10:27:12 2018 mstenber
 * Last modified: Fri May  4 11:02:31 2018 mstenber
 * Edit time:     44 min
 *
 */

// mlog is maybe-log. It is a small wrapper of the standard 'log' with
// environment-variable-based and 'flag' options for choosing what to
// print; what is not printed causes next to no overhead (by default,
// everything is off).
package mlog

import (
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/fingon/go-flashfs/util/gid"
)

var logger = log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds)

const (
	stateUninitialized int32 = iota
	stateDisabled
	stateEnabled
)

var status int32 = stateUninitialized

var mutex sync.Mutex

// Everything below must be used only with mutex held
var flagPattern *string
var patternRegexp *regexp.Regexp
var file2Debug map[string]bool

func init() {
	flagPattern = flag.String("mlog", "", "Enable logging based on the given file regular expression")
}

// IsEnabled can be used to check if mlog is in use at all before doing
// something expensive.
func IsEnabled() bool {
	return atomic.LoadInt32(&status) != stateDisabled
}

// SetPattern sets the mlog pattern by hand, overriding the
// environment-provided value. The returned undo function restores the
// previous state.
func SetPattern(p string) (undo func()) {
	mutex.Lock()
	defer mutex.Unlock()
	old := ""
	if patternRegexp != nil {
		old = patternRegexp.String()
	}
	initializeWithPattern(p)
	return func() {
		mutex.Lock()
		defer mutex.Unlock()
		initializeWithPattern(old)
	}
}

func initializeWithPattern(p string) {
	if p == "" {
		atomic.StoreInt32(&status, stateDisabled)
		patternRegexp = nil
		return
	}
	patternRegexp = regexp.MustCompile(p)
	file2Debug = make(map[string]bool)
	atomic.StoreInt32(&status, stateEnabled)
}

func initialize() {
	p := os.Getenv("MLOG")
	if flagPattern != nil && *flagPattern != "" {
		p = *flagPattern
	}
	initializeWithPattern(p)
}

// Printf2 is the premier choice; it is supplied with the name of the
// file and therefore has no runtime penalty to speak of when using
// only partial MLOG match.
func Printf2(file string, format string, args ...interface{}) {
	st := atomic.LoadInt32(&status)
	if st == stateDisabled {
		return
	}
	mutex.Lock()
	defer mutex.Unlock()
	if st == stateUninitialized {
		initialize()
		if atomic.LoadInt32(&status) == stateDisabled {
			return
		}
	}
	debug, seen := file2Debug[file]
	if !seen {
		debug = patternRegexp.FindString(file) != ""
		file2Debug[file] = debug
	}
	if debug {
		format = fmt.Sprintf("%8d %s", gid.GetGoroutineID(), format)
		logger.Printf(format, args...)
	}
}
