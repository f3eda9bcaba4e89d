/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Mon Apr  9 10:44:02 2018 mstenber
 * Last modified: Wed Apr 11 09:31:17 2018 mstenber
 * Edit time:     26 min
 *
 */

// pool provides fixed-count object pools. Unlike sync.Pool, a Pool
// has a hard capacity; Alloc on an exhausted pool returns nil and the
// caller is expected to surface an out-of-memory condition.
package pool

type Pool struct {
	free []interface{}
	newf func() interface{}
	left int
}

// New creates a pool of at most count objects produced by newf.
func New(count int, newf func() interface{}) *Pool {
	self := &Pool{newf: newf, left: count}
	self.free = make([]interface{}, 0, count)
	return self
}

// Alloc returns an object from the pool, or nil if the pool is
// exhausted.
func (self *Pool) Alloc() interface{} {
	if n := len(self.free); n > 0 {
		o := self.free[n-1]
		self.free[n-1] = nil
		self.free = self.free[:n-1]
		return o
	}
	if self.left == 0 {
		return nil
	}
	self.left--
	return self.newf()
}

// Free returns an object to the pool.
func (self *Pool) Free(o interface{}) {
	self.free = append(self.free, o)
}

// Available returns the number of objects that can still be Alloced.
func (self *Pool) Available() int {
	return self.left + len(self.free)
}
