/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Mon Apr  9 10:18:21 2018 mstenber
 * Last modified: Mon Apr  9 10:22:50 2018 mstenber
 * Edit time:     5 min
 *
 */

package util

import "sync"

// MutexLocked is a mutex with convenience feature (just defer
// x.Locked()()).
type MutexLocked sync.Mutex

func (self *MutexLocked) Lock() {
	(*sync.Mutex)(self).Lock()
}

func (self *MutexLocked) Unlock() {
	(*sync.Mutex)(self).Unlock()
}

func (self *MutexLocked) Locked() (unlock func()) {
	self.Lock()
	return func() {
		self.Unlock()
	}
}
