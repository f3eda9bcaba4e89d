/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Fri Apr 13 14:20:09 2018 mstenber
 * Last modified: Wed May 16 10:01:37 2018 mstenber
 * Edit time:     54 min
 *
 */

package ffs

import "github.com/fingon/go-flashfs/mlog"

// Space reservation. A record needs contiguous bytes in one live
// area; if no area has room, areas are garbage-collected until one
// does. EFULL surfaces only when every live area is already compact.

func (self *FFS) findFreeSpace(size uint32) (areaID uint16, offset uint32, ok bool) {
	for _, a := range self.areas {
		if a.id == self.scratchAreaID {
			continue
		}
		if a.freeSpace() >= size {
			offset = a.cur
			a.cur += size
			return a.id, offset, true
		}
	}
	return
}

func (self *FFS) reserveSpace(size uint32) (areaID uint16, offset uint32, err error) {
	if areaID, offset, ok := self.findFreeSpace(size); ok {
		return areaID, offset, nil
	}
	mlog.Printf2("ffs/reserve", "reserveSpace %v: no room, running gc", size)
	if _, err = self.gcUntil(size); err != nil {
		return
	}
	if areaID, offset, ok := self.findFreeSpace(size); ok {
		return areaID, offset, nil
	}
	err = EFULL
	return
}

// validateRoot checks that the root directory is present and sane.
func (self *FFS) validateRoot() error {
	ino, err := self.hash.findInode(0)
	if err != nil {
		return ECORRUPT
	}
	if ino.isDummy() || !ino.isDir() {
		return ECORRUPT
	}
	return nil
}

// validateScratch checks the single-scratch invariant.
func (self *FFS) validateScratch() error {
	if self.findArea(self.scratchAreaID) == nil {
		return ECORRUPT
	}
	return nil
}
