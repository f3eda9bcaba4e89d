/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Mon Apr 16 09:10:55 2018 mstenber
 * Last modified: Wed May 16 10:44:29 2018 mstenber
 * Edit time:     92 min
 *
 */

package ffs

import "github.com/fingon/go-flashfs/mlog"

// Garbage collection: copy-compact the oldest live area into the
// scratch area, promote scratch to live, and erase the victim into
// being the new scratch. Only records the index still points at
// survive the copy; superseded and deleted records are dropped.

// gcPickVictim returns the non-scratch area with the lowest seq,
// ties broken by lowest id.
func (self *FFS) gcPickVictim() *area {
	var victim *area
	for _, a := range self.areas {
		if a.id == self.scratchAreaID {
			continue
		}
		if victim == nil || a.seq < victim.seq {
			victim = a
		}
	}
	return victim
}

// gc collects one area; returns the id of the promoted (previously
// scratch) area.
func (self *FFS) gc() (outAreaID uint16, err error) {
	if err = self.validateScratch(); err != nil {
		return
	}
	victim := self.gcPickVictim()
	scratch := self.findArea(self.scratchAreaID)
	mlog.Printf2("ffs/gc", "gc victim:%v seq:%v -> scratch:%v", victim.id, victim.seq, scratch.id)

	// Stream current records from the victim to scratch. Deleted
	// and superseded records stay behind and die with the erase.
	copyErr := error(nil)
	self.hash.foreach(func(o object) {
		if copyErr != nil {
			return
		}
		b := o.base()
		if b.areaID != victim.id {
			return
		}
		var size uint32
		switch t := o.(type) {
		case *inode:
			if t.isDeleted() {
				return
			}
			size = diskInodeSize + uint32(t.filenameLen)
		case *block:
			if t.isDeleted() {
				return
			}
			size = t.diskSize()
		}
		toOff := scratch.cur
		if copyErr = self.flashCopy(victim.id, b.offset, scratch.id, toOff, size); copyErr != nil {
			return
		}
		b.areaID = scratch.id
		b.offset = toOff
	})
	if copyErr != nil {
		err = copyErr
		return
	}

	// Promote scratch; the header write goes last so a power cut
	// before it leaves the old state intact.
	if err = self.formatFromScratchArea(scratch.id, victim.seq+1); err != nil {
		return
	}

	// The victim becomes the new scratch.
	if err = self.formatArea(victim.id, true); err != nil {
		return
	}
	self.scratchAreaID = victim.id
	return scratch.id, nil
}

// gcUntil garbage-collects areas until one with free space >= size is
// observed; EFULL after a full cycle without one.
func (self *FFS) gcUntil(size uint32) (outAreaID uint16, err error) {
	for range self.areas {
		outAreaID, err = self.gc()
		if err != nil {
			return
		}
		if self.findArea(outAreaID).freeSpace() >= size {
			return
		}
	}
	mlog.Printf2("ffs/gc", "gcUntil %v: every area compact", size)
	return 0, EFULL
}
