/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Mon Apr 16 11:02:33 2018 mstenber
 * Last modified: Wed May 16 11:10:18 2018 mstenber
 * Edit time:     58 min
 *
 */

package ffs

import (
	"github.com/fingon/go-flashfs/flash"
	"github.com/fingon/go-flashfs/mlog"
	"github.com/fingon/go-flashfs/pool"
)

// formatRAM resets the in-RAM state for a fresh mount.
func (self *FFS) formatRAM() {
	self.hash = objectHash{}
	self.root = nil
	self.nextID = 0
	self.areas = nil
	self.scratchAreaID = areaIDNone
	self.inodePool = pool.New(self.MaxInodes, func() interface{} { return &inode{} })
	self.blockPool = pool.New(self.MaxBlocks, func() interface{} { return &block{} })
	self.filePool = pool.New(self.MaxFiles, func() interface{} { return &File{} })
}

func (self *FFS) setupAreas(descs []flash.Desc) {
	self.areas = make([]*area, len(descs))
	for i, d := range descs {
		self.areas[i] = &area{
			offset: d.Offset,
			length: d.Length,
			cur:    diskAreaSize,
			id:     uint16(i),
		}
	}
}

// formatFull erases all areas, designates the last one scratch, and
// creates the root directory in the first live area.
func (self *FFS) formatFull(descs []flash.Desc) error {
	if err := validateAreaDescs(descs, self.Dev.Size()); err != nil {
		return err
	}
	mlog.Printf2("ffs/format", "formatFull %v areas", len(descs))
	self.formatRAM()
	self.setupAreas(descs)
	scratchID := uint16(len(descs) - 1)
	for i := range self.areas {
		if err := self.formatArea(uint16(i), uint16(i) == scratchID); err != nil {
			return err
		}
	}
	self.scratchAreaID = scratchID

	ino, err := self.inodeAlloc()
	if err != nil {
		return err
	}
	ino.id = 0
	ino.flags = inodeFlagDirectory
	ino.refcnt = 1
	self.nextID = 1
	if err = self.inodeWriteRecord(ino, IDNone, nil, inodeFlagDirectory, 0); err != nil {
		self.inodeFree(ino)
		return err
	}
	self.hash.insert(ino)
	self.root = ino
	return nil
}

// formatArea erases a single area and writes its header. A scratch
// header leaves the seq and is_scratch bytes erased so that a later
// promotion only programs bits.
func (self *FFS) formatArea(areaID uint16, isScratch bool) error {
	a := self.findArea(areaID)
	if a == nil {
		return EINVAL
	}
	mlog.Printf2("ffs/format", "formatArea %v scratch:%v", areaID, isScratch)
	if err := self.Dev.Erase(a.offset, a.length); err != nil {
		return EIO
	}
	a.cur = 0
	if err := self.flashWrite(areaID, 0, a.toDisk(isScratch).marshal()); err != nil {
		return err
	}
	a.cur = diskAreaSize
	if !isScratch {
		a.seq = 0
	}
	return nil
}

// formatFromScratchArea promotes the scratch area to live by
// programming its seq and is_scratch header bytes.
func (self *FFS) formatFromScratchArea(areaID uint16, seq uint8) error {
	mlog.Printf2("ffs/format", "formatFromScratchArea %v seq:%v", areaID, seq)
	if err := self.flashWrite(areaID, 22, []byte{seq, 0}); err != nil {
		return err
	}
	self.findArea(areaID).seq = seq
	return nil
}
