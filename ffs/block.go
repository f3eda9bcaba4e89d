/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Thu Apr 12 14:02:19 2018 mstenber
 * Last modified: Tue May 15 17:20:46 2018 mstenber
 * Edit time:     96 min
 *
 */

package ffs

import "github.com/fingon/go-flashfs/mlog"

// block is one extent of file data. Blocks of a file form a singly
// linked list ordered by rank; the concatenation of their payloads in
// rank order is the file content. The inode pointer is a lookup
// shortcut, not ownership; it is rebuilt at restore.
type block struct {
	objectBase

	inode   *inode
	next    *block
	rank    uint32
	dataLen uint16
	flags   uint8
}

func (self *block) isDeleted() bool {
	return self.flags&blockFlagDeleted != 0
}

func (self *block) diskSize() uint32 {
	return diskBlockSize + uint32(self.dataLen)
}

func (self *FFS) blockAlloc() (*block, error) {
	o := self.blockPool.Alloc()
	if o == nil {
		return nil, ENOMEM
	}
	blk := o.(*block)
	*blk = block{}
	return blk, nil
}

func (self *FFS) blockFree(blk *block) {
	self.blockPool.Free(blk)
}

// blockReadDisk decodes the block record header at (areaID, off);
// fails with ECORRUPT on bad magic.
func (self *FFS) blockReadDisk(areaID uint16, off uint32) (db diskBlock, err error) {
	buf := make([]byte, diskBlockSize)
	if err = self.flashRead(areaID, off, buf); err != nil {
		return
	}
	err = db.unmarshal(buf)
	return
}

// blockWriteDisk reserves space and emits one block record; returns
// the address actually used.
func (self *FFS) blockWriteDisk(db *diskBlock, data []byte) (areaID uint16, off uint32, err error) {
	areaID, off, err = self.reserveSpace(db.size())
	if err != nil {
		return
	}
	mlog.Printf2("ffs/block", "blockWriteDisk id:%v seq:%v rank:%v len:%v @%v/%v",
		db.id, db.seq, db.rank, db.dataLen, areaID, off)
	buf := db.marshal()
	if len(data) > 0 {
		buf = append(buf, data...)
	}
	err = self.flashWrite(areaID, off, buf)
	return
}

// blockReadData reads a slice of the block payload from flash.
func (self *FFS) blockReadData(blk *block, dataOff uint32, buf []byte) error {
	if dataOff+uint32(len(buf)) > uint32(blk.dataLen) {
		return EINVAL
	}
	return self.flashRead(blk.areaID, blk.offset+diskBlockSize+dataOff, buf)
}

func (self *FFS) blockFromDisk(blk *block, db *diskBlock, areaID uint16, off uint32) {
	blk.id = db.id
	blk.seq = db.seq
	blk.areaID = areaID
	blk.offset = off
	blk.rank = db.rank
	blk.dataLen = db.dataLen
	blk.flags = uint8(db.flags)
}

// blockDeleteFromDisk appends a header-only deleted record
// superseding the block.
func (self *FFS) blockDeleteFromDisk(blk *block) error {
	db := diskBlock{
		magic:   blockMagic,
		id:      blk.id,
		seq:     blk.seq + 1,
		rank:    blk.rank,
		inodeID: blockInodeID(blk),
		flags:   uint16(blk.flags | blockFlagDeleted),
		dataLen: 0,
		ecc:     eccPlaceholder,
	}
	areaID, off, err := self.reserveSpace(db.size())
	if err != nil {
		return err
	}
	if err = self.flashWrite(areaID, off, db.marshal()); err != nil {
		return err
	}
	blk.seq = db.seq
	blk.areaID = areaID
	blk.offset = off
	blk.flags |= blockFlagDeleted
	return nil
}

func blockInodeID(blk *block) uint32 {
	if blk.inode == nil {
		return IDNone
	}
	return blk.inode.id
}

// blockDeleteFromRAM unlinks the block from its owner's list and
// frees it.
func (self *FFS) blockDeleteFromRAM(blk *block) {
	if ino := blk.inode; ino != nil {
		prev := (*block)(nil)
		for cur := ino.blockList; cur != nil; cur = cur.next {
			if cur == blk {
				if prev == nil {
					ino.blockList = cur.next
				} else {
					prev.next = cur.next
				}
				break
			}
			prev = cur
		}
		if ino.dataLen >= uint32(blk.dataLen) {
			ino.dataLen -= uint32(blk.dataLen)
		}
	}
	blk.next = nil
	blk.inode = nil
	self.hash.remove(blk)
	self.blockFree(blk)
}

// blockDeleteListFromRAM deletes blocks from first through last
// inclusive; nil last means through the end of the list.
func (self *FFS) blockDeleteListFromRAM(first, last *block) {
	cur := first
	for cur != nil {
		next := cur.next
		self.blockDeleteFromRAM(cur)
		if cur == last {
			break
		}
		cur = next
	}
}

// blockDeleteListFromDisk writes deleted records for blocks first
// through last inclusive; nil last means through the end.
func (self *FFS) blockDeleteListFromDisk(first, last *block) error {
	for cur := first; cur != nil; cur = cur.next {
		if err := self.blockDeleteFromDisk(cur); err != nil {
			return err
		}
		if cur == last {
			break
		}
	}
	return nil
}
