/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Thu Apr 12 09:12:40 2018 mstenber
 * Last modified: Tue May 15 16:44:02 2018 mstenber
 * Edit time:     214 min
 *
 */

package ffs

import (
	"bytes"

	"github.com/fingon/go-flashfs/mlog"
)

// inode is the persistent identity of a file or directory. The
// on-flash side is a chain of records superseding each other by seq;
// the RAM side carries the tree linkage and, for files, the block
// list.
type inode struct {
	objectBase

	parent      *inode
	siblingNext *inode

	// childList if directory, blockList if file.
	childList *inode
	blockList *block

	dataLen     uint32
	refcnt      uint8
	flags       uint8
	filenameLen uint8
	filename    [ShortFilenameLen]byte
}

func (self *inode) isDir() bool {
	return self.flags&inodeFlagDirectory != 0
}

func (self *inode) isDummy() bool {
	return self.flags&inodeFlagDummy != 0
}

func (self *inode) isDeleted() bool {
	return self.flags&inodeFlagDeleted != 0
}

func (self *inode) name() []byte {
	return self.filename[:self.filenameLen]
}

func (self *inode) info() Info {
	return Info{Name: string(self.name()), Size: self.dataLen, Dir: self.isDir()}
}

// calcDataLength reconciles the cached length from the block list.
func (self *inode) calcDataLength() uint32 {
	total := uint32(0)
	for b := self.blockList; b != nil; b = b.next {
		total += uint32(b.dataLen)
	}
	return total
}

func (self *FFS) inodeAlloc() (*inode, error) {
	o := self.inodePool.Alloc()
	if o == nil {
		return nil, ENOMEM
	}
	ino := o.(*inode)
	*ino = inode{}
	return ino, nil
}

func (self *FFS) inodeFree(ino *inode) {
	self.inodePool.Free(ino)
}

// inodeReadDisk decodes the inode record at (areaID, off); fails with
// ECORRUPT on bad magic.
func (self *FFS) inodeReadDisk(areaID uint16, off uint32) (di diskInode, filename []byte, err error) {
	buf := make([]byte, diskInodeSize)
	if err = self.flashRead(areaID, off, buf); err != nil {
		return
	}
	if err = di.unmarshal(buf); err != nil {
		return
	}
	if di.filenameLen > ShortFilenameLen {
		err = ECORRUPT
		return
	}
	if di.filenameLen > 0 {
		filename = make([]byte, di.filenameLen)
		err = self.flashRead(areaID, off+diskInodeSize, filename)
	}
	return
}

// inodeWriteDisk emits exactly one inode record at (areaID, off).
func (self *FFS) inodeWriteDisk(di *diskInode, filename []byte, areaID uint16, off uint32) error {
	mlog.Printf2("ffs/inode", "inodeWriteDisk id:%v seq:%v @%v/%v", di.id, di.seq, areaID, off)
	buf := di.marshal()
	if len(filename) > 0 {
		buf = append(buf, filename...)
	}
	return self.flashWrite(areaID, off, buf)
}

// inodeWriteRecord reserves space and writes a fresh record for ino,
// then repoints the RAM object at it. The record is durable before
// the index is touched.
func (self *FFS) inodeWriteRecord(ino *inode, parentID uint32, filename []byte, flags uint8, seq uint32) error {
	di := diskInode{
		magic:       inodeMagic,
		id:          ino.id,
		seq:         seq,
		parentID:    parentID,
		flags:       uint16(flags),
		filenameLen: uint8(len(filename)),
		ecc:         eccPlaceholder,
	}
	areaID, off, err := self.reserveSpace(di.size())
	if err != nil {
		return err
	}
	if err = self.inodeWriteDisk(&di, filename, areaID, off); err != nil {
		return err
	}
	ino.seq = seq
	ino.areaID = areaID
	ino.offset = off
	return nil
}

// inodeFromDisk initializes an in-RAM inode from a decoded record and
// adds it to the index.
func (self *FFS) inodeFromDisk(ino *inode, di *diskInode, filename []byte, areaID uint16, off uint32) {
	ino.id = di.id
	ino.seq = di.seq
	ino.areaID = areaID
	ino.offset = off
	ino.flags = uint8(di.flags)
	ino.filenameLen = di.filenameLen
	copy(ino.filename[:], filename)
	self.hash.insert(ino)
}

// inodeFilenameCmpRAM orders an inode's cached name against a
// literal: binary compare, shorter sorts first on tie.
func inodeFilenameCmpRAM(ino *inode, name []byte) int {
	return bytes.Compare(ino.name(), name)
}

// inodeFilenameCmpFlash orders two inodes by name, reading the names
// back from their records; used when ordering children rebuilt from
// disk, where RAM copies may not exist yet.
func (self *FFS) inodeFilenameCmpFlash(a, b *inode) (int, error) {
	an := make([]byte, a.filenameLen)
	if err := self.flashRead(a.areaID, a.offset+diskInodeSize, an); err != nil {
		return 0, err
	}
	bn := make([]byte, b.filenameLen)
	if err := self.flashRead(b.areaID, b.offset+diskInodeSize, bn); err != nil {
		return 0, err
	}
	return bytes.Compare(an, bn), nil
}

// inodeAddChild inserts child into parent's child list, ordered by
// ascending filename. Duplicate names are forbidden. fromFlash
// selects the comparison variant.
func (self *FFS) inodeAddChild(parent, child *inode, fromFlash bool) error {
	mlog.Printf2("ffs/inode", "inodeAddChild %v <- %v (%s)", parent.id, child.id, child.name())
	cmp := func(sibling *inode) (int, error) {
		if fromFlash {
			c, err := self.inodeFilenameCmpFlash(sibling, child)
			return c, err
		}
		return inodeFilenameCmpRAM(sibling, child.name()), nil
	}
	prev := (*inode)(nil)
	cur := parent.childList
	for cur != nil {
		c, err := cmp(cur)
		if err != nil {
			return err
		}
		if c == 0 {
			return EEXIST
		}
		if c > 0 {
			break
		}
		prev = cur
		cur = cur.siblingNext
	}
	child.siblingNext = cur
	if prev == nil {
		parent.childList = child
	} else {
		prev.siblingNext = child
	}
	child.parent = parent
	return nil
}

func (self *FFS) inodeRemoveChild(child *inode) {
	parent := child.parent
	if parent == nil {
		return
	}
	prev := (*inode)(nil)
	for cur := parent.childList; cur != nil; cur = cur.siblingNext {
		if cur == child {
			if prev == nil {
				parent.childList = cur.siblingNext
			} else {
				prev.siblingNext = cur.siblingNext
			}
			break
		}
		prev = cur
	}
	child.siblingNext = nil
	child.parent = nil
}

// inodeRename writes a superseding record with the new parent/name
// and relinks the RAM side. Child and block lists are kept.
func (self *FFS) inodeRename(ino *inode, newParent *inode, newName []byte) error {
	if len(newName) > ShortFilenameLen {
		return EINVAL
	}
	err := self.inodeWriteRecord(ino, newParent.id, newName, ino.flags, ino.seq+1)
	if err != nil {
		return err
	}
	self.inodeRemoveChild(ino)
	ino.filenameLen = uint8(len(newName))
	copy(ino.filename[:], newName)
	return self.inodeAddChild(newParent, ino, false)
}

// inodeDeleteFromDisk appends a deleted-flag record superseding the
// inode. The record is self-contained; nothing earlier is touched.
func (self *FFS) inodeDeleteFromDisk(ino *inode) error {
	mlog.Printf2("ffs/inode", "inodeDeleteFromDisk %v", ino.id)
	return self.inodeWriteRecord(ino, inodeParentID(ino), nil,
		ino.flags|inodeFlagDeleted, ino.seq+1)
}

func inodeParentID(ino *inode) uint32 {
	if ino.parent == nil {
		return IDNone
	}
	return ino.parent.id
}

// inodeDeleteFromRAM detaches the inode from its parent and tears it
// down, unless handles still reference it; then teardown is deferred
// to the last inodeDecRefcnt.
func (self *FFS) inodeDeleteFromRAM(ino *inode) {
	mlog.Printf2("ffs/inode", "inodeDeleteFromRAM %v refcnt:%v", ino.id, ino.refcnt)
	self.inodeRemoveChild(ino)
	if ino.refcnt > 0 {
		ino.flags |= inodeFlagDeleted | inodeFlagDummy
		return
	}
	self.inodeTeardown(ino)
}

func (self *FFS) inodeTeardown(ino *inode) {
	for ino.childList != nil {
		child := ino.childList
		ino.childList = child.siblingNext
		child.siblingNext = nil
		child.parent = nil
		if child.refcnt > 0 {
			child.flags |= inodeFlagDeleted | inodeFlagDummy
			continue
		}
		self.inodeTeardown(child)
	}
	if ino.blockList != nil {
		self.blockDeleteListFromRAM(ino.blockList, nil)
		ino.blockList = nil
	}
	self.hash.remove(ino)
	self.inodeFree(ino)
}

func (self *FFS) inodeDecRefcnt(ino *inode) {
	ino.refcnt--
	if ino.refcnt == 0 && ino.isDeleted() {
		self.inodeTeardown(ino)
	}
}

// inodeInsertBlock links a block into the inode's block list, ordered
// by ascending rank.
func (self *FFS) inodeInsertBlock(ino *inode, blk *block) {
	prev := (*block)(nil)
	cur := ino.blockList
	for cur != nil && cur.rank < blk.rank {
		prev = cur
		cur = cur.next
	}
	blk.next = cur
	if prev == nil {
		ino.blockList = blk
	} else {
		prev.next = blk
	}
	blk.inode = ino
}

// inodeSeek walks the block list to the block containing offset.
// Returns the containing block, the byte offset within it, and the
// predecessor for O(1) unlink. Offset at exactly the file length
// yields (last, nil, 0).
func (self *FFS) inodeSeek(ino *inode, offset uint32) (prev, blk *block, blockOff uint32, err error) {
	if offset > ino.dataLen {
		err = EINVAL
		return
	}
	pos := uint32(0)
	cur := ino.blockList
	for cur != nil {
		if offset < pos+uint32(cur.dataLen) {
			blk = cur
			blockOff = offset - pos
			return
		}
		pos += uint32(cur.dataLen)
		prev = cur
		cur = cur.next
	}
	return
}

// inodeRead copies up to len(buf) bytes starting at offset; the
// result may be short if the file ends sooner. Block payloads are
// read from flash on demand.
func (self *FFS) inodeRead(ino *inode, offset uint32, buf []byte) (int, error) {
	_, blk, blockOff, err := self.inodeSeek(ino, offset)
	if err != nil {
		return 0, err
	}
	n := 0
	for blk != nil && n < len(buf) {
		c := len(buf) - n
		if avail := int(uint32(blk.dataLen) - blockOff); c > avail {
			c = avail
		}
		err = self.blockReadData(blk, blockOff, buf[n:n+c])
		if err != nil {
			return n, err
		}
		n += c
		blockOff = 0
		blk = blk.next
	}
	return n, nil
}
