/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Tue Apr 17 08:55:13 2018 mstenber
 * Last modified: Thu May 17 15:31:26 2018 mstenber
 * Edit time:     187 min
 *
 */

package ffs

import (
	"encoding/binary"

	"github.com/fingon/go-flashfs/flash"
	"github.com/fingon/go-flashfs/mlog"
)

// Restore: scan every area, decode all records, reassemble the
// parent/child and block-list graphs, resolve supersedes by (id, seq)
// dominance, and enforce the root and scratch invariants. The pass
// never writes to flash except to complete an interrupted
// scratch-erase, and a virgin device gets formatted.

func (self *FFS) restoreFull(descs []flash.Desc) error {
	if err := validateAreaDescs(descs, self.Dev.Size()); err != nil {
		return err
	}
	self.formatRAM()
	self.setupAreas(descs)

	var invalid []uint16
	scratchCount := 0
	for i, d := range descs {
		buf := make([]byte, diskAreaSize)
		if err := self.Dev.ReadAt(buf, d.Offset); err != nil {
			return EIO
		}
		var da diskArea
		if err := da.unmarshal(buf); err != nil {
			return err
		}
		switch {
		case !da.magicIsSet() || da.length != d.Length:
			invalid = append(invalid, uint16(i))
		case da.scratch():
			scratchCount++
			self.scratchAreaID = uint16(i)
		case da.live():
			self.areas[i].seq = da.seq
		default:
			// partially programmed is_scratch byte
			invalid = append(invalid, uint16(i))
		}
	}

	if len(invalid) == len(descs) {
		mlog.Printf2("ffs/restore", "restoreFull: virgin device, formatting")
		return self.formatFull(descs)
	}
	if scratchCount == 0 && len(invalid) == 1 {
		// A power cut between scratch promotion and the victim
		// erase leaves one headerless area and no scratch;
		// finish the erase.
		mlog.Printf2("ffs/restore", "restoreFull: completing interrupted scratch erase of %v", invalid[0])
		if err := self.formatArea(invalid[0], true); err != nil {
			return err
		}
		self.scratchAreaID = invalid[0]
		scratchCount = 1
		invalid = nil
	}
	if scratchCount != 1 || len(invalid) > 0 {
		return ECORRUPT
	}

	for _, a := range self.areas {
		if a.id == self.scratchAreaID {
			continue
		}
		if err := self.restoreArea(a); err != nil {
			return err
		}
	}
	return self.restoreSweep()
}

// restoreArea sequentially scans one area's record log. A record is
// accepted if its magic matches and its bounded size fits the
// remaining area; the first unacceptable position ends the log.
func (self *FFS) restoreArea(a *area) error {
	off := uint32(diskAreaSize)
	magicBuf := make([]byte, 4)
	for off+4 <= a.length {
		if err := self.flashRead(a.id, off, magicBuf); err != nil {
			return err
		}
		magic := binary.LittleEndian.Uint32(magicBuf)
		switch magic {
		case inodeMagic:
			if off+diskInodeSize > a.length {
				a.cur = off
				return nil
			}
			di, filename, err := self.inodeReadDisk(a.id, off)
			if err != nil || off+di.size() > a.length {
				a.cur = off
				return nil
			}
			if err = self.restoreInode(&di, filename, a.id, off); err != nil {
				return err
			}
			off += di.size()
		case blockMagic:
			if off+diskBlockSize > a.length {
				a.cur = off
				return nil
			}
			db, err := self.blockReadDisk(a.id, off)
			if err != nil || db.dataLen > BlockDataLen || off+db.size() > a.length {
				a.cur = off
				return nil
			}
			if err = self.restoreBlock(&db, a.id, off); err != nil {
				return err
			}
			off += db.size()
		default:
			a.cur = off
			return nil
		}
	}
	a.cur = off
	return nil
}

// ensureInode returns the inode with the given id, creating a dummy
// placeholder when its record has not been seen yet.
func (self *FFS) ensureInode(id uint32) (*inode, error) {
	if o := self.hash.find(id); o != nil {
		if ino, ok := o.(*inode); ok {
			return ino, nil
		}
		// a block squatting on a referenced inode id is corrupt
		// data; evict it so the index keeps one entry per id
		blk := o.(*block)
		self.blockDetach(blk)
		self.hash.remove(blk)
		self.blockFree(blk)
	}
	ino, err := self.inodeAlloc()
	if err != nil {
		return nil, err
	}
	ino.id = id
	ino.areaID = areaIDNone
	ino.flags = inodeFlagDummy | inodeFlagDirectory
	self.hash.insert(ino)
	return ino, nil
}

// restoreAttach hangs the inode under its parent per the record; a
// name clash leaves it detached, to be swept as an orphan.
func (self *FFS) restoreAttach(ino *inode, parentID uint32) error {
	if ino.isDeleted() || parentID == IDNone || ino.id == 0 {
		return nil
	}
	parent, err := self.ensureInode(parentID)
	if err != nil {
		return err
	}
	err = self.inodeAddChild(parent, ino, true)
	if err == EEXIST {
		mlog.Printf2("ffs/restore", "restoreAttach %v: duplicate name under %v", ino.id, parentID)
		return nil
	}
	return err
}

func (self *FFS) restoreInode(di *diskInode, filename []byte, areaID uint16, off uint32) error {
	o := self.hash.find(di.id)
	if o == nil {
		ino, err := self.inodeAlloc()
		if err != nil {
			return err
		}
		self.inodeFromDisk(ino, di, filename, areaID, off)
		return self.restoreAttach(ino, di.parentID)
	}
	existing, ok := o.(*inode)
	if !ok {
		// id collision across object kinds; higher seq wins
		if di.seq <= o.base().seq {
			return nil
		}
		blk := o.(*block)
		self.blockDetach(blk)
		self.hash.remove(blk)
		self.blockFree(blk)
		ino, err := self.inodeAlloc()
		if err != nil {
			return err
		}
		self.inodeFromDisk(ino, di, filename, areaID, off)
		return self.restoreAttach(ino, di.parentID)
	}
	if existing.isDummy() && existing.areaID == areaIDNone {
		// placeholder adopts its first real record; keeps the
		// children/blocks already hung off it
		existing.seq = di.seq
		existing.areaID = areaID
		existing.offset = off
		existing.flags = uint8(di.flags)
		existing.filenameLen = di.filenameLen
		copy(existing.filename[:], filename)
		return self.restoreAttach(existing, di.parentID)
	}
	if di.seq <= existing.seq {
		return nil
	}
	// supersede: new metadata, same lists
	self.inodeRemoveChild(existing)
	existing.seq = di.seq
	existing.areaID = areaID
	existing.offset = off
	existing.flags = uint8(di.flags)
	existing.filenameLen = di.filenameLen
	copy(existing.filename[:], filename)
	return self.restoreAttach(existing, di.parentID)
}

// blockDetach unlinks a block from its owner's list without freeing
// it.
func (self *FFS) blockDetach(blk *block) {
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
	}
	blk.next = nil
	blk.inode = nil
}

func (self *FFS) restoreBlock(db *diskBlock, areaID uint16, off uint32) error {
	attach := func(blk *block) error {
		if blk.isDeleted() {
			return nil
		}
		ino, err := self.ensureInode(db.inodeID)
		if err != nil {
			return err
		}
		self.inodeInsertBlock(ino, blk)
		return nil
	}
	o := self.hash.find(db.id)
	if o == nil {
		blk, err := self.blockAlloc()
		if err != nil {
			return err
		}
		self.blockFromDisk(blk, db, areaID, off)
		self.hash.insert(blk)
		return attach(blk)
	}
	existing, ok := o.(*block)
	if !ok {
		// id collision across object kinds; higher seq wins
		if db.seq <= o.base().seq {
			return nil
		}
		ino := o.(*inode)
		self.inodeRemoveChild(ino)
		self.hash.remove(ino)
		self.inodeFree(ino)
		blk, err := self.blockAlloc()
		if err != nil {
			return err
		}
		self.blockFromDisk(blk, db, areaID, off)
		self.hash.insert(blk)
		return attach(blk)
	}
	if db.seq <= existing.seq {
		return nil
	}
	self.blockDetach(existing)
	self.blockFromDisk(existing, db, areaID, off)
	return attach(existing)
}

// restoreSweep prunes tombstones and orphans, reconciles cached
// lengths, and initializes next_id.
func (self *FFS) restoreSweep() error {
	if err := self.validateRoot(); err != nil {
		return err
	}
	root, _ := self.hash.findInode(0)
	root.parent = nil
	root.refcnt = 1
	self.root = root

	var inodes []*inode
	var blocks []*block
	maxID := uint32(0)
	self.hash.foreach(func(o object) {
		if o.base().id != IDNone && o.base().id > maxID {
			maxID = o.base().id
		}
		switch t := o.(type) {
		case *inode:
			inodes = append(inodes, t)
		case *block:
			blocks = append(blocks, t)
		}
	})

	// deleted block tombstones first; they are attached to nothing
	for _, blk := range blocks {
		if blk.isDeleted() {
			self.blockDetach(blk)
			self.hash.remove(blk)
			self.blockFree(blk)
		}
	}

	// reachability from root over the child lists
	reachable := make(map[*inode]bool, len(inodes))
	stack := []*inode{root}
	for len(stack) > 0 {
		ino := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		reachable[ino] = true
		for child := ino.childList; child != nil; child = child.siblingNext {
			stack = append(stack, child)
		}
	}
	for _, ino := range inodes {
		if reachable[ino] {
			continue
		}
		mlog.Printf2("ffs/restore", "restoreSweep: dropping orphan %v", ino.id)
		self.blockDeleteListFromRAM(ino.blockList, nil)
		ino.blockList = nil
		self.hash.remove(ino)
		self.inodeFree(ino)
	}

	// reconcile cached file lengths
	for _, ino := range inodes {
		if reachable[ino] && !ino.isDir() {
			ino.dataLen = ino.calcDataLength()
		}
	}

	self.nextID = maxID + 1
	mlog.Printf2("ffs/restore", "restoreSweep done: next_id:%v", self.nextID)
	return nil
}
