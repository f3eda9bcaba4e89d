/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Wed Apr 18 10:13:31 2018 mstenber
 * Last modified: Thu May 17 16:58:40 2018 mstenber
 * Edit time:     163 min
 *
 */

package ffs

import "github.com/fingon/go-flashfs/mlog"

type AccessFlags uint8

const (
	AccessRead AccessFlags = 1 << iota
	AccessWrite
	AccessAppend
	AccessTruncate
	AccessCreate
)

// File is a single open instance of a file. It holds a reference on
// the inode; an inode unlinked while open keeps its blocks until the
// last handle closes.
type File struct {
	fs     *FFS
	inode  *inode
	offset uint32
	flags  AccessFlags
}

func (self *FFS) fileOpen(path string, flags AccessFlags) (*File, error) {
	mlog.Printf2("ffs/file", "fileOpen %s %x", path, flags)
	if flags&(AccessRead|AccessWrite) == 0 {
		return nil, EINVAL
	}
	if flags&(AccessAppend|AccessTruncate|AccessCreate) != 0 && flags&AccessWrite == 0 {
		return nil, EINVAL
	}
	parser := newPathParser(path)
	ino, parent, err := self.pathFind(parser)
	switch {
	case err == ENOENT && parent != nil && flags&AccessCreate != 0:
		ino, err = self.fileNew(parent, []byte(parser.token), false)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if ino.isDir() {
			return nil, EINVAL
		}
		if flags&AccessTruncate != 0 {
			if err = self.fileTruncate(ino); err != nil {
				return nil, err
			}
		}
	}
	o := self.filePool.Alloc()
	if o == nil {
		return nil, ENOMEM
	}
	f := o.(*File)
	*f = File{fs: self, inode: ino, flags: flags}
	if flags&AccessAppend != 0 {
		f.offset = ino.dataLen
	}
	ino.refcnt++
	return f, nil
}

// fileNew creates a fresh inode under parent and makes it durable.
func (self *FFS) fileNew(parent *inode, name []byte, isDir bool) (*inode, error) {
	if len(name) == 0 || len(name) > ShortFilenameLen {
		return nil, EINVAL
	}
	if childByName(parent, string(name)) != nil {
		return nil, EEXIST
	}
	ino, err := self.inodeAlloc()
	if err != nil {
		return nil, err
	}
	flags := uint8(0)
	if isDir {
		flags = inodeFlagDirectory
	}
	ino.id = self.nextID
	ino.flags = flags
	ino.filenameLen = uint8(len(name))
	copy(ino.filename[:], name)
	if err = self.inodeWriteRecord(ino, parent.id, name, flags, 0); err != nil {
		self.inodeFree(ino)
		return nil, err
	}
	self.nextID++
	self.hash.insert(ino)
	if err = self.inodeAddChild(parent, ino, false); err != nil {
		return nil, err
	}
	mlog.Printf2("ffs/file", "fileNew %s id:%v dir:%v", name, ino.id, isDir)
	return ino, nil
}

// fileTruncate supersedes the inode and marks all its blocks
// deleted.
func (self *FFS) fileTruncate(ino *inode) error {
	mlog.Printf2("ffs/file", "fileTruncate %v", ino.id)
	err := self.inodeWriteRecord(ino, inodeParentID(ino), ino.name(), ino.flags, ino.seq+1)
	if err != nil {
		return err
	}
	if err = self.blockDeleteListFromDisk(ino.blockList, nil); err != nil {
		return err
	}
	self.blockDeleteListFromRAM(ino.blockList, nil)
	ino.blockList = nil
	ino.dataLen = 0
	return nil
}

// Seek sets the handle position; the offset must be within the file.
func (self *File) Seek(offset uint32) error {
	defer self.fs.lock.Locked()()
	if offset > self.inode.dataLen {
		return EINVAL
	}
	self.offset = offset
	return nil
}

// Read copies up to len(buf) bytes from the current position and
// advances it; a short count means the file ended sooner.
func (self *File) Read(buf []byte) (int, error) {
	defer self.fs.lock.Locked()()
	if self.flags&AccessRead == 0 {
		return 0, EACCES
	}
	n, err := self.fs.inodeRead(self.inode, self.offset, buf)
	self.offset += uint32(n)
	return n, err
}

// Write stores data at the current position (end of file with
// AccessAppend), chunked into one or more block records. A failure
// mid-write leaves the file at the byte count of the last durable
// block.
func (self *File) Write(data []byte) error {
	defer self.fs.lock.Locked()()
	if self.flags&AccessWrite == 0 {
		return EACCES
	}
	if self.flags&AccessAppend != 0 {
		self.offset = self.inode.dataLen
	}
	return self.fs.writeToFile(self, data)
}

// Close drops the handle's reference; the last close of an unlinked
// inode tears down its RAM state.
func (self *File) Close() error {
	defer self.fs.lock.Locked()()
	mlog.Printf2("ffs/file", "f.Close %v", self.inode.id)
	self.fs.inodeDecRefcnt(self.inode)
	self.inode = nil
	self.fs.filePool.Free(self)
	return nil
}

func (self *FFS) writeToFile(f *File, data []byte) error {
	ino := f.inode
	if f.offset > ino.dataLen {
		return EINVAL
	}
	for len(data) > 0 {
		prev, blk, blockOff, err := self.inodeSeek(ino, f.offset)
		if err != nil {
			return err
		}
		var n int
		if blk != nil {
			n, err = self.overwriteBlock(ino, blk, blockOff, data)
		} else {
			n, err = self.appendBlock(ino, prev, data)
		}
		if err != nil {
			return err
		}
		data = data[n:]
		f.offset += uint32(n)
	}
	return nil
}

// overwriteBlock replaces the record at blk's rank: same block id,
// incremented seq, existing bytes outside the written range kept. The
// last block of a file may grow up to the payload limit; middle
// blocks keep their length so later blocks stay where they are.
func (self *FFS) overwriteBlock(ino *inode, blk *block, blockOff uint32, data []byte) (int, error) {
	n := BlockDataLen - int(blockOff)
	if blk.next != nil {
		n = int(uint32(blk.dataLen) - blockOff)
	}
	if n > len(data) {
		n = len(data)
	}
	newLen := blockOff + uint32(n)
	if uint32(blk.dataLen) > newLen {
		newLen = uint32(blk.dataLen)
	}
	merged := make([]byte, newLen)
	if err := self.blockReadData(blk, 0, merged[:blk.dataLen]); err != nil {
		return 0, err
	}
	copy(merged[blockOff:], data[:n])
	db := diskBlock{
		magic:   blockMagic,
		id:      blk.id,
		seq:     blk.seq + 1,
		rank:    blk.rank,
		inodeID: ino.id,
		flags:   uint16(blk.flags),
		dataLen: uint16(newLen),
		ecc:     eccPlaceholder,
	}
	areaID, off, err := self.blockWriteDisk(&db, merged)
	if err != nil {
		return 0, err
	}
	ino.dataLen += newLen - uint32(blk.dataLen)
	blk.seq = db.seq
	blk.areaID = areaID
	blk.offset = off
	blk.dataLen = db.dataLen
	return n, nil
}

// appendBlock emits a fresh block record after prev (nil prev = first
// block of the file).
func (self *FFS) appendBlock(ino *inode, prev *block, data []byte) (int, error) {
	n := len(data)
	if n > BlockDataLen {
		n = BlockDataLen
	}
	rank := uint32(0)
	if prev != nil {
		rank = prev.rank + 1
	}
	blk, err := self.blockAlloc()
	if err != nil {
		return 0, err
	}
	db := diskBlock{
		magic:   blockMagic,
		id:      self.nextID,
		seq:     0,
		rank:    rank,
		inodeID: ino.id,
		dataLen: uint16(n),
		ecc:     eccPlaceholder,
	}
	areaID, off, err := self.blockWriteDisk(&db, data[:n])
	if err != nil {
		self.blockFree(blk)
		return 0, err
	}
	self.nextID++
	self.blockFromDisk(blk, &db, areaID, off)
	self.hash.insert(blk)
	self.inodeInsertBlock(ino, blk)
	ino.dataLen += uint32(n)
	return n, nil
}
