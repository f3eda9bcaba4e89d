/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Wed Apr 11 12:30:51 2018 mstenber
 * Last modified: Mon May 14 10:31:09 2018 mstenber
 * Edit time:     88 min
 *
 */

// ffs is a log-structured filesystem for NOR-style flash: storage
// that is erased an area at a time and programmed append-only within
// an area. Files and directories live as self-framed records in the
// per-area logs; an in-RAM index reconstructs the tree from the
// records at mount time. One area is always kept blank (scratch) so
// that garbage collection can copy-compact any other area into it.
//
// All state of one mounted filesystem lives in a FFS value, so tests
// can mount several images in parallel. The core is single-writer:
// entry points serialize on the instance lock and operations either
// complete or return an error.
package ffs

import (
	"github.com/fingon/go-flashfs/flash"
	"github.com/fingon/go-flashfs/mlog"
	"github.com/fingon/go-flashfs/pool"
	"github.com/fingon/go-flashfs/util"
)

const (
	defaultMaxInodes = 1024
	defaultMaxBlocks = 4096
	defaultMaxFiles  = 32
)

type FFS struct {
	// Dev is the flash the filesystem lives on.
	Dev flash.Device

	// Pool capacities; 0 = default.
	MaxInodes, MaxBlocks, MaxFiles int

	areas         []*area
	scratchAreaID uint16
	hash          objectHash
	root          *inode
	nextID        uint32

	inodePool *pool.Pool
	blockPool *pool.Pool
	filePool  *pool.Pool

	lock util.MutexLocked
}

// Init sets up the default values to be usable.
func (self FFS) Init() *FFS {
	if self.MaxInodes == 0 {
		self.MaxInodes = defaultMaxInodes
	}
	if self.MaxBlocks == 0 {
		self.MaxBlocks = defaultMaxBlocks
	}
	if self.MaxFiles == 0 {
		self.MaxFiles = defaultMaxFiles
	}
	self.inodePool = pool.New(self.MaxInodes, func() interface{} { return &inode{} })
	self.blockPool = pool.New(self.MaxBlocks, func() interface{} { return &block{} })
	self.filePool = pool.New(self.MaxFiles, func() interface{} { return &File{} })
	self.scratchAreaID = areaIDNone
	return &self
}

// Format erases everything and lays out a blank filesystem over the
// given areas. The last area becomes scratch. Errors: EINVAL, ENOMEM,
// EFULL, EIO.
func (self *FFS) Format(descs []flash.Desc) error {
	defer self.lock.Locked()()
	return self.formatFull(descs)
}

// Restore mounts the filesystem by scanning every area and
// reassembling the tree from the records found. A virgin device gets
// formatted. Errors: EINVAL, ENOMEM, ECORRUPT, EIO.
func (self *FFS) Restore(descs []flash.Desc) error {
	defer self.lock.Locked()()
	return self.restoreFull(descs)
}

// Open opens (or with AccessCreate, creates) the file at path.
// Errors: EINVAL, EACCES, ENOENT, ENOMEM, EFULL, EIO.
func (self *FFS) Open(path string, flags AccessFlags) (*File, error) {
	defer self.lock.Locked()()
	return self.fileOpen(path, flags)
}

// Unlink removes the file or empty directory at path. Errors:
// EINVAL, ENOENT, EACCES, ENOTEMPTY, EFULL, EIO.
func (self *FFS) Unlink(path string) error {
	defer self.lock.Locked()()
	return self.pathUnlink(path)
}

// Rename moves from to to, superseding an existing to. Errors:
// EINVAL, ENOENT, EACCES, ENOTEMPTY, EFULL, EIO.
func (self *FFS) Rename(from, to string) error {
	defer self.lock.Locked()()
	return self.pathRename(from, to)
}

// Mkdir creates a directory at path. Errors: EINVAL, ENOENT, EEXIST,
// ENOMEM, EFULL, EIO.
func (self *FFS) Mkdir(path string) error {
	defer self.lock.Locked()()
	return self.pathNewDir(path)
}

// Info describes one directory entry.
type Info struct {
	Name string
	Size uint32
	Dir  bool
}

// Stat returns metadata of the object at path.
func (self *FFS) Stat(path string) (info Info, err error) {
	defer self.lock.Locked()()
	ino, err := self.pathFindInode(path)
	if err != nil {
		return
	}
	info = ino.info()
	return
}

// ReadDir lists the children of the directory at path, in the
// (filename-ordered) child list order.
func (self *FFS) ReadDir(path string) (infos []Info, err error) {
	defer self.lock.Locked()()
	ino, err := self.pathFindInode(path)
	if err != nil {
		return
	}
	if !ino.isDir() {
		err = EINVAL
		return
	}
	for child := ino.childList; child != nil; child = child.siblingNext {
		infos = append(infos, child.info())
	}
	return
}

// BytesTotal returns the capacity of the live areas.
func (self *FFS) BytesTotal() (total uint32) {
	defer self.lock.Locked()()
	for _, a := range self.areas {
		if a.id != self.scratchAreaID {
			total += a.length - diskAreaSize
		}
	}
	return
}

// BytesFree returns the unreserved bytes of the live areas. Space
// held by superseded records does not count as free until GC runs.
func (self *FFS) BytesFree() (free uint32) {
	defer self.lock.Locked()()
	for _, a := range self.areas {
		if a.id != self.scratchAreaID {
			free += a.freeSpace()
		}
	}
	return
}

// Close releases the device. Open file handles become invalid.
func (self *FFS) Close() {
	defer self.lock.Locked()()
	mlog.Printf2("ffs/ffs", "fs.Close")
	self.Dev.Close()
}
