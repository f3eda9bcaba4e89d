/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Tue Apr 24 09:02:18 2018 mstenber
 * Last modified: Mon May 21 12:40:55 2018 mstenber
 * Edit time:     174 min
 *
 */

// fuseconn exposes a mounted ffs image to the host kernel through
// go-fuse. The filesystem itself is path-addressed, so the connector
// keeps the kernel node id <-> path mapping and the kernel file
// handle table. Features the filesystem does not have: symlinks and
// xattrs fall through to the default ENOSYS handlers, writes past end
// of file (sparse files) fail with EINVAL, and ownership and time
// changes are accepted without being stored.
package fuseconn

import (
	"os"
	"syscall"

	"github.com/hanwen/go-fuse/fuse"

	"github.com/fingon/go-flashfs/ffs"
	"github.com/fingon/go-flashfs/mlog"
	"github.com/fingon/go-flashfs/util"
)

const attrValidity = 1
const entryValidity = 1

type dirHandle struct {
	path string
	pos  int
}

type Conn struct {
	fuse.RawFileSystem

	fs *ffs.FFS

	lock     util.MutexLocked
	node2imp map[uint64]string
	path2imp map[string]uint64
	nextNode uint64

	fh2file  map[uint64]*ffs.File
	fh2dir   map[uint64]*dirHandle
	nextFh   uint64
}

var _ fuse.RawFileSystem = &Conn{}

func New(fs *ffs.FFS) *Conn {
	self := &Conn{RawFileSystem: fuse.NewDefaultRawFileSystem(), fs: fs}
	self.node2imp = map[uint64]string{fuse.FUSE_ROOT_ID: "/"}
	self.path2imp = map[string]uint64{"/": fuse.FUSE_ROOT_ID}
	self.nextNode = fuse.FUSE_ROOT_ID + 1
	self.fh2file = map[uint64]*ffs.File{}
	self.fh2dir = map[uint64]*dirHandle{}
	self.nextFh = 1
	return self
}

// NewServer mounts the filesystem at mountpoint.
func NewServer(fs *ffs.FFS, mountpoint string) (*fuse.Server, error) {
	opts := &fuse.MountOptions{FsName: "flashfs"}
	if mlog.IsEnabled() {
		opts.Debug = true
	}
	return fuse.NewServer(New(fs), mountpoint, opts)
}

func (self *Conn) String() string {
	return os.Args[0]
}

func toStatus(err error) fuse.Status {
	switch err {
	case nil:
		return fuse.OK
	case ffs.ENOENT:
		return fuse.ENOENT
	case ffs.EEXIST:
		return fuse.Status(syscall.EEXIST)
	case ffs.EINVAL:
		return fuse.Status(syscall.EINVAL)
	case ffs.EACCES:
		return fuse.Status(syscall.EACCES)
	case ffs.ENOTEMPTY:
		return fuse.Status(syscall.ENOTEMPTY)
	case ffs.ENOMEM:
		return fuse.Status(syscall.ENOMEM)
	case ffs.EFULL:
		return fuse.Status(syscall.ENOSPC)
	}
	return fuse.Status(syscall.EIO)
}

func (self *Conn) path(node uint64) (string, bool) {
	defer self.lock.Locked()()
	p, ok := self.node2imp[node]
	return p, ok
}

func (self *Conn) nodeForPath(path string) uint64 {
	defer self.lock.Locked()()
	if node, ok := self.path2imp[path]; ok {
		return node
	}
	node := self.nextNode
	self.nextNode++
	self.node2imp[node] = path
	self.path2imp[path] = node
	return node
}

func childPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

func fillAttr(info ffs.Info, node uint64, out *fuse.Attr) {
	out.Ino = node
	out.Size = uint64(info.Size)
	out.Blocks = (uint64(info.Size) + ffs.BlockSize - 1) / ffs.BlockSize
	out.Nlink = 1
	if info.Dir {
		out.Mode = fuse.S_IFDIR | 0755
	} else {
		out.Mode = fuse.S_IFREG | 0644
	}
}

func (self *Conn) Lookup(input *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	parent, ok := self.path(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	path := childPath(parent, name)
	info, err := self.fs.Stat(path)
	if err != nil {
		return toStatus(err)
	}
	node := self.nodeForPath(path)
	out.NodeId = node
	out.EntryValid = entryValidity
	out.AttrValid = attrValidity
	fillAttr(info, node, &out.Attr)
	return fuse.OK
}

func (self *Conn) GetAttr(input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	path, ok := self.path(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	info, err := self.fs.Stat(path)
	if err != nil {
		return toStatus(err)
	}
	out.AttrValid = attrValidity
	fillAttr(info, input.NodeId, &out.Attr)
	return fuse.OK
}

// SetAttr supports truncation to zero only (other size changes are
// ENOSYS); ownership and times are not stored and are silently
// accepted.
func (self *Conn) SetAttr(input *fuse.SetAttrIn, out *fuse.AttrOut) fuse.Status {
	path, ok := self.path(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	if input.Valid&fuse.FATTR_SIZE != 0 {
		info, err := self.fs.Stat(path)
		if err != nil {
			return toStatus(err)
		}
		if uint64(info.Size) != input.Size {
			if input.Size != 0 {
				return fuse.ENOSYS
			}
			f, err := self.fs.Open(path, ffs.AccessWrite|ffs.AccessTruncate)
			if err != nil {
				return toStatus(err)
			}
			f.Close()
		}
	}
	return self.GetAttr(&fuse.GetAttrIn{InHeader: input.InHeader}, out)
}

func (self *Conn) registerFile(f *ffs.File) uint64 {
	defer self.lock.Locked()()
	fh := self.nextFh
	self.nextFh++
	self.fh2file[fh] = f
	return fh
}

func accessFlags(flags uint32) ffs.AccessFlags {
	af := ffs.AccessFlags(0)
	switch flags & uint32(syscall.O_ACCMODE) {
	case uint32(os.O_RDONLY):
		af = ffs.AccessRead
	case uint32(os.O_WRONLY):
		af = ffs.AccessWrite
	case uint32(os.O_RDWR):
		af = ffs.AccessRead | ffs.AccessWrite
	}
	if flags&uint32(os.O_APPEND) != 0 {
		af |= ffs.AccessAppend | ffs.AccessWrite
	}
	if flags&uint32(os.O_TRUNC) != 0 {
		af |= ffs.AccessTruncate | ffs.AccessWrite
	}
	if flags&uint32(os.O_CREATE) != 0 {
		af |= ffs.AccessCreate | ffs.AccessWrite
	}
	return af
}

func (self *Conn) Open(input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	path, ok := self.path(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	f, err := self.fs.Open(path, accessFlags(input.Flags))
	if err != nil {
		return toStatus(err)
	}
	out.Fh = self.registerFile(f)
	return fuse.OK
}

func (self *Conn) Create(input *fuse.CreateIn, name string, out *fuse.CreateOut) fuse.Status {
	parent, ok := self.path(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	path := childPath(parent, name)
	f, err := self.fs.Open(path, accessFlags(input.Flags)|ffs.AccessCreate|ffs.AccessWrite)
	if err != nil {
		return toStatus(err)
	}
	out.Fh = self.registerFile(f)
	info, err := self.fs.Stat(path)
	if err != nil {
		return toStatus(err)
	}
	node := self.nodeForPath(path)
	out.NodeId = node
	out.EntryValid = entryValidity
	out.AttrValid = attrValidity
	fillAttr(info, node, &out.Attr)
	return fuse.OK
}

func (self *Conn) Release(input *fuse.ReleaseIn) {
	defer self.lock.Locked()()
	if f := self.fh2file[input.Fh]; f != nil {
		f.Close()
	}
	delete(self.fh2file, input.Fh)
}

func (self *Conn) Read(input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	self.lock.Lock()
	f := self.fh2file[input.Fh]
	self.lock.Unlock()
	if f == nil {
		return nil, fuse.ENOENT
	}
	if err := f.Seek(uint32(input.Offset)); err != nil {
		// reads past EOF return no data
		return fuse.ReadResultData(nil), fuse.OK
	}
	n, err := f.Read(buf)
	if err != nil {
		return nil, toStatus(err)
	}
	return fuse.ReadResultData(buf[:n]), fuse.OK
}

func (self *Conn) Write(input *fuse.WriteIn, data []byte) (uint32, fuse.Status) {
	self.lock.Lock()
	f := self.fh2file[input.Fh]
	self.lock.Unlock()
	if f == nil {
		return 0, fuse.ENOENT
	}
	if err := f.Seek(uint32(input.Offset)); err != nil {
		// no sparse files
		return 0, toStatus(err)
	}
	if err := f.Write(data); err != nil {
		return 0, toStatus(err)
	}
	return uint32(len(data)), fuse.OK
}

func (self *Conn) Mkdir(input *fuse.MkdirIn, name string, out *fuse.EntryOut) fuse.Status {
	parent, ok := self.path(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	path := childPath(parent, name)
	if err := self.fs.Mkdir(path); err != nil {
		return toStatus(err)
	}
	return self.Lookup(&input.InHeader, name, out)
}

func (self *Conn) forgetPath(path string) {
	defer self.lock.Locked()()
	if node, ok := self.path2imp[path]; ok {
		delete(self.path2imp, path)
		delete(self.node2imp, node)
	}
}

func (self *Conn) Unlink(input *fuse.InHeader, name string) fuse.Status {
	parent, ok := self.path(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	path := childPath(parent, name)
	if err := self.fs.Unlink(path); err != nil {
		return toStatus(err)
	}
	self.forgetPath(path)
	return fuse.OK
}

func (self *Conn) Rmdir(input *fuse.InHeader, name string) fuse.Status {
	return self.Unlink(input, name)
}

func (self *Conn) Rename(input *fuse.RenameIn, oldName string, newName string) fuse.Status {
	from, ok := self.path(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	to, ok := self.path(input.Newdir)
	if !ok {
		return fuse.ENOENT
	}
	fromPath := childPath(from, oldName)
	toPath := childPath(to, newName)
	if err := self.fs.Rename(fromPath, toPath); err != nil {
		return toStatus(err)
	}
	self.forgetPath(fromPath)
	self.forgetPath(toPath)
	return fuse.OK
}

func (self *Conn) OpenDir(input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	path, ok := self.path(input.NodeId)
	if !ok {
		return fuse.ENOENT
	}
	info, err := self.fs.Stat(path)
	if err != nil {
		return toStatus(err)
	}
	if !info.Dir {
		return fuse.ENOTDIR
	}
	defer self.lock.Locked()()
	fh := self.nextFh
	self.nextFh++
	self.fh2dir[fh] = &dirHandle{path: path}
	out.Fh = fh
	return fuse.OK
}

func (self *Conn) ReleaseDir(input *fuse.ReleaseIn) {
	defer self.lock.Locked()()
	delete(self.fh2dir, input.Fh)
}

func (self *Conn) ReadDir(input *fuse.ReadIn, l *fuse.DirEntryList) fuse.Status {
	self.lock.Lock()
	dh := self.fh2dir[input.Fh]
	self.lock.Unlock()
	if dh == nil {
		return fuse.ENOENT
	}
	infos, err := self.fs.ReadDir(dh.path)
	if err != nil {
		return toStatus(err)
	}
	if input.Offset == 0 {
		dh.pos = 0
	}
	for dh.pos < len(infos) {
		info := infos[dh.pos]
		node := self.nodeForPath(childPath(dh.path, info.Name))
		mode := uint32(fuse.S_IFREG)
		if info.Dir {
			mode = fuse.S_IFDIR
		}
		ok, _ := l.AddDirEntry(fuse.DirEntry{Mode: mode, Name: info.Name, Ino: node})
		if !ok {
			break
		}
		dh.pos++
	}
	return fuse.OK
}

func (self *Conn) StatFs(input *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	bsize := uint64(ffs.BlockSize)
	out.Bsize = uint32(bsize)
	out.Frsize = uint32(bsize)
	free := uint64(self.fs.BytesFree()) / bsize
	out.Bfree = free
	out.Bavail = free
	out.Blocks = uint64(self.fs.BytesTotal()) / bsize
	return fuse.OK
}

func (self *Conn) Flush(input *fuse.FlushIn) fuse.Status {
	return fuse.OK
}

func (self *Conn) Fsync(input *fuse.FsyncIn) fuse.Status {
	// records are durable before calls return
	return fuse.OK
}
