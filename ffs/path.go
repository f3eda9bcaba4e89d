/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Fri Apr 13 09:33:28 2018 mstenber
 * Last modified: Tue May 15 17:58:13 2018 mstenber
 * Edit time:     121 min
 *
 */

package ffs

import "github.com/fingon/go-flashfs/mlog"

// Path resolution: slash-separated, leading slash required, no "."
// or "..". The parser produces branch tokens for intermediate
// components and a leaf token for the terminal one.

const (
	tokenNone = iota
	tokenBranch
	tokenLeaf
)

type pathParser struct {
	tokenType int
	path      string
	token     string
	off       int
}

func newPathParser(path string) *pathParser {
	return &pathParser{path: path}
}

// next advances to the following token; EINVAL on malformed paths
// (no leading slash, empty component).
func (self *pathParser) next() error {
	if self.off == 0 {
		if len(self.path) == 0 || self.path[0] != '/' {
			return EINVAL
		}
		self.off = 1
	}
	if self.off >= len(self.path) {
		self.tokenType = tokenNone
		self.token = ""
		return nil
	}
	end := self.off
	for end < len(self.path) && self.path[end] != '/' {
		end++
	}
	if end == self.off {
		return EINVAL
	}
	self.token = self.path[self.off:end]
	if end == len(self.path) {
		self.tokenType = tokenLeaf
	} else {
		self.tokenType = tokenBranch
	}
	self.off = end + 1
	return nil
}

// childByName locates parent's child with the given name via binary
// name comparison.
func childByName(parent *inode, name string) *inode {
	for child := parent.childList; child != nil; child = child.siblingNext {
		c := inodeFilenameCmpRAM(child, []byte(name))
		if c == 0 {
			return child
		}
		if c > 0 {
			// children are name-ordered
			return nil
		}
	}
	return nil
}

// pathFind walks the path from root. Cases:
//   - full match: (inode, inode.parent, nil)
//   - final token unmatched under an existing directory:
//     (nil, parent, ENOENT) so creators can place a new child
//   - anything else unmatched: (nil, nil, ENOENT)
func (self *FFS) pathFind(parser *pathParser) (ino *inode, parent *inode, err error) {
	if err = parser.next(); err != nil {
		return
	}
	cur := self.root
	if parser.tokenType == tokenNone {
		// "/" itself
		ino = cur
		return
	}
	for {
		if !cur.isDir() {
			return nil, nil, ENOENT
		}
		child := childByName(cur, parser.token)
		last := parser.tokenType == tokenLeaf
		if child == nil {
			mlog.Printf2("ffs/path", "pathFind %s: %s unmatched (last:%v)", parser.path, parser.token, last)
			if last {
				return nil, cur, ENOENT
			}
			return nil, nil, ENOENT
		}
		if last {
			return child, cur, nil
		}
		cur = child
		if err = parser.next(); err != nil {
			return nil, nil, err
		}
		if parser.tokenType == tokenNone {
			// trailing slash resolves to the directory itself
			return cur, cur.parent, nil
		}
	}
}

func (self *FFS) pathFindInode(path string) (*inode, error) {
	ino, _, err := self.pathFind(newPathParser(path))
	if err != nil {
		return nil, err
	}
	return ino, nil
}

// pathUnlink removes a file or an empty directory. Blocks of an
// unlinked file are deleted from RAM lazily if handles are open; the
// block records on flash die with the inode at the next restore/GC.
func (self *FFS) pathUnlink(path string) error {
	mlog.Printf2("ffs/path", "pathUnlink %s", path)
	ino, _, err := self.pathFind(newPathParser(path))
	if err != nil {
		return err
	}
	if ino == self.root {
		return EACCES
	}
	if ino.isDir() && ino.childList != nil {
		return ENOTEMPTY
	}
	if err = self.inodeDeleteFromDisk(ino); err != nil {
		return err
	}
	self.inodeDeleteFromRAM(ino)
	return nil
}

// pathRename moves from to to; an existing to is atomically
// superseded.
func (self *FFS) pathRename(from, to string) error {
	mlog.Printf2("ffs/path", "pathRename %s -> %s", from, to)
	ino, _, err := self.pathFind(newPathParser(from))
	if err != nil {
		return err
	}
	if ino == self.root {
		return EACCES
	}
	toParser := newPathParser(to)
	target, toParent, err := self.pathFind(toParser)
	if err != nil && err != ENOENT {
		return err
	}
	if target == ino {
		return nil
	}
	if target != nil {
		toParent = target.parent
		if target.isDir() {
			if target.childList != nil {
				return ENOTEMPTY
			}
			if !ino.isDir() {
				return EINVAL
			}
		}
		if err = self.inodeDeleteFromDisk(target); err != nil {
			return err
		}
		self.inodeDeleteFromRAM(target)
	}
	if toParent == nil {
		return ENOENT
	}
	if !toParent.isDir() {
		return ENOENT
	}
	return self.inodeRename(ino, toParent, []byte(toParser.token))
}

// pathNewDir creates a directory with an empty child list.
func (self *FFS) pathNewDir(path string) error {
	mlog.Printf2("ffs/path", "pathNewDir %s", path)
	parser := newPathParser(path)
	ino, parent, err := self.pathFind(parser)
	if err == nil {
		if ino != nil {
			return EEXIST
		}
		return EINVAL
	}
	if err != ENOENT || parent == nil {
		return err
	}
	_, err = self.fileNew(parent, []byte(parser.token), true)
	return err
}
