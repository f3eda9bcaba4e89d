/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Wed Apr 11 11:04:27 2018 mstenber
 * Last modified: Fri May 11 13:48:02 2018 mstenber
 * Edit time:     41 min
 *
 */

package ffs

// The object index: a fixed-bucket hash over the shared 32-bit id
// space, holding the current version of every inode and block. Insert
// never replaces; callers remove the prior version first.

type object interface {
	base() *objectBase
}

// objectBase is the part common to inodes and blocks: identity, the
// supersede counter, and where the current record lives on flash.
type objectBase struct {
	hashNext object
	id       uint32
	seq      uint32
	offset   uint32
	areaID   uint16
}

func (self *objectBase) base() *objectBase {
	return self
}

type objectHash struct {
	buckets [hashSize]object
}

func (self *objectHash) bucket(id uint32) *object {
	return &self.buckets[id%hashSize]
}

func (self *objectHash) find(id uint32) object {
	for o := *self.bucket(id); o != nil; o = o.base().hashNext {
		if o.base().id == id {
			return o
		}
	}
	return nil
}

// findInode returns the inode with the given id; a block stored under
// the id is a miss.
func (self *objectHash) findInode(id uint32) (*inode, error) {
	o := self.find(id)
	ino, ok := o.(*inode)
	if !ok {
		return nil, ENOENT
	}
	return ino, nil
}

func (self *objectHash) findBlock(id uint32) (*block, error) {
	o := self.find(id)
	b, ok := o.(*block)
	if !ok {
		return nil, ENOENT
	}
	return b, nil
}

func (self *objectHash) insert(o object) {
	b := self.bucket(o.base().id)
	o.base().hashNext = *b
	*b = o
}

func (self *objectHash) remove(o object) {
	b := self.bucket(o.base().id)
	for cur := *b; cur != nil; cur = cur.base().hashNext {
		if cur == o {
			*b = cur.base().hashNext
			cur.base().hashNext = nil
			return
		}
		b = &cur.base().hashNext
	}
}

// foreach visits every object; removing the visited object inside cb
// is safe, removing others is not.
func (self *objectHash) foreach(cb func(o object)) {
	for i := range self.buckets {
		o := self.buckets[i]
		for o != nil {
			next := o.base().hashNext
			cb(o)
			o = next
		}
	}
}
