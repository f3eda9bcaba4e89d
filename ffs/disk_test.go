/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Fri Apr 20 14:44:28 2018 mstenber
 * Last modified: Fri Apr 20 15:09:11 2018 mstenber
 * Edit time:     16 min
 *
 */

package ffs

import (
	"testing"

	"github.com/stvp/assert"
)

func TestDiskAreaFraming(t *testing.T) {
	t.Parallel()
	a := &area{length: 4096}
	da := a.toDisk(true)
	b := da.marshal()
	assert.Equal(t, len(b), diskAreaSize)
	// the scratch sentinel stays erased so promotion only
	// programs bits
	assert.Equal(t, b[areaOffsetIsScratch], uint8(0xff))
	assert.Equal(t, b[22], uint8(0xff))

	var dec diskArea
	assert.Nil(t, dec.unmarshal(b))
	assert.True(t, dec.magicIsSet())
	assert.True(t, dec.scratch())
	assert.Equal(t, dec.length, uint32(4096))

	a.seq = 7
	b = a.toDisk(false).marshal()
	assert.Nil(t, dec.unmarshal(b))
	assert.True(t, dec.live())
	assert.Equal(t, dec.seq, uint8(7))
}

func TestDiskRecordFraming(t *testing.T) {
	t.Parallel()
	di := diskInode{magic: inodeMagic, id: 3, seq: 9, parentID: 0,
		flags: uint16(inodeFlagDirectory), filenameLen: 4, ecc: eccPlaceholder}
	assert.Equal(t, di.size(), uint32(diskInodeSize+4))
	var di2 diskInode
	assert.Nil(t, di2.unmarshal(di.marshal()))
	assert.Equal(t, di2, di)

	db := diskBlock{magic: blockMagic, id: 4, seq: 1, rank: 2, inodeID: 3,
		flags: 0, dataLen: 99, ecc: eccPlaceholder}
	assert.Equal(t, db.size(), uint32(diskBlockSize+99))
	var db2 diskBlock
	assert.Nil(t, db2.unmarshal(db.marshal()))
	assert.Equal(t, db2, db)

	// bad magic is how restore finds the end of a record log
	b := db.marshal()
	b[0] = 0
	assert.Equal(t, db2.unmarshal(b), ECORRUPT)
}

func TestHash(t *testing.T) {
	t.Parallel()
	var h objectHash
	// same bucket on purpose (ids differ by hashSize)
	a := &inode{}
	a.id = 1
	b := &block{}
	b.id = 1 + hashSize
	c := &inode{}
	c.id = 1 + 2*hashSize
	h.insert(a)
	h.insert(b)
	h.insert(c)
	assert.Equal(t, h.find(a.id), object(a))
	assert.Equal(t, h.find(b.id), object(b))
	assert.Nil(t, h.find(2))

	ino, err := h.findInode(a.id)
	assert.Nil(t, err)
	assert.Equal(t, ino, a)
	_, err = h.findInode(b.id)
	assert.Equal(t, err, ENOENT)
	blk, err := h.findBlock(b.id)
	assert.Nil(t, err)
	assert.Equal(t, blk, b)

	h.remove(b)
	assert.Nil(t, h.find(b.id))
	assert.Equal(t, h.find(a.id), object(a))
	assert.Equal(t, h.find(c.id), object(c))

	n := 0
	h.foreach(func(o object) { n++ })
	assert.Equal(t, n, 2)
}

func TestPathParser(t *testing.T) {
	t.Parallel()
	p := newPathParser("/a/bb/c")
	assert.Nil(t, p.next())
	assert.Equal(t, p.token, "a")
	assert.Equal(t, p.tokenType, tokenBranch)
	assert.Nil(t, p.next())
	assert.Equal(t, p.token, "bb")
	assert.Equal(t, p.tokenType, tokenBranch)
	assert.Nil(t, p.next())
	assert.Equal(t, p.token, "c")
	assert.Equal(t, p.tokenType, tokenLeaf)

	assert.Equal(t, newPathParser("relative").next(), EINVAL)
	assert.Equal(t, newPathParser("").next(), EINVAL)
	assert.Equal(t, newPathParser("//x").next(), EINVAL)

	p = newPathParser("/")
	assert.Nil(t, p.next())
	assert.Equal(t, p.tokenType, tokenNone)
}
