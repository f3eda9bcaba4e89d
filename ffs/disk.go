/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Wed Apr 11 10:21:04 2018 mstenber
 * Last modified: Fri May 11 13:40:19 2018 mstenber
 * Edit time:     102 min
 *
 */

package ffs

import "encoding/binary"

// On-disk record framing. Everything is little-endian and
// word-aligned; the layouts below are exact byte images including
// alignment padding, so the sizes in const.go are authoritative.
//
// The ecc fields are reserved for a later integrity check; they are
// written as the placeholder and ignored on read, but always occupy
// their slot in the record. A crc32 over the record body is the
// natural filling when the coverage gets decided.

type diskArea struct {
	magic     [4]uint32
	length    uint32
	seq       uint8
	isScratch uint8
}

func (self *diskArea) setMagic() {
	self.magic[0] = areaMagic0
	self.magic[1] = areaMagic1
	self.magic[2] = areaMagic2
	self.magic[3] = areaMagic3
}

func (self *diskArea) magicIsSet() bool {
	return self.magic[0] == areaMagic0 &&
		self.magic[1] == areaMagic1 &&
		self.magic[2] == areaMagic2 &&
		self.magic[3] == areaMagic3
}

// scratch areas carry the erased sentinel; promotion programs the
// byte to zero.
func (self *diskArea) scratch() bool {
	return self.isScratch == areaScratchSentinel
}

func (self *diskArea) live() bool {
	return self.isScratch == 0
}

func (self *diskArea) marshal() []byte {
	b := make([]byte, diskAreaSize)
	for i, m := range self.magic {
		binary.LittleEndian.PutUint32(b[4*i:], m)
	}
	binary.LittleEndian.PutUint32(b[16:], self.length)
	// reserved16 stays erased so later programming is possible
	b[20] = 0xff
	b[21] = 0xff
	b[22] = self.seq
	b[areaOffsetIsScratch] = self.isScratch
	return b
}

func (self *diskArea) unmarshal(b []byte) error {
	if len(b) < diskAreaSize {
		return ECORRUPT
	}
	for i := range self.magic {
		self.magic[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	self.length = binary.LittleEndian.Uint32(b[16:])
	self.seq = b[22]
	self.isScratch = b[areaOffsetIsScratch]
	return nil
}

type diskInode struct {
	magic       uint32
	id          uint32
	seq         uint32
	parentID    uint32
	flags       uint16
	filenameLen uint8
	ecc         uint32
	// followed by filename bytes
}

func (self *diskInode) size() uint32 {
	return diskInodeSize + uint32(self.filenameLen)
}

func (self *diskInode) marshal() []byte {
	b := make([]byte, diskInodeSize)
	binary.LittleEndian.PutUint32(b[0:], self.magic)
	binary.LittleEndian.PutUint32(b[4:], self.id)
	binary.LittleEndian.PutUint32(b[8:], self.seq)
	binary.LittleEndian.PutUint32(b[12:], self.parentID)
	binary.LittleEndian.PutUint16(b[16:], self.flags)
	b[18] = self.filenameLen
	b[19] = 0xff
	binary.LittleEndian.PutUint32(b[20:], self.ecc)
	return b
}

func (self *diskInode) unmarshal(b []byte) error {
	if len(b) < diskInodeSize {
		return ECORRUPT
	}
	self.magic = binary.LittleEndian.Uint32(b[0:])
	if self.magic != inodeMagic {
		return ECORRUPT
	}
	self.id = binary.LittleEndian.Uint32(b[4:])
	self.seq = binary.LittleEndian.Uint32(b[8:])
	self.parentID = binary.LittleEndian.Uint32(b[12:])
	self.flags = binary.LittleEndian.Uint16(b[16:])
	self.filenameLen = b[18]
	self.ecc = binary.LittleEndian.Uint32(b[20:])
	return nil
}

type diskBlock struct {
	magic   uint32
	id      uint32
	seq     uint32
	rank    uint32
	inodeID uint32
	flags   uint16
	dataLen uint16
	ecc     uint32
	// followed by data bytes
}

func (self *diskBlock) size() uint32 {
	return diskBlockSize + uint32(self.dataLen)
}

func (self *diskBlock) marshal() []byte {
	b := make([]byte, diskBlockSize)
	binary.LittleEndian.PutUint32(b[0:], self.magic)
	binary.LittleEndian.PutUint32(b[4:], self.id)
	binary.LittleEndian.PutUint32(b[8:], self.seq)
	binary.LittleEndian.PutUint32(b[12:], self.rank)
	binary.LittleEndian.PutUint32(b[16:], self.inodeID)
	b[20] = 0xff
	b[21] = 0xff
	binary.LittleEndian.PutUint16(b[22:], self.flags)
	binary.LittleEndian.PutUint16(b[24:], self.dataLen)
	b[26] = 0xff
	b[27] = 0xff
	binary.LittleEndian.PutUint32(b[28:], self.ecc)
	return b
}

func (self *diskBlock) unmarshal(b []byte) error {
	if len(b) < diskBlockSize {
		return ECORRUPT
	}
	self.magic = binary.LittleEndian.Uint32(b[0:])
	if self.magic != blockMagic {
		return ECORRUPT
	}
	self.id = binary.LittleEndian.Uint32(b[4:])
	self.seq = binary.LittleEndian.Uint32(b[8:])
	self.rank = binary.LittleEndian.Uint32(b[12:])
	self.inodeID = binary.LittleEndian.Uint32(b[16:])
	self.flags = binary.LittleEndian.Uint16(b[22:])
	self.dataLen = binary.LittleEndian.Uint16(b[24:])
	self.ecc = binary.LittleEndian.Uint32(b[28:])
	return nil
}

const (
	objectTypeInode = 1
	objectTypeBlock = 2
)

// diskObject is one decoded record header: either an inode (with its
// filename) or a block (data stays on flash).
type diskObject struct {
	typ      int
	areaID   uint16
	offset   uint32
	inode    diskInode
	filename []byte
	block    diskBlock
}

func (self *diskObject) size() uint32 {
	if self.typ == objectTypeInode {
		return self.inode.size()
	}
	return self.block.size()
}
