/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Tue Apr 10 09:02:11 2018 mstenber
 * Last modified: Wed May  9 09:52:40 2018 mstenber
 * Edit time:     67 min
 *
 */

package flash

import (
	"log"

	"github.com/fingon/go-flashfs/codec"
	"github.com/fingon/go-flashfs/util"
)

const DefaultSectorSize = 4096

// SectorStore is the small surface a KV-style backend has to provide;
// SectorBase turns it into a full Device. Get returns nil for a
// sector that was never stored (= erased).
type SectorStore interface {
	GetSector(i uint32) []byte
	SetSector(i uint32, data []byte)
	DeleteSector(i uint32)
}

// SectorBase implements Device on top of a SectorStore, splitting the
// address space into fixed-size sectors and running each stored
// sector payload through the codec chain.
type SectorBase struct {
	Store      SectorStore
	Codec      codec.Codec
	SectorSize uint32
	DevSize    uint32
}

func (self *SectorBase) Init(store SectorStore, c codec.Codec, size, sectorSize uint32) {
	if c == nil {
		c = &codec.CodecChain{}
	}
	if sectorSize == 0 {
		sectorSize = DefaultSectorSize
	}
	self.Store = store
	self.Codec = c
	self.SectorSize = sectorSize
	self.DevSize = size
}

func (self *SectorBase) Size() uint32 {
	return self.DevSize
}

func (self *SectorBase) getSector(i uint32) []byte {
	data := self.Store.GetSector(i)
	if data == nil {
		data = make([]byte, self.SectorSize)
		for j := range data {
			data[j] = 0xff
		}
		return data
	}
	data, err := self.Codec.DecodeBytes(data, util.Uint32Bytes(i))
	if err != nil {
		log.Panic("flash: undecodable sector: ", err)
	}
	return data
}

func (self *SectorBase) setSector(i uint32, data []byte) {
	enc, err := self.Codec.EncodeBytes(data, util.Uint32Bytes(i))
	if err != nil {
		log.Panic("flash: unencodable sector: ", err)
	}
	self.Store.SetSector(i, enc)
}

func (self *SectorBase) ReadAt(buf []byte, off uint32) error {
	if err := checkRange(self.DevSize, off, len(buf)); err != nil {
		return err
	}
	for len(buf) > 0 {
		i := off / self.SectorSize
		sofs := off % self.SectorSize
		n := copy(buf, self.getSector(i)[sofs:])
		buf = buf[n:]
		off += uint32(n)
	}
	return nil
}

func (self *SectorBase) WriteAt(data []byte, off uint32) error {
	if err := checkRange(self.DevSize, off, len(data)); err != nil {
		return err
	}
	for len(data) > 0 {
		i := off / self.SectorSize
		sofs := off % self.SectorSize
		sector := self.getSector(i)
		n := 0
		for n < len(data) && sofs+uint32(n) < self.SectorSize {
			sector[sofs+uint32(n)] &= data[n]
			n++
		}
		self.setSector(i, sector)
		data = data[n:]
		off += uint32(n)
	}
	return nil
}

func (self *SectorBase) Erase(off, length uint32) error {
	if err := checkRange(self.DevSize, off, int(length)); err != nil {
		return err
	}
	for length > 0 {
		i := off / self.SectorSize
		sofs := off % self.SectorSize
		n := self.SectorSize - sofs
		if length < n {
			n = length
		}
		if sofs == 0 && n == self.SectorSize {
			self.Store.DeleteSector(i)
		} else {
			sector := self.getSector(i)
			for j := sofs; j < sofs+n; j++ {
				sector[j] = 0xff
			}
			self.setSector(i, sector)
		}
		off += n
		length -= n
	}
	return nil
}
