/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Mon Apr  9 12:14:50 2018 mstenber
 * Last modified: Wed May  9 09:47:02 2018 mstenber
 * Edit time:     39 min
 *
 */

package flash

import (
	"github.com/fingon/go-flashfs/mlog"
	"github.com/fingon/go-flashfs/util"
)

// MemDevice keeps the flash content in a byte slice. It enforces NOR
// semantics (program clears bits only) so that tests catch writes to
// non-erased flash, and it can snapshot/restore its content for
// power-cut simulation.
type MemDevice struct {
	data []byte
	lock util.MutexLocked
}

var _ Device = &MemDevice{}

func NewMemDevice(size uint32) *MemDevice {
	self := &MemDevice{data: make([]byte, size)}
	for i := range self.data {
		self.data[i] = 0xff
	}
	return self
}

func NewMemDeviceFromBytes(data []byte) *MemDevice {
	d := make([]byte, len(data))
	copy(d, data)
	return &MemDevice{data: d}
}

func (self *MemDevice) ReadAt(buf []byte, off uint32) error {
	defer self.lock.Locked()()
	if err := checkRange(uint32(len(self.data)), off, len(buf)); err != nil {
		return err
	}
	copy(buf, self.data[off:])
	return nil
}

func (self *MemDevice) WriteAt(data []byte, off uint32) error {
	defer self.lock.Locked()()
	if err := checkRange(uint32(len(self.data)), off, len(data)); err != nil {
		return err
	}
	mlog.Printf2("flash/mem", "mem.WriteAt %v bytes @%v", len(data), off)
	for i, b := range data {
		self.data[off+uint32(i)] &= b
	}
	return nil
}

func (self *MemDevice) Erase(off, length uint32) error {
	defer self.lock.Locked()()
	if err := checkRange(uint32(len(self.data)), off, int(length)); err != nil {
		return err
	}
	mlog.Printf2("flash/mem", "mem.Erase %v bytes @%v", length, off)
	for i := off; i < off+length; i++ {
		self.data[i] = 0xff
	}
	return nil
}

func (self *MemDevice) Size() uint32 {
	return uint32(len(self.data))
}

func (self *MemDevice) Close() {
}

// Snapshot returns a copy of the current device content. Mounting a
// fresh filesystem on NewMemDeviceFromBytes(snapshot) models a power
// cut at the time of the snapshot.
func (self *MemDevice) Snapshot() []byte {
	defer self.lock.Locked()()
	d := make([]byte, len(self.data))
	copy(d, self.data)
	return d
}
