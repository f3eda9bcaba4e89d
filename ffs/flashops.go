/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Wed Apr 11 11:52:16 2018 mstenber
 * Last modified: Fri May 11 14:09:20 2018 mstenber
 * Edit time:     47 min
 *
 */

package ffs

import (
	"github.com/fingon/go-flashfs/mlog"
	"github.com/fingon/go-flashfs/util"
)

// The flash access layer: area lookup by logical id, bounds checks on
// top of the raw device, and a copy helper for GC.

func (self *FFS) findArea(areaID uint16) *area {
	if int(areaID) >= len(self.areas) {
		return nil
	}
	return self.areas[areaID]
}

func (self *FFS) flashRead(areaID uint16, off uint32, buf []byte) error {
	a := self.findArea(areaID)
	if a == nil {
		return EINVAL
	}
	if uint64(off)+uint64(len(buf)) > uint64(a.length) {
		return EINVAL
	}
	if err := self.Dev.ReadAt(buf, a.offset+off); err != nil {
		mlog.Printf2("ffs/flashops", "flashRead %v @%v: %v", len(buf), off, err)
		return EIO
	}
	return nil
}

func (self *FFS) flashWrite(areaID uint16, off uint32, data []byte) error {
	a := self.findArea(areaID)
	if a == nil {
		return EINVAL
	}
	end := uint64(off) + uint64(len(data))
	if end > uint64(a.length) {
		return EINVAL
	}
	if err := self.Dev.WriteAt(data, a.offset+off); err != nil {
		mlog.Printf2("ffs/flashops", "flashWrite %v @%v: %v", len(data), off, err)
		return EIO
	}
	if uint32(end) > a.cur {
		a.cur = uint32(end)
	}
	return nil
}

func (self *FFS) flashCopy(fromID uint16, fromOff uint32, toID uint16, toOff uint32, length uint32) error {
	buf := make([]byte, util.IMin(int(length), blockMaxDataSize))
	for length > 0 {
		chunk := buf
		if uint32(len(chunk)) > length {
			chunk = chunk[:length]
		}
		if err := self.flashRead(fromID, fromOff, chunk); err != nil {
			return err
		}
		if err := self.flashWrite(toID, toOff, chunk); err != nil {
			return err
		}
		fromOff += uint32(len(chunk))
		toOff += uint32(len(chunk))
		length -= uint32(len(chunk))
	}
	return nil
}
