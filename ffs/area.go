/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Wed Apr 11 11:31:02 2018 mstenber
 * Last modified: Fri May 11 14:02:33 2018 mstenber
 * Edit time:     28 min
 *
 */

package ffs

import "github.com/fingon/go-flashfs/flash"

// area is the in-RAM view of one erase unit: where it sits on the
// device and how far its record log has grown.
type area struct {
	offset uint32
	length uint32
	cur    uint32
	id     uint16
	seq    uint8
}

func (self *area) freeSpace() uint32 {
	return self.length - self.cur
}

func (self *area) toDisk(isScratch bool) *diskArea {
	da := &diskArea{length: self.length}
	da.setMagic()
	if isScratch {
		da.seq = 0xff
		da.isScratch = areaScratchSentinel
	} else {
		da.seq = self.seq
		da.isScratch = 0
	}
	return da
}

func validateAreaDescs(descs []flash.Desc, devSize uint32) error {
	if len(descs) < 2 || len(descs) > MaxAreas {
		return EINVAL
	}
	for _, d := range descs {
		if d.Length <= diskAreaSize {
			return EINVAL
		}
		if uint64(d.Offset)+uint64(d.Length) > uint64(devSize) {
			return EINVAL
		}
	}
	return nil
}
