/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Mon Apr  9 12:01:33 2018 mstenber
 * Last modified: Wed May  9 09:44:21 2018 mstenber
 * Edit time:     58 min
 *
 */

// flash models raw NOR-style storage: reads at any offset, programs
// that can only clear bits, and erases that fill a whole range with
// 0xff. The filesystem core talks to a Device; the packages below
// this one (file, bolt, badger) provide persistent implementations of
// it behind the same interface.
package flash

import "github.com/pkg/errors"

// Desc describes one erase unit (area) of a device. The filesystem is
// given a table of these at format/restore time.
type Desc struct {
	Offset uint32
	Length uint32
}

var ErrOutOfRange = errors.New("flash: access out of device range")

// Device is the consumed driver interface.
type Device interface {
	// ReadAt fills buf from device offset off.
	ReadAt(buf []byte, off uint32) error

	// WriteAt programs data at device offset off. Programming can
	// only clear bits; writing over non-erased content produces
	// the bitwise AND on devices that model NOR behavior.
	WriteAt(data []byte, off uint32) error

	// Erase fills [off, off+length) with 0xff.
	Erase(off, length uint32) error

	// Size returns the device capacity in bytes.
	Size() uint32

	// Close the device.
	Close()
}

func checkRange(devSize, off uint32, length int) error {
	if uint64(off)+uint64(length) > uint64(devSize) {
		return ErrOutOfRange
	}
	return nil
}
