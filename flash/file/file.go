/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Tue Apr 10 09:41:02 2018 mstenber
 * Last modified: Wed May  9 10:02:55 2018 mstenber
 * Edit time:     48 min
 *
 */

package file

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/fingon/go-flashfs/flash"
	"github.com/fingon/go-flashfs/mlog"
	"github.com/pkg/errors"
)

// fileDevice stores the flash content as a raw image file. The file
// is created 0xff-filled (= fully erased) on first use. Programming
// reads back the affected range so that bit-clearing semantics match
// what the memory device does.
type fileDevice struct {
	f    *os.File
	size uint32
}

var _ flash.Device = &fileDevice{}

func NewFileDevice(config flash.Config) (flash.Device, error) {
	path := filepath.Join(config.Directory, "flash.img")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, errors.Wrap(err, "flash/file: open image")
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "flash/file: stat image")
	}
	if fi.Size() < int64(config.Size) {
		mlog.Printf2("flash/file/file", "fd.New extending image %v -> %v", fi.Size(), config.Size)
		blank := bytes.Repeat([]byte{0xff}, int(int64(config.Size)-fi.Size()))
		if _, err = f.WriteAt(blank, fi.Size()); err != nil {
			f.Close()
			return nil, errors.Wrap(err, "flash/file: extend image")
		}
	}
	return &fileDevice{f: f, size: config.Size}, nil
}

func (self *fileDevice) ReadAt(buf []byte, off uint32) error {
	if uint64(off)+uint64(len(buf)) > uint64(self.size) {
		return flash.ErrOutOfRange
	}
	_, err := self.f.ReadAt(buf, int64(off))
	return errors.Wrap(err, "flash/file: read")
}

func (self *fileDevice) WriteAt(data []byte, off uint32) error {
	if uint64(off)+uint64(len(data)) > uint64(self.size) {
		return flash.ErrOutOfRange
	}
	old := make([]byte, len(data))
	if _, err := self.f.ReadAt(old, int64(off)); err != nil {
		return errors.Wrap(err, "flash/file: read back")
	}
	for i := range old {
		old[i] &= data[i]
	}
	_, err := self.f.WriteAt(old, int64(off))
	return errors.Wrap(err, "flash/file: program")
}

func (self *fileDevice) Erase(off, length uint32) error {
	if uint64(off)+uint64(length) > uint64(self.size) {
		return flash.ErrOutOfRange
	}
	mlog.Printf2("flash/file/file", "fd.Erase %v bytes @%v", length, off)
	blank := bytes.Repeat([]byte{0xff}, int(length))
	_, err := self.f.WriteAt(blank, int64(off))
	return errors.Wrap(err, "flash/file: erase")
}

func (self *fileDevice) Size() uint32 {
	return self.size
}

func (self *fileDevice) Close() {
	self.f.Close()
}
