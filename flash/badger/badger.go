/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Tue Apr 10 10:22:17 2018 mstenber
 * Last modified: Wed May  9 10:13:09 2018 mstenber
 * Edit time:     29 min
 *
 */

package badger

import (
	"log"

	"github.com/dgraph-io/badger"

	"github.com/fingon/go-flashfs/flash"
	"github.com/fingon/go-flashfs/mlog"
	"github.com/fingon/go-flashfs/util"
)

// badgerDevice persists the flash image in badger, one value per
// sector, keyed by prefix "s" + sector index.
type badgerDevice struct {
	flash.SectorBase

	db *badger.DB
}

var _ flash.Device = &badgerDevice{}

func NewBadgerDevice(config flash.Config) (flash.Device, error) {
	self := &badgerDevice{}
	opts := badger.DefaultOptions
	opts.Dir = config.Directory
	opts.ValueDir = config.Directory
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	self.db = db
	self.SectorBase.Init(self, config.Codec, config.Size, config.SectorSize)
	return self, nil
}

func (self *badgerDevice) Close() {
	self.db.Close()
}

func (self *badgerDevice) sectorKey(i uint32) []byte {
	return append([]byte("s"), util.Uint32Bytes(i)...)
}

func (self *badgerDevice) GetSector(i uint32) (v []byte) {
	err := self.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(self.sectorKey(i))
		if err != nil {
			return err
		}
		v, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil
	}
	if err != nil {
		log.Panic("flash/badger: get: ", err)
	}
	return
}

func (self *badgerDevice) SetSector(i uint32, data []byte) {
	mlog.Printf2("flash/badger/badger", "bad.SetSector %v (%d b)", i, len(data))
	err := self.db.Update(func(txn *badger.Txn) error {
		return txn.Set(self.sectorKey(i), data)
	})
	if err != nil {
		log.Panic("flash/badger: set: ", err)
	}
}

func (self *badgerDevice) DeleteSector(i uint32) {
	err := self.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(self.sectorKey(i))
	})
	if err != nil {
		log.Panic("flash/badger: delete: ", err)
	}
}
