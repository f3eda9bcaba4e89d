/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Tue Apr 10 10:04:42 2018 mstenber
 * Last modified: Wed May  9 10:08:31 2018 mstenber
 * Edit time:     33 min
 *
 */

package bolt

import (
	"fmt"
	"log"

	bbolt "github.com/coreos/bbolt"

	"github.com/fingon/go-flashfs/flash"
	"github.com/fingon/go-flashfs/mlog"
	"github.com/fingon/go-flashfs/util"
)

var sectorKey = []byte("sector")

// boltDevice persists the flash image in bbolt, one value per
// sector. Sector payloads go through the configured codec chain.
type boltDevice struct {
	flash.SectorBase

	db *bbolt.DB
}

var _ flash.Device = &boltDevice{}

func NewBoltDevice(config flash.Config) (flash.Device, error) {
	self := &boltDevice{}
	db, err := bbolt.Open(fmt.Sprintf("%s/flash.db", config.Directory), 0600, nil)
	if err != nil {
		return nil, err
	}
	self.db = db
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sectorKey)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	self.SectorBase.Init(self, config.Codec, config.Size, config.SectorSize)
	return self, nil
}

func (self *boltDevice) Close() {
	self.db.Close()
}

func (self *boltDevice) GetSector(i uint32) (v []byte) {
	self.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(sectorKey).Get(util.Uint32Bytes(i))
		if b != nil {
			v = make([]byte, len(b))
			copy(v, b)
		}
		return nil
	})
	return
}

func (self *boltDevice) SetSector(i uint32, data []byte) {
	mlog.Printf2("flash/bolt/bolt", "bd.SetSector %v (%d b)", i, len(data))
	err := self.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sectorKey).Put(util.Uint32Bytes(i), data)
	})
	if err != nil {
		log.Panic(err)
	}
}

func (self *boltDevice) DeleteSector(i uint32) {
	err := self.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sectorKey).Delete(util.Uint32Bytes(i))
	})
	if err != nil {
		log.Panic(err)
	}
}
