/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Tue Apr 10 10:41:08 2018 mstenber
 * Last modified: Wed May  9 10:19:46 2018 mstenber
 * Edit time:     36 min
 *
 */

package factory

import (
	"sort"

	"github.com/fingon/go-flashfs/codec"
	"github.com/fingon/go-flashfs/flash"
	"github.com/fingon/go-flashfs/flash/badger"
	"github.com/fingon/go-flashfs/flash/bolt"
	"github.com/fingon/go-flashfs/flash/file"
	"github.com/fingon/go-flashfs/mlog"
)

type factoryCallback func(config flash.Config) (flash.Device, error)

var deviceFactories = map[string]factoryCallback{
	"inmemory": func(config flash.Config) (flash.Device, error) {
		return flash.NewMemDevice(config.Size), nil
	},
	"file": func(config flash.Config) (flash.Device, error) {
		return file.NewFileDevice(config)
	},
	"bolt": func(config flash.Config) (flash.Device, error) {
		return bolt.NewBoltDevice(config)
	},
	"badger": func(config flash.Config) (flash.Device, error) {
		return badger.NewBadgerDevice(config)
	}}

func List() []string {
	keys := make([]string, 0, len(deviceFactories))
	for k := range deviceFactories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func New(name, dir string, size uint32) (flash.Device, error) {
	var config flash.Config
	config.Directory = dir
	config.Size = size
	return NewWithConfig(name, config)
}

func NewWithConfig(name string, config flash.Config) (flash.Device, error) {
	mlog.Printf2("flash/factory/factory", "f.NewWithConfig %v %v", name, config)
	return deviceFactories[name](config)
}

type CryptoDeviceConfiguration struct {
	flash.Config
	BackendName    string
	Password, Salt string
	Iterations     int
}

// NewCryptoDevice creates a device whose persisted sectors are
// compressed, and also encrypted when a password is given. Only the
// sector-based backends (bolt, badger) apply the codec; the inmemory
// and file backends ignore it and store raw bytes.
func NewCryptoDevice(config CryptoDeviceConfiguration) (flash.Device, error) {
	mlog.Printf2("flash/factory/factory", "f.NewCryptoDevice")
	iterations := config.Iterations
	if iterations == 0 {
		iterations = 12345
	}
	salt := config.Salt
	if salt == "" {
		salt = "asdf"
	}
	devconfig := config.Config
	c := &codec.CodecChain{}
	if config.Password != "" {
		mlog.Printf2("flash/factory/factory", " with encryption + compression")
		c1 := codec.EncryptingCodec{}.Init([]byte(config.Password), []byte(salt), iterations)
		c2 := &codec.CompressingCodec{}
		c = c.Init(c1, c2)
	} else {
		mlog.Printf2("flash/factory/factory", " only compression")
		c2 := &codec.CompressingCodec{}
		c = c.Init(c2)
	}
	devconfig.Codec = c
	return NewWithConfig(config.BackendName, devconfig)
}
