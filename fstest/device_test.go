/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Mon Apr 23 09:31:55 2018 mstenber
 * Last modified: Fri May 18 15:10:02 2018 mstenber
 * Edit time:     42 min
 *
 */

package fstest

import (
	"bytes"
	"testing"

	"github.com/fingon/go-flashfs/flash"
	"github.com/fingon/go-flashfs/flash/factory"
	"github.com/stretchr/testify/require"
)

const deviceSize = 64 * 1024

// ProdDevice exercises NOR flash semantics of a blank device: erased
// state reads 0xff, programming only clears bits, erase brings bits
// back, and out-of-range access errors.
func ProdDevice(t *testing.T, dev flash.Device) {
	r := require.New(t)
	r.Equal(uint32(deviceSize), dev.Size())

	buf := make([]byte, 16)
	r.NoError(dev.Erase(0, 4096))
	r.NoError(dev.ReadAt(buf, 0))
	r.Equal(bytes.Repeat([]byte{0xff}, 16), buf)

	r.NoError(dev.WriteAt([]byte{0xf0, 0x0f}, 8))
	r.NoError(dev.ReadAt(buf[:2], 8))
	r.Equal([]byte{0xf0, 0x0f}, buf[:2])

	// programming can only clear bits
	r.NoError(dev.WriteAt([]byte{0x0f, 0xff}, 8))
	r.NoError(dev.ReadAt(buf[:2], 8))
	r.Equal([]byte{0x00, 0x0f}, buf[:2])

	// erase brings them back
	r.NoError(dev.Erase(0, 4096))
	r.NoError(dev.ReadAt(buf[:2], 8))
	r.Equal([]byte{0xff, 0xff}, buf[:2])

	// spanning the persistence sector boundary works
	span := bytes.Repeat([]byte{0xa5}, 1000)
	r.NoError(dev.WriteAt(span, 3700))
	got := make([]byte, 1000)
	r.NoError(dev.ReadAt(got, 3700))
	r.Equal(span, got)

	r.Error(dev.ReadAt(buf, deviceSize-8))
	r.Error(dev.WriteAt(buf, deviceSize-8))
	r.Error(dev.Erase(deviceSize-8, 16))
}

func TestMemDevice(t *testing.T) {
	t.Parallel()
	ProdDevice(t, flash.NewMemDevice(deviceSize))
}

func TestFactoryDevices(t *testing.T) {
	for _, name := range factory.List() {
		name := name
		t.Run(name, func(t *testing.T) {
			dev, err := factory.New(name, t.TempDir(), deviceSize)
			require.NoError(t, err)
			defer dev.Close()
			ProdDevice(t, dev)
		})
	}
}

func TestCryptoDevice(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	conf := factory.CryptoDeviceConfiguration{
		Config:      flash.Config{Directory: dir, Size: deviceSize},
		BackendName: "bolt",
		Password:    "siikret",
		Salt:        "salt",
		Iterations:  123,
	}
	dev, err := factory.NewCryptoDevice(conf)
	require.NoError(t, err)
	ProdDevice(t, dev)

	// content survives reopen with the same key
	require.NoError(t, dev.WriteAt([]byte("persist"), 100))
	dev.Close()
	dev, err = factory.NewCryptoDevice(conf)
	require.NoError(t, err)
	defer dev.Close()
	buf := make([]byte, 7)
	require.NoError(t, dev.ReadAt(buf, 100))
	require.Equal(t, []byte("persist"), buf)
}
