/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Mon Apr 23 10:18:40 2018 mstenber
 * Last modified: Fri May 18 15:32:19 2018 mstenber
 * Edit time:     58 min
 *
 */

package fstest

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/fingon/go-flashfs/ffs"
	"github.com/fingon/go-flashfs/flash"
	"github.com/fingon/go-flashfs/flash/factory"
	"github.com/stvp/assert"
)

const areaSize = 8192
const areaCount = 4

func fsDescs() []flash.Desc {
	descs := make([]flash.Desc, areaCount)
	for i := range descs {
		descs[i] = flash.Desc{Offset: uint32(i) * areaSize, Length: areaSize}
	}
	return descs
}

// ProdFFS exercises a freshly formatted filesystem, trying to go for
// as high coverage as possible, ending with a restore cycle on the
// same device.
func ProdFFS(t *testing.T, fs *ffs.FFS, remount func() *ffs.FFS) {
	infos, err := fs.ReadDir("/")
	assert.Nil(t, err)
	assert.Equal(t, len(infos), 0)

	assert.Nil(t, fs.Mkdir("/etc"))
	assert.Nil(t, fs.Mkdir("/var"))
	assert.Nil(t, fs.Mkdir("/var/log"))

	write := func(path string, data []byte) {
		f, err := fs.Open(path, ffs.AccessCreate|ffs.AccessWrite)
		assert.Nil(t, err)
		assert.Nil(t, f.Write(data))
		assert.Nil(t, f.Close())
	}
	read := func(fs *ffs.FFS, path string, n int) []byte {
		f, err := fs.Open(path, ffs.AccessRead)
		assert.Nil(t, err)
		buf := make([]byte, n)
		got, err := f.Read(buf)
		assert.Nil(t, err)
		assert.Nil(t, f.Close())
		return buf[:got]
	}

	conf := bytes.Repeat([]byte("config\n"), 100)
	write("/etc/conf", conf)
	write("/var/log/messages", []byte("boot ok\n"))

	assert.Equal(t, string(read(fs, "/etc/conf", len(conf))), string(conf))

	assert.Nil(t, fs.Rename("/etc/conf", "/var/conf"))
	_, err = fs.Open("/etc/conf", ffs.AccessRead)
	assert.Equal(t, err, ffs.ENOENT)

	info, err := fs.Stat("/var/conf")
	assert.Nil(t, err)
	assert.Equal(t, info.Size, uint32(len(conf)))
	assert.True(t, !info.Dir)

	assert.Nil(t, fs.Unlink("/var/log/messages"))
	assert.Nil(t, fs.Unlink("/var/log"))

	// churn enough to force garbage collection
	blob := bytes.Repeat([]byte{0xee}, 2000)
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("/blob%d", i%3)
		f, err := fs.Open(name, ffs.AccessCreate|ffs.AccessWrite|ffs.AccessTruncate)
		assert.Nil(t, err)
		assert.Nil(t, f.Write(blob))
		assert.Nil(t, f.Close())
	}
	assert.Equal(t, string(read(fs, "/blob0", len(blob))), string(blob))

	// everything above survives a remount
	fs2 := remount()
	assert.Equal(t, string(read(fs2, "/var/conf", len(conf))), string(conf))
	assert.Equal(t, string(read(fs2, "/blob2", len(blob))), string(blob))
	_, err = fs2.Open("/var/log", ffs.AccessRead)
	assert.Equal(t, err, ffs.ENOENT)
	infos, err = fs2.ReadDir("/var")
	assert.Nil(t, err)
	assert.Equal(t, len(infos), 1)
	assert.Equal(t, infos[0].Name, "conf")
}

func prodOverDevice(t *testing.T, dev flash.Device) {
	descs := fsDescs()
	fs := ffs.FFS{Dev: dev}.Init()
	assert.Nil(t, fs.Format(descs))
	ProdFFS(t, fs, func() *ffs.FFS {
		fs2 := ffs.FFS{Dev: dev}.Init()
		assert.Nil(t, fs2.Restore(descs))
		return fs2
	})
}

func TestFFSInMemory(t *testing.T) {
	t.Parallel()
	prodOverDevice(t, flash.NewMemDevice(areaCount*areaSize))
}

func TestFFSBackends(t *testing.T) {
	for _, name := range factory.List() {
		name := name
		t.Run(name, func(t *testing.T) {
			dev, err := factory.New(name, t.TempDir(), areaCount*areaSize)
			assert.Nil(t, err)
			defer dev.Close()
			prodOverDevice(t, dev)
		})
	}
}

// A restore must see the bits the previous process wrote, also when
// the sectors go through compression + encryption on their way to
// stable storage.
func TestFFSCryptoReopen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	conf := factory.CryptoDeviceConfiguration{
		Config:      flash.Config{Directory: dir, Size: areaCount * areaSize},
		BackendName: "bolt",
		Password:    "siikret",
		Salt:        "salt",
		Iterations:  123,
	}
	descs := fsDescs()

	dev, err := factory.NewCryptoDevice(conf)
	assert.Nil(t, err)
	fs := ffs.FFS{Dev: dev}.Init()
	assert.Nil(t, fs.Format(descs))
	f, err := fs.Open("/secret", ffs.AccessCreate|ffs.AccessWrite)
	assert.Nil(t, err)
	assert.Nil(t, f.Write([]byte("hunter2")))
	assert.Nil(t, f.Close())
	fs.Close()

	dev, err = factory.NewCryptoDevice(conf)
	assert.Nil(t, err)
	fs = ffs.FFS{Dev: dev}.Init()
	assert.Nil(t, fs.Restore(descs))
	f, err = fs.Open("/secret", ffs.AccessRead)
	assert.Nil(t, err)
	buf := make([]byte, 16)
	n, err := f.Read(buf)
	assert.Nil(t, err)
	assert.Equal(t, string(buf[:n]), "hunter2")
	assert.Nil(t, f.Close())
	fs.Close()
}
