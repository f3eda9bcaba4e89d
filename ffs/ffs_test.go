/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Fri Apr 20 09:12:02 2018 mstenber
 * Last modified: Fri May 18 14:22:37 2018 mstenber
 * Edit time:     201 min
 *
 */

package ffs

import (
	"bytes"
	"fmt"
	"sort"
	"testing"

	"github.com/fingon/go-flashfs/flash"
	"github.com/stvp/assert"
)

func makeDescs(n int, size uint32) []flash.Desc {
	descs := make([]flash.Desc, n)
	for i := range descs {
		descs[i] = flash.Desc{Offset: uint32(i) * size, Length: size}
	}
	return descs
}

func newTestFFS(t *testing.T, n int, size uint32) (*FFS, []flash.Desc, *flash.MemDevice) {
	dev := flash.NewMemDevice(uint32(n) * size)
	fs := FFS{Dev: dev}.Init()
	descs := makeDescs(n, size)
	assert.Nil(t, fs.Format(descs))
	return fs, descs, dev
}

func writeFile(t *testing.T, fs *FFS, path string, data []byte) {
	f, err := fs.Open(path, AccessCreate|AccessWrite)
	assert.Nil(t, err)
	assert.Nil(t, f.Write(data))
	assert.Nil(t, f.Close())
}

func readFile(t *testing.T, fs *FFS, path string, n int) []byte {
	f, err := fs.Open(path, AccessRead)
	assert.Nil(t, err)
	buf := make([]byte, n)
	got, err := f.Read(buf)
	assert.Nil(t, err)
	assert.Nil(t, f.Close())
	return buf[:got]
}

// collectTree flattens the filesystem to path -> content ("/" for
// directories) for state comparisons.
func collectTree(t *testing.T, fs *FFS) map[string]string {
	tree := map[string]string{}
	var walk func(path string)
	walk = func(path string) {
		infos, err := fs.ReadDir(path)
		assert.Nil(t, err)
		for _, info := range infos {
			child := path + info.Name
			if info.Dir {
				tree[child] = "/"
				walk(child + "/")
			} else {
				tree[child] = string(readFile(t, fs, child, int(info.Size)))
			}
		}
	}
	walk("/")
	return tree
}

func assertTreeEqual(t *testing.T, a, b map[string]string) {
	assert.Equal(t, len(a), len(b))
	for k, v := range a {
		assert.Equal(t, b[k], v)
	}
}

func TestBasicReadWrite(t *testing.T) {
	t.Parallel()
	fs, _, _ := newTestFFS(t, 2, 4096)
	writeFile(t, fs, "/a", []byte("hello"))
	assert.Equal(t, string(readFile(t, fs, "/a", 5)), "hello")

	// read from a mid-file offset via seek
	f, err := fs.Open("/a", AccessRead)
	assert.Nil(t, err)
	assert.Nil(t, f.Seek(3))
	buf := make([]byte, 10)
	n, err := f.Read(buf)
	assert.Nil(t, err)
	assert.Equal(t, string(buf[:n]), "lo")
	assert.Nil(t, f.Close())
}

func TestMultiBlockRestore(t *testing.T) {
	t.Parallel()
	fs, descs, dev := newTestFFS(t, 2, 4096)
	assert.Nil(t, fs.Mkdir("/d"))
	data := bytes.Repeat([]byte{0xAA}, 600)
	writeFile(t, fs, "/d/f", data)

	// spans at least two blocks
	ino, err := fs.pathFindInode("/d/f")
	assert.Nil(t, err)
	nblocks := 0
	for b := ino.blockList; b != nil; b = b.next {
		nblocks++
	}
	assert.True(t, nblocks >= 2)

	fs2 := FFS{Dev: dev}.Init()
	assert.Nil(t, fs2.Restore(descs))
	assert.Equal(t, string(readFile(t, fs2, "/d/f", 600)), string(data))
}

func TestUnlink(t *testing.T) {
	t.Parallel()
	fs, descs, dev := newTestFFS(t, 2, 4096)
	writeFile(t, fs, "/a", []byte("data"))
	assert.Nil(t, fs.Unlink("/a"))
	_, err := fs.Open("/a", AccessRead)
	assert.Equal(t, err, ENOENT)

	// still gone after restore
	fs2 := FFS{Dev: dev}.Init()
	assert.Nil(t, fs2.Restore(descs))
	_, err = fs2.Open("/a", AccessRead)
	assert.Equal(t, err, ENOENT)

	// root and non-empty directories are not unlinkable
	assert.Equal(t, fs.Unlink("/"), EACCES)
	assert.Nil(t, fs.Mkdir("/d"))
	writeFile(t, fs, "/d/f", []byte("x"))
	assert.Equal(t, fs.Unlink("/d"), ENOTEMPTY)
	assert.Nil(t, fs.Unlink("/d/f"))
	assert.Nil(t, fs.Unlink("/d"))
}

func TestRenameSupersede(t *testing.T) {
	t.Parallel()
	fs, descs, dev := newTestFFS(t, 2, 4096)
	writeFile(t, fs, "/a", []byte("new content"))
	writeFile(t, fs, "/b", []byte("old content"))
	assert.Nil(t, fs.Rename("/a", "/b"))
	_, err := fs.Open("/a", AccessRead)
	assert.Equal(t, err, ENOENT)
	assert.Equal(t, string(readFile(t, fs, "/b", 11)), "new content")

	fs2 := FFS{Dev: dev}.Init()
	assert.Nil(t, fs2.Restore(descs))
	_, err = fs2.Open("/a", AccessRead)
	assert.Equal(t, err, ENOENT)
	assert.Equal(t, string(readFile(t, fs2, "/b", 11)), "new content")
}

func TestRenameAcrossDirs(t *testing.T) {
	t.Parallel()
	fs, _, _ := newTestFFS(t, 2, 4096)
	assert.Nil(t, fs.Mkdir("/d"))
	writeFile(t, fs, "/a", []byte("data"))
	assert.Nil(t, fs.Rename("/a", "/d/b"))
	assert.Equal(t, string(readFile(t, fs, "/d/b", 4)), "data")
	assert.Equal(t, fs.Rename("/d/b", "/nodir/x"), ENOENT)
}

func TestOverwriteMidFile(t *testing.T) {
	t.Parallel()
	fs, descs, dev := newTestFFS(t, 4, 4096)
	data := make([]byte, 2000)
	for i := range data {
		data[i] = byte(i)
	}
	writeFile(t, fs, "/x", data)

	f, err := fs.Open("/x", AccessWrite)
	assert.Nil(t, err)
	assert.Nil(t, f.Seek(500))
	assert.Nil(t, f.Write(bytes.Repeat([]byte{0x55}, 10)))
	assert.Nil(t, f.Close())

	copy(data[500:510], bytes.Repeat([]byte{0x55}, 10))
	assert.Equal(t, string(readFile(t, fs, "/x", 2000)), string(data))

	fs2 := FFS{Dev: dev}.Init()
	assert.Nil(t, fs2.Restore(descs))
	assert.Equal(t, string(readFile(t, fs2, "/x", 2000)), string(data))
}

func TestGCMakesRoom(t *testing.T) {
	t.Parallel()
	fs, _, _ := newTestFFS(t, 3, 4096)

	// fill the live areas to capacity with distinct files
	content := bytes.Repeat([]byte{0x42}, 400)
	var names []string
	for i := 0; fs.areas[0].freeSpace() > 500 || fs.areas[1].freeSpace() > 500; i++ {
		name := fmt.Sprintf("/f%02d", i)
		writeFile(t, fs, name, content)
		names = append(names, name)
	}
	assert.True(t, len(names) >= 4)

	// unlink half
	for i, name := range names {
		if i%2 == 0 {
			assert.Nil(t, fs.Unlink(name))
		}
	}

	// a write larger than any area's contiguous free space
	// succeeds via GC
	big := bytes.Repeat([]byte{0x17}, 2500)
	writeFile(t, fs, "/big", big)
	assert.Equal(t, string(readFile(t, fs, "/big", 2500)), string(big))

	// survivors are intact after relocation
	for i, name := range names {
		if i%2 == 1 {
			assert.Equal(t, string(readFile(t, fs, name, 400)), string(content))
		}
	}
}

func TestEFull(t *testing.T) {
	t.Parallel()
	fs, _, _ := newTestFFS(t, 2, 2048)
	f, err := fs.Open("/hog", AccessCreate|AccessWrite)
	assert.Nil(t, err)
	chunk := bytes.Repeat([]byte{1}, 256)
	for {
		err = f.Write(chunk)
		if err != nil {
			break
		}
	}
	assert.Equal(t, err, EFULL)
	assert.Nil(t, f.Close())
}

func TestCorruptRecordIgnored(t *testing.T) {
	t.Parallel()
	fs, descs, dev := newTestFFS(t, 2, 4096)
	assert.Nil(t, fs.Mkdir("/d"))
	writeFile(t, fs, "/d/f", bytes.Repeat([]byte{0xAA}, 600))

	// smash the magic of /d/f's inode record; clearing bits is
	// all real flash could do anyway
	ino, err := fs.pathFindInode("/d/f")
	assert.Nil(t, err)
	a := fs.findArea(ino.areaID)
	img := dev.Snapshot()
	for i := uint32(0); i < 4; i++ {
		img[a.offset+ino.offset+i] = 0
	}
	dev2 := flash.NewMemDeviceFromBytes(img)

	fs2 := FFS{Dev: dev2}.Init()
	assert.Nil(t, fs2.Restore(descs))
	_, err = fs2.Open("/d/f", AccessRead)
	assert.Equal(t, err, ENOENT)
	// the directory before the corrupt record is intact
	_, err = fs2.ReadDir("/d")
	assert.Nil(t, err)
}

func TestPowerCutBeforeWrite(t *testing.T) {
	t.Parallel()
	fs, descs, dev := newTestFFS(t, 2, 4096)
	assert.Nil(t, fs.Mkdir("/d"))
	writeFile(t, fs, "/d/a", []byte("stable"))
	before := collectTree(t, fs)

	// power cut with nothing durable: mount the prior image
	img := dev.Snapshot()
	writeFile(t, fs, "/d/b", []byte("lost"))

	fs2 := FFS{Dev: flash.NewMemDeviceFromBytes(img)}.Init()
	assert.Nil(t, fs2.Restore(descs))
	assertTreeEqual(t, before, collectTree(t, fs2))
}

func collectIndex(fs *FFS) []string {
	var entries []string
	fs.hash.foreach(func(o object) {
		b := o.base()
		kind := "inode"
		if _, ok := o.(*block); ok {
			kind = "block"
		}
		entries = append(entries, fmt.Sprintf("%s:%v:%v:%v:%v", kind, b.id, b.seq, b.areaID, b.offset))
	})
	sort.Strings(entries)
	return entries
}

func TestRestoreIdempotent(t *testing.T) {
	t.Parallel()
	fs, descs, dev := newTestFFS(t, 2, 4096)
	assert.Nil(t, fs.Mkdir("/d"))
	writeFile(t, fs, "/d/f", bytes.Repeat([]byte{7}, 700))
	writeFile(t, fs, "/g", []byte("gg"))
	assert.Nil(t, fs.Unlink("/g"))

	fs2 := FFS{Dev: dev}.Init()
	assert.Nil(t, fs2.Restore(descs))
	first := collectIndex(fs2)

	fs3 := FFS{Dev: dev}.Init()
	assert.Nil(t, fs3.Restore(descs))
	assert.Equal(t, collectIndex(fs3), first)
}

// invariants: parent chains terminate at root, cached lengths match
// block sums, one index entry per id
func checkInvariants(t *testing.T, fs *FFS) {
	seen := map[uint32]bool{}
	fs.hash.foreach(func(o object) {
		b := o.base()
		assert.True(t, !seen[b.id])
		seen[b.id] = true
		if ino, ok := o.(*inode); ok && !ino.isDeleted() {
			hops := 0
			for cur := ino; cur != fs.root; cur = cur.parent {
				assert.True(t, cur != nil)
				hops++
				assert.True(t, hops <= fs.MaxInodes)
			}
			if !ino.isDir() {
				assert.Equal(t, ino.dataLen, ino.calcDataLength())
			}
		}
	})
}

func TestInvariants(t *testing.T) {
	t.Parallel()
	fs, descs, dev := newTestFFS(t, 3, 4096)
	assert.Nil(t, fs.Mkdir("/d"))
	assert.Nil(t, fs.Mkdir("/d/e"))
	writeFile(t, fs, "/d/e/f", bytes.Repeat([]byte{3}, 1500))
	writeFile(t, fs, "/top", []byte("top"))
	assert.Nil(t, fs.Rename("/top", "/d/top"))
	checkInvariants(t, fs)

	fs2 := FFS{Dev: dev}.Init()
	assert.Nil(t, fs2.Restore(descs))
	checkInvariants(t, fs2)
	assertTreeEqual(t, collectTree(t, fs), collectTree(t, fs2))
}

func TestDeleteWhileOpen(t *testing.T) {
	t.Parallel()
	fs, _, _ := newTestFFS(t, 2, 4096)
	writeFile(t, fs, "/a", []byte("still here"))
	f, err := fs.Open("/a", AccessRead)
	assert.Nil(t, err)
	assert.Nil(t, fs.Unlink("/a"))

	// the open handle still reads the data
	buf := make([]byte, 10)
	n, err := f.Read(buf)
	assert.Nil(t, err)
	assert.Equal(t, string(buf[:n]), "still here")
	assert.Nil(t, f.Close())

	_, err = fs.Open("/a", AccessRead)
	assert.Equal(t, err, ENOENT)
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	fs, descs, dev := newTestFFS(t, 3, 4096)
	writeFile(t, fs, "/a", bytes.Repeat([]byte{9}, 1000))
	f, err := fs.Open("/a", AccessWrite|AccessTruncate)
	assert.Nil(t, err)
	assert.Nil(t, f.Write([]byte("tiny")))
	assert.Nil(t, f.Close())
	assert.Equal(t, string(readFile(t, fs, "/a", 100)), "tiny")

	// the old content must not resurrect
	fs2 := FFS{Dev: dev}.Init()
	assert.Nil(t, fs2.Restore(descs))
	assert.Equal(t, string(readFile(t, fs2, "/a", 100)), "tiny")
}

func TestAppend(t *testing.T) {
	t.Parallel()
	fs, _, _ := newTestFFS(t, 2, 4096)
	writeFile(t, fs, "/log", []byte("one "))
	f, err := fs.Open("/log", AccessWrite|AccessAppend)
	assert.Nil(t, err)
	assert.Nil(t, f.Write([]byte("two")))
	assert.Nil(t, f.Close())
	assert.Equal(t, string(readFile(t, fs, "/log", 100)), "one two")
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()
	fs, _, _ := newTestFFS(t, 2, 4096)
	_, err := fs.Open("/a", 0)
	assert.Equal(t, err, EINVAL)
	_, err = fs.Open("/a", AccessRead|AccessCreate)
	assert.Equal(t, err, EINVAL)
	_, err = fs.Open("/missing", AccessRead)
	assert.Equal(t, err, ENOENT)
	_, err = fs.Open("/no/such/parent", AccessCreate|AccessWrite)
	assert.Equal(t, err, ENOENT)
	_, err = fs.Open("relative", AccessRead)
	assert.Equal(t, err, EINVAL)
	assert.Nil(t, fs.Mkdir("/d"))
	_, err = fs.Open("/d", AccessRead)
	assert.Equal(t, err, EINVAL)

	// names are bounded
	_, err = fs.Open("/aaaaaaaaaaaaaaaaa", AccessCreate|AccessWrite)
	assert.Equal(t, err, EINVAL)
	// exactly 16 bytes is accepted
	writeFile(t, fs, "/aaaaaaaaaaaaaaaa", []byte("x"))
}

func TestMkdirErrors(t *testing.T) {
	t.Parallel()
	fs, _, _ := newTestFFS(t, 2, 4096)
	assert.Nil(t, fs.Mkdir("/d"))
	assert.Equal(t, fs.Mkdir("/d"), EEXIST)
	assert.Equal(t, fs.Mkdir("/no/deep"), ENOENT)
	assert.Equal(t, fs.Mkdir("/"), EEXIST)
}

func TestReadDirOrdered(t *testing.T) {
	t.Parallel()
	fs, _, _ := newTestFFS(t, 2, 4096)
	for _, name := range []string{"/c", "/a", "/bb", "/b"} {
		writeFile(t, fs, name, []byte("x"))
	}
	infos, err := fs.ReadDir("/")
	assert.Nil(t, err)
	var names []string
	for _, info := range infos {
		names = append(names, info.Name)
	}
	assert.Equal(t, names, []string{"a", "b", "bb", "c"})
}
