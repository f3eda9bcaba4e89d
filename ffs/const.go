/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Wed Apr 11 10:01:12 2018 mstenber
 * Last modified: Thu May 10 11:22:41 2018 mstenber
 * Edit time:     23 min
 *
 */

package ffs

const (
	areaMagic0 = uint32(0xb98a31e2)
	areaMagic1 = uint32(0x7fb0428c)
	areaMagic2 = uint32(0xace08253)
	areaMagic3 = uint32(0xb185fc8e)
	inodeMagic = uint32(0x925f8bc0)
	blockMagic = uint32(0x53ba23b9)
)

const (
	// IDNone marks a missing object reference (root's parent).
	IDNone = uint32(0xffffffff)

	areaIDNone = uint16(0xffff)

	// On-disk record sizes. These are the C struct images of the
	// original format, padding included; data/filename follows the
	// fixed part.
	diskAreaSize  = 24
	diskInodeSize = 24
	diskBlockSize = 32

	// is_scratch lives in the last byte of the area header. The
	// scratch sentinel is the erased state: promoting scratch to
	// live only ever programs bits.
	areaOffsetIsScratch = 23
	areaScratchSentinel = uint8(0xff)

	// ShortFilenameLen is the longest allowed name of a single
	// path component, inclusive.
	ShortFilenameLen = 16

	// BlockSize bounds one block record on disk, header included.
	BlockSize = 512

	// BlockDataLen is the largest data payload of a single block
	// record.
	BlockDataLen = BlockSize - diskBlockSize

	// blockMaxDataSize bounds in-memory data buffers (GC copy
	// chunking).
	blockMaxDataSize = 2048

	hashSize = 256

	// MaxAreas bounds the area descriptor table.
	MaxAreas = 32

	eccPlaceholder = uint32(0xffffffff)
)

const (
	inodeFlagDeleted   = uint8(0x01)
	inodeFlagDummy     = uint8(0x02)
	inodeFlagDirectory = uint8(0x04)
	inodeFlagTest      = uint8(0x80)

	blockFlagDeleted = uint8(0x01)
)
