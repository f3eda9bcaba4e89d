/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Mon Apr  9 11:21:09 2018 mstenber
 * Last modified: Mon Apr  9 11:39:55 2018 mstenber
 * Edit time:     14 min
 *
 */

package codec

import (
	"bytes"
	"testing"

	"github.com/stvp/assert"
)

func ProdCodec(t *testing.T, c Codec) {
	ad := []byte("ad")
	for _, data := range [][]byte{
		[]byte("foo"),
		{},
		bytes.Repeat([]byte("pattern"), 1000),
	} {
		enc, err := c.EncodeBytes(data, ad)
		assert.Nil(t, err)
		dec, err := c.DecodeBytes(enc, ad)
		assert.Nil(t, err)
		assert.Equal(t, string(dec), string(data))
	}
}

func TestCompressingCodec(t *testing.T) {
	t.Parallel()
	ProdCodec(t, &CompressingCodec{})
}

func TestEncryptingCodec(t *testing.T) {
	t.Parallel()
	c := EncryptingCodec{}.Init([]byte("password"), []byte("salt"), 123)
	ProdCodec(t, c)

	// Tampered additionalData must not decode
	enc, err := c.EncodeBytes([]byte("data"), []byte("ad1"))
	assert.Nil(t, err)
	_, err = c.DecodeBytes(enc, []byte("ad2"))
	assert.True(t, err != nil)
}

func TestCodecChain(t *testing.T) {
	t.Parallel()
	c1 := EncryptingCodec{}.Init([]byte("password"), []byte("salt"), 123)
	c2 := &CompressingCodec{}
	c := CodecChain{}.Init(c1, c2)
	ProdCodec(t, c)

	// Compressible content should stay compressed under the chain
	data := bytes.Repeat([]byte("pattern"), 1000)
	enc, err := c.EncodeBytes(data, nil)
	assert.Nil(t, err)
	assert.True(t, len(enc) < len(data))
}
