/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Mon Apr  9 11:02:21 2018 mstenber
 * Last modified: Mon May  7 14:11:03 2018 mstenber
 * Edit time:     71 min
 *
 */

// codec library is responsible for transforming data + additionalData
// to different kind of data. This means in practise either
// encrypting/decrypting, or compressing/uncompressing on case-by-case
// basis.
//
// CodecChain makes it possible to combine multiple Codecs that do the
// particular sub-EncodeBytes/DecodeBytes steps.
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"log"

	"github.com/golang/snappy"
	"github.com/minio/sha256-simd"
	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

// Codec
//
// Single transformation of byte slices.
type Codec interface {
	DecodeBytes(data, additionalData []byte) (ret []byte, err error)
	EncodeBytes(data, additionalData []byte) (ret []byte, err error)
}

// EncryptingCodec
//
// AES GCM based encrypting/decrypting (+authenticating) Codec.
type EncryptingCodec struct {
	gcm cipher.AEAD
	// Main key
	mk []byte
}

func (self EncryptingCodec) Init(password, salt []byte, iter int) *EncryptingCodec {
	self.mk = pbkdf2.Key(password, salt, iter, 32, sha256.New)
	block, err := aes.NewCipher(self.mk)
	if err != nil {
		log.Panic(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		log.Panic(err)
	}
	self.gcm = gcm
	return &self
}

func (self *EncryptingCodec) DecodeBytes(data, additionalData []byte) (ret []byte, err error) {
	if len(data) < 1 || len(data) < 1+int(data[0]) {
		err = errors.New("codec: truncated encryption envelope")
		return
	}
	nonce := data[1 : 1+data[0]]
	ret, err = self.gcm.Open(nil, nonce, data[1+data[0]:], additionalData)
	return
}

func (self *EncryptingCodec) EncodeBytes(data, additionalData []byte) (ret []byte, err error) {
	nonce := make([]byte, self.gcm.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return
	}
	// envelope: nonce length, nonce, ciphertext
	ret = make([]byte, 0, 1+len(nonce)+len(data)+self.gcm.Overhead())
	ret = append(ret, byte(len(nonce)))
	ret = append(ret, nonce...)
	ret = self.gcm.Seal(ret, nonce, data, additionalData)
	return
}

// CompressingCodec
//
// On-the-fly compressing Codec. If the result does not improve, the
// result is marked to be plaintext and passed as-is (at cost of 1
// byte).
type CompressingCodec struct{}

const (
	compressionPlain = byte(iota)
	compressionSnappy
)

func (self *CompressingCodec) DecodeBytes(data, additionalData []byte) (ret []byte, err error) {
	if len(data) == 0 {
		err = errors.New("codec: empty compression envelope")
		return
	}
	switch data[0] {
	case compressionPlain:
		ret = data[1:]
	case compressionSnappy:
		ret, err = snappy.Decode(nil, data[1:])
	default:
		err = errors.Errorf("codec: unknown compression type %d", data[0])
	}
	return
}

func (self *CompressingCodec) EncodeBytes(data, additionalData []byte) (ret []byte, err error) {
	rd := snappy.Encode(nil, data)
	if len(rd) >= len(data) {
		ret = append([]byte{compressionPlain}, data...)
		return
	}
	ret = append([]byte{compressionSnappy}, rd...)
	return
}

type CodecChain struct {
	codecs, reverseCodecs []Codec
}

// Init method initializes the codec chain.
//
// codecs are given in decryption order, so e.g.  encrypting one
// should be given before compressing one.
func (self CodecChain) Init(codecs ...Codec) *CodecChain {
	self.codecs = codecs
	// Reverse the codec slice for encoding purposes
	rc := make([]Codec, len(codecs))
	for i, c := range codecs {
		rc[len(codecs)-i-1] = c
	}
	self.reverseCodecs = rc
	return &self
}

func (self *CodecChain) DecodeBytes(data, additionalData []byte) (ret []byte, err error) {
	ret = data
	for _, c := range self.codecs {
		ret, err = c.DecodeBytes(data, additionalData)
		if err != nil {
			return
		}
		data = ret
	}
	return
}

func (self *CodecChain) EncodeBytes(data, additionalData []byte) (ret []byte, err error) {
	ret = data
	for _, c := range self.reverseCodecs {
		ret, err = c.EncodeBytes(data, additionalData)
		if err != nil {
			return
		}
		data = ret
	}
	return
}
