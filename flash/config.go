/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Tue Apr 10 09:31:24 2018 mstenber
 * Last modified: Tue Apr 10 09:35:12 2018 mstenber
 * Edit time:     4 min
 *
 */

package flash

import "github.com/fingon/go-flashfs/codec"

// Config carries what the device backends need to set themselves up.
type Config struct {
	// Directory is where persistent backends keep their state.
	Directory string

	// Size is the device capacity in bytes.
	Size uint32

	// SectorSize is the persistence granularity of KV-backed
	// devices; 0 means DefaultSectorSize.
	SectorSize uint32

	// Codec transforms sector payloads on their way to stable
	// storage (compression, encryption).
	Codec codec.Codec
}
