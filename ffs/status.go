/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Wed Apr 11 10:09:33 2018 mstenber
 * Last modified: Wed Apr 11 10:16:27 2018 mstenber
 * Edit time:     9 min
 *
 */

package ffs

import "github.com/pkg/errors"

// Errors are returned, not raised; each entry point documents its
// error set. These are sentinel values so callers can compare
// directly.
var (
	ENOMEM    = errors.New("ffs: object pool exhausted")
	ENOENT    = errors.New("ffs: no such file or directory")
	EEXIST    = errors.New("ffs: file exists")
	EINVAL    = errors.New("ffs: invalid argument")
	EACCES    = errors.New("ffs: access denied")
	ENOTEMPTY = errors.New("ffs: directory not empty")
	ECORRUPT  = errors.New("ffs: corrupt on-flash structure")
	EFULL     = errors.New("ffs: no free space")
	EIO       = errors.New("ffs: flash i/o error")
)
