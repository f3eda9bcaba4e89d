/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2018 Markus Stenberg
 *
 * Created:       Mon Apr  9 10:52:18 2018 mstenber
 * Last modified: Mon Apr  9 10:58:40 2018 mstenber
 * Edit time:     7 min
 *
 */

package pool

import (
	"testing"

	"github.com/stvp/assert"
)

func TestPool(t *testing.T) {
	t.Parallel()
	p := New(2, func() interface{} { return new(int) })
	assert.Equal(t, p.Available(), 2)
	o1 := p.Alloc()
	o2 := p.Alloc()
	assert.True(t, o1 != nil)
	assert.True(t, o2 != nil)
	assert.Nil(t, p.Alloc())
	p.Free(o1)
	assert.Equal(t, p.Available(), 1)
	o3 := p.Alloc()
	assert.True(t, o3 == o1)
	assert.Nil(t, p.Alloc())
}
