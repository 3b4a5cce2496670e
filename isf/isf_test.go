// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package isf

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryOpen(t *testing.T) {
	m := NewMemory()
	_, err := m.Open(ChannelConfig)
	require.ErrorIs(t, err, ErrNotFound)

	data := []byte{1, 2, 3, 4, 5}
	m.Put(ChannelConfig, data)
	data[0] = 99 // Put must copy

	f, err := m.Open(ChannelConfig)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, 5, f.Len())

	buf := make([]byte, 3)
	n, err := f.ReadAt(buf, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{3, 4, 5}, buf)

	buf[0] = 0
	n, err = f.ReadAt(buf[:1], 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte(1), buf[0])

	_, err = f.ReadAt(buf, 4)
	assert.ErrorIs(t, err, io.EOF)
}
