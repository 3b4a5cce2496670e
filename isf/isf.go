// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package isf gives read access to the indexed short files (ISF) of a DASH7 device.
//
// The link layer only ever reads these files, the write side belongs to whatever provisions the
// device. Files are small (tens of bytes) so implementations hold them in memory once opened.
package isf

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// ID identifies an indexed short file.
type ID byte

// Well-known file IDs.
const (
	NetworkSettings   ID = 0x00
	DeviceFeatures    ID = 0x01
	ChannelConfig     ID = 0x02
	RealTimeScheduler ID = 0x03
	SleepScan         ID = 0x04
	HoldScan          ID = 0x05
	BeaconSequence    ID = 0x06
)

// ErrNotFound is returned by Open when a file does not exist.
var ErrNotFound = errors.New("isf: file not found")

// File is an open, read-only file.
type File interface {
	io.ReaderAt
	Len() int
	Close() error
}

// Store opens files by ID.
type Store interface {
	Open(id ID) (File, error)
}

// NewFile wraps a byte slice into a File. The slice is not copied.
func NewFile(data []byte) File {
	return &memFile{r: bytes.NewReader(data), n: len(data)}
}

type memFile struct {
	r *bytes.Reader
	n int
}

func (f *memFile) ReadAt(p []byte, off int64) (int, error) { return f.r.ReadAt(p, off) }
func (f *memFile) Len() int                                { return f.n }
func (f *memFile) Close() error                            { return nil }

// Memory is a Store that keeps all files in memory. It is used in tests and as a cache in
// front of slower stores.
type Memory struct {
	mu    sync.RWMutex
	files map[ID][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{files: make(map[ID][]byte)}
}

// Put stores a copy of data as file id, replacing any previous content.
func (m *Memory) Put(id ID, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[id] = append([]byte(nil), data...)
}

// Open returns the file or ErrNotFound.
func (m *Memory) Open(id ID) (File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	return NewFile(data), nil
}
