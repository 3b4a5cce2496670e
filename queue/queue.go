// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package queue implements the byte queues that carry frames between the link layer and the
// frame coder.
//
// A Queue is a fixed buffer with a get cursor (next byte to read) and a put cursor (next byte
// to write). Base marks the start of the frame currently being worked on, which is what
// multi-frame packets rebase to as each frame completes.
package queue

import "errors"

// Encoding classes, Options[0].
const (
	Foreground = 0
	Background = 1
)

// Processing classes, Options[1].
const (
	Plain = 0
	FEC   = 1
)

var (
	ErrFull  = errors.New("queue: full")
	ErrEmpty = errors.New("queue: empty")
)

// Queue is a byte queue over a fixed buffer.
type Queue struct {
	Front     []byte  // backing storage
	Base      int     // start of the current frame
	Getcursor int     // next byte to read
	Putcursor int     // next byte to write
	Options   [2]byte // encoding class, processing class
}

// New allocates a queue of the given capacity.
func New(size int) *Queue {
	return &Queue{Front: make([]byte, size)}
}

// Empty resets all cursors, the options are kept.
func (q *Queue) Empty() {
	q.Base, q.Getcursor, q.Putcursor = 0, 0, 0
}

// Len returns the number of unread bytes.
func (q *Queue) Len() int { return q.Putcursor - q.Getcursor }

// Room returns the number of bytes that can still be written.
func (q *Queue) Room() int { return len(q.Front) - q.Putcursor }

// Rebase starts a new frame at offset off.
func (q *Queue) Rebase(off int) {
	q.Base = off
}

// Rewind moves the get cursor back to the start of the current frame.
func (q *Queue) Rewind() {
	q.Getcursor = q.Base
}

// WriteByte appends one byte.
func (q *Queue) WriteByte(b byte) error {
	if q.Putcursor >= len(q.Front) {
		return ErrFull
	}
	q.Front[q.Putcursor] = b
	q.Putcursor++
	return nil
}

// Write appends as much of p as fits, returning ErrFull if not all of it did.
func (q *Queue) Write(p []byte) (int, error) {
	n := copy(q.Front[q.Putcursor:], p)
	q.Putcursor += n
	if n < len(p) {
		return n, ErrFull
	}
	return n, nil
}

// ReadByte consumes one byte.
func (q *Queue) ReadByte() (byte, error) {
	if q.Getcursor >= q.Putcursor {
		return 0, ErrEmpty
	}
	b := q.Front[q.Getcursor]
	q.Getcursor++
	return b, nil
}

// Read consumes up to len(p) bytes.
func (q *Queue) Read(p []byte) (int, error) {
	if q.Len() == 0 {
		return 0, ErrEmpty
	}
	n := copy(p, q.Front[q.Getcursor:q.Putcursor])
	q.Getcursor += n
	return n, nil
}

// Frame returns the bytes written since the last rebase.
func (q *Queue) Frame() []byte {
	return q.Front[q.Base:q.Putcursor]
}

// Bytes returns all bytes written so far.
func (q *Queue) Bytes() []byte {
	return q.Front[:q.Putcursor]
}
