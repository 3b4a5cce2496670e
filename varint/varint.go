// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package varint implements the JeeLabs varint encoding used by sensor payloads.
//
// Each signed value is zig-zag mapped and written as 7-bit groups, most significant first, with
// the top bit set on the last byte of each value.
//
// Reference: http://jeelabs.org/article/1620c/
package varint

import "errors"

// ErrTruncated is returned by Decode when the buffer ends in the middle of a value.
var ErrTruncated = errors.New("varint: truncated value")

// Append appends the encoding of vals to buf.
func Append(buf []byte, vals ...int) []byte {
	for _, v := range vals {
		if v == 0 {
			buf = append(buf, 0x80)
			continue
		}
		u := uint64(v << 1)
		if v < 0 {
			u = ^u
		}
		var temp [10]byte
		i := len(temp)
		for u != 0 {
			i--
			temp[i] = byte(u & 0x7f)
			u >>= 7
		}
		temp[len(temp)-1] |= 0x80
		buf = append(buf, temp[i:]...)
	}
	return buf
}

// Encode encodes vals into a new buffer.
func Encode(vals []int) []byte { return Append([]byte{}, vals...) }

// Decode decodes all the values in buf. Values decoded before a truncated one are returned with
// ErrTruncated.
func Decode(buf []byte) ([]int, error) {
	res := []int{}
	var u uint64
	for i, b := range buf {
		u = u<<7 | uint64(b&0x7f)
		if b&0x80 == 0 {
			if i == len(buf)-1 {
				return res, ErrTruncated
			}
			continue
		}
		if u&1 == 0 {
			res = append(res, int(u>>1))
		} else {
			res = append(res, int(^(u >> 1)))
		}
		u = 0
	}
	return res, nil
}
