// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package phymac

import (
	"errors"
	"fmt"
	"io"

	"github.com/tve/dash7/isf"
)

// RecordSize is the size of a channel configuration record.
const RecordSize = 8

// Record is one entry of the channel configuration file. On disk it is
// {spectrum_id, autoscale, tx_eirp, link_qual, cs_thr, cca_thr, reserved, reserved}.
type Record struct {
	SpectrumID byte
	Autoscale  byte
	TxEIRP     byte
	LinkQual   byte
	CSThr      byte
	CCAThr     byte
}

// ParseRecord decodes a record, b must hold at least RecordSize bytes.
func ParseRecord(b []byte) Record {
	return Record{
		SpectrumID: b[0] & SpectrumMask,
		Autoscale:  b[1],
		TxEIRP:     b[2],
		LinkQual:   b[3],
		CSThr:      b[4],
		CCAThr:     b[5],
	}
}

// Bytes encodes the record.
func (r Record) Bytes() []byte {
	return []byte{r.SpectrumID & SpectrumMask, r.Autoscale, r.TxEIRP, r.LinkQual, r.CSThr, r.CCAThr, 0, 0}
}

// EncodeTable encodes records into the channel configuration file format.
func EncodeTable(recs []Record) []byte {
	buf := make([]byte, 0, len(recs)*RecordSize)
	for _, r := range recs {
		buf = append(buf, r.Bytes()...)
	}
	return buf
}

// TableSource walks a channel configuration table in order, calling fn for each record until
// fn returns false.
type TableSource interface {
	Scan(fn func(Record) bool) error
}

// StaticTable is a table held in memory.
type StaticTable []Record

// Scan implements TableSource.
func (t StaticTable) Scan(fn func(Record) bool) error {
	for _, r := range t {
		if !fn(r) {
			break
		}
	}
	return nil
}

// FileTable reads the table from the channel configuration file of a store each time it is
// scanned so provisioning changes take effect on the next lookup.
type FileTable struct {
	Store isf.Store
}

// Scan implements TableSource. A trailing partial record is ignored.
func (t FileTable) Scan(fn func(Record) bool) error {
	f, err := t.Store.Open(isf.ChannelConfig)
	if err != nil {
		return fmt.Errorf("phymac: %w", err)
	}
	defer f.Close()

	var buf [RecordSize]byte
	for off := 0; off+RecordSize <= f.Len(); off += RecordSize {
		if _, err := f.ReadAt(buf[:], int64(off)); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("phymac: reading record at %d: %w", off, err)
		}
		if !fn(ParseRecord(buf[:])) {
			break
		}
	}
	return nil
}
