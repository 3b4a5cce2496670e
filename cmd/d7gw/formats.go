// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tve/dash7/varint"
)

// Payload formats are identified by the first byte of a frame's payload.
const (
	FormatNumbers = 1  // plain list of varints
	FormatGPSNav  = 10 // GPS navigation
)

var fmtRegistry = map[byte]format{
	FormatNumbers: {"numbers", decodeNumbers},
	FormatGPSNav:  {"gpsNav", decodeGPSNav},
}

type format struct {
	name   string
	decode func([]byte) (any, error)
}

// Numbers is a payload that is just a list of values.
type Numbers []int

func (n Numbers) String() string {
	s := make([]string, len(n))
	for i, v := range n {
		s[i] = strconv.Itoa(v)
	}
	return strings.Join(s, ", ")
}

// GPSNav is a decoded GPS navigation message.
type GPSNav struct {
	Time   time.Time `json:"time"`
	Valid  bool      `json:"valid"`  // A/V flag of the receiver
	Lat    float64   `json:"lat"`    // degrees
	Lon    float64   `json:"lon"`    // degrees
	Speed  float64   `json:"speed"`  // knots
	Course float64   `json:"course"` // degrees
	MagVar float64   `json:"magvar"` // magnetic variation in degrees
}

func (g GPSNav) String() string {
	status := "WARN"
	if g.Valid {
		status = "OK"
	}
	return fmt.Sprintf("%s %s <%.6f %.6f> %.4fkts %.1f° mag%.1f°",
		g.Time.Format("2006-01-02 15:04:05.000"), status, g.Lat, g.Lon, g.Speed, g.Course, g.MagVar)
}

// decodePayload decodes a payload according to its format byte. Unknown formats decode to
// nothing and are published raw.
func decodePayload(payload []byte) (string, any, error) {
	if len(payload) == 0 {
		return "", nil, nil
	}
	f, ok := fmtRegistry[payload[0]]
	if !ok {
		return "", nil, nil
	}
	v, err := f.decode(payload[1:])
	return f.name, v, err
}

func decodeNumbers(pkt []byte) (any, error) {
	data, err := varint.Decode(pkt)
	return Numbers(data), err
}

// decodeGPSNav decodes a GPS navigation message, which is eight varints:
// 1. UTC time as HHMMSSsss
// 2. A/V "OK"/"WARN" flag
// 3/4. latitude/longitude in millionths of a degree
// 5. speed in 1/10000 knots
// 6. course in 1/10000 degrees
// 7. date as DDMMYY
// 8. magnetic variation in 1/10000 degrees
// Anything else is returned as Numbers.
func decodeGPSNav(pkt []byte) (any, error) {
	data, err := varint.Decode(pkt)
	if err != nil || len(data) != 8 {
		return Numbers(data), err
	}
	return GPSNav{
		Time:   fixGpsDateTime(data[6], data[0]),
		Valid:  data[1] == 'A',
		Lat:    float64(data[2]) / 1000000,
		Lon:    float64(data[3]) / 1000000,
		Speed:  float64(data[4]) / 10000,
		Course: float64(data[5]) / 10000,
		MagVar: float64(data[7]) / 10000,
	}, nil
}

func fixGpsDateTime(d, t int) time.Time {
	t1 := t / 1000
	return time.Date(2000+d%100, time.Month((d/100)%100), d/10000,
		t1/10000, (t1/100)%100, t1%100, (t%1000)*1000000, time.UTC)
}
