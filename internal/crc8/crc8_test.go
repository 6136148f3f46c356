package crc8

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// bitwise is the unrolled shift register the tables must agree with.
func bitwise(poly byte, data []byte) byte {
	var crc byte
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func TestMakeTable_KnownEntries(t *testing.T) {
	tests := []struct {
		name  string
		table *Table
		index int
		want  byte
	}{
		{"maus[1]", MausTable, 0x01, 0x31},
		{"maus[2]", MausTable, 0x02, 0x62},
		{"maus[16]", MausTable, 0x10, 0x43},
		{"maus[255]", MausTable, 0xFF, 0xAC},
		{"ld19[1]", LD19Table, 0x01, 0x4D},
		{"ld19[16]", LD19Table, 0x10, 0xA9},
		{"ld19[128]", LD19Table, 0x80, 0x7C},
		{"ld19[255]", LD19Table, 0xFF, 0xA8},
		{"kiss[1]", KISSTable, 0x01, 0x07},
		{"kiss[255]", KISSTable, 0xFF, 0xF3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.table[tt.index])
		})
	}
}

func TestChecksum_CheckValues(t *testing.T) {
	check := []byte("123456789")

	// CRC-8/SMBUS catalogue check value.
	assert.Equal(t, byte(0xF4), Checksum(check, KISSTable))

	for _, poly := range []byte{Maus, LD19, KISS} {
		tab := MakeTable(poly)
		assert.Equal(t, bitwise(poly, check), Checksum(check, tab), "poly 0x%02x", poly)
	}
}

func TestChecksum_Empty(t *testing.T) {
	assert.Equal(t, byte(0), Checksum(nil, MausTable))
	assert.Equal(t, byte(0), Checksum([]byte{}, LD19Table))
}

func TestUpdate_Incremental(t *testing.T) {
	data := []byte{0x54, 0x2C, 0x10, 0x0E, 0x98, 0x3A, 0x00, 0x01, 0xFF}
	whole := Checksum(data, LD19Table)

	crc := Update(0, LD19Table, data[:4])
	crc = Update(crc, LD19Table, data[4:])
	assert.Equal(t, whole, crc)
}

func TestChecksum_SingleBitSensitivity(t *testing.T) {
	payload := []byte{0x02, 0xDC, 0x05, 0xDC, 0x05}
	want := Checksum(payload, MausTable)
	for i := range payload {
		for bit := 0; bit < 8; bit++ {
			flipped := append([]byte(nil), payload...)
			flipped[i] ^= 1 << bit
			assert.NotEqual(t, want, Checksum(flipped, MausTable), "byte %d bit %d", i, bit)
		}
	}
}
