// Package crc8 implements table driven 8-bit cyclic redundancy checks.
//
// All variants used on the vehicle share the same shape: MSB-first, initial
// value zero, no final xor. Only the generator polynomial differs, so a
// variant is fully described by its Table.
package crc8

// Polynomials in use on the vehicle links.
const (
	// Maus is the polynomial of the board message protocol.
	Maus = 0x31
	// LD19 is the polynomial of the LD19 lidar frame trailer.
	LD19 = 0x4D
	// KISS is the polynomial of KISS ESC telemetry frames.
	KISS = 0x07
)

// Size of a CRC8 checksum in bytes.
const Size = 1

// Table is a 256-entry lookup table for a single polynomial.
type Table [256]byte

// Predefined tables, built once at init.
var (
	MausTable = MakeTable(Maus)
	LD19Table = MakeTable(LD19)
	KISSTable = MakeTable(KISS)
)

// MakeTable returns the lookup table for the given polynomial.
func MakeTable(poly byte) *Table {
	t := new(Table)
	for i := 0; i < 256; i++ {
		crc := byte(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}

// Update returns the result of adding the bytes in p to crc.
func Update(crc byte, tab *Table, p []byte) byte {
	for _, b := range p {
		crc = tab[crc^b]
	}
	return crc
}

// Checksum returns the CRC8 of data using the given table.
func Checksum(data []byte, tab *Table) byte {
	return Update(0, tab, data)
}
