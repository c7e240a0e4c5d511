// Package bcm encodes RGB frames into binary-coded modulation bit-planes:
// one transmission unit per scan row and plane, one 16 bit word per column.
//
// Column word layout:
//
//	bit  0..2  R1 G1 B1 (upper half pixel)
//	bit  3..5  R2 G2 B2 (lower half pixel)
//	bit  6..10 address A..E
//	bit 11     LAT
//	bit 12     OE, 1 = output disabled
package bcm

const (
	BitR1 = iota
	BitG1
	BitB1
	BitR2
	BitG2
	BitB2
	AddrShift
)

const (
	BitLAT = 11
	BitOE  = 12

	MaskRGB  uint16 = 1<<AddrShift - 1
	MaskAddr uint16 = 0x1f << AddrShift
	MaskLAT  uint16 = 1 << BitLAT
	MaskOE   uint16 = 1 << BitOE
)

func WordAddress(w uint16) uint8 { return uint8((w & MaskAddr) >> AddrShift) }
func WordLatch(w uint16) bool    { return w&MaskLAT != 0 }
func WordBlank(w uint16) bool    { return w&MaskOE != 0 }

// WordData returns upper and lower RGB bits as 3 bit values, R in bit 0.
func WordData(w uint16) (upper, lower uint8) {
	return uint8(w & 7), uint8(w>>BitR2) & 7
}
