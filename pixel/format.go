package pixel

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
)

type Format uint8

const (
	RGB888 Format = iota
	// RGB888_32 is 4 bytes per pixel with one padding byte.
	RGB888_32
	RGB565
)

func (f Format) BytesPerPixel() int {
	switch f {
	case RGB888:
		return 3
	case RGB888_32:
		return 4
	case RGB565:
		return 2
	}
	return 0
}

func (f Format) String() string {
	switch f {
	case RGB888:
		return "rgb888"
	case RGB888_32:
		return "rgb888_32"
	case RGB565:
		return "rgb565"
	}
	return fmt.Sprintf("pixel.Format(%d)", uint8(f))
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "rgb888", "rgb":
		return RGB888, nil
	case "rgb888_32", "xrgb":
		return RGB888_32, nil
	case "rgb565":
		return RGB565, nil
	}
	return RGB888, errors.NotValidf("pixel format=%q", s)
}

// ColorOrder only affects RGB888_32.
type ColorOrder uint8

const (
	OrderRGB ColorOrder = iota
	OrderBGR
)

// Decode extracts pixel i from buf.
// RGB888_32 byte layouts:
//
//	RGB big-endian    x R G B
//	RGB little-endian B G R x
//	BGR big-endian    x B G R
//	BGR little-endian R G B x
func Decode(buf []byte, i int, format Format, order ColorOrder, bigEndian bool) (r, g, b uint8) {
	switch format {
	case RGB888:
		p := buf[i*3 : i*3+3]
		return p[0], p[1], p[2]

	case RGB888_32:
		p := buf[i*4 : i*4+4]
		switch {
		case order == OrderRGB && bigEndian:
			return p[1], p[2], p[3]
		case order == OrderRGB:
			return p[2], p[1], p[0]
		case bigEndian:
			return p[3], p[2], p[1]
		default:
			return p[0], p[1], p[2]
		}

	case RGB565:
		p := buf[i*2 : i*2+2]
		var v uint16
		if bigEndian {
			v = uint16(p[0])<<8 | uint16(p[1])
		} else {
			v = uint16(p[1])<<8 | uint16(p[0])
		}
		return Expand565(v)
	}
	panic(fmt.Sprintf("code error pixel.Decode format=%s", format))
}

// Expand565 scales 5/6 bit channels to full 8 bit range, 0x1f -> 255, 0x3f -> 255.
func Expand565(v uint16) (r, g, b uint8) {
	r5 := uint32(v>>11) & 0x1f
	g6 := uint32(v>>5) & 0x3f
	b5 := uint32(v) & 0x1f
	r = uint8((r5*527 + 23) >> 6)
	g = uint8((g6*259 + 33) >> 6)
	b = uint8((b5*527 + 23) >> 6)
	return
}

// Draw copies w x h block from tightly packed buf to frame at (x,y).
// Pixels falling outside frame are skipped.
func (f *Frame) Draw(x, y, w, h int, buf []byte, format Format, order ColorOrder, bigEndian bool) error {
	bpp := format.BytesPerPixel()
	if bpp == 0 {
		return errors.NotValidf("pixel format=%s", format)
	}
	if w < 0 || h < 0 {
		return errors.NotValidf("draw size=%dx%d", w, h)
	}
	if need := w * h * bpp; len(buf) < need {
		return errors.Errorf("draw %dx%d %s buffer length=%d expected=%d", w, h, format, len(buf), need)
	}
	for j := 0; j < h; j++ {
		py := y + j
		if py < 0 || py >= f.Height {
			continue
		}
		for i := 0; i < w; i++ {
			px := x + i
			if px < 0 || px >= f.Width {
				continue
			}
			r, g, b := Decode(buf, j*w+i, format, order, bigEndian)
			o := f.offset(px, py)
			f.Pix[o], f.Pix[o+1], f.Pix[o+2] = r, g, b
		}
	}
	return nil
}
