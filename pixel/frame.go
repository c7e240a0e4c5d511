// Package pixel holds caller-owned RGB frame and input format conversion.
package pixel

import (
	"image"
	"image/color"
	"image/draw"
)

// Frame is row-major 8 bit per channel RGB grid.
// Width includes all chained panels.
type Frame struct {
	Width  int
	Height int
	Pix    []uint8 // len = Width*Height*3
}

var _ draw.Image = &Frame{}

func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*3),
	}
}

func (f *Frame) offset(x, y int) int { return (y*f.Width + x) * 3 }

func (f *Frame) In(x, y int) bool { return x >= 0 && y >= 0 && x < f.Width && y < f.Height }

// SetRGB silently ignores coordinates outside frame.
func (f *Frame) SetRGB(x, y int, r, g, b uint8) {
	if !f.In(x, y) {
		return
	}
	o := f.offset(x, y)
	f.Pix[o], f.Pix[o+1], f.Pix[o+2] = r, g, b
}

func (f *Frame) RGB(x, y int) (r, g, b uint8) {
	if !f.In(x, y) {
		return 0, 0, 0
	}
	o := f.offset(x, y)
	return f.Pix[o], f.Pix[o+1], f.Pix[o+2]
}

func (f *Frame) Fill(r, g, b uint8) {
	for o := 0; o+2 < len(f.Pix); o += 3 {
		f.Pix[o], f.Pix[o+1], f.Pix[o+2] = r, g, b
	}
}

func (f *Frame) Clear() {
	for i := range f.Pix {
		f.Pix[i] = 0
	}
}

func (f *Frame) CopyFrom(src *Frame) {
	copy(f.Pix, src.Pix)
}

func (f *Frame) ColorModel() color.Model { return color.RGBAModel }
func (f *Frame) Bounds() image.Rectangle { return image.Rect(0, 0, f.Width, f.Height) }

func (f *Frame) At(x, y int) color.Color {
	r, g, b := f.RGB(x, y)
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// Set drops alpha, premultiplied colour is stored as is.
func (f *Frame) Set(x, y int, c color.Color) {
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	f.SetRGB(x, y, rgba.R, rgba.G, rgba.B)
}
