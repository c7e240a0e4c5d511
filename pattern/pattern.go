// Package pattern draws test images into pixel.Frame.
package pattern

import (
	"image"
	"image/color"
	"sort"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/skip2/go-qrcode"
	"github.com/temoto/hub75/pixel"
)

var ErrUnknown = errors.New("unknown pattern")

type Func func(f *pixel.Frame, args []string) error

var registry = map[string]Func{
	"solid":    drawSolid,
	"gradient": func(f *pixel.Frame, _ []string) error { Gradient(f); return nil },
	"bars":     func(f *pixel.Frame, _ []string) error { Bars(f); return nil },
	"checker":  drawChecker,
	"qr":       drawQR,
	"clear":    func(f *pixel.Frame, _ []string) error { f.Clear(); return nil },
}

func Names() []string {
	ns := make([]string, 0, len(registry))
	for n := range registry {
		ns = append(ns, n)
	}
	sort.Strings(ns)
	return ns
}

// Draw renders pattern by name, args are pattern specific.
//
//	solid R G B
//	checker [SIZE]
//	qr TEXT...
func Draw(f *pixel.Frame, name string, args []string) error {
	fun, ok := registry[name]
	if !ok {
		return errors.Annotatef(ErrUnknown, "name=%s", name)
	}
	return errors.Annotatef(fun(f, args), "pattern %s", name)
}

func drawSolid(f *pixel.Frame, args []string) error {
	if len(args) != 3 {
		return errors.NotValidf("solid expects R G B, args=%q", args)
	}
	var c [3]uint8
	for i, s := range args {
		v, err := strconv.ParseUint(s, 0, 8)
		if err != nil {
			return errors.Annotatef(err, "solid arg=%s", s)
		}
		c[i] = uint8(v)
	}
	f.Fill(c[0], c[1], c[2])
	return nil
}

func drawChecker(f *pixel.Frame, args []string) error {
	size := 4
	if len(args) != 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			return errors.NotValidf("checker size=%s", args[0])
		}
		size = v
	}
	Checker(f, size)
	return nil
}

func drawQR(f *pixel.Frame, args []string) error {
	if len(args) == 0 {
		return errors.NotValidf("qr text empty")
	}
	return QR(f, strings.Join(args, " "), false, qrcode.Low)
}

// Gradient: red grows left to right, green top to bottom, blue is constant half.
func Gradient(f *pixel.Frame) {
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			f.SetRGB(x, y, ramp(x, f.Width), ramp(y, f.Height), 128)
		}
	}
}

func ramp(i, n int) uint8 {
	if n <= 1 {
		return 255
	}
	return uint8(i * 255 / (n - 1))
}

var barColors = [8][3]uint8{
	{255, 255, 255},
	{255, 255, 0},
	{0, 255, 255},
	{0, 255, 0},
	{255, 0, 255},
	{255, 0, 0},
	{0, 0, 255},
	{0, 0, 0},
}

// Bars draws 8 vertical color bars, useful to spot swapped data lines.
func Bars(f *pixel.Frame) {
	for x := 0; x < f.Width; x++ {
		c := barColors[x*len(barColors)/f.Width]
		for y := 0; y < f.Height; y++ {
			f.SetRGB(x, y, c[0], c[1], c[2])
		}
	}
}

// Checker of white and black squares, top-left is white.
func Checker(f *pixel.Frame, size int) {
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			var v uint8
			if (x/size+y/size)%2 == 0 {
				v = 255
			}
			f.SetRGB(x, y, v, v, v)
		}
	}
}

// QR draws code at top-left, rest of frame is cleared.
func QR(f *pixel.Frame, text string, border bool, level qrcode.RecoveryLevel) error {
	qr, err := qrcode.New(text, level)
	if err != nil {
		return errors.Annotate(err, "QR")
	}
	qr.DisableBorder = !border
	img, ok := qr.Image(minInt(f.Width, f.Height)).(*image.Paletted)
	if !ok {
		return errors.New("code error QR image is not paletted")
	}
	if !img.Rect.In(f.Bounds()) {
		return errors.Errorf("QR image size=%s > frame size=%s", img.Bounds().Max.String(), f.Bounds().Max.String())
	}
	f.Clear()
	palleted2(f, img)
	return nil
}

// String renders frame as text, lit pixel is "██", black is "  ".
func String(f *pixel.Frame) string {
	b := strings.Builder{}
	b.Grow((f.Width*2 + 1) * f.Height) // +1 for \n
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			r, g, bl := f.RGB(x, y)
			if r == 0 && g == 0 && bl == 0 {
				b.WriteString("  ")
			} else {
				b.WriteString("██")
			}
		}
		b.WriteRune('\n')
	}
	return b.String()
}

func palleted2(f *pixel.Frame, img *image.Paletted) {
	min, max := img.Bounds().Min, img.Bounds().Max
	bg := toRGBA(img.Palette[0])
	fg := toRGBA(img.Palette[1])
	for y := min.Y; y < max.Y; y++ {
		for x := min.X; x < max.X; x++ {
			c := bg
			if img.Pix[img.PixOffset(x, y)] != 0 {
				c = fg
			}
			f.SetRGB(x, y, c.R, c.G, c.B)
		}
	}
}

func minInt(i1, i2 int) int {
	if i1 <= i2 {
		return i1
	}
	return i2
}

func toRGBA(c color.Color) color.RGBA {
	r, g, b, a := c.RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
}
