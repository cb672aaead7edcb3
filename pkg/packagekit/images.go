package packagekit

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/mat/besticon/ico"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/tiff"
)

const (
	headerImageFile  = "header.bmp"
	welcomeImageFile = "welcome.bmp"
	iconImageFile    = "icon.ico"
)

// These are the sizes WixUI expects.
var (
	headerSize  = image.Pt(150, 57)
	welcomeSize = image.Pt(164, 314)
	iconSize    = image.Pt(256, 256)
)

var imageColors = map[string]color.RGBA{
	"red":    {R: 0xb0, G: 0x1c, B: 0x1c, A: 0xff},
	"green":  {R: 0x1c, G: 0x8a, B: 0x3c, A: 0xff},
	"blue":   {R: 0x1c, G: 0x4e, B: 0xa0, A: 0xff},
	"yellow": {R: 0xe0, G: 0xb0, B: 0x10, A: 0xff},
}

// DefaultImageColor is used when no color, and no image, is given.
const DefaultImageColor = "blue"

func ImageColors() []string {
	return []string{"red", "green", "blue", "yellow"}
}

// ImageOptions are the inputs for the installer's images. An empty
// path means the image is generated.
type ImageOptions struct {
	WelcomeImage     string
	HeaderImage      string
	IconImage        string
	WelcomeImageText string
	HeaderImageText  string
	Color            string
}

// writeImages writes header.bmp, welcome.bmp, and icon.ico into dir.
func writeImages(dir string, name string, opts ImageOptions) error {
	c, err := imageColor(opts.Color)
	if err != nil {
		return err
	}

	headerText := opts.HeaderImageText
	if headerText == "" {
		headerText = name
	}
	welcomeText := opts.WelcomeImageText
	if welcomeText == "" {
		welcomeText = name
	}

	header, err := imageOrGenerated(opts.HeaderImage, headerSize, func() image.Image {
		return drawCard(headerSize, color.White, c, headerText)
	})
	if err != nil {
		return errors.Wrap(err, "header image")
	}

	welcome, err := imageOrGenerated(opts.WelcomeImage, welcomeSize, func() image.Image {
		return drawCard(welcomeSize, c, color.White, welcomeText)
	})
	if err != nil {
		return errors.Wrap(err, "welcome image")
	}

	icon, err := imageOrGenerated(opts.IconImage, iconSize, func() image.Image {
		initial := ""
		if name != "" {
			initial = strings.ToUpper(name[:1])
		}
		return drawCard(iconSize, c, color.White, initial)
	})
	if err != nil {
		return errors.Wrap(err, "icon image")
	}

	if err := writeFile(filepath.Join(dir, headerImageFile), func(b *bytes.Buffer) error { return bmp.Encode(b, header) }); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, welcomeImageFile), func(b *bytes.Buffer) error { return bmp.Encode(b, welcome) }); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, iconImageFile), func(b *bytes.Buffer) error { return encodeIco(b, icon) }); err != nil {
		return err
	}

	return nil
}

func imageColor(name string) (color.RGBA, error) {
	if name == "" {
		name = DefaultImageColor
	}
	c, ok := imageColors[name]
	if !ok {
		return color.RGBA{}, errors.Errorf("unknown image color '%s', expected one of %v", name, ImageColors())
	}
	return c, nil
}

func writeFile(path string, encode func(*bytes.Buffer) error) error {
	var b bytes.Buffer
	if err := encode(&b); err != nil {
		return errors.Wrapf(err, "encoding %s", path)
	}
	if err := os.WriteFile(path, b.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// imageOrGenerated loads the image at path, resized to size. With no
// path, it calls generate.
func imageOrGenerated(path string, size image.Point, generate func() image.Image) (image.Image, error) {
	if path == "" {
		return generate(), nil
	}

	img, err := loadImage(path)
	if err != nil {
		return nil, err
	}

	if img.Bounds().Size() == size {
		return img, nil
	}
	return resize.Resize(uint(size.X), uint(size.Y), img, resize.Bilinear), nil
}

func loadImage(path string) (image.Image, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening image %s", path)
	}
	defer fh.Close()

	if strings.EqualFold(filepath.Ext(path), ".ico") {
		img, err := ico.Decode(fh)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding icon %s", path)
		}
		return img, nil
	}

	img, _, err := image.Decode(fh)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding image %s", path)
	}
	return img, nil
}

// drawCard fills an image with bg, and writes text onto it, one line
// per `\n`.
func drawCard(size image.Point, bg, fg color.Color, text string) image.Image {
	img := image.NewRGBA(image.Rectangle{Max: size})
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: fg},
		Face: face,
	}

	lineHeight := face.Metrics().Height.Ceil()
	y := 8 + face.Metrics().Ascent.Ceil()
	for _, line := range strings.Split(text, "\n") {
		d.Dot = fixed.P(8, y)
		d.DrawString(line)
		y += lineHeight
	}

	return img
}

type icoDir struct {
	Reserved uint16
	Type     uint16
	Count    uint16
}

type icoDirEntry struct {
	Width       uint8
	Height      uint8
	Colors      uint8
	Reserved    uint8
	Planes      uint16
	BitCount    uint16
	BytesInRes  uint32
	ImageOffset uint32
}

// encodeIco writes a single image ico, with a png payload. 256 is
// stored as 0 in the directory entry.
func encodeIco(b *bytes.Buffer, img image.Image) error {
	var payload bytes.Buffer
	if err := png.Encode(&payload, img); err != nil {
		return err
	}

	size := img.Bounds().Size()
	dim := func(n int) uint8 {
		if n >= 256 {
			return 0
		}
		return uint8(n)
	}

	if err := binary.Write(b, binary.LittleEndian, icoDir{Type: 1, Count: 1}); err != nil {
		return err
	}
	entry := icoDirEntry{
		Width:       dim(size.X),
		Height:      dim(size.Y),
		Planes:      1,
		BitCount:    32,
		BytesInRes:  uint32(payload.Len()),
		ImageOffset: uint32(binary.Size(icoDir{}) + binary.Size(icoDirEntry{})),
	}
	if err := binary.Write(b, binary.LittleEndian, entry); err != nil {
		return err
	}

	_, err := b.Write(payload.Bytes())
	return err
}
