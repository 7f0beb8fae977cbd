package images

import (
	"image"
	"image/color"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Channels is the number of color channels packed per pixel.
const Channels = 3

// Warp stretches img to exactly width x height, ignoring the aspect ratio.
//
// Arguments:
//   - img: The source image.
//   - width: The target width in pixels.
//   - height: The target height in pixels.
//
// Returns:
//   - image.Image: The resized image. img itself when it already has the target size.
//   - error: An error if the dimensions are not positive.
func Warp(img image.Image, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid dimensions: width=%d, height=%d", width, height)
	}

	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img, nil
	}
	return resize.Resize(uint(width), uint(height), img, resize.Bilinear), nil
}

// FillNHWC packs img as interleaved uint8 RGB into dst, row by row.
//
// dst must hold exactly width*height*3 bytes for the image bounds.
//
// Arguments:
//   - img: The source image.
//   - dst: The destination buffer, usually the backing slice of an input tensor.
//
// Returns:
//   - error: An error if dst has the wrong length.
func FillNHWC(img image.Image, dst []uint8) error {
	b := img.Bounds()
	if want := b.Dx() * b.Dy() * Channels; len(dst) != want {
		return errors.Errorf("buffer holds %d bytes, %dx%d image needs %d", len(dst), b.Dx(), b.Dy(), want)
	}

	i := 0
	switch src := img.(type) {
	case *image.RGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, y):]
			for x := 0; x < b.Dx(); x++ {
				dst[i], dst[i+1], dst[i+2] = row[x*4], row[x*4+1], row[x*4+2]
				i += Channels
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
				dst[i], dst[i+1], dst[i+2] = c.R, c.G, c.B
				i += Channels
			}
		}
	}
	return nil
}

// ToNHWC warps img to width x height and returns it packed as uint8 RGB.
func ToNHWC(img image.Image, width, height int) ([]uint8, error) {
	warped, err := Warp(img, width, height)
	if err != nil {
		return nil, err
	}

	buf := make([]uint8, width*height*Channels)
	if err := FillNHWC(warped, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
