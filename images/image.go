// Package images - decoding and tensor packing for detector inputs.
package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
)

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
)

var (
	// ErrEmpty is returned when there are no bytes to decode.
	ErrEmpty = errors.New("empty image data")
	// ErrUnsupportedFormat is returned for content that is not JPEG, PNG or WebP.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// mimeFormats maps sniffed content types to the formats Decode understands.
var mimeFormats = map[string]ImageFormat{
	"image/jpeg": FormatJPEG,
	"image/png":  FormatPNG,
	"image/webp": FormatWebP,
}

// SupportedMIMETypes lists the content types accepted by Decode.
func SupportedMIMETypes() []string {
	return []string{"image/jpeg", "image/png", "image/webp"}
}

// DetectFormat sniffs the format of an encoded image from its leading bytes.
//
// Arguments:
//   - data: The encoded image.
//
// Returns:
//   - ImageFormat: The detected format.
//   - error: ErrEmpty or ErrUnsupportedFormat.
func DetectFormat(data []byte) (ImageFormat, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}

	mime := mimetype.Detect(data)
	for m := mime; m != nil; m = m.Parent() {
		if f, ok := mimeFormats[m.String()]; ok {
			return f, nil
		}
	}
	return "", errors.Wrapf(ErrUnsupportedFormat, "detected %s", mime.String())
}

// Decode decodes a JPEG, PNG or WebP image into a Go-native image.Image.
//
// Arguments:
//   - data: The encoded image.
//
// Returns:
//   - image.Image: The decoded image.
//   - ImageFormat: The format that was detected.
//   - error: An error if the bytes could not be sniffed or decoded.
func Decode(data []byte) (image.Image, ImageFormat, error) {
	format, err := DetectFormat(data)
	if err != nil {
		return nil, "", err
	}

	var img image.Image
	r := bytes.NewReader(data)
	switch format {
	case FormatJPEG:
		img, err = jpeg.Decode(r)
	case FormatPNG:
		img, err = png.Decode(r)
	case FormatWebP:
		img, err = webp.Decode(r)
	}
	if err != nil {
		return nil, format, errors.Wrapf(err, "failed to decode %s", format)
	}

	return img, format, nil
}

// Blank returns a black RGBA image of the given size.
func Blank(width, height int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, width, height))
}
