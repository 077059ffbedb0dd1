package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrNotImage is returned when the payload does not decode as any supported
// image format.
var ErrNotImage = errors.New("payload is not a supported image")

const (
	// svgRenderSize is the raster size used when an SVG payload carries no
	// explicit dimensions.
	svgRenderSize = 1024
	// minDimension stops the downscale loop; below this the image is useless
	// for classification anyway.
	minDimension = 64
	jpegQuality  = 85
)

// Normalize validates that data is an image and returns it as a data URI
// whose encoded size fits within maxEncodedBytes. Payloads over the ceiling
// are downscaled with aspect preservation and re-encoded as JPEG; the store
// imposes a hard limit on encoded-text payloads, so oversized originals must
// be recompressed before transmission rather than rejected outright.
func Normalize(data []byte, maxEncodedBytes int) (string, error) {
	if len(data) == 0 {
		return "", ErrNotImage
	}

	var (
		img image.Image
		err error
	)
	if isSVGData(data) {
		img, err = rasterizeSVG(data)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrNotImage, err)
		}
	} else {
		var format string
		img, format, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrNotImage, err)
		}

		// Original already fits and needs no transcoding.
		if encodedSize(len(data)) <= maxEncodedBytes && (format == "png" || format == "jpeg") {
			return EncodeDataURL("image/"+format, data), nil
		}
	}

	return shrinkToFit(img, maxEncodedBytes)
}

// shrinkToFit re-encodes the image as JPEG, halving the area until the
// base64-encoded payload fits the ceiling.
func shrinkToFit(img image.Image, maxEncodedBytes int) (string, error) {
	for {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return "", fmt.Errorf("failed to encode image: %w", err)
		}
		if encodedSize(buf.Len()) <= maxEncodedBytes {
			return EncodeDataURL("image/jpeg", buf.Bytes()), nil
		}

		bounds := img.Bounds()
		w, h := bounds.Dx(), bounds.Dy()
		if w <= minDimension || h <= minDimension {
			return "", fmt.Errorf("image cannot be compressed under %d bytes", maxEncodedBytes)
		}
		img = scale(img, w*7/10, h*7/10)
	}
}

func scale(img image.Image, width, height int) image.Image {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst
}

// encodedSize is the length of the base64 form of n raw bytes, ignoring the
// constant data-URI prefix.
func encodedSize(n int) int {
	return (n + 2) / 3 * 4
}

// DecodeImage decodes a data URI back into an image, used by consumers that
// need pixel access (thumbnails, re-encoding).
func DecodeImage(dataURL string) (image.Image, error) {
	_, data, err := DecodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return img, nil
}

func isSVGData(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	n := len(data)
	if n > 4096 {
		n = 4096
	}
	header := bytes.ToLower(bytes.TrimSpace(data[:n]))
	return bytes.HasPrefix(header, []byte("<svg")) ||
		bytes.Contains(header, []byte("<svg")) ||
		bytes.Contains(header, []byte(`xmlns="http://www.w3.org/2000/svg"`)) ||
		bytes.Contains(header, []byte(`xmlns='http://www.w3.org/2000/svg'`))
}

// rasterizeSVG renders SVG markup onto a white canvas so it can travel the
// same raster path as every other format.
func rasterizeSVG(svgData []byte) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}

	width, height := svgRenderSize, svgRenderSize
	if icon.ViewBox.W > 0 && icon.ViewBox.H > 0 {
		width = int(icon.ViewBox.W)
		height = int(icon.ViewBox.H)
		if width > svgRenderSize || height > svgRenderSize {
			width, height = svgRenderSize, svgRenderSize
		}
	}
	icon.SetTarget(0, 0, float64(width), float64(height))

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	white := image.NewUniform(color.RGBA{255, 255, 255, 255})
	xdraw.Draw(dst, dst.Bounds(), white, image.Point{}, xdraw.Src)

	scanner := rasterx.NewScannerGV(width, height, dst, dst.Bounds())
	dasher := rasterx.NewDasher(width, height, scanner)
	icon.Draw(dasher, 1.0)

	return dst, nil
}

// SniffMime reports the mime type of raw image bytes without a full decode,
// falling back to config-based detection for SVG.
func SniffMime(data []byte) (string, error) {
	if isSVGData(data) {
		return "image/svg+xml", nil
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return "image/" + format, nil
}
