package media

import (
	"fmt"
	"image"
	"math"
	"os"

	"giffer/internal/logging"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // BMP format support
	_ "golang.org/x/image/webp" // WebP format support
)

const (
	// MaxImageDimension is the maximum width or height we'll process.
	// Larger images are downscaled first.
	MaxImageDimension = 4096

	// MaxImagePixels caps width * height; ~20MP uses ~80MB in RGBA.
	MaxImagePixels = 20_000_000
)

// LoadImageConstrained decodes the first frame of an image, downscaling it
// if it exceeds maxDimension or maxPixels.
func LoadImageConstrained(path string, maxDimension, maxPixels int) (image.Image, error) {
	dimensions, err := GetImageDimensions(path)
	if err != nil {
		logging.Debug("Could not get image dimensions for %s: %v", path, err)
		return imaging.Open(path, imaging.AutoOrientation(true))
	}

	width, height := dimensions.Width, dimensions.Height
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d for %s", width, height, path)
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	targetWidth, targetHeight := constrain(width, height, maxDimension, maxPixels)
	if targetWidth == width && targetHeight == height {
		return img, nil
	}

	logging.Info("Constraining large image %s from %dx%d to %dx%d", path, width, height, targetWidth, targetHeight)
	return imaging.Resize(img, targetWidth, targetHeight, imaging.Lanczos), nil
}

// constrain scales width and height down to fit maxDimension on the long
// edge and maxPixels in area, keeping the aspect ratio.
func constrain(width, height, maxDimension, maxPixels int) (int, int) {
	if width > maxDimension || height > maxDimension {
		if width > height {
			height = height * maxDimension / width
			width = maxDimension
		} else {
			width = width * maxDimension / height
			height = maxDimension
		}
	}

	if pixels := width * height; pixels > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(pixels))
		width = int(float64(width) * scale)
		height = int(float64(height) * scale)
	}

	return max(width, 1), max(height, 1)
}

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// GetImageDimensions returns image dimensions without fully decoding the image
func GetImageDimensions(path string) (*ImageDimensions, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, err
	}

	return &ImageDimensions{
		Width:  config.Width,
		Height: config.Height,
	}, nil
}
