package extract

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"mime"
	"os"

	"golang.org/x/image/draw"

	// Register decoders for the image formats the dispatch table accepts.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// downscaleAttempts bounds the halving loop when re-encoding an oversized
// image toward the byte cap.
const downscaleAttempts = 6

// imageDataURL returns the image at path as a data URL no larger than the
// configured byte cap. Small images pass through in their original encoding;
// oversized ones are re-encoded as JPEG and halved until they fit.
func (e *Extractor) imageDataURL(path string, ext string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("image is empty")
	}

	if int64(len(raw)) <= e.opts.MaxImageBytes {
		return dataURL(mimeForExtension(ext), raw), nil
	}

	return e.boundedDataURL(raw)
}

// boundedDataURL re-encodes raw image bytes as JPEG, downscaling by halves
// until the encoded size fits the cap.
func (e *Extractor) boundedDataURL(raw []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	for attempt := 0; attempt < downscaleAttempts; attempt++ {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			return "", fmt.Errorf("encode image: %w", err)
		}
		if int64(buf.Len()) <= e.opts.MaxImageBytes {
			return dataURL("image/jpeg", buf.Bytes()), nil
		}

		bounds := img.Bounds()
		width := bounds.Dx() / 2
		height := bounds.Dy() / 2
		if width < 1 || height < 1 {
			break
		}

		scaled := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)
		img = scaled
	}

	return "", fmt.Errorf("image does not fit %d bytes after downscaling", e.opts.MaxImageBytes)
}

func dataURL(mimeType string, raw []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(raw)
}

func mimeForExtension(ext string) string {
	mimeType := mime.TypeByExtension("." + ext)
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}
