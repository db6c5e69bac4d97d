package picker

import (
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
)

// Downscale shrinks the photo behind ref so neither side exceeds max,
// keeping its aspect ratio. Photos already small enough are returned
// untouched. The copy keeps the original file name for the upload and is
// deleted by the returned ref's Release.
func Downscale(ref ImageRef, max int, tempDir string) (ImageRef, error) {
	path, err := PathFromURI(ref.URI)
	if err != nil {
		return ref, err
	}
	f, err := os.Open(path)
	if err != nil {
		return ref, fmt.Errorf("open photo: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return ref, fmt.Errorf("decode photo: %w", err)
	}
	b := img.Bounds()
	if b.Dx() <= max && b.Dy() <= max {
		return ref, nil
	}

	small := resize.Thumbnail(uint(max), uint(max), img, resize.Lanczos3)

	out, err := os.CreateTemp(tempDir, "leaf-*"+outputExt(format))
	if err != nil {
		return ref, fmt.Errorf("create downscaled copy: %w", err)
	}
	defer out.Close()

	mimeType := "image/png"
	fileName := ref.FileName
	if format == "jpeg" {
		mimeType = "image/jpeg"
		err = jpeg.Encode(out, small, &jpeg.Options{Quality: 100})
	} else {
		fileName = strings.TrimSuffix(fileName, filepath.Ext(fileName)) + ".png"
		err = png.Encode(out, small)
	}
	if err != nil {
		os.Remove(out.Name())
		return ref, fmt.Errorf("encode downscaled copy: %w", err)
	}

	return ImageRef{
		URI:      out.Name(),
		FileName: fileName,
		MimeType: mimeType,
		temp:     out.Name(),
	}, nil
}

func outputExt(format string) string {
	if format == "jpeg" {
		return ".jpg"
	}
	return ".png"
}
