// Package output serialises rendered labels and sheets: PNG images, ZIP
// archives and PDF documents. Nothing partial is returned on failure.
package output

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/MeKo-Tech/labelkit/internal/apperr"
	"github.com/MeKo-Tech/labelkit/internal/barcode"
	"github.com/MeKo-Tech/labelkit/internal/mempool"
)

// Content types of the produced documents.
const (
	ContentTypeZip = "application/zip"
	ContentTypePNG = "image/png"
	ContentTypePDF = "application/pdf"
)

var pngEncoder = png.Encoder{CompressionLevel: png.BestSpeed, BufferPool: &mempool.PNGBuffers{}}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	b := img.Bounds()
	buf := mempool.GetBuffer(b.Dx() * b.Dy() / 8)
	defer mempool.PutBuffer(buf)
	if err := pngEncoder.Encode(buf, img); err != nil {
		return nil, apperr.IO(err, "encode png")
	}
	return bytes.Clone(buf.Bytes()), nil
}

// Zip archives images as PNG entries named by their Filename, in order.
func Zip(images []*barcode.RenderedImage) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteZip(&buf, images); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteZip streams the archive to w. On error w may hold a truncated
// archive; callers that need all-or-nothing use Zip or WriteFileAtomic.
func WriteZip(w io.Writer, images []*barcode.RenderedImage) error {
	if len(images) == 0 {
		return apperr.Validation("data", "no images to archive")
	}
	zw := zip.NewWriter(w)
	for _, img := range images {
		data, err := EncodePNG(img.Image)
		if err != nil {
			_ = zw.Close()
			return apperr.IO(err, "encode %s", img.Filename)
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: img.Filename, Method: zip.Store})
		if err != nil {
			_ = zw.Close()
			return apperr.IO(err, "add %s to archive", img.Filename)
		}
		if _, err := fw.Write(data); err != nil {
			_ = zw.Close()
			return apperr.IO(err, "write %s to archive", img.Filename)
		}
	}
	if err := zw.Close(); err != nil {
		return apperr.IO(err, "finalise archive")
	}
	return nil
}

// LabelPages builds a PDF with one page per label, each page sized to its
// image, and validates the result.
func LabelPages(images []*barcode.RenderedImage) ([]byte, error) {
	if len(images) == 0 {
		return nil, apperr.Validation("data", "no images for pdf")
	}
	readers := make([]io.Reader, 0, len(images))
	for _, img := range images {
		data, err := EncodePNG(img.Image)
		if err != nil {
			return nil, err
		}
		readers = append(readers, bytes.NewReader(data))
	}

	var buf bytes.Buffer
	if err := api.ImportImages(nil, &buf, readers, pdfcpu.DefaultImportConfig(), nil); err != nil {
		return nil, apperr.IO(err, "build label pdf")
	}
	if err := api.Validate(bytes.NewReader(buf.Bytes()), nil); err != nil {
		return nil, apperr.IO(err, "validate label pdf")
	}
	return buf.Bytes(), nil
}

// PageCount returns the number of pages of a PDF document.
func PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return 0, apperr.IO(err, "read pdf page count")
	}
	return n, nil
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place, so a failed write never leaves a partial file behind.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return apperr.IO(err, "create temp file in %s", dir)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return apperr.IO(err, "write %s", path)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return apperr.IO(err, "close %s", path)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return apperr.IO(err, "rename to %s", path)
	}
	return nil
}

// WriteDir writes every image as a PNG file into dir.
func WriteDir(dir string, images []*barcode.RenderedImage) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return apperr.IO(err, "create %s", dir)
	}
	for _, img := range images {
		data, err := EncodePNG(img.Image)
		if err != nil {
			return err
		}
		if err := WriteFileAtomic(filepath.Join(dir, img.Filename), data); err != nil {
			return fmt.Errorf("label %d: %w", img.Index+1, err)
		}
	}
	return nil
}
