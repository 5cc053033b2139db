// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package snapshot reads presented frames back from the GPU and writes them
// as PNG, BMP or TIFF files.
package snapshot

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/gogpu/framepipe/gpu"
)

// Format is an image file format.
type Format string

// Supported formats.
const (
	PNG  Format = "png"
	BMP  Format = "bmp"
	TIFF Format = "tiff"
)

// ErrUnsupportedFormat is returned for unknown formats.
var ErrUnsupportedFormat = errors.New("snapshot: unsupported format")

// ErrNoReader is returned when the device cannot read images back.
var ErrNoReader = errors.New("snapshot: device cannot read images back")

// ParseFormat returns the format named s. "tif" is accepted for TIFF.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(s, "."))); f {
	case PNG, BMP, TIFF:
		return f, nil
	case "tif":
		return TIFF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Encode writes img to w in format f.
func Encode(w io.Writer, img image.Image, f Format) error {
	switch f {
	case PNG:
		return png.Encode(w, img)
	case BMP:
		return bmp.Encode(w, img)
	case TIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
}

// Save writes img to path in the format given by the file extension.
func Save(path string, img image.Image) error {
	f, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(file, img, f); err != nil {
		_ = file.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return file.Close()
}

// Capture drains the GPU and reads img back.
func Capture(dev gpu.Device, drain func() error, img gpu.Image) (*image.RGBA, error) {
	r, ok := dev.(gpu.Reader)
	if !ok {
		return nil, ErrNoReader
	}
	if drain != nil {
		if err := drain(); err != nil {
			return nil, fmt.Errorf("drain before capture: %w", err)
		}
	}
	return r.ReadImage(img)
}

// Taker saves the current frame on demand.
type Taker struct {
	Dir    string
	Format Format
	Prefix string

	Device gpu.Device

	// Drain waits for the GPU to finish all submitted work.
	Drain func() error

	// Image returns the image to capture.
	Image func() gpu.Image

	// Now names the files. Nil means time.Now.
	Now func() time.Time
}

// Snapshot captures the image and writes it into Dir. It returns the path
// of the written file.
func (t *Taker) Snapshot() (string, error) {
	img := t.Image()
	if img == nil {
		return "", errors.New("snapshot: no image to capture")
	}
	rgba, err := Capture(t.Device, t.Drain, img)
	if err != nil {
		return "", err
	}

	format := t.Format
	if format == "" {
		format = PNG
	}
	prefix := t.Prefix
	if prefix == "" {
		prefix = "frame"
	}
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	if t.Dir != "" {
		if err := os.MkdirAll(t.Dir, 0o755); err != nil {
			return "", err
		}
	}
	name := fmt.Sprintf("%s-%s.%s", prefix, now().Format("20060102-150405.000"), format)
	path := filepath.Join(t.Dir, name)
	if err := Save(path, rgba); err != nil {
		return "", err
	}
	return path, nil
}
