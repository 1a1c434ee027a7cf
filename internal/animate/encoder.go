package animate

import (
	"bytes"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"math"
	"os"
	"time"

	"github.com/icza/mjpeg"
)

type encoder interface {
	add(img image.Image) error
	// close finalizes the file.
	close() error
	// abort releases the encoder and removes the partial file.
	abort()
}

func newEncoder(f Format, path string, size image.Point, frame time.Duration) (encoder, error) {
	switch f {
	case GIF:
		return &gifEncoder{path: path, size: size, delay: gifDelay(frame)}, nil
	case AVI:
		w, err := mjpeg.New(path, int32(size.X), int32(size.Y), aviFPS(frame))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
		return &aviEncoder{path: path, w: w}, nil
	}
	return nil, fmt.Errorf("unknown animation format %q", f)
}

// gifDelay converts a frame duration to GIF hundredths of a second.
func gifDelay(d time.Duration) int {
	cs := int(math.Round(d.Seconds() * 100))
	if cs < 1 {
		cs = 1
	}
	return cs
}

func aviFPS(d time.Duration) int32 {
	fps := int32(math.Round(1 / d.Seconds()))
	if fps < 1 {
		fps = 1
	}
	return fps
}

type gifEncoder struct {
	path  string
	size  image.Point
	delay int
	anim  gif.GIF
}

func (e *gifEncoder) add(img image.Image) error {
	frame := image.NewPaletted(image.Rectangle{Max: e.size}, palette.Plan9)
	draw.FloydSteinberg.Draw(frame, frame.Bounds(), img, img.Bounds().Min)
	e.anim.Image = append(e.anim.Image, frame)
	e.anim.Delay = append(e.anim.Delay, e.delay)
	return nil
}

func (e *gifEncoder) close() error {
	f, err := os.Create(e.path)
	if err != nil {
		return err
	}
	if err := gif.EncodeAll(f, &e.anim); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (e *gifEncoder) abort() {
	e.anim = gif.GIF{}
	os.Remove(e.path)
}

type aviEncoder struct {
	path string
	w    mjpeg.AviWriter
	buf  bytes.Buffer
}

func (e *aviEncoder) add(img image.Image) error {
	e.buf.Reset()
	if err := jpeg.Encode(&e.buf, img, &jpeg.Options{Quality: 100}); err != nil {
		return err
	}
	return e.w.AddFrame(e.buf.Bytes())
}

func (e *aviEncoder) close() error {
	return e.w.Close()
}

func (e *aviEncoder) abort() {
	e.w.Close()
	os.Remove(e.path)
}
