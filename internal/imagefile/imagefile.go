// Package imagefile reads what the tagger needs to know about an image file
// without decoding its pixels: dimensions, format, and EXIF orientation.
package imagefile

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"metapho/internal/imagelist"
)

// Info holds metadata about an image file.
type Info struct {
	Width    int
	Height   int
	Format   string
	Size     int64
	ModTime  time.Time
	Rotation int // Degrees clockwise needed to display upright

	exif *exif.Exif
}

// exifFields are the EXIF fields returned by Info.EXIFData.
var exifFields = []exif.FieldName{
	exif.DateTime, exif.Model, exif.Make, exif.ExposureTime,
	exif.FNumber, exif.ISOSpeedRatings, exif.FocalLength,
}

// orientations maps EXIF orientation values to rotations. Mirrored
// orientations are treated as unrotated.
var orientations = map[int]int{1: 0, 3: 180, 6: 90, 8: 270}

// Probe reads the header and EXIF data of the image at path.
// An error means the file can't be read or isn't a decodable image.
func Probe(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image for info: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat image file: %w", err)
	}

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}

	info := &Info{
		Width:   cfg.Width,
		Height:  cfg.Height,
		Format:  format,
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
	}

	if _, err = f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek in image file: %w", err)
	}
	// Not all images have EXIF; that's not an error.
	if x, err := exif.Decode(f); err == nil {
		info.Rotation = rotation(x)
		info.exif = x
	}
	return info, nil
}

func rotation(x *exif.Exif) int {
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	o, err := tag.Int(0)
	if err != nil {
		return 0
	}
	return orientations[o]
}

// EXIFData returns the common EXIF fields of the image, or nil if it has no
// EXIF data.
func (info *Info) EXIFData() map[string]string {
	if info.exif == nil {
		return nil
	}
	result := make(map[string]string)
	for _, field := range exifFields {
		tag, err := info.exif.Get(field)
		if err == nil && tag != nil {
			result[string(field)] = tag.String()
		}
	}
	return result
}

// Prober fills in an image record from its file.
type Prober struct{}

// Apply probes img's file and records the result on it: the rotation, or
// Invalid if the file isn't a readable image.
func (Prober) Apply(img *imagelist.Image) error {
	info, err := Probe(img.Filename)
	if err != nil {
		img.Invalid = true
		return err
	}
	img.Rot = info.Rotation
	return nil
}
