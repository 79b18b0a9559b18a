// Package location attributes photos to a country and city. The primary
// source is the classified directory layout (country/city/photo.jpg);
// EXIF GPS coordinates feed an optional Resolver for photos that arrive
// unclassified.
package location

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// Place is a resolved photo location.
type Place struct {
	Country string
	City    string
}

// Resolver maps GPS coordinates to a place. Implementations may call a
// reverse-geocoding service or a local lookup table.
type Resolver interface {
	Resolve(ctx context.Context, lat, lon float64) (Place, error)
}

// Metadata is the subset of EXIF data the pipeline uses.
type Metadata struct {
	Latitude  float64
	Longitude float64
	HasGPS    bool

	TakenAt time.Time
	HasDate bool
}

// ExtractMetadata reads EXIF GPS and capture date from an image file.
// Supports JPEG, HEIC, and TIFF. Only the metadata bytes are read.
func ExtractMetadata(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	exifData, err := imagemeta.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode EXIF from %s: %w", path, err)
	}

	md := &Metadata{}

	gps := exifData.GPS
	if gps.Latitude() != 0 || gps.Longitude() != 0 {
		md.Latitude = gps.Latitude()
		md.Longitude = gps.Longitude()
		md.HasGPS = true
	}

	// Capture date fallback chain: original, then create, then modify.
	switch {
	case !exifData.DateTimeOriginal().IsZero():
		md.TakenAt = exifData.DateTimeOriginal()
		md.HasDate = true
	case !exifData.CreateDate().IsZero():
		md.TakenAt = exifData.CreateDate()
		md.HasDate = true
	case !exifData.ModifyDate().IsZero():
		md.TakenAt = exifData.ModifyDate()
		md.HasDate = true
	}

	log.Debug().Str("path", path).Bool("hasGps", md.HasGPS).
		Bool("hasDate", md.HasDate).Msg("EXIF metadata extracted")
	return md, nil
}

// FromPath derives the place from a classified photo path laid out as
// .../{country}/{city}/{file}. City may be absent for single-level
// classification.
func FromPath(root, path string) (Place, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return Place{}, fmt.Errorf("photo %s outside classified root: %w", path, err)
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	switch len(parts) {
	case 2:
		return Place{Country: parts[0]}, nil
	case 3:
		return Place{Country: parts[0], City: parts[1]}, nil
	default:
		return Place{}, fmt.Errorf("unclassified photo path: %s", rel)
	}
}
