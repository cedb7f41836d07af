package generator

import (
	"errors"
	"fmt"
	"io"

	"github.com/kiesman99/tfwgen/internal/raster"
	"github.com/kiesman99/tfwgen/pkg/georef"
)

// Options configures a Generator
type Options struct {
	Driver string    // raster driver name, empty selects raster.DefaultDriver
	Strict bool      // fail instead of falling back to the default transform
	Log    io.Writer // status output, nil discards
}

// Error records a failed step and the file it concerned
type Error struct {
	Op   string // "open", "transform" or "write"
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Generator turns raster georeferencing into world files
type Generator struct {
	driver raster.Driver
	strict bool
	log    io.Writer
}

// New creates a generator using the configured raster driver
func New(opts *Options) (*Generator, error) {
	name := opts.Driver
	if name == "" {
		name = raster.DefaultDriver()
	}

	driver, err := raster.Lookup(name)
	if err != nil {
		return nil, err
	}

	log := opts.Log
	if log == nil {
		log = io.Discard
	}

	return &Generator{
		driver: driver,
		strict: opts.Strict,
		log:    log,
	}, nil
}

// Describe opens the raster at path and returns its world file record.
// The dataset is closed before returning.
func (g *Generator) Describe(path string) (georef.Record, error) {
	ds, err := g.driver.Open(path)
	if err != nil {
		return georef.Record{}, &Error{Op: "open", Path: path, Err: err}
	}
	defer ds.Close()

	width, height := ds.Size()
	fmt.Fprintf(g.log, "==Raster Size: %dx%d\n", width, height)

	gt, err := ds.GeoTransform()
	if err != nil {
		if g.strict || !errors.Is(err, raster.ErrNoGeoTransform) {
			return georef.Record{}, &Error{Op: "transform", Path: path, Err: err}
		}
		fmt.Fprintf(g.log, "Warning: %s has no geotransform, using %v\n", path, georef.DefaultTransform.GDAL())
		gt = georef.DefaultTransform
	}

	fmt.Fprintf(g.log, "==GeoTransform: %.17g\n", gt.GDAL())

	return georef.NewRecord(gt), nil
}

// Generate writes the world file for the raster at path and returns the
// world file name. Nothing is written when the raster cannot be read.
func (g *Generator) Generate(path string) (string, error) {
	rec, err := g.Describe(path)
	if err != nil {
		return "", err
	}

	out := georef.WorldFilePath(path)
	if err := georef.WriteWorldFile(out, rec); err != nil {
		return "", &Error{Op: "write", Path: out, Err: err}
	}

	fmt.Fprintf(g.log, "World file written to '%s'.\n", out)
	return out, nil
}
