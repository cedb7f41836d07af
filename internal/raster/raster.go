// Package raster opens raster datasets and reports their georeferencing.
//
// Drivers register themselves at init time. The pure-Go GeoTIFF driver is
// always available; building with the "gdal" tag adds a GDAL-backed driver
// that reads any format GDAL supports and becomes the default.
package raster

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kiesman99/tfwgen/pkg/georef"
)

var (
	// ErrNoGeoTransform is returned when a dataset carries no georeferencing.
	ErrNoGeoTransform = errors.New("raster has no geotransform")

	// ErrUnknownDriver is returned by Lookup for unregistered driver names.
	ErrUnknownDriver = errors.New("unknown raster driver")

	// ErrFormat is returned when a file is not a raster the driver can read.
	ErrFormat = errors.New("unsupported raster format")
)

// Dataset is an open raster resource. Close must be called once the
// dataset is no longer needed.
type Dataset interface {
	GeoTransform() (georef.Transform, error)
	Size() (width, height int)
	Close() error
}

// Driver opens datasets by path
type Driver interface {
	Name() string
	Open(path string) (Dataset, error)
}

var (
	mu      sync.RWMutex
	drivers = map[string]Driver{}
)

// Register makes a driver available under its name. Registering the same
// name twice panics.
func Register(d Driver) {
	mu.Lock()
	defer mu.Unlock()

	name := d.Name()
	if _, dup := drivers[name]; dup {
		panic("raster: Register called twice for driver " + name)
	}
	drivers[name] = d
}

// Lookup returns the driver registered under name
func Lookup(name string) (Driver, error) {
	mu.RLock()
	defer mu.RUnlock()

	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownDriver, name, driverNames())
	}
	return d, nil
}

// Drivers returns the sorted names of the registered drivers
func Drivers() []string {
	mu.RLock()
	defer mu.RUnlock()
	return driverNames()
}

// DefaultDriver returns the name of the preferred driver: gdal when it was
// compiled in, geotiff otherwise.
func DefaultDriver() string {
	mu.RLock()
	defer mu.RUnlock()

	if _, ok := drivers["gdal"]; ok {
		return "gdal"
	}
	return GeoTIFFDriverName
}

func driverNames() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
