//go:build gdal

package raster

import (
	"fmt"

	"github.com/airbusgeo/godal"

	"github.com/kiesman99/tfwgen/pkg/georef"
)

func init() {
	godal.RegisterAll()
	Register(gdalDriver{})
}

// gdalDriver opens any raster format supported by the linked GDAL library
type gdalDriver struct{}

func (gdalDriver) Name() string {
	return "gdal"
}

func (gdalDriver) Open(path string) (Dataset, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return &gdalDataset{ds: ds}, nil
}

type gdalDataset struct {
	ds *godal.Dataset
}

// GeoTransform returns GDAL's transform. GDAL reports a missing transform
// as an error, which is mapped to ErrNoGeoTransform.
func (d *gdalDataset) GeoTransform() (georef.Transform, error) {
	gt, err := d.ds.GeoTransform()
	if err != nil {
		return georef.DefaultTransform, fmt.Errorf("%w: %v", ErrNoGeoTransform, err)
	}
	return georef.FromGDAL(gt), nil
}

func (d *gdalDataset) Size() (int, int) {
	st := d.ds.Structure()
	return st.SizeX, st.SizeY
}

func (d *gdalDataset) Close() error {
	return d.ds.Close()
}
