package raster

import (
	"fmt"
	"math"
	"os"

	"github.com/google/tiff"

	"github.com/kiesman99/tfwgen/pkg/georef"
)

// GeoTIFFDriverName is the name of the built-in GeoTIFF driver
const GeoTIFFDriverName = "geotiff"

// Baseline TIFF tags
const (
	tagImageWidth  = 256
	tagImageLength = 257
)

// GeoTIFF tags (GeoTIFF 1.0, section 2.6)
const (
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
)

const (
	keyGTRasterType    = 1025
	rasterPixelIsPoint = 2
)

// TIFF field types
const (
	dtByte   = 1
	dtShort  = 3
	dtLong   = 4
	dtDouble = 12
)

type geotiffDriver struct{}

func init() {
	Register(geotiffDriver{})
}

func (geotiffDriver) Name() string {
	return GeoTIFFDriverName
}

// Open parses the image file directories of a classic TIFF. Only tags are
// read, so any sample layout or compression is accepted.
func (geotiffDriver) Open(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	ds, err := newGeoTIFFDataset(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

type geotiffDataset struct {
	file          *os.File
	width, height int

	scale          []float64
	tiepoints      []float64
	transformation []float64
	pixelIsPoint   bool
}

func newGeoTIFFDataset(f *os.File) (*geotiffDataset, error) {
	t, err := tiff.Parse(f, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	ifds := t.IFDs()
	if len(ifds) == 0 {
		return nil, fmt.Errorf("%w: no image file directory", ErrFormat)
	}
	ifd := ifds[0]

	width, err := dimension(ifd, tagImageWidth)
	if err != nil {
		return nil, err
	}
	height, err := dimension(ifd, tagImageLength)
	if err != nil {
		return nil, err
	}

	ds := &geotiffDataset{
		file:   f,
		width:  width,
		height: height,
	}

	if ds.scale, err = doubles(ifd, tagModelPixelScale); err != nil {
		return nil, err
	}
	if ds.tiepoints, err = doubles(ifd, tagModelTiepoint); err != nil {
		return nil, err
	}
	if ds.transformation, err = doubles(ifd, tagModelTransformation); err != nil {
		return nil, err
	}

	keys, err := shorts(ifd, tagGeoKeyDirectory)
	if err != nil {
		return nil, err
	}
	if v, ok := geoKey(keys, keyGTRasterType); ok {
		ds.pixelIsPoint = v == rasterPixelIsPoint
	}

	return ds, nil
}

// GeoTransform derives the transform the way GDAL does: a non-zero pixel
// scale with a tiepoint wins over the model transformation matrix, and
// PixelIsPoint rasters are moved back to pixel-corner convention.
func (d *geotiffDataset) GeoTransform() (georef.Transform, error) {
	var gt [6]float64

	switch {
	case len(d.scale) >= 2 && d.scale[0] != 0 && d.scale[1] != 0 && len(d.tiepoints) >= 6:
		tp, s := d.tiepoints, d.scale
		gt = [6]float64{
			tp[3] - tp[0]*s[0],
			s[0],
			0,
			tp[4] + tp[1]*s[1],
			0,
			-s[1],
		}
	case len(d.transformation) == 16:
		m := d.transformation
		gt = [6]float64{m[3], m[0], m[1], m[7], m[4], m[5]}
	default:
		return georef.DefaultTransform, ErrNoGeoTransform
	}

	if d.pixelIsPoint {
		gt[0] -= gt[1]*0.5 + gt[2]*0.5
		gt[3] -= gt[4]*0.5 + gt[5]*0.5
	}

	for _, v := range gt {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return georef.DefaultTransform, fmt.Errorf("%w: non-finite coefficient", ErrNoGeoTransform)
		}
	}

	return georef.FromGDAL(gt), nil
}

func (d *geotiffDataset) Size() (int, int) {
	return d.width, d.height
}

func (d *geotiffDataset) Close() error {
	return d.file.Close()
}

// dimension reads a required SHORT or LONG image dimension.
func dimension(ifd tiff.IFD, tag uint16) (int, error) {
	if !ifd.HasField(tag) {
		return 0, fmt.Errorf("%w: tag %d missing", ErrFormat, tag)
	}
	field := ifd.GetField(tag)
	if field.Count() < 1 {
		return 0, fmt.Errorf("%w: tag %d is empty", ErrFormat, tag)
	}

	val := field.Value()
	b, order := val.Bytes(), val.Order()
	switch id := field.Type().ID(); {
	case id == dtShort && len(b) >= 2:
		return int(order.Uint16(b)), nil
	case id == dtLong && len(b) >= 4:
		return int(order.Uint32(b)), nil
	case id == dtByte && len(b) >= 1:
		return int(b[0]), nil
	default:
		return 0, fmt.Errorf("%w: tag %d has type %d, expected SHORT or LONG", ErrFormat, tag, id)
	}
}

func doubles(ifd tiff.IFD, tag uint16) ([]float64, error) {
	if !ifd.HasField(tag) {
		return nil, nil
	}
	field := ifd.GetField(tag)
	if id := field.Type().ID(); id != dtDouble {
		return nil, fmt.Errorf("%w: tag %d has type %d, expected DOUBLE", ErrFormat, tag, id)
	}

	val := field.Value()
	b, order := val.Bytes(), val.Order()
	if uint64(len(b)) < 8*uint64(field.Count()) {
		return nil, fmt.Errorf("%w: tag %d is truncated", ErrFormat, tag)
	}

	vals := make([]float64, field.Count())
	for i := range vals {
		vals[i] = math.Float64frombits(order.Uint64(b[8*i:]))
	}
	return vals, nil
}

func shorts(ifd tiff.IFD, tag uint16) ([]uint16, error) {
	if !ifd.HasField(tag) {
		return nil, nil
	}
	field := ifd.GetField(tag)
	if id := field.Type().ID(); id != dtShort {
		return nil, fmt.Errorf("%w: tag %d has type %d, expected SHORT", ErrFormat, tag, id)
	}

	val := field.Value()
	b, order := val.Bytes(), val.Order()
	if uint64(len(b)) < 2*uint64(field.Count()) {
		return nil, fmt.Errorf("%w: tag %d is truncated", ErrFormat, tag)
	}

	vals := make([]uint16, field.Count())
	for i := range vals {
		vals[i] = order.Uint16(b[2*i:])
	}
	return vals, nil
}

// geoKey looks up a SHORT-valued key stored directly in the key directory.
func geoKey(dir []uint16, id uint16) (uint16, bool) {
	if len(dir) < 4 {
		return 0, false
	}
	n := int(dir[3])
	for i := 0; i < n; i++ {
		k := 4 + 4*i
		if k+4 > len(dir) {
			break
		}
		if dir[k] == id && dir[k+1] == 0 {
			return dir[k+3], true
		}
	}
	return 0, false
}
