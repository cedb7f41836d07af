package georef

// WorldFileExt is the extension given to generated world files
const WorldFileExt = ".tfw"

// Transform is an affine georeferencing transform mapping pixel
// column/row to world coordinates:
//
//	X = OriginX + col*PixelWidth + row*RowRotation
//	Y = OriginY + col*ColumnRotation + row*PixelHeight
//
// OriginX/OriginY locate the top-left corner of the top-left pixel.
type Transform struct {
	OriginX        float64 // c0
	PixelWidth     float64 // c1
	RowRotation    float64 // c2
	OriginY        float64 // c3
	ColumnRotation float64 // c4
	PixelHeight    float64 // c5, negative for north-up images
}

// DefaultTransform is what raster libraries report for a dataset without
// georeferencing: pixel coordinates, unit scale.
var DefaultTransform = Transform{PixelWidth: 1, PixelHeight: 1}

// FromGDAL builds a Transform from the six coefficients in GDAL order.
func FromGDAL(gt [6]float64) Transform {
	return Transform{
		OriginX:        gt[0],
		PixelWidth:     gt[1],
		RowRotation:    gt[2],
		OriginY:        gt[3],
		ColumnRotation: gt[4],
		PixelHeight:    gt[5],
	}
}

// GDAL returns the coefficients in GDAL order.
func (t Transform) GDAL() [6]float64 {
	return [6]float64{t.OriginX, t.PixelWidth, t.RowRotation, t.OriginY, t.ColumnRotation, t.PixelHeight}
}

// IsDefault reports whether t equals DefaultTransform
func (t Transform) IsDefault() bool {
	return t == DefaultTransform
}

// Record holds the six world file values in file order
type Record struct {
	PixelWidth     float64
	RowRotation    float64
	ColumnRotation float64
	PixelHeight    float64
	CenterX        float64 // X of the center of the top-left pixel
	CenterY        float64 // Y of the center of the top-left pixel
}
