package georef

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// NewRecord converts a corner-based transform into a world file record.
// The origin is shifted by half a pixel along each axis to reach the center
// of the top-left pixel; rotation terms are copied but not used in the shift.
func NewRecord(t Transform) Record {
	return Record{
		PixelWidth:     t.PixelWidth,
		RowRotation:    t.RowRotation,
		ColumnRotation: t.ColumnRotation,
		PixelHeight:    t.PixelHeight,
		CenterX:        t.OriginX + t.PixelWidth/2,
		CenterY:        t.OriginY + t.PixelHeight/2,
	}
}

// Lines returns the six formatted world file lines without terminators.
func (r Record) Lines() []string {
	values := [6]float64{r.PixelWidth, r.RowRotation, r.ColumnRotation, r.PixelHeight, r.CenterX, r.CenterY}
	lines := make([]string, len(values))
	for i, v := range values {
		lines[i] = fmt.Sprintf("%.8f", v)
	}
	return lines
}

// WriteTo writes the record in world file format to w.
func (r Record) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	for _, line := range r.Lines() {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.WriteTo(w)
}

// WorldFilePath returns the world file path for a raster path: the last
// extension of the base name is replaced by WorldFileExt. Leading dots of
// the base name never start an extension, so ".hidden" becomes
// ".hidden.tfw".
func WorldFilePath(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return path + WorldFileExt
	}
	name := filepath.Base(path)
	if !strings.Contains(strings.TrimLeft(name, "."), ".") {
		return path + WorldFileExt
	}
	return strings.TrimSuffix(path, ext) + WorldFileExt
}

// WriteWorldFile creates or truncates filename and writes rec to it.
func WriteWorldFile(filename string, rec Record) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	_, err = rec.WriteTo(file)
	return err
}
