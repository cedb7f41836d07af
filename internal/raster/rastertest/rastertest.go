// Package rastertest builds small synthetic GeoTIFF files for tests.
package rastertest

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"sort"
	"testing"
)

// Options describes the GeoTIFF to build. Nil slices omit the tag.
type Options struct {
	Width, Height  int
	PixelScale     []float64 // ModelPixelScaleTag (sx, sy, sz)
	Tiepoint       []float64 // ModelTiepointTag (i, j, k, x, y, z)
	Transformation []float64 // ModelTransformationTag, 4x4 row-major
	PixelIsPoint   bool
	BigEndian      bool

	// Sample layout; zero values give 8-bit single band BlackIsZero.
	BitsPerSample   int
	SamplesPerPixel int
	Photometric     int
	SampleFormat    int // omitted when zero
}

// NorthUp returns options for a north-up raster whose top-left pixel corner
// sits at (originX, originY) with square pixels of the given size.
func NorthUp(originX, originY, pixelSize float64) Options {
	return Options{
		Width:      4,
		Height:     3,
		PixelScale: []float64{pixelSize, pixelSize, 0},
		Tiepoint:   []float64{0, 0, 0, originX, originY, 0},
	}
}

type entry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

// Encode returns the bytes of an uncompressed TIFF carrying the requested
// georeferencing tags.
func Encode(opts Options) []byte {
	if opts.Width <= 0 {
		opts.Width = 1
	}
	if opts.Height <= 0 {
		opts.Height = 1
	}
	if opts.BitsPerSample <= 0 {
		opts.BitsPerSample = 8
	}
	if opts.SamplesPerPixel <= 0 {
		opts.SamplesPerPixel = 1
	}
	if opts.Photometric <= 0 {
		opts.Photometric = 1
	}

	var order binary.ByteOrder = binary.LittleEndian
	magic := []byte("II")
	if opts.BigEndian {
		order = binary.BigEndian
		magic = []byte("MM")
	}

	short := func(v uint16) []byte {
		b := make([]byte, 2)
		order.PutUint16(b, v)
		return b
	}
	long := func(v uint32) []byte {
		b := make([]byte, 4)
		order.PutUint32(b, v)
		return b
	}
	doubles := func(vs []float64) []byte {
		b := make([]byte, 8*len(vs))
		for i, v := range vs {
			order.PutUint64(b[8*i:], math.Float64bits(v))
		}
		return b
	}

	rowLen := (opts.Width*opts.SamplesPerPixel*opts.BitsPerSample + 7) / 8
	pixels := make([]byte, rowLen*opts.Height)
	for i := range pixels {
		pixels[i] = byte(i)
	}

	var bps []byte
	for i := 0; i < opts.SamplesPerPixel; i++ {
		bps = append(bps, short(uint16(opts.BitsPerSample))...)
	}

	entries := []entry{
		{256, 4, 1, long(uint32(opts.Width))},
		{257, 4, 1, long(uint32(opts.Height))},
		{258, 3, uint32(opts.SamplesPerPixel), bps},
		{259, 3, 1, short(1)},
		{262, 3, 1, short(uint16(opts.Photometric))},
		{273, 4, 1, nil}, // strip offset, filled in below
		{277, 3, 1, short(uint16(opts.SamplesPerPixel))},
		{278, 4, 1, long(uint32(opts.Height))},
		{279, 4, 1, long(uint32(len(pixels)))},
	}
	if opts.SampleFormat > 0 {
		var sf []byte
		for i := 0; i < opts.SamplesPerPixel; i++ {
			sf = append(sf, short(uint16(opts.SampleFormat))...)
		}
		entries = append(entries, entry{339, 3, uint32(opts.SamplesPerPixel), sf})
	}
	if opts.PixelScale != nil {
		entries = append(entries, entry{33550, 12, uint32(len(opts.PixelScale)), doubles(opts.PixelScale)})
	}
	if opts.Tiepoint != nil {
		entries = append(entries, entry{33922, 12, uint32(len(opts.Tiepoint)), doubles(opts.Tiepoint)})
	}
	if opts.Transformation != nil {
		entries = append(entries, entry{34264, 12, uint32(len(opts.Transformation)), doubles(opts.Transformation)})
	}
	if opts.PixelIsPoint {
		keys := []uint16{
			1, 1, 0, 1,
			1025, 0, 1, 2, // GTRasterTypeGeoKey = RasterPixelIsPoint
		}
		var b []byte
		for _, k := range keys {
			b = append(b, short(k)...)
		}
		entries = append(entries, entry{34735, 3, uint32(len(keys)), b})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	ifdLen := 2 + 12*len(entries) + 4
	pixelOffset := 8 + ifdLen
	dataOffset := pixelOffset + len(pixels)
	if dataOffset%2 == 1 {
		dataOffset++
	}

	var ifd, extra bytes.Buffer
	ifd.Write(short(uint16(len(entries))))
	for _, e := range entries {
		if e.tag == 273 {
			e.data = long(uint32(pixelOffset))
		}
		ifd.Write(short(e.tag))
		ifd.Write(short(e.typ))
		ifd.Write(long(e.count))
		if len(e.data) <= 4 {
			slot := make([]byte, 4)
			copy(slot, e.data)
			ifd.Write(slot)
			continue
		}
		ifd.Write(long(uint32(dataOffset + extra.Len())))
		extra.Write(e.data)
	}
	ifd.Write(long(0)) // no further IFDs

	var out bytes.Buffer
	out.Write(magic)
	out.Write(short(42))
	out.Write(long(8))
	out.Write(ifd.Bytes())
	out.Write(pixels)
	for out.Len() < dataOffset {
		out.WriteByte(0)
	}
	out.Write(extra.Bytes())
	return out.Bytes()
}

// WriteFile writes an encoded GeoTIFF to path, failing the test on error.
func WriteFile(tb testing.TB, path string, opts Options) {
	tb.Helper()
	if err := os.WriteFile(path, Encode(opts), 0o644); err != nil {
		tb.Fatalf("writing test GeoTIFF: %v", err)
	}
}
