package photo

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rwcarlsen/goexif/tiff"

	"github.com/teslashibe/go-glance/pkg/location"
)

// EXIF/TIFF field types.
const (
	typeByte     = 1
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
)

// Tags written by AnnotateWithLocation.
const (
	tagGPSIFD       = 0x8825
	tagGPSVersion   = 0x0000
	tagGPSLatRef    = 0x0001
	tagGPSLat       = 0x0002
	tagGPSLonRef    = 0x0003
	tagGPSLon       = 0x0004
	tagGPSAltRef    = 0x0005
	tagGPSAlt       = 0x0006
	tagGPSHPosError = 0x001f
)

const (
	markerSOI  = 0xd8
	markerEOI  = 0xd9
	markerSOS  = 0xda
	markerAPP0 = 0xe0
	markerAPP1 = 0xe1
)

var exifHeader = []byte("Exif\x00\x00")

var be = binary.BigEndian

// ErrNotJPEG is returned when JPEG-tagged bytes are not a JPEG stream.
var ErrNotJPEG = errors.New("photo: not a JPEG stream")

// IsJPEG reports whether mimeType names a JPEG image.
func IsJPEG(mimeType string) bool {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return true
	}
	return false
}

// AnnotateWithLocation writes the GPS position (and accuracy, altitude when
// known) into the image's EXIF block. Non-JPEG images are returned unchanged.
// Existing EXIF tags are kept; only the GPS IFD is added or replaced.
func AnnotateWithLocation(img []byte, mimeType string, loc *location.Snapshot) ([]byte, error) {
	if !IsJPEG(mimeType) {
		return img, nil
	}
	if loc == nil {
		return nil, errors.New("photo: no location")
	}
	if len(img) < 4 || img[0] != 0xff || img[1] != markerSOI {
		return nil, ErrNotJPEG
	}

	segments, rest, err := splitJPEG(img)
	if err != nil {
		return nil, err
	}

	var existing []byte
	for _, seg := range segments {
		if isExifSegment(seg) {
			existing = seg[4+len(exifHeader):]
			break
		}
	}
	app1, err := buildGPSExif(existing, loc)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(img)+len(app1))
	out = append(out, 0xff, markerSOI)
	// JFIF wants APP0 first.
	for _, seg := range segments {
		if seg[1] == markerAPP0 {
			out = append(out, seg...)
		}
	}
	out = append(out, app1...)
	for _, seg := range segments {
		if seg[1] == markerAPP0 || isExifSegment(seg) {
			continue
		}
		out = append(out, seg...)
	}
	return append(out, rest...), nil
}

// splitJPEG returns the marker segments before the scan data and everything
// from the first SOS marker onward.
func splitJPEG(img []byte) ([][]byte, []byte, error) {
	var segments [][]byte
	pos := 2
	for pos < len(img) {
		if img[pos] != 0xff {
			return nil, nil, fmt.Errorf("%w: bad marker at %d", ErrNotJPEG, pos)
		}
		if pos+1 >= len(img) {
			break
		}
		m := img[pos+1]
		switch {
		case m == 0xff:
			pos++
			continue
		case m == markerSOS || m == markerEOI:
			return segments, img[pos:], nil
		case m == 0x01 || (m >= 0xd0 && m <= 0xd7):
			segments = append(segments, img[pos:pos+2])
			pos += 2
			continue
		}
		if pos+4 > len(img) {
			break
		}
		n := int(be.Uint16(img[pos+2:]))
		if n < 2 || pos+2+n > len(img) {
			return nil, nil, fmt.Errorf("%w: truncated segment 0x%02x", ErrNotJPEG, m)
		}
		segments = append(segments, img[pos:pos+2+n])
		pos += 2 + n
	}
	return nil, nil, fmt.Errorf("%w: no scan data", ErrNotJPEG)
}

func isExifSegment(seg []byte) bool {
	return seg[1] == markerAPP1 && len(seg) >= 4+len(exifHeader) && bytes.Equal(seg[4:4+len(exifHeader)], exifHeader)
}

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	value []byte
}

// ifd0 decodes the first IFD of a TIFF stream with goexif, returning its
// entries, the link to the next IFD and the byte order.
func ifd0(data []byte) ([]ifdEntry, uint32, binary.ByteOrder, error) {
	if len(data) < 8 {
		return nil, 0, nil, errors.New("photo: short exif data")
	}
	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, 0, nil, errors.New("photo: bad exif byte order")
	}
	r := bytes.NewReader(data)
	if _, err := r.Seek(int64(order.Uint32(data[4:])), 0); err != nil {
		return nil, 0, nil, err
	}
	dir, next, err := tiff.DecodeDir(r, order)
	if err != nil {
		return nil, 0, nil, err
	}
	entries := make([]ifdEntry, 0, len(dir.Tags)+1)
	for _, t := range dir.Tags {
		entries = append(entries, ifdEntry{t.Id, uint16(t.Type), t.Count, t.Val})
	}
	return entries, uint32(next), order, nil
}

// buildGPSExif returns a complete APP1 segment. When existing TIFF data is
// given it is kept byte for byte so every offset inside it stays valid; a
// rewritten IFD0 pointing at a new GPS IFD is appended and the header is
// repointed at it.
func buildGPSExif(existing []byte, loc *location.Snapshot) ([]byte, error) {
	if math.IsNaN(loc.Latitude) || math.Abs(loc.Latitude) > 90 ||
		math.IsNaN(loc.Longitude) || math.Abs(loc.Longitude) > 180 {
		return nil, fmt.Errorf("photo: coordinates out of range: %f,%f", loc.Latitude, loc.Longitude)
	}

	var (
		entries []ifdEntry
		next    uint32
		order   binary.ByteOrder = binary.BigEndian
		tiffBuf = []byte{'M', 'M', 0, 42, 0, 0, 0, 0}
	)
	if len(existing) > 0 {
		if e, n, o, err := ifd0(existing); err == nil {
			entries, next, order = e, n, o
			tiffBuf = append([]byte(nil), existing...)
		}
	}

	kept := entries[:0]
	for _, e := range entries {
		if e.tag != tagGPSIFD {
			kept = append(kept, e)
		}
	}
	entries = append(kept, ifdEntry{tag: tagGPSIFD, typ: typeLong, count: 1})

	if len(tiffBuf)%2 == 1 {
		tiffBuf = append(tiffBuf, 0)
	}
	ifdOff := uint32(len(tiffBuf))
	// The IFD0 layout does not depend on the pointer value, so size it first.
	entries[len(entries)-1].value = longValue(order, 0)
	gpsOff := ifdOff + uint32(len(encodeIFD(order, entries, ifdOff, next)))
	setGPSPointer(entries, longValue(order, gpsOff))

	latRef, lonRef := "N", "E"
	if loc.Latitude < 0 {
		latRef = "S"
	}
	if loc.Longitude < 0 {
		lonRef = "W"
	}
	gps := []ifdEntry{
		{tagGPSVersion, typeByte, 4, []byte{2, 3, 0, 0}},
		{tagGPSLatRef, typeASCII, 2, []byte(latRef + "\x00")},
		{tagGPSLat, typeRational, 3, dmsValue(order, math.Abs(loc.Latitude))},
		{tagGPSLonRef, typeASCII, 2, []byte(lonRef + "\x00")},
		{tagGPSLon, typeRational, 3, dmsValue(order, math.Abs(loc.Longitude))},
	}
	if loc.Altitude != nil {
		ref := byte(0)
		if *loc.Altitude < 0 {
			ref = 1
		}
		gps = append(gps,
			ifdEntry{tagGPSAltRef, typeByte, 1, []byte{ref}},
			ifdEntry{tagGPSAlt, typeRational, 1, rationalValue(order, math.Abs(*loc.Altitude), 100)},
		)
	}
	if loc.Accuracy > 0 {
		gps = append(gps, ifdEntry{tagGPSHPosError, typeRational, 1, rationalValue(order, loc.Accuracy, 100)})
	}

	order.PutUint32(tiffBuf[4:], ifdOff)
	tiffBuf = append(tiffBuf, encodeIFD(order, entries, ifdOff, next)...)
	tiffBuf = append(tiffBuf, encodeIFD(order, gps, gpsOff, 0)...)

	n := 2 + len(exifHeader) + len(tiffBuf)
	if n > math.MaxUint16 {
		return nil, errors.New("photo: exif block too large")
	}
	seg := []byte{0xff, markerAPP1, byte(n >> 8), byte(n)}
	seg = append(seg, exifHeader...)
	return append(seg, tiffBuf...), nil
}

// setGPSPointer updates the GPS IFD entry, wherever sorting has moved it.
func setGPSPointer(entries []ifdEntry, v []byte) {
	for i := range entries {
		if entries[i].tag == tagGPSIFD {
			entries[i].value = v
		}
	}
}

// encodeIFD lays out one IFD at TIFF offset off, with values longer than
// four bytes placed right after it. next links the following IFD.
func encodeIFD(order binary.ByteOrder, entries []ifdEntry, off, next uint32) []byte {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	dataOff := off + uint32(2+12*len(entries)+4)
	var head, data bytes.Buffer
	binary.Write(&head, order, uint16(len(entries)))
	for _, e := range entries {
		binary.Write(&head, order, e.tag)
		binary.Write(&head, order, e.typ)
		binary.Write(&head, order, e.count)
		if len(e.value) <= 4 {
			var inline [4]byte
			copy(inline[:], e.value)
			head.Write(inline[:])
			continue
		}
		binary.Write(&head, order, dataOff+uint32(data.Len()))
		data.Write(e.value)
		if data.Len()%2 == 1 {
			data.WriteByte(0)
		}
	}
	binary.Write(&head, order, next)
	return append(head.Bytes(), data.Bytes()...)
}

func longValue(order binary.ByteOrder, v uint32) []byte {
	b := make([]byte, 4)
	order.PutUint32(b, v)
	return b
}

func rationalValue(order binary.ByteOrder, v float64, denom uint32) []byte {
	b := make([]byte, 8)
	order.PutUint32(b, uint32(math.Round(v*float64(denom))))
	order.PutUint32(b[4:], denom)
	return b
}

// dmsValue encodes decimal degrees as degrees, minutes and seconds rationals.
func dmsValue(order binary.ByteOrder, deg float64) []byte {
	d := math.Floor(deg)
	minutes := (deg - d) * 60
	m := math.Floor(minutes)
	sec := (minutes - m) * 60

	b := make([]byte, 0, 24)
	b = append(b, rationalValue(order, d, 1)...)
	b = append(b, rationalValue(order, m, 1)...)
	return append(b, rationalValue(order, sec, 10000)...)
}
