// Package fit writes FIT weight-scale files in the subset of the FIT
// protocol Garmin Connect accepts for body-composition uploads.
package fit

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
)

const (
	headerSize      = 12
	protocolVersion = 16
	profileVersion  = 108

	// FIT timestamps count seconds since 1989-12-31T00:00:00Z.
	epochOffset = 631065600

	fileTypeWeight = 9
)

// FIT base types. The high bit marks multi-byte endian-sensitive types.
const (
	baseEnum    = 0x00
	baseUint8   = 0x02
	baseUint16  = 0x84
	baseUint32  = 0x86
	baseUint32z = 0x8C
)

// Global message numbers.
const (
	msgFileID      = 0
	msgDeviceInfo  = 23
	msgWeightScale = 30
	msgFileCreator = 49
)

// Local message types, one per message kind written.
const (
	lmsgFileID = iota
	lmsgFileCreator
	lmsgDeviceInfo
	lmsgWeightScale
)

// field is one encoded field value: definition number, base type, and the
// raw (already scaled) value. Absent optional fields carry the base type's
// invalid value so absence survives into the binary form.
type field struct {
	num      uint8
	baseType uint8
	raw      uint32
}

func baseTypeSize(bt uint8) int {
	switch bt {
	case baseEnum, baseUint8:
		return 1
	case baseUint16:
		return 2
	default:
		return 4
	}
}

func invalidValue(bt uint8) uint32 {
	switch bt {
	case baseEnum, baseUint8:
		return 0xFF
	case baseUint16:
		return 0xFFFF
	case baseUint32z:
		return 0x00
	default:
		return 0xFFFFFFFF
	}
}

// scaled converts an optional metric into its raw wire value, multiplying by
// the field's scale factor. nil maps to the invalid value, never to zero.
func scaled(v *float64, scale float64, bt uint8) uint32 {
	if v == nil {
		return invalidValue(bt)
	}
	return uint32(math.Round(*v * scale))
}

// WeightScale is one weight-scale measurement ready for encoding. All
// fields except Timestamp and WeightKG are optional.
type WeightScale struct {
	Timestamp         time.Time
	WeightKG          float64
	PercentFat        *float64
	PercentHydration  *float64
	VisceralFatMass   *float64
	BoneMass          *float64
	MuscleMass        *float64
	BasalMet          *float64
	PhysiqueRating    *float64
	ActiveMet         *float64
	MetabolicAge      *float64
	VisceralFatRating *float64
	BMI               *float64
}

// WeightEncoder builds a complete FIT weight file in memory.
type WeightEncoder struct {
	buf bytes.Buffer
}

// NewWeightEncoder creates an encoder with a placeholder header; the data
// size and CRC are filled in by Finish.
func NewWeightEncoder() *WeightEncoder {
	e := &WeightEncoder{}
	e.writeHeader(0)
	return e
}

func (e *WeightEncoder) writeHeader(dataSize uint32) {
	var hdr [headerSize]byte
	hdr[0] = headerSize
	hdr[1] = protocolVersion
	binary.LittleEndian.PutUint16(hdr[2:4], profileVersion)
	binary.LittleEndian.PutUint32(hdr[4:8], dataSize)
	copy(hdr[8:12], ".FIT")
	e.buf.Write(hdr[:])
}

func fitTime(t time.Time) uint32 {
	return uint32(t.Unix() - epochOffset)
}

// writeMessage emits a definition record followed by the data record.
func (e *WeightEncoder) writeMessage(lmsg uint8, global uint16, fields []field) {
	// Definition record: header, reserved, little-endian arch, global
	// message number, field count, then (num, size, base type) triples.
	e.buf.WriteByte(0x40 | lmsg)
	e.buf.WriteByte(0)
	e.buf.WriteByte(0)
	var g [2]byte
	binary.LittleEndian.PutUint16(g[:], global)
	e.buf.Write(g[:])
	e.buf.WriteByte(uint8(len(fields)))
	for _, f := range fields {
		e.buf.WriteByte(f.num)
		e.buf.WriteByte(uint8(baseTypeSize(f.baseType)))
		e.buf.WriteByte(f.baseType)
	}

	// Data record.
	e.buf.WriteByte(lmsg)
	for _, f := range fields {
		switch baseTypeSize(f.baseType) {
		case 1:
			e.buf.WriteByte(uint8(f.raw))
		case 2:
			var b [2]byte
			binary.LittleEndian.PutUint16(b[:], uint16(f.raw))
			e.buf.Write(b[:])
		default:
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], f.raw)
			e.buf.Write(b[:])
		}
	}
}

// WriteFileInfo writes the file_id message. Only the creation time and the
// weight file type are known; device identity fields stay invalid.
func (e *WeightEncoder) WriteFileInfo(timeCreated time.Time) {
	e.writeMessage(lmsgFileID, msgFileID, []field{
		{3, baseUint32z, invalidValue(baseUint32z)},
		{4, baseUint32, fitTime(timeCreated)},
		{1, baseUint16, invalidValue(baseUint16)},
		{2, baseUint16, invalidValue(baseUint16)},
		{5, baseUint16, invalidValue(baseUint16)},
		{0, baseEnum, fileTypeWeight},
	})
}

// WriteFileCreator writes the file_creator message.
func (e *WeightEncoder) WriteFileCreator() {
	e.writeMessage(lmsgFileCreator, msgFileCreator, []field{
		{0, baseUint16, invalidValue(baseUint16)},
		{1, baseUint8, invalidValue(baseUint8)},
	})
}

// WriteDeviceInfo writes a device_info message carrying the measurement
// timestamp.
func (e *WeightEncoder) WriteDeviceInfo(timestamp time.Time) {
	e.writeMessage(lmsgDeviceInfo, msgDeviceInfo, []field{
		{253, baseUint32, fitTime(timestamp)},
		{3, baseUint32z, invalidValue(baseUint32z)},
		{2, baseUint16, invalidValue(baseUint16)},
		{4, baseUint16, invalidValue(baseUint16)},
	})
}

// WriteWeightScale writes the weight_scale measurement message. Scale
// factors follow the FIT profile: masses and percentages x100, metabolic
// rates x4, BMI x10.
func (e *WeightEncoder) WriteWeightScale(m WeightScale) {
	weight := m.WeightKG
	e.writeMessage(lmsgWeightScale, msgWeightScale, []field{
		{253, baseUint32, fitTime(m.Timestamp)},
		{0, baseUint16, scaled(&weight, 100, baseUint16)},
		{1, baseUint16, scaled(m.PercentFat, 100, baseUint16)},
		{2, baseUint16, scaled(m.PercentHydration, 100, baseUint16)},
		{3, baseUint16, scaled(m.VisceralFatMass, 100, baseUint16)},
		{4, baseUint16, scaled(m.BoneMass, 100, baseUint16)},
		{5, baseUint16, scaled(m.MuscleMass, 100, baseUint16)},
		{7, baseUint16, scaled(m.BasalMet, 4, baseUint16)},
		{8, baseUint8, scaled(m.PhysiqueRating, 1, baseUint8)},
		{9, baseUint16, scaled(m.ActiveMet, 4, baseUint16)},
		{10, baseUint8, scaled(m.MetabolicAge, 1, baseUint8)},
		{11, baseUint8, scaled(m.VisceralFatRating, 1, baseUint8)},
		{13, baseUint16, scaled(m.BMI, 10, baseUint16)},
	})
}

// Finish patches the header with the final data size, appends the file CRC,
// and returns the complete file bytes.
func (e *WeightEncoder) Finish() []byte {
	data := e.buf.Bytes()
	dataSize := uint32(len(data) - headerSize)
	binary.LittleEndian.PutUint32(data[4:8], dataSize)

	out := make([]byte, len(data), len(data)+2)
	copy(out, data)
	var crcBytes [2]byte
	binary.LittleEndian.PutUint16(crcBytes[:], Checksum(out))
	return append(out, crcBytes[:]...)
}
