package fit

// crcTable drives the nibble-at-a-time CRC-16 defined by the FIT protocol.
var crcTable = [16]uint16{
	0x0000, 0xCC01, 0xD801, 0x1401,
	0xF001, 0x3C01, 0x2801, 0xE401,
	0xA001, 0x6C01, 0x7801, 0xB401,
	0x5001, 0x9C01, 0x8801, 0x4401,
}

// Checksum computes the FIT CRC-16 over data.
func Checksum(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		// low nibble
		tmp := crcTable[crc&0xF]
		crc = (crc >> 4) & 0x0FFF
		crc = crc ^ tmp ^ crcTable[b&0xF]

		// high nibble
		tmp = crcTable[crc&0xF]
		crc = (crc >> 4) & 0x0FFF
		crc = crc ^ tmp ^ crcTable[(b>>4)&0xF]
	}
	return crc
}
