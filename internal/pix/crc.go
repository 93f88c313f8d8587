package pix

const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Checksum16 computes the CRC-16/CCITT-FALSE value used by the BR Code "63" field.
// Each character contributes its code point to the high byte of the register.
func Checksum16(input string) uint16 {
	crc := uint16(crcInitial)
	for _, r := range input {
		crc ^= uint16(r) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
