package udpcon

import "encoding/binary"

// packetClass is the single byte that identifies what kind of payload a
// datagram carries. It is the 5th-from-last byte of every framed datagram.
type packetClass byte

const (
	classHeartbeat         packetClass = 0
	classUnreliableMessage packetClass = 1
	classSequencedMessage  packetClass = 2
)

// headerSize is the length, in bytes, of the trailing protocol-id+class
// header every framed datagram carries.
const headerSize = 5

// sequencedHeaderSize is the length of the packet-number trailer written
// immediately before the header on a classSequencedMessage datagram.
const sequencedHeaderSize = 2

// encodeHeader appends the wire header to data in place and returns the
// resulting slice. The payload bytes in data are never copied or shifted;
// the header is always written at the tail, which is why callers should
// pass a slice backed by spare capacity when they can.
func encodeHeader(data []byte, class packetClass, protocolID uint32) []byte {
	data = append(data, byte(class))
	var idBuf [4]byte
	binary.LittleEndian.PutUint32(idBuf[:], protocolID)
	return append(data, idBuf[:]...)
}

// encodeSequencedHeader appends the 2-byte little-endian packet number that
// precedes the header on a sequenced datagram. Call this before
// encodeHeader so the final layout is [...payload | seq | class | protoID].
func encodeSequencedHeader(data []byte, packetNumber uint16) []byte {
	var seqBuf [2]byte
	binary.LittleEndian.PutUint16(seqBuf[:], packetNumber)
	return append(data, seqBuf[:]...)
}

// decodeHeader reads the trailing header off data. If the protocol id does
// not match localProtocolID, or the class byte is not recognized, ok is
// false and data is returned unmodified: the caller must drop the datagram
// without any further side effect. On success it returns the packet class
// and the payload with the header removed.
func decodeHeader(data []byte, localProtocolID uint32) (class packetClass, payload []byte, ok bool) {
	if len(data) < headerSize {
		return 0, data, false
	}

	start := len(data) - headerSize
	protocolID := binary.LittleEndian.Uint32(data[start+1:])
	if protocolID != localProtocolID {
		return 0, data, false
	}

	c := packetClass(data[start])
	switch c {
	case classHeartbeat, classUnreliableMessage, classSequencedMessage:
	default:
		return 0, data, false
	}

	return c, data[:start], true
}

// decodeSequencedHeader reads the 2-byte packet number trailing a
// sequenced payload. The caller must have already confirmed
// len(data) >= sequencedHeaderSize.
func decodeSequencedHeader(data []byte) (packetNumber uint16, payload []byte) {
	start := len(data) - sequencedHeaderSize
	return binary.LittleEndian.Uint16(data[start:]), data[:start]
}
