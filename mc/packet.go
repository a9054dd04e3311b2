package mc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

var (
	ErrInvalidPacketID = errors.New("invalid packet id")
	ErrPacketTooBig    = errors.New("packet contains too much data")
	ErrPacketTooSmall  = errors.New("packet length too short")
)

// MaxPacketSize is the largest packet body ReadPacket accepts.
const MaxPacketSize = 2097151

// Packet is the raw representation of a message sent between client and server
type Packet struct {
	ID   byte
	Data []byte
}

// McPacket is any packet struct that can turn itself into a raw Packet.
type McPacket interface {
	Marshal() Packet
}

// Scan decodes and copies the Packet data into the fields
func (pk Packet) Scan(fields ...FieldDecoder) error {
	return ScanFields(bytes.NewReader(pk.Data), fields...)
}

// Marshal encodes the packet and all its fields
func (pk *Packet) Marshal() []byte {
	var packedData []byte
	data := []byte{pk.ID}
	data = append(data, pk.Data...)
	packetLength := VarInt(int32(len(data))).Encode()
	packedData = append(packedData, packetLength...)

	return append(packedData, data...)
}

// ScanFields decodes a byte stream into fields
func ScanFields(r DecodeReader, fields ...FieldDecoder) error {
	for _, field := range fields {
		if err := field.Decode(r); err != nil {
			return err
		}
	}
	return nil
}

// MarshalPacket transforms an ID and Fields into a Packet
func MarshalPacket(ID byte, fields ...FieldEncoder) Packet {
	var pkt Packet
	pkt.ID = ID

	for _, v := range fields {
		pkt.Data = append(pkt.Data, v.Encode()...)
	}

	return pkt
}

// ReadPacket decodes a byte stream and cuts the first Packet out
func ReadPacket(r DecodeReader) (Packet, error) {
	var packetLength VarInt
	if err := packetLength.Decode(r); err != nil {
		return Packet{}, err
	}

	if packetLength < 1 {
		return Packet{}, ErrPacketTooSmall
	}
	if packetLength > MaxPacketSize {
		return Packet{}, ErrPacketTooBig
	}

	data := make([]byte, packetLength)
	if _, err := io.ReadFull(r, data); err != nil {
		return Packet{}, fmt.Errorf("reading the content of the packet failed: %w", err)
	}

	return Packet{
		ID:   data[0],
		Data: data[1:],
	}, nil
}
