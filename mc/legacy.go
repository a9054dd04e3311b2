package mc

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"
)

const (
	LegacyPingPacketID byte = 0xFE
	LegacyPingPayload  byte = 0x01
	LegacyKickPacketID byte = 0xFF

	// legacyResponsePrefix marks the post-1.4 response layout.
	legacyResponsePrefix = sectionSign + "1"

	// betaVersionName stands in for the server version, which the beta
	// layout does not carry.
	betaVersionName = ">=1.8b/1.3"
)

var (
	ErrNoLegacyKick     = errors.New("response is not a legacy kick packet")
	ErrOddLengthUTF16   = errors.New("utf-16 payload has odd byte count")
	ErrLegacyFieldCount = errors.New("unexpected legacy status field count")
)

// LegacyStatusRequest is what a client sends to ask for a pre-1.7 status.
// Beta servers only read the first byte and leave the payload byte unread.
func LegacyStatusRequest() []byte {
	return []byte{LegacyPingPacketID, LegacyPingPayload}
}

// LegacyStatus is the decoded form of a pre-1.7 status response.
type LegacyStatus struct {
	ProtocolVersion int
	VersionName     string
	Motd            string
	OnlinePlayers   int
	MaxPlayers      int
	// Beta is set when the response used the three-field beta layout.
	Beta bool
}

// ReadLegacyStatus reads a kick packet from r and decodes the status
// carried in it. The payload length is a count of UTF-16 code units.
func ReadLegacyStatus(r io.Reader) (LegacyStatus, error) {
	var status LegacyStatus

	header := make([]byte, 3)
	if _, err := io.ReadFull(r, header); err != nil {
		return status, err
	}
	if header[0] != LegacyKickPacketID {
		return status, ErrNoLegacyKick
	}

	length := int(int16(uint16(header[1])<<8 | uint16(header[2])))
	if length < 0 {
		return status, fmt.Errorf("negative legacy payload length %d", length)
	}

	payload := make([]byte, length*2)
	if _, err := io.ReadFull(r, payload); err != nil {
		return status, err
	}

	text, err := DecodeUTF16BEString(payload)
	if err != nil {
		return status, err
	}
	return parseLegacyText(text)
}

// UnmarshalLegacyStatus decodes a complete kick packet held in memory.
func UnmarshalLegacyStatus(data []byte) (LegacyStatus, error) {
	return ReadLegacyStatus(strings.NewReader(string(data)))
}

// MarshalLegacyKick builds the kick packet a legacy server would answer with.
func MarshalLegacyKick(text string) []byte {
	payload := EncodeUTF16BEString(text)
	codeUnits := len(payload) / 2

	bb := make([]byte, 0, len(payload)+3)
	bb = append(bb, LegacyKickPacketID, byte(codeUnits>>8), byte(codeUnits))
	return append(bb, payload...)
}

func parseLegacyText(text string) (LegacyStatus, error) {
	if strings.HasPrefix(text, legacyResponsePrefix+"\x00") {
		return parseLegacyFields(strings.Split(text, "\x00"))
	}
	return parseBetaFields(strings.Split(text, sectionSign))
}

// parseLegacyFields handles the 1.4/1.5 layout: a fixed marker, the protocol
// version, the server version, the motd and both player counts, separated by
// NUL characters.
func parseLegacyFields(fields []string) (LegacyStatus, error) {
	if len(fields) != 6 {
		return LegacyStatus{}, ErrLegacyFieldCount
	}

	protocol := 0
	if fields[1] != "" {
		var err error
		protocol, err = strconv.Atoi(fields[1])
		if err != nil {
			return LegacyStatus{}, fmt.Errorf("legacy protocol version: %v", err)
		}
	}
	online, err := strconv.Atoi(fields[4])
	if err != nil {
		return LegacyStatus{}, fmt.Errorf("legacy online count: %v", err)
	}
	max, err := strconv.Atoi(fields[5])
	if err != nil {
		return LegacyStatus{}, fmt.Errorf("legacy max count: %v", err)
	}

	return LegacyStatus{
		ProtocolVersion: protocol,
		VersionName:     fields[2],
		Motd:            fields[3],
		OnlinePlayers:   online,
		MaxPlayers:      max,
	}, nil
}

// parseBetaFields handles the beta layout: motd, online count and max count
// separated by section signs. The motd may contain section signs itself, so
// the counts are taken from the right.
func parseBetaFields(fields []string) (LegacyStatus, error) {
	if len(fields) < 3 {
		return LegacyStatus{}, ErrLegacyFieldCount
	}

	online, err := strconv.Atoi(fields[len(fields)-2])
	if err != nil {
		return LegacyStatus{}, fmt.Errorf("beta online count: %v", err)
	}
	max, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return LegacyStatus{}, fmt.Errorf("beta max count: %v", err)
	}

	return LegacyStatus{
		ProtocolVersion: -1,
		VersionName:     betaVersionName,
		Motd:            strings.Join(fields[:len(fields)-2], sectionSign),
		OnlinePlayers:   online,
		MaxPlayers:      max,
		Beta:            true,
	}, nil
}

// DecodeUTF16BEString decodes a big-endian UTF-16 byte sequence.
func DecodeUTF16BEString(bb []byte) (string, error) {
	if len(bb)%2 != 0 {
		return "", ErrOddLengthUTF16
	}

	units := make([]uint16, len(bb)/2)
	for i := range units {
		units[i] = uint16(bb[2*i])<<8 | uint16(bb[2*i+1])
	}
	return string(utf16.Decode(units)), nil
}

// EncodeUTF16BEString encodes s as big-endian UTF-16.
func EncodeUTF16BEString(s string) []byte {
	units := utf16.Encode([]rune(s))
	bb := make([]byte, 0, len(units)*2)
	for _, unit := range units {
		bb = append(bb, byte(unit>>8), byte(unit))
	}
	return bb
}
