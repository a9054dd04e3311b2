package mc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

const (
	UnconnectedPingPacketID byte = 0x01
	UnconnectedPongPacketID byte = 0x1C

	// unconnectedPongHeaderSize covers the packet id, both guid fields, the
	// magic and the server id length prefix.
	unconnectedPongHeaderSize = 1 + 8 + 8 + 16 + 2
)

// RakNetMagic is the fixed byte sequence identifying offline RakNet messages.
var RakNetMagic = []byte{
	0x00, 0xFF, 0xFF, 0x00, 0xFE, 0xFE, 0xFE, 0xFE,
	0xFD, 0xFD, 0xFD, 0xFD, 0x12, 0x34, 0x56, 0x78,
}

var (
	ErrNoUnconnectedPong = errors.New("response is not an unconnected pong")
	ErrBedrockFieldCount = errors.New("unexpected bedrock status field count")
)

// UnconnectedPing is the RakNet offline message that solicits a status pong.
type UnconnectedPing struct {
	Time       int64
	ClientGUID int64
}

func NewUnconnectedPing() UnconnectedPing {
	return UnconnectedPing{
		Time:       time.Now().UnixNano() / int64(time.Millisecond),
		ClientGUID: rand.Int63(),
	}
}

func (pk UnconnectedPing) Marshal() []byte {
	bb := make([]byte, 0, 1+8+len(RakNetMagic)+8)
	bb = append(bb, UnconnectedPingPacketID)
	bb = appendUint64LE(bb, uint64(pk.Time))
	bb = append(bb, RakNetMagic...)
	return appendUint64LE(bb, uint64(pk.ClientGUID))
}

// UnconnectedPong is the answer to an UnconnectedPing. ServerID carries the
// semicolon-separated status fields.
type UnconnectedPong struct {
	Time       int64
	ServerGUID int64
	ServerID   string
}

func (pk UnconnectedPong) Marshal() []byte {
	id := []byte(pk.ServerID)
	bb := make([]byte, 0, unconnectedPongHeaderSize+len(id))
	bb = append(bb, UnconnectedPongPacketID)
	bb = appendUint64LE(bb, uint64(pk.Time))
	bb = appendUint64LE(bb, uint64(pk.ServerGUID))
	bb = append(bb, RakNetMagic...)
	bb = append(bb, byte(len(id)>>8), byte(len(id)))
	return append(bb, id...)
}

// UnmarshalUnconnectedPong decodes a single datagram. Datagrams with the
// wrong packet id or magic fail with ErrNoUnconnectedPong so callers can
// skip strays and keep reading.
func UnmarshalUnconnectedPong(data []byte) (UnconnectedPong, error) {
	var pk UnconnectedPong

	if len(data) < unconnectedPongHeaderSize || data[0] != UnconnectedPongPacketID {
		return pk, ErrNoUnconnectedPong
	}
	if !bytes.Equal(data[17:33], RakNetMagic) {
		return pk, ErrNoUnconnectedPong
	}

	pk.Time = int64(binary.LittleEndian.Uint64(data[1:9]))
	pk.ServerGUID = int64(binary.LittleEndian.Uint64(data[9:17]))

	length := int(binary.BigEndian.Uint16(data[33:35]))
	id := data[unconnectedPongHeaderSize:]
	if length < len(id) {
		id = id[:length]
	}
	pk.ServerID = string(id)
	return pk, nil
}

// BedrockStatus is the decoded server id string of an unconnected pong.
//
// Only the first six fields are guaranteed; older servers stop after the
// player counts, newer ones append the server guid, a second motd line used
// as the map name, the gamemode and the advertised ports.
type BedrockStatus struct {
	Edition         string
	Motd            string
	ProtocolVersion int
	VersionName     string
	OnlinePlayers   int
	MaxPlayers      int
	MapName         string
	Gamemode        string
	PortV4          int
	PortV6          int
}

// ParseBedrockStatus splits a server id string into its fields. Fields past
// the twelfth are ignored.
func ParseBedrockStatus(serverID string) (BedrockStatus, error) {
	fields := strings.Split(serverID, ";")
	if len(fields) < 6 {
		return BedrockStatus{}, ErrBedrockFieldCount
	}

	protocol, err := strconv.Atoi(fields[2])
	if err != nil {
		return BedrockStatus{}, fmt.Errorf("bedrock protocol version: %v", err)
	}
	online, err := strconv.Atoi(fields[4])
	if err != nil {
		return BedrockStatus{}, fmt.Errorf("bedrock online count: %v", err)
	}
	max, err := strconv.Atoi(fields[5])
	if err != nil {
		return BedrockStatus{}, fmt.Errorf("bedrock max count: %v", err)
	}

	status := BedrockStatus{
		Edition:         fields[0],
		Motd:            fields[1],
		ProtocolVersion: protocol,
		VersionName:     fields[3],
		OnlinePlayers:   online,
		MaxPlayers:      max,
	}

	if len(fields) > 7 {
		status.MapName = fields[7]
	}
	if len(fields) > 8 {
		status.Gamemode = fields[8]
	}
	if len(fields) > 10 {
		status.PortV4, _ = strconv.Atoi(fields[10])
	}
	if len(fields) > 11 {
		status.PortV6, _ = strconv.Atoi(fields[11])
	}

	return status, nil
}

func appendUint64LE(bb []byte, n uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], n)
	return append(bb, buf[:]...)
}
