package mc

import (
	"encoding/json"
	"time"
)

const (
	ServerBoundHandshakePacketID byte = 0x00
	ServerBoundRequestPacketID   byte = 0x00
	ClientBoundResponsePacketID  byte = 0x00
	ServerBoundPingPacketID      byte = 0x01
	ClientBoundPongPacketID      byte = 0x01

	StatusState = 1
)

// ServerBoundHandshake opens the connection and announces the state the
// client wants to switch to.
type ServerBoundHandshake struct {
	ProtocolVersion int
	ServerAddress   string
	ServerPort      uint16
	NextState       int
}

func (pk ServerBoundHandshake) Marshal() Packet {
	return MarshalPacket(
		ServerBoundHandshakePacketID,
		VarInt(pk.ProtocolVersion),
		String(pk.ServerAddress),
		UnsignedShort(pk.ServerPort),
		VarInt(pk.NextState),
	)
}

func UnmarshalServerBoundHandshake(packet Packet) (ServerBoundHandshake, error) {
	var hs ServerBoundHandshake

	if packet.ID != ServerBoundHandshakePacketID {
		return hs, ErrInvalidPacketID
	}

	var (
		protocolVersion VarInt
		serverAddress   String
		serverPort      UnsignedShort
		nextState       VarInt
	)
	if err := packet.Scan(
		&protocolVersion,
		&serverAddress,
		&serverPort,
		&nextState,
	); err != nil {
		return hs, err
	}

	hs = ServerBoundHandshake{
		ProtocolVersion: int(protocolVersion),
		ServerAddress:   string(serverAddress),
		ServerPort:      uint16(serverPort),
		NextState:       int(nextState),
	}
	return hs, nil
}

func (pk ServerBoundHandshake) IsStatusRequest() bool {
	return pk.NextState == StatusState
}

// ServerBoundRequest asks the server for its status. It carries no fields.
type ServerBoundRequest struct{}

func (pk ServerBoundRequest) Marshal() Packet {
	return MarshalPacket(
		ServerBoundRequestPacketID,
	)
}

// ClientBoundResponse carries the status document as a JSON string.
type ClientBoundResponse struct {
	JSONResponse String
}

func (pk ClientBoundResponse) Marshal() Packet {
	return MarshalPacket(
		ClientBoundResponsePacketID,
		pk.JSONResponse,
	)
}

func UnmarshalClientBoundResponse(packet Packet) (ClientBoundResponse, error) {
	var pk ClientBoundResponse

	if packet.ID != ClientBoundResponsePacketID {
		return pk, ErrInvalidPacketID
	}

	if err := packet.Scan(
		&pk.JSONResponse,
	); err != nil {
		return pk, err
	}

	return pk, nil
}

// NewServerBoundPing returns a ping carrying the current time in milliseconds.
func NewServerBoundPing() ServerBoundPing {
	millisecondTime := time.Now().UnixNano() / 1e6
	return ServerBoundPing{
		Payload: Long(millisecondTime),
	}
}

type ServerBoundPing struct {
	Payload Long
}

func (pk ServerBoundPing) Marshal() Packet {
	return MarshalPacket(
		ServerBoundPingPacketID,
		pk.Payload,
	)
}

// ClientBoundPong must echo the payload of the ping that solicited it.
type ClientBoundPong struct {
	Payload Long
}

func (pk ClientBoundPong) Marshal() Packet {
	return MarshalPacket(
		ClientBoundPongPacketID,
		pk.Payload,
	)
}

func UnmarshalClientBoundPong(packet Packet) (ClientBoundPong, error) {
	var pk ClientBoundPong

	if packet.ID != ClientBoundPongPacketID {
		return pk, ErrInvalidPacketID
	}

	err := packet.Scan(&pk.Payload)
	return pk, err
}

// ResponseJSON is the status document servers send in a ClientBoundResponse.
// Description is kept raw because servers send either a plain string or a
// chat component object there.
type ResponseJSON struct {
	Version     VersionJSON     `json:"version"`
	Players     PlayersJSON     `json:"players"`
	Description json.RawMessage `json:"description,omitempty"`
	Favicon     string          `json:"favicon,omitempty"`
}

type VersionJSON struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

type PlayersJSON struct {
	Max    int                `json:"max"`
	Online int                `json:"online"`
	Sample []PlayerSampleJSON `json:"sample,omitempty"`
}

type PlayerSampleJSON struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}
