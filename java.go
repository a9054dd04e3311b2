package minescope

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/minescope/minescope/mc"
	"github.com/rs/zerolog/log"
)

// javaProtocolVersion is what handshakes announce. Servers answer a status
// request no matter which version asks.
const javaProtocolVersion = 755

// JavaClient speaks the post-1.7 server list ping: handshake, status
// request, one json response and a ping pong exchange for the latency.
type JavaClient struct {
	dialer   net.Dialer
	protocol int
}

func NewJavaClient() *JavaClient {
	return &JavaClient{protocol: javaProtocolVersion}
}

func (c *JavaClient) Status(ctx context.Context, target Target) (*ProbeResult, error) {
	start := time.Now()
	conn, err := c.dialer.DialContext(ctx, "tcp", target.Addr())
	if err != nil {
		return nil, classifyError(err, false)
	}
	defer conn.Close()
	connectMillis := time.Since(start).Milliseconds()

	stop := closeOnDone(ctx, conn)
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	mcConn := mc.NewMcConn(conn)
	handshake := mc.ServerBoundHandshake{
		ProtocolVersion: c.protocol,
		ServerAddress:   target.Host,
		ServerPort:      target.Port,
		NextState:       mc.StatusState,
	}
	if err := mcConn.WriteMcPacket(handshake); err != nil {
		return nil, classifyError(err, true)
	}
	if err := mcConn.WritePacket(mc.ServerBoundRequest{}.Marshal()); err != nil {
		return nil, classifyError(err, true)
	}

	packet, err := mcConn.ReadPacket()
	if err != nil {
		return nil, classifyReadError(err)
	}
	response, err := mc.UnmarshalClientBoundResponse(packet)
	if err != nil {
		return nil, protocolError(err)
	}

	var doc mc.ResponseJSON
	if err := json.Unmarshal([]byte(response.JSONResponse), &doc); err != nil {
		return nil, protocolError(err)
	}
	if doc.Version.Name == "" && doc.Players.Max == 0 && len(doc.Description) == 0 {
		return nil, protocolError(ErrStatusShape)
	}

	// The pong is best effort. Without one the connect time stands in for
	// the latency so the already received status is not thrown away.
	latency := connectMillis
	ping := mc.NewServerBoundPing()
	pingSent := time.Now()
	if err := mcConn.WritePacket(ping.Marshal()); err == nil {
		if pongPacket, pongErr := mcConn.ReadPacket(); pongErr == nil {
			latency = time.Since(pingSent).Milliseconds()
			pong, scanErr := mc.UnmarshalClientBoundPong(pongPacket)
			if scanErr != nil || pong.Payload != ping.Payload {
				log.Debug().Str("target", target.Addr()).
					Msg("pong did not echo the ping payload, latency may be imprecise")
			}
		}
	}

	result := &ProbeResult{
		Target:        target,
		Edition:       JavaEdition,
		Version:       doc.Version.Name,
		Protocol:      doc.Version.Protocol,
		OnlinePlayers: doc.Players.Online,
		MaxPlayers:    doc.Players.Max,
		Sample:        samplesFromJSON(doc.Players.Sample),
		MotdRaw:       doc.Description,
		LatencyMillis: latency,
		ProbedAt:      start,
	}

	motd, err := mc.DecodeMotd(doc.Description)
	if err != nil {
		return nil, protocolError(err)
	}
	result.Motd = motd

	favicon, err := mc.DecodeFavicon(doc.Favicon)
	if err != nil {
		log.Debug().Err(err).Str("target", target.Addr()).Msg("dropping malformed favicon")
	}
	result.Favicon = favicon

	return result, nil
}

// closeOnDone closes the conn when the context gets canceled so blocked
// reads return. Deadlines are left to the conn deadline, that way a ripe
// deadline always surfaces as a timeout and never as a closed conn. The
// returned stop func ends the watch once the caller is done with the conn.
func closeOnDone(ctx context.Context, conn net.Conn) func() {
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				conn.Close()
			}
		case <-stop:
		}
	}()
	return func() { close(stop) }
}
