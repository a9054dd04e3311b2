package minescope

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/minescope/minescope/mc"
)

// defaultBedrockWait bounds a single pong wait when the caller set no
// deadline of its own.
const defaultBedrockWait = 5 * time.Second

// BedrockClient speaks the raknet offline ping bedrock servers answer over
// udp. Datagrams get lost, so a silent first round earns one resend before
// the probe counts as timed out.
type BedrockClient struct {
	dialer net.Dialer
}

func NewBedrockClient() *BedrockClient {
	return &BedrockClient{}
}

func (c *BedrockClient) Status(ctx context.Context, target Target) (*ProbeResult, error) {
	start := time.Now()
	conn, err := c.dialer.DialContext(ctx, "udp", target.Addr())
	if err != nil {
		return nil, classifyError(err, false)
	}
	defer conn.Close()

	stop := closeOnDone(ctx, conn)
	defer stop()

	deadline := time.Now().Add(2 * defaultBedrockWait)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}

	// Wait half the budget for the first pong, the rest after the resend.
	pong, latency, err := c.exchange(conn, time.Now().Add(time.Until(deadline)/2))
	if err != nil {
		probeErr := classifyRawError(err)
		if probeErr.Kind != KindTimeout {
			return nil, probeErr
		}
		pong, latency, err = c.exchange(conn, deadline)
		if err != nil {
			return nil, classifyRawError(err)
		}
	}

	status, err := mc.ParseBedrockStatus(pong.ServerID)
	if err != nil {
		return nil, protocolError(err)
	}

	return &ProbeResult{
		Target:        target,
		Edition:       BedrockEdition,
		Version:       status.VersionName,
		Protocol:      status.ProtocolVersion,
		OnlinePlayers: status.OnlinePlayers,
		MaxPlayers:    status.MaxPlayers,
		Motd:          mc.DecodeLegacyMotd(status.Motd),
		LatencyMillis: latency,
		ServerEdition: status.Edition,
		Gamemode:      status.Gamemode,
		MapName:       status.MapName,
		ServerGUID:    pong.ServerGUID,
		PortV4:        uint16(status.PortV4),
		PortV6:        uint16(status.PortV6),
		ProbedAt:      start,
	}, nil
}

// exchange sends one ping and waits for its pong until the deadline.
// Datagrams that are no unconnected pong, punched through by some other
// service on the port, are skipped without failing the probe.
func (c *BedrockClient) exchange(conn net.Conn, deadline time.Time) (mc.UnconnectedPong, int64, error) {
	ping := mc.NewUnconnectedPing()
	sent := time.Now()
	if _, err := conn.Write(ping.Marshal()); err != nil {
		return mc.UnconnectedPong{}, 0, err
	}
	conn.SetReadDeadline(deadline)

	buf := make([]byte, 2048)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return mc.UnconnectedPong{}, 0, err
		}
		pong, err := mc.UnmarshalUnconnectedPong(buf[:n])
		if errors.Is(err, mc.ErrNoUnconnectedPong) {
			continue
		}
		if err != nil {
			return mc.UnconnectedPong{}, 0, err
		}
		return pong, time.Since(sent).Milliseconds(), nil
	}
}
