package minescope

import (
	"context"
	"net"
	"time"

	"github.com/minescope/minescope/mc"
)

// LegacyJavaClient speaks the pre-1.7 server list ping, a 0xFE 0x01 probe
// answered with a kick packet that smuggles the status into its text.
type LegacyJavaClient struct {
	dialer net.Dialer
}

func NewLegacyJavaClient() *LegacyJavaClient {
	return &LegacyJavaClient{}
}

func (c *LegacyJavaClient) Status(ctx context.Context, target Target) (*ProbeResult, error) {
	start := time.Now()
	conn, err := c.dialer.DialContext(ctx, "tcp", target.Addr())
	if err != nil {
		return nil, classifyError(err, false)
	}
	defer conn.Close()
	// The kick carries no echo to time against, the connect time is the
	// best latency estimate this protocol offers.
	latency := time.Since(start).Milliseconds()

	stop := closeOnDone(ctx, conn)
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(mc.LegacyStatusRequest()); err != nil {
		return nil, classifyError(err, true)
	}
	status, err := mc.ReadLegacyStatus(conn)
	if err != nil {
		return nil, classifyRawError(err)
	}

	return &ProbeResult{
		Target:        target,
		Edition:       JavaEdition,
		Legacy:        true,
		Version:       status.VersionName,
		Protocol:      status.ProtocolVersion,
		OnlinePlayers: status.OnlinePlayers,
		MaxPlayers:    status.MaxPlayers,
		Motd:          mc.DecodeLegacyMotd(status.Motd),
		LatencyMillis: latency,
		ProbedAt:      start,
	}, nil
}
