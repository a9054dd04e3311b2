package minescope_test

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/minescope/minescope"
)

func TestParseProbeMode(t *testing.T) {
	tt := []struct {
		input   string
		mode    minescope.ProbeMode
		wantErr bool
	}{
		{input: "", mode: minescope.ModeAuto},
		{input: "auto", mode: minescope.ModeAuto},
		{input: "Java", mode: minescope.ModeJava},
		{input: "BEDROCK", mode: minescope.ModeBedrock},
		{input: "double", mode: minescope.ModeDouble},
		{input: "modern", wantErr: true},
	}

	for _, tc := range tt {
		name := tc.input
		if name == "" {
			name = "empty"
		}
		t.Run(name, func(t *testing.T) {
			mode, err := minescope.ParseProbeMode(tc.input)
			if tc.wantErr {
				if !errors.Is(err, minescope.ErrUnknownMode) {
					t.Fatalf("expected error: %v - got: %v", minescope.ErrUnknownMode, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("didnt expect error: %v", err)
			}
			if mode != tc.mode {
				t.Errorf("got mode: %v - want: %v", mode, tc.mode)
			}
		})
	}
}

func TestProber_JavaMode(t *testing.T) {
	addr := startTCPServer(t, func(conn net.Conn) {
		serveModernStatus(conn, testStatusJSON, true)
	})

	prober := minescope.NewProber(minescope.ProberConfig{})
	result, err := prober.Probe(context.Background(), addr, minescope.ModeJava)
	if err != nil {
		t.Fatalf("didnt expect error: %v", err)
	}
	if result.Edition != minescope.JavaEdition {
		t.Errorf("got edition: %v - want: %v", result.Edition, minescope.JavaEdition)
	}
	if result.Version != "1.19.4" {
		t.Errorf("got version: %v", result.Version)
	}
}

func TestProber_JavaModeFailureIsFinal(t *testing.T) {
	// A bedrock listener answers on the port, but java mode must not
	// look at it.
	addr := startBedrockServer(t, bedrockServerConfig{serverID: testBedrockServerID})

	prober := minescope.NewProber(minescope.ProberConfig{})
	_, err := prober.Probe(context.Background(), addr, minescope.ModeJava)
	var probeErr *minescope.ProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected a probe error, got: %v", err)
	}
	if probeErr.Kind != minescope.KindConnection {
		t.Errorf("got kind: %v - want: %v", probeErr.Kind, minescope.KindConnection)
	}
}

func TestProber_BedrockMode(t *testing.T) {
	addr := startBedrockServer(t, bedrockServerConfig{serverID: testBedrockServerID})

	prober := minescope.NewProber(minescope.ProberConfig{})
	result, err := prober.Probe(context.Background(), addr, minescope.ModeBedrock)
	if err != nil {
		t.Fatalf("didnt expect error: %v", err)
	}
	if result.Edition != minescope.BedrockEdition {
		t.Errorf("got edition: %v - want: %v", result.Edition, minescope.BedrockEdition)
	}
}

func TestProber_LegacyFallback(t *testing.T) {
	kick := "§1\x00127\x001.4.7\x00old server\x003\x0020"
	addr := startTCPServer(t, func(conn net.Conn) {
		serveLegacyKick(conn, kick)
	})

	prober := minescope.NewProber(minescope.ProberConfig{})
	result, err := prober.Probe(context.Background(), addr, minescope.ModeJava)
	if err != nil {
		t.Fatalf("didnt expect error: %v", err)
	}
	if !result.Legacy {
		t.Error("expected a legacy result")
	}
	if result.Version != "1.4.7" || result.Protocol != 127 {
		t.Errorf("got version: %v (%d)", result.Version, result.Protocol)
	}
}

func TestProber_AutoFallsBackToBedrock(t *testing.T) {
	// Nothing listens on tcp here, only the bedrock side is up.
	addr := startBedrockServer(t, bedrockServerConfig{serverID: testBedrockServerID})

	prober := minescope.NewProber(minescope.ProberConfig{})
	result, err := prober.Probe(context.Background(), addr, minescope.ModeAuto)
	if err != nil {
		t.Fatalf("didnt expect error: %v", err)
	}
	if result.Edition != minescope.BedrockEdition {
		t.Errorf("got edition: %v - want: %v", result.Edition, minescope.BedrockEdition)
	}
}

func TestProber_AutoKeepsJavaProtocolError(t *testing.T) {
	// The tcp side answers with bytes no minecraft client ever sent, so
	// the port belongs to something java-shaped but broken. The healthy
	// bedrock listener on the same port must not mask that.
	addr := testAddr()
	startTCPServerAt(t, addr, func(conn net.Conn) {
		defer conn.Close()
		probe := make([]byte, 1)
		if _, err := io.ReadFull(conn, probe); err != nil {
			return
		}
		conn.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
		io.Copy(io.Discard, conn)
	})
	startBedrockServerAt(t, addr, bedrockServerConfig{serverID: testBedrockServerID})

	prober := minescope.NewProber(minescope.ProberConfig{})
	_, err := prober.Probe(context.Background(), addr, minescope.ModeAuto)
	var probeErr *minescope.ProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected a probe error, got: %v", err)
	}
	if probeErr.Kind != minescope.KindProtocol {
		t.Errorf("got kind: %v - want: %v", probeErr.Kind, minescope.KindProtocol)
	}
}

func TestProber_AutoDeadline(t *testing.T) {
	// The tcp side accepts and then stays silent.
	addr := startTCPServer(t, func(conn net.Conn) {
		io.Copy(io.Discard, conn)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*defaultChTimeout)
	defer cancel()
	prober := minescope.NewProber(minescope.ProberConfig{})
	start := time.Now()
	_, err := prober.Probe(ctx, addr, minescope.ModeAuto)
	var probeErr *minescope.ProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected a probe error, got: %v", err)
	}
	if probeErr.Kind != minescope.KindTimeout {
		t.Errorf("got kind: %v - want: %v", probeErr.Kind, minescope.KindTimeout)
	}
	if time.Since(start) > time.Second {
		t.Errorf("probe should respect its deadline, took: %v", time.Since(start))
	}
}

func TestProber_AddressError(t *testing.T) {
	prober := minescope.NewProber(minescope.ProberConfig{})
	_, err := prober.Probe(context.Background(), "   ", minescope.ModeAuto)
	if !errors.Is(err, minescope.ErrEmptyHost) {
		t.Fatalf("expected error: %v - got: %v", minescope.ErrEmptyHost, err)
	}
	var probeErr *minescope.ProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected a probe error, got: %v", err)
	}
	if probeErr.Kind != minescope.KindAddress {
		t.Errorf("got kind: %v - want: %v", probeErr.Kind, minescope.KindAddress)
	}
}

func TestProber_DoubleModePrefersJava(t *testing.T) {
	addr := testAddr()
	startTCPServerAt(t, addr, func(conn net.Conn) {
		serveModernStatus(conn, testStatusJSON, true)
	})
	startBedrockServerAt(t, addr, bedrockServerConfig{serverID: testBedrockServerID})

	prober := minescope.NewProber(minescope.ProberConfig{})
	result, err := prober.Probe(context.Background(), addr, minescope.ModeDouble)
	if err != nil {
		t.Fatalf("didnt expect error: %v", err)
	}
	if result.Edition != minescope.JavaEdition {
		t.Errorf("got edition: %v - want: %v", result.Edition, minescope.JavaEdition)
	}
}

func TestProber_DoubleModeTakesBedrockWhenJavaIsDown(t *testing.T) {
	addr := startBedrockServer(t, bedrockServerConfig{serverID: testBedrockServerID})

	prober := minescope.NewProber(minescope.ProberConfig{})
	result, err := prober.Probe(context.Background(), addr, minescope.ModeDouble)
	if err != nil {
		t.Fatalf("didnt expect error: %v", err)
	}
	if result.Edition != minescope.BedrockEdition {
		t.Errorf("got edition: %v - want: %v", result.Edition, minescope.BedrockEdition)
	}
}

func TestProber_ProbeDouble(t *testing.T) {
	addr := testAddr()
	startTCPServerAt(t, addr, func(conn net.Conn) {
		serveModernStatus(conn, testStatusJSON, true)
	})
	startBedrockServerAt(t, addr, bedrockServerConfig{serverID: testBedrockServerID})

	prober := minescope.NewProber(minescope.ProberConfig{})
	results, err := prober.ProbeDouble(context.Background(), addr)
	if err != nil {
		t.Fatalf("didnt expect error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected both editions to answer, got %d results", len(results))
	}
	if results[0].Edition != minescope.JavaEdition {
		t.Errorf("got first edition: %v - want: %v", results[0].Edition, minescope.JavaEdition)
	}
	if results[1].Edition != minescope.BedrockEdition {
		t.Errorf("got second edition: %v - want: %v", results[1].Edition, minescope.BedrockEdition)
	}
}

func TestProber_ProbeDoubleHalfUp(t *testing.T) {
	addr := startBedrockServer(t, bedrockServerConfig{serverID: testBedrockServerID})

	prober := minescope.NewProber(minescope.ProberConfig{})
	results, err := prober.ProbeDouble(context.Background(), addr)
	if err != nil {
		t.Fatalf("didnt expect error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected a single result, got %d", len(results))
	}
	if results[0].Edition != minescope.BedrockEdition {
		t.Errorf("got edition: %v - want: %v", results[0].Edition, minescope.BedrockEdition)
	}
}
