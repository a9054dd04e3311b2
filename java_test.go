package minescope_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	mcnet "github.com/Tnze/go-mc/net"
	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/minescope/minescope"
	"github.com/minescope/minescope/mc"
)

var defaultChTimeout = 25 * time.Millisecond

var (
	portLock sync.Mutex
	port     *int16
)

// To make sure every test gets its own unique port
func testAddr() string {
	portLock.Lock()
	defer portLock.Unlock()
	if port == nil {
		port = new(int16)
		*port = 26000
	}
	addr := fmt.Sprintf("127.0.0.1:%d", *port)
	*port++
	return addr
}

func targetOf(t *testing.T, addr string) minescope.Target {
	t.Helper()
	host, portText, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatal(err)
	}
	portNumber, err := strconv.Atoi(portText)
	if err != nil {
		t.Fatal(err)
	}
	return minescope.Target{Host: host, Port: uint16(portNumber)}
}

func startTCPServer(t *testing.T, handle func(net.Conn)) string {
	t.Helper()
	addr := testAddr()
	startTCPServerAt(t, addr, handle)
	return addr
}

func startTCPServerAt(t *testing.T, addr string, handle func(net.Conn)) {
	t.Helper()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go handle(conn)
		}
	}()
}

const testStatusJSON = `{"version":{"name":"1.19.4","protocol":762},` +
	`"players":{"max":100,"online":5,"sample":[{"name":"thinkofdeath","id":"4566e69f-c907-48ee-8d71-d7ba5aa00d20"}]},` +
	`"description":{"text":"Hello ","extra":[{"text":"world","color":"red"}]},` +
	`"favicon":"data:image/png;base64,iVBORw0KGgo="}`

// serveModernStatus acts like a post-1.7 server for a single status probe.
func serveModernStatus(conn net.Conn, statusJSON string, withPong bool) {
	defer conn.Close()
	mcConn := mc.NewMcConn(conn)
	packet, err := mcConn.ReadPacket()
	if err != nil {
		return
	}
	handshake, err := mc.UnmarshalServerBoundHandshake(packet)
	if err != nil || !handshake.IsStatusRequest() {
		return
	}
	if _, err := mcConn.ReadPacket(); err != nil {
		return
	}
	response := mc.ClientBoundResponse{JSONResponse: mc.String(statusJSON)}
	if err := mcConn.WritePacket(response.Marshal()); err != nil {
		return
	}
	if !withPong {
		return
	}
	ping, err := mcConn.ReadPacket()
	if err != nil {
		return
	}
	var payload mc.Long
	if err := ping.Scan(&payload); err != nil {
		return
	}
	mcConn.WritePacket(mc.ClientBoundPong{Payload: payload}.Marshal())
}

func TestJavaClient_Status(t *testing.T) {
	addr := startTCPServer(t, func(conn net.Conn) {
		serveModernStatus(conn, testStatusJSON, true)
	})

	client := minescope.NewJavaClient()
	result, err := client.Status(context.Background(), targetOf(t, addr))
	if err != nil {
		t.Fatalf("didnt expect error: %v", err)
	}

	if result.Edition != minescope.JavaEdition {
		t.Errorf("got edition: %v - want: %v", result.Edition, minescope.JavaEdition)
	}
	if result.Legacy {
		t.Error("modern status should not be marked legacy")
	}
	if result.Version != "1.19.4" || result.Protocol != 762 {
		t.Errorf("got version: %v (%d)", result.Version, result.Protocol)
	}
	if result.OnlinePlayers != 5 || result.MaxPlayers != 100 {
		t.Errorf("got players: %d/%d", result.OnlinePlayers, result.MaxPlayers)
	}
	expectedSample := []minescope.PlayerSample{{
		Name: "thinkofdeath",
		ID:   uuid.MustParse("4566e69f-c907-48ee-8d71-d7ba5aa00d20"),
	}}
	if !cmp.Equal(result.Sample, expectedSample) {
		t.Errorf("got sample: %#v - want: %#v", result.Sample, expectedSample)
	}
	expectedMotd := []mc.StyledSegment{
		{Text: "Hello "},
		{Text: "world", Color: "red"},
	}
	if !cmp.Equal(result.Motd, expectedMotd) {
		t.Errorf("got motd: %#v - want: %#v", result.Motd, expectedMotd)
	}
	if result.MotdPlain() != "Hello world" {
		t.Errorf("got plain motd: %q", result.MotdPlain())
	}
	if result.Favicon.Empty() || result.Favicon.MIME != "image/png" {
		t.Errorf("expected a decoded favicon, got: %#v", result.Favicon)
	}
	if result.LatencyMillis < 0 {
		t.Errorf("latency should never be negative, got: %d", result.LatencyMillis)
	}
}

func TestJavaClient_StatusWithoutPong(t *testing.T) {
	addr := startTCPServer(t, func(conn net.Conn) {
		serveModernStatus(conn, testStatusJSON, false)
	})

	client := minescope.NewJavaClient()
	result, err := client.Status(context.Background(), targetOf(t, addr))
	if err != nil {
		t.Fatalf("didnt expect error: %v", err)
	}
	if result.Version != "1.19.4" {
		t.Errorf("got version: %v", result.Version)
	}
}

func TestJavaClient_MalformedJSON(t *testing.T) {
	addr := startTCPServer(t, func(conn net.Conn) {
		serveModernStatus(conn, "{this is not json", true)
	})

	client := minescope.NewJavaClient()
	_, err := client.Status(context.Background(), targetOf(t, addr))
	var probeErr *minescope.ProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected a probe error, got: %v", err)
	}
	if probeErr.Kind != minescope.KindProtocol {
		t.Errorf("got kind: %v - want: %v", probeErr.Kind, minescope.KindProtocol)
	}
	if !probeErr.Dialed {
		t.Error("the connection came up, Dialed should be set")
	}
}

func TestJavaClient_GarbageBytes(t *testing.T) {
	addr := startTCPServer(t, func(conn net.Conn) {
		defer conn.Close()
		mcConn := mc.NewMcConn(conn)
		if _, err := mcConn.ReadPacket(); err != nil {
			return
		}
		if _, err := mcConn.ReadPacket(); err != nil {
			return
		}
		conn.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	})

	client := minescope.NewJavaClient()
	_, err := client.Status(context.Background(), targetOf(t, addr))
	var probeErr *minescope.ProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected a probe error, got: %v", err)
	}
	if probeErr.Kind != minescope.KindProtocol {
		t.Errorf("got kind: %v - want: %v", probeErr.Kind, minescope.KindProtocol)
	}
}

func TestJavaClient_ServerClosesEarly(t *testing.T) {
	addr := startTCPServer(t, func(conn net.Conn) {
		conn.Close()
	})

	client := minescope.NewJavaClient()
	_, err := client.Status(context.Background(), targetOf(t, addr))
	var probeErr *minescope.ProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected a probe error, got: %v", err)
	}
	if probeErr.Kind != minescope.KindConnection {
		t.Errorf("got kind: %v - want: %v", probeErr.Kind, minescope.KindConnection)
	}
	if !probeErr.Dialed {
		t.Error("the connection came up, Dialed should be set")
	}
}

func TestJavaClient_ClosedPort(t *testing.T) {
	client := minescope.NewJavaClient()
	_, err := client.Status(context.Background(), targetOf(t, testAddr()))
	var probeErr *minescope.ProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected a probe error, got: %v", err)
	}
	if probeErr.Kind != minescope.KindConnection {
		t.Errorf("got kind: %v - want: %v", probeErr.Kind, minescope.KindConnection)
	}
	if probeErr.Dialed {
		t.Error("nothing was listening, Dialed should not be set")
	}
}

func TestJavaClient_Timeout(t *testing.T) {
	addr := startTCPServer(t, func(conn net.Conn) {
		// keep the conn open without ever answering
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultChTimeout)
	defer cancel()
	client := minescope.NewJavaClient()
	start := time.Now()
	_, err := client.Status(ctx, targetOf(t, addr))
	var probeErr *minescope.ProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected a probe error, got: %v", err)
	}
	if probeErr.Kind != minescope.KindTimeout {
		t.Errorf("got kind: %v - want: %v", probeErr.Kind, minescope.KindTimeout)
	}
	if time.Since(start) > time.Second {
		t.Errorf("deadline should have fired after %v, took: %v", defaultChTimeout, time.Since(start))
	}
}

// The server side here is a different protocol implementation, so this
// catches framing mistakes both ends would otherwise agree on.
func TestJavaClient_Interop(t *testing.T) {
	addr := testAddr()
	listener, err := mcnet.ListenMC(addr)
	if err != nil {
		t.Fatal(err)
	}
	announcedCh := make(chan string, 1)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(conn mcnet.Conn) {
				defer conn.Close()
				handshake, err := conn.ReadPacket()
				if err != nil || handshake.ID != 0x00 {
					return
				}
				var (
					protocol pk.VarInt
					hostname pk.String
					hostPort pk.UnsignedShort
					next     pk.VarInt
				)
				if err := handshake.Scan(&protocol, &hostname, &hostPort, &next); err != nil {
					return
				}
				announcedCh <- fmt.Sprintf("%s:%d/%d", hostname, hostPort, next)
				if _, err := conn.ReadPacket(); err != nil {
					return
				}
				if err := conn.WritePacket(pk.Marshal(0x00, pk.String(testStatusJSON))); err != nil {
					return
				}
				ping, err := conn.ReadPacket()
				if err != nil {
					return
				}
				var payload pk.Long
				if err := ping.Scan(&payload); err != nil {
					return
				}
				conn.WritePacket(pk.Marshal(0x01, payload))
			}(conn)
		}
	}()

	target := targetOf(t, addr)
	client := minescope.NewJavaClient()
	result, err := client.Status(context.Background(), target)
	if err != nil {
		t.Fatalf("didnt expect error: %v", err)
	}
	if result.Version != "1.19.4" {
		t.Errorf("got version: %v", result.Version)
	}

	select {
	case announced := <-announcedCh:
		expected := fmt.Sprintf("%s:%d/1", target.Host, target.Port)
		if announced != expected {
			t.Errorf("handshake announced: %v - want: %v", announced, expected)
		}
	case <-time.After(defaultChTimeout):
		t.Fatal("no handshake arrived")
	}
}
