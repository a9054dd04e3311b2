package mc

import (
	"bufio"
	"net"
)

// McConn wraps a net.Conn with a buffered reader for packet exchanges.
type McConn struct {
	netConn net.Conn
	reader  DecodeReader
}

func NewMcConn(conn net.Conn) McConn {
	return McConn{
		netConn: conn,
		reader:  bufio.NewReader(conn),
	}
}

func (conn McConn) ReadPacket() (Packet, error) {
	return ReadPacket(conn.reader)
}

func (conn McConn) WritePacket(p Packet) error {
	_, err := conn.netConn.Write(p.Marshal())
	return err
}

func (conn McConn) WriteMcPacket(pk McPacket) error {
	p := pk.Marshal()
	_, err := conn.netConn.Write(p.Marshal())
	return err
}
