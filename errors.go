package minescope

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/minescope/minescope/mc"
)

var (
	ErrEmptyHost      = errors.New("address contains no host")
	ErrPortOutOfRange = errors.New("port must be between 0 and 65535")
	ErrUnknownMode    = errors.New("unknown probe mode")
	ErrStatusShape    = errors.New("no recognizable status fields in response")
)

type ErrorKind byte

const (
	KindAddress ErrorKind = iota
	KindConnection
	KindTimeout
	KindProtocol
)

func (kind ErrorKind) String() string {
	var text string
	switch kind {
	case KindAddress:
		text = "address"
	case KindConnection:
		text = "connection"
	case KindTimeout:
		text = "timeout"
	case KindProtocol:
		text = "protocol"
	}
	return text
}

// ProbeError is what every failed probe attempt returns. Kind decides how
// the failure is reported and whether another protocol gets a try, Err
// keeps the underlying cause for logs.
type ProbeError struct {
	Kind ErrorKind
	// Dialed marks that the transport connection came up before the
	// failure. A dead port and a server that answered with something
	// unusable trigger different fallbacks.
	Dialed bool
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

func addressError(err error) *ProbeError {
	return &ProbeError{Kind: KindAddress, Err: err}
}

func protocolError(err error) *ProbeError {
	return &ProbeError{Kind: KindProtocol, Dialed: true, Err: err}
}

// classifyRawError is for replies read without the modern packet framing.
// io trouble is a transport failure, anything else means the server
// answered with bytes the decoder could not use.
func classifyRawError(err error) *ProbeError {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return classifyError(err, true)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return classifyError(err, true)
	}
	return protocolError(err)
}

// classifyReadError separates servers that answered with unusable bytes,
// which is a protocol problem, from transport trouble during the read.
func classifyReadError(err error) *ProbeError {
	switch {
	case errors.Is(err, mc.ErrVarIntTooBig),
		errors.Is(err, mc.ErrPacketTooBig),
		errors.Is(err, mc.ErrPacketTooSmall),
		errors.Is(err, mc.ErrInvalidPacketID):
		return protocolError(err)
	}
	return classifyError(err, true)
}

// classifyError sorts a transport failure into timeout or connection
// trouble. Deadline errors surface differently depending on whether the
// conn deadline or the context expired first, so both get checked.
func classifyError(err error, dialed bool) *ProbeError {
	kind := KindConnection
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			kind = KindTimeout
		}
	}
	return &ProbeError{Kind: kind, Dialed: dialed, Err: err}
}
