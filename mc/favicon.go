package mc

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FaviconPrefix is the only favicon form the status protocol defines.
const FaviconPrefix = "data:image/png;base64,"

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

var (
	ErrFaviconFormat    = errors.New("favicon is not a png data uri")
	ErrFaviconSignature = errors.New("favicon payload is not a png image")
)

// Favicon is a decoded server icon.
type Favicon struct {
	MIME string `json:"mime"`
	Raw  []byte `json:"raw"`
}

func (f Favicon) Empty() bool {
	return len(f.Raw) == 0
}

// MarshalJSON renders an absent favicon as null instead of an empty object.
func (f Favicon) MarshalJSON() ([]byte, error) {
	if f.Empty() {
		return []byte("null"), nil
	}
	type favicon Favicon
	return json.Marshal(favicon(f))
}

// DecodeFavicon decodes the data uri favicon of a modern status response.
// An empty input yields an empty Favicon without an error; anything else
// must be base64 png data, though servers are allowed to break the payload
// with whitespace.
func DecodeFavicon(s string) (Favicon, error) {
	if s == "" {
		return Favicon{}, nil
	}
	if !strings.HasPrefix(s, FaviconPrefix) {
		return Favicon{}, ErrFaviconFormat
	}

	payload := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, strings.TrimPrefix(s, FaviconPrefix))

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Favicon{}, fmt.Errorf("favicon base64: %v", err)
	}
	if len(raw) < len(pngSignature) || !bytes.Equal(raw[:len(pngSignature)], pngSignature) {
		return Favicon{}, ErrFaviconSignature
	}

	return Favicon{MIME: "image/png", Raw: raw}, nil
}
