package minescope

import (
	"encoding/json"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/minescope/minescope/mc"
)

type Edition byte

const (
	JavaEdition Edition = iota
	BedrockEdition
)

func (edition Edition) String() string {
	var text string
	switch edition {
	case JavaEdition:
		text = "java"
	case BedrockEdition:
		text = "bedrock"
	}
	return text
}

func (edition Edition) MarshalJSON() ([]byte, error) {
	return json.Marshal(edition.String())
}

// Target is the endpoint a probe actually connects to. Host and Port follow
// an SRV redirect when one applied, which is also what the handshake
// announces, same as the vanilla client.
type Target struct {
	Host string `json:"host"`
	Port uint16 `json:"port"`
	SRV  bool   `json:"srv,omitempty"`
}

func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(int(t.Port)))
}

type PlayerSample struct {
	Name string    `json:"name"`
	ID   uuid.UUID `json:"id"`
}

// ProbeResult is the normalized status of a server, whichever protocol
// family produced it. The bedrock-only fields stay empty on java results
// and the other way around.
type ProbeResult struct {
	Target  Target  `json:"target"`
	Edition Edition `json:"edition"`
	// Legacy is set when the status came from the pre-1.7 ping.
	Legacy bool `json:"legacy,omitempty"`

	Version string `json:"version"`
	// Protocol is -1 when the server did not report one, which beta
	// servers never do.
	Protocol      int                `json:"protocol"`
	OnlinePlayers int                `json:"online_players"`
	MaxPlayers    int                `json:"max_players"`
	Sample        []PlayerSample     `json:"sample,omitempty"`
	Motd          []mc.StyledSegment `json:"motd"`
	MotdRaw       json.RawMessage    `json:"motd_raw,omitempty"`
	Favicon       mc.Favicon         `json:"favicon"`
	LatencyMillis int64              `json:"latency_ms"`

	ServerEdition string `json:"server_edition,omitempty"`
	Gamemode      string `json:"gamemode,omitempty"`
	MapName       string `json:"map,omitempty"`
	ServerGUID    int64  `json:"server_guid,omitempty"`
	PortV4        uint16 `json:"port_v4,omitempty"`
	PortV6        uint16 `json:"port_v6,omitempty"`

	ProbedAt time.Time `json:"probed_at"`
}

// MotdPlain flattens the motd to text without styling.
func (r ProbeResult) MotdPlain() string {
	return mc.PlainMotd(r.Motd)
}

func samplesFromJSON(in []mc.PlayerSampleJSON) []PlayerSample {
	if len(in) == 0 {
		return nil
	}
	samples := make([]PlayerSample, 0, len(in))
	for _, entry := range in {
		id, err := uuid.Parse(entry.ID)
		if err != nil {
			id = uuid.Nil
		}
		samples = append(samples, PlayerSample{Name: entry.Name, ID: id})
	}
	return samples
}
