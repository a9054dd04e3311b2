package minescope

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
)

const (
	DefaultJavaPort    uint16 = 25565
	DefaultBedrockPort uint16 = 19132
)

// Resolver turns user written addresses into connect targets. Java lookups
// consult the _minecraft._tcp SRV record when the user pinned no port,
// bedrock never does since SRV redirection is a java convention.
type Resolver struct {
	// LookupSRV replaces the system resolver when set.
	LookupSRV func(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
}

func NewResolver() Resolver {
	return Resolver{}
}

func (r Resolver) ResolveJava(ctx context.Context, addr string) (Target, error) {
	host, port, hasPort, err := splitUserAddress(addr)
	if err != nil {
		return Target{}, addressError(err)
	}
	target := Target{Host: host, Port: port}
	if hasPort {
		return target, nil
	}
	target.Port = DefaultJavaPort
	if net.ParseIP(host) == nil {
		if srvHost, srvPort, ok := r.lookupMinecraftSRV(ctx, host); ok {
			target.Host = srvHost
			target.Port = srvPort
			target.SRV = true
		}
	}
	return target, nil
}

func (r Resolver) ResolveBedrock(ctx context.Context, addr string) (Target, error) {
	host, port, hasPort, err := splitUserAddress(addr)
	if err != nil {
		return Target{}, addressError(err)
	}
	if !hasPort {
		port = DefaultBedrockPort
	}
	return Target{Host: host, Port: port}, nil
}

// lookupMinecraftSRV returns the first SRV answer for the host. Lookup
// trouble is never an error here, the caller just keeps the plain address.
func (r Resolver) lookupMinecraftSRV(ctx context.Context, host string) (string, uint16, bool) {
	lookup := r.LookupSRV
	if lookup == nil {
		var system net.Resolver
		lookup = system.LookupSRV
	}
	_, records, err := lookup(ctx, "minecraft", "tcp", host)
	if err != nil || len(records) == 0 {
		return "", 0, false
	}
	target := strings.TrimSuffix(records[0].Target, ".")
	if target == "" {
		return "", 0, false
	}
	return target, records[0].Port, true
}

// splitUserAddress accepts the address forms players type into a client:
// a host, host:port, a bracketed ipv6 literal with optional port and a bare
// ipv6 literal where a trailing group only counts as port when the rest
// still parses as ipv6. The bool reports whether a port was present.
func splitUserAddress(addr string) (string, uint16, bool, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", 0, false, ErrEmptyHost
	}

	if strings.HasPrefix(addr, "[") {
		end := strings.IndexByte(addr, ']')
		if end < 0 {
			return "", 0, false, fmt.Errorf("unbalanced bracket in %q", addr)
		}
		host := addr[1:end]
		if host == "" {
			return "", 0, false, ErrEmptyHost
		}
		if ip := net.ParseIP(host); ip == nil || ip.To4() != nil {
			return "", 0, false, fmt.Errorf("not an ipv6 literal: %q", host)
		}
		rest := addr[end+1:]
		if rest == "" {
			return host, 0, false, nil
		}
		if rest[0] != ':' || len(rest) == 1 {
			return "", 0, false, fmt.Errorf("unexpected %q after address", rest)
		}
		port, err := parsePort(rest[1:])
		if err != nil {
			return "", 0, false, err
		}
		return host, port, true, nil
	}

	if strings.Count(addr, ":") >= 2 {
		if net.ParseIP(addr) != nil {
			return addr, 0, false, nil
		}
		cut := strings.LastIndexByte(addr, ':')
		port, err := parsePort(addr[cut+1:])
		if err == nil && net.ParseIP(addr[:cut]) != nil {
			return addr[:cut], port, true, nil
		}
		return "", 0, false, fmt.Errorf("not an ipv6 literal: %q", addr)
	}

	if cut := strings.LastIndexByte(addr, ':'); cut >= 0 {
		host := addr[:cut]
		if host == "" {
			return "", 0, false, ErrEmptyHost
		}
		port, err := parsePort(addr[cut+1:])
		if err != nil {
			return "", 0, false, err
		}
		return host, port, true, nil
	}
	return addr, 0, false, nil
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrPortOutOfRange, s)
	}
	return uint16(n), nil
}
