// Package hosts validates CIDR input and enumerates the usable host
// addresses of a network block.
package hosts

import (
	"context"
	"fmt"
	"math"
	"net/netip"
	"strings"

	"github.com/projectdiscovery/mapcidr"
)

// InvalidNetworkError reports a malformed or out-of-range network expression.
type InvalidNetworkError struct {
	Input  string
	Reason string
}

func (e *InvalidNetworkError) Error() string {
	return fmt.Sprintf("invalid network %q: %s", e.Input, e.Reason)
}

// Network is a validated CIDR block. Immutable once parsed.
type Network struct {
	input  string
	prefix netip.Prefix
}

// ParseNetwork parses a CIDR expression such as "192.168.1.0/24" or
// "2001:db8::/64". A bare address is treated as a full-length prefix, and
// host bits below the prefix are masked off, matching the lenient parsing
// of common sweep tools.
func ParseNetwork(s string) (Network, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Network{}, &InvalidNetworkError{Input: s, Reason: "empty network expression"}
	}

	var prefix netip.Prefix
	if strings.Contains(trimmed, "/") {
		p, err := netip.ParsePrefix(trimmed)
		if err != nil {
			return Network{}, &InvalidNetworkError{Input: s, Reason: err.Error()}
		}
		prefix = p
	} else {
		addr, err := netip.ParseAddr(trimmed)
		if err != nil {
			return Network{}, &InvalidNetworkError{Input: s, Reason: "not a CIDR expression or IP address"}
		}
		prefix = netip.PrefixFrom(addr, addr.BitLen())
	}

	return Network{input: trimmed, prefix: prefix.Masked()}, nil
}

// String returns the canonical masked CIDR form.
func (n Network) String() string {
	return n.prefix.String()
}

// Input returns the network expression as given by the caller.
func (n Network) Input() string {
	return n.input
}

// IsIPv4 reports whether the block belongs to the IPv4 address family.
func (n Network) IsIPv4() bool {
	return n.prefix.Addr().Is4()
}

// Bits returns the prefix length.
func (n Network) Bits() int {
	return n.prefix.Bits()
}

// Enumerator produces the usable host addresses of one network block in
// ascending numeric order. The stream is lazy so large blocks (/16 and up)
// are never materialized in memory, and restartable: every Stream call
// starts a fresh pass over the block.
type Enumerator struct {
	network Network
}

// NewEnumerator creates an Enumerator for the given network.
func NewEnumerator(network Network) *Enumerator {
	return &Enumerator{network: network}
}

// Count returns the number of addresses Stream will yield. IPv6 blocks with
// 64 or more host bits exceed uint64 range; Count saturates at MaxUint64 for
// those instead of wrapping to zero.
func (e *Enumerator) Count() uint64 {
	if !e.network.IsIPv4() && 128-e.network.Bits() >= 64 {
		return math.MaxUint64
	}

	total, err := mapcidr.AddressCount(e.network.String())
	if err != nil {
		return 0
	}

	excluded := e.excludedCount()
	if total <= excluded {
		return 0
	}
	return total - excluded
}

// excludedCount returns how many addresses the host policy removes from the
// raw block: network and broadcast for IPv4 prefixes up to /30, the
// subnet-router anycast address for IPv6 prefixes up to /126. /31, /32,
// /127 and /128 blocks keep every address.
func (e *Enumerator) excludedCount() uint64 {
	if e.network.IsIPv4() {
		if e.network.Bits() <= 30 {
			return 2
		}
		return 0
	}
	if e.network.Bits() <= 126 {
		return 1
	}
	return 0
}

// Stream yields host addresses in ascending order on the returned channel.
// The channel is closed when the block is exhausted or the context is done.
func (e *Enumerator) Stream(ctx context.Context) (<-chan string, error) {
	source, err := mapcidr.IPAddressesAsStream(e.network.String())
	if err != nil {
		return nil, &InvalidNetworkError{Input: e.network.Input(), Reason: err.Error()}
	}

	first, last := e.bounds()
	out := make(chan string)

	go func() {
		defer close(out)
		for addr := range source {
			if e.excluded(addr, first, last) {
				continue
			}
			select {
			case <-ctx.Done():
				for range source {
				}
				return
			default:
			}
			select {
			case out <- addr:
			case <-ctx.Done():
				// Drain so the producer goroutine can finish.
				for range source {
				}
				return
			}
		}
	}()

	return out, nil
}

func (e *Enumerator) excluded(addr, first, last string) bool {
	if e.network.IsIPv4() {
		return e.network.Bits() <= 30 && (addr == first || addr == last)
	}
	return e.network.Bits() <= 126 && addr == first
}

// bounds returns the first and last address of the block as strings in the
// same textual form mapcidr emits.
func (e *Enumerator) bounds() (string, string) {
	first := e.network.prefix.Addr()

	raw := first.AsSlice()
	bits := e.network.Bits()
	for i := range raw {
		hostBits := 8 * (i + 1)
		if hostBits <= bits {
			continue
		}
		var mask byte = 0xff
		if bits > 8*i {
			mask = 0xff >> (bits - 8*i)
		}
		raw[i] |= mask
	}
	last, _ := netip.AddrFromSlice(raw)

	return first.String(), last.String()
}
