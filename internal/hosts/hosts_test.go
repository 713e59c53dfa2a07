package hosts

import (
	"context"
	"errors"
	"math"
	"testing"
)

func collect(t *testing.T, network string) []string {
	t.Helper()

	n, err := ParseNetwork(network)
	if err != nil {
		t.Fatalf("ParseNetwork(%q) failed: %v", network, err)
	}

	stream, err := NewEnumerator(n).Stream(context.Background())
	if err != nil {
		t.Fatalf("Stream(%q) failed: %v", network, err)
	}

	var addrs []string
	for addr := range stream {
		addrs = append(addrs, addr)
	}
	return addrs
}

func TestParseNetwork_Invalid(t *testing.T) {
	cases := []string{
		"",
		"not-a-network",
		"192.168.1.0/33",
		"2001:db8::/129",
		"300.1.2.3/24",
		"192.168.1.0/",
		"/24",
	}

	for _, input := range cases {
		_, err := ParseNetwork(input)
		if err == nil {
			t.Errorf("ParseNetwork(%q) expected error, got nil", input)
			continue
		}

		var invalid *InvalidNetworkError
		if !errors.As(err, &invalid) {
			t.Errorf("ParseNetwork(%q) expected InvalidNetworkError, got %T", input, err)
		}
	}
}

func TestParseNetwork_MasksHostBits(t *testing.T) {
	n, err := ParseNetwork("192.168.1.77/24")
	if err != nil {
		t.Fatalf("ParseNetwork failed: %v", err)
	}
	if n.String() != "192.168.1.0/24" {
		t.Errorf("expected masked network 192.168.1.0/24, got %s", n.String())
	}
}

func TestParseNetwork_BareAddress(t *testing.T) {
	n, err := ParseNetwork("10.1.2.3")
	if err != nil {
		t.Fatalf("ParseNetwork failed: %v", err)
	}
	if n.String() != "10.1.2.3/32" {
		t.Errorf("expected 10.1.2.3/32, got %s", n.String())
	}
	if !n.IsIPv4() {
		t.Error("expected IPv4 family")
	}
}

func TestStream_IPv4Slash30_ExcludesNetworkAndBroadcast(t *testing.T) {
	addrs := collect(t, "192.168.1.0/30")
	expected := []string{"192.168.1.1", "192.168.1.2"}

	if len(addrs) != len(expected) {
		t.Fatalf("expected %d hosts, got %d: %v", len(expected), len(addrs), addrs)
	}
	for i := range expected {
		if addrs[i] != expected[i] {
			t.Errorf("host %d: expected %s, got %s", i, expected[i], addrs[i])
		}
	}
}

func TestStream_IPv4Slash31_KeepsBothAddresses(t *testing.T) {
	addrs := collect(t, "192.168.1.0/31")
	if len(addrs) != 2 {
		t.Fatalf("expected 2 hosts, got %d: %v", len(addrs), addrs)
	}
	if addrs[0] != "192.168.1.0" || addrs[1] != "192.168.1.1" {
		t.Errorf("unexpected hosts: %v", addrs)
	}
}

func TestStream_IPv4Slash32_SingleHost(t *testing.T) {
	addrs := collect(t, "192.168.1.7/32")
	if len(addrs) != 1 || addrs[0] != "192.168.1.7" {
		t.Errorf("expected single host 192.168.1.7, got %v", addrs)
	}
}

func TestStream_IPv4Slash24_BoundsAndOrder(t *testing.T) {
	addrs := collect(t, "10.0.0.0/24")
	if len(addrs) != 254 {
		t.Fatalf("expected 254 hosts, got %d", len(addrs))
	}
	if addrs[0] != "10.0.0.1" {
		t.Errorf("first host: expected 10.0.0.1, got %s", addrs[0])
	}
	if addrs[253] != "10.0.0.254" {
		t.Errorf("last host: expected 10.0.0.254, got %s", addrs[253])
	}
}

func TestStream_IPv6Slash126_ExcludesAnycast(t *testing.T) {
	addrs := collect(t, "2001:db8::/126")
	expected := []string{"2001:db8::1", "2001:db8::2", "2001:db8::3"}

	if len(addrs) != len(expected) {
		t.Fatalf("expected %d hosts, got %d: %v", len(expected), len(addrs), addrs)
	}
	for i := range expected {
		if addrs[i] != expected[i] {
			t.Errorf("host %d: expected %s, got %s", i, expected[i], addrs[i])
		}
	}
}

func TestStream_IPv6Slash127_KeepsBothAddresses(t *testing.T) {
	addrs := collect(t, "2001:db8::/127")
	if len(addrs) != 2 {
		t.Fatalf("expected 2 hosts, got %d: %v", len(addrs), addrs)
	}
	if addrs[0] != "2001:db8::" || addrs[1] != "2001:db8::1" {
		t.Errorf("unexpected hosts: %v", addrs)
	}
}

func TestStream_IPv6Slash128_SingleHost(t *testing.T) {
	addrs := collect(t, "2001:db8::42/128")
	if len(addrs) != 1 || addrs[0] != "2001:db8::42" {
		t.Errorf("expected single host 2001:db8::42, got %v", addrs)
	}
}

func TestStream_Restartable(t *testing.T) {
	first := collect(t, "172.16.0.0/29")
	second := collect(t, "172.16.0.0/29")

	if len(first) != len(second) {
		t.Fatalf("passes differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("host %d differs between passes: %s vs %s", i, first[i], second[i])
		}
	}
}

func TestCount_MatchesStream(t *testing.T) {
	cases := []struct {
		network string
		want    uint64
	}{
		{"192.168.1.0/30", 2},
		{"192.168.1.0/31", 2},
		{"192.168.1.1/32", 1},
		{"10.0.0.0/24", 254},
		{"2001:db8::/126", 3},
		{"2001:db8::/127", 2},
		{"2001:db8::1/128", 1},
	}

	for _, tc := range cases {
		n, err := ParseNetwork(tc.network)
		if err != nil {
			t.Fatalf("ParseNetwork(%q) failed: %v", tc.network, err)
		}
		e := NewEnumerator(n)

		if got := e.Count(); got != tc.want {
			t.Errorf("%s: Count() = %d, want %d", tc.network, got, tc.want)
		}
		if got := uint64(len(collect(t, tc.network))); got != tc.want {
			t.Errorf("%s: stream yielded %d hosts, want %d", tc.network, got, tc.want)
		}
	}
}

func TestCount_WideIPv6BlocksSaturate(t *testing.T) {
	for _, network := range []string{"2001:db8::/64", "2001:db8::/48", "::/0"} {
		n, err := ParseNetwork(network)
		if err != nil {
			t.Fatalf("ParseNetwork(%q) failed: %v", network, err)
		}

		got := NewEnumerator(n).Count()
		if got != math.MaxUint64 {
			t.Errorf("%s: Count() = %d, want saturation at MaxUint64", network, got)
		}
	}
}

func TestStream_CancelledContext(t *testing.T) {
	n, err := ParseNetwork("10.0.0.0/24")
	if err != nil {
		t.Fatalf("ParseNetwork failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := NewEnumerator(n).Stream(ctx)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	<-stream
	cancel()

	count := 1
	for range stream {
		count++
	}
	if count >= 254 {
		t.Errorf("expected cancellation to cut the stream short, got %d hosts", count)
	}
}
