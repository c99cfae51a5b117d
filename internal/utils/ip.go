package utils

import (
	"regexp"
	"strconv"
	"strings"
)

var macPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}$`)

// IsValidIPv4OrCIDR accepts a dotted-quad IPv4 address with an optional
// /prefix suffix in [0,32]. Leading zeros are not rejected.
func IsValidIPv4OrCIDR(value string) bool {
	addr, prefix, hasPrefix := strings.Cut(value, "/")
	octets := strings.Split(addr, ".")
	if len(octets) != 4 {
		return false
	}
	for _, octet := range octets {
		n, err := strconv.Atoi(octet)
		if err != nil || !InRange(n, 0, 255) {
			return false
		}
	}
	if hasPrefix {
		bits, err := strconv.Atoi(prefix)
		if err != nil || !InRange(bits, 0, 32) {
			return false
		}
	}
	return true
}

// IsValidMAC accepts six two-digit hex groups separated by ':' or '-'.
func IsValidMAC(value string) bool {
	return macPattern.MatchString(value)
}

// InRange reports whether lo <= v <= hi.
func InRange(v, lo, hi int) bool {
	return v >= lo && v <= hi
}
