package mail

import (
	"fmt"
	netmail "net/mail"
	"strings"
)

// ParseAddress validates an address per RFC 5322 and returns its bare
// addr-spec. Display names are accepted and dropped.
func ParseAddress(s string) (string, error) {
	addr, err := netmail.ParseAddress(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidAddress, s, err)
	}
	return addr.Address, nil
}

// Domain returns the domain part of an address, or an empty string when it
// has none.
func Domain(addr string) string {
	parts := strings.SplitN(addr, "@", 2)
	if len(parts) != 2 {
		return ""
	}
	return strings.TrimRight(parts[1], ">")
}
