package cmd

import (
	"fmt"
	"strconv"
	"strings"
)

// parsePrefixedUint reads an unsigned integer with an optional lowercase
// 0b, 0o or 0x prefix. Without a prefix the number is decimal, so "070" is
// seventy. Digit separators are not accepted.
func parsePrefixedUint(s string, bits int) (uint64, error) {
	base := 10
	for prefix, b := range map[string]int{"0b": 2, "0o": 8, "0x": 16} {
		if strings.HasPrefix(s, prefix) {
			s, base = s[len(prefix):], b
			break
		}
	}
	return strconv.ParseUint(s, base, bits)
}

// uintValue is a pflag.Value for unsigned integers such as 56, 0x38, 0o70
// or 0b111000.
type uintValue struct {
	v    *uint64
	bits int
}

func newUintValue(def uint64, bits int, p *uint64) *uintValue {
	*p = def
	return &uintValue{v: p, bits: bits}
}

func (u *uintValue) Set(s string) error {
	n, err := parsePrefixedUint(s, u.bits)
	if err != nil {
		return fmt.Errorf("invalid %d-bit integer %q", u.bits, s)
	}
	*u.v = n
	return nil
}

func (u *uintValue) Type() string { return "uint" }

func (u *uintValue) String() string {
	if u.v == nil {
		return "0"
	}
	if u.bits <= 16 && *u.v > 9 {
		return fmt.Sprintf("%#x", *u.v)
	}
	return strconv.FormatUint(*u.v, 10)
}
