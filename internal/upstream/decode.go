package upstream

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// DecodePolicy names how raw upstream bytes become text.
type DecodePolicy int

const (
	// DecodeRaw converts the body to a string as-is, without validating it.
	DecodeRaw DecodePolicy = iota
	// DecodeIgnore drops every invalid UTF-8 sequence.
	DecodeIgnore
	// DecodeReplace substitutes U+FFFD for every invalid UTF-8 sequence.
	DecodeReplace
)

func (d DecodePolicy) String() string {
	switch d {
	case DecodeRaw:
		return "raw"
	case DecodeIgnore:
		return "ignore"
	case DecodeReplace:
		return "replace"
	}
	return fmt.Sprintf("DecodePolicy(%d)", int(d))
}

// ParseDecodePolicy maps a config name onto a DecodePolicy.
func ParseDecodePolicy(name string) (DecodePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "raw":
		return DecodeRaw, nil
	case "ignore":
		return DecodeIgnore, nil
	case "replace":
		return DecodeReplace, nil
	}
	return 0, fmt.Errorf("upstream: unknown decode policy %q", name)
}

// Decode applies the policy to body. It never fails for DecodeRaw and
// DecodeIgnore.
func (d DecodePolicy) Decode(body []byte) (string, error) {
	switch d {
	case DecodeRaw:
		return string(body), nil
	case DecodeIgnore:
		return strings.ToValidUTF8(string(body), ""), nil
	case DecodeReplace:
		out, err := unicode.UTF8.NewDecoder().Bytes(body)
		if err != nil {
			return "", fmt.Errorf("upstream: decode: %w", err)
		}
		return string(out), nil
	}
	return "", fmt.Errorf("upstream: unknown decode policy %d", int(d))
}
