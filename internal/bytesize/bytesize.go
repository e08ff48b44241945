// Package bytesize parses human-readable byte quantities. Size limits in
// configuration, such as the dispatch upload cap, are written as strings
// like "100MB" or "2Gi" and decode into ByteSize values.
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteSize is a byte count decoded from strings like "100MB", "2Gi", or a
// plain integer. Binary suffixes (Ki, Mi, Gi, Ti) multiply by 1024 and
// decimal ones (K, M, G, T) by 1000; a trailing "B" is accepted in both
// spellings and on its own.
type ByteSize uint64

const (
	B  ByteSize = 1
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB
	TB ByteSize = 1000 * GB

	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

// ParseByteSize converts a spelled-out size into bytes. Fractions are
// allowed ("1.5Gi"); the result truncates to a whole byte count.
func ParseByteSize(s string) (ByteSize, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("byte size is empty")
	}

	// Split the leading number from the unit suffix.
	split := len(trimmed)
	for i, r := range trimmed {
		if (r < '0' || r > '9') && r != '.' {
			split = i
			break
		}
	}
	number := trimmed[:split]
	if number == "" {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}

	unit, err := unitFor(strings.TrimSpace(trimmed[split:]))
	if err != nil {
		return 0, err
	}

	if strings.Contains(number, ".") {
		f, err := strconv.ParseFloat(number, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid byte size %q", s)
		}
		return ByteSize(f * float64(unit)), nil
	}

	n, err := strconv.ParseUint(number, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}
	return ByteSize(n) * unit, nil
}

func unitFor(suffix string) (ByteSize, error) {
	// The trailing "B" is optional: "M", "MB", "Mi" and "MiB" are all valid.
	switch strings.TrimSuffix(strings.ToLower(suffix), "b") {
	case "":
		return B, nil
	case "k":
		return KB, nil
	case "m":
		return MB, nil
	case "g":
		return GB, nil
	case "t":
		return TB, nil
	case "ki":
		return KiB, nil
	case "mi":
		return MiB, nil
	case "gi":
		return GiB, nil
	case "ti":
		return TiB, nil
	}
	return 0, fmt.Errorf("unknown byte size unit %q", suffix)
}

// UnmarshalText implements encoding.TextUnmarshaler so ByteSize fields
// decode directly from configuration strings.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// String renders the size with the largest binary unit that fits.
func (b ByteSize) String() string {
	units := []struct {
		limit ByteSize
		name  string
	}{
		{TiB, "TiB"},
		{GiB, "GiB"},
		{MiB, "MiB"},
		{KiB, "KiB"},
	}
	for _, u := range units {
		if b >= u.limit {
			return fmt.Sprintf("%.2f%s", float64(b)/float64(u.limit), u.name)
		}
	}
	return fmt.Sprintf("%dB", uint64(b))
}
