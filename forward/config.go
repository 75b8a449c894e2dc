// Package forward implements the scan → classify → group → hash → name
// pipeline that turns a source directory tree into a collection of
// synthetic, content-addressed tar files plus a gzipped manifest per
// storage directory, and serves getattr/readdir/read against the result.
package forward

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-errors/errors"
)

const (
	defaultTargetSize  int64 = 10 << 20 // 10 MiB
	defaultForcedDepth       = 2
)

// Config carries the options recognized by a forward mount, mirroring
// the driver options listed in the external interfaces.
type Config struct {
	// Depth forces any directory at this depth to become a storage
	// directory, in addition to depth <= 1.
	Depth int

	// Include/Exclude are glob chains applied to every scanned path.
	Include []string
	Exclude []string

	// TriggerGlob forces any directory whose path matches to become a
	// storage directory.
	TriggerGlob []string

	// TargetSize is the target tar size in bytes; small/medium/large
	// bucket thresholds and tar counts all scale from it.
	TargetSize int64

	// TriggerSize is the cumulative subtree size above which a directory
	// is promoted to a storage directory. Zero means 2x TargetSize.
	TriggerSize int64

	// Message is copied into the manifest's #message header line.
	Message string
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() Config {
	return Config{
		Depth:      defaultForcedDepth,
		TargetSize: defaultTargetSize,
	}
}

// effectiveTriggerSize returns TriggerSize, defaulting to 2x TargetSize.
func (c Config) effectiveTriggerSize() int64 {
	if c.TriggerSize > 0 {
		return c.TriggerSize
	}
	return 2 * c.effectiveTargetSize()
}

func (c Config) effectiveTargetSize() int64 {
	if c.TargetSize > 0 {
		return c.TargetSize
	}
	return defaultTargetSize
}

// CheckLocale verifies the configured locale is UTF-8. The
// case-insensitive collision check folds paths with Unicode rules; a
// scan under a non-UTF-8 locale would fold differently than the
// destination store does.
func CheckLocale() error {
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		upper := strings.ToUpper(v)
		if strings.Contains(upper, "UTF-8") || strings.Contains(upper, "UTF8") {
			return nil
		}
		return errors.Errorf("locale %s=%q is not UTF-8", key, v)
	}
	return errors.New("no UTF-8 locale configured; set LC_ALL or LANG")
}

// ParseSize parses a byte count with an optional K/M/G/T suffix
// (base 1024), as accepted by target-size and trigger-size options.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty size")
	}
	mult := int64(1)
	suffix := s[len(s)-1]
	switch suffix {
	case 'k', 'K':
		mult = 1 << 10
	case 'm', 'M':
		mult = 1 << 20
	case 'g', 'G':
		mult = 1 << 30
	case 't', 'T':
		mult = 1 << 40
	}
	numPart := s
	if mult != 1 {
		numPart = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(strings.TrimSpace(numPart), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return n * mult, nil
}
