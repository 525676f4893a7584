package platform

import (
	"errors"
	"fmt"
	"strings"
)

// Platform identifies the marketplace a record originates from.
type Platform string

const (
	Lazada Platform = "lazada"
	Shopee Platform = "shopee"
)

var ErrUnknownPlatform = errors.New("unknown_platform")

var keys = map[Platform]int64{
	Lazada: 1,
	Shopee: 2,
}

// All returns the supported platforms ordered by platform key.
func All() []Platform {
	return []Platform{Lazada, Shopee}
}

// Key returns the platform_key used in the dimensional model.
func (p Platform) Key() int64 {
	return keys[p]
}

func (p Platform) Valid() bool {
	_, ok := keys[p]
	return ok
}

func (p Platform) String() string {
	return string(p)
}

func Parse(raw string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, raw)
	}
	return p, nil
}

func FromKey(key int64) (Platform, bool) {
	for p, k := range keys {
		if k == key {
			return p, true
		}
	}
	return "", false
}

// ParseList parses a comma separated platform list, dropping duplicates.
func ParseList(values []string) ([]Platform, error) {
	seen := make(map[Platform]struct{}, len(values))
	out := make([]Platform, 0, len(values))
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			p, err := Parse(part)
			if err != nil {
				return nil, err
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out, nil
}
