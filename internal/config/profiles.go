package config

import (
	"fmt"
	"sort"
	"strings"

	"docrag/internal/domain"
)

// DefaultTier is used when no tier is configured.
const DefaultTier = "free"

const mib = 1 << 20

var builtinProfiles = map[string]domain.LimitProfile{
	"free": {
		MaxFileSizeBytes: 3 * mib,
		MaxPages:         5,
		MaxChunksTotal:   50,
		MaxChunksPerPage: 5,
		ChunkSizeChars:   150,
		BatchSize:        5,
	},
	"standard": {
		MaxFileSizeBytes: 5 * mib,
		MaxPages:         10,
		MaxChunksTotal:   100,
		MaxChunksPerPage: 10,
		ChunkSizeChars:   200,
		BatchSize:        10,
	},
	"paid": {
		MaxFileSizeBytes: 10 * mib,
		MaxPages:         20,
		MaxChunksTotal:   200,
		MaxChunksPerPage: 15,
		ChunkSizeChars:   250,
		BatchSize:        15,
	},
}

// ResolveProfile returns the LimitProfile for tier. Entries in custom take
// precedence over the built-in tiers. Unknown tiers, custom names that
// collide once case-folded, and profiles with a non-positive limit yield a
// *domain.ConfigError.
func ResolveProfile(tier string, custom map[string]domain.LimitProfile) (domain.LimitProfile, error) {
	key := normalizeName(tier)
	profiles, err := normalizeProfiles(custom)
	if err != nil {
		return domain.LimitProfile{}, &domain.ConfigError{Tier: tier, Err: err}
	}
	p, ok := profiles[key]
	if !ok {
		p, ok = builtinProfiles[key]
	}
	if !ok {
		return domain.LimitProfile{}, &domain.ConfigError{Tier: tier, Err: domain.ErrUnknownTier}
	}
	p.Name = key
	if err := p.Validate(); err != nil {
		return domain.LimitProfile{}, &domain.ConfigError{Tier: tier, Err: err}
	}
	return p, nil
}

// TierNames lists every resolvable tier, sorted.
func TierNames(custom map[string]domain.LimitProfile) []string {
	seen := make(map[string]struct{}, len(builtinProfiles)+len(custom))
	for name := range builtinProfiles {
		seen[name] = struct{}{}
	}
	for name := range custom {
		seen[normalizeName(name)] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// normalizeProfiles keys custom by normalized name.
func normalizeProfiles(custom map[string]domain.LimitProfile) (map[string]domain.LimitProfile, error) {
	out := make(map[string]domain.LimitProfile, len(custom))
	orig := make(map[string]string, len(custom))
	for name, p := range custom {
		key := normalizeName(name)
		if prev, ok := orig[key]; ok {
			a, b := min(prev, name), max(prev, name)
			return nil, fmt.Errorf("%w: %q and %q", domain.ErrDuplicateProfile, a, b)
		}
		orig[key] = name
		out[key] = p
	}
	return out, nil
}
