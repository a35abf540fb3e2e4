package quality

import (
	"errors"
	"fmt"
	"strings"
)

// Tier is a bilibili quality code (qn). Codes are ordered: a higher code is
// always a better tier.
type Tier int

const (
	TierNone    Tier = 0 // no preference ("auto")
	Tier360p    Tier = 16
	Tier480p    Tier = 32
	Tier720p    Tier = 64
	Tier1080p   Tier = 80
	Tier1080pHi Tier = 112 // 1080p high bitrate
	Tier1080p60 Tier = 116
	Tier4K      Tier = 120
	TierHDR     Tier = 125
	TierDolby   Tier = 126
	Tier8K      Tier = 127
)

// AuthLevel is the authentication level of the caller.
type AuthLevel int

const (
	AuthNone AuthLevel = iota
	AuthLoggedIn
	AuthMember
)

// ErrNoStreamsOffered is returned when a manifest offers no quality tiers at
// all. This is fatal for the page and never retried.
var ErrNoStreamsOffered = errors.New("no streams offered")

var tierNames = map[Tier]string{
	Tier360p:    "360p",
	Tier480p:    "480p",
	Tier720p:    "720p",
	Tier1080p:   "1080p",
	Tier1080pHi: "1080p+",
	Tier1080p60: "1080p60",
	Tier4K:      "4k",
	TierHDR:     "hdr",
	TierDolby:   "dolby",
	Tier8K:      "8k",
}

var authNames = map[AuthLevel]string{
	AuthNone:     "none",
	AuthLoggedIn: "logged-in",
	AuthMember:   "member",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	if t == TierNone {
		return "auto"
	}
	return fmt.Sprintf("qn%d", int(t))
}

// MinAuth reports the minimum authentication level bilibili requires for the
// tier. 1080p and below are open, 1080p+ needs a login, everything above
// needs a membership.
func (t Tier) MinAuth() AuthLevel {
	switch {
	case t <= Tier1080p:
		return AuthNone
	case t == Tier1080pHi:
		return AuthLoggedIn
	default:
		return AuthMember
	}
}

// Known reports whether t is one of the tier codes this module understands.
func Known(t Tier) bool {
	_, ok := tierNames[t]
	return ok
}

func (a AuthLevel) String() string {
	if name, ok := authNames[a]; ok {
		return name
	}
	return fmt.Sprintf("auth%d", int(a))
}

// ParseTier maps a user-facing quality name to a tier. Empty input and
// "auto" mean no preference.
func ParseTier(raw string) (Tier, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" || name == "auto" {
		return TierNone, nil
	}
	for t, n := range tierNames {
		if n == name {
			return t, nil
		}
	}
	return TierNone, fmt.Errorf("unknown quality %q (expected auto, 360p, 480p, 720p, 1080p, 1080p+, 1080p60, 4k, hdr, dolby, or 8k)", raw)
}

// ParseAuthLevel maps a user-facing auth level name. Empty input returns
// AuthNone with ok=false so callers can fall back to credential detection.
func ParseAuthLevel(raw string) (AuthLevel, bool, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return AuthNone, false, nil
	}
	for a, n := range authNames {
		if n == name {
			return a, true, nil
		}
	}
	return AuthNone, false, fmt.Errorf("unknown auth level %q (expected none, logged-in, or member)", raw)
}

// Resolve picks the single tier to download from the tiers a manifest
// offers.
//
// An admissible override (offered and within the caller's auth level) wins.
// Otherwise the highest offered tier whose requirement the caller meets is
// chosen. If the caller meets none of them the lowest offered tier is used
// regardless of its requirement, so a non-empty offer always resolves.
func Resolve(offered []Tier, auth AuthLevel, override Tier) (Tier, error) {
	if len(offered) == 0 {
		return TierNone, ErrNoStreamsOffered
	}

	if override != TierNone && override.MinAuth() <= auth {
		for _, t := range offered {
			if t == override {
				return override, nil
			}
		}
	}

	best := TierNone
	lowest := offered[0]
	for _, t := range offered {
		if t < lowest {
			lowest = t
		}
		if t.MinAuth() <= auth && t > best {
			best = t
		}
	}
	if best != TierNone {
		return best, nil
	}
	return lowest, nil
}

// Table lists every known tier in ascending order with its auth
// requirement, for display.
func Table() []Tier {
	return []Tier{
		Tier360p, Tier480p, Tier720p, Tier1080p, Tier1080pHi,
		Tier1080p60, Tier4K, TierHDR, TierDolby, Tier8K,
	}
}
