package bili

import (
	"fmt"
	"strings"

	"github.com/LuneZ99/bili-downloader/internal/quality"
)

// Credential is the bilibili cookie set used for authenticated calls.
// SESSDATA alone is enough for login-gated tiers; the other fields ride
// along for API endpoints that want them.
type Credential struct {
	SESSDATA   string
	BiliJCT    string
	Buvid3     string
	DedeUserID string
}

func (c Credential) Empty() bool {
	return strings.TrimSpace(c.SESSDATA) == ""
}

// Cookie renders the credential as a Cookie header value.
func (c Credential) Cookie() string {
	var parts []string
	add := func(name, value string) {
		if strings.TrimSpace(value) != "" {
			parts = append(parts, name+"="+value)
		}
	}
	add("SESSDATA", c.SESSDATA)
	add("bili_jct", c.BiliJCT)
	add("buvid3", c.Buvid3)
	add("DedeUserID", c.DedeUserID)
	return strings.Join(parts, "; ")
}

// AuthLevel derives the caller's authentication level. A loaded credential
// is treated as a membership, matching how the upstream site unlocks
// member tiers for premium accounts; callers can override via config when
// the account is logged in but not premium.
func (c Credential) AuthLevel() quality.AuthLevel {
	if c.Empty() {
		return quality.AuthNone
	}
	return quality.AuthMember
}

// Masked returns a redacted description for logging.
func (c Credential) Masked() string {
	if c.Empty() {
		return "none"
	}
	var parts []string
	mask := func(name, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		if len(value) > 8 {
			value = value[:8] + "***"
		}
		parts = append(parts, fmt.Sprintf("%s=%s", name, value))
	}
	mask("SESSDATA", c.SESSDATA)
	mask("bili_jct", c.BiliJCT)
	mask("buvid3", c.Buvid3)
	parts = append(parts, "DedeUserID="+c.DedeUserID)
	return strings.Join(parts, " ")
}
