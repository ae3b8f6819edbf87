package catalog

import (
	"strings"
)

// communityPrefix is the organizational prefix the upstream prepends to
// community names. Only this exact prefix is stripped; other piped names are
// left intact.
const communityPrefix = "Informa Markets | IM EMEA | Tahaluf | "

// communityAliases maps upstream community names to their display form.
var communityAliases = map[string]string{
	"Informa Markets Maritime and Design": "Maritime & Design",
}

// CleanCommunityName normalizes a community name for display and grouping:
// the standard organizational prefix is removed and known aliases are
// applied.
func CleanCommunityName(name string) string {
	if name == "" {
		return ""
	}

	name = strings.TrimPrefix(name, communityPrefix)

	if alias, ok := communityAliases[name]; ok {
		return alias
	}

	return strings.TrimSpace(name)
}
