package state

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// maxSlugLen keeps state file names well under common filesystem limits.
const maxSlugLen = 80

// fileSlug turns a pull request reference into a file name stem:
// "Octo/Hello-World#12" becomes "octo__hello-world_n12". Letters are
// lowercased because GitHub names are case-insensitive. Lowercase letters,
// digits, '.' and '-' are kept; everything else is escaped with a code that
// starts with '_', so distinct references never share a slug:
//
//	'/' -> "__"   '#' -> "_n"   '_' -> "_u"   other bytes -> "_xHH"
//
// Slugs longer than maxSlugLen are cut and suffixed with '~' and a hash of
// the full reference. The encoding never produces '~' on its own.
func fileSlug(pr string) string {
	if pr == "" {
		return "_"
	}

	var sb strings.Builder
	for _, b := range []byte(strings.ToLower(pr)) {
		switch {
		case b >= 'a' && b <= 'z', b >= '0' && b <= '9', b == '.', b == '-':
			sb.WriteByte(b)
		case b == '/':
			sb.WriteString("__")
		case b == '#':
			sb.WriteString("_n")
		case b == '_':
			sb.WriteString("_u")
		default:
			fmt.Fprintf(&sb, "_x%02x", b)
		}
	}

	slug := sb.String()
	if len(slug) <= maxSlugLen {
		return slug
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(pr)))
	hash := strconv.FormatUint(h.Sum64(), 36)

	return slug[:maxSlugLen-len(hash)-1] + "~" + hash
}
