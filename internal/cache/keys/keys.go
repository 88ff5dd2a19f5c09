// Package keys builds Redis keys for cached tile blobs.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// TileKey names one raw tile of a tile source. The upstream base URL is
// folded into a hash suffix so two tile services never share entries.
func TileKey(upstream, source string, z, x, y int) string {
	up := strings.TrimRight(strings.TrimSpace(upstream), "/")
	sum := xxhash.Sum64String(up)
	return fmt.Sprintf("tile:%s:%d:%d:%d:u=%016x", sanitize(strings.TrimSpace(source)), z, x, y, sum)
}

// LayerKey names the zoom metadata of one source layer.
func LayerKey(source, layer string) string {
	return sanitize(strings.TrimSpace(source)) + ":" + sanitize(strings.TrimSpace(layer))
}

// sanitize maps whitespace to '_' and anything outside [A-Za-z0-9:_-] to
// '-', collapsing runs of either.
func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		var out rune
		switch {
		case isASCIIWhitespace(r):
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isASCIIWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r <= unicode.MaxASCII && unicode.IsDigit(r))
}
