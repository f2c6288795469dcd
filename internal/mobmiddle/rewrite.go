// Package mobmiddle implements Mob in the Middle: a transparent proxy
// that splices a client to a fixed upstream chat server, rewriting any
// Boguscoin address it sees in either direction to a address of the
// operator's choosing.
package mobmiddle

import (
	"regexp"
	"strings"
)

// boguscoinPattern matches a Boguscoin address on its own: a leading
// '7' followed by 25 to 34 further alphanumerics, 26 to 35 characters
// total. The pattern is anchored to a whole token rather than using
// regexp look-around (Go's RE2 doesn't support it), so boundary
// detection is done by splitting on spaces before matching.
var boguscoinPattern = regexp.MustCompile(`^7[A-Za-z0-9]{25,34}$`)

// RewriteLine replaces every space-delimited token in line that looks
// like a Boguscoin address with replacement. A token only qualifies at
// a space boundary or at the start/end of the line, matching the chat
// protocol's rule that an address must be "a chat message token on its
// own".
func RewriteLine(line, replacement string) string {
	tokens := strings.Split(line, " ")
	for i, tok := range tokens {
		if boguscoinPattern.MatchString(tok) {
			tokens[i] = replacement
		}
	}
	return strings.Join(tokens, " ")
}
