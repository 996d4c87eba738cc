package core

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// maxFileNameLen matches the width of csv_upload.filename.
const maxFileNameLen = 255

// SecureFilename reduces a client-supplied name to a safe basename made of
// ASCII letters, digits, '_', '.' and '-'. Accented letters are first
// decomposed (NFKD) so "naïve" keeps its base letters. Path separators become '_',
// runs of whitespace collapse to a single '_', and leading or trailing
// dots and underscores are trimmed. An empty result means nothing usable
// was left.
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_', r == '.', r == '-':
			b.WriteRune(r)
		}
	}

	out := strings.Trim(b.String(), "._")
	if len(out) > maxFileNameLen {
		out = truncateKeepExt(out, maxFileNameLen)
	}
	return out
}

// truncateKeepExt shortens name to at most n bytes without dropping its extension.
func truncateKeepExt(name string, n int) string {
	ext := ""
	if i := strings.LastIndexByte(name, '.'); i > 0 && len(name)-i <= 16 {
		ext = name[i:]
	}
	return name[:n-len(ext)] + ext
}
