package filter

import (
	"bytes"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"
)

type header struct {
	name  string
	value string
}

// sanitizeHeaderValue folds a value onto one line so it cannot inject headers
func sanitizeHeaderValue(value string) string {
	value = strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' || r == '\t' {
			return ' '
		}
		return r
	}, value)
	value = strings.TrimSpace(value)
	if !isASCII(value) {
		return mime.QEncoding.Encode("utf-8", value)
	}
	return value
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// splitMessage returns the header block, the separator and the body of a
// raw message. Messages without a blank line are all header.
func splitMessage(raw []byte) (head, sep, body []byte) {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return raw[:i+2], []byte("\r\n"), raw[i+4:]
	}
	if i := bytes.Index(raw, []byte("\n\n")); i >= 0 {
		return raw[:i+1], []byte("\n"), raw[i+2:]
	}
	return raw, []byte("\r\n"), nil
}

// rewriteHeaders prepends added, drops any existing header named in strip or
// in added, and replaces the Subject when subject is non-nil. The body is
// kept byte for byte.
func rewriteHeaders(raw []byte, added []header, strip []string, subject *string) []byte {
	head, sep, body := splitMessage(raw)

	drop := make(map[string]bool, len(added)+len(strip)+1)
	for _, name := range strip {
		drop[strings.ToLower(name)] = true
	}
	for _, h := range added {
		drop[strings.ToLower(h.name)] = true
	}
	if subject != nil {
		drop["subject"] = true
	}

	var out bytes.Buffer
	for _, h := range added {
		fmt.Fprintf(&out, "%s: %s\r\n", h.name, sanitizeHeaderValue(h.value))
	}
	if subject != nil {
		fmt.Fprintf(&out, "Subject: %s\r\n", sanitizeHeaderValue(*subject))
	}

	skipping := false
	for _, line := range bytes.SplitAfter(head, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			// folded continuation of the previous header
			if !skipping {
				out.Write(line)
			}
			continue
		}
		name, _, found := bytes.Cut(line, []byte(":"))
		skipping = found && drop[strings.ToLower(strings.TrimSpace(string(name)))]
		if !skipping {
			out.Write(line)
		}
	}

	out.Write(sep)
	out.Write(body)
	return out.Bytes()
}
