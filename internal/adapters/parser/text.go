package parser

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mikey/mail-triage/internal/core"
)

var (
	subjectLine = regexp.MustCompile(`(?i)^\s*(?:assunto|subject)\s*:\s*(.+)$`)
	fromLine    = regexp.MustCompile(`(?i)^\s*(?:de|from)\s*:\s*(.+)$`)
	toLine      = regexp.MustCompile(`(?i)^\s*(?:para|to)\s*:\s*(.+)$`)
)

// ParseText builds a request from pasted text. Subject, sender and
// recipient lines found before the first content line are lifted out of the
// body. A non-empty subject argument wins over an extracted one.
func ParseText(text, subject string) *core.TriageRequest {
	req := &core.TriageRequest{Subject: strings.TrimSpace(subject)}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	start := 0
	for ; start < len(lines); start++ {
		line := lines[start]
		if strings.TrimSpace(line) == "" {
			continue
		}
		if m := subjectLine.FindStringSubmatch(line); m != nil {
			if req.Subject == "" {
				req.Subject = strings.TrimSpace(m[1])
			}
			continue
		}
		if m := fromLine.FindStringSubmatch(line); m != nil {
			req.Sender = strings.TrimSpace(m[1])
			continue
		}
		if m := toLine.FindStringSubmatch(line); m != nil {
			req.Recipients = splitList(m[1])
			continue
		}
		break
	}

	req.Body = strings.TrimSpace(strings.Join(lines[start:], "\n"))
	return req
}

// ParseFile dispatches on the file extension. Only .eml and .txt are
// supported; anything else is an UnsupportedInputError.
func ParseFile(name string, data []byte) (*core.TriageRequest, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".eml":
		msg, err := ParseEML(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return msg.Request(), nil
	case ".txt", "":
		return ParseText(string(data), ""), nil
	default:
		return nil, core.NewUnsupportedInputError("unsupported file type: "+name, nil)
	}
}

// Supported reports whether ParseFile accepts name
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".eml", ".txt":
		return true
	}
	return false
}
