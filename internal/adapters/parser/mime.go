// Package parser turns pasted text, .txt and .eml input into triage requests.
package parser

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"

	"github.com/mikey/mail-triage/internal/core"
)

var wordDecoder = new(mime.WordDecoder)

// DecodeHeader decodes RFC 2047 encoded words, returning value unchanged
// when it cannot be decoded
func DecodeHeader(value string) string {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// Message is a parsed MIME message
type Message struct {
	Header         mail.Header
	Subject        string
	From           string
	To             []string
	Text           string
	HasAttachments bool
}

// Request converts the message into a pipeline request
func (m *Message) Request() *core.TriageRequest {
	return &core.TriageRequest{
		Body:           m.Text,
		Subject:        m.Subject,
		Sender:         m.From,
		Recipients:     m.To,
		HasAttachments: m.HasAttachments,
	}
}

// ParseEML reads an RFC 5322 message, extracts its text/plain content and
// reports whether it carries attachments
func ParseEML(r io.Reader) (*Message, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return nil, core.NewUnsupportedInputError("failed to parse email message", err)
	}

	out := &Message{
		Header:  msg.Header,
		Subject: DecodeHeader(msg.Header.Get("Subject")),
		From:    DecodeHeader(msg.Header.Get("From")),
	}
	if to := msg.Header.Get("To"); to != "" {
		if addrs, err := msg.Header.AddressList("To"); err == nil {
			for _, a := range addrs {
				out.To = append(out.To, a.Address)
			}
		} else {
			out.To = splitList(to)
		}
	}

	var text bytes.Buffer
	err = walkPart(textproto.MIMEHeader(msg.Header), msg.Body, &text, &out.HasAttachments)
	if err != nil {
		return nil, core.NewUnsupportedInputError("failed to read message body", err)
	}
	out.Text = strings.TrimSpace(text.String())

	return out, nil
}

// walkPart appends every inline text/plain part to text, descending into
// nested multiparts
func walkPart(header textproto.MIMEHeader, body io.Reader, text *bytes.Buffer, attachments *bool) error {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// unparsable content types are read as plain text
		mediaType = "text/plain"
	}

	if isAttachment(header) {
		*attachments = true
		return nil
	}

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		boundary, ok := params["boundary"]
		if !ok {
			return readText(header, body, text)
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextRawPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				if text.Len() > 0 {
					return nil
				}
				return err
			}
			if err := walkPart(part.Header, part, text, attachments); err != nil {
				return err
			}
		}
	case mediaType == "text/plain":
		return readText(header, body, text)
	case strings.HasPrefix(mediaType, "text/"), mediaType == "message/rfc822":
		// alternative renderings and forwarded messages are not body text
		return nil
	default:
		*attachments = true
		return nil
	}
}

func isAttachment(header textproto.MIMEHeader) bool {
	disposition, params, err := mime.ParseMediaType(header.Get("Content-Disposition"))
	if err == nil && (disposition == "attachment" || params["filename"] != "") {
		return true
	}
	_, ctParams, err := mime.ParseMediaType(header.Get("Content-Type"))
	return err == nil && ctParams["name"] != ""
}

func readText(header textproto.MIMEHeader, body io.Reader, text *bytes.Buffer) error {
	switch strings.ToLower(strings.TrimSpace(header.Get("Content-Transfer-Encoding"))) {
	case "base64":
		body = base64.NewDecoder(base64.StdEncoding, body)
	case "quoted-printable":
		body = quotedprintable.NewReader(body)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read text part: %w", err)
	}
	if text.Len() > 0 {
		text.WriteString("\n")
	}
	text.Write(data)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
