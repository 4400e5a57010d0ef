package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/adapters/parser"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/ports"
)

const processTimeout = 30 * time.Second

const errorHeader = "X-Triage-Error"

// PostfixFilter is a Postfix content filter. Every message received over
// SMTP is triaged, annotated with triage headers and handed back to Postfix.
type PostfixFilter struct {
	service ports.Triager
	logger  *zap.Logger
	cfg     config.ServerConfig
	bypass  *senderBypass
	server  *smtp.Server
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(service ports.Triager, logger *zap.Logger, cfg config.ServerConfig) *PostfixFilter {
	return &PostfixFilter{
		service: service,
		logger:  logger,
		cfg:     cfg,
		bypass:  newSenderBypass(cfg.BypassDomains, logger),
	}
}

// Start starts the Postfix filter service
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.cfg.ListenAddress
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	f.logger.Info("Postfix filter starting", zap.String("address", f.cfg.ListenAddress))

	go func() {
		if err := f.server.ListenAndServe(); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the Postfix filter service
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// Annotate triages a raw message and returns it with triage headers added.
// A failed triage is reported in an X-Triage-Error header and never blocks
// delivery. Mail from bypassed senders is returned unchanged.
func (f *PostfixFilter) Annotate(ctx context.Context, raw []byte, sender string, recipients []string) ([]byte, *core.TriageResult) {
	var result *core.TriageResult

	msg, err := parser.ParseEML(bytes.NewReader(raw))
	if err == nil && f.bypass.matches(sender, msg.From) {
		return raw, nil
	}
	if err == nil {
		req := msg.Request()
		if req.Sender == "" {
			req.Sender = sender
		}
		if len(req.Recipients) == 0 {
			req.Recipients = recipients
		}
		result, err = f.service.Process(ctx, req)
	}

	if err != nil {
		f.logger.Error("Failed to triage message",
			zap.String("sender", sender),
			zap.String("code", core.Code(err)),
			zap.Error(err))
		return rewriteHeaders(raw, []header{
			{name: f.cfg.LabelHeader, value: "UNKNOWN"},
			{name: errorHeader, value: core.Code(err)},
		}, f.triageHeaders(), nil), nil
	}

	cls := result.Classification
	added := []header{
		{name: f.cfg.LabelHeader, value: string(cls.Label)},
		{name: f.cfg.ConfidenceHeader, value: fmt.Sprintf("%.4f", cls.Confidence)},
		{name: f.cfg.ReasonHeader, value: cls.Reasoning},
		{name: f.cfg.PriorityHeader, value: string(result.Priority)},
	}

	var subject *string
	if f.cfg.ModifySubject && f.cfg.SubjectPrefix != "" && cls.Label == core.LabelProductive &&
		!strings.HasPrefix(msg.Subject, f.cfg.SubjectPrefix) {
		s := f.cfg.SubjectPrefix + msg.Subject
		subject = &s
	}

	return rewriteHeaders(raw, added, f.triageHeaders(), subject), result
}

// triageHeaders lists every header the filter writes. Inbound copies are
// always removed, whatever the outcome.
func (f *PostfixFilter) triageHeaders() []string {
	return []string{
		f.cfg.LabelHeader,
		f.cfg.ConfidenceHeader,
		f.cfg.ReasonHeader,
		f.cfg.PriorityHeader,
		errorHeader,
	}
}

// sendToPostfix sends the processed message back to Postfix on the configured port
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, data []byte) error {
	postfixAddr := net.JoinHostPort(f.cfg.PostfixAddress, fmt.Sprint(f.cfg.PostfixPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", postfixAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return errors.New("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// the message has already been accepted
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data triages the message and forwards it
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	annotated, result := s.filter.Annotate(ctx, raw, s.sender, s.recipients)

	if !s.filter.cfg.PostfixEnabled {
		s.filter.logger.Warn("Postfix forwarding disabled, message is not delivered")
	} else if err := s.filter.sendToPostfix(s.sender, s.recipients, annotated); err != nil {
		s.filter.logger.Error("Failed to send message back to Postfix",
			zap.Error(err),
			zap.String("sender", s.sender))
		return err
	}

	if result != nil {
		s.filter.logger.Info("Processed message",
			zap.String("id", result.ID),
			zap.String("sender", s.sender),
			zap.String("label", string(result.Classification.Label)),
			zap.Float64("confidence", result.Classification.Confidence),
			zap.String("priority", string(result.Priority)))
	}

	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
