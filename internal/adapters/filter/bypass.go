package filter

import (
	"net/mail"
	"strings"

	"go.uber.org/zap"
)

// senderBypass matches senders whose mail is passed through untouched,
// such as internal automated mail. A domain also matches its subdomains.
type senderBypass struct {
	domains []string
	logger  *zap.Logger
}

func newSenderBypass(domains []string, logger *zap.Logger) *senderBypass {
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.Trim(strings.TrimSpace(d), "."))
		if d != "" {
			normalized = append(normalized, d)
		}
	}

	if len(normalized) > 0 {
		logger.Info("Sender bypass enabled", zap.Strings("domains", normalized))
	}

	return &senderBypass{
		domains: normalized,
		logger:  logger,
	}
}

// matches reports whether any of the given sender addresses is bypassed
func (b *senderBypass) matches(senders ...string) bool {
	if len(b.domains) == 0 {
		return false
	}
	for _, sender := range senders {
		domain := senderDomain(sender)
		if domain == "" {
			continue
		}
		for _, d := range b.domains {
			if domain == d || strings.HasSuffix(domain, "."+d) {
				b.logger.Debug("Sender bypassed", zap.String("sender", sender), zap.String("domain", d))
				return true
			}
		}
	}
	return false
}

func senderDomain(sender string) string {
	if addr, err := mail.ParseAddress(sender); err == nil {
		sender = addr.Address
	}
	at := strings.LastIndexByte(sender, '@')
	if at < 0 || at == len(sender)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimRight(sender[at+1:], ">"))
}
