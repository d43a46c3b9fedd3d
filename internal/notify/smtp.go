package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPSender delivers notification events as plain-text email.
type SMTPSender struct {
	addr    string
	auth    smtp.Auth
	from    string
	baseURL string
	// approverList supplies fallback recipients when the event carries
	// none.
	approverList func() []string
}

// NewSMTPSender creates an SMTP sender. username/password may be empty for
// unauthenticated relays. approverList resolves the default recipient set.
func NewSMTPSender(host string, port int, username, password, from, baseURL string, approverList func() []string) *SMTPSender {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPSender{
		addr:         fmt.Sprintf("%s:%d", host, port),
		auth:         auth,
		from:         from,
		baseURL:      baseURL,
		approverList: approverList,
	}
}

func (s *SMTPSender) subject(ev Event) string {
	switch ev.Kind {
	case KindTravelerCreated:
		return fmt.Sprintf("New traveler %s created", ev.Traveler.TravelerNumber)
	case KindApprovalRequested:
		return fmt.Sprintf("Approval needed: %s on traveler %s", ev.RequestType, ev.Traveler.TravelerNumber)
	case KindDecision:
		return fmt.Sprintf("Traveler %s request %s", ev.Traveler.TravelerNumber, ev.Approval.Status)
	}
	return fmt.Sprintf("Traveler %s update", ev.Traveler.TravelerNumber)
}

func (s *SMTPSender) body(ev Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Traveler: %s\r\n", ev.Traveler.TravelerNumber)
	fmt.Fprintf(&b, "Job:      %s\r\n", ev.Traveler.JobNumber)
	fmt.Fprintf(&b, "By:       %s\r\n", ev.Actor.Username)
	if ev.Approval != nil {
		fmt.Fprintf(&b, "Status:   %s\r\n", ev.Approval.Status)
		if ev.Approval.RejectionReason != "" {
			fmt.Fprintf(&b, "Reason:   %s\r\n", ev.Approval.RejectionReason)
		}
	}
	if s.baseURL != "" {
		fmt.Fprintf(&b, "\r\n%s/travelers/%d\r\n", s.baseURL, ev.Traveler.ID)
	}
	return b.String()
}

// Send implements Sender.
func (s *SMTPSender) Send(_ context.Context, ev Event) error {
	to := ev.Recipients
	if len(to) == 0 && s.approverList != nil {
		to = s.approverList()
	}
	if len(to) == 0 {
		return nil
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		s.from, strings.Join(to, ", "), s.subject(ev), s.body(ev))
	return smtp.SendMail(s.addr, s.auth, s.from, to, []byte(msg))
}
