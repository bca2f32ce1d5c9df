package smtp

import (
	"fmt"
	smtpPkg "net/smtp"
	"os"
	"strings"

	"ProctorEngine/internal/entity"
)

type ItfSmtp interface {
	SendSessionReport(recipient string, sessionID string, stats entity.ProctorStats, violations []entity.Violation) error
}

type smtp struct {
	auth smtpPkg.Auth
	mail string
}

func New() ItfSmtp {
	mail := os.Getenv("SMTP_MAIL")
	password := os.Getenv("SMTP_PASSWORD")
	auth := smtpPkg.PlainAuth("", mail, password, "smtp.gmail.com")

	return &smtp{auth: auth, mail: mail}
}

// SendSessionReport emails the interviewer a summary once a proctoring
// session completes.
func (s *smtp) SendSessionReport(recipient string, sessionID string, stats entity.ProctorStats, violations []entity.Violation) error {
	to := []string{recipient}

	var body strings.Builder
	fmt.Fprintf(&body, "Proctoring session %s completed.\r\n\r\n", sessionID)
	fmt.Fprintf(&body, "Trust score: %d/100\r\n", stats.TrustScore)
	fmt.Fprintf(&body, "Total violations: %d\r\n\r\n", stats.TotalViolations)

	for _, v := range violations {
		fmt.Fprintf(&body, "- [%s] %s: %s\r\n", v.Timestamp.Format("15:04:05"), v.Type, v.Message)
	}

	message := []byte(fmt.Sprintf("To: %s\r\nSubject: Proctoring Report %s\r\n\r\n%s",
		recipient, sessionID, body.String()))

	err := smtpPkg.SendMail("smtp.gmail.com:587", s.auth, s.mail, to, message)
	if err != nil {
		return err
	}

	return nil
}
