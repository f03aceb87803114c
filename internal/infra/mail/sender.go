package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/gomail.v2"

	"github.com/xavierca1/leadsync/internal/entity"
)

//go:embed templates/*.html
var templates embed.FS

var failureReportTmpl = template.Must(template.ParseFS(templates, "templates/failure_report.html"))

type failureReportData struct {
	entity.BatchSummary
	GeneratedAt string
}

// Dialer is satisfied by *gomail.Dialer.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender mails batch failure reports to the operations inbox.
type EmailSender struct {
	From   string
	OpsTo  string
	dialer Dialer
	now    func() time.Time
}

func NewEmailSender(host string, port int, user, password, from, opsTo string) *EmailSender {
	return &EmailSender{
		From:   from,
		OpsTo:  opsTo,
		dialer: gomail.NewDialer(host, port, user, password),
		now:    time.Now,
	}
}

func (s *EmailSender) SendFailureReport(ctx context.Context, summary entity.BatchSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := renderFailureReport(summary, s.now())
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", s.OpsTo)
	m.SetHeader("Subject", fmt.Sprintf("[leadsync] %d lead(s) failed to reach the CRM", summary.Failed))
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return eris.Wrap(err, "mail: send failure report")
	}
	return nil
}

func renderFailureReport(summary entity.BatchSummary, at time.Time) (string, error) {
	var body bytes.Buffer
	data := failureReportData{BatchSummary: summary, GeneratedAt: at.UTC().Format(time.RFC1123)}
	if err := failureReportTmpl.Execute(&body, data); err != nil {
		return "", eris.Wrap(err, "mail: render failure report")
	}
	return body.String(), nil
}
