package email

import (
	"fmt"
	"net/smtp"
	"sort"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"github.com/iRatG/loan-portfolio/internal/config"
	"github.com/iRatG/loan-portfolio/internal/models"
)

// Sender handles sending run reports via SMTP
type Sender struct {
	cfg    config.Report
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg config.Report, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// SendGenerationReport sends the end-of-run generation summary.
func (s *Sender) SendGenerationReport(report models.GenerationReport) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{s.cfg.EmailTo}
	e.Subject = fmt.Sprintf("Portfolio generation complete: batch %s", report.BatchID)

	body := fmt.Sprintf(
		"Batch %s generated %d loans (%d inserted this run).\n\nLoans by issue year:\n",
		report.BatchID, report.TotalLoans, report.InsertedTotal,
	)

	years := make([]string, 0, len(report.LoansByYear))
	for y := range report.LoansByYear {
		years = append(years, y)
	}
	sort.Strings(years)
	for _, y := range years {
		body += fmt.Sprintf("  %s: %d\n", y, report.LoansByYear[y])
	}
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send report to %s: %v", s.cfg.EmailTo, err)
		return fmt.Errorf("failed to send report email: %w", err)
	}

	s.logger.Infof("Report email sent to %s", s.cfg.EmailTo)
	return nil
}
