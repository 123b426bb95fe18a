package email

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPAlerter mails operators about videos the pipeline could not settle.
type SMTPAlerter struct {
	host   string
	port   int
	from   string
	to     string
	send   sendFunc
	logger *zap.Logger
}

func NewSMTPAlerter(host string, port int, from, to string, logger *zap.Logger) *SMTPAlerter {
	return &SMTPAlerter{host: host, port: port, from: from, to: to, send: smtp.SendMail, logger: logger}
}

func (a *SMTPAlerter) Alert(_ context.Context, videoID, subject, detail string) error {
	addr := fmt.Sprintf("%s:%d", a.host, a.port)

	body := fmt.Sprintf(
		"Video %s needs attention.\r\n\r\n"+
			"%s\r\n\r\n"+
			"The record may still show status Processing. Check the store and re-enqueue or mark it errored.\r\n\r\n"+
			"-- vidstream processing worker",
		videoID, detail,
	)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: [vidstream] %s [video %s]\r\n\r\n%s",
		a.from, a.to, subject, videoID, body,
	)

	if err := a.send(addr, nil, a.from, []string{a.to}, []byte(msg)); err != nil {
		a.logger.Error("failed to send operator alert",
			zap.String("to", a.to),
			zap.String("video_id", videoID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	a.logger.Info("operator alert sent",
		zap.String("to", a.to),
		zap.String("video_id", videoID),
	)
	return nil
}
