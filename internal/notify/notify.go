/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package notify implements the notification sink boundary:
// SendMail(to, cc, subject, bodyHtml, flags). The proposal handler is the
// only caller — reviewers are addressed as recipients, the requester as CC.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/go-logr/logr"

	"github.com/marcus-qen/jitbroker/internal/telemetry"
)

// Sink is the notification boundary the proposal handler depends on.
type Sink interface {
	SendMail(ctx context.Context, to, cc []string, subject, bodyHtml string, flags map[string]string) error
}

// SMTPSink is the default, self-contained Sink implementation for
// deployments with no separate notification service to delegate to.
type SMTPSink struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
	// Logger defaults to logr.Discard() when unset.
	Logger logr.Logger
}

// NewSMTPSink creates an SMTP-backed notification sink.
func NewSMTPSink(host string, port int, from, username, password string) *SMTPSink {
	return &SMTPSink{Host: host, Port: port, From: from, Username: username, Password: password}
}

func (s *SMTPSink) logger() logr.Logger {
	if s.Logger.GetSink() == nil {
		return logr.Discard()
	}
	return s.Logger
}

// SendMail implements Sink. flags are rendered as an "X-Jitbroker-"
// prefixed header per key so a reviewing mail client can filter on them
// (e.g. flags["proposal_id"] becomes "X-Jitbroker-Proposal-Id").
func (s *SMTPSink) SendMail(ctx context.Context, to, cc []string, subject, bodyHtml string, flags map[string]string) error {
	_, span := telemetry.StartNotifySpan(ctx, len(to)+len(cc))
	defer span.End()

	var headers strings.Builder
	fmt.Fprintf(&headers, "From: %s\r\n", s.From)
	if len(to) > 0 {
		fmt.Fprintf(&headers, "To: %s\r\n", strings.Join(to, ","))
	}
	if len(cc) > 0 {
		fmt.Fprintf(&headers, "Cc: %s\r\n", strings.Join(cc, ","))
	}
	fmt.Fprintf(&headers, "Subject: %s\r\n", subject)
	headers.WriteString("MIME-Version: 1.0\r\n")
	headers.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	for key, value := range flags {
		fmt.Fprintf(&headers, "X-Jitbroker-%s: %s\r\n", headerName(key), value)
	}
	headers.WriteString("\r\n")
	headers.WriteString(bodyHtml)

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}

	recipients := make([]string, 0, len(to)+len(cc))
	recipients = append(recipients, to...)
	recipients = append(recipients, cc...)

	if err := smtp.SendMail(addr, auth, s.From, recipients, []byte(headers.String())); err != nil {
		s.logger().Error(err, "smtp send failed", "recipients", len(recipients), "subject", subject)
		return err
	}
	s.logger().Info("mail sent", "recipients", len(recipients), "subject", subject)
	return nil
}

// headerName renders a flag key as a Mime-Header-Case token, e.g.
// "proposal_id" -> "Proposal-Id".
func headerName(key string) string {
	parts := strings.Split(key, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "-")
}
