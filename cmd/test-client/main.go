// Command test-client sends test emails through the post-office SMTP
// ingress. Control headers select the priority, schedule and backend of the
// queued messages.
//
// Usage:
//
//	test-client --from sender@example.com --to recipient@example.com --priority high
//	test-client --tls starttls --insecure --count 10 --rate 5 --to recipient@example.com
package main

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/spf13/pflag"

	"github.com/sungwon/post-office/internal/mail"
	smtpserver "github.com/sungwon/post-office/internal/smtp"
	"github.com/sungwon/post-office/internal/transport"
)

type config struct {
	host     string
	port     int
	tlsMode  string
	insecure bool
	user     string
	password string
	from     string
	to       []string
	subject  string
	body     string
	priority string
	schedule string
	backend  string
	count    int
	rate     float64
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	cfg, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	addr := fmt.Sprintf("%s:%d", cfg.host, cfg.port)

	fmt.Fprintf(out, "SMTP Test Client\n")
	fmt.Fprintf(out, "  Server:   %s\n", addr)
	fmt.Fprintf(out, "  TLS:      %s\n", cfg.tlsMode)
	fmt.Fprintf(out, "  From:     %s\n", cfg.from)
	fmt.Fprintf(out, "  To:       %s\n", strings.Join(cfg.to, ", "))
	if cfg.priority != "" {
		fmt.Fprintf(out, "  Priority: %s\n", cfg.priority)
	}
	fmt.Fprintf(out, "  Count:    %d\n", cfg.count)
	fmt.Fprintln(out)

	var (
		successCount int
		failCount    int
		totalSend    time.Duration
	)

	interval := time.Duration(0)
	if cfg.count > 1 && cfg.rate > 0 {
		interval = time.Duration(float64(time.Second) / cfg.rate)
	}

	for i := 0; i < cfg.count; i++ {
		if i > 0 && interval > 0 {
			time.Sleep(interval)
		}

		seq := i + 1
		subject, body := cfg.subject, cfg.body
		if cfg.count > 1 {
			subject = fmt.Sprintf("%s [%d/%d]", cfg.subject, seq, cfg.count)
			body = fmt.Sprintf("%s\n\n-- Email %d of %d --", cfg.body, seq, cfg.count)
		}

		sendStart := time.Now()
		err := sendEmail(cfg, addr, subject, body)
		sendDuration := time.Since(sendStart)
		totalSend += sendDuration

		if err != nil {
			failCount++
			fmt.Fprintf(out, "  [%d/%d] FAIL (%s): %v\n", seq, cfg.count, sendDuration, err)
		} else {
			successCount++
			fmt.Fprintf(out, "  [%d/%d] OK   (%s)\n", seq, cfg.count, sendDuration)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Results: %d queued, %d failed, total time %s\n", successCount, failCount, totalSend)

	if failCount > 0 {
		return 1
	}
	return 0
}

func parseFlags(args []string) (config, error) {
	var cfg config
	fs := pflag.NewFlagSet("test-client", pflag.ContinueOnError)

	fs.StringVar(&cfg.host, "host", "localhost", "SMTP server host")
	fs.IntVar(&cfg.port, "port", 2525, "SMTP server port")
	fs.StringVar(&cfg.tlsMode, "tls", "none", "TLS mode: starttls, implicit, none")
	fs.BoolVar(&cfg.insecure, "insecure", false, "Skip TLS certificate verification")
	fs.StringVar(&cfg.user, "user", "", "SMTP AUTH username")
	fs.StringVar(&cfg.password, "password", "", "SMTP AUTH password")
	fs.StringVar(&cfg.from, "from", "test@localhost", "Sender email address")
	fs.StringArrayVar(&cfg.to, "to", nil, "Recipient email address (can be specified multiple times)")
	fs.StringVar(&cfg.subject, "subject", "Test Email", "Email subject")
	fs.StringVar(&cfg.body, "body", "This is a test email sent by post-office test-client.", "Email body")
	fs.StringVar(&cfg.priority, "priority", "", "Queue priority: low, medium, high, now")
	fs.StringVar(&cfg.schedule, "schedule", "", "Scheduled send time (RFC 3339)")
	fs.StringVar(&cfg.backend, "backend", "", "Delivery backend alias")
	fs.IntVar(&cfg.count, "count", 1, "Number of emails to send (for batch testing)")
	fs.Float64Var(&cfg.rate, "rate", 1, "Emails per second for batch sending")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if len(cfg.to) == 0 {
		return cfg, fmt.Errorf("at least one --to is required")
	}
	if cfg.schedule != "" {
		if _, err := time.Parse(time.RFC3339, cfg.schedule); err != nil {
			return cfg, fmt.Errorf("--schedule: %w", err)
		}
	}
	return cfg, nil
}

func sendEmail(cfg config, addr, subject, body string) error {
	raw, err := buildMessage(cfg, subject, body, time.Now())
	if err != nil {
		return err
	}

	c, err := dial(cfg, addr)
	if err != nil {
		return err
	}
	defer c.Close()

	if cfg.user != "" && cfg.password != "" {
		if err := c.Auth(sasl.NewPlainClient("", cfg.user, cfg.password)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.SendMail(cfg.from, cfg.to, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return c.Quit()
}

func dial(cfg config, addr string) (*gosmtp.Client, error) {
	tlsConfig := &tls.Config{
		ServerName:         cfg.host,
		InsecureSkipVerify: cfg.insecure, //nolint:gosec // Intentional for dev self-signed certs.
	}

	var (
		c   *gosmtp.Client
		err error
	)
	switch cfg.tlsMode {
	case "none":
		c, err = gosmtp.Dial(addr)
	case "implicit":
		c, err = gosmtp.DialTLS(addr, tlsConfig)
	case "starttls":
		c, err = gosmtp.DialStartTLS(addr, tlsConfig)
	default:
		return nil, fmt.Errorf("unknown TLS mode: %s (use starttls, implicit, or none)", cfg.tlsMode)
	}
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return c, nil
}

// buildMessage renders the test message with the ingress control headers.
func buildMessage(cfg config, subject, body string, date time.Time) ([]byte, error) {
	headers := map[string]string{}
	if cfg.priority != "" {
		headers[smtpserver.HeaderPriority] = cfg.priority
	}
	if cfg.schedule != "" {
		headers[smtpserver.HeaderScheduled] = cfg.schedule
	}
	if cfg.backend != "" {
		headers[smtpserver.HeaderBackend] = cfg.backend
	}

	return transport.Build(&mail.Message{
		From:    cfg.from,
		To:      cfg.to,
		Subject: subject,
		Body:    body,
		Headers: headers,
	}, date)
}
