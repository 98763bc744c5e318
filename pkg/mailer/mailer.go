package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

var ErrNotConfigured = errors.New("smtp is not configured")

// Message is a multipart/alternative email with a plain-text and an HTML body.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

const (
	dialTimeout    = 10 * time.Second
	commandTimeout = 30 * time.Second
	submitTimeout  = 2 * time.Minute
)

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
	// startTLS upgrades a plain connection before AUTH
	startTLS bool
	dial     dialFunc
	now      func() time.Time
}

func New(host string, port int, username, password, from string) *Mailer {
	m := &Mailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		fromName: "Codentor",
		startTLS: true,
		dial:     (&net.Dialer{Timeout: dialTimeout}).DialContext,
		now:      time.Now,
	}
	// Port 465 speaks TLS from the first byte
	if port == 465 {
		m.startTLS = false
		m.dial = (&tls.Dialer{
			NetDialer: &net.Dialer{Timeout: dialTimeout},
			Config:    &tls.Config{ServerName: host},
		}).DialContext
	}
	return m
}

func (m *Mailer) Configured() bool {
	return m != nil && m.host != "" && m.from != ""
}

// Compose renders msg as an RFC 5322 message.
func (m *Mailer) Compose(msg Message) ([]byte, error) {
	var h mail.Header
	h.SetDate(m.now())
	h.SetAddressList("From", []*mail.Address{{Name: m.fromName, Address: m.from}})
	h.SetAddressList("To", []*mail.Address{{Name: msg.ToName, Address: msg.To}})
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create mail writer: %w", err)
	}

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain", msg.Text},
		{"text/html", msg.HTML},
	}
	for _, p := range parts {
		if p.body == "" {
			continue
		}
		var ph mail.InlineHeader
		ph.SetContentType(p.contentType, map[string]string{"charset": "utf-8"})
		pw, err := w.CreatePart(ph)
		if err != nil {
			return nil, fmt.Errorf("create %s part: %w", p.contentType, err)
		}
		if _, err := io.WriteString(pw, p.body); err != nil {
			return nil, err
		}
		if err := pw.Close(); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close mail writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Send composes msg and submits it over SMTP with PLAIN auth.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if !m.Configured() {
		return ErrNotConfigured
	}
	if msg.To == "" {
		return errors.New("mail recipient is empty")
	}

	raw, err := m.Compose(msg)
	if err != nil {
		return err
	}

	var auth sasl.Client
	if m.username != "" {
		auth = sasl.NewPlainClient("", m.username, m.password)
	}

	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))
	if err := m.submit(ctx, addr, auth, msg.To, raw); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// submit runs one SMTP session. The connection is closed as soon as ctx ends,
// which unblocks any command still waiting on the server.
func (m *Mailer) submit(ctx context.Context, addr string, auth sasl.Client, to string, raw []byte) error {
	conn, err := m.dial(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	cmdTimeout, subTimeout := commandTimeout, submitTimeout
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		cmdTimeout, subTimeout = min(cmdTimeout, left), min(subTimeout, left)
	}

	var c *smtp.Client
	if m.startTLS {
		c, err = smtp.NewClientStartTLS(conn, &tls.Config{ServerName: m.host})
		if err != nil {
			return err
		}
	} else {
		c = smtp.NewClient(conn)
	}
	defer c.Close()
	c.CommandTimeout = cmdTimeout
	c.SubmissionTimeout = subTimeout

	if auth != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp: server doesn't support AUTH")
		}
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.SendMail(m.from, []string{to}, bytes.NewReader(raw)); err != nil {
		return err
	}
	return c.Quit()
}
