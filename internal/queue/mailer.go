package queue

import (
    "context"
    "fmt"
    "time"

    "github.com/wneessen/go-mail"

    "github.com/kashf99/park-booking/internal/config"
)

// SMTPMailer delivers notifications as HTML email.
type SMTPMailer struct {
    from     string
    fromName string
    send     func(ctx context.Context, msg *mail.Msg) error
}

// NewSMTPMailer builds a mailer for cfg.  PLAIN auth is used when a
// username is configured; STARTTLS is used when the server offers it.
func NewSMTPMailer(cfg config.SMTPConfig, from string) (*SMTPMailer, error) {
    opts := []mail.Option{
        mail.WithPort(cfg.Port),
        mail.WithTLSPolicy(mail.TLSOpportunistic),
        mail.WithTimeout(30 * time.Second),
    }
    if cfg.Username != "" {
        opts = append(opts,
            mail.WithSMTPAuth(mail.SMTPAuthPlain),
            mail.WithUsername(cfg.Username),
            mail.WithPassword(cfg.Password))
    }
    client, err := mail.NewClient(cfg.Host, opts...)
    if err != nil {
        return nil, fmt.Errorf("smtp client: %w", err)
    }
    return &SMTPMailer{
        from:     from,
        fromName: "Park Booking",
        send: func(ctx context.Context, msg *mail.Msg) error {
            return client.DialAndSendWithContext(ctx, msg)
        },
    }, nil
}

// Send delivers msg.  Dialing and the SMTP exchange stop when ctx is
// cancelled.
func (m *SMTPMailer) Send(ctx context.Context, msg NotificationMessage) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    out, err := m.compose(msg, time.Now())
    if err != nil {
        return err
    }
    return m.send(ctx, out)
}

func (m *SMTPMailer) compose(msg NotificationMessage, now time.Time) (*mail.Msg, error) {
    out := mail.NewMsg()
    if err := out.FromFormat(m.fromName, m.from); err != nil {
        return nil, fmt.Errorf("mail from %q: %w", m.from, err)
    }
    if err := out.To(msg.To); err != nil {
        return nil, fmt.Errorf("mail to %q: %w", msg.To, err)
    }
    out.Subject(msg.Subject)
    out.SetDateWithValue(now)
    out.SetBodyString(mail.TypeTextHTML, msg.HTML)
    return out, nil
}
