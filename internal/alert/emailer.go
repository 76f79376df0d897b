// Package alert sends email warnings when a reading crosses its configured
// thresholds or a sensor stops answering entirely.
package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"codeberg.org/frostwatch/freezerctl/internal/config"
	"codeberg.org/frostwatch/freezerctl/internal/errors"
	"codeberg.org/frostwatch/freezerctl/internal/logger"
	"codeberg.org/frostwatch/freezerctl/internal/sensor"
)

// alert kinds, used as resend-suppression keys per source.
const (
	kindOver  = "over"
	kindUnder = "under"
	kindDead  = "dead"
)

type mailSender interface {
	send(subject, body string) error
}

// Emailer is a sink that only acts on alert-flagged readings. Each alert
// kind is rate limited per source so a freezer left open overnight produces
// one email per resend window, not one per poll.
type Emailer struct {
	sender     mailSender
	thresholds map[string]config.Threshold
	resend     time.Duration
	lastSent   map[string]time.Time
	now        func() time.Time
}

// NewEmailer builds the SMTP-backed alert sink from config.
func NewEmailer(cfg config.Email, thresholds map[string]config.Threshold) (*Emailer, error) {
	sender, err := newSMTPSender(cfg)
	if err != nil {
		return nil, err
	}

	return &Emailer{
		sender:     sender,
		thresholds: thresholds,
		resend:     time.Duration(cfg.ResendMin) * time.Minute,
		lastSent:   make(map[string]time.Time),
		now:        time.Now,
	}, nil
}

func (e *Emailer) Name() string {
	return "email"
}

func (e *Emailer) Publish(_ context.Context, r sensor.Reading) error {
	if !r.Alert {
		return nil
	}

	kind, subject, body := e.compose(r)

	key := r.Source + "/" + kind
	if last, ok := e.lastSent[key]; ok && e.now().Sub(last) < e.resend {
		logger.Debug().Str("source", r.Source).Str("kind", kind).Msg("Alert email suppressed by resend window")
		return nil
	}

	if err := e.sender.send(subject, body); err != nil {
		return errors.Wrap(errors.ErrSinkFailure, err)
	}
	e.lastSent[key] = e.now()

	return nil
}

func (e *Emailer) compose(r sensor.Reading) (kind, subject, body string) {
	if r.Sentinel {
		return kindDead,
			fmt.Sprintf("%s sensor ERROR!", r.Source),
			fmt.Sprintf("The %q sensor has stopped answering after repeated retries.\n\n"+
				"Something has gone wrong, check immediately!", r.Source)
	}

	t, _ := r.Value(sensor.Temperature)
	rh, _ := r.Value(sensor.Humidity)
	stats := fmt.Sprintf("Current stats:\n\n"+
		"  Temperature       : %6.1f C\n"+
		"  Relative Humidity : %6.1f %%\n\n"+
		"Check on the freezer immediately!", t, rh)

	if th, ok := e.thresholds[sensor.Temperature]; ok {
		if th.Min != nil && t < *th.Min {
			return kindUnder,
				fmt.Sprintf("%s getting too COLD!", r.Source),
				fmt.Sprintf("The temperature of %q has gone below the configured threshold.\n\n%s", r.Source, stats)
		}
		if th.Max != nil && t > *th.Max {
			return kindOver,
				fmt.Sprintf("%s getting HOT!", r.Source),
				fmt.Sprintf("The temperature of %q has exceeded the configured threshold.\n\n%s", r.Source, stats)
		}
	}

	// The temperature is in range, so another quantity tripped the alert.
	for _, q := range r.Quantities() {
		if q == sensor.Temperature {
			continue
		}
		th, ok := e.thresholds[q]
		if !ok {
			continue
		}
		v, _ := r.Value(q)
		if th.Min != nil && v < *th.Min {
			return q + "-low",
				fmt.Sprintf("%s %s too LOW!", r.Source, q),
				fmt.Sprintf("The %s of %q has gone below the configured threshold.\n\n%s", q, r.Source, stats)
		}
		if th.Max != nil && v > *th.Max {
			return q + "-high",
				fmt.Sprintf("%s %s too HIGH!", r.Source, q),
				fmt.Sprintf("The %s of %q has exceeded the configured threshold.\n\n%s", q, r.Source, stats)
		}
	}

	return kindOver,
		fmt.Sprintf("%s getting HOT!", r.Source),
		fmt.Sprintf("The temperature of %q has exceeded the configured threshold.\n\n%s", r.Source, stats)
}

func (e *Emailer) Close() error {
	return nil
}

type smtpSender struct {
	client *mail.Client
	from   string
	to     []string
}

func newSMTPSender(cfg config.Email) (*smtpSender, error) {
	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInitFailed, err)
	}

	return &smtpSender{client: client, from: cfg.From, to: cfg.To}, nil
}

func (s *smtpSender) send(subject, body string) error {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return err
	}
	if err := m.To(s.to...); err != nil {
		return err
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, body)

	return s.client.DialAndSend(m)
}
