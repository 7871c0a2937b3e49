// Package notify provides code delivery adapters for the engine's EmailSender
// contract.
//
// LogSender writes deliveries to a slog logger for development. RedisOutbox
// appends them to a Redis stream drained by a separate mail worker, so the
// authentication call never waits on SMTP. Recorder keeps them in memory for
// tests.
package notify

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/MrEthical07/authflow/model"
)

// LinkBuilder turns a raw code into the link placed in the email.
type LinkBuilder struct {
	// BaseURL is the redeeming page. Empty yields the bare code.
	BaseURL string
}

// Build appends code and type as query parameters to BaseURL.
func (b LinkBuilder) Build(typ model.CodeType, code string) string {
	if b.BaseURL == "" {
		return code
	}
	u, err := url.Parse(b.BaseURL)
	if err != nil {
		return code
	}
	q := u.Query()
	q.Set("code", code)
	q.Set("type", string(typ))
	u.RawQuery = q.Encode()
	return u.String()
}

// LogSender logs each delivery instead of sending mail. Links are redacted
// unless RevealLinks is set.
type LogSender struct {
	Log         *slog.Logger
	RevealLinks bool
}

func (s LogSender) SendCode(ctx context.Context, typ model.CodeType, toEmail, link string) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	if !s.RevealLinks {
		link = redact(link)
	}
	log.InfoContext(ctx, "verification code delivered", "type", string(typ), "to", toEmail, "link", link)
	return nil
}

func redact(link string) string {
	if i := strings.Index(link, "code="); i >= 0 {
		end := strings.IndexByte(link[i:], '&')
		if end < 0 {
			return link[:i] + "code=REDACTED"
		}
		return link[:i] + "code=REDACTED" + link[i+end:]
	}
	return "REDACTED"
}

// Delivery is one recorded SendCode call.
type Delivery struct {
	Type model.CodeType
	To   string
	Link string
}

// Recorder stores deliveries in memory. Err, when set, is returned from every
// call after recording.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
	Err        error
}

func (r *Recorder) SendCode(_ context.Context, typ model.CodeType, toEmail, link string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, Delivery{Type: typ, To: toEmail, Link: link})
	return r.Err
}

// Deliveries returns a copy of everything recorded so far.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Delivery, len(r.deliveries))
	copy(out, r.deliveries)
	return out
}

// Last returns the most recent delivery.
func (r *Recorder) Last() (Delivery, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.deliveries) == 0 {
		return Delivery{}, false
	}
	return r.deliveries[len(r.deliveries)-1], true
}

// CodeFromLink extracts the code query parameter from a link built by
// LinkBuilder, or returns link itself when it carries none.
func CodeFromLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	if c := u.Query().Get("code"); c != "" {
		return c
	}
	return link
}
