package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"strings"
	"sync"
	"time"

	"gopkg.in/gomail.v2"

	"gpu_sniper/internal/logbus"
	"gpu_sniper/internal/model"
)

const senderName = "GPU Sniper"

type sendFunc func(ctx context.Context, settings model.EmailSettings, batch []Notification) error

// EmailNotifier queues notifications and mails them in batches. With a zero
// summary window every notification is sent on its own.
type EmailNotifier struct {
	settings model.EmailSettings
	bus      *logbus.Bus

	mu     sync.Mutex
	queue  chan Notification
	ctx    context.Context
	cancel func()
	wg     sync.WaitGroup

	summaryWindow time.Duration
	maxBatch      int
	send          sendFunc
}

func NewEmailNotifier(settings model.EmailSettings, summaryWindow time.Duration, bus *logbus.Bus) *EmailNotifier {
	return newEmailNotifier(settings, summaryWindow, bus, SendSummaryEmail)
}

func newEmailNotifier(settings model.EmailSettings, summaryWindow time.Duration, bus *logbus.Bus, send sendFunc) *EmailNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	n := &EmailNotifier{
		settings:      settings,
		bus:           bus,
		queue:         make(chan Notification, 200),
		ctx:           ctx,
		cancel:        cancel,
		summaryWindow: summaryWindow,
		maxBatch:      50,
		send:          send,
	}
	n.wg.Add(1)
	go n.loop()
	return n
}

// Close flushes what is pending and stops the sender.
func (n *EmailNotifier) Close(ctx context.Context) error {
	n.mu.Lock()
	cancel := n.cancel
	n.cancel = nil
	n.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *EmailNotifier) Notify(_ context.Context, evt Notification) {
	if evt.At == 0 {
		evt.At = time.Now().UnixMilli()
	}
	select {
	case n.queue <- evt:
	default:
		n.log("warn", "email notification dropped: queue full", map[string]any{"productId": evt.ProductID})
	}
}

func (n *EmailNotifier) loop() {
	defer n.wg.Done()

	var (
		pending []Notification
		timer   *time.Timer
		timerCh <-chan time.Time
	)

	stopTimer := func() {
		if timer == nil {
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer = nil
		timerCh = nil
	}

	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(n.summaryWindow)
			timerCh = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(n.summaryWindow)
	}

	flush := func(reason string) {
		if len(pending) == 0 {
			stopTimer()
			return
		}
		batch := append([]Notification(nil), pending...)
		pending = pending[:0]
		stopTimer()
		n.handleBatch(reason, batch)
	}

	for {
		select {
		case <-n.ctx.Done():
		drain:
			for {
				select {
				case evt := <-n.queue:
					pending = append(pending, evt)
				default:
					break drain
				}
			}
			flush("shutdown")
			return
		case evt := <-n.queue:
			pending = append(pending, evt)
			if n.maxBatch > 0 && len(pending) >= n.maxBatch {
				flush("max")
				continue
			}
			if n.summaryWindow <= 0 {
				flush("immediate")
				continue
			}
			resetTimer()
		case <-timerCh:
			flush("idle")
		}
	}
}

func (n *EmailNotifier) handleBatch(reason string, batch []Notification) {
	if !n.settings.Enabled {
		n.log("debug", "email notifications disabled", map[string]any{"count": len(batch), "reason": reason})
		return
	}
	if err := validateEmailSettings(n.settings); err != nil {
		n.log("warn", "invalid email settings", map[string]any{"error": err.Error()})
		return
	}
	// the run context is already gone on shutdown; give the last batch its own deadline
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := n.send(ctx, n.settings, batch); err != nil {
		n.log("warn", "sending email failed", map[string]any{
			"error":  err.Error(),
			"count":  len(batch),
			"reason": reason,
		})
		return
	}
	n.log("info", "notification email sent", map[string]any{
		"count":  len(batch),
		"reason": reason,
		"to":     strings.TrimSpace(n.settings.Email),
	})
}

func (n *EmailNotifier) log(level, msg string, fields map[string]any) {
	if n.bus != nil {
		n.bus.Log(level, msg, fields)
	}
}

func validateEmailSettings(s model.EmailSettings) error {
	email := strings.TrimSpace(s.Email)
	if email == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.New("invalid email")
	}
	if strings.TrimSpace(s.AuthCode) == "" {
		return errors.New("authCode is required")
	}
	return nil
}

// SendSummaryEmail mails batch to the configured address from itself.
func SendSummaryEmail(ctx context.Context, settings model.EmailSettings, batch []Notification) error {
	if err := validateEmailSettings(settings); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return errors.New("no notifications")
	}

	email := strings.TrimSpace(settings.Email)
	host, port, useSSL, err := smtpConfigForEmail(email)
	if err != nil {
		return err
	}
	htmlBody, textBody, err := buildEmailBody(batch)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(email, senderName))
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", buildSubject(batch))
	msg.SetBody("text/plain", textBody)
	msg.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(host, port, email, strings.TrimSpace(settings.AuthCode))
	d.SSL = useSSL
	return d.DialAndSend(msg)
}

func smtpConfigForEmail(email string) (host string, port int, useSSL bool, err error) {
	parts := strings.Split(strings.TrimSpace(email), "@")
	if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
		return "", 0, false, errors.New("invalid email format")
	}
	domain := strings.ToLower(strings.TrimSpace(parts[1]))

	switch {
	case domain == "gmail.com" || domain == "googlemail.com":
		return "smtp.gmail.com", 587, false, nil
	case domain == "outlook.com" || domain == "hotmail.com" || domain == "live.com" ||
		strings.HasSuffix(domain, ".outlook.com") || strings.HasSuffix(domain, ".hotmail.com"):
		return "smtp.office365.com", 587, false, nil
	case domain == "yahoo.com" || strings.HasPrefix(domain, "yahoo."):
		return "smtp.mail.yahoo.com", 465, true, nil
	case domain == "icloud.com" || domain == "me.com" || domain == "mac.com":
		return "smtp.mail.me.com", 587, false, nil
	case domain == "gmx.de" || domain == "gmx.net" || domain == "gmx.com":
		return "mail.gmx.net", 465, true, nil
	case domain == "web.de":
		return "smtp.web.de", 587, false, nil
	case domain == "qq.com" || domain == "foxmail.com":
		return "smtp.qq.com", 465, true, nil
	default:
		return "smtp." + domain, 465, true, nil
	}
}

func buildSubject(batch []Notification) string {
	if len(batch) == 1 {
		return summarize(batch[0].Text, 80)
	}
	return fmt.Sprintf("GPU Sniper: %d notifications", len(batch))
}

var emailHTMLTpl = template.Must(template.New("email").Parse(`
<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width" />
    <title>GPU Sniper</title>
  </head>
  <body style="margin:0;padding:0;background:#f6f8fb;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,'Helvetica Neue',Arial,sans-serif;">
    <div style="max-width:720px;margin:0 auto;padding:24px;">
      <div style="background:#ffffff;border:1px solid #e6e8ef;border-radius:14px;overflow:hidden;">
        <div style="padding:18px 22px;background:linear-gradient(135deg,#76b900,#3f6600);color:#ffffff;">
          <div style="font-size:16px;font-weight:700;">GPU Sniper</div>
          <div style="margin-top:6px;font-size:12px;opacity:.95;">{{ .Total }} notification(s), {{ .Start }} to {{ .End }}</div>
        </div>
        <div style="padding:22px;">
          <table role="presentation" cellspacing="0" cellpadding="0" border="0" style="width:100%;border-collapse:collapse;">
            <tbody>
              {{ range .Rows }}
              <tr>
                <td style="width:150px;padding:10px 12px;border-bottom:1px solid #eef0f6;color:#6b7280;font-size:12px;">{{ .At }}</td>
                <td style="padding:10px 12px;border-bottom:1px solid #eef0f6;color:#111827;font-size:12px;font-weight:600;">
                  {{ .Text }}{{ if .URL }}<br /><a href="{{ .URL }}">{{ .URL }}</a>{{ end }}
                </td>
              </tr>
              {{ end }}
            </tbody>
          </table>
          <div style="margin-top:14px;color:#9ca3af;font-size:12px;">This email was sent automatically.</div>
        </div>
      </div>
    </div>
  </body>
</html>
`))

func buildEmailBody(batch []Notification) (htmlBody string, textBody string, err error) {
	if len(batch) == 0 {
		return "", "", errors.New("no notifications")
	}

	type row struct {
		At   string
		Text string
		URL  string
	}

	rows := make([]row, 0, len(batch))
	var minAt, maxAt time.Time
	for i, n := range batch {
		at := time.UnixMilli(n.At)
		if i == 0 || at.Before(minAt) {
			minAt = at
		}
		if i == 0 || at.After(maxAt) {
			maxAt = at
		}
		rows = append(rows, row{
			At:   at.Format("2006-01-02 15:04:05"),
			Text: n.Text,
			URL:  n.URL,
		})
	}

	data := struct {
		Total int
		Start string
		End   string
		Rows  []row
	}{
		Total: len(batch),
		Start: minAt.Format("2006-01-02 15:04:05"),
		End:   maxAt.Format("2006-01-02 15:04:05"),
		Rows:  rows,
	}

	var buf bytes.Buffer
	if err := emailHTMLTpl.Execute(&buf, data); err != nil {
		return "", "", err
	}

	text := new(strings.Builder)
	for _, r := range rows {
		text.WriteString(r.At + "  " + r.Text + "\n")
		if r.URL != "" {
			text.WriteString("    " + r.URL + "\n")
		}
	}
	return buf.String(), text.String(), nil
}

func summarize(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
