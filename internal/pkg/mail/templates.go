package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"
)

func layout(title string, body func(w io.Writer) error) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html><html lang="it"><head><meta charset="UTF-8"><title>%s</title></head>`+
			`<body style="font-family:Arial,sans-serif;color:#1f2937;">`, templ.EscapeString(title)); err != nil {
			return err
		}
		if err := body(w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `<p style="color:#6b7280;font-size:12px;">LarinAI</p></body></html>`)
		return err
	})
}

// OTPEmail renders the verification code email.
func OTPEmail(code string, validity time.Duration) templ.Component {
	return layout("Il tuo codice di verifica", func(w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<p>Il tuo codice di verifica LarinAI:</p>`+
				`<p style="font-size:28px;font-weight:bold;letter-spacing:4px;">%s</p>`+
				`<p>Il codice scade tra %d minuti.</p>`,
			templ.EscapeString(code), int(validity.Minutes()))
		return err
	})
}

// AccessRequestEmail notifies staff about a new function access request.
func AccessRequestEmail(userEmail, functionName string) templ.Component {
	return layout("Nuova richiesta di accesso", func(w io.Writer) error {
		_, err := fmt.Fprintf(w, `<p>%s ha richiesto l'accesso a <strong>%s</strong>.</p>`,
			templ.EscapeString(userEmail), templ.EscapeString(functionName))
		return err
	})
}

// Render writes a component to a string.
func Render(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
