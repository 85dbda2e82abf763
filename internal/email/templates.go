package email

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/authrim/authrim/internal/domain/repository"
)

// CodeVars son las variables de los templates de código por email.
type CodeVars struct {
	Code         string
	Tenant       string
	TTLMinutes   int
	LogoURL      string
	PrimaryColor string
	SupportURL   string
}

const codeHTML = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
  {{if .LogoURL}}<img src="{{.LogoURL}}" alt="{{.Tenant}}" height="40">{{end}}
  <h2 style="color: {{if .PrimaryColor}}{{.PrimaryColor}}{{else}}#1a1a1a{{end}};">{{.Tenant}}</h2>
  <p>{{.Intro}}</p>
  <p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">{{.Code}}</p>
  <p>{{.Expiry}}</p>
  {{if .SupportURL}}<p><a href="{{.SupportURL}}">{{.SupportLabel}}</a></p>{{end}}
</body>
</html>`

var codeTmpl = template.Must(template.New("code").Parse(codeHTML))

type codeTmplData struct {
	CodeVars
	Intro        string
	Expiry       string
	SupportLabel string
}

// RenderVerification renderiza el email de verificación en el idioma del tenant.
func RenderVerification(t *repository.Tenant, vars CodeVars) (subject, html, text string, err error) {
	switch t.Language {
	case "es":
		return renderCode(vars,
			fmt.Sprintf("Tu código de verificación: %s", vars.Code),
			"Usá este código para verificar tu email:",
			fmt.Sprintf("El código vence en %d minutos.", vars.TTLMinutes),
			"Soporte")
	default:
		return renderCode(vars,
			fmt.Sprintf("Your verification code: %s", vars.Code),
			"Use this code to verify your email:",
			fmt.Sprintf("The code expires in %d minutes.", vars.TTLMinutes),
			"Support")
	}
}

// RenderPasswordReset renderiza el email de reset de password.
func RenderPasswordReset(t *repository.Tenant, vars CodeVars) (subject, html, text string, err error) {
	switch t.Language {
	case "es":
		return renderCode(vars,
			"Restablecer tu password",
			"Usá este código para restablecer tu password:",
			fmt.Sprintf("El código vence en %d minutos.", vars.TTLMinutes),
			"Soporte")
	default:
		return renderCode(vars,
			"Reset your password",
			"Use this code to reset your password:",
			fmt.Sprintf("The code expires in %d minutes.", vars.TTLMinutes),
			"Support")
	}
}

func renderCode(vars CodeVars, subject, intro, expiry, supportLabel string) (string, string, string, error) {
	var buf bytes.Buffer
	data := codeTmplData{CodeVars: vars, Intro: intro, Expiry: expiry, SupportLabel: supportLabel}
	if err := codeTmpl.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("render email: %w", err)
	}
	text := fmt.Sprintf("%s\n\n%s\n%s\n", intro, vars.Code, expiry)
	return subject, buf.String(), text, nil
}
