package notify

import (
	"bytes"
	"html/template"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

const layout = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
{{block "content" .}}{{end}}
<p>Best regards,<br>{{.AppName}} Team</p>
</div>`

var (
	welcomeTemplate = template.Must(template.Must(template.New("welcome").Parse(layout)).Parse(`{{define "content"}}
<h2 style="color: #2563eb;">Welcome to {{.AppName}}!</h2>
<p>Hello {{.Name}},</p>
<p>Thank you for registering. Your account has been successfully created.</p>
<p>You can now create and manage projects, assign tasks to team members and track progress.</p>
<p>If you have any questions, please contact our support team.</p>
{{end}}`))

	resetTemplate = template.Must(template.Must(template.New("reset").Parse(layout)).Parse(`{{define "content"}}
<h2 style="color: #2563eb;">Password Reset Request</h2>
<p>You have requested to reset your password.</p>
<p>Click the link below to reset your password:</p>
<a href="{{.Link}}" style="background-color: #2563eb; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Reset Password</a>
<p>If you didn't request this, please ignore this email.</p>
<p>This link will expire in {{.Expiry}}.</p>
{{end}}`))
)

// Content is a rendered email.
type Content struct {
	Subject string
	HTML    string
}

type welcomeData struct {
	AppName string
	Name    string
}

type resetData struct {
	AppName string
	Link    template.URL
	Expiry  string
}

func RenderWelcome(appName, name string) (Content, error) {
	if name == "" {
		name = "there"
	}
	var buf bytes.Buffer
	if err := welcomeTemplate.Execute(&buf, welcomeData{AppName: appName, Name: name}); err != nil {
		return Content{}, errors.Wrap(err, "[RenderWelcome]")
	}
	return Content{Subject: "Welcome to " + appName, HTML: buf.String()}, nil
}

// RenderPasswordReset renders the reset email. link is produced by this service, never by user input.
func RenderPasswordReset(appName, link string, expiry time.Duration) (Content, error) {
	var buf bytes.Buffer
	data := resetData{AppName: appName, Link: template.URL(link), Expiry: humanDuration(expiry)}
	if err := resetTemplate.Execute(&buf, data); err != nil {
		return Content{}, errors.Wrap(err, "[RenderPasswordReset]")
	}
	return Content{Subject: "Password Reset Request", HTML: buf.String()}, nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return strconv.Itoa(int(d/time.Hour)) + " hours"
	case d%time.Minute == 0:
		return strconv.Itoa(int(d/time.Minute)) + " minutes"
	}
	return d.String()
}
