// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// actionEmail is the view model shared by every transactional email: a
// heading, a few paragraphs and one call-to-action link.
type actionEmail struct {
	SiteName   string
	Heading    string
	Paragraphs []string
	Button     string
	Link       string
	ExpiresIn  string
	Footer     string
}

var actionTmpl = template.Must(template.New("action").Parse(actionHTMLTemplate))

func render(to, subject string, data actionEmail) Email {
	var html bytes.Buffer
	_ = actionTmpl.Execute(&html, data)

	var text strings.Builder
	text.WriteString(data.Heading + "\n\n")
	for _, p := range data.Paragraphs {
		text.WriteString(p + "\n\n")
	}
	text.WriteString(data.Button + ": " + data.Link + "\n\n")
	if data.ExpiresIn != "" {
		text.WriteString(fmt.Sprintf("This link expires in %s.\n\n", data.ExpiresIn))
	}
	text.WriteString(data.Footer + "\n")

	return Email{To: to, Subject: subject, TextBody: text.String(), HTMLBody: html.String()}
}

// InvitationEmailData describes an invitation for an address with no account.
type InvitationEmailData struct {
	SiteName    string
	To          string
	TeamName    string
	InviterName string
	AcceptURL   string // registration link carrying the token
	ExpiresIn   string // e.g. "7 days"
}

// BuildInvitationEmail asks the recipient to create an account and join.
func BuildInvitationEmail(d InvitationEmailData) Email {
	return render(d.To, fmt.Sprintf("%s invited you to %s on %s", d.InviterName, d.TeamName, d.SiteName), actionEmail{
		SiteName: d.SiteName,
		Heading:  fmt.Sprintf("Join %s", d.TeamName),
		Paragraphs: []string{
			fmt.Sprintf("%s invited you to collaborate with the %s team.", d.InviterName, d.TeamName),
			"Create your account to accept the invitation.",
		},
		Button:    "Accept invitation",
		Link:      d.AcceptURL,
		ExpiresIn: d.ExpiresIn,
		Footer:    "If you were not expecting this invitation, you can ignore this email.",
	})
}

// MemberAddedEmailData notifies an existing user that they were added to a team.
type MemberAddedEmailData struct {
	SiteName    string
	To          string
	TeamName    string
	InviterName string
	TeamURL     string
}

// BuildMemberAddedEmail tells an existing user about their new team.
func BuildMemberAddedEmail(d MemberAddedEmailData) Email {
	return render(d.To, fmt.Sprintf("You were added to %s on %s", d.TeamName, d.SiteName), actionEmail{
		SiteName: d.SiteName,
		Heading:  fmt.Sprintf("Welcome to %s", d.TeamName),
		Paragraphs: []string{
			fmt.Sprintf("%s added you to the %s team.", d.InviterName, d.TeamName),
		},
		Button: "Open team",
		Link:   d.TeamURL,
		Footer: "You are receiving this because a team admin added your account.",
	})
}

// PasswordResetEmailData carries the reset link.
type PasswordResetEmailData struct {
	SiteName  string
	To        string
	ResetURL  string
	ExpiresIn string
}

// BuildPasswordResetEmail sends the reset link.
func BuildPasswordResetEmail(d PasswordResetEmailData) Email {
	return render(d.To, fmt.Sprintf("Reset your %s password", d.SiteName), actionEmail{
		SiteName: d.SiteName,
		Heading:  "Reset your password",
		Paragraphs: []string{
			"We received a request to reset the password for this address.",
		},
		Button:    "Choose a new password",
		Link:      d.ResetURL,
		ExpiresIn: d.ExpiresIn,
		Footer:    "If you did not request a reset, you can safely ignore this email.",
	})
}

const actionHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Heading}}</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px; box-shadow: 0 2px 4px rgba(0, 0, 0, 0.1);">
          <!-- Header -->
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #4f46e5;">{{.SiteName}}</h1>
            </td>
          </tr>

          <!-- Content -->
          <tr>
            <td style="padding: 32px;">
              <h2 style="margin: 0 0 16px; font-size: 20px; color: #1f2937;">{{.Heading}}</h2>
              {{range .Paragraphs}}
              <p style="margin: 0 0 16px; font-size: 16px; color: #374151; line-height: 1.5;">{{.}}</p>
              {{end}}

              <!-- Button -->
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
                <tr>
                  <td align="center">
                    <a href="{{.Link}}" style="display: inline-block; padding: 14px 32px; background-color: #4f46e5; color: #ffffff; text-decoration: none; font-size: 16px; font-weight: 500; border-radius: 6px;">
                      {{.Button}}
                    </a>
                  </td>
                </tr>
              </table>

              <p style="margin: 24px 0 0; font-size: 13px; color: #9ca3af; text-align: center;">
                {{if .ExpiresIn}}This link expires in {{.ExpiresIn}}.{{end}}
              </p>
            </td>
          </tr>

          <!-- Footer -->
          <tr>
            <td style="padding: 24px 32px; background-color: #f9fafb; border-top: 1px solid #e5e7eb; border-radius: 0 0 8px 8px;">
              <p style="margin: 0; font-size: 12px; color: #9ca3af; text-align: center;">
                {{.Footer}}
              </p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
