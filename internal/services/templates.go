package services

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/learnloop/campaign-engine/internal/models"
	"github.com/learnloop/campaign-engine/pkg/mailer"
)

type emailData struct {
	RecipientName string
	CampaignTitle string
	CampaignURL   string
}

type emailTemplate struct {
	subject string
	body    *template.Template
}

const emailLayout = `<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;color:#1f2937">
<p>Hi {{.RecipientName}},</p>
{{template "content" .}}
<p><a href="{{.CampaignURL}}" style="background:#2563eb;color:#fff;padding:10px 16px;border-radius:6px;text-decoration:none">{{template "action" .}}</a></p>
</body></html>`

var emailTemplates = map[models.NotificationType]emailTemplate{
	models.NotificationInvitation: newEmailTemplate(
		"You're invited: %s",
		`{{define "content"}}<p>You have been enrolled in <strong>{{.CampaignTitle}}</strong>.</p>{{end}}{{define "action"}}Start learning{{end}}`,
	),
	models.NotificationReminder: newEmailTemplate(
		"Reminder: finish %s",
		`{{define "content"}}<p>You still have modules left in <strong>{{.CampaignTitle}}</strong>. Pick up where you left off.</p>{{end}}{{define "action"}}Continue{{end}}`,
	),
	models.NotificationCompletion: newEmailTemplate(
		"Completed: %s",
		`{{define "content"}}<p>Congratulations, you completed <strong>{{.CampaignTitle}}</strong>.</p>{{end}}{{define "action"}}View campaign{{end}}`,
	),
}

func newEmailTemplate(subject, blocks string) emailTemplate {
	t := template.Must(template.New("email").Parse(emailLayout))
	template.Must(t.Parse(blocks))
	return emailTemplate{subject: subject, body: t}
}

// renderEmail builds the message for a notification of its campaign
func renderEmail(n *models.Notification, campaign *models.Campaign, baseURL string) (mailer.Message, error) {
	tmpl, ok := emailTemplates[n.Type]
	if !ok {
		return mailer.Message{}, fmt.Errorf("no email template for notification type %q", n.Type)
	}

	name := n.RecipientName
	if name == "" {
		name = n.RecipientEmail
	}
	data := emailData{
		RecipientName: name,
		CampaignTitle: campaign.Title,
		CampaignURL:   strings.TrimRight(baseURL, "/") + "/campaigns/" + campaign.ID,
	}

	var body bytes.Buffer
	if err := tmpl.body.Execute(&body, data); err != nil {
		return mailer.Message{}, fmt.Errorf("failed to render %s email: %w", n.Type, err)
	}
	return mailer.Message{
		To:      n.RecipientEmail,
		Subject: fmt.Sprintf(tmpl.subject, campaign.Title),
		HTML:    body.String(),
	}, nil
}
