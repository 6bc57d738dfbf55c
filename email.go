package main

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	gomail "github.com/wneessen/go-mail"
)

// EmailPayload is everything the draft sink needs for one ZBM: recipients,
// dated subject, the rendered HTML table, and resolved attachment paths.
// Drafts are prepared for human review; nothing in this program sends mail.
type EmailPayload struct {
	ZBMCode     string
	ZBMName     string
	To          string
	CC          []string
	Subject     string
	HTMLBody    string
	Attachments []string
}

// DraftSink writes one prepared message somewhere a human can review it.
// Returns the path of the written draft.
type DraftSink interface {
	WriteDraft(payload EmailPayload) (string, error)
}

var emailBodyTemplate = template.Must(template.New("body").Parse(`<html>
<body style="font-family: Arial, sans-serif;">
<p>Hi {{.ZBMName}},</p>

<p>Please refer the status Sample requests raised in Abbworld for your area.</p>

{{.Table}}

<p>You can track your sample request at the following link with the Docket Number:</p>

<p>DTDC: <a href="https://www.dtdc.com/tracking">Click here</a></p>

<p>Speed Post: <a href="https://www.indiapost.gov.in/vas/Pages/IndiaPostHome.aspx">Click Here</a></p>

<p>In case of any query, please contact 1Point.</p>

<p>Regards,<br>{{.Sender}}.</p>
</body>
</html>
`))

var emailTableTemplate = template.Must(template.New("table").Parse(
	`<table border='1' cellpadding='5' cellspacing='0' style='border-collapse: collapse; width: 100%; font-size: 12px;'>
<tr style='background-color: #4472C4; color: white; font-weight: bold;'>{{range .Headers}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr>{{range .}}<td style='text-align: center;'>{{.}}</td>{{end}}</tr>
{{end}}<tr style='background-color: #D9E1F2; font-weight: bold;'>{{range .Total}}<td style='text-align: center;'>{{.}}</td>{{end}}</tr>
</table>`))

// buildEmailPayload renders one zone report into a reviewable message: the ZBM
// is the recipient, its ABMs are CC'd, and the body carries the same table as
// the summary workbook with a styled total row.
func buildEmailPayload(report ZoneReport, cfg RunConfig) (EmailPayload, error) {
	var table strings.Builder
	rows := make([][]string, 0, len(report.Rows))
	for _, row := range report.Rows {
		rows = append(rows, cellValues(summaryCells(row)))
	}
	total := report.Total
	total.ABMName = ""
	err := emailTableTemplate.Execute(&table, struct {
		Headers []string
		Rows    [][]string
		Total   []string
	}{
		Headers: summaryTemplateColumns,
		Rows:    rows,
		Total:   cellValues(summaryCells(total)),
	})
	if err != nil {
		return EmailPayload{}, fmt.Errorf("render table: %w", err)
	}

	var body strings.Builder
	err = emailBodyTemplate.Execute(&body, struct {
		ZBMName string
		Table   template.HTML
		Sender  string
	}{
		ZBMName: report.ZBMName,
		Table:   template.HTML(table.String()),
		Sender:  cfg.SenderName,
	})
	if err != nil {
		return EmailPayload{}, fmt.Errorf("render body: %w", err)
	}

	return EmailPayload{
		ZBMCode:  report.ZBMCode,
		ZBMName:  report.ZBMName,
		To:       report.ZBMEmail,
		CC:       report.ABMEmails,
		Subject:  cfg.subject(),
		HTMLBody: body.String(),
	}, nil
}

func cellValues(cells []Cell) []string {
	values := make([]string, len(cells))
	for idx, cell := range cells {
		values[idx] = cell.Value
	}
	return values
}

// emlDraftSink writes RFC 822 draft files that any mail client can open for
// review and manual sending.
type emlDraftSink struct {
	dir         string
	senderName  string
	senderEmail string
}

func newEMLDraftSink(dir, senderName, senderEmail string) (*emlDraftSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &emlDraftSink{dir: dir, senderName: senderName, senderEmail: senderEmail}, nil
}

func (s *emlDraftSink) WriteDraft(payload EmailPayload) (string, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.senderName, s.senderEmail); err != nil {
		return "", fmt.Errorf("draft from: %w", err)
	}
	if err := msg.To(payload.To); err != nil {
		return "", fmt.Errorf("draft to %s: %w", payload.To, err)
	}
	if len(payload.CC) > 0 {
		if err := msg.Cc(payload.CC...); err != nil {
			return "", fmt.Errorf("draft cc: %w", err)
		}
	}
	msg.Subject(payload.Subject)
	msg.SetBodyString(gomail.TypeTextHTML, payload.HTMLBody)
	for _, attachment := range payload.Attachments {
		msg.AttachFile(attachment)
	}

	filename := fmt.Sprintf("Email_%s_%s.eml", payload.ZBMCode, safeName(payload.ZBMName))
	path := filepath.Join(s.dir, filename)
	if err := msg.WriteToFile(path); err != nil {
		return "", fmt.Errorf("write draft: %w", err)
	}
	return path, nil
}

// htmlDraftSink is the no-mail-client fallback: a standalone HTML file showing
// the recipients, subject, attachment list and rendered body.
type htmlDraftSink struct {
	dir string
}

func newHTMLDraftSink(dir string) (*htmlDraftSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &htmlDraftSink{dir: dir}, nil
}

var htmlDraftTemplate = template.Must(template.New("draft").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #f0f0f0; padding: 10px; margin-bottom: 20px; border: 1px solid #ddd; }
        .attachments { background-color: #fff3cd; padding: 10px; margin: 20px 0; border: 1px solid #ffc107; }
    </style>
</head>
<body>
    <div class="header">
        <h3>Email Details:</h3>
        <p><strong>To:</strong> {{.To}}</p>
        <p><strong>CC:</strong> {{.CC}}</p>
        <p><strong>Subject:</strong> {{.Subject}}</p>
    </div>
    <div class="attachments">
        <p><strong>Attachments:</strong></p>
        <ul>
{{- if .Attachments}}{{range .Attachments}}
            <li>{{.}}</li>
{{- end}}{{else}}
            <li>No attachments found</li>
{{- end}}
        </ul>
    </div>
    <div class="email-content">
        {{.Body}}
    </div>
</body>
</html>
`))

func (s *htmlDraftSink) WriteDraft(payload EmailPayload) (string, error) {
	attachments := make([]string, 0, len(payload.Attachments))
	for _, attachment := range payload.Attachments {
		attachments = append(attachments, filepath.Base(attachment))
	}

	var out strings.Builder
	err := htmlDraftTemplate.Execute(&out, struct {
		To          string
		CC          string
		Subject     string
		Attachments []string
		Body        template.HTML
	}{
		To:          payload.To,
		CC:          strings.Join(payload.CC, "; "),
		Subject:     payload.Subject,
		Attachments: attachments,
		Body:        template.HTML(payload.HTMLBody),
	})
	if err != nil {
		return "", fmt.Errorf("render draft: %w", err)
	}

	filename := fmt.Sprintf("Email_%s_%s.html", payload.ZBMCode, safeName(payload.ZBMName))
	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, []byte(out.String()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
