package service

import (
	"bytes"
	"context"
	htmltmpl "html/template"
	texttmpl "text/template"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-portal/internal/models"
	"github.com/noah-isme/sma-portal/pkg/mailer"
	"github.com/noah-isme/sma-portal/pkg/sms"
)

// Notification template names.
const (
	NotifyRegistrationReceived = "registration_received"
	NotifyAccountApproved      = "account_approved"
	NotifyAccountRejected      = "account_rejected"
	NotifyRecoveryLink         = "recovery_link"
	NotifyPasswordChanged      = "password_changed"
)

type notificationTemplate struct {
	subject string
	text    *texttmpl.Template
	html    *htmltmpl.Template
}

var notificationTemplates = map[string]notificationTemplate{
	NotifyRegistrationReceived: newNotificationTemplate("Registration received",
		"Hello {{.Name}},\n\nWe received your registration for {{.App}}. An administrator will review it shortly; you will get an email once your account is approved.\n"),
	NotifyAccountApproved: newNotificationTemplate("Your account is active",
		"Hello {{.Name}},\n\nYour account has been approved. You can now sign in at {{.URL}}.\n"),
	NotifyAccountRejected: newNotificationTemplate("Registration update",
		"Hello {{.Name}},\n\nUnfortunately your registration could not be approved. Please contact the school office for details.\n"),
	NotifyRecoveryLink: newNotificationTemplate("Reset your password",
		"Hello {{.Name}},\n\nUse the link below to continue resetting your password. It expires in {{.Expires}}.\n\n{{.URL}}\n\nIf you did not ask for this, ignore this email.\n"),
	NotifyPasswordChanged: newNotificationTemplate("Your password was changed",
		"Hello {{.Name}},\n\nThe password of your account was changed. If this was not you, contact the school office immediately.\n"),
}

const notificationLayout = `<!doctype html><html><body style="font-family:sans-serif">{{range .Lines}}<p>{{.}}</p>{{end}}</body></html>`

var notificationHTML = htmltmpl.Must(htmltmpl.New("layout").Parse(notificationLayout))

func newNotificationTemplate(subject, body string) notificationTemplate {
	return notificationTemplate{
		subject: subject,
		text:    texttmpl.Must(texttmpl.New(subject).Parse(body)),
		html:    notificationHTML,
	}
}

// NotificationData fills notification templates.
type NotificationData struct {
	Name    string
	App     string
	URL     string
	Expires string
}

// NotificationService renders and delivers account notifications by email and SMS.
type NotificationService struct {
	mailer  mailer.Mailer
	sms     sms.Sender
	appName string
	logger  *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(m mailer.Mailer, s sms.Sender, appName string, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{mailer: m, sms: s, appName: appName, logger: logger}
}

// Email renders template name for user and sends it.
func (s *NotificationService) Email(ctx context.Context, user *models.User, name string, data NotificationData) error {
	tmpl, ok := notificationTemplates[name]
	if !ok || s.mailer == nil || user == nil || user.Email == "" {
		return nil
	}
	if data.Name == "" {
		data.Name = user.FullName
	}
	if data.App == "" {
		data.App = s.appName
	}

	var text bytes.Buffer
	if err := tmpl.text.Execute(&text, data); err != nil {
		return err
	}
	var html bytes.Buffer
	if err := tmpl.html.Execute(&html, struct{ Lines []string }{Lines: splitParagraphs(text.String())}); err != nil {
		return err
	}
	return s.mailer.Send(ctx, mailer.Message{
		ToName:  user.FullName,
		ToEmail: user.Email,
		Subject: tmpl.subject,
		Text:    text.String(),
		HTML:    html.String(),
	})
}

// Notify sends like Email and logs failures instead of returning them.
func (s *NotificationService) Notify(ctx context.Context, user *models.User, name string, data NotificationData) {
	if s == nil {
		return
	}
	if err := s.Email(ctx, user, name, data); err != nil {
		s.logger.Warn("notification email failed", zap.String("template", name), zap.Error(err))
	}
}

// SMS sends a text message to phone.
func (s *NotificationService) SMS(ctx context.Context, phone, text string) error {
	if s.sms == nil {
		return nil
	}
	return s.sms.Send(ctx, phone, "["+s.appName+"] "+text)
}

func splitParagraphs(text string) []string {
	var lines []string
	for _, block := range bytes.Split([]byte(text), []byte("\n\n")) {
		trimmed := string(bytes.TrimSpace(block))
		if trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
