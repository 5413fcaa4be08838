package mailer

import "encoding/json"

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// Either Template (with Data) or Subject plus Text/HTML is set.
type EmailJob struct {
	To       string          `json:"to"`
	Subject  string          `json:"subject,omitempty"`
	Text     string          `json:"text,omitempty"`
	HTML     string          `json:"html,omitempty"`
	Template string          `json:"template,omitempty"` // e.g. "welcome"
	Data     json.RawMessage `json:"data,omitempty"`
}

// NewTemplateJob builds a templated job, encoding data as the payload.
func NewTemplateJob(to, template string, data any) (EmailJob, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return EmailJob{}, err
	}
	return EmailJob{To: to, Template: template, Data: b}, nil
}
