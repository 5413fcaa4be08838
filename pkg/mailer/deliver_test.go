package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/staff-directory/pkg/mailer/templates"
)

type sent struct {
	to, subject, text, html string
}

type fakeSender struct {
	calls []sent
	err   error
}

func (f *fakeSender) Send(_ context.Context, to, subject, text, html string) error {
	f.calls = append(f.calls, sent{to, subject, text, html})
	return f.err
}

func TestDeliver_Template(t *testing.T) {
	job, err := NewTemplateJob("ada@x.com", templates.Welcome, templates.WelcomeData{
		FirstName: "Ada", Email: "ada@x.com", CompanyName: "Acme", CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	body, err := json.Marshal(job)
	require.NoError(t, err)

	s := &fakeSender{}
	require.NoError(t, Deliver(context.Background(), s, body))
	require.Len(t, s.calls, 1)
	assert.Equal(t, "ada@x.com", s.calls[0].to)
	assert.Equal(t, "Welcome to Acme", s.calls[0].subject)
	assert.Contains(t, s.calls[0].html, "Ada")
}

func TestDeliver_Raw(t *testing.T) {
	body := []byte(`{"to":"b@x.com","subject":"Hi","text":"plain"}`)
	s := &fakeSender{}
	require.NoError(t, Deliver(context.Background(), s, body))
	assert.Equal(t, sent{to: "b@x.com", subject: "Hi", text: "plain"}, s.calls[0])
}

func TestDeliver_BadJobs(t *testing.T) {
	for name, body := range map[string]string{
		"not json":         `{`,
		"no recipient":     `{"subject":"Hi","text":"x"}`,
		"unknown template": `{"to":"a@x.com","template":"otp","data":{}}`,
		"empty message":    `{"to":"a@x.com"}`,
	} {
		s := &fakeSender{}
		err := Deliver(context.Background(), s, []byte(body))
		assert.ErrorIs(t, err, ErrBadJob, name)
		assert.Empty(t, s.calls, name)
	}
}

func TestDeliver_SenderErrorIsRetryable(t *testing.T) {
	s := &fakeSender{err: errors.New("mailgun 503")}
	err := Deliver(context.Background(), s, []byte(`{"to":"a@x.com","subject":"Hi","html":"<p>x</p>"}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBadJob)
}
