package email

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type sent struct {
	to, subject, body string
}

type recordingSender struct {
	mails []sent
}

func (r *recordingSender) Send(_ context.Context, to, subject, body string) error {
	r.mails = append(r.mails, sent{to, subject, body})
	return nil
}

func TestVerificationLink(t *testing.T) {
	rec := &recordingSender{}
	m := NewMailer(rec, "https://app.example.com/", "support@example.com")

	require.NoError(t, m.SendVerification(context.Background(), "ada@example.com", "Ada", "a+b/c"))
	require.Len(t, rec.mails, 1)
	require.Equal(t, "ada@example.com", rec.mails[0].to)
	require.Equal(t, "Verify your email address", rec.mails[0].subject)
	require.Contains(t, rec.mails[0].body, "https://app.example.com/auth/verify-email/confirm?token=a%2Bb%2Fc")
	require.Contains(t, rec.mails[0].body, "Welcome to Projectron, Ada!")
}

func TestPasswordResetLink(t *testing.T) {
	rec := &recordingSender{}
	m := NewMailer(rec, "http://localhost:3000", "support@example.com")

	require.NoError(t, m.SendPasswordReset(context.Background(), "ada@example.com", "tok"))
	require.Contains(t, rec.mails[0].body, "http://localhost:3000/auth/reset-password?token=tok")
}

func TestContactGoesToSupportEscaped(t *testing.T) {
	rec := &recordingSender{}
	m := NewMailer(rec, "http://localhost:3000", "support@example.com")

	err := m.SendContact(context.Background(), ContactMessage{
		Name:    "Eve",
		Email:   "eve@example.com",
		Subject: "Broken button",
		Message: "<script>alert(1)</script>",
		Type:    "bug",
	})
	require.NoError(t, err)
	require.Equal(t, "support@example.com", rec.mails[0].to)
	require.Equal(t, "[Projectron Contact] Bug: Broken button", rec.mails[0].subject)
	require.NotContains(t, rec.mails[0].body, "<script>")
	require.Contains(t, rec.mails[0].body, "&lt;script&gt;")
}
