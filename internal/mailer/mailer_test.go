package mailer

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerificationLink(t *testing.T) {
	t.Parallel()

	link := VerificationLink("https://app.example.com/auth/verify-email", "user@example.com", "deadbeef")

	u, err := url.Parse(link)
	require.NoError(t, err)
	require.Equal(t, "app.example.com", u.Host)
	require.Equal(t, "/auth/verify-email", u.Path)
	require.Equal(t, "user@example.com", u.Query().Get("email"))
	require.Equal(t, "deadbeef", u.Query().Get("token"))
}

func TestVerificationLink_EscapesQuery(t *testing.T) {
	t.Parallel()

	link := VerificationLink("https://x.y/verify", "a+b@example.com", "t&k=n")

	u, err := url.Parse(link)
	require.NoError(t, err)
	require.Equal(t, "a+b@example.com", u.Query().Get("email"))
	require.Equal(t, "t&k=n", u.Query().Get("token"))
}

func TestRenderVerification(t *testing.T) {
	t.Parallel()

	body, err := renderVerification("Alice", "https://x.y/verify?token=abc")
	require.NoError(t, err)
	require.Contains(t, body, "Hi Alice,")
	require.Contains(t, body, "https://x.y/verify?token=abc")
}
