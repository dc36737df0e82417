package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	svc := NewTokenService("secret", "learnloop")

	token, err := svc.Issue("u1", "u1@example.com", []string{"admin"}, time.Hour)
	require.NoError(t, err)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "u1@example.com", claims.Email)
	assert.Equal(t, []string{"admin"}, claims.Roles)
}

func TestParseRejectsWrongSecretAndExpired(t *testing.T) {
	svc := NewTokenService("secret", "learnloop")
	other := NewTokenService("other", "learnloop")

	token, err := other.Issue("u1", "", nil, time.Hour)
	require.NoError(t, err)
	_, err = svc.Parse(token)
	assert.Error(t, err)

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := svc.Issue("u1", "", nil, time.Hour)
	require.NoError(t, err)
	svc.now = time.Now
	_, err = svc.Parse(expired)
	require.Error(t, err)
	assert.True(t, IsExpired(err))
}

func TestIssueRequiresSubject(t *testing.T) {
	_, err := NewTokenService("secret", "").Issue("", "", nil, time.Hour)
	assert.Error(t, err)
}
