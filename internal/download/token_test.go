package download

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cei-unisinos/ici-backend/internal/store/core"
)

func TestSignAndVerify(t *testing.T) {
	s, err := NewSigner("test-secret-0123456789", time.Hour)
	require.NoError(t, err)

	f := core.IndexFilter{Countries: []string{"Brazil"}, YearFrom: 2010, YearTo: 2020}
	tok, err := s.Sign("req-1", f, "xlsx")
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	claims, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "req-1", claims.Subject)
	assert.Equal(t, "xlsx", claims.Format)
	assert.Equal(t, f, claims.Filter())
}

func TestVerify_WrongSecret(t *testing.T) {
	a, err := NewSigner("secret-a", time.Hour)
	require.NoError(t, err)
	b, err := NewSigner("secret-b", time.Hour)
	require.NoError(t, err)

	tok, err := a.Sign("req-1", core.IndexFilter{YearFrom: 2010, YearTo: 2020}, "csv")
	require.NoError(t, err)

	_, err = b.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerify_Expired(t *testing.T) {
	s, err := NewSigner("test-secret", time.Hour)
	require.NoError(t, err)
	s.ttl = -time.Minute

	tok, err := s.Sign("req-1", core.IndexFilter{YearFrom: 2010, YearTo: 2020}, "csv")
	require.NoError(t, err)

	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_Garbage(t *testing.T) {
	s, err := NewSigner("test-secret", time.Hour)
	require.NoError(t, err)

	_, err = s.Verify("not.a.jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestNewSigner_RequiresSecret(t *testing.T) {
	_, err := NewSigner("", time.Hour)
	assert.Error(t, err)
}

func TestNewSigner_DefaultTTL(t *testing.T) {
	s, err := NewSigner("secret", 0)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, s.TTL())
}
