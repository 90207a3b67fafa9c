package utils

import (
	"net/http/httptest"
	"testing"
	"time"

	"cms0/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour, 24*time.Hour)
	roleID := "role-1"
	user := models.User{Base: models.Base{ID: "user-1"}, Email: "a@b.c", RoleID: &roleID}

	token, expiresAt, err := issuer.GenerateJWT(user, "aff-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := issuer.ParseJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "role-1", claims.RoleID)
	assert.Equal(t, "aff-1", claims.AffiliateID)

	_, err = issuer.ParseRefreshToken(token)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	refresh, _, err := issuer.GenerateRefreshToken(user, "aff-1")
	require.NoError(t, err)
	_, err = issuer.ParseRefreshToken(refresh)
	assert.NoError(t, err)
}

func TestTokenIssuerRejectsForeignSecret(t *testing.T) {
	token, _, err := NewTokenIssuer("one", time.Hour, time.Hour).GenerateJWT(models.User{Base: models.Base{ID: "u"}}, "")
	require.NoError(t, err)
	_, err = NewTokenIssuer("two", time.Hour, time.Hour).ParseJWT(token)
	assert.Error(t, err)
}

func TestTokenIssuerRejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute, time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := issuer.GenerateJWT(models.User{Base: models.Base{ID: "u"}}, "")
	require.NoError(t, err)
	_, err = issuer.ParseJWT(token)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))
}

func TestGetIPAddress(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", GetIPAddress(req))

	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	assert.Equal(t, "1.2.3.4", GetIPAddress(req))
}

func TestJSONMapHelpers(t *testing.T) {
	m, err := JSONToMap(nil)
	require.NoError(t, err)
	assert.Empty(t, m)

	data, err := MapToJSON(map[string]string{"theme": "dark"})
	require.NoError(t, err)
	m, err = JSONToMap(data)
	require.NoError(t, err)
	assert.Equal(t, "dark", m["theme"])
}
