package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewService("test-secret", time.Hour)
	id := uuid.New()

	token, err := svc.GenerateToken(id, "staff@pharmapointe.fr")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.CollaboratorID)
	assert.Equal(t, "staff@pharmapointe.fr", claims.Email)
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := NewService("test-secret", -time.Minute)

	token, err := svc.GenerateToken(uuid.New(), "staff@pharmapointe.fr")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestWrongSecretRejected(t *testing.T) {
	token, err := NewService("secret-a", time.Hour).GenerateToken(uuid.New(), "x@y.z")
	require.NoError(t, err)

	_, err = NewService("secret-b", time.Hour).ValidateToken(token)
	assert.Error(t, err)
}
