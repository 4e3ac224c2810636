package collaborator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmapointe/ordonnance-api/internal/model"
	"github.com/pharmapointe/ordonnance-api/internal/repository/repositorytest"
	"github.com/pharmapointe/ordonnance-api/pkg/auth"
	apperr "github.com/pharmapointe/ordonnance-api/pkg/errors"
	"github.com/pharmapointe/ordonnance-api/pkg/security"
)

func newService() *Service {
	return NewService(
		repositorytest.NewCollaboratorRepo(),
		security.NewBcryptHasher(4),
		auth.NewService("test-secret", time.Hour),
	)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	created, err := svc.Register(ctx, &model.RegisterRequest{
		FirstName: "Marie",
		LastName:  "Dubois",
		Email:     "marie@pharmacie.fr",
		Password:  "s3cret-pass",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.NotEqual(t, "s3cret-pass", created.PasswordHash)

	resp, err := svc.Login(ctx, &model.LoginRequest{Email: "marie@pharmacie.fr", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, created.ID, resp.Collaborator.ID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	req := &model.RegisterRequest{FirstName: "A", LastName: "B", Email: "dup@pharmacie.fr", Password: "s3cret-pass"}
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	_, err = svc.Register(ctx, req)
	assert.True(t, apperr.IsConflict(err))
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	_, err := svc.Register(ctx, &model.RegisterRequest{
		FirstName: "A", LastName: "B", Email: "a@pharmacie.fr", Password: "s3cret-pass",
	})
	require.NoError(t, err)

	_, err = svc.Login(ctx, &model.LoginRequest{Email: "a@pharmacie.fr", Password: "wrong-pass"})
	assert.True(t, apperr.IsPermission(err))

	_, err = svc.Login(ctx, &model.LoginRequest{Email: "nobody@pharmacie.fr", Password: "s3cret-pass"})
	assert.True(t, apperr.IsPermission(err))
}

func TestList(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	for _, email := range []string{"x@pharmacie.fr", "y@pharmacie.fr"} {
		_, err := svc.Register(ctx, &model.RegisterRequest{
			FirstName: "T", LastName: "U", Email: email, Password: "s3cret-pass",
		})
		require.NoError(t, err)
	}

	out, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}
