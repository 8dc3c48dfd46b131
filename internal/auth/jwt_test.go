package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"homeservices/internal/apperror"
	"homeservices/internal/database"
	"homeservices/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers map[int64]*models.User

func (s stubUsers) GetUser(_ context.Context, id int64) (*models.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, database.ErrNotFound
}

type stubProviders struct {
	byUser map[int64]*models.ProviderProfile
	err    error
}

func (s stubProviders) GetProvider(context.Context, int64) (*models.ProviderProfile, error) {
	return nil, database.ErrNotFound
}

func (s stubProviders) GetProviderByUserID(_ context.Context, userID int64) (*models.ProviderProfile, error) {
	if s.err != nil {
		return nil, s.err
	}
	if p, ok := s.byUser[userID]; ok {
		return p, nil
	}
	return nil, database.ErrNotFound
}

func (s stubProviders) GetAvailableVerifiedProvider(context.Context, int64) (*models.ProviderProfile, error) {
	return nil, database.ErrNotFound
}

func (s stubProviders) IncrementTotalJobs(context.Context, int64) error { return nil }

func (s stubProviders) SetRating(context.Context, int64, float64) error { return nil }

func newTestAuthenticator(providers stubProviders) *Authenticator {
	users := stubUsers{
		1: {ID: 1, Role: models.RoleCustomer, IsActive: true},
		2: {ID: 2, Role: models.RoleProvider, IsActive: true},
		3: {ID: 3, Role: models.RoleAdmin, IsActive: true},
		4: {ID: 4, Role: models.RoleCustomer, IsActive: false},
		5: {ID: 5, Role: models.RoleProvider, IsActive: true},
	}
	return NewAuthenticator("test-secret", "homeservices", users, providers)
}

func TestAuthenticate(t *testing.T) {
	a := newTestAuthenticator(stubProviders{byUser: map[int64]*models.ProviderProfile{2: {ID: 20, UserID: 2}}})
	ctx := context.Background()

	tests := []struct {
		name    string
		userID  int64
		role    string
		want    models.Caller
		wantErr string
	}{
		{name: "customer", userID: 1, role: models.RoleCustomer, want: models.Caller{UserID: 1, Role: models.RoleCustomer}},
		{name: "provider with profile", userID: 2, role: models.RoleProvider, want: models.Caller{UserID: 2, Role: models.RoleProvider, ProviderID: 20}},
		{name: "provider without profile", userID: 5, role: models.RoleProvider, want: models.Caller{UserID: 5, Role: models.RoleProvider}},
		{name: "admin", userID: 3, role: models.RoleAdmin, want: models.Caller{UserID: 3, Role: models.RoleAdmin}},
		{name: "inactive", userID: 4, role: models.RoleCustomer, wantErr: "Account is deactivated"},
		{name: "unknown user", userID: 99, role: models.RoleCustomer, wantErr: "User not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := a.IssueToken(tt.userID, tt.role, time.Hour)
			require.NoError(t, err)

			caller, err := a.Authenticate(ctx, token)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
				assert.Equal(t, tt.wantErr, apperror.From(err).Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, caller)
		})
	}
}

func TestAuthenticateUsesStoredRole(t *testing.T) {
	a := newTestAuthenticator(stubProviders{})
	// a customer presenting an admin claim stays a customer
	token, err := a.IssueToken(1, models.RoleAdmin, time.Hour)
	require.NoError(t, err)

	caller, err := a.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, caller.Role)
}

func TestAuthenticateProviderLookupFailure(t *testing.T) {
	a := newTestAuthenticator(stubProviders{err: errors.New("db down")})
	token, err := a.IssueToken(2, models.RoleProvider, time.Hour)
	require.NoError(t, err)

	_, err = a.Authenticate(context.Background(), token)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
}

func TestParseTokenRejects(t *testing.T) {
	a := newTestAuthenticator(stubProviders{})

	t.Run("expired", func(t *testing.T) {
		token, err := a.IssueToken(1, models.RoleCustomer, -time.Minute)
		require.NoError(t, err)
		_, err = a.ParseToken(token)
		require.Error(t, err)
		assert.Equal(t, "Token expired", apperror.From(err).Message)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewAuthenticator("other", "homeservices", nil, nil)
		token, err := other.IssueToken(1, models.RoleCustomer, time.Hour)
		require.NoError(t, err)
		_, err = a.ParseToken(token)
		assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewAuthenticator("test-secret", "someone-else", nil, nil)
		token, err := other.IssueToken(1, models.RoleCustomer, time.Hour)
		require.NoError(t, err)
		_, err = a.ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("unknown role", func(t *testing.T) {
		token, err := a.IssueToken(1, "superuser", time.Hour)
		require.NoError(t, err)
		_, err = a.ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("none algorithm", func(t *testing.T) {
		claims := &Claims{UserID: 1, Role: models.RoleCustomer, RegisteredClaims: jwt.RegisteredClaims{Issuer: "homeservices"}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = a.ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := a.ParseToken("not.a.token")
		assert.Error(t, err)
	})
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", tok)

	tok, ok = BearerToken("bearer xyz")
	assert.True(t, ok)
	assert.Equal(t, "xyz", tok)

	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
	_, ok = BearerToken("")
	assert.False(t, ok)
}
