package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"homeservices/internal/apperror"
	"homeservices/internal/database"
	"homeservices/internal/domain"
	"homeservices/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by access tokens.
type Claims struct {
	UserID int64  `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator turns bearer tokens into callers.
type Authenticator struct {
	secret    []byte
	issuer    string
	users     domain.UserDirectory
	providers domain.ProviderDirectory
	now       func() time.Time
}

func NewAuthenticator(secret, issuer string, users domain.UserDirectory, providers domain.ProviderDirectory) *Authenticator {
	return &Authenticator{
		secret:    []byte(secret),
		issuer:    issuer,
		users:     users,
		providers: providers,
		now:       time.Now,
	}
}

// IssueToken signs an access token for the user. Used by operator tooling and tests.
func (a *Authenticator) IssueToken(userID int64, role string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   fmt.Sprintf("%d", userID),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseToken validates signature, expiry and issuer and returns the claims.
func (a *Authenticator) ParseToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperror.Unauthorized("Token expired")
		}
		return nil, apperror.Unauthorized("Invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 || !models.ValidRole(claims.Role) {
		return nil, apperror.Unauthorized("Invalid token")
	}
	return claims, nil
}

// Authenticate resolves a bearer token to a caller. The user must still exist and be
// active; providers get their profile id attached when they have one.
func (a *Authenticator) Authenticate(ctx context.Context, tokenString string) (models.Caller, error) {
	claims, err := a.ParseToken(tokenString)
	if err != nil {
		return models.Caller{}, err
	}

	return a.Resolve(ctx, claims.UserID)
}

// Resolve builds the caller for a stored user id.
func (a *Authenticator) Resolve(ctx context.Context, userID int64) (models.Caller, error) {
	user, err := a.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.Caller{}, apperror.Unauthorized("User not found")
		}
		return models.Caller{}, apperror.Internal(err)
	}
	if !user.IsActive {
		return models.Caller{}, apperror.Unauthorized("Account is deactivated")
	}

	caller := models.Caller{UserID: user.ID, Role: user.Role}
	if caller.IsProvider() {
		profile, err := a.providers.GetProviderByUserID(ctx, user.ID)
		switch {
		case err == nil:
			caller.ProviderID = profile.ID
		case errors.Is(err, database.ErrNotFound):
		default:
			return models.Caller{}, apperror.Internal(err)
		}
	}
	return caller, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
