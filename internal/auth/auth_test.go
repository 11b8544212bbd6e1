package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T, ttl time.Duration) *CredentialSigner {
	t.Helper()

	key, err := DeriveKey("test-secret", PurposeCredential)
	require.NoError(t, err)

	signer, err := NewCredentialSigner(key, ttl)
	require.NoError(t, err)
	return signer
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "Admin", want: RoleAdmin},
		{in: "admin", want: RoleAdmin},
		{in: "Program Head", want: RoleProgramHead},
		{in: "program_head", want: RoleProgramHead},
		{in: "department-secretary", want: RoleDepartmentSecretary},
		{in: " Department Secretary ", want: RoleDepartmentSecretary},
		{in: "Dean", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSession_HasRole(t *testing.T) {
	s := &Session{Role: RoleProgramHead}
	assert.True(t, s.HasRole(RoleAdmin, RoleProgramHead))
	assert.False(t, s.HasRole(RoleAdmin))

	var nilSession *Session
	assert.False(t, nilSession.HasRole(RoleAdmin))
}

func TestCredentialSigner_RoundTrip(t *testing.T) {
	signer := newTestSigner(t, time.Hour)

	signed, issued, err := signer.Issue("backend-token", "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, issued.ID)

	claims, err := signer.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, "backend-token", claims.Token)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, issued.ID, claims.ID)
}

func TestCredentialSigner_Expired(t *testing.T) {
	signer := newTestSigner(t, time.Minute)
	issuedAt := time.Now().Add(-2 * time.Hour)
	signer.now = func() time.Time { return issuedAt }

	signed, _, err := signer.Issue("backend-token", "user-1")
	require.NoError(t, err)

	signer.now = time.Now
	_, err = signer.Validate(signed)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCredentialInvalid))
}

func TestCredentialSigner_RejectsOtherKey(t *testing.T) {
	signer := newTestSigner(t, time.Hour)
	signed, _, err := signer.Issue("backend-token", "user-1")
	require.NoError(t, err)

	otherKey, err := DeriveKey("another-secret", PurposeCredential)
	require.NoError(t, err)
	other, err := NewCredentialSigner(otherKey, time.Hour)
	require.NoError(t, err)

	_, err = other.Validate(signed)
	assert.ErrorIs(t, err, ErrCredentialInvalid)
}

func TestCredentialSigner_RejectsNoneAlg(t *testing.T) {
	signer := newTestSigner(t, time.Hour)

	claims := CredentialClaims{
		Token:  "backend-token",
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = signer.Validate(unsigned)
	assert.ErrorIs(t, err, ErrCredentialInvalid)
}

func TestCredentialSigner_RejectsGarbage(t *testing.T) {
	signer := newTestSigner(t, time.Hour)

	_, err := signer.Validate("not-a-jwt")
	assert.ErrorIs(t, err, ErrCredentialInvalid)
}

func TestNewCredentialSigner_Validation(t *testing.T) {
	_, err := NewCredentialSigner(nil, time.Hour)
	assert.Error(t, err)

	_, err = NewCredentialSigner([]byte("k"), 0)
	assert.Error(t, err)
}

func TestDeriveKey(t *testing.T) {
	a, err := DeriveKey("secret", PurposeCredential)
	require.NoError(t, err)
	b, err := DeriveKey("secret", "other")
	require.NoError(t, err)
	again, err := DeriveKey("secret", PurposeCredential)
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, again)

	_, err = DeriveKey("", PurposeCredential)
	assert.Error(t, err)
}

func TestGenerateSecret(t *testing.T) {
	s1, err := GenerateSecret()
	require.NoError(t, err)
	s2, err := GenerateSecret()
	require.NoError(t, err)

	assert.Len(t, s1, 64)
	assert.NotEqual(t, s1, s2)
}
