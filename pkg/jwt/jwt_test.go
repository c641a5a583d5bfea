package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManager_GenerateAndValidate(t *testing.T) {
	req := require.New(t)
	m := NewManager("test-secret", "studyhive", 30*time.Minute)

	token, err := m.Generate(42, "alice", "HOST")
	req.NoError(err)

	claims, err := m.Validate(token)
	req.NoError(err)
	req.Equal(int64(42), claims.UserID)
	req.Equal("alice", claims.Nickname)
	req.Equal("HOST", claims.Role)
	req.Equal("studyhive", claims.Issuer)
}

func TestManager_RejectsWrongSecret(t *testing.T) {
	req := require.New(t)
	issuer := NewManager("secret-a", "studyhive", 30*time.Minute)
	verifier := NewManager("secret-b", "studyhive", 30*time.Minute)

	token, err := issuer.Generate(42, "alice", "MEMBER")
	req.NoError(err)

	_, err = verifier.Validate(token)
	req.ErrorIs(err, ErrInvalidToken)
}

func TestManager_RejectsExpiredToken(t *testing.T) {
	req := require.New(t)
	m := NewManager("test-secret", "studyhive", -time.Minute)

	token, err := m.Generate(42, "alice", "MEMBER")
	req.NoError(err)

	_, err = m.Validate(token)
	req.ErrorIs(err, ErrExpiredToken)
}

func TestManager_RejectsGarbage(t *testing.T) {
	req := require.New(t)
	m := NewManager("test-secret", "studyhive", 30*time.Minute)

	_, err := m.Validate("not.a.token")
	req.ErrorIs(err, ErrInvalidToken)
}

func TestManager_RejectsZeroUserID(t *testing.T) {
	req := require.New(t)
	m := NewManager("test-secret", "studyhive", 30*time.Minute)

	token, err := m.Generate(0, "ghost", "MEMBER")
	req.NoError(err)

	_, err = m.Validate(token)
	req.ErrorIs(err, ErrInvalidToken)
}
