package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")[:32]
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	m := NewManager()
	require.False(t, m.Active())

	m.Login(testKey())
	require.True(t, m.Active())

	snap := m.Snapshot()
	envelope, err := snap.Encrypt([]byte("confidential"))
	require.NoError(t, err)

	plain, err := snap.Decrypt(envelope)
	require.NoError(t, err)
	require.Equal(t, "confidential", string(plain))
}

func TestNoSessionReturnsErrNoSession(t *testing.T) {
	m := NewManager()
	snap := m.Snapshot()
	require.False(t, snap.Active())

	_, err := snap.Encrypt([]byte("x"))
	require.ErrorIs(t, err, ErrNoSession)

	_, err = snap.Decrypt([]byte("x"))
	require.ErrorIs(t, err, ErrNoSession)
}

func TestLogoutZeroizesKey(t *testing.T) {
	m := NewManager()
	m.Login(testKey())
	snap := m.Snapshot()
	held := m.key

	m.Logout()
	require.False(t, m.Active())
	require.Equal(t, make([]byte, len(held)), held)

	// The snapshot taken before logout remains usable for in-flight queries.
	_, err := snap.Encrypt([]byte("still works"))
	require.NoError(t, err)
}

func TestDecryptFailureIsRecoverable(t *testing.T) {
	m := NewManager()
	m.Login(testKey())
	snap := m.Snapshot()

	_, err := snap.Decrypt([]byte("not an envelope"))
	require.ErrorIs(t, err, ErrDecryptFailed)
}
