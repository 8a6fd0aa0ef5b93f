package hasher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHash_Compare_RoundTrip(t *testing.T) {
	t.Parallel()

	h := New(bcrypt.MinCost)

	hash, err := h.Hash("P@ssw0rd1")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	require.NotContains(t, hash, "P@ssw0rd1")

	ok, err := h.Compare("P@ssw0rd1", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = h.Compare("wrong", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHash_LongPayload_OK(t *testing.T) {
	t.Parallel()

	h := New(bcrypt.MinCost)

	// JWT длиннее лимита bcrypt в 72 байта — должен хэшироваться без ошибок.
	long := strings.Repeat("eyJhbGciOiJIUzI1NiJ9.", 20)
	require.Greater(t, len(long), 72)

	hash, err := h.Hash(long)
	require.NoError(t, err)

	ok, err := h.Compare(long, hash)
	require.NoError(t, err)
	require.True(t, ok)

	// Изменение хвоста за пределами 72 байт тоже меняет результат.
	ok, err = h.Compare(long+"x", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHash_SamePayload_DifferentHashes(t *testing.T) {
	t.Parallel()

	h := New(bcrypt.MinCost)

	h1, err := h.Hash("secret")
	require.NoError(t, err)
	h2, err := h.Hash("secret")
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

func TestCompare_MalformedHash_IsError(t *testing.T) {
	t.Parallel()

	h := New(bcrypt.MinCost)

	_, err := h.Compare("secret", "not-a-bcrypt-hash")
	require.Error(t, err)
}

func TestRandomHex(t *testing.T) {
	t.Parallel()

	h := New(0)

	s1, err := h.RandomHex(32)
	require.NoError(t, err)
	require.Len(t, s1, 64)

	s2, err := h.RandomHex(32)
	require.NoError(t, err)
	require.NotEqual(t, s1, s2)

	// Неположительный размер — дефолтные 32 байта.
	s3, err := h.RandomHex(0)
	require.NoError(t, err)
	require.Len(t, s3, 64)
}
