package password

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var fast = Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 16}

func TestHashVerify(t *testing.T) {
	h, err := Hash(fast, "s3cret-pass")
	require.NoError(t, err)
	require.Contains(t, h, "$argon2id$v=19$m=1024,t=1,p=1$")

	require.True(t, Verify("s3cret-pass", h))
	require.False(t, Verify("wrong", h))
}

func TestHash_Empty(t *testing.T) {
	_, err := Hash(fast, "")
	require.ErrorIs(t, err, ErrEmptyPassword)
}

func TestVerify_Malformed(t *testing.T) {
	for _, h := range []string{"", "plain", "$argon2i$v=19$m=1,t=1,p=1$AA$AA", "$argon2id$v=19$garbage$AA$AA"} {
		require.False(t, Verify("x", h), h)
	}
}

func TestPolicy(t *testing.T) {
	ok, reasons := DefaultPolicy.Validate("short")
	require.False(t, ok)
	require.Equal(t, []string{"too_short"}, reasons)

	ok, _ = DefaultPolicy.Validate("long-enough")
	require.True(t, ok)

	strict := Policy{MinLength: 4, RequireDigit: true, RequireUpper: true}
	ok, reasons = strict.Validate("abcd")
	require.False(t, ok)
	require.ElementsMatch(t, []string{"missing_upper", "missing_digit"}, reasons)
}
