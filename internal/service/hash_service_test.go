package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Small parameters keep the suite fast.
var testArgon2Params = Argon2Params{Memory: 8 * 1024, Time: 1, Threads: 1}

func TestArgon2HashService_HashAndVerify(t *testing.T) {
	svc := NewArgon2HashService(testArgon2Params)

	hash, err := svc.Hash("4821")
	require.NoError(t, err)
	assert.Regexp(t, `^\$argon2id\$v=19\$m=8192,t=1,p=1\$[A-Za-z0-9+/]+\$[A-Za-z0-9+/]+$`, hash)

	ok, err := svc.Verify("4821", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Verify("4822", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArgon2HashService_UniqueSalts(t *testing.T) {
	svc := NewArgon2HashService(testArgon2Params)

	h1, err := svc.Hash("1234")
	require.NoError(t, err)
	h2, err := svc.Hash("1234")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestArgon2HashService_VerifiesOlderParams(t *testing.T) {
	old, err := NewArgon2HashService(Argon2Params{Memory: 4 * 1024, Time: 2, Threads: 1}).Hash("A1B2C3")
	require.NoError(t, err)

	ok, err := NewArgon2HashService(testArgon2Params).Verify("A1B2C3", old)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestArgon2HashService_Defaults(t *testing.T) {
	svc := NewArgon2HashService(Argon2Params{})
	assert.Equal(t, DefaultArgon2Params, svc.params)
}

func TestArgon2HashService_Malformed(t *testing.T) {
	svc := NewArgon2HashService(testArgon2Params)

	tests := map[string]string{
		"not a hash":    "not-a-valid-hash",
		"other scheme":  "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"wrong version": "$argon2id$v=16$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"bad params":    "$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"bad salt":      "$argon2id$v=19$m=1,t=1,p=1$!!$aGFzaA",
		"empty key":     "$argon2id$v=19$m=1,t=1,p=1$c2FsdA$",
	}
	for name, encoded := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Verify("1234", encoded)
			assert.Error(t, err)
		})
	}
}

func TestGenerateInitialCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		code, err := GenerateInitialCode(6)
		require.NoError(t, err)
		assert.Regexp(t, `^[A-Z0-9]{6}$`, code)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)
}
