package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_SignAndVerify(t *testing.T) {
	svc := NewHMACSignatureService()
	payload := CanonicalRequest("POST", "/send", 1736928000, []byte(`{"to":"770000001"}`))

	sig := svc.Sign("sms-secret", payload)
	assert.Regexp(t, `^v1=[0-9a-f]{64}$`, sig)
	assert.Equal(t, sig, svc.Sign("sms-secret", payload))
	assert.True(t, svc.Verify("sms-secret", payload, sig))
}

func TestHMACSignatureService_Rejects(t *testing.T) {
	svc := NewHMACSignatureService()
	sig := svc.Sign("sms-secret", "payload")

	tests := map[string]struct{ key, payload, sig string }{
		"wrong key":        {"other", "payload", sig},
		"tampered payload": {"sms-secret", "payload!", sig},
		"unversioned":      {"sms-secret", "payload", strings.TrimPrefix(sig, signaturePrefix)},
		"garbage":          {"sms-secret", "payload", "v1=zz"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.False(t, svc.Verify(tt.key, tt.payload, tt.sig))
		})
	}
}

func TestCanonicalRequest(t *testing.T) {
	got := CanonicalRequest("post", "/send", 1736928000, nil)
	assert.Equal(t,
		"POST\n/send\n1736928000\ne3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		got)

	assert.NotEqual(t,
		CanonicalRequest("POST", "/send", 1736928000, []byte("a")),
		CanonicalRequest("POST", "/send", 1736928000, []byte("b")))
}
