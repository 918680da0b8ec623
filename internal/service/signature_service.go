package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

const signaturePrefix = "v1="

// HMACSignatureService implements ports.SignatureService. Signatures are
// "v1=" followed by the lowercase hex HMAC-SHA256 of the payload.
type HMACSignatureService struct{}

func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

func (s *HMACSignatureService) Sign(secretKey string, payload string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(payload))
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time. Unversioned signatures never match.
func (s *HMACSignatureService) Verify(secretKey string, payload string, signature string) bool {
	if !strings.HasPrefix(signature, signaturePrefix) {
		return false
	}
	return hmac.Equal([]byte(s.Sign(secretKey, payload)), []byte(signature))
}

// CanonicalRequest is the string signed for an outbound gateway call:
// method, path, unix timestamp and the hex SHA-256 of the body, one per line.
func CanonicalRequest(method, path string, timestamp int64, body []byte) string {
	digest := sha256.Sum256(body)
	return strings.Join([]string{
		strings.ToUpper(method),
		path,
		strconv.FormatInt(timestamp, 10),
		hex.EncodeToString(digest[:]),
	}, "\n")
}
