package utils

import (
    "crypto/hmac"
    "crypto/sha256"
    "encoding/hex"
    "strings"
)

// SignWebhook returns the hex HMAC-SHA256 of body under secret.
func SignWebhook(secret string, body []byte) string {
    mac := hmac.New(sha256.New, []byte(secret))
    mac.Write(body)
    return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook reports whether signature matches body.  A "sha256="
// prefix on signature is accepted.  The comparison is constant-time.
func VerifyWebhook(secret string, body []byte, signature string) bool {
    if secret == "" || signature == "" {
        return false
    }
    signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
    got, err := hex.DecodeString(signature)
    if err != nil {
        return false
    }
    want, _ := hex.DecodeString(SignWebhook(secret, body))
    return hmac.Equal(got, want)
}
