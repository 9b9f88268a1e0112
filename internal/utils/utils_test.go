package utils

import (
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

func TestAccessTokenRoundTrip(t *testing.T) {
    tok, err := NewAccessToken("s3cret", 42, "STAFF", 5)
    if err != nil {
        t.Fatalf("NewAccessToken: %v", err)
    }
    if !tok.Exp.After(time.Now()) {
        t.Fatalf("Exp = %v, want future", tok.Exp)
    }
    cl, err := ParseAccessToken("s3cret", tok.Token)
    if err != nil {
        t.Fatalf("ParseAccessToken: %v", err)
    }
    if cl.UserID != 42 || cl.Role != "STAFF" {
        t.Fatalf("claims = %+v, want {42 STAFF}", cl)
    }
    if _, err := ParseAccessToken("other", tok.Token); err != ErrInvalidToken {
        t.Fatalf("wrong secret err = %v, want ErrInvalidToken", err)
    }
}

func TestParseAccessTokenRejects(t *testing.T) {
    expired, err := NewAccessToken("k", 1, "CUSTOMER", -1)
    if err != nil {
        t.Fatalf("NewAccessToken: %v", err)
    }
    if _, err := ParseAccessToken("k", expired.Token); err != ErrInvalidToken {
        t.Fatalf("expired err = %v, want ErrInvalidToken", err)
    }

    noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"}).SignedString([]byte("k"))
    if _, err := ParseAccessToken("k", noExp); err != ErrInvalidToken {
        t.Fatalf("missing exp err = %v, want ErrInvalidToken", err)
    }

    badSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
        "sub": "abc", "exp": time.Now().Add(time.Minute).Unix(),
    }).SignedString([]byte("k"))
    if _, err := ParseAccessToken("k", badSub); err != ErrInvalidToken {
        t.Fatalf("non-numeric sub err = %v, want ErrInvalidToken", err)
    }
}

func TestPassword(t *testing.T) {
    hash, err := HashPassword("hunter2", 4)
    if err != nil {
        t.Fatalf("HashPassword: %v", err)
    }
    if !VerifyPassword(hash, "hunter2") {
        t.Fatal("correct password rejected")
    }
    if VerifyPassword(hash, "hunter3") {
        t.Fatal("wrong password accepted")
    }
}

func TestWebhookSignature(t *testing.T) {
    body := []byte(`{"event_id":"e1","order_id":3}`)
    sig := SignWebhook("whsec", body)
    if !VerifyWebhook("whsec", body, sig) {
        t.Fatal("valid signature rejected")
    }
    if !VerifyWebhook("whsec", body, "sha256="+sig) {
        t.Fatal("prefixed signature rejected")
    }
    if VerifyWebhook("whsec", []byte(`{"event_id":"e1","order_id":4}`), sig) {
        t.Fatal("tampered body accepted")
    }
    if VerifyWebhook("whsec", body, "zz") {
        t.Fatal("non-hex signature accepted")
    }
    if VerifyWebhook("", body, sig) {
        t.Fatal("empty secret accepted")
    }
}
