package push

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/splitweek/internal/model"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	// Public key should be base64url-encoded, 65 bytes uncompressed P-256 point
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) > 32 {
		t.Errorf("private key length = %d, want <= 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

func TestConfigured(t *testing.T) {
	if (Config{}).Configured() {
		t.Error("empty config should not be configured")
	}
	if !(Config{VAPIDPublicKey: "a", VAPIDPrivateKey: "b"}).Configured() {
		t.Error("config with both keys should be configured")
	}
}

// browserSubscription builds a subscription with real client keys so the
// payload can be encrypted.
func browserSubscription(t *testing.T, endpoint string) model.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}
	secret := make([]byte, 16)
	rand.Read(secret)
	return model.PushSubscription{
		Endpoint:  endpoint,
		P256dhKey: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		AuthKey:   base64.RawURLEncoding.EncodeToString(secret),
	}
}

func TestSendStatusHandling(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	for _, tc := range []struct {
		name   string
		status int
		want   error
		fails  bool
	}{
		{"created", http.StatusCreated, nil, false},
		{"gone", http.StatusGone, ErrExpired, true},
		{"server error", http.StatusInternalServerError, nil, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var gotAuth string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			svc := NewService(Config{VAPIDPublicKey: pub, VAPIDPrivateKey: priv}, WithHTTPClient(srv.Client()))
			err := svc.Send(browserSubscription(t, srv.URL), Payload{Title: "Handoff confirmed", Body: "2026-03-01"})

			if tc.fails && err == nil {
				t.Fatal("expected error")
			}
			if !tc.fails && err != nil {
				t.Fatalf("send: %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
			if gotAuth == "" {
				t.Error("expected VAPID authorization header")
			}
		})
	}
}
