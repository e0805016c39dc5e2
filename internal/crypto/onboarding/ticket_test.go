package onboarding

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestGenerateAndVerifyTicket(t *testing.T) {
	key := testKey(t)

	token, err := GenerateTicket(key, DefaultValidity)
	require.NoError(t, err)
	assert.Contains(t, token, ".")

	ticket, err := Verify(&key.PublicKey, token)
	require.NoError(t, err)
	assert.Equal(t, RoleClient, ticket.SubjectRole)
	assert.NotEmpty(t, ticket.ID)
	assert.Greater(t, ticket.ExpirationDate, time.Now().Unix())
}

func TestGenerateTicketNilKey(t *testing.T) {
	_, err := GenerateTicket(nil, DefaultValidity)
	require.Error(t, err)
}

func TestGenerateTicketUniqueness(t *testing.T) {
	key := testKey(t)

	a, err := GenerateTicket(key, DefaultValidity)
	require.NoError(t, err)
	b, err := GenerateTicket(key, DefaultValidity)
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "each ticket carries a fresh consumer id")
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	key := testKey(t)

	token, err := GenerateTicket(key, DefaultValidity)
	require.NoError(t, err)

	payload, sig, _ := strings.Cut(token, ".")
	tampered := payload[:len(payload)-4] + "AAAA" + "." + sig

	_, err = Verify(&key.PublicKey, tampered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature verification failed")
}

func TestVerifyRejectsExpiredTicket(t *testing.T) {
	key := testKey(t)

	token, err := GenerateTicket(key, -time.Hour)
	require.NoError(t, err)

	_, err = Verify(&key.PublicKey, token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ticket expired")
}

func TestVerifyRejectsMalformedToken(t *testing.T) {
	key := testKey(t)

	_, err := Verify(&key.PublicKey, "not-a-ticket")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing signature separator")
}

func TestParsePrivateKey(t *testing.T) {
	key := testKey(t)

	pkcs1 := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	pkcs8Bytes, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pkcs8 := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8Bytes})

	for name, encoded := range map[string][]byte{"pkcs1": pkcs1, "pkcs8": pkcs8} {
		t.Run(name, func(t *testing.T) {
			parsed, err := ParsePrivateKey(encoded)
			require.NoError(t, err)
			assert.True(t, parsed.Equal(key))
		})
	}
}

func TestParsePrivateKeyRejectsGarbage(t *testing.T) {
	_, err := ParsePrivateKey([]byte("not pem at all"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no PEM block")
}

func TestParsePrivateKeyRejectsNonRSA(t *testing.T) {
	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(edKey)
	require.NoError(t, err)
	encoded := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	_, err = ParsePrivateKey(encoded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected RSA")
}
