// Package onboarding mints and validates the signed tickets a consumer
// cluster presents when it connects to a storage provider.
package onboarding

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RoleClient marks a ticket issued for a storage client cluster.
const RoleClient = "ocs-client"

// DefaultValidity is how long a freshly minted ticket is accepted.
const DefaultValidity = 48 * time.Hour

// Ticket is the payload embedded in an onboarding token.
type Ticket struct {
	ID             string `json:"id"`
	ExpirationDate int64  `json:"expirationDate"`
	SubjectRole    string `json:"subjectRole"`
}

// GenerateTicket mints a token for one consumer: a base64 JSON payload
// and an RSA signature over it, joined by a dot. The provider operator
// verifies the signature with its public onboarding key.
func GenerateTicket(key *rsa.PrivateKey, validity time.Duration) (string, error) {
	if key == nil {
		return "", fmt.Errorf("onboarding private key is required")
	}

	payload, err := json.Marshal(Ticket{
		ID:             uuid.NewString(),
		ExpirationDate: time.Now().Add(validity).Unix(),
		SubjectRole:    RoleClient,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode ticket payload: %w", err)
	}

	message := base64.StdEncoding.EncodeToString(payload)
	digest := sha256.Sum256([]byte(message))

	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign ticket: %w", err)
	}

	return message + "." + base64.StdEncoding.EncodeToString(signature), nil
}

// Verify checks a token's signature and expiry and returns its payload.
func Verify(pub *rsa.PublicKey, token string) (*Ticket, error) {
	message, rawSig, ok := strings.Cut(token, ".")
	if !ok {
		return nil, fmt.Errorf("malformed ticket: missing signature separator")
	}

	signature, err := base64.StdEncoding.DecodeString(rawSig)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ticket signature: %w", err)
	}

	digest := sha256.Sum256([]byte(message))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], signature); err != nil {
		return nil, fmt.Errorf("ticket signature verification failed: %w", err)
	}

	payload, err := base64.StdEncoding.DecodeString(message)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ticket payload: %w", err)
	}

	var ticket Ticket
	if err := json.Unmarshal(payload, &ticket); err != nil {
		return nil, fmt.Errorf("failed to parse ticket payload: %w", err)
	}

	if time.Now().Unix() > ticket.ExpirationDate {
		return nil, fmt.Errorf("ticket expired at %s", time.Unix(ticket.ExpirationDate, 0).UTC().Format(time.RFC3339))
	}
	return &ticket, nil
}

// ParsePrivateKey decodes a PEM-encoded RSA private key in either
// PKCS#1 or PKCS#8 form, the two encodings the provider operator has
// shipped its onboarding key in.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in onboarding key")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse onboarding key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("onboarding key is %T, expected RSA", parsed)
	}
	return key, nil
}
