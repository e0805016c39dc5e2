// Package keygen provides utilities for generating SSH key pairs.
//
// Hosted-cluster creation injects an SSH public key into every node it
// provisions; this package generates ed25519 key pairs, outputting the
// private key in OpenSSH PEM format and the public key in authorized_keys
// format.
package keygen

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

// KeyPair holds an ed25519 key pair in ready-to-use formats.
type KeyPair struct {
	// PrivateKey is the private key in PEM-encoded OpenSSH format.
	PrivateKey []byte
	// PublicKey is the public key in OpenSSH authorized_keys format.
	PublicKey []byte
}

// GenerateEd25519KeyPair generates a new ed25519 key pair.
func GenerateEd25519KeyPair(comment string) (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
	}

	privBlock, err := ssh.MarshalPrivateKey(priv, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	privateKeyPEM := pem.EncodeToMemory(privBlock)

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH public key: %w", err)
	}
	pubKeyBytes := ssh.MarshalAuthorizedKey(sshPub)

	return &KeyPair{
		PrivateKey: privateKeyPEM,
		PublicKey:  pubKeyBytes,
	}, nil
}

// EnsureKeyFiles returns the paths of an id_ed25519/id_ed25519.pub pair
// under dir, generating and writing the pair when it does not exist yet.
// An existing pair is left untouched so repeated runs reuse the same key.
func EnsureKeyFiles(dir, comment string) (privPath, pubPath string, err error) {
	privPath = filepath.Join(dir, "id_ed25519")
	pubPath = filepath.Join(dir, "id_ed25519.pub")

	if _, err := os.Stat(pubPath); err == nil {
		return privPath, pubPath, nil
	}

	kp, err := GenerateEd25519KeyPair(comment)
	if err != nil {
		return "", "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(privPath, kp.PrivateKey, 0o600); err != nil {
		return "", "", fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(pubPath, kp.PublicKey, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write public key: %w", err)
	}

	return privPath, pubPath, nil
}
