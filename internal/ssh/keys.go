package ssh

import (
	"bufio"
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/slok/devdroid/internal/conventions"
)

// KeyManager handles the installer SSH key pair, used to log into the device SSH server
// and into the container distribution.
type KeyManager struct {
	dataDir string
}

// NewKeyManager creates a new SSH key manager.
// dataDir is the devdroid data directory (e.g., ~/.devdroid).
func NewKeyManager(dataDir string) *KeyManager {
	return &KeyManager{dataDir: dataDir}
}

// PrivateKeyPath returns the path to the private key.
func (m *KeyManager) PrivateKeyPath() string {
	return conventions.SSHPrivateKeyPath(m.dataDir)
}

// PublicKeyPath returns the path to the public key.
func (m *KeyManager) PublicKeyPath() string {
	return conventions.SSHPublicKeyPath(m.dataDir)
}

// KeysExist checks if both private and public keys exist.
func (m *KeyManager) KeysExist() bool {
	_, errPriv := os.Stat(m.PrivateKeyPath())
	_, errPub := os.Stat(m.PublicKeyPath())
	return errPriv == nil && errPub == nil
}

// EnsureKeys returns the existing public key or generates a new key pair if missing.
func (m *KeyManager) EnsureKeys() (publicKeyAuthorized string, err error) {
	if m.KeysExist() {
		return m.LoadPublicKey()
	}
	return m.GenerateKeys()
}

// GenerateKeys generates a new Ed25519 SSH key pair replacing any existing one.
// Returns the public key in authorized_keys format.
func (m *KeyManager) GenerateKeys() (publicKeyAuthorized string, err error) {
	keyDir := filepath.Dir(m.PrivateKeyPath())
	if err := os.MkdirAll(keyDir, 0o700); err != nil {
		return "", fmt.Errorf("could not create ssh key directory: %w", err)
	}

	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("could not generate ed25519 key: %w", err)
	}

	sshPubKey, err := ssh.NewPublicKey(pubKey)
	if err != nil {
		return "", fmt.Errorf("could not convert to ssh public key: %w", err)
	}

	privKeyBytes, err := ssh.MarshalPrivateKey(privKey, "devdroid-generated-key")
	if err != nil {
		return "", fmt.Errorf("could not marshal private key: %w", err)
	}

	privKeyPath := m.PrivateKeyPath()
	if err := os.WriteFile(privKeyPath, pem.EncodeToMemory(privKeyBytes), 0o600); err != nil {
		return "", fmt.Errorf("could not write private key: %w", err)
	}

	publicKeyAuthorized = string(ssh.MarshalAuthorizedKey(sshPubKey))
	if err := os.WriteFile(m.PublicKeyPath(), []byte(publicKeyAuthorized), 0o644); err != nil {
		os.Remove(privKeyPath)
		return "", fmt.Errorf("could not write public key: %w", err)
	}

	return publicKeyAuthorized, nil
}

// LoadPublicKey reads the public key in authorized_keys format.
func (m *KeyManager) LoadPublicKey() (string, error) {
	data, err := os.ReadFile(m.PublicKeyPath())
	if err != nil {
		return "", fmt.Errorf("could not read public key: %w", err)
	}
	return string(data), nil
}

// LoadPrivateKey reads the private key bytes.
func (m *KeyManager) LoadPrivateKey() ([]byte, error) {
	data, err := os.ReadFile(m.PrivateKeyPath())
	if err != nil {
		return nil, fmt.Errorf("could not read private key: %w", err)
	}
	return data, nil
}

// AuthorizeKey appends the public key to an authorized_keys file unless it's already there.
// It returns true if the key has been added.
func AuthorizeKey(authorizedKeysPath, publicKeyAuthorized string) (bool, error) {
	key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(publicKeyAuthorized))
	if err != nil {
		return false, fmt.Errorf("invalid public key: %w", err)
	}
	wire := key.Marshal()

	data, err := os.ReadFile(authorizedKeysPath)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("could not read authorized keys: %w", err)
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		existing, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			continue
		}
		if bytes.Equal(existing.Marshal(), wire) {
			return false, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(authorizedKeysPath), 0o700); err != nil {
		return false, fmt.Errorf("could not create ssh directory: %w", err)
	}

	f, err := os.OpenFile(authorizedKeysPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return false, fmt.Errorf("could not open authorized keys: %w", err)
	}
	defer f.Close()

	line := string(ssh.MarshalAuthorizedKey(key))
	if len(data) > 0 && !bytes.HasSuffix(data, []byte("\n")) {
		line = "\n" + line
	}
	if _, err := f.WriteString(line); err != nil {
		return false, fmt.Errorf("could not write authorized keys: %w", err)
	}

	return true, nil
}
