package installer

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"

	"sikuli-bot/src/failure"
)

const maxSignatureSize = 10 * 1024

// Verifier checks detached OpenPGP signatures published next to installers.
type Verifier struct {
	keyring openpgp.EntityList
	// Suffix is appended to the installer path to find its signature.
	Suffix string
}

// NewVerifier loads an armored or binary public keyring from keyPath.
func NewVerifier(keyPath, suffix string) (*Verifier, error) {
	//nolint:gosec // G304: key path comes from operator configuration
	f, err := os.Open(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file: %w", err)
	}
	defer f.Close()

	entities, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		if _, seekErr := f.Seek(0, io.SeekStart); seekErr != nil {
			return nil, fmt.Errorf("failed to reset file: %w", seekErr)
		}
		entities, err = openpgp.ReadKeyRing(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read key: %w", err)
		}
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("no keys found in %s", keyPath)
	}

	if suffix == "" {
		suffix = ".sig"
	}
	return &Verifier{keyring: entities, Suffix: suffix}, nil
}

// Verify checks path against path+Suffix and returns the signer's identity.
func (v *Verifier) Verify(path string) (string, error) {
	sigPath := path + v.Suffix
	sig, err := os.ReadFile(sigPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", failure.ErrSignatureInvalid, err)
	}
	if len(sig) > maxSignatureSize {
		return "", fmt.Errorf("%w: %s is larger than %d bytes", failure.ErrSignatureInvalid, sigPath, maxSignatureSize)
	}

	//nolint:gosec // G304: installer path comes from the scanned directory
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", failure.ErrSignatureInvalid, err)
	}
	defer f.Close()

	var signer *openpgp.Entity
	if bytes.HasPrefix(bytes.TrimSpace(sig), []byte("-----BEGIN PGP SIGNATURE")) {
		signer, err = openpgp.CheckArmoredDetachedSignature(v.keyring, f, bytes.NewReader(sig), nil)
	} else {
		signer, err = openpgp.CheckDetachedSignature(v.keyring, f, bytes.NewReader(sig), nil)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", failure.ErrSignatureInvalid, path, err)
	}
	return identityOf(signer), nil
}

func identityOf(e *openpgp.Entity) string {
	if e == nil {
		return "unknown key"
	}
	for name := range e.Identities {
		return name
	}
	return fmt.Sprintf("%X", e.PrimaryKey.Fingerprint)
}
