package verify

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// SignatureVerifier checks detached OpenPGP signatures over API response
// bodies against a local keyring. It is optional: distributions that do not
// sign responses simply never construct one.
type SignatureVerifier struct {
	keyring openpgp.EntityList
}

// NewSignatureVerifier loads the keyring at keyringPath. Armored keyrings
// are tried first, then binary.
func NewSignatureVerifier(keyringPath string) (*SignatureVerifier, error) {
	keyringFile, err := os.Open(keyringPath)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	defer keyringFile.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(keyringFile)
	if err != nil {
		// Try reading as non-armored keyring
		if _, serr := keyringFile.Seek(0, io.SeekStart); serr != nil {
			return nil, fmt.Errorf("rewind keyring: %w", serr)
		}
		keyring, err = openpgp.ReadKeyRing(keyringFile)
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}

	return &SignatureVerifier{keyring: keyring}, nil
}

// Verify checks a detached signature over body. Armored signatures are
// tried first, then binary.
func (v *SignatureVerifier) Verify(body, signature []byte) error {
	_, err := openpgp.CheckArmoredDetachedSignature(
		v.keyring, bytes.NewReader(body), bytes.NewReader(signature), nil)
	if err != nil {
		_, err = openpgp.CheckDetachedSignature(
			v.keyring, bytes.NewReader(body), bytes.NewReader(signature), nil)
	}
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}

	return nil
}
