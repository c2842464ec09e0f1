package orders

import (
	"crypto/rand"
	"encoding/base64"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const tokenBytes = 32

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// AddressValidator normalizes and checks a postal address.
type AddressValidator func(value string) (string, error)

// ValidateAddress rejects blank addresses.
func ValidateAddress(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Address is required.")
	}
	return trimmed, nil
}
