package exchange

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// signer выпускает короткоживущий ES256 JWT на каждый запрос (CDP API keys).
type signer struct {
	keyName string
	key     *ecdsa.PrivateKey
	now     func() time.Time
}

func newSigner(keyName, pemKey string) (*signer, error) {
	// ключ часто приходит из env с экранированными переводами строк
	pemKey = strings.ReplaceAll(pemKey, `\n`, "\n")
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &signer{keyName: keyName, key: key, now: time.Now}, nil
}

type claims struct {
	jwt.RegisteredClaims
	URI string `json:"uri,omitempty"`
}

// token для REST передаём uri "METHOD host/path", для websocket пустой.
func (s *signer) token(uri string) (string, error) {
	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.keyName,
			Issuer:    "cdp",
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(2 * time.Minute)),
		},
		URI: uri,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodES256, c)
	t.Header["kid"] = s.keyName
	t.Header["nonce"] = nonce()
	return t.SignedString(s.key)
}

func nonce() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
