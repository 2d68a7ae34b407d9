package biz

import (
	"crypto/rand"
	"fmt"
	"io"
)

const (
	ShareTokenLength = 22
	tokenAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// largest multiple of len(tokenAlphabet) that fits in a byte
	tokenByteLimit = 256 - 256%len(tokenAlphabet)
)

// TokenIssuer hands out share tokens
type TokenIssuer interface {
	Issue() (string, error)
}

type shareTokenIssuer struct {
	rand io.Reader
}

// NewShareTokenIssuer returns an issuer backed by crypto/rand. Tokens carry
// about 131 bits of entropy and nothing derived from the record.
func NewShareTokenIssuer() TokenIssuer {
	return &shareTokenIssuer{rand: rand.Reader}
}

func (s *shareTokenIssuer) Issue() (string, error) {
	token := make([]byte, 0, ShareTokenLength)
	buf := make([]byte, ShareTokenLength*2)

	for len(token) < ShareTokenLength {
		if _, err := io.ReadFull(s.rand, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			// rejection sampling keeps every character equally likely
			if int(b) >= tokenByteLimit {
				continue
			}
			token = append(token, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(token) == ShareTokenLength {
				break
			}
		}
	}
	return string(token), nil
}

// ValidShareToken reports whether s could have been issued by NewShareTokenIssuer
func ValidShareToken(s string) bool {
	if len(s) != ShareTokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
