package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var ErrInvalidSignature = errors.New("invalid signature")

// Signer produces HMAC-SHA256 signatures so subscribers of published alert
// reports can check that a report came from this engine.
type Signer struct {
	secretKey []byte
	logger    *slog.Logger
}

func NewSigner(secretKey string, logger *slog.Logger) *Signer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Signer{
		secretKey: []byte(secretKey),
		logger:    logger,
	}
}

func (s *Signer) Sign(data []byte) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Signer) Verify(data []byte, signature string) error {
	expected := s.Sign(data)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		s.logger.Warn("Signature verification failed", slog.String("received", signature))
		return ErrInvalidSignature
	}
	return nil
}

// SignReport binds the shop, generation time and encoded body together so a
// body cannot be replayed under another shop id.
func (s *Signer) SignReport(shopID string, generatedAt time.Time, body []byte) string {
	return s.Sign(reportDigestInput(shopID, generatedAt, body))
}

func (s *Signer) VerifyReport(shopID string, generatedAt time.Time, body []byte, signature string) error {
	if err := s.Verify(reportDigestInput(shopID, generatedAt, body), signature); err != nil {
		return fmt.Errorf("report for shop %s: %w", shopID, err)
	}
	return nil
}

func reportDigestInput(shopID string, generatedAt time.Time, body []byte) []byte {
	prefix := fmt.Sprintf("%s:%d:", shopID, generatedAt.UnixNano())
	return append([]byte(prefix), body...)
}
