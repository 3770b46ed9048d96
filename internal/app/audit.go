package app

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"

	"ballotbox/internal/domain"
)

var (
	ErrInvalidReceipt = errors.New("invalid audit receipt")
	ErrLogMismatch    = errors.New("action log does not match audit receipt")
)

// AuditReceipt is a signed statement about a prefix of a session's action log.
type AuditReceipt struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Entries   int    `json:"entries"`
	LastSeq   int64  `json:"last_seq"`
	Digest    string `json:"digest"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// AuditService signs and verifies action log receipts with an HS256 key.
type AuditService struct {
	secret string
	issuer string
	ttl    time.Duration
}

func NewAuditService(secret, issuer string, ttl time.Duration) *AuditService {
	return &AuditService{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
	}
}

// LogDigest hashes the canonical JSON encoding of entries.
func LogDigest(entries []domain.ActionLogEntry) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, e := range entries {
		if err := enc.Encode(canonicalEntry(e)); err != nil {
			return "", fmt.Errorf("failed to encode action %d: %w", e.Seq, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// canonicalEntry fixes the representation of fields that may not survive a storage round trip
// byte for byte.
func canonicalEntry(e domain.ActionLogEntry) domain.ActionLogEntry {
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Microsecond)
	return e
}

// Issue signs a receipt covering entries.
func (s *AuditService) Issue(sessionID string, entries []domain.ActionLogEntry) (AuditReceipt, error) {
	if s == nil {
		return AuditReceipt{}, fmt.Errorf("audit service is nil")
	}
	if sessionID == "" {
		return AuditReceipt{}, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	if s.secret == "" || s.issuer == "" {
		return AuditReceipt{}, fmt.Errorf("audit config is incomplete")
	}

	digest, err := LogDigest(entries)
	if err != nil {
		return AuditReceipt{}, err
	}
	var lastSeq int64
	if n := len(entries); n > 0 {
		lastSeq = entries[n-1].Seq
	}

	now := time.Now()
	receipt := AuditReceipt{
		SessionID: sessionID,
		Entries:   len(entries),
		LastSeq:   lastSeq,
		Digest:    digest,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	}
	claims := jwt.MapClaims{
		"iss":      s.issuer,
		"sub":      sessionID,
		"iat":      receipt.IssuedAt,
		"exp":      receipt.ExpiresAt,
		"n":        receipt.Entries,
		"last_seq": receipt.LastSeq,
		"digest":   receipt.Digest,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	receipt.Token, err = token.SignedString([]byte(s.secret))
	if err != nil {
		return AuditReceipt{}, fmt.Errorf("failed to sign audit receipt: %w", err)
	}
	return receipt, nil
}

// Verify checks the token signature and expiry, then checks that entries are exactly the log the
// receipt was issued over.
func (s *AuditService) Verify(tokenString string, entries []domain.ActionLogEntry) (AuditReceipt, error) {
	receipt, err := s.parse(tokenString)
	if err != nil {
		return AuditReceipt{}, err
	}
	return receipt, matchLog(receipt, entries)
}

// VerifyPrefix is Verify against the first receipt.Entries entries of log, so a receipt stays
// valid while the session keeps appending.
func (s *AuditService) VerifyPrefix(tokenString string, log []domain.ActionLogEntry) (AuditReceipt, error) {
	receipt, err := s.parse(tokenString)
	if err != nil {
		return AuditReceipt{}, err
	}
	if receipt.Entries > len(log) {
		return receipt, ErrLogMismatch
	}
	return receipt, matchLog(receipt, log[:receipt.Entries])
}

func matchLog(receipt AuditReceipt, entries []domain.ActionLogEntry) error {
	digest, err := LogDigest(entries)
	if err != nil {
		return err
	}
	if len(entries) != receipt.Entries || digest != receipt.Digest {
		return ErrLogMismatch
	}
	return nil
}

func (s *AuditService) parse(tokenString string) (AuditReceipt, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil || !token.Valid {
		return AuditReceipt{}, fmt.Errorf("%w: %v", ErrInvalidReceipt, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !claims.VerifyIssuer(s.issuer, true) {
		return AuditReceipt{}, fmt.Errorf("%w: issuer", ErrInvalidReceipt)
	}

	receipt := AuditReceipt{Token: tokenString}
	receipt.SessionID, _ = claims["sub"].(string)
	receipt.Digest, _ = claims["digest"].(string)
	if v, ok := claims["n"].(float64); ok {
		receipt.Entries = int(v)
	}
	if v, ok := claims["last_seq"].(float64); ok {
		receipt.LastSeq = int64(v)
	}
	if v, ok := claims["iat"].(float64); ok {
		receipt.IssuedAt = int64(v)
	}
	if v, ok := claims["exp"].(float64); ok {
		receipt.ExpiresAt = int64(v)
	}
	if receipt.Entries < 0 {
		return AuditReceipt{}, fmt.Errorf("%w: entry count", ErrInvalidReceipt)
	}
	return receipt, nil
}
