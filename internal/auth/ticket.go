package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidTicket = errors.New("invalid or expired realtime ticket")
	ErrMissingTicket = errors.New("realtime ticket required")
)

const ticketAudience = "realtime"

// TicketManager issues and verifies short-lived tickets that bind a
// WebSocket registration to an authenticated user.
type TicketManager struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// TicketClaims is the JWT payload of a realtime ticket.
type TicketClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// NewTicketManager creates a manager signing with HS256.
func NewTicketManager(secretKey string, ttl time.Duration) *TicketManager {
	return &TicketManager{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		now:       time.Now,
	}
}

// Issue creates a ticket for userID and returns it with its expiry.
func (m *TicketManager) Issue(userID string) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)

	claims := &TicketClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{ticketAudience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign ticket: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify validates a ticket and returns the user it was issued to.
func (m *TicketManager) Verify(ticket string) (string, error) {
	if ticket == "" {
		return "", ErrMissingTicket
	}

	token, err := jwt.ParseWithClaims(
		ticket,
		&TicketClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
		jwt.WithAudience(ticketAudience),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}

	claims, ok := token.Claims.(*TicketClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", ErrInvalidTicket
	}

	return claims.UserID, nil
}
