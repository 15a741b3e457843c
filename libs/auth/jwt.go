package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// DefaultTokenTTL matches the lifetime the media server grants when none is requested.
const DefaultTokenTTL = 6 * time.Hour

// VideoGrant is the room permission block understood by the media server.
type VideoGrant struct {
	RoomJoin bool   `json:"roomJoin,omitempty"`
	Room     string `json:"room,omitempty"`
}

// RoomClaims are the claims of a room access token. The issuer is the API key and the
// subject is the participant identity.
type RoomClaims struct {
	Name  string      `json:"name,omitempty"`
	Video *VideoGrant `json:"video,omitempty"`
	jwt.RegisteredClaims
}

// RoomTokenSigner mints HS256 room access tokens for one API key/secret pair.
type RoomTokenSigner struct {
	apiKey    string
	apiSecret []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewRoomTokenSigner(apiKey, apiSecret string, ttl time.Duration) (*RoomTokenSigner, error) {
	apiKey = strings.TrimSpace(apiKey)
	apiSecret = strings.TrimSpace(apiSecret)
	if apiKey == "" || apiSecret == "" {
		return nil, errors.New("api key and secret are required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &RoomTokenSigner{apiKey: apiKey, apiSecret: []byte(apiSecret), ttl: ttl, now: time.Now}, nil
}

// Sign issues a token allowing identity to join room.
func (s *RoomTokenSigner) Sign(identity, name, room string) (string, error) {
	if identity == "" || room == "" {
		return "", errors.New("identity and room are required")
	}
	now := s.now()
	claims := RoomClaims{
		Name:  name,
		Video: &VideoGrant{RoomJoin: true, Room: room},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.apiKey,
			Subject:   identity,
			ID:        identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.apiSecret)
}

// Verify parses a token minted by this signer.
func (s *RoomTokenSigner) Verify(token string) (*RoomClaims, error) {
	claims := &RoomClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.apiSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.apiKey),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
