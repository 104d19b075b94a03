package device

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Device tokens are the only identity in the system: a stable pseudo-identity
// per installed app, no accounts and no passwords.
const tokenTTL = 365 * 24 * time.Hour

type Service struct {
	secret []byte
}

type Claims struct {
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

func NewService(secret string) *Service {
	return &Service{secret: []byte(secret)}
}

// Register issues an identity for a device. A client may supply its own id
// (e.g. after reinstalling with a backed-up id); otherwise a fresh one is minted.
func (s *Service) Register(deviceID string) (Registration, error) {
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	claims := Claims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Registration{}, err
	}
	return Registration{DeviceID: deviceID, Token: token}, nil
}

func (s *Service) ValidateToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.DeviceID == "" {
		return "", errors.New("token invalid")
	}
	return claims.DeviceID, nil
}
