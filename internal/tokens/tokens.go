package tokens

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tewahedanswers/answers/backend/go-services/internal/config"
)

// GenerateSessionToken creates the signed HS256 JWT carried in the session
// cookie. It wraps only the opaque session id; all session state lives
// server-side.
func GenerateSessionToken(cfg *config.Config, sessionID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sid": sessionID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(cfg.Session.Secret))
}

// ParseSessionToken verifies the cookie JWT and returns the session id.
func ParseSessionToken(cfg *config.Config, raw string) (string, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return []byte(cfg.Session.Secret), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}
	sid, _ := claims["sid"].(string)
	if sid == "" {
		return "", fmt.Errorf("sid claim missing")
	}
	return sid, nil
}

// RemainingLifetime decodes the exp claim of a JWT without verifying the
// signature and returns how long the token is still valid. Suitable only
// for computing blacklist TTLs.
func RemainingLifetime(raw string) (time.Duration, error) {
	var claims jwt.MapClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return 0, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, fmt.Errorf("exp claim not present")
	}
	return time.Until(exp.Time), nil
}
