package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidLogin is returned for Telegram login payloads that fail verification.
var ErrInvalidLogin = errors.New("invalid telegram login")

// TelegramLogin is the payload produced by the Telegram Login Widget.
type TelegramLogin struct {
	ID        int64  `json:"id" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	PhotoURL  string `json:"photo_url"`
	AuthDate  int64  `json:"auth_date" binding:"required"`
	Hash      string `json:"hash" binding:"required"`
}

// DisplayName prefers the full name, then the username.
func (l TelegramLogin) DisplayName() string {
	name := strings.TrimSpace(l.FirstName + " " + l.LastName)
	if name == "" {
		name = l.Username
	}
	return name
}

func (l TelegramLogin) fields() map[string]string {
	f := map[string]string{
		"id":        strconv.FormatInt(l.ID, 10),
		"auth_date": strconv.FormatInt(l.AuthDate, 10),
	}
	for k, v := range map[string]string{
		"first_name": l.FirstName,
		"last_name":  l.LastName,
		"username":   l.Username,
		"photo_url":  l.PhotoURL,
	} {
		if v != "" {
			f[k] = v
		}
	}
	return f
}

type LoginVerifier struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewLoginVerifier checks widget payloads signed for botToken. Payloads older
// than maxAge are rejected.
func NewLoginVerifier(botToken string, maxAge time.Duration) *LoginVerifier {
	sum := sha256.Sum256([]byte(botToken))
	return &LoginVerifier{secret: sum[:], maxAge: maxAge, now: time.Now}
}

// Verify returns the Telegram user id of a genuine, fresh login.
func (v *LoginVerifier) Verify(l TelegramLogin) (string, error) {
	want, err := hex.DecodeString(l.Hash)
	if err != nil {
		return "", fmt.Errorf("%w: malformed hash", ErrInvalidLogin)
	}
	if !hmac.Equal(signLogin(v.secret, l), want) {
		return "", fmt.Errorf("%w: hash mismatch", ErrInvalidLogin)
	}
	if age := v.now().Sub(time.Unix(l.AuthDate, 0)); age > v.maxAge {
		return "", fmt.Errorf("%w: login expired %s ago", ErrInvalidLogin, age.Round(time.Second))
	}
	return strconv.FormatInt(l.ID, 10), nil
}

// signLogin computes HMAC-SHA256 over the sorted "key=value" lines.
func signLogin(secret []byte, l TelegramLogin) []byte {
	fields := l.fields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + fields[k]
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strings.Join(lines, "\n")))
	return mac.Sum(nil)
}
