package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"math/big"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-portal/internal/models"
)

const backupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// randomToken returns n random bytes encoded URL-safe without padding.
func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// numericCode returns a random decimal code of the given length.
func numericCode(length int) (string, error) {
	return randomFrom("0123456789", length)
}

// backupCode returns a code shaped XXXX-XXXX.
func backupCode() (string, error) {
	code, err := randomFrom(backupCodeAlphabet, 8)
	if err != nil {
		return "", err
	}
	return code[:4] + "-" + code[4:], nil
}

func randomFrom(alphabet string, length int) (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(alphabet[n.Int64()])
	}
	return sb.String(), nil
}

func sha256Hex(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// hashMatches compares sha256(supplied) with stored in constant time.
func hashMatches(stored *string, supplied string) bool {
	if stored == nil || *stored == "" || supplied == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(sha256Hex(supplied))) == 1
}

// normalizeAnswer folds case and whitespace of security answers and identity values.
func normalizeAnswer(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}

func normalizeBackupCode(value string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, " ", "")
	if len(value) == 8 && !strings.Contains(value, "-") {
		value = value[:4] + "-" + value[4:]
	}
	return value
}

const totpPeriod = 30

var totpOpts = totp.ValidateOpts{Period: totpPeriod, Skew: 1, Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1}

type twoFactorStepClaimer interface {
	ClaimTwoFactorStep(ctx context.Context, id string, step int64) (bool, error)
}

// totpStep returns the time step a code was generated for, allowing one
// step of clock skew either way, or -1 when the code matches none.
func totpStep(secret, code string, now time.Time) int64 {
	code = strings.TrimSpace(code)
	if code == "" {
		return -1
	}
	for _, offset := range []int64{-1, 0, 1} {
		at := now.Add(time.Duration(offset*totpPeriod) * time.Second)
		want, err := totp.GenerateCodeCustom(secret, at, totpOpts)
		if err != nil {
			return -1
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return at.Unix() / totpPeriod
		}
	}
	return -1
}

// acceptTOTP checks code against the user's secret and claims its time step,
// so each code is accepted at most once.
func acceptTOTP(ctx context.Context, users twoFactorStepClaimer, user *models.User, code string, now time.Time) (bool, error) {
	if user.TwoFactorSecret == nil {
		return false, nil
	}
	step := totpStep(*user.TwoFactorSecret, code, now)
	if step < 0 {
		return false, nil
	}
	return users.ClaimTwoFactorStep(ctx, user.ID, step)
}

type sessionStateRevoker interface {
	Revoke(ctx context.Context, key string) error
}

// dropSessionState deletes the server-side state behind revoked session records.
func dropSessionState(ctx context.Context, state sessionStateRevoker, keys []string, logger *zap.Logger) {
	if state == nil {
		return
	}
	for _, key := range keys {
		if err := state.Revoke(ctx, key); err != nil {
			logger.Warn("failed to drop session state", zap.Error(err))
		}
	}
}
