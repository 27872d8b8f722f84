package service

import (
	"context"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	appErrors "github.com/noah-isme/sma-portal/pkg/errors"
)

// PasswordRule names a password requirement.
type PasswordRule string

const (
	RuleMinLength PasswordRule = "min_length"
	RuleUppercase PasswordRule = "uppercase"
	RuleLowercase PasswordRule = "lowercase"
	RuleDigit     PasswordRule = "digit"
	RuleSpecial   PasswordRule = "special"
	RuleSimilar   PasswordRule = "similar"
	RuleReused    PasswordRule = "reused"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

const maxSimilarity = 0.7

var ruleMessages = map[PasswordRule]string{
	RuleMinLength: "password must be at least 8 characters long",
	RuleUppercase: "password must contain an uppercase letter",
	RuleLowercase: "password must contain a lowercase letter",
	RuleDigit:     "password must contain a digit",
	RuleSpecial:   "password must contain a special character",
	RuleSimilar:   "password is too similar to your personal information",
	RuleReused:    "password was used recently, choose a different one",
}

// Message returns the user-facing text for r.
func (r PasswordRule) Message() string {
	return ruleMessages[r]
}

type passwordHistoryReader interface {
	RecentPasswordHashes(ctx context.Context, userID string, limit int) ([]string, error)
}

// PasswordPolicy checks new passwords against complexity, similarity and history rules.
type PasswordPolicy struct {
	history      passwordHistoryReader
	historyDepth int
	logger       *zap.Logger
}

// NewPasswordPolicy constructs the policy. A nil history reader disables the reuse rule.
func NewPasswordPolicy(history passwordHistoryReader, historyDepth int, logger *zap.Logger) *PasswordPolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PasswordPolicy{history: history, historyDepth: historyDepth, logger: logger}
}

// Violation returns the first complexity or similarity rule password breaks,
// or "" when it passes. attributes are personal values such as username or email.
func (p *PasswordPolicy) Violation(password string, attributes ...string) PasswordRule {
	if len([]rune(password)) < MinPasswordLength {
		return RuleMinLength
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r):
			special = true
		}
	}
	switch {
	case !upper:
		return RuleUppercase
	case !lower:
		return RuleLowercase
	case !digit:
		return RuleDigit
	case !special:
		return RuleSpecial
	}
	for _, attr := range attributes {
		if tooSimilar(password, attr) {
			return RuleSimilar
		}
	}
	return ""
}

// Validate applies every rule, including history for an existing userID.
// field names the form input the error is attached to.
func (p *PasswordPolicy) Validate(ctx context.Context, userID, field, password string, attributes ...string) error {
	if rule := p.Violation(password, attributes...); rule != "" {
		return ruleError(field, rule)
	}
	if userID == "" || p.history == nil || p.historyDepth <= 0 {
		return nil
	}
	hashes, err := p.history.RecentPasswordHashes(ctx, userID, p.historyDepth)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load password history")
	}
	for _, hash := range hashes {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil {
			return ruleError(field, RuleReused)
		}
	}
	return nil
}

func ruleError(field string, rule PasswordRule) error {
	err := appErrors.Field(field, rule.Message())
	err.Fields["rule"] = string(rule)
	return err
}

// tooSimilar compares case-folded characters, and also the local part of an email.
func tooSimilar(password, attr string) bool {
	attr = strings.ToLower(strings.TrimSpace(attr))
	if len(attr) < 3 {
		return false
	}
	candidates := []string{attr}
	if at := strings.IndexByte(attr, '@'); at >= 3 {
		candidates = append(candidates, attr[:at])
	}
	pw := strings.ToLower(password)
	for _, candidate := range candidates {
		if strings.Contains(pw, candidate) {
			return true
		}
		m := difflib.NewMatcher(strings.Split(pw, ""), strings.Split(candidate, ""))
		if m.Ratio() >= maxSimilarity {
			return true
		}
	}
	return false
}
