package security

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// PasswordValidationError is one policy violation. Code is stable, Message is shown to users.
type PasswordValidationError struct {
	Code    string
	Message string
}

func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordRule returns nil when password satisfies it.
type PasswordRule func(password string) error

// PasswordValidator runs rules in order and stops at the first violation.
type PasswordValidator struct {
	rules []PasswordRule
}

func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	return &PasswordValidator{rules: append([]PasswordRule(nil), rules...)}
}

func (v *PasswordValidator) Validate(password string) error {
	if v == nil {
		return errors.New("password validator not configured")
	}
	for _, rule := range v.rules {
		if err := rule(password); err != nil {
			return err
		}
	}
	return nil
}

// MinLengthRule counts runes, not bytes.
func MinLengthRule(min int) PasswordRule {
	return func(password string) error {
		if utf8.RuneCountInString(password) >= min {
			return nil
		}
		return &PasswordValidationError{
			Code:    "min_length",
			Message: fmt.Sprintf("password must be at least %d characters long", min),
		}
	}
}

func RequireUpperRule() PasswordRule {
	return containsRule("uppercase", "password must include at least one uppercase letter", unicode.IsUpper)
}

func RequireDigitRule() PasswordRule {
	return containsRule("digit", "password must include at least one digit", unicode.IsDigit)
}

// RequireSymbolRule accepts any rune that is not a letter, digit or whitespace.
func RequireSymbolRule() PasswordRule {
	return containsRule("symbol", "password must include at least one symbol", func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
	})
}

func containsRule(code, message string, match func(rune) bool) PasswordRule {
	return func(password string) error {
		for _, r := range password {
			if match(r) {
				return nil
			}
		}
		return &PasswordValidationError{Code: code, Message: message}
	}
}

// RequirePasswordStrengthRule rejects passwords whose zxcvbn score is below minScore (0..4).
// userInputs are penalised as dictionary words, typically the name, email and phone.
// A minScore of zero disables the check.
func RequirePasswordStrengthRule(minScore int, userInputs ...string) PasswordRule {
	minScore = min(minScore, 4)
	return func(password string) error {
		if minScore <= 0 {
			return nil
		}
		if zxcvbn.PasswordStrength(password, userInputs).Score >= minScore {
			return nil
		}
		return &PasswordValidationError{
			Code:    "weak_password",
			Message: "password is too easy to guess, choose a longer or less common one",
		}
	}
}
