package security

import (
	"fmt"
	"strings"

	"github.com/David567rs/LoginAna/internal/core/domain"
)

const (
	defaultMinPasswordLength = 8
	defaultMinZxcvbnScore    = 0
)

// PasswordPolicyConfig tunes the registration and reset password policy.
type PasswordPolicyConfig struct {
	MinLength        int
	MinStrengthScore int
}

// DefaultPasswordValidator returns the validator enforcing length, uppercase, digit and symbol rules.
func DefaultPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(
		MinLengthRule(defaultMinPasswordLength),
		RequireUpperRule(),
		RequireDigitRule(),
		RequireSymbolRule(),
	)
}

// PasswordPolicy adapts the password validator to the domain-level policy interface.
type PasswordPolicy struct {
	factory func(inputs []string) *PasswordValidator
}

// NewPasswordPolicy builds a policy that accounts for contextual user inputs when scoring strength.
func NewPasswordPolicy(cfg PasswordPolicyConfig) *PasswordPolicy {
	minLength := cfg.MinLength
	if minLength <= 0 {
		minLength = defaultMinPasswordLength
	}
	minScore := cfg.MinStrengthScore
	if minScore < 0 {
		minScore = defaultMinZxcvbnScore
	}

	return &PasswordPolicy{
		factory: func(inputs []string) *PasswordValidator {
			return NewPasswordValidator(
				MinLengthRule(minLength),
				RequireUpperRule(),
				RequireDigitRule(),
				RequireSymbolRule(),
				RequirePasswordStrengthRule(minScore, inputs...),
			)
		},
	}
}

// NewPasswordPolicyFromValidator wraps an existing validator instance without contextual enhancements.
func NewPasswordPolicyFromValidator(validator *PasswordValidator) *PasswordPolicy {
	if validator == nil {
		validator = DefaultPasswordValidator()
	}
	return &PasswordPolicy{
		factory: func(_ []string) *PasswordValidator {
			return validator
		},
	}
}

// Validate applies the configured validator to ensure the password meets policy requirements.
func (p *PasswordPolicy) Validate(password string, ctx domain.PasswordContext) error {
	if p == nil || p.factory == nil {
		return fmt.Errorf("password policy not configured")
	}

	inputs := make([]string, 0, 3)
	if trimmed := strings.TrimSpace(ctx.Name); trimmed != "" {
		inputs = append(inputs, trimmed)
	}
	if trimmed := strings.TrimSpace(ctx.Email); trimmed != "" {
		inputs = append(inputs, trimmed)
	}
	if ctx.Phone != nil && *ctx.Phone != "" {
		inputs = append(inputs, *ctx.Phone)
	}

	validator := p.factory(inputs)
	if validator == nil {
		return fmt.Errorf("password validator not configured")
	}

	return validator.Validate(password)
}
