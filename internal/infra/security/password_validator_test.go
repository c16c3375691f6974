package security

import (
	"errors"
	"testing"

	"github.com/David567rs/LoginAna/internal/core/domain"
)

func TestDefaultPasswordValidatorSuccess(t *testing.T) {
	validator := DefaultPasswordValidator()

	for _, password := range []string{"Str0ng!pwd", "Abcdefg1#", "Pässwort9€"} {
		if err := validator.Validate(password); err != nil {
			t.Fatalf("expected %q to pass validation, got %v", password, err)
		}
	}
}

func TestDefaultPasswordValidatorViolations(t *testing.T) {
	validator := DefaultPasswordValidator()

	assertViolation := func(password, expectedCode string) {
		t.Helper()
		err := validator.Validate(password)
		if err == nil {
			t.Fatalf("expected validation error for %s", expectedCode)
		}
		var vErr *PasswordValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected PasswordValidationError, got %T", err)
		}
		if vErr.Code != expectedCode {
			t.Fatalf("expected %s code, got %s", expectedCode, vErr.Code)
		}
	}

	assertViolation("Sh0rt!", "min_length")
	assertViolation("lowercase1!", "uppercase")
	assertViolation("NoDigits!!", "digit")
	assertViolation("NoSymbol123", "symbol")
}

func TestPasswordPolicyStrengthScore(t *testing.T) {
	lenient := NewPasswordPolicy(PasswordPolicyConfig{MinLength: 8})
	if err := lenient.Validate("Password1!", domain.PasswordContext{Email: "ann@x.com"}); err != nil {
		t.Fatalf("expected lenient policy to accept password, got %v", err)
	}

	strict := NewPasswordPolicy(PasswordPolicyConfig{MinLength: 8, MinStrengthScore: 4})
	err := strict.Validate("Password1!", domain.PasswordContext{Name: "Ann", Email: "ann@x.com"})
	var vErr *PasswordValidationError
	if !errors.As(err, &vErr) || vErr.Code != "weak_password" {
		t.Fatalf("expected weak_password violation, got %v", err)
	}
}

func TestPasswordPolicyFromValidator(t *testing.T) {
	policy := NewPasswordPolicyFromValidator(NewPasswordValidator(MinLengthRule(4), RequireSymbolRule()))

	if err := policy.Validate("diff", domain.PasswordContext{}); err == nil {
		t.Fatal("expected validation error for missing symbol")
	}
	if err := policy.Validate("diff!", domain.PasswordContext{}); err != nil {
		t.Fatalf("expected password to pass custom validation, got %v", err)
	}

	var nilPolicy *PasswordPolicy
	if err := nilPolicy.Validate("Str0ng!pwd", domain.PasswordContext{}); err == nil {
		t.Fatal("expected error from unconfigured policy")
	}
}
