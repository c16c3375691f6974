package usecase

import (
	"fmt"
	"html"
	"net/url"
	"strings"
)

const (
	subjectConfirmEmail       = "Confirm your email"
	subjectConfirmEmailResend = "Confirm your email (resend)"
	subjectLoginCode          = "Your login code"
	subjectPasswordRecovery   = "Password recovery"

	registrationMessage = "registration created, check email and SMS"
)

// verifyEmailURL builds the link the web client opens to confirm an email address.
func verifyEmailURL(clientURL, token string) string {
	base := strings.TrimRight(strings.TrimSpace(clientURL), "/")
	return base + "/verify-email?token=" + url.QueryEscape(token)
}

func confirmEmailBody(link string) string {
	return fmt.Sprintf(
		`<p>Confirm your email by following this link:</p><p><a href="%s">Confirm email</a></p>`,
		html.EscapeString(link),
	)
}

func loginCodeEmailBody(code string) string {
	return fmt.Sprintf(`<p>Your login code is: <b>%s</b> (valid 5 min)</p>`, code)
}

func recoveryCodeEmailBody(code string) string {
	return fmt.Sprintf(`<p>Your password recovery code is: <b>%s</b> (valid 10 min)</p>`, code)
}

func verificationCodeSMS(code string) string {
	return "Your verification code is: " + code
}

func loginCodeSMS(code string) string {
	return "Your login code is: " + code
}

func recoveryCodeSMS(code string) string {
	return "Password recovery code: " + code
}
