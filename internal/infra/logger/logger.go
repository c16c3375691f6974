package logger

import (
	"context"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	lg   *zap.Logger
	once sync.Once
)

// New returns the process-wide zap.Logger. Production builds emit JSON, every other
// environment gets the colored console encoder.
func New(env string) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		if !strings.EqualFold(env, "production") {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		cfg.InitialFields = map[string]any{"service": "login-ana"}

		lg, err = cfg.Build()
	})

	return lg, err
}

// WithContext attaches request scoped fields to the logger.
func WithContext(ctx context.Context) *zap.Logger {
	base := lg
	if base == nil {
		base = zap.NewNop()
	}
	if ctx == nil {
		return base
	}

	if id := RequestIDFromContext(ctx); id != "" {
		return base.With(zap.String("request_id", id))
	}
	return base
}

// FromContext enriches log with the request id carried by ctx.
func FromContext(ctx context.Context, log *zap.Logger) *zap.Logger {
	if log == nil {
		return WithContext(ctx)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		return log.With(zap.String("request_id", id))
	}
	return log
}

// ContextWithRequestID stores id on ctx under RequestIDKey.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(RequestIDKey{}).(string); ok {
		return val
	}
	return ""
}

// RequestIDKey is used to store a request identifier on the context.
type RequestIDKey struct{}

// Email returns a zap field holding the masked address.
func Email(email string) zap.Field {
	return zap.String("email", MaskEmail(email))
}

// Phone returns a zap field holding the masked number. A nil phone is logged as empty.
func Phone(phone *string) zap.Field {
	if phone == nil {
		return zap.String("phone", "")
	}
	return zap.String("phone", MaskPhone(*phone))
}

// MaskEmail keeps the first character of the local part and the domain.
// Example: maria.lopez@example.com -> m***@example.com
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}

	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// MaskPhone keeps the country prefix and the last two digits.
// Example: +5215512345678 -> +52*********78
func MaskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) <= 5 {
		return "***"
	}

	head := 3
	if !strings.HasPrefix(phone, "+") {
		head = 2
	}
	return phone[:head] + strings.Repeat("*", len(phone)-head-2) + phone[len(phone)-2:]
}

// MaskIP zeroes the host part: the last octet for IPv4 and the last 80 bits for IPv6.
func MaskIP(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		if ip == "" {
			return ""
		}
		return "***"
	}

	if v4 := parsed.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}
	return parsed.Mask(net.CIDRMask(48, 128)).String()
}

// MaskString shows the first and last two characters of s.
func MaskString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "***"
	}
	return s[:2] + "***" + s[len(s)-2:]
}
