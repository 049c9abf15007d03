// Package totp validates RFC 6238 time-based one-time codes.
package totp

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Verifier checks a submitted code against an enrolled secret. The
// default accepts the current 30-second step plus one step on either
// side to tolerate client clock drift; codes from two or more steps
// away are rejected.
type Verifier struct {
	digits otp.Digits
	period uint
	skew   uint
}

type Option func(*Verifier)

func WithDigits(digits int) Option {
	return func(v *Verifier) {
		if digits > 0 {
			v.digits = otp.Digits(digits)
		}
	}
}

func WithPeriod(period time.Duration) Option {
	return func(v *Verifier) {
		if period > 0 {
			v.period = uint(period.Seconds())
		}
	}
}

func WithSkew(skew uint) Option {
	return func(v *Verifier) {
		v.skew = skew
	}
}

func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{
		digits: otp.DigitsSix,
		period: 30,
		skew:   1,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify reports whether the code matches the secret at the given
// instant. Empty inputs never match.
func (v *Verifier) Verify(secret, code string, at time.Time) bool {
	if secret == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    v.period,
		Skew:      v.skew,
		Digits:    v.digits,
		Algorithm: otp.AlgorithmSHA1, // RFC 6238 default, matches enrolled authenticator apps
	})
	return err == nil && ok
}
