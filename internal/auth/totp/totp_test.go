package totp

import (
	"testing"
	"time"

	"github.com/pquerna/otp"
	totplib "github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/suite"
)

type VerifierSuite struct {
	suite.Suite
	verifier *Verifier
	secret   string
	now      time.Time
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	s.verifier = NewVerifier()
	s.now = time.Date(2025, 6, 15, 12, 0, 15, 0, time.UTC)

	key, err := totplib.Generate(totplib.GenerateOpts{
		Issuer:      "bookmark-bureau",
		AccountName: "user@example.com",
	})
	s.Require().NoError(err)
	s.secret = key.Secret()
}

func (s *VerifierSuite) codeAt(t time.Time) string {
	code, err := totplib.GenerateCodeCustom(s.secret, t, totplib.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	s.Require().NoError(err)
	return code
}

func (s *VerifierSuite) TestStepWindow() {
	s.Run("accepts the current step", func() {
		s.True(s.verifier.Verify(s.secret, s.codeAt(s.now), s.now))
	})

	s.Run("accepts the previous step", func() {
		s.True(s.verifier.Verify(s.secret, s.codeAt(s.now.Add(-30*time.Second)), s.now))
	})

	s.Run("accepts the next step", func() {
		s.True(s.verifier.Verify(s.secret, s.codeAt(s.now.Add(30*time.Second)), s.now))
	})

	s.Run("rejects codes two steps behind", func() {
		s.False(s.verifier.Verify(s.secret, s.codeAt(s.now.Add(-60*time.Second)), s.now))
	})

	s.Run("rejects codes two steps ahead", func() {
		s.False(s.verifier.Verify(s.secret, s.codeAt(s.now.Add(60*time.Second)), s.now))
	})
}

func (s *VerifierSuite) TestRejectsBadInput() {
	s.Run("empty secret", func() {
		s.False(s.verifier.Verify("", "123456", s.now))
	})

	s.Run("empty code", func() {
		s.False(s.verifier.Verify(s.secret, "", s.now))
	})

	s.Run("wrong code", func() {
		code := s.codeAt(s.now)
		wrong := "000000"
		if code == wrong {
			wrong = "000001"
		}
		s.False(s.verifier.Verify(s.secret, wrong, s.now))
	})

	s.Run("non-numeric code", func() {
		s.False(s.verifier.Verify(s.secret, "abcdef", s.now))
	})
}
