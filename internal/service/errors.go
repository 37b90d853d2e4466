package service

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrEmailNotVerified   = errors.New("email address not verified")

	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrRefreshTokenReuseDetected is internal only; callers present it to
	// clients exactly like ErrInvalidRefreshToken so the response leaks
	// nothing about the detection.
	ErrRefreshTokenReuseDetected = errors.New("refresh token reuse detected")

	ErrInvalidActionToken = errors.New("invalid or expired token")
	ErrLoginCooldown      = errors.New("too many failed attempts")
)
