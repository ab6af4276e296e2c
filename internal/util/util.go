package util

import "strings"

// MaskSecret obscures a credential for logging, showing only the first and last few characters.
func MaskSecret(secret string) string {
	if len(secret) > 8 {
		return secret[:4] + "..." + secret[len(secret)-4:]
	} else if len(secret) > 4 {
		return secret[:2] + "..." + secret[len(secret)-2:]
	} else if len(secret) > 2 {
		return secret[:1] + "..." + secret[len(secret)-1:]
	}
	return secret
}

// MaskEmail obscures the local part of a shared-account login email. The
// domain stays readable so admins can still tell accounts apart.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return MaskSecret(email)
	}
	return MaskSecret(email[:at]) + email[at:]
}
