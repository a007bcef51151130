package wire

import "strings"

const verificationPathSegment = "/v/"

// VerificationURL places a token in the public verification URL form
// {base}/v/{token}.
func VerificationURL(baseURL, token string) string {
	return strings.TrimSuffix(baseURL, "/") + verificationPathSegment + token
}

// TokenFromURL extracts the bare token from a verification URL. A string
// with no URL wrapper is returned as-is, trimmed; bare tokens must stay
// accepted for backward compatibility.
func TokenFromURL(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, verificationPathSegment); i >= 0 {
		s = s[i+len(verificationPathSegment):]
	}
	// Query strings and fragments are not part of the token.
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return s
}
