package domain

import "fmt"

// codeKey identifies one provider business error code. The meanings come from
// provider documentation, not anything this service can infer at runtime.
type codeKey struct {
	provider string
	code     int
}

type codeGuidance struct {
	kind        ErrorKind
	message     string
	suggestions []string
}

// guidanceTable replaces the hard-coded per-endpoint conditionals for numeric
// provider codes with one lookup keyed by (provider, code).
var guidanceTable = map[codeKey]codeGuidance{
	{"kling", 1000}: {ErrKindAuth, "authentication failed", []string{
		"verify the access key and secret key",
	}},
	{"kling", 1001}: {ErrKindAuth, "authorization token is invalid", []string{
		"verify the signing secret used to mint the request token",
	}},
	{"kling", 1002}: {ErrKindAuth, "authorization token has expired", []string{
		"retry; a fresh token is minted per request",
	}},
	{"kling", 1102}: {ErrKindRejected, "account balance is insufficient", []string{
		"top up the provider account balance",
	}},
	{"kling", 1200}: {ErrKindValidation, "request parameters are invalid", []string{
		"check the prompt length and enum values",
		"reduce the reference image size",
	}},
	{"kling", 1201}: {ErrKindValidation, "request payload is malformed", nil},
	{"kling", 1301}: {ErrKindRejected, "prompt was flagged by content moderation", []string{
		"remove disallowed content from the prompt",
		"simplify the prompt and retry",
	}},
	{"kling", 5000}: {ErrKindUnavailable, "provider internal error", []string{
		"retry in a few seconds",
	}},
	{"flux", 400001}: {ErrKindValidation, "input image could not be processed", []string{
		"reduce the image size",
		"use a JPEG or PNG source image",
	}},
	{"flux", 400002}: {ErrKindRejected, "request was moderated", []string{
		"remove disallowed content from the prompt or image",
	}},
	{"flux", 500001}: {ErrKindUnavailable, "generation backend is overloaded", []string{
		"retry in a few seconds",
	}},
}

// ClassifyProviderCode maps a numeric provider business code onto the error
// taxonomy. Unknown codes fall back to a provider_rejected error carrying the
// raw code and message.
func ClassifyProviderCode(provider string, code int, message string) *Error {
	if g, ok := guidanceTable[codeKey{provider, code}]; ok {
		msg := g.message
		if message != "" {
			msg = fmt.Sprintf("%s: %s", g.message, message)
		}
		return NewError(g.kind, msg, g.suggestions...)
	}
	return NewError(ErrKindRejected, fmt.Sprintf("provider error %d: %s", code, nonEmpty(message, "unknown error")))
}
