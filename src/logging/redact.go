package logging

import (
	"io"
	"regexp"
)

// Mask replaces any matched secret value in log output
const Mask = "[REDACTED]"

// credentialPatterns match credential-shaped substrings regardless of where
// in the record they appear (message, error text, stack trace).
var credentialPatterns = []*regexp.Regexp{
	// Alpaca-style key ids and secrets (PKXXXX..., AKXXXX...)
	regexp.MustCompile(`\b[PA]K[A-Z0-9]{8,}\b`),
	// key=..., secret: ..., token = ..., password=... assignments
	regexp.MustCompile(`(?i)\b(api[_-]?key(?:[_-]?id)?|api[_-]?secret|secret[_-]?key|secret|token|password|passphrase)(["']?\s*[=:]\s*["']?)[^\s"',;&]+`),
	// Bearer authorization values
	regexp.MustCompile(`(?i)\b(bearer)(\s+)[A-Za-z0-9\-._~+/]+=*`),
}

// Redact scrubs credential-shaped substrings from a string
func Redact(s string) string {
	out := credentialPatterns[0].ReplaceAllString(s, Mask)
	out = credentialPatterns[1].ReplaceAllString(out, "${1}${2}"+Mask)
	out = credentialPatterns[2].ReplaceAllString(out, "${1}${2}"+Mask)
	return out
}

// RedactingWriter scrubs secrets from every record before it reaches the
// underlying sink. It sits below the logger, so it also covers text the
// logger did not build itself (wrapped errors, recovered panics).
type RedactingWriter struct {
	out io.Writer
}

// NewRedactingWriter wraps a log sink with credential scrubbing
func NewRedactingWriter(out io.Writer) *RedactingWriter {
	return &RedactingWriter{out: out}
}

func (w *RedactingWriter) Write(p []byte) (int, error) {
	clean := Redact(string(p))
	if _, err := w.out.Write([]byte(clean)); err != nil {
		return 0, err
	}
	// Report the caller's length: the rewrite may change the byte count,
	// and a short-write error here would break zerolog.
	return len(p), nil
}
