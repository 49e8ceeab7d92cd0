// Package security validates user-supplied symbols and masks credentials
// before they reach logs or the terminal.
package security

import (
	"regexp"
	"strings"

	"swing-trader/internal/errors"
)

var (
	// symbolPattern matches NSE tickers with an optional Yahoo exchange
	// suffix, and Yahoo index symbols such as ^NSEI.
	symbolPattern = regexp.MustCompile(`^(\^[A-Z0-9]{1,20}|[A-Z0-9&-]{1,20}(\.(NS|BO))?)$`)

	secretPatterns = []*regexp.Regexp{
		// Telegram bot tokens, which appear in request URLs.
		regexp.MustCompile(`bot[0-9]{5,}:[A-Za-z0-9_-]{20,}`),
		regexp.MustCompile(`(?i)(api[_-]?key|api[_-]?secret|access[_-]?token|bot[_-]?token|token)([=:]\s*)["']?([A-Za-z0-9_\-.:]{8,})["']?`),
	}
)

// ValidateSymbol checks that symbol is an upper-case ticker the data sources
// can resolve.
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return errors.NewValidationError("symbol", symbol, "cannot be empty")
	}
	if !symbolPattern.MatchString(symbol) {
		return errors.NewValidationError("symbol", symbol, "must be an NSE ticker such as RELIANCE or RELIANCE.NS")
	}
	return nil
}

// MaskCredential masks a credential value for display, keeping a few
// characters at each end of long values.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// MaskSecrets masks tokens embedded in free text such as error messages.
func MaskSecrets(input string) string {
	result := secretPatterns[0].ReplaceAllStringFunc(input, func(match string) string {
		return "bot" + MaskCredential(strings.TrimPrefix(match, "bot"))
	})
	return secretPatterns[1].ReplaceAllStringFunc(result, func(match string) string {
		m := secretPatterns[1].FindStringSubmatch(match)
		return m[1] + m[2] + MaskCredential(m[3])
	})
}
