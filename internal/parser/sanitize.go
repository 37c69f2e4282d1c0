package parser

import "regexp"

// OCR engines routinely misread the decimal point in amounts as a
// semicolon or colon. These fixups run before pattern matching so the
// amount pattern sees a well-formed token.
var (
	semicolonDecimal = regexp.MustCompile(`(\d);(\s*)(\d)`)
	colonDecimal     = regexp.MustCompile(`(\d):(\d)`)
	trailingColonMid = regexp.MustCompile(`(\d):\s`)
	trailingColonEnd = regexp.MustCompile(`(\d):$`)
)

// SanitizeAmounts repairs common OCR misreads in a line of statement
// text, e.g. "1,234; 56" -> "1,234.56" and "1,234:56" -> "1,234.56".
func SanitizeAmounts(line string) string {
	line = semicolonDecimal.ReplaceAllString(line, "$1.$3")
	line = colonDecimal.ReplaceAllString(line, "$1.$2")
	line = trailingColonMid.ReplaceAllString(line, "$1 ")
	line = trailingColonEnd.ReplaceAllString(line, "$1")
	return line
}
