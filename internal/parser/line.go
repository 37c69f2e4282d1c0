// Package parser converts noisy OCR-extracted statement text into
// transaction candidates and account metadata, driven by a bank
// profile's pattern set with generic fallbacks. Parsing is a pure
// function over immutable profile data, so one parser may serve
// concurrent workers.
package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"bank-statement-processor/internal/bankprofile"
	"bank-statement-processor/internal/models"
	"bank-statement-processor/pkg/logger"
)

// Config holds configuration options for line parsing
type Config struct {
	// SanitizeOCRNoise repairs common OCR misreads before matching
	SanitizeOCRNoise bool

	// SignedConfidence is the candidate confidence when the transaction
	// sign was explicit on the line or determined by a profile hint.
	SignedConfidence float64

	// UnsignedConfidence is the lowered confidence recorded when no sign
	// could be determined and the debit default applied.
	UnsignedConfidence float64
}

// DefaultConfig returns a default line parser configuration
func DefaultConfig() *Config {
	return &Config{
		SanitizeOCRNoise:   true,
		SignedConfidence:   1.0,
		UnsignedConfidence: 0.6,
	}
}

// LineParser extracts transaction candidates from single lines of text
type LineParser struct {
	config *Config
	log    logger.Logger
}

// NewLineParser creates a line parser with the given configuration
func NewLineParser(config *Config, log logger.Logger) *LineParser {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &LineParser{
		config: config,
		log:    log.WithComponent("lineparser"),
	}
}

// ParseLine converts one line of extracted text into at most one
// transaction candidate. The date and amount patterns are applied
// independently of line structure, since OCR ordering and spacing are
// unreliable. Lines without both a date and an amount yield nil; that is
// the normal case for most of a statement's text, not an error.
func (p *LineParser) ParseLine(rawLine string, profile *bankprofile.Profile) *models.TransactionCandidate {
	line := strings.TrimSpace(rawLine)
	if line == "" {
		return nil
	}

	if p.config.SanitizeOCRNoise {
		line = SanitizeAmounts(line)
	}

	dateMatch := firstMatch(line, profile.DatePatterns())
	if dateMatch == nil {
		return nil
	}

	amounts := amountTokens(line, profile.AmountPatterns(), dateMatch)
	if len(amounts) == 0 {
		return nil
	}

	// Token selection: with exactly two amount-like tokens the first is
	// the transaction amount and the second the trailing running balance;
	// otherwise the last token before end-of-line is the amount.
	amountTok := amounts[len(amounts)-1]
	var balanceTok *token
	if len(amounts) == 2 {
		amountTok = amounts[0]
		balanceTok = &amounts[1]
	}

	amount, err := models.ParseAmount(amountTok.text)
	if err != nil {
		p.log.WithError(err).WithField("line", line).Debug("Amount token failed normalization")
		return nil
	}

	candidate := &models.TransactionCandidate{
		RawLine:      rawLine,
		DateString:   dateMatch.text,
		AmountString: amountTok.text,
		DateStart:    dateMatch.start,
		DateEnd:      dateMatch.end,
		AmountStart:  amountTok.start,
		AmountEnd:    amountTok.end,
		Amount:       amount.Abs(),
	}

	if balanceTok != nil {
		if bal, err := models.ParseAmount(balanceTok.text); err == nil {
			candidate.Balance = &bal
		}
	}

	candidate.Type, candidate.Confidence = p.inferType(line, amountTok.text, amount, profile)
	candidate.Description = p.description(line, dateMatch, amountTok, amounts)

	return candidate
}

// inferType determines credit/debit from the sign conventions on the
// token, then profile column hints, then the debit default with lowered
// confidence.
func (p *LineParser) inferType(line, amountToken string, amount decimal.Decimal, profile *bankprofile.Profile) (models.TransactionType, float64) {
	if models.AmountSigned(amountToken) {
		if amount.IsNegative() {
			return models.TypeDebit, p.config.SignedConfidence
		}
		return models.TypeCredit, p.config.SignedConfidence
	}

	if hint := profile.CreditHint(); hint != nil && hint.MatchString(line) {
		return models.TypeCredit, p.config.SignedConfidence
	}
	if hint := profile.DebitHint(); hint != nil && hint.MatchString(line) {
		return models.TypeDebit, p.config.SignedConfidence
	}

	return models.TypeDebit, p.config.UnsignedConfidence
}

// description takes the substring strictly between the date and amount
// matches. When that is empty or the matches do not delimit cleanly, the
// full line minus all matched tokens is used instead.
func (p *LineParser) description(line string, date *token, amount token, amounts []token) string {
	if date.end < amount.start {
		between := strings.TrimSpace(line[date.end:amount.start])
		if between != "" {
			return collapseSpaces(between)
		}
	}

	// Fallback: strip every matched token out of the line
	stripped := line[:date.start] + line[date.end:]
	for _, a := range amounts {
		stripped = strings.Replace(stripped, a.text, "", 1)
	}
	return collapseSpaces(strings.TrimSpace(stripped))
}

type token struct {
	text  string
	start int
	end   int
}

// firstMatch returns the first occurrence of any pattern, trying the
// profile's own rule before the generic fallback.
func firstMatch(line string, patterns []*regexp.Regexp) *token {
	for _, re := range patterns {
		if loc := re.FindStringIndex(line); loc != nil {
			return &token{text: line[loc[0]:loc[1]], start: loc[0], end: loc[1]}
		}
	}
	return nil
}

// amountTokens collects all amount-like tokens on the line that do not
// overlap the date match.
func amountTokens(line string, patterns []*regexp.Regexp, date *token) []token {
	for _, re := range patterns {
		locs := re.FindAllStringIndex(line, -1)
		var out []token
		for _, loc := range locs {
			if loc[0] < date.end && loc[1] > date.start {
				continue // inside the date token
			}
			out = append(out, token{text: line[loc[0]:loc[1]], start: loc[0], end: loc[1]})
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

var spaceRun = regexp.MustCompile(`\s{2,}`)

func collapseSpaces(s string) string {
	return spaceRun.ReplaceAllString(s, " ")
}
