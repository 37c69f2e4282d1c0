package parser

import (
	"regexp"
	"strings"
	"time"

	"bank-statement-processor/internal/bankprofile"
	"bank-statement-processor/internal/models"
	"bank-statement-processor/pkg/logger"
)

// AccountExtractor scans full document text for account metadata. It runs
// once per document over the concatenated page text, not per page.
type AccountExtractor struct {
	log logger.Logger
}

// NewAccountExtractor creates an account info extractor
func NewAccountExtractor(log logger.Logger) *AccountExtractor {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &AccountExtractor{log: log.WithComponent("accountinfo")}
}

// Extract scans the text with profile-qualified patterns first and
// generic fallbacks second. The result is partial: any field that no
// pattern matched is simply absent. Extraction never fails.
func (e *AccountExtractor) Extract(fullText string, profile *bankprofile.Profile) *models.AccountInfo {
	info := &models.AccountInfo{}

	if m := firstSubmatch(fullText, profile.AccountNumberPatterns()); m != "" {
		info.AccountNumber = strings.TrimSpace(m)
	}

	if m := firstSubmatch(fullText, profile.HolderNamePatterns()); m != "" {
		info.HolderName = cleanHolderName(m)
	}

	if m := firstSubmatch(fullText, profile.PeriodPatterns()); m != "" {
		info.PeriodRaw = strings.TrimSpace(m)
		start, end := e.parsePeriod(info.PeriodRaw, profile.DateFormat)
		info.PeriodStart = start
		info.PeriodEnd = end
	}

	if m := firstSubmatch(fullText, profile.OpeningBalancePatterns()); m != "" {
		if d, err := models.ParseAmount(m); err == nil {
			info.OpeningBalance = &d
		}
	}

	if m := firstSubmatch(fullText, profile.ClosingBalancePatterns()); m != "" {
		if d, err := models.ParseAmount(m); err == nil {
			info.ClosingBalance = &d
		}
	}

	if !profile.IsGeneric() {
		info.BankName = profile.Name
	}

	return info
}

// parsePeriod splits a raw period like "January 1, 2024 to January 31,
// 2024" and parses both halves. Either half may fail independently.
func (e *AccountExtractor) parsePeriod(raw, profileLayout string) (*time.Time, *time.Time) {
	parts := periodSeparator.Split(raw, 2)
	if len(parts) != 2 {
		return nil, nil
	}

	var start, end *time.Time
	if t, err := models.ParseStatementDate(strings.TrimSpace(parts[0]), profileLayout); err == nil {
		start = &t
	}
	if t, err := models.ParseStatementDate(strings.TrimSpace(parts[1]), profileLayout); err == nil {
		end = &t
	}
	return start, end
}

var periodSeparator = regexp.MustCompile(`(?i)\s+(?:to|through|-|–)\s+`)

// firstSubmatch returns the first capture group of the first matching
// pattern, or the whole match when the pattern has no group.
func firstSubmatch(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if len(m) > 1 && m[1] != "" {
			return m[1]
		}
		return m[0]
	}
	return ""
}

// cleanHolderName trims the capture to the line it started on and drops
// trailing label noise the greedy name pattern tends to swallow.
func cleanHolderName(s string) string {
	if idx := strings.IndexAny(s, "\r\n"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
