// Package bankprofile holds per-institution extraction pattern sets and
// resolves the profile to use for a document. Profiles are data: each
// named rule is a textual pattern compiled once when the registry is
// built. The registry is read-only at pipeline run time and may be
// shared across concurrent workers.
package bankprofile

import (
	"regexp"
	"strings"

	"bank-statement-processor/internal/models"
	"bank-statement-processor/pkg/errors"
	"bank-statement-processor/pkg/logger"
)

// PatternSet is a compiled pattern rule set. Fields are nil where the
// profile does not define the rule and the generic fallback applies.
type PatternSet struct {
	Date           *regexp.Regexp
	Amount         *regexp.Regexp
	AccountNumber  *regexp.Regexp
	HolderName     *regexp.Regexp
	Period         *regexp.Regexp
	OpeningBalance *regexp.Regexp
	ClosingBalance *regexp.Regexp
	DebitHint      *regexp.Regexp
	CreditHint     *regexp.Regexp
}

// Profile is a bank profile with its patterns compiled, plus the shared
// generic fallback set. Accessors return the profile's own rule first and
// the generic rule second, so callers can try both in order.
type Profile struct {
	Code       string
	Name       string
	DateFormat string

	detectKeywords []string
	rules          PatternSet
	generic        *PatternSet
}

// rulePair returns own-then-generic, skipping nils and duplicates
func rulePair(own, generic *regexp.Regexp) []*regexp.Regexp {
	if own == nil || own == generic {
		if generic == nil {
			return nil
		}
		return []*regexp.Regexp{generic}
	}
	if generic == nil {
		return []*regexp.Regexp{own}
	}
	return []*regexp.Regexp{own, generic}
}

// DatePatterns returns the date patterns to try, most specific first
func (p *Profile) DatePatterns() []*regexp.Regexp {
	return rulePair(p.rules.Date, p.generic.Date)
}

// AmountPatterns returns the amount patterns to try
func (p *Profile) AmountPatterns() []*regexp.Regexp {
	return rulePair(p.rules.Amount, p.generic.Amount)
}

// AccountNumberPatterns returns the account number patterns to try
func (p *Profile) AccountNumberPatterns() []*regexp.Regexp {
	return rulePair(p.rules.AccountNumber, p.generic.AccountNumber)
}

// HolderNamePatterns returns the holder name patterns to try
func (p *Profile) HolderNamePatterns() []*regexp.Regexp {
	return rulePair(p.rules.HolderName, p.generic.HolderName)
}

// PeriodPatterns returns the statement period patterns to try
func (p *Profile) PeriodPatterns() []*regexp.Regexp {
	return rulePair(p.rules.Period, p.generic.Period)
}

// OpeningBalancePatterns returns the opening balance patterns to try
func (p *Profile) OpeningBalancePatterns() []*regexp.Regexp {
	return rulePair(p.rules.OpeningBalance, p.generic.OpeningBalance)
}

// ClosingBalancePatterns returns the closing balance patterns to try
func (p *Profile) ClosingBalancePatterns() []*regexp.Regexp {
	return rulePair(p.rules.ClosingBalance, p.generic.ClosingBalance)
}

// DebitHint returns the profile's debit column hint pattern, if any
func (p *Profile) DebitHint() *regexp.Regexp {
	if p.rules.DebitHint != nil {
		return p.rules.DebitHint
	}
	return p.generic.DebitHint
}

// CreditHint returns the profile's credit column hint pattern, if any
func (p *Profile) CreditHint() *regexp.Regexp {
	if p.rules.CreditHint != nil {
		return p.rules.CreditHint
	}
	return p.generic.CreditHint
}

// IsGeneric reports whether this is the built-in fallback profile
func (p *Profile) IsGeneric() bool {
	return p.Code == GenericCode
}

// Registry resolves bank profiles by institution code or content hint.
// It never fails to resolve: unknown codes fall back to the generic
// profile.
type Registry struct {
	profiles map[string]*Profile
	order    []string
	generic  *Profile
	log      logger.Logger
}

// NewRegistry builds a registry from seeded profile data. The generic
// profile is always present; invalid pattern text is a configuration
// error.
func NewRegistry(seed []*models.BankProfile, log logger.Logger) (*Registry, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	log = log.WithComponent("bankprofile")

	genericSet, err := compileSpec(GenericProfile().Patterns)
	if err != nil {
		return nil, err
	}

	generic := &Profile{
		Code:       GenericCode,
		Name:       GenericProfile().Name,
		DateFormat: GenericProfile().DateFormat,
		rules:      *genericSet,
		generic:    genericSet,
	}

	r := &Registry{
		profiles: make(map[string]*Profile),
		generic:  generic,
		log:      log,
	}

	for _, bp := range seed {
		if !bp.IsActive {
			continue
		}
		code := strings.ToLower(strings.TrimSpace(bp.Code))
		if code == "" || code == GenericCode {
			continue
		}

		set, err := compileSpec(bp.Patterns)
		if err != nil {
			return nil, err.WithContext("bank_code", bp.Code)
		}

		r.profiles[code] = &Profile{
			Code:           code,
			Name:           bp.Name,
			DateFormat:     bp.DateFormat,
			detectKeywords: bp.DetectKeywords,
			rules:          *set,
			generic:        genericSet,
		}
		r.order = append(r.order, code)
	}

	log.WithField("profiles", len(r.profiles)).Debug("Bank profile registry built")
	return r, nil
}

// Resolve returns the profile for a bank code, or the generic profile
// when the code is unknown or empty. It always returns a usable profile.
func (r *Registry) Resolve(codeOrHint string) *Profile {
	code := strings.ToLower(strings.TrimSpace(codeOrHint))
	if p, ok := r.profiles[code]; ok {
		return p
	}
	return r.generic
}

// Detect scans statement text for institution keywords and returns the
// matching profile, falling back to generic. Profiles are checked in
// seed order so detection is deterministic.
func (r *Registry) Detect(text string) *Profile {
	lower := strings.ToLower(text)
	for _, code := range r.order {
		p := r.profiles[code]
		for _, kw := range p.detectKeywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return p
			}
		}
	}
	return r.generic
}

// Generic returns the built-in fallback profile
func (r *Registry) Generic() *Profile {
	return r.generic
}

// Codes returns the registered institution codes in seed order
func (r *Registry) Codes() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func compileSpec(spec models.PatternSpec) (*PatternSet, *errors.ProcessorError) {
	set := &PatternSet{}

	compile := func(role, pattern string, dst **regexp.Regexp) *errors.ProcessorError {
		if pattern == "" {
			return nil
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return errors.ConfigurationError(errors.CodeInvalidConfig, "pattern."+role, pattern)
		}
		*dst = re
		return nil
	}

	fields := []struct {
		role    string
		pattern string
		dst     **regexp.Regexp
	}{
		{"date", spec.Date, &set.Date},
		{"amount", spec.Amount, &set.Amount},
		{"account_number", spec.AccountNumber, &set.AccountNumber},
		{"holder_name", spec.HolderName, &set.HolderName},
		{"period", spec.Period, &set.Period},
		{"opening_balance", spec.OpeningBalance, &set.OpeningBalance},
		{"closing_balance", spec.ClosingBalance, &set.ClosingBalance},
		{"debit_hint", spec.DebitHint, &set.DebitHint},
		{"credit_hint", spec.CreditHint, &set.CreditHint},
	}

	for _, f := range fields {
		if err := compile(f.role, f.pattern, f.dst); err != nil {
			return nil, err
		}
	}

	return set, nil
}
