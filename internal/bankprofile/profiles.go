package bankprofile

import (
	"time"

	"github.com/google/uuid"

	"bank-statement-processor/internal/models"
)

// GenericCode is the code of the built-in fallback profile
const GenericCode = "generic"

// Generic pattern text. Permissive by design: OCR output is noisy and
// line structure is unreliable, so these match tokens anywhere in a line.
const (
	genericDatePattern   = `\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`
	genericAmountPattern = `[-+]?\(?[$£€]?\d[\d,]*\.\d{2}\)?-?`

	genericAccountPattern = `(?i)account\s*(?:no|number|#)\.?\s*:?\s*([\dXx*-]{4,})`
	genericHolderPattern  = `(?:Account Holder|Customer Name|Name)\s*:\s*([A-Z][A-Za-z .'-]+)`
	genericPeriodPattern  = `(?i)statement\s*period\s*:?\s*(.+?\bto\b.+?\d{4})`
	// Parentheses stay inside the capture so the negative convention
	// survives into amount normalization.
	genericOpeningPattern = `(?i)opening\s*balance\s*:?\s*(\(?[$£€]?-?[\d,]+\.\d{2}\)?)`
	genericClosingPattern = `(?i)closing\s*balance\s*:?\s*(\(?[$£€]?-?[\d,]+\.\d{2}\)?)`
)

// ukDatePattern matches textual day-month dates used by UK institutions,
// e.g. "15 Jan 2024".
const ukDatePattern = `(?i)\b\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{2,4}\b`

// GenericProfile returns the built-in fallback profile data. It is never
// persisted; the registry always carries it.
func GenericProfile() *models.BankProfile {
	return &models.BankProfile{
		Code:       GenericCode,
		Name:       "Generic",
		DateFormat: "01/02/2006",
		Patterns: models.PatternSpec{
			Date:           genericDatePattern,
			Amount:         genericAmountPattern,
			AccountNumber:  genericAccountPattern,
			HolderName:     genericHolderPattern,
			Period:         genericPeriodPattern,
			OpeningBalance: genericOpeningPattern,
			ClosingBalance: genericClosingPattern,
		},
		IsActive: true,
	}
}

// DefaultProfiles returns the seeded institution profiles. This is the
// administrative reference data loaded during environment setup; the
// pipeline never writes to it.
func DefaultProfiles() []*models.BankProfile {
	now := time.Now().UTC()

	profile := func(code, name, dateFormat string, patterns models.PatternSpec, keywords ...string) *models.BankProfile {
		return &models.BankProfile{
			ID:             uuid.New(),
			Code:           code,
			Name:           name,
			DateFormat:     dateFormat,
			Patterns:       patterns,
			DetectKeywords: keywords,
			IsActive:       true,
			CreatedAt:      now,
		}
	}

	return []*models.BankProfile{
		profile("chase", "Chase Bank", "01/02/2006",
			models.PatternSpec{},
			"chase", "jpmorgan"),

		profile("boa", "Bank of America", "01/02/2006",
			models.PatternSpec{},
			"bank of america"),

		profile("wellsfargo", "Wells Fargo", "01/02/2006",
			models.PatternSpec{},
			"wells fargo"),

		profile("hsbc", "HSBC", "02 Jan 2006",
			models.PatternSpec{
				Date:       ukDatePattern,
				DebitHint:  `\bDR\b`,
				CreditHint: `\bCR\b`,
			},
			"hsbc"),

		profile("barclays", "Barclays", "02/01/2006",
			models.PatternSpec{},
			"barclays"),

		profile("metro", "Metro Bank", "02 Jan 2006",
			models.PatternSpec{
				Date: ukDatePattern,
			},
			"metro bank", "metrobankonline"),
	}
}
