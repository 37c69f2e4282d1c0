package categorize

// DefaultTree builds the seeded category tree. Like bank profiles, this
// is reference data populated during environment setup; the pipeline only
// reads it.
func DefaultTree() (*Tree, error) {
	t := NewTree()

	type child struct {
		name     string
		keywords []string
	}
	type root struct {
		name     string
		keywords []string
		children []child
	}

	seed := []root{
		{
			name:     "Food & Dining",
			keywords: []string{"restaurant", "dining", "food", "eatery"},
			children: []child{
				{"Coffee Shops", []string{"starbucks", "coffee", "espresso", "dunkin", "cafe"}},
				{"Restaurants", []string{"grill", "pizza", "sushi", "mcdonald", "chipotle", "diner", "bistro"}},
				{"Groceries", []string{"grocery", "supermarket", "whole foods", "trader joe", "safeway", "kroger", "aldi"}},
			},
		},
		{
			name:     "Shopping",
			keywords: []string{"purchase", "store"},
			children: []child{
				{"Online Shopping", []string{"amazon", "ebay", "etsy", "aliexpress"}},
				{"Retail", []string{"walmart", "target", "costco", "best buy", "ikea"}},
			},
		},
		{
			name:     "Transportation",
			keywords: []string{"parking", "toll"},
			children: []child{
				{"Gas & Fuel", []string{"shell", "chevron", "exxon", "bp ", "fuel", "gas station"}},
				{"Rideshare", []string{"uber", "lyft", "taxi"}},
				{"Public Transit", []string{"transit", "subway fare", "bus fare", "rail"}},
			},
		},
		{
			name:     "Bills & Utilities",
			keywords: []string{"utility", "bill payment"},
			children: []child{
				{"Utilities", []string{"electric", "water dept", "power co", "energy"}},
				{"Phone & Internet", []string{"verizon", "at&t", "t-mobile", "comcast", "xfinity", "internet"}},
			},
		},
		{
			name:     "Entertainment",
			keywords: []string{"cinema", "theatre", "concert"},
			children: []child{
				{"Streaming", []string{"netflix", "spotify", "hulu", "disney+", "youtube premium"}},
			},
		},
		{
			name:     "Health & Fitness",
			keywords: []string{"medical", "doctor", "dental", "clinic"},
			children: []child{
				{"Pharmacy", []string{"cvs", "walgreens", "pharmacy", "rite aid"}},
				{"Gym", []string{"gym", "fitness", "planet fitness", "yoga"}},
			},
		},
		{
			name:     "Housing",
			keywords: []string{"rent", "mortgage", "landlord", "hoa"},
		},
		{
			name:     "Income",
			keywords: []string{"deposit"},
			children: []child{
				{"Salary", []string{"payroll", "salary", "direct deposit", "wages"}},
				{"Interest", []string{"interest paid", "interest earned", "dividend"}},
			},
		},
		{
			name:     "Transfers",
			keywords: []string{"transfer", "zelle", "venmo", "paypal", "wire"},
		},
		{
			name:     "Fees & Charges",
			keywords: []string{"fee", "service charge", "overdraft", "atm withdrawal"},
		},
	}

	for _, r := range seed {
		parent, err := t.AddRoot(r.name, r.keywords)
		if err != nil {
			return nil, err
		}
		for _, c := range r.children {
			if _, err := t.AddChild(parent.ID, c.name, c.keywords); err != nil {
				return nil, err
			}
		}
	}

	return t, nil
}
