package evaluation

// Dimension describes one of the fixed evaluation axes a venture idea is
// scored on. The set, the weights, and the critical subset are part of the
// scoring contract and must not change between runs.
type Dimension struct {
	Key      string
	Name     string
	Criteria string
	Weight   float64
	// Critical dimensions gate the recommendation tier individually,
	// regardless of the weighted overall score.
	Critical bool
}

// Dimensions lists all eleven evaluation axes in canonical order.
var Dimensions = []Dimension{
	{
		Key:      "market_potential",
		Name:     "Market Potential",
		Criteria: "Addressable market size, growth trajectory, monetization capacity, and geographic expansion opportunities.",
		Weight:   1.2,
		Critical: true,
	},
	{
		Key:      "differentiated_approach",
		Name:     "Differentiated Approach and Positioning",
		Criteria: "Uniqueness of the approach versus existing solutions and clarity of market positioning.",
		Weight:   1.0,
	},
	{
		Key:      "competitive_advantage",
		Name:     "Sustainable Competitive Advantage",
		Criteria: "Whether the advantage holds for 2-3 years: barriers to imitation, network effects, proprietary technology, switching costs.",
		Weight:   1.3,
	},
	{
		Key:      "differentiating_element",
		Name:     "Differentiating Element",
		Criteria: "The core tangible feature or capability that sets the idea apart and is hard to replicate.",
		Weight:   1.1,
	},
	{
		Key:      "technical_feasibility",
		Name:     "Technical Feasibility",
		Criteria: "Technical viability and implementation complexity with available resources and expertise.",
		Weight:   1.0,
		Critical: true,
	},
	{
		Key:      "rapid_prototype",
		Name:     "Affordable & Rapid Prototype Validation",
		Criteria: "Whether an MVP can be prototyped and validated in 4-6 weeks at reasonable cost.",
		Weight:   1.4,
		Critical: true,
	},
	{
		Key:      "ai_enablement",
		Name:     "AI Enablement for Venture Studio",
		Criteria: "How AI can be leveraged in building, scaling, and improving the product.",
		Weight:   1.2,
	},
	{
		Key:      "barrier_to_entry",
		Name:     "Barrier to Entry for Competitors",
		Criteria: "Difficulty for competitors to replicate: technical complexity, data advantages, regulatory hurdles, capital requirements.",
		Weight:   1.1,
	},
	{
		Key:      "scalability",
		Name:     "Scalable Tech & Business Model",
		Criteria: "Scalability of platform and business model; revenue growth without proportional cost growth.",
		Weight:   1.3,
		Critical: true,
	},
	{
		Key:      "product_focused",
		Name:     "Product-Focused Output",
		Criteria: "Product business versus service business: repeatable, standardized, deliverable without linear headcount growth.",
		Weight:   0.9,
	},
	{
		Key:      "subscription_model",
		Name:     "Subscription-Based Platform Access",
		Criteria: "Potential for recurring subscription revenue, retention, and revenue predictability.",
		Weight:   1.0,
	},
}

// DimensionByKey returns the dimension definition for a key.
func DimensionByKey(key string) (Dimension, bool) {
	for _, d := range Dimensions {
		if d.Key == key {
			return d, true
		}
	}
	return Dimension{}, false
}

// CriticalKeys returns the keys of the critical subset in canonical order.
func CriticalKeys() []string {
	keys := make([]string, 0, 4)
	for _, d := range Dimensions {
		if d.Critical {
			keys = append(keys, d.Key)
		}
	}
	return keys
}
