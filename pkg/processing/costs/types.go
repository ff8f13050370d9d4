package costs

// Entry is the pricing of one model in USD per 1,000 units.
type Entry struct {
	// Model is the model name or prefix this entry applies to.
	Model string `json:"model"`

	// InputCostPer1K is the cost per 1,000 prompt units.
	InputCostPer1K float64 `json:"input_cost_per_1k"`

	// OutputCostPer1K is the cost per 1,000 completion units.
	OutputCostPer1K float64 `json:"output_cost_per_1k"`

	// MaxUnits is the model's context limit, or 0 when unknown.
	MaxUnits int `json:"max_units,omitempty"`
}

// Cost contains a cost breakdown in USD.
type Cost struct {
	// Model is the model that was priced.
	Model string

	// InputCost is the cost of the prompt units.
	InputCost float64

	// OutputCost is the cost of the completion units.
	OutputCost float64

	// TotalCost is InputCost + OutputCost.
	TotalCost float64

	// Pricing is the table entry that was applied. Its Model field names the
	// matched entry, which may be a prefix or the default.
	Pricing Entry
}
