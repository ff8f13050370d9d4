package costs

// Calculator prices unit usage against a Table.
// It is thread-safe and supports hot-reload of pricing through UpdatePricing.
type Calculator struct {
	table *Table
}

// NewCalculator creates a calculator backed by table.
func NewCalculator(table *Table) *Calculator {
	return &Calculator{table: table}
}

// Calculate returns the cost of a call:
//
//	(promptUnits/1000)*input + (completionUnits/1000)*output
//
// Models without pricing use the default entry. When even that is missing the
// cost is zero.
func (c *Calculator) Calculate(model string, promptUnits, completionUnits int) Cost {
	entry, _ := c.table.Lookup(model)

	cost := Cost{
		Model:      model,
		InputCost:  calculateUnitCost(promptUnits, entry.InputCostPer1K),
		OutputCost: calculateUnitCost(completionUnits, entry.OutputCostPer1K),
		Pricing:    entry,
	}
	cost.TotalCost = cost.InputCost + cost.OutputCost
	return cost
}

// UpdatePricing merges entries into the table. Existing models not named in
// entries keep their pricing.
func (c *Calculator) UpdatePricing(entries map[string]Entry) error {
	return c.table.Merge(entries)
}

// Table returns the underlying cost table.
func (c *Calculator) Table() *Table {
	return c.table
}

// calculateUnitCost calculates the cost for a given number of units.
// costPer1K is the cost per 1000 units in USD.
func calculateUnitCost(units int, costPer1K float64) float64 {
	if units <= 0 {
		return 0.0
	}

	return (float64(units) / 1000.0) * costPer1K
}
