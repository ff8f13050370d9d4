// Package costs holds the per-model cost table and prices unit usage.
//
// Prices are USD per 1,000 units, split into input (prompt) and output
// (completion) rates:
//
//	cost = (promptUnits/1000)*input + (completionUnits/1000)*output
//
// # Lookup
//
// A model is priced by its exact entry, then by the longest configured prefix,
// then by the default entry ("default" unless configured otherwise). The table
// also carries each model's context limit, which the usage estimator uses to
// cap projected completions.
//
// # Usage
//
//	table := costs.NewTable(cfg.Pricing)
//	calc := costs.NewCalculator(table)
//
//	cost := calc.Calculate("gpt-4", 1000, 500)
//	fmt.Printf("$%.4f\n", cost.TotalCost) // $0.0600
//
// # Pricing Updates
//
// UpdatePricing merges new entries under a write lock, so it can be called
// while the calculator is in use.
package costs
