package domain

type BalanceSummary struct {
	ItemTotal       float64
	AdjustmentTotal float64
	Balance         float64
}

// IsNegative flags an order whose advances and discounts exceed what is owed.
func (b BalanceSummary) IsNegative() bool {
	return b.Balance < 0
}

func (o *Order) ItemTotal() float64 {
	total := 0.0
	for _, item := range o.Items {
		total += item.LineTotal()
	}
	return total
}

// AdjustmentTotal is charges minus discounts minus advances.
func (o *Order) AdjustmentTotal() float64 {
	total := 0.0
	for _, adj := range o.Adjustments {
		total += adj.SignedAmount()
	}
	return total
}

func (o *Order) Balance() float64 {
	return o.ItemTotal() + o.AdjustmentTotal()
}

func (o *Order) Summarize() BalanceSummary {
	itemTotal := o.ItemTotal()
	adjustmentTotal := o.AdjustmentTotal()
	return BalanceSummary{
		ItemTotal:       itemTotal,
		AdjustmentTotal: adjustmentTotal,
		Balance:         itemTotal + adjustmentTotal,
	}
}
