package domain

import "sort"

type Step struct {
	Number        int    `json:"step_number"`
	Instruction   string `json:"instruction"`
	ExpectedState string `json:"expected_state,omitempty"`
}

type Recipe struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Steps []Step `json:"steps"`
}

// OrderSteps returns the steps sorted by Number. Steps sharing a number keep
// their relative order.
func OrderSteps(steps []Step) []Step {
	ordered := make([]Step, len(steps))
	copy(ordered, steps)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Number < ordered[j].Number
	})
	return ordered
}
