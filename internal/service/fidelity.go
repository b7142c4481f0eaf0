package service

import "math"

// FidelitySummary is the scored result of a fidelity checklist.
type FidelitySummary struct {
	Completed     int  `json:"completedItems"`
	Total         int  `json:"totalItems"`
	FidelityScore int  `json:"fidelityScore"`
	AllComplete   bool `json:"allComplete"`
}

// Fidelity reduces a set of checklist answers to a completion percentage.
// Only true values count; the denominator is the canonical template size.
// A zero total yields a zero score rather than dividing by zero. The
// percentage rounds half up.
func Fidelity(checked map[string]bool, total int) FidelitySummary {
	completed := 0
	for _, ok := range checked {
		if ok {
			completed++
		}
	}
	summary := FidelitySummary{Completed: completed, Total: total, AllComplete: completed == total}
	if total > 0 {
		summary.FidelityScore = int(math.Floor(float64(completed)/float64(total)*100 + 0.5))
	}
	return summary
}
