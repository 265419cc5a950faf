package federation

import "encoding/json"

// CostFunc estimates the cost of a payload produced by a backend.
type CostFunc func(desc *Descriptor, payload any) float64

// QualityFunc scores a result. The default ignores the payload entirely.
type QualityFunc func(payload any, fallback bool) float64

// TokenEstimateCost approximates tokens as a quarter of the JSON length and
// multiplies by the backend's cost rate.
func TokenEstimateCost(desc *Descriptor, payload any) float64 {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0
	}
	tokens := float64(len(data)) / 4
	return tokens * desc.CostPerUnit()
}

// FixedQuality returns 0.95 for primary results and 0.8 for fallback results.
func FixedQuality(_ any, fallback bool) float64 {
	if fallback {
		return 0.8
	}
	return 0.95
}
