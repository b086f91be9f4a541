package model

import (
	"encoding/json"
	"math"
)

// jsonLoss encodes NaN and infinite losses as null, which encoding/json otherwise rejects.
type jsonLoss float64

// MarshalJSON implements the json.Marshaler interface.
func (l jsonLoss) MarshalJSON() ([]byte, error) {
	f := float64(l)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON implements the json.Unmarshaler interface. null decodes to NaN.
func (l *jsonLoss) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*l = jsonLoss(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*l = jsonLoss(f)
	return nil
}

type metricEntryJSON struct {
	Iteration int      `json:"iteration"`
	Loss      jsonLoss `json:"loss"`
	Metric    jsonLoss `json:"metric"`
}

// MarshalJSON implements the json.Marshaler interface.
func (m MetricEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(metricEntryJSON{
		Iteration: m.Iteration,
		Loss:      jsonLoss(m.Loss),
		Metric:    jsonLoss(m.Metric),
	})
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (m *MetricEntry) UnmarshalJSON(b []byte) error {
	var v metricEntryJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*m = MetricEntry{Iteration: v.Iteration, Loss: float64(v.Loss), Metric: float64(v.Metric)}
	return nil
}

// MarshalJSON implements the json.Marshaler interface. Non-finite losses and metrics are
// written as null.
func (r ConfigurationResult) MarshalJSON() ([]byte, error) {
	type plain ConfigurationResult
	var losses []jsonLoss
	if r.LossHistory != nil {
		losses = make([]jsonLoss, len(r.LossHistory))
		for i, l := range r.LossHistory {
			losses[i] = jsonLoss(l)
		}
	}
	return json.Marshal(struct {
		plain
		LossHistory []jsonLoss `json:"loss_history"`
		FinalLoss   jsonLoss   `json:"final_loss"`
		FinalMetric jsonLoss   `json:"final_metric"`
	}{
		plain:       plain(r),
		LossHistory: losses,
		FinalLoss:   jsonLoss(r.FinalLoss),
		FinalMetric: jsonLoss(r.FinalMetric),
	})
}
