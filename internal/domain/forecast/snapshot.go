package forecast

import (
	"encoding/json"
	"time"
)

// WeightSnapshot is a serializable weight bundle with the metadata a
// caller needs to persist and restore an engine across process restarts.
type WeightSnapshot struct {
	ID             string          `json:"id"`
	Engine         string          `json:"engine"` // EnginePLRNN or EngineKalmanFormer
	TrainedAt      time.Time       `json:"trainedAt"`
	SampleCount    int             `json:"sampleCount"`
	ValidationLoss float64         `json:"validationLoss"`
	Config         json.RawMessage `json:"config"`  // config snapshot at save time
	Payload        json.RawMessage `json:"payload"` // engine-specific weight bundle
}
