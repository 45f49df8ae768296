package camera

import "time"

// TimestampLayout is the record timestamp format. Collectors downstream
// parse this exact shape, so it never changes.
const TimestampLayout = "20060102-150405"

// Photo and value kinds reported in result records.
const (
	KindWhite    = "white"
	KindGrowth   = "growth"
	KindNIR      = "nir"
	KindNDVI     = "ndvi"
	KindLeafMask = "leaf_mask"
)

// Result is the record returned by every command. The wire shape is a
// fixed contract: all arrays are always present, the contains_* flags
// mirror whether their arrays hold anything, and the kind/path and
// kind/value/error arrays align index for index.
//
// encountered_error marks degraded-but-usable outcomes (calibration
// that stopped at best-observed settings, an NDVI with no leaf pixels).
// Hard failures are returned as errors instead and produce no record.
type Result struct {
	EncounteredError bool      `json:"encountered_error" example:"false" doc:"True when the command completed with a degraded outcome"`
	ContainsPhoto    bool      `json:"contains_photo" example:"true" doc:"True when photo_kind and photo_path are non-empty"`
	ContainsValue    bool      `json:"contains_value" example:"false" doc:"True when the value arrays are non-empty"`
	PhotoKind        []string  `json:"photo_kind" example:"white" doc:"Kind of each stored photo"`
	PhotoPath        []string  `json:"photo_path" doc:"Storage path of each photo, aligned with photo_kind"`
	ValueKind        []string  `json:"value_kind" example:"ndvi" doc:"Kind of each derived value"`
	Value            []float64 `json:"value" doc:"Derived values, aligned with value_kind"`
	ValueError       []float64 `json:"value_error" doc:"Error bound per value, aligned with value_kind"`
	Timestamp        string    `json:"timestamp" example:"20260314-093000" doc:"Command timestamp, YYYYMMDD-HHMMSS"`
}

// newResult returns an empty record for the given instant. Arrays start
// empty rather than nil so they serialize as [] and never null.
func newResult(now time.Time) *Result {
	return &Result{
		PhotoKind:  []string{},
		PhotoPath:  []string{},
		ValueKind:  []string{},
		Value:      []float64{},
		ValueError: []float64{},
		Timestamp:  now.Format(TimestampLayout),
	}
}

func (r *Result) addPhoto(kind, path string) {
	r.PhotoKind = append(r.PhotoKind, kind)
	r.PhotoPath = append(r.PhotoPath, path)
	r.ContainsPhoto = true
}

func (r *Result) addValue(kind string, value, valueError float64) {
	r.ValueKind = append(r.ValueKind, kind)
	r.Value = append(r.Value, value)
	r.ValueError = append(r.ValueError, valueError)
	r.ContainsValue = true
}
