package pipeline

// BarcodeResult is one accepted symbol in source-image coordinates.
// Positions found on a scaled variant are already mapped back.
type BarcodeResult struct {
	Format      string                   `json:"format"`
	Payload     string                   `json:"payload"`
	Box         struct{ X, Y, W, H int } `json:"box"`
	Points      []struct{ X, Y int }     `json:"points,omitempty"`
	Orientation float64                  `json:"orientation,omitempty"`
	Variant     string                   `json:"variant"`
	Engine      string                   `json:"engine"`
}

// VariantAttempt is one entry in the decode trail. Every engine
// invocation is recorded, including the ones that found nothing, so the
// variant order and each failure reason stay observable.
type VariantAttempt struct {
	Variant    string   `json:"variant"`
	Engine     string   `json:"engine,omitempty"`
	DurationNs int64    `json:"duration_ns"`
	Error      string   `json:"error,omitempty"`
	Skipped    []string `json:"skipped,omitempty"`
}

// ScanResult is the per-image aggregated decode output.
type ScanResult struct {
	Source     string           `json:"source,omitempty"`
	Width      int              `json:"width"`
	Height     int              `json:"height"`
	Barcodes   []BarcodeResult  `json:"barcodes"`
	Attempts   []VariantAttempt `json:"attempts"`
	Processing struct {
		TotalNs int64 `json:"total_ns"`
	} `json:"processing"`
}

// Found reports whether the scan produced at least one accepted symbol.
func (r *ScanResult) Found() bool {
	return r != nil && len(r.Barcodes) > 0
}

// VariantsTried counts distinct variant names in the attempt trail.
func (r *ScanResult) VariantsTried() int {
	if r == nil {
		return 0
	}
	seen := make(map[string]struct{}, len(r.Attempts))
	for _, a := range r.Attempts {
		seen[a.Variant] = struct{}{}
	}
	return len(seen)
}
