package domain

// DataField names one enrichment category a task may still be missing.
type DataField string

const (
	FieldWalletHoldings   DataField = "wallet-holdings"
	FieldPendingTransfers DataField = "pending-transfers"
	FieldRelayProfile     DataField = "relay-profile"
	FieldCommunityPosts   DataField = "community-posts"
)

// KnownDataFields lists every category the orchestrator can enrich.
var KnownDataFields = []DataField{
	FieldWalletHoldings,
	FieldPendingTransfers,
	FieldRelayProfile,
	FieldCommunityPosts,
}

// EnrichmentState distinguishes "absent" vs "empty" vs "error" explicitly
// instead of ad hoc nil/length checks on loosely typed payloads.
type EnrichmentState string

const (
	EnrichmentAbsent EnrichmentState = "absent" // source produced no response
	EnrichmentEmpty  EnrichmentState = "empty"  // source responded, nothing there
	EnrichmentOK     EnrichmentState = "ok"     // usable data arrived
	EnrichmentError  EnrichmentState = "error"  // source failed or timed out
)

// EnrichmentResult is the tagged per-field outcome of one enrichment pass.
type EnrichmentResult struct {
	Field   DataField       `json:"field"`
	State   EnrichmentState `json:"state"`
	Records []JSONB         `json:"records,omitempty"`
	Err     string          `json:"error,omitempty"`
}

// Usable reports whether the result counts as progress: only a non-empty
// payload does. An empty-but-present result from a slow source does not.
func (r EnrichmentResult) Usable() bool {
	return r.State == EnrichmentOK && len(r.Records) > 0
}

// BalanceEntry is one correlated response from the balance-query collaborator.
// A missing response for an address yields Status "error", never a hard failure.
type BalanceEntry struct {
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
	Status  string  `json:"status"`
	Error   string  `json:"error,omitempty"`
}
