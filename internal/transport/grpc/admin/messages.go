package admingrpc

// Participant is one slot of a transaction as carried on the wire.
type Participant struct {
	FID   string `json:"fid"`
	State string `json:"state"`
}

// Record is a log record as carried on the wire.
type Record struct {
	ID           string        `json:"id"`
	Participants []Participant `json:"participants"`
	Payload      []byte        `json:"payload,omitempty"`
	Placeholder  bool          `json:"placeholder"`
	Stable       bool          `json:"stable"`
}

type GetLogInfoRequest struct{}

type LogInfo struct {
	NodeID          string `json:"node_id"`
	Backend         string `json:"backend"`
	Records         int64  `json:"records"`
	StableRecords   int64  `json:"stable_records"`
	StableLast      string `json:"stable_last,omitempty"`
	SegmentUsed     uint64 `json:"segment_used"`
	SegmentCapacity uint64 `json:"segment_capacity"`
	SegmentObjects  int64  `json:"segment_objects"`
	UptimeMillis    int64  `json:"uptime_ms"`
}

type GetLogInfoResponse struct {
	Info LogInfo `json:"info"`
}

type FindRecordRequest struct {
	ID string `json:"id"`
}

type FindRecordResponse struct {
	Found  bool    `json:"found"`
	Record *Record `json:"record,omitempty"`
}

type ListRecordsRequest struct{}

type ListRecordsResponse struct {
	Records []Record `json:"records"`
}

type GetRedoPlanRequest struct {
	Participant string `json:"participant"`
}

type GetRedoPlanResponse struct {
	Records []Record `json:"records"`
}

type UpdateRecordRequest struct {
	Op     string `json:"op"`
	Record Record `json:"record"`
}

type UpdateRecordResponse struct{}

// PruneRecordsRequest prunes through ID, or the leading stable run of the
// log when Stable is set.
type PruneRecordsRequest struct {
	ID     string `json:"id,omitempty"`
	Stable bool   `json:"stable,omitempty"`
}

type PruneRecordsResponse struct {
	Removed int64  `json:"removed"`
	Through string `json:"through,omitempty"`
}
