package event

// ReplayRequest holds the parameters for a replay or /api/logs read:
// return events with Seq > SinceSeq, oldest first, up to Max.
type ReplayRequest struct {
	SinceSeq int64 `json:"since_seq"`
	Max      int   `json:"max"`
}

// Page is a cursor-paginated page of log events for the HTTP read surface.
// NextSinceSeq is the cursor to pass as since_seq on the next request.
type Page struct {
	Events       []Event `json:"events"`
	NextSinceSeq int64   `json:"next_since_seq"`
	HasMore      bool    `json:"has_more"`
}
