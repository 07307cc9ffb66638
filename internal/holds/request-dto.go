package holds

// HoldRequest targets one seat of an occurrence
type HoldRequest struct {
	OccurrenceID string `json:"occurrence_id" binding:"required,uuid"`
	Seat         string `json:"seat" binding:"required"`
	TTLSeconds   int    `json:"ttl_seconds" binding:"omitempty,min=1"`
}

// MergeRequest carries the guest token whose holds move to the caller
type MergeRequest struct {
	GuestToken string `json:"guest_token" binding:"required"`
}
