package model

// QueryRequest represents a natural-language query request
type QueryRequest struct {
	Query   string   `json:"query" binding:"required"`
	UserLng *float64 `json:"user_lng,omitempty"`
	UserLat *float64 `json:"user_lat,omitempty"`
}

// ReferencePoint returns the user's location when both coordinates are present and valid
func (r QueryRequest) ReferencePoint() (*GeoPoint, bool) {
	if r.UserLng == nil || r.UserLat == nil {
		return nil, false
	}
	p := GeoPoint{Lng: *r.UserLng, Lat: *r.UserLat}
	if !p.Valid() {
		return nil, false
	}
	return &p, true
}

// QueryResponse represents the natural-language query response.
// Failures are reported in Success/Error, never as a transport error.
type QueryResponse struct {
	Success        bool             `json:"success"`
	OriginalQuery  string           `json:"original_query"`
	ParsedQuery    *ParsedIntent    `json:"parsed_query,omitempty"`
	Interpretation string           `json:"interpretation"`
	ElderlyResults []RankedFacility `json:"elderly_results"`
	HealthResults  []RankedFacility `json:"health_results"`
	TotalCount     int              `json:"total_count"`
	Fallback       bool             `json:"fallback"`
	Error          string           `json:"error,omitempty"`
	ErrorKind      string           `json:"error_kind,omitempty"`
	Took           int64            `json:"took_ms"` // Response time in milliseconds
}

// StatusResponse reports completion-service availability
type StatusResponse struct {
	Status         string   `json:"status"` // online / offline
	Available      bool     `json:"available"`
	Models         []string `json:"models"`
	CurrentModel   string   `json:"current_model"`
	ModelAvailable bool     `json:"model_available"`
	BreakerState   string   `json:"breaker_state,omitempty"` // closed / half-open / open, when a breaker guards the client
}

// ExamplesResponse lists sample queries for the UI
type ExamplesResponse struct {
	Examples []string `json:"examples"`
}
