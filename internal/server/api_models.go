package server

// ScanRequest is the payload for starting a scan.
type ScanRequest struct {
	URL string `json:"url" example:"https://example.com"`
}

// ErrorResponse is the uniform error payload returned by the API. RequestID
// and Timestamp are set on scan failures for log correlation; RetryAfter is
// set when admission rejected the request.
type ErrorResponse struct {
	Error      string `json:"error" example:"URL is required"`
	RequestID  string `json:"requestId,omitempty" example:"9f1c97d4-58a0-4f8e-b02e-57a813f1e0ab"`
	Timestamp  string `json:"timestamp,omitempty" example:"2026-01-02T15:04:05Z"`
	RetryAfter int    `json:"retryAfter,omitempty" example:"42"`
}

// UsageResponse hints at correct usage on unsupported methods.
type UsageResponse struct {
	Error string `json:"error" example:"Use POST method with { \"url\": \"...\" }"`
}
