package http

// ErrorBody is the JSON shape of every non-2xx response.
type ErrorBody struct {
	Detail string                 `json:"detail"`
	Code   string                 `json:"code,omitempty"`
	Params map[string]interface{} `json:"params,omitempty"`
	Errors []ValidationError      `json:"errors,omitempty"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"ticker"`
	Message string                 `json:"message,omitempty" example:"ticker is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}
