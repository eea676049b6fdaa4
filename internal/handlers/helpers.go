package handlers

// Response is the one JSON shape used for status and error bodies
// across every flow. Validation failures additionally carry the
// per-field breakdown in Errors.
type Response struct {
	Status  string       `json:"Status"`
	Message string       `json:"Message,omitempty"`
	Errors  []FieldError `json:"Errors,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func errorBody(message string) Response {
	return Response{Status: "Error", Message: message}
}

func successBody(message string) Response {
	return Response{Status: "Success", Message: message}
}
