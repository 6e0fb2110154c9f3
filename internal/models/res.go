package models

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	Message   string `json:"message"`
	Code      string `json:"code"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type MessageBody struct {
	Message string `json:"message"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

func ErrorResponse(message, code, reason string) ErrorBody {
	return ErrorBody{
		Message: message,
		Code:    code,
		Reason:  reason,
	}
}

func MessageResponse(message string) MessageBody {
	return MessageBody{Message: message}
}
