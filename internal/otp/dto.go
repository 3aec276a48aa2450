package otp

// RequestOTPRequest asks for a verification code to be sent to a phone.
type RequestOTPRequest struct {
	Phone string `json:"phone" validate:"required"`
}

// RequestOTPResponse acknowledges dispatch without echoing the code.
type RequestOTPResponse struct {
	Sent bool `json:"sent"`
}

// VerifyOTPRequest exchanges a received code for a session.
type VerifyOTPRequest struct {
	Phone    string `json:"phone" validate:"required"`
	Code     string `json:"code" validate:"required"`
	FullName string `json:"full_name,omitempty"`
}
