package snapp

// TokenInfo is the credential issued after a successful OTP login.
type TokenInfo struct {
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
}

// Voucher is one active voucher as reported by the upstream listing endpoint.
type Voucher struct {
	Title       string `json:"title"`
	Code        string `json:"customer_code"`
	Description string `json:"description"`
	ExpiredAt   string `json:"expired_at"`
}
