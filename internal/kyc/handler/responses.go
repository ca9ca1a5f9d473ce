package handler

// CallbackResponse is the only body the identity provider ever receives.
type CallbackResponse struct {
	Success bool `json:"success"`
}

type FormResponse struct {
	FormURL string `json:"form_url"`
}

type ResultResponse struct {
	TxURL string `json:"tx_url"`
}

type PoolStatsResponse struct {
	Total     int `json:"total"`
	Available int `json:"available"`
}

type RegistrationResponse struct {
	Eligible bool   `json:"eligible"`
	TxURL    string `json:"tx_url,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
