package dto

// Response envoltorio de respuestas exitosas.
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ErrorBody código de taxonomía y mensaje específico.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// ListResponse listados sin paginar (los volúmenes por usuario y evento son acotados).
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}
