package errors

import (
	"encoding/json"
	"net/http"
)

// Response is the JSON body of every error response.
type Response struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPStatus maps an error to the status code callers see.
func HTTPStatus(err error) int {
	switch GetType(err) {
	case ErrTypeAuth:
		return http.StatusUnauthorized
	case ErrTypeForbidden:
		return http.StatusForbidden
	case ErrTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrTypeConfiguration, ErrTypeValidation:
		return http.StatusBadRequest
	case ErrTypeNotFound:
		return http.StatusNotFound
	case ErrTypeConflict:
		return http.StatusConflict
	case ErrTypeTimeout:
		return http.StatusGatewayTimeout
	case ErrTypeConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ToResponse builds the public body for err. Internal details stay out of it.
func ToResponse(err error) Response {
	appErr, ok := As(err)
	if !ok {
		return Response{Code: CodeInternal, Message: "internal server error"}
	}

	switch appErr.Type {
	case ErrTypeInternal, ErrTypeConnection, ErrTypeTimeout, ErrTypeCache, ErrTypeDelivery:
		return Response{Code: CodeInternal, Message: "internal server error"}
	}
	return Response{Code: appErr.Code, Message: appErr.Message}
}

// WriteHTTP writes err as a JSON error response.
func WriteHTTP(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(err))
	json.NewEncoder(w).Encode(ToResponse(err))
}
