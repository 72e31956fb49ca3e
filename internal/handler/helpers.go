package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/tabletrack/api/internal/service"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeValid decodes the body into v and runs struct validation.
func decodeValid(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return validate.Struct(v)
}

// isValidationError maps the service sentinels that mean "bad request,
// nothing happened" to 400s.
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrNoTable) ||
		errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrEmptySelection) ||
		errors.Is(err, service.ErrSplitItemNotFound) ||
		errors.Is(err, service.ErrSplitQuantity) ||
		errors.Is(err, service.ErrFullSplit)
}
