package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/ngramlm/internal/lm"
)

func writeBadRequest(c *echo.Context, msg, param string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, param, "")
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg, "model", "model_not_found")
}

func writeError(c *echo.Context, status int, errType, msg, param, code string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Code:    code,
			Param:   param,
		},
	})
}

// writeServiceError maps a scoring failure to its HTTP status.
func writeServiceError(c *echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return writeBadRequest(c, err.Error(), "")
	case errors.Is(err, ErrModelNotFound):
		return writeNotFound(c, err.Error())
	case errors.Is(err, lm.ErrUnsupportedVersion):
		return writeError(c, http.StatusUnprocessableEntity, "model_error", err.Error(), "model", "unsupported_version")
	case errors.Is(err, lm.ErrCorruptTrie), errors.Is(err, lm.ErrCorruptVocabulary):
		return writeError(c, http.StatusInternalServerError, "model_error", err.Error(), "model", "corrupt_model")
	default:
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

func newScoreID() string {
	return "score_" + uuid.NewString()
}

func newBatchID() string {
	return "batch_" + uuid.NewString()
}
