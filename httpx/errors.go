package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/mbolis/surveyer/log"
	"github.com/mbolis/surveyer/model"
	"github.com/tidwall/gjson"
)

// APIError is a non-2xx reply of the survey API.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
	// Forced is set when the 401 triggered a forced logout.
	Forced bool
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// messageFrom extracts the server message from an error body.
func messageFrom(body []byte) string {
	if gjson.ValidBytes(body) {
		for _, field := range []string{"message", "error"} {
			if v := gjson.GetBytes(body, field); v.Type == gjson.String && v.Str != "" {
				return v.Str
			}
		}
		return ""
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 || strings.HasPrefix(msg, "<") {
		// html error pages are not messages
		return ""
	}
	return msg
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// StatusOf is the upstream status behind err, or 0 for transport errors.
func StatusOf(err error) int {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Status
	}
	return 0
}

// ServerMessage is the upstream message behind err, if any.
func ServerMessage(err error) string {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Message
	}
	return ""
}

type ErrorBody struct {
	Error string `json:"error"`
}

// WriteError sends a JSON error reply.
func WriteError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorBody{Error: msg})
}

// Will log an error, and send a JSON response with status 500 and default text
func LogInternalError(w http.ResponseWriter, r *http.Request, code string, err error) {
	log.Errorf("%s: %s", code, err)
	WriteError(w, r, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

// Will log a debug message, and send a JSON response with status 404
func LogNotFound(w http.ResponseWriter, r *http.Request, code string, id any) {
	log.Debugf("%s: not found (%v)", code, id)
	WriteError(w, r, http.StatusNotFound, http.StatusText(http.StatusNotFound))
}

// Will log an error code at the given level, and send
// a JSON response with status and default text
func LogStatus(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string) {
	log.Log(level, code)
	WriteError(w, r, status, http.StatusText(status))
}

// Will log an error code and message at the given level,
// and send a JSON response with the given status and formatted message
func LogStatusMsg(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string, msg string, args ...any) {
	errMsg := fmt.Sprintf(msg, args...)
	log.Log(level, code+":", errMsg)
	WriteError(w, r, status, errMsg)
}

// LogFailure replies to a failed page operation:
//   - validation errors: 400 with the validation message
//   - 401/403/404/409 from the API: same status, server message or fallback
//   - anything else (5xx, network): 502 with fallback
func LogFailure(w http.ResponseWriter, r *http.Request, code string, err error, fallback string) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, code, "%s", verr.Msg)
		return
	}

	apiErr, ok := AsAPIError(err)
	if !ok {
		log.Warnf("%s: %s", code, err)
		WriteError(w, r, http.StatusBadGateway, fallback)
		return
	}

	msg := apiErr.Message
	if msg == "" {
		msg = fallback
	}
	switch apiErr.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict:
		LogStatusMsg(w, r, apiErr.Status, log.DebugLevel, code, "%s", msg)
	default:
		log.Warnf("%s: %s", code, err)
		WriteError(w, r, http.StatusBadGateway, fallback)
	}
}
