package perr

import (
	"fmt"
	"net/http"
)

const (
	ErrorCodeConflict = "error_conflict"
)

func Conflict(itemType string, id string) ErrorModel {
	e := ErrorModel{
		Instance: reference(),
		Type:     ErrorCodeConflict,
		Title:    "Conflict",
		Status:   http.StatusConflict,
	}
	if id != "" {
		e.Detail = fmt.Sprintf("%s %s already in use.", itemType, id)
	}
	return e
}

func ConflictWithMessage(msg string) ErrorModel {
	return ConflictWithTypeAndMessage(ErrorCodeConflict, msg)
}

func ConflictWithTypeAndMessage(errorType string, msg string) ErrorModel {
	e := ErrorModel{
		Instance: reference(),
		Type:     errorType,
		Title:    "Conflict",
		Status:   http.StatusConflict,
		Detail:   msg,
	}
	return e
}

func IsConflict(err error) bool {
	e, ok := err.(ErrorModel)
	return ok && e.Status == http.StatusConflict
}
