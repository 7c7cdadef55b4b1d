package myhttp

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/MarcGrol/shopsaga/lib/myerrors"
	"github.com/MarcGrol/shopsaga/lib/mylog"
)

type ResponseWriter interface {
	WriteError(c context.Context, w http.ResponseWriter, displayMessage string, err error)
	Write(c context.Context, w http.ResponseWriter, httpStatus int, result any)
}

// Response is the envelope of every answer of the api.
type Response struct {
	IsSuccess      bool     `json:"isSuccess"`
	Result         any      `json:"result,omitempty"`
	DisplayMessage string   `json:"displayMessage,omitempty"`
	ErrorMessages  []string `json:"errorMessages,omitempty"`
}

func NewWriter(logger mylog.Logger) ResponseWriter {
	return &responseWriter{
		logger: logger,
	}
}

type responseWriter struct {
	logger mylog.Logger
}

func (rw responseWriter) WriteError(c context.Context, w http.ResponseWriter, displayMessage string, err error) {
	httpStatus := myerrors.GetHTTPStatus(err)
	rw.logger.Log(c, "", mylog.SeverityWarn, "Error response: http-status:%d, error-msg:%s", httpStatus, err)

	messages := []string{}
	for e := err; e != nil; e = errors.Unwrap(e) {
		messages = append(messages, e.Error())
	}

	rw.write(w, httpStatus, Response{
		IsSuccess:      false,
		DisplayMessage: displayMessage,
		ErrorMessages:  messages[len(messages)-1:],
	})
}

func (rw responseWriter) Write(c context.Context, w http.ResponseWriter, httpStatus int, result any) {
	rw.logger.Log(c, "", mylog.SeverityInfo, "Success response: http-status:%d", httpStatus)
	rw.write(w, httpStatus, Response{
		IsSuccess: true,
		Result:    result,
	})
}

func (rw responseWriter) write(w http.ResponseWriter, httpStatus int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "\t")
	err := encoder.Encode(resp)
	if err != nil {
		log.Printf("Error writing response: %s", err)
	}
}
