package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// HeaderBinding carries the machine error code on every error response.
// The name and "err=<code>" shape are read by the calling transport.
const HeaderBinding = "cf-images-binding"

// Response is a fully built reply. Building one never touches the wire.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

func ErrorResponse(status, code int, message string) Response {
	header := make(http.Header)
	header.Set("Content-Type", "text/plain")
	header.Set(HeaderBinding, fmt.Sprintf("err=%d", code))
	return Response{
		Status: status,
		Header: header,
		Body:   []byte(fmt.Sprintf("ERROR %d: %s", code, message)),
	}
}

func ImageResponse(data []byte, contentType string) Response {
	header := make(http.Header)
	header.Set("Content-Type", contentType)
	return Response{Status: http.StatusOK, Header: header, Body: data}
}

func JSONResponse(status int, doc any) (Response, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return Response{}, fmt.Errorf("marshal response: %w", err)
	}
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return Response{Status: status, Header: header, Body: body}, nil
}

func (r Response) Write(w http.ResponseWriter) {
	for key, values := range r.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(r.Body)))
	w.WriteHeader(r.Status)
	_, _ = w.Write(r.Body)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
