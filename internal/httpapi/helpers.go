package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/go-playground/validator/v10"
)

const maxBody = 1 << 20

var validate = validator.New()

func writeJSON(w http.ResponseWriter, v any) {
	WriteJSON(w, http.StatusOK, v)
}

// decodeJSON reads exactly one JSON document into v and validates its
// struct tags. An empty body is allowed when optional is set.
func decodeJSON(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF && optional {
			return nil
		}
		return fmt.Errorf("%w: invalid JSON: %v", errInvalidInput, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: invalid JSON: trailing data", errInvalidInput)
	}
	return validate.Struct(v)
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return host == "127.0.0.1" || host == "::1" || host == "localhost"
}
