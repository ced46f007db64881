package apiresponses

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/adampresley/photogallery/pkg/models"
	"github.com/goccy/go-json"
)

const (
	MaxJSONBodyBytes = 1 << 20
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, value any) {
	b, err := json.Marshal(value)

	if err != nil {
		slog.Error("error encoding JSON response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Unexpected server error."}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

/*
WriteError maps domain errors to a status code and error body. Anything it
does not recognize is logged and reported as a 500 without detail.
*/
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *models.ValidationError
		configErr     *models.ConfigurationError
		upstreamErr   *models.UpstreamError
	)

	switch {
	case errors.As(err, &validationErr):
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid payload", Details: validationErr.Fields})

	case errors.Is(err, models.ErrUnauthorized):
		WriteErrorMessage(w, http.StatusUnauthorized, "Unauthorized")

	case errors.Is(err, models.ErrAlbumNotFound):
		WriteErrorMessage(w, http.StatusNotFound, "Album not found")

	case errors.As(err, &configErr):
		slog.Error("server is missing configuration", "path", r.URL.Path, "error", err)
		WriteErrorMessage(w, http.StatusInternalServerError, configErr.Message)

	case errors.As(err, &upstreamErr):
		slog.Error("image provider call failed", "path", r.URL.Path, "status", upstreamErr.StatusCode, "body", upstreamErr.Body, "error", err)
		WriteJSON(w, http.StatusBadGateway, ErrorResponse{Error: upstreamErr.Message, Details: upstreamDetails(upstreamErr)})

	default:
		slog.Error("unexpected error handling request", "path", r.URL.Path, "error", err)
		WriteErrorMessage(w, http.StatusInternalServerError, "Unexpected server error.")
	}
}

func upstreamDetails(err *models.UpstreamError) any {
	if err.StatusCode == 0 && err.Body == "" {
		return nil
	}

	return map[string]any{
		"status": err.StatusCode,
		"body":   err.Body,
	}
}

/*
DecodeJSON reads a JSON request body of at most MaxJSONBodyBytes into dest.
Malformed JSON and wrong field types come back as a ValidationError so the
caller can answer 400. Type mismatches are keyed by the JSON field path,
such as "exif.iso".
*/
func DecodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	var (
		err         error
		body        []byte
		maxBytesErr *http.MaxBytesError
	)

	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodyBytes)
	validationErr := models.NewValidationError()

	if body, err = io.ReadAll(r.Body); err != nil {
		if errors.As(err, &maxBytesErr) {
			validationErr.Add("body", "Request body is too large")
		} else {
			validationErr.Add("body", "Request body could not be read")
		}

		return validationErr
	}

	if err = json.Unmarshal(body, dest); err == nil {
		return nil
	}

	if json.Valid(body) {
		checkFieldKinds(body, reflect.TypeOf(dest), "", validationErr)
	}

	if !validationErr.HasErrors() {
		validationErr.Add("body", "Request body must be valid JSON")
	}

	return validationErr
}

var timeType = reflect.TypeOf(time.Time{})

/*
checkFieldKinds walks the JSON object in raw against the struct type t and
records every field whose JSON kind does not match the Go field.
*/
func checkFieldKinds(raw []byte, t reflect.Type, prefix string, validationErr *models.ValidationError) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return
	}

	object := map[string]json.RawMessage{}

	if err := json.Unmarshal(raw, &object); err != nil {
		if prefix == "" {
			validationErr.Add("body", "Expected object, received "+jsonKind(raw))
		}

		return
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")

		if name == "" || name == "-" {
			continue
		}

		value, ok := object[name]

		if !ok {
			continue
		}

		path := name

		if prefix != "" {
			path = prefix + "." + name
		}

		expected := expectedKind(field.Type)
		received := jsonKind(value)

		if received == "null" || expected == "" {
			continue
		}

		if expected != received {
			validationErr.Add(path, "Expected "+expected+", received "+received)
			continue
		}

		switch expected {
		case "object":
			checkFieldKinds(value, field.Type, path, validationErr)
		case "array":
			checkElementKinds(value, field.Type, path, validationErr)
		}
	}
}

func checkElementKinds(raw []byte, t reflect.Type, path string, validationErr *models.ValidationError) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	elements := []json.RawMessage{}

	if err := json.Unmarshal(raw, &elements); err != nil {
		return
	}

	expected := expectedKind(t.Elem())

	for index, element := range elements {
		received := jsonKind(element)

		if expected != "" && received != "null" && received != expected {
			validationErr.Add(path+"."+strconv.Itoa(index), "Expected "+expected+", received "+received)
		}
	}
}

func expectedKind(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t == timeType {
		return "string"
	}

	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Struct, reflect.Map:
		return "object"
	}

	return ""
}

func jsonKind(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)

	if len(trimmed) == 0 {
		return "undefined"
	}

	switch trimmed[0] {
	case '"':
		return "string"
	case '{':
		return "object"
	case '[':
		return "array"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	}

	return "number"
}
