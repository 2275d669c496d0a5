package endpoints

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jackzampolin/rentshelf/internal/api"
	"github.com/jackzampolin/rentshelf/internal/library"
)

const maxBodyBytes = 1 << 20

var userPattern = regexp.MustCompile(`^[a-zA-Z0-9_.@-]{1,64}$`)

// userFrom returns the reader identity from the request header.
func userFrom(r *http.Request) (string, error) {
	user := strings.TrimSpace(r.Header.Get(api.UserHeader))
	if user == "" {
		return api.DefaultUser, nil
	}
	if !userPattern.MatchString(user) {
		return "", fmt.Errorf("invalid %s header", api.UserHeader)
	}
	return user, nil
}

var (
	annotationSchema = mustCompile("annotation.json", `{
		"type": "object",
		"required": ["page", "text"],
		"properties": {
			"page": {"type": "integer", "minimum": 1},
			"text": {"type": "string", "minLength": 1, "maxLength": 10000},
			"selection": {
				"type": "object",
				"required": ["start", "end"],
				"properties": {
					"start": {"type": "integer", "minimum": 0},
					"end": {"type": "integer", "minimum": 1}
				}
			}
		}
	}`)

	positionSchema = mustCompile("position.json", `{
		"type": "object",
		"required": ["page", "scroll_offset"],
		"properties": {
			"page": {"type": "integer", "minimum": 1},
			"scroll_offset": {"type": "number", "minimum": 0}
		}
	}`)

	rentalSchema = mustCompile("rental.json", `{
		"type": "object",
		"required": ["book_id"],
		"properties": {
			"book_id": {"type": "string", "pattern": "^[a-zA-Z0-9_-]+$"},
			"days": {"type": "integer", "minimum": 0, "maximum": 365}
		}
	}`)
)

func mustCompile(name, schema string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("failed to load %s: %v", name, err))
	}
	s, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return s
}

// decodeBody validates the JSON request body against schema and decodes it
// into v.
func decodeBody(r *http.Request, schema *jsonschema.Schema, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return errors.New("invalid request body")
	}
	if err := schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("invalid request body: %s", validationMessage(verr))
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return json.NewDecoder(bytes.NewReader(body)).Decode(v)
}

// validationMessage returns the innermost cause, which names the field.
func validationMessage(verr *jsonschema.ValidationError) string {
	for len(verr.Causes) > 0 {
		verr = verr.Causes[0]
	}
	if verr.InstanceLocation == "" {
		return verr.Message
	}
	return verr.InstanceLocation + ": " + verr.Message
}

// writeLibraryError maps catalog errors to HTTP statuses.
func writeLibraryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, library.ErrNotFound), errors.Is(err, library.ErrIndexOutOfRange):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, library.ErrNoRental), errors.Is(err, library.ErrRentalExpired):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, library.ErrInvalidAnnotation),
		errors.Is(err, library.ErrInvalidPosition),
		errors.Is(err, library.ErrInvalidRental):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
