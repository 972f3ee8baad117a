package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/castmate/castmate-ai/internal/domain"
)

// maxJSONBody caps JSON request bodies. A chatbot roster is the largest payload.
const maxJSONBody = 1 << 20

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// ValidationError is one rejected field.
type ValidationError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// validationDetails flattens validator errors into the envelope details.
func validationDetails(err error) []ValidationError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make([]ValidationError, 0, len(ve))
	for _, fe := range ve {
		// Namespace keeps slice indices: ChatbotRequest.Candidates[3].ActeurID
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		out = append(out, ValidationError{Field: ns, Rule: fe.Tag()})
	}
	return out
}

// decodeJSON reads a bounded JSON body into dst and validates it.
// The returned details are non-nil only for validation failures.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) ([]ValidationError, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, fmt.Errorf("%w: body exceeds %d bytes", domain.ErrInvalidArgument, mbe.Limit)
		}
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty body", domain.ErrInvalidArgument)
		}
		return nil, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument)
	}
	if err := getValidator().Struct(dst); err != nil {
		return validationDetails(err), fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument)
	}
	return nil, nil
}

// ValidateJobID rejects ids that cannot name a job. Job ids are UUIDs.
func ValidateJobID(id string) error {
	if err := getValidator().Var(id, "required,uuid"); err != nil {
		return fmt.Errorf("%w: invalid job id", domain.ErrInvalidArgument)
	}
	return nil
}
