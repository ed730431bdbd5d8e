package dispatch

import (
	json "github.com/goccy/go-json"

	"github.com/stackmesh/entitybus/internal/domain"
)

// idRequest is the payload shape for identifier-only commands
// (find_one, delete).
type idRequest struct {
	ID string `json:"id"`
}

// decode unmarshals a command payload. Malformed JSON is a validation
// failure, not an unexpected error: the command never reached a handler.
func decode[T any](payload []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, &domain.ValidationError{
			Fields: map[string]string{"payload": "invalid JSON"},
		}
	}
	return &v, nil
}

func decodeID(payload []byte) (*idRequest, error) {
	req, err := decode[idRequest](payload)
	if err != nil {
		return nil, err
	}
	if err := requireID(req.ID); err != nil {
		return nil, err
	}
	return req, nil
}

func requireID(id string) error {
	if id == "" {
		return &domain.ValidationError{
			Fields: map[string]string{"id": domain.MsgRequired},
		}
	}
	return nil
}
