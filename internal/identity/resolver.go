// Package identity resolves the signed-in patient id from stored credentials.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/openclinic/patient-portal/internal/session"
	"github.com/openclinic/patient-portal/pkg/logging"
)

// ErrUnresolvable means neither the session record nor the bearer token
// carried a usable patient id.
var ErrUnresolvable = errors.New("identity: could not determine patient id")

// Key precedence per credential source. Ordered, first non-empty wins. Kept
// as data so new legacy aliases are additive.
var (
	sessionRecordKeys = []string{"id", "P_ID", "patientId", "userId"}
	tokenClaimKeys    = []string{"id", "userId", "sub"}
)

// Resolver extracts a patient id from a session context. Malformed session
// material is treated as absent, never as a hard failure; only full
// exhaustion of both sources yields ErrUnresolvable.
type Resolver struct {
	store  session.Store
	logger *logging.Logger
}

// NewResolver creates a resolver over the given session store.
func NewResolver(store session.Store, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// PatientID resolves the patient id: the structured session record first,
// then the bearer token's payload claims.
func (r *Resolver) PatientID(ctx context.Context) (string, error) {
	if id := r.fromSessionRecord(ctx); id != "" {
		return id, nil
	}
	if id := r.fromToken(ctx); id != "" {
		return id, nil
	}
	return "", ErrUnresolvable
}

func (r *Resolver) fromSessionRecord(ctx context.Context) string {
	data, err := r.store.User(ctx)
	if err != nil {
		r.logger.Warn("identity: session record unavailable", "error", err)
		return ""
	}
	if len(data) == 0 {
		return ""
	}

	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		r.logger.Warn("identity: session record not parseable", "error", err)
		return ""
	}

	for _, key := range sessionRecordKeys {
		if id := stringifyID(record[key]); id != "" {
			return id
		}
	}
	return ""
}

func (r *Resolver) fromToken(ctx context.Context) string {
	raw, err := r.store.Token(ctx)
	if err != nil {
		r.logger.Warn("identity: token unavailable", "error", err)
		return ""
	}
	if raw == "" {
		return ""
	}

	// The token is only a transport for its payload here; signature
	// verification belongs to the upstream auth layer.
	token, _, err := new(jwt.Parser).ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		r.logger.Warn("identity: token not parseable", "error", err)
		return ""
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	for _, key := range tokenClaimKeys {
		if id := stringifyID(claims[key]); id != "" {
			return id
		}
	}
	return ""
}

// stringifyID renders an id-bearing JSON value as a string. JSON numbers
// decode as float64; integral ids are the only ones the upstream produces.
func stringifyID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	default:
		return ""
	}
}
