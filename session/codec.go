package session

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// codecVersion tags the envelope so future layout changes can be detected
// instead of silently misread.
const codecVersion = 1

// envelope is the serialized form of a session's reconstructable state.
// The encoded result is an opaque printable string: base64 (URL alphabet,
// no padding) over the JSON document, safe to embed in a CSV field, a table
// column, or a delimited key/value entry. Stores must not assume any
// internal structure beyond that.
type envelope struct {
	Version          int            `json:"v"`
	ID               string         `json:"id"`
	Data             map[string]any `json:"data"`
	Duration         int64          `json:"duration"`
	ExpiresAt        string         `json:"expires_at"`
	IP               string         `json:"ip_address"`
	UserAgent        string         `json:"user_agent"`
	SecurityModel    []string       `json:"security_model"`
	RotationInterval int64          `json:"regeneration_interval"`
	NextRotationAt   string         `json:"next_regeneration_at"`
	FieldStore       string         `json:"field_store,omitempty"`
}

// timeLayout preserves wall-clock time and offset to nanosecond precision,
// so decoded stamps compare equal to the originals.
const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

// Encode serializes the session's reconstructable state to an opaque
// printable string. Decode(Encode(s)) reproduces every captured field.
func Encode(s *Session) (string, error) {
	env := envelope{
		Version:          codecVersion,
		ID:               s.ID,
		Data:             s.data,
		Duration:         int64(s.Duration),
		ExpiresAt:        s.ExpiresAt.Format(timeLayout),
		IP:               s.IP,
		UserAgent:        s.UserAgent,
		SecurityModel:    s.SecurityModel,
		RotationInterval: int64(s.RotationInterval),
		NextRotationAt:   s.NextRotationAt.Format(timeLayout),
		FieldStore:       s.FieldStore,
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode reconstructs a session from an encoded payload. The returned
// record is clean (not dirty). Numbers inside the data payload come back as
// json.Number so that re-encoding a decoded session is byte-stable.
func Decode(payload string) (*Session, error) {
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode session payload: %w", err)
	}

	var env envelope
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode session payload: %w", err)
	}
	if env.Version != codecVersion {
		return nil, fmt.Errorf("decode session payload: unsupported version %d", env.Version)
	}
	if env.ID == "" {
		return nil, errors.New("decode session payload: missing id")
	}

	expiresAt, err := parseStamp(env.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("decode session payload: expires_at: %w", err)
	}
	nextRotationAt, err := parseStamp(env.NextRotationAt)
	if err != nil {
		return nil, fmt.Errorf("decode session payload: next_regeneration_at: %w", err)
	}

	data := env.Data
	if data == nil {
		data = make(map[string]any)
	}

	return &Session{
		ID:               env.ID,
		IP:               env.IP,
		UserAgent:        env.UserAgent,
		SecurityModel:    env.SecurityModel,
		FieldStore:       env.FieldStore,
		Duration:         time.Duration(env.Duration),
		RotationInterval: time.Duration(env.RotationInterval),
		ExpiresAt:        expiresAt,
		NextRotationAt:   nextRotationAt,
		data:             data,
	}, nil
}

func parseStamp(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
