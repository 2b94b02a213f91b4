package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Envelope is the wrapper every collaborator puts around its payload. The
// upstream convention is inconsistent on purpose: a status of 0 means success
// in some deployments while 200/201 means success in others. IsSuccess is the
// single place that knows this.
type Envelope struct {
	Status  StatusCode      `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// StatusCode decodes from a JSON number or a quoted number; some collaborator
// deployments emit the status as a string.
type StatusCode int

func (c *StatusCode) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*c = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("envelope: status %q is not numeric: %w", s, err)
		}
		*c = StatusCode(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = StatusCode(n)
	return nil
}

// IsSuccess reports whether a collaborator status code means success under
// the dual convention: both 0 and 200/201 are success.
func IsSuccess(code int) bool {
	switch code {
	case 0, 200, 201:
		return true
	}
	return false
}

func (c StatusCode) IsSuccess() bool { return IsSuccess(int(c)) }
