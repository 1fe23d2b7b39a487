package qbo

import (
	"encoding/json"
	"fmt"
	"strings"
)

// HTTPError is returned for non-2xx responses and for 2xx responses whose
// body is not JSON.
type HTTPError struct {
	Status    int
	Body      string
	Fault     string
	Malformed bool
}

func (e *HTTPError) Error() string {
	switch {
	case e.Malformed:
		return fmt.Sprintf("malformed response body (status %d)", e.Status)
	case e.Fault != "":
		return fmt.Sprintf("upstream status %d: %s", e.Status, e.Fault)
	default:
		return fmt.Sprintf("upstream status %d", e.Status)
	}
}

// Unauthorized reports whether the access token was refused.
func (e *HTTPError) Unauthorized() bool {
	return e.Status == 401
}

type faultBody struct {
	Fault struct {
		Error []struct {
			Message string `json:"Message"`
			Detail  string `json:"Detail"`
			Code    string `json:"code"`
		} `json:"Error"`
		Type string `json:"type"`
	} `json:"Fault"`
}

func faultMessage(raw []byte) string {
	var body faultBody
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Fault.Error) == 0 {
		return ""
	}
	parts := make([]string, 0, len(body.Fault.Error))
	for _, e := range body.Fault.Error {
		msg := strings.TrimSpace(e.Message)
		if e.Code != "" {
			msg = e.Code + " " + msg
		}
		if e.Detail != "" {
			msg += " (" + strings.TrimSpace(e.Detail) + ")"
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, "; ")
}
