package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wlallemand/acme-core/acme"
	"github.com/wlallemand/acme-core/acme/resources"
	"github.com/wlallemand/acme-core/acme/transport"
)

// classifiedError pairs a diagnostic with whether it should be retried,
// per spec §4.3's "Error classification" and §7's error taxonomy.
type classifiedError struct {
	err       error
	transient bool
}

func (c *classifiedError) Error() string { return c.err.Error() }
func (c *classifiedError) Unwrap() error { return c.err }

func transientErr(format string, args ...interface{}) *classifiedError {
	return &classifiedError{err: fmt.Errorf(format, args...), transient: true}
}

func terminalErr(format string, args ...interface{}) *classifiedError {
	return &classifiedError{err: fmt.Errorf(format, args...), transient: false}
}

// classifyHTTPResponse implements spec §4.3's "Error classification" for
// a non-2xx ACME response: parse the problem+json body and decide whether
// its type is in the non-retryable set.
func classifyHTTPResponse(resp *transport.Response) *classifiedError {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var problem resources.Problem
	if err := json.Unmarshal(resp.Body, &problem); err != nil {
		return transientErr("HTTP status %d with unparseable problem body: %s", resp.StatusCode, err)
	}

	typ := strings.TrimPrefix(problem.Type, "urn:ietf:params:acme:error:")
	msg := fmt.Sprintf("HTTP status %d: %s", resp.StatusCode, problem.Error())

	if typ == strings.TrimPrefix(acme.BadNonce, "urn:ietf:params:acme:error:") {
		return &classifiedError{err: fmt.Errorf("%s", msg), transient: true}
	}
	if !acme.IsRetryable(typ) {
		return &classifiedError{err: fmt.Errorf("%s", msg), transient: false}
	}
	return &classifiedError{err: fmt.Errorf("%s", msg), transient: true}
}

// problemType extracts the full problem type (including the ACME error URN
// prefix) from a response body, used by CHKACCOUNT's branch on
// acme.AccountDoesNotExist.
func problemType(resp *transport.Response) string {
	var problem resources.Problem
	if err := json.Unmarshal(resp.Body, &problem); err != nil {
		return ""
	}
	return problem.Type
}
