package resources

// Problem is a struct representing a problem+json document from the server.
//
// See https://www.rfc-editor.org/rfc/rfc8555#section-6.7
//
// TODO(@cpu): implement RFC 8555 subproblem support
type Problem struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

// Error makes Problem satisfy the error interface so step functions can
// return it directly as the diagnostic spec §7 requires ("user-visible
// messages include the HTTP status and the server's problem type/detail").
func (p *Problem) Error() string {
	if p == nil {
		return ""
	}
	if p.Detail != "" {
		return p.Type + ": " + p.Detail
	}
	return p.Type
}
