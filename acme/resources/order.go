package resources

import "strings"

// OrderResource represents the wire shape of an ACME Order, as returned by
// newOrder and by polling the order URL during CHKORDER.
//
// See https://www.rfc-editor.org/rfc/rfc8555#section-7.1.3
//
// To understand the Status changes specified by ACME for the Order resource
// see https://www.rfc-editor.org/rfc/rfc8555#section-7.1.6
type OrderResource struct {
	// The Status of the Order.
	Status string `json:"status"`
	// The Identifiers the Order wishes to finalize a Certificate for.
	Identifiers []Identifier `json:"identifiers"`
	// A list of URLs for Authorization resources the server specifies for the
	// Order Identifiers.
	Authorizations []string `json:"authorizations"`
	// A URL used to Finalize the Order with a CSR once the Order has a status
	// of "ready".
	Finalize string `json:"finalize"`
	// A URL used to fetch the Certificate issued by the server for the Order
	// after being Finalized. Present and not-empty once Status is "valid".
	Certificate string `json:"certificate,omitempty"`
}

// StatusValid reports whether the order has reached the terminal "valid"
// status, matching spec §4.3's case-insensitive CHKORDER check.
func (o OrderResource) StatusValid() bool {
	return strings.EqualFold(o.Status, "valid")
}
