package resources

// AuthorizationResource is the wire shape of an ACME Authorization as
// returned by a GET/POST-as-GET to an authorization URL.
//
// See https://www.rfc-editor.org/rfc/rfc8555#section-7.1.4
//
// To understand the Authorization Status changes specified by ACME see
// https://www.rfc-editor.org/rfc/rfc8555#section-7.1.6
type AuthorizationResource struct {
	Status     string      `json:"status"`
	Identifier Identifier  `json:"identifier"`
	Challenges []Challenge `json:"challenges"`
	Expires    string      `json:"expires,omitempty"`
	Wildcard   bool        `json:"wildcard,omitempty"`
}

// Authorization is the engine's per-identifier bookkeeping entry threaded
// through a RenewalContext, per spec §3. It is populated in two stages: the
// NEWORDER state records AuthURL (from the order's authorizations[] list) and
// the AUTH state, after fetching the AuthorizationResource, records the
// chosen Chall/Token; CHALLENGE and CHKCHALLENGE update Status as the server
// validates the response.
type Authorization struct {
	// AuthURL is the authorization URL named in the order resource.
	AuthURL string
	// Identifier is the domain this authorization covers, populated from
	// the AuthorizationResource once fetched.
	Identifier string
	// Chall is the URL of the challenge matching the configured ChallengeKind,
	// populated after the AUTH state parses the authorization response.
	Chall string
	// Token is the challenge token for Chall.
	Token string
	// Status mirrors the authorization's last observed status: "pending",
	// "valid", or "invalid".
	Status string
}

// String returns the authorization's URL.
func (a Authorization) String() string {
	return a.AuthURL
}
