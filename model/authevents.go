package model

// Response envelope types of the identity provider's token-issuance
// extension contract.
const (
	AuthEventsResponseDataType  = "microsoft.graph.onTokenIssuanceStartResponseData"
	AuthEventsProvideClaimsType = "microsoft.graph.tokenIssuanceStart.provideClaimsForToken"
	AuthEventsClaimsAPIVersion  = "1.0.0"
)

// AuthEventsRequest is the event posted by the identity provider when a
// token issuance starts for a signed-in user.
type AuthEventsRequest struct {
	Type   string         `json:"type"`
	Source string         `json:"source"`
	Data   AuthEventsData `json:"data"`
}

type AuthEventsData struct {
	AuthenticationContext AuthEventsContext `json:"authenticationContext"`
}

type AuthEventsContext struct {
	CorrelationID string `json:"correlationId"`
}

type AuthEventsResponse struct {
	Data AuthEventsResponseData `json:"data"`
}

type AuthEventsResponseData struct {
	ODataType string             `json:"@odata.type"`
	Actions   []AuthEventsAction `json:"actions"`
}

type AuthEventsAction struct {
	ODataType string           `json:"@odata.type"`
	Claims    AuthEventsClaims `json:"claims"`
}

type AuthEventsClaims struct {
	APIVersion    string `json:"apiVersion"`
	CorrelationID string `json:"correlationId,omitempty"`
	Organizations string `json:"organizations,omitempty"`
}

// NewAuthEventsResponse builds the provide-claims response for one sign-in
// event, echoing the provider's correlation id.
func NewAuthEventsResponse(correlationID, organizations string) *AuthEventsResponse {
	return &AuthEventsResponse{
		Data: AuthEventsResponseData{
			ODataType: AuthEventsResponseDataType,
			Actions: []AuthEventsAction{{
				ODataType: AuthEventsProvideClaimsType,
				Claims: AuthEventsClaims{
					APIVersion:    AuthEventsClaimsAPIVersion,
					CorrelationID: correlationID,
					Organizations: organizations,
				},
			}},
		},
	}
}
