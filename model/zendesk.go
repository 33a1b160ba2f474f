package model

import "strings"

// Zendesk async job states.
const (
	ZendeskJobStatusQueued    = "queued"
	ZendeskJobStatusWorking   = "working"
	ZendeskJobStatusCompleted = "completed"
	ZendeskJobStatusFailed    = "failed"
)

// Per-item result states inside a completed job.
const (
	ZendeskJobResultCreated = "Created"
	ZendeskJobResultUpdated = "Updated"
	ZendeskJobResultFailed  = "Failed"
)

// ZendeskOrganization is the target-side organization record. ExternalID
// carries the source system identifier and is the only stable join key
// across sync runs.
type ZendeskOrganization struct {
	ID                 int64                  `json:"id,omitempty"`
	Name               string                 `json:"name,omitempty"`
	Details            string                 `json:"details,omitempty"`
	ExternalID         string                 `json:"external_id,omitempty"`
	GroupID            *int64                 `json:"group_id,omitempty"`
	SharedTickets      bool                   `json:"shared_tickets"`
	SharedComments     bool                   `json:"shared_comments"`
	Tags               []string               `json:"tags,omitempty"`
	OrganizationFields map[string]interface{} `json:"organization_fields,omitempty"`
}

type ZendeskUser struct {
	ID                int64                  `json:"id,omitempty"`
	Name              string                 `json:"name,omitempty"`
	Email             string                 `json:"email,omitempty"`
	Role              string                 `json:"role,omitempty"`
	Phone             string                 `json:"phone,omitempty"`
	ExternalID        string                 `json:"external_id,omitempty"`
	Verified          bool                   `json:"verified,omitempty"`
	Active            *bool                  `json:"active,omitempty"`
	Suspended         bool                   `json:"suspended,omitempty"`
	TicketRestriction string                 `json:"ticket_restriction,omitempty"`
	OrganizationID    int64                  `json:"organization_id,omitempty"`
	UserFields        map[string]interface{} `json:"user_fields,omitempty"`
}

// ZendeskOrganizationMembership is one user to organization edge.
type ZendeskOrganizationMembership struct {
	ID             int64 `json:"id,omitempty"`
	UserID         int64 `json:"user_id"`
	OrganizationID int64 `json:"organization_id"`
}

// ZendeskJobResult is one per-item outcome of a bulk job. Index refers to
// the item's position within the submitted chunk.
type ZendeskJobResult struct {
	Index   int    `json:"index"`
	ID      int64  `json:"id,omitempty"`
	Status  string `json:"status,omitempty"`
	Details string `json:"details,omitempty"`
	Error   string `json:"error,omitempty"`
}

// IsDuplicate reports whether the item failed because a record with the same
// unique key already exists. Such failures are recoverable through
// search-and-link, not fatal.
func (r *ZendeskJobResult) IsDuplicate() bool {
	if r.Status != ZendeskJobResultFailed {
		return false
	}
	return r.Error == "DuplicateValue" ||
		strings.Contains(r.Details, "DuplicateValue") ||
		strings.Contains(r.Details, "already been taken")
}

// ZendeskJobStatus is the polled state of a bulk job.
type ZendeskJobStatus struct {
	ID       string             `json:"id"`
	URL      string             `json:"url,omitempty"`
	Status   string             `json:"status"`
	Message  string             `json:"message,omitempty"`
	Progress int                `json:"progress,omitempty"`
	Total    int                `json:"total,omitempty"`
	Results  []ZendeskJobResult `json:"results,omitempty"`
}

// IsTerminal reports whether polling should stop.
func (s *ZendeskJobStatus) IsTerminal() bool {
	return s.Status == ZendeskJobStatusCompleted || s.Status == ZendeskJobStatusFailed
}

type ZendeskOrganizationFieldOption struct {
	ID    *string `json:"id"`
	Name  string  `json:"name,omitempty"`
	Value string  `json:"value,omitempty"`
}

type ZendeskOrganizationField struct {
	Key                string                           `json:"key"`
	ID                 string                           `json:"id,omitempty"`
	Title              string                           `json:"title,omitempty"`
	Type               string                           `json:"type,omitempty"`
	CustomFieldOptions []ZendeskOrganizationFieldOption `json:"custom_field_options,omitempty"`
}
