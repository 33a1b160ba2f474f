package model

import "strings"

// EndUser is the user payload accepted by the HTTP provisioning route. It
// carries identifiers for every system a user may already exist in.
type EndUser struct {
	Email          string `json:"email" binding:"required"`
	DisplayName    string `json:"display_name,omitempty"`
	GivenName      string `json:"given_name,omitempty"`
	Surname        string `json:"surname,omitempty"`
	JobTitle       string `json:"job_title,omitempty"`
	Department     string `json:"department,omitempty"`
	OfficeLocation string `json:"office_location,omitempty"`
	MobilePhone    string `json:"mobile_phone,omitempty"`
	BusinessPhone  string `json:"business_phone,omitempty"`
	Locale         string `json:"locale,omitempty"`
	GithubUsername string `json:"github_username,omitempty"`
	SalesforceID   string `json:"salesforce_id,omitempty"`
	ZendeskID      int64  `json:"zendesk_id,omitempty"`
	UsageLocation  string `json:"usage_location,omitempty"`
	EntraID        string `json:"entra_id,omitempty"`
	Enabled        *bool  `json:"enabled,omitempty"`
}

// ToGraphUser maps the payload to a directory user record. Locale is
// normalized from underscore to BCP 47 hyphen form.
func (u *EndUser) ToGraphUser() *GraphUser {
	enabled := true
	if u.Enabled != nil {
		enabled = *u.Enabled
	}
	return &GraphUser{
		ID:                u.EntraID,
		DisplayName:       u.DisplayName,
		GivenName:         u.GivenName,
		Surname:           u.Surname,
		Mail:              u.Email,
		AccountEnabled:    &enabled,
		JobTitle:          u.JobTitle,
		Department:        u.Department,
		OfficeLocation:    u.OfficeLocation,
		MobilePhone:       u.MobilePhone,
		BusinessPhones:    []string{u.BusinessPhone},
		PreferredLanguage: strings.Join(strings.Split(u.Locale, "_"), "-"),
		UsageLocation:     u.UsageLocation,
		ExtensionAttributes: &GraphExtensionAttributes{
			ExtensionAttribute1: u.GithubUsername,
			ExtensionAttribute2: u.SalesforceID,
		},
	}
}

// UserSourceKind discriminates the source entity a target user is derived
// from.
type UserSourceKind int

const (
	UserSourceProjectContact UserSourceKind = iota + 1
	UserSourceDirectoryUser
	UserSourceLegacyEndUser
)

// UserSource is a tagged union over the entity types that can produce a
// target user representation. Exactly one of the pointers matching Kind is
// set.
type UserSource struct {
	Kind      UserSourceKind
	Contact   *SalesforceContact
	GraphUser *GraphUser
	EndUser   *EndUser
}

func SourceFromContact(c *SalesforceContact) UserSource {
	return UserSource{Kind: UserSourceProjectContact, Contact: c}
}

func SourceFromGraphUser(u *GraphUser) UserSource {
	return UserSource{Kind: UserSourceDirectoryUser, GraphUser: u}
}

func SourceFromEndUser(u *EndUser) UserSource {
	return UserSource{Kind: UserSourceLegacyEndUser, EndUser: u}
}

// Email returns the natural key of the source user.
func (s UserSource) Email() string {
	switch s.Kind {
	case UserSourceProjectContact:
		return s.Contact.Email
	case UserSourceDirectoryUser:
		return s.GraphUser.Mail
	case UserSourceLegacyEndUser:
		return s.EndUser.Email
	}
	return ""
}

// ExternalID returns the source system identifier stored on the target user.
func (s UserSource) ExternalID() string {
	switch s.Kind {
	case UserSourceProjectContact:
		return s.Contact.ID
	case UserSourceDirectoryUser:
		return s.GraphUser.ID
	case UserSourceLegacyEndUser:
		return s.EndUser.EntraID
	}
	return ""
}
