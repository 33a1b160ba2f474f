package model

// GraphExtensionAttributes holds the on-premises extension attributes used
// to carry cross-system identifiers on a directory user.
type GraphExtensionAttributes struct {
	ExtensionAttribute1 string `json:"extensionAttribute1,omitempty"` // github username
	ExtensionAttribute2 string `json:"extensionAttribute2,omitempty"` // salesforce contact id
}

// GraphUser is a Microsoft Entra directory user.
type GraphUser struct {
	ID                  string                    `json:"id"`
	DisplayName         string                    `json:"displayName,omitempty"`
	GivenName           string                    `json:"givenName,omitempty"`
	Surname             string                    `json:"surname,omitempty"`
	Mail                string                    `json:"mail,omitempty"`
	AccountEnabled      *bool                     `json:"accountEnabled,omitempty"`
	JobTitle            string                    `json:"jobTitle,omitempty"`
	Department          string                    `json:"department,omitempty"`
	OfficeLocation      string                    `json:"officeLocation,omitempty"`
	MobilePhone         string                    `json:"mobilePhone,omitempty"`
	BusinessPhones      []string                  `json:"businessPhones,omitempty"`
	PreferredLanguage   string                    `json:"preferredLanguage,omitempty"`
	UsageLocation       string                    `json:"usageLocation,omitempty"`
	ExtensionAttributes *GraphExtensionAttributes `json:"onPremisesExtensionAttributes,omitempty"`
}

// Phone returns the mobile phone if set, else the first business phone.
func (u *GraphUser) Phone() string {
	if u.MobilePhone != "" {
		return u.MobilePhone
	}
	if len(u.BusinessPhones) > 0 {
		return u.BusinessPhones[0]
	}
	return ""
}

type GraphGroupMember struct {
	ID string `json:"id"`
}

// GraphProjectExtension is the open-extension payload attached to project
// groups, carrying sdk versions and product flags.
type GraphProjectExtension struct {
	ID             string `json:"id"`
	SdkVersion     string `json:"sdkVersion,omitempty"`
	UeVersion      string `json:"ueVersion,omitempty"`
	HasPhysics     bool   `json:"hasPhysics,omitempty"`
	HasNavigation  bool   `json:"hasNavigation,omitempty"`
	HasCloth       bool   `json:"hasCloth,omitempty"`
	HasAnimation   bool   `json:"hasAnimation,omitempty"`
	HasDestruction bool   `json:"hasDestruction,omitempty"`
	HasScript      bool   `json:"hasScript,omitempty"`
}

// GraphGroup is a directory group mapped to a target organization.
type GraphGroup struct {
	ID          string                  `json:"id"`
	DisplayName string                  `json:"displayName,omitempty"`
	Description string                  `json:"description,omitempty"`
	Members     []GraphGroupMember      `json:"members,omitempty"`
	Extensions  []GraphProjectExtension `json:"extensions,omitempty"`
}
