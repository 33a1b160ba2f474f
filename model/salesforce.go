package model

// Salesforce object type names used on query and update routes.
const (
	SalesforceObjectTypeNameProject     = "Project__c"
	SalesforceObjectTypeNameAccount     = "Account"
	SalesforceObjectTypeNameOpportunity = "Opportunity"
	SalesforceObjectTypeNameContact     = "Contact"
	SalesforceObjectTypeNameContactRole = "OpportunityContactRole"
	SalesforceObjectTypeNameUser        = "User"
)

// Static field lists per object. The original system derived these through
// runtime attribute markers, here they are declared once and used to build
// the SELECT clause.
var (
	SalesforceProjectFields = []string{
		"Id",
		"Name",
		"PrimaryOpportunity__c",
		"Project_Status__c",
		"Support_Management_Status__c",
		"Development_Platform_s__c",
		"Developer__c",
		"Publisher__c",
		"Products__c",
		"Zendesk_organization_id__c",
		"Engine_Integration_Access__c",
		"Account_Manager_Primary__c",
		"Account_Manager_Secondary__c",
		"Account_Manager_Tertiary__c",
	}

	SalesforceAccountFields = []string{
		"Id",
		"Name",
		"ClientPriority__c",
		"Account_Name_Simplified__c",
		"Account_Display_Name__c",
		"Account_Status__c",
	}

	SalesforceOpportunityFields = []string{
		"Id",
		"Name",
		"SdkVersion__c",
		"Territory__c",
	}

	SalesforceContactFields = []string{
		"Id",
		"Name",
		"FirstName",
		"LastName",
		"Email",
		"Phone",
		"AccountId",
		"Zendesk_user_id__c",
		"GitHub_Username__c",
		"HasLeft__c",
		"MailingCity",
		"MailingCountryCode",
		"Title",
		"Department",
	}

	SalesforceContactRoleFields = []string{
		"Id",
		"OpportunityId",
		"ContactId",
	}

	SalesforceUserFields = []string{
		"Id",
		"Name",
		"Email",
		"FederationIdentifier",
	}
)

// SalesforceAccount is a flattened Account record.
type SalesforceAccount struct {
	ID                    string `json:"Id"`
	Name                  string `json:"Name"`
	ClientPriority        string `json:"ClientPriority__c"`
	AccountNameSimplified string `json:"Account_Name_Simplified__c"`
	AccountDisplayName    string `json:"Account_Display_Name__c"`
	AccountStatus         string `json:"Account_Status__c"`
}

// DisplayName prefers the simplified account name, then the curated display
// name, then the raw record name.
func (a *SalesforceAccount) DisplayName() string {
	if a == nil {
		return ""
	}
	if a.AccountNameSimplified != "" {
		return a.AccountNameSimplified
	}
	if a.AccountDisplayName != "" {
		return a.AccountDisplayName
	}
	return a.Name
}

type SalesforceOpportunity struct {
	ID         string `json:"Id"`
	Name       string `json:"Name"`
	SdkVersion string `json:"SdkVersion__c"`
	Territory  string `json:"Territory__c"`
}

type SalesforceUser struct {
	ID                   string `json:"Id"`
	Name                 string `json:"Name"`
	Email                string `json:"Email"`
	FederationIdentifier string `json:"FederationIdentifier"`
}

// SalesforceProject is a Project record with related records inlined the way
// the query route returns them.
type SalesforceProject struct {
	ID                      string `json:"Id"`
	Name                    string `json:"Name"`
	PrimaryOpportunityID    string `json:"PrimaryOpportunity__c"`
	ProjectStatus           string `json:"Project_Status__c"`
	SupportManagementStatus string `json:"Support_Management_Status__c"`
	DevelopmentPlatforms    string `json:"Development_Platform_s__c"`
	DeveloperID             string `json:"Developer__c"`
	PublisherID             string `json:"Publisher__c"`
	Products                string `json:"Products__c"`
	ZendeskOrganizationID   string `json:"Zendesk_organization_id__c"`
	EngineIntegrationAccess bool   `json:"Engine_Integration_Access__c"`

	PrimaryOpportunity      *SalesforceOpportunity `json:"PrimaryOpportunity__r"`
	Publisher               *SalesforceAccount     `json:"Publisher__r"`
	Developer               *SalesforceAccount     `json:"Developer__r"`
	AccountManagerPrimary   *SalesforceUser        `json:"Account_Manager_Primary__r"`
	AccountManagerSecondary *SalesforceUser        `json:"Account_Manager_Secondary__r"`
	AccountManagerTertiary  *SalesforceUser        `json:"Account_Manager_Tertiary__r"`
}

type SalesforceContact struct {
	ID                 string `json:"Id"`
	Name               string `json:"Name"`
	FirstName          string `json:"FirstName"`
	LastName           string `json:"LastName"`
	Email              string `json:"Email"`
	Phone              string `json:"Phone"`
	AccountID          string `json:"AccountId"`
	ZendeskUserID      string `json:"Zendesk_user_id__c"`
	GithubUsername     string `json:"GitHub_Username__c"`
	HasLeft            bool   `json:"HasLeft__c"`
	MailingCity        string `json:"MailingCity"`
	MailingCountryCode string `json:"MailingCountryCode"`
	Title              string `json:"Title"`
	Department         string `json:"Department"`
}

// SalesforceContactRole links a contact to an opportunity.
type SalesforceContactRole struct {
	ID            string             `json:"Id"`
	OpportunityID string             `json:"OpportunityId"`
	ContactID     string             `json:"ContactId"`
	Contact       *SalesforceContact `json:"Contact"`
}

// SalesforcePicklistValue is one option of a picklist field from the object
// describe metadata.
type SalesforcePicklistValue struct {
	Label  string `json:"label"`
	Value  string `json:"value"`
	Active bool   `json:"active"`
}

type SalesforceFieldDescribe struct {
	Name           string                    `json:"name"`
	Label          string                    `json:"label"`
	Type           string                    `json:"type"`
	PicklistValues []SalesforcePicklistValue `json:"picklistValues"`
}

type SalesforceObjectDescribe struct {
	Custom bool                      `json:"custom"`
	Name   string                    `json:"name"`
	Fields []SalesforceFieldDescribe `json:"fields"`
}
