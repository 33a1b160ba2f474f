package sync

import (
	"fmt"
	"strings"

	M "github.com/HarryGifford/entra-object-sync/model"
	U "github.com/HarryGifford/entra-object-sync/util"
)

// Service level tiers derived from the project's support management status.
const (
	SLAEvaluator = "service_level_evaluator"
	SLAClient    = "service_level_client"
	SLANoAccess  = "service_level_no_access"
)

// Support group ids used for territory based ticket routing.
const (
	GroupDevRelNA     int64 = 23741505645204
	GroupDevRelEurope int64 = 23744675895956
	GroupDevRelJapan  int64 = 23744675873940
	GroupFAE          int64 = 23744711314196
)

// Fixed tag vocabulary derived from product flags.
const (
	TagProductPhysics     = "product_physics"
	TagProductNavigation  = "product_navigation"
	TagProductCloth       = "product_cloth"
	TagProductAnimation   = "product_animation"
	TagProductDestruction = "product_destruction"
	TagProductScript      = "product_script"
)

// OrganizationNameFromProject builds the target organization name from the
// project, developer and publisher display names. Ordering is project first:
// "Project : Developer : Publisher". A publisher prefix shared with the
// developer is absorbed ("Ubisoft" + "Ubisoft Blah" -> "Ubisoft Blah"). All
// three inputs blank is a mapping failure.
func OrganizationNameFromProject(projectID, projectName, publisherName, developerName string) (string, error) {
	publisherBlank := strings.TrimSpace(publisherName) == ""
	developerBlank := strings.TrimSpace(developerName) == ""

	if publisherBlank && developerBlank {
		if strings.TrimSpace(projectName) == "" {
			return "", &MappingError{
				Kind:   M.SalesforceObjectTypeNameProject,
				ID:     projectID,
				Reason: "project must have a name, publisher, or developer",
			}
		}
		return projectName, nil
	}

	if publisherName == developerName || developerBlank {
		return fmt.Sprintf("%s : %s", projectName, publisherName), nil
	}

	if publisherBlank || strings.HasPrefix(developerName, publisherName) {
		return fmt.Sprintf("%s : %s", projectName, developerName), nil
	}

	return fmt.Sprintf("%s : %s : %s", projectName, developerName, publisherName), nil
}

func slaFromProject(p *M.SalesforceProject) string {
	switch p.SupportManagementStatus {
	case "With FAE - Evaluation":
		return SLAEvaluator
	case "With DevRel - Active AM":
		return SLAClient
	default:
		return SLANoAccess
	}
}

func priorityFromProject(p *M.SalesforceProject) interface{} {
	if p.Developer == nil {
		return nil
	}
	switch p.Developer.ClientPriority {
	case "p0":
		return "client_priority_high"
	case "p1":
		return "client_priority_medium"
	case "p2":
		return "client_priority_slim"
	case "p3":
		return "client_priority_zero"
	default:
		return nil
	}
}

// groupIDForTerritory routes the organization to a regional support group.
// Unknown territories deliberately fall through to no group.
func groupIDForTerritory(territory string) *int64 {
	var id int64
	switch territory {
	case "NANW", "NANE", "NASW":
		id = GroupDevRelNA
	case "EMEA":
		id = GroupDevRelEurope
	case "ASIA", "Japan Office", "Korea Office":
		id = GroupDevRelJapan
	default:
		return nil
	}
	return &id
}

func territoryCode(territory string) interface{} {
	switch territory {
	case "NANW":
		return "territorycode_NANW"
	case "NANE":
		return "territorycode_NANE"
	case "NASW":
		return "territorycode_NASW"
	case "EMEA":
		return "territorycode_EMEA"
	case "ASIA", "Japan Office":
		return "territorycode_ASIA"
	case "Korea Office":
		return "territorycode_Korea_Office"
	default:
		return nil
	}
}

// productTags maps the semicolon separated product list to the fixed tag
// vocabulary. "AI" is the legacy name of the navigation product.
func productTags(products string) []string {
	set := map[string]bool{}
	for _, product := range U.SplitMultiPicklist(products) {
		set[product] = true
	}

	var tags []string
	if set["AI"] || set["Navigation"] {
		tags = append(tags, TagProductNavigation)
	}
	if set["Physics"] {
		tags = append(tags, TagProductPhysics)
	}
	if set["Animation"] {
		tags = append(tags, TagProductAnimation)
	}
	if set["Cloth"] {
		tags = append(tags, TagProductCloth)
	}
	if set["Destruction"] {
		tags = append(tags, TagProductDestruction)
	}
	if set["Script"] {
		tags = append(tags, TagProductScript)
	}
	return tags
}

func managerLookupValue(u *M.SalesforceUser) interface{} {
	if u == nil || u.FederationIdentifier == "" {
		return nil
	}
	return "external_id:" + u.FederationIdentifier
}

// OrganizationFromProject maps a Salesforce project to its target
// organization. Pure, no I/O. The caller persists the result.
func OrganizationFromProject(p *M.SalesforceProject) (*M.ZendeskOrganization, error) {
	name, err := OrganizationNameFromProject(p.ID, p.Name,
		p.Publisher.DisplayName(), p.Developer.DisplayName())
	if err != nil {
		return nil, err
	}

	sla := slaFromProject(p)

	var sdkVersion interface{}
	territory := ""
	if p.PrimaryOpportunity != nil {
		if p.PrimaryOpportunity.SdkVersion != "" {
			sdkVersion = p.PrimaryOpportunity.SdkVersion
		}
		territory = p.PrimaryOpportunity.Territory
	}

	groupID := groupIDForTerritory(territory)
	// Evaluation projects route to the FAE group regardless of territory.
	if sla == SLAEvaluator {
		fae := GroupFAE
		groupID = &fae
	}

	customerType := "customer_type_support"
	if sla == SLAEvaluator {
		customerType = "customer_type_evaluation"
	}

	engineTag := "org_engine_custom"
	if p.EngineIntegrationAccess {
		engineTag = "org_engine_unreal"
	}

	accountInactive := p.Publisher != nil && p.Publisher.AccountStatus == "Inactive"

	org := &M.ZendeskOrganization{
		Name:           name,
		ExternalID:     p.ID,
		SharedTickets:  true,
		SharedComments: true,
		GroupID:        groupID,
		Tags:           productTags(p.Products),
		OrganizationFields: map[string]interface{}{
			"territory_code":            territoryCode(territory),
			"salesforce_account_id":     p.DeveloperID,
			"salesforce_project_id":     p.ID,
			"salesforce_opportunity_id": p.PrimaryOpportunityID,
			"service_level_agreement":   sla,
			"org_disabled":              accountInactive,
			"sdk_version":               sdkVersion,
			"client_priority":           priorityFromProject(p),
			"customer_type":             customerType,
			"primary_account_manager":   managerLookupValue(p.AccountManagerPrimary),
			"secondary_account_manager": managerLookupValue(p.AccountManagerSecondary),
			"tertiary_account_manager":  managerLookupValue(p.AccountManagerTertiary),
			"products":                  productTags(p.Products),
			"org_engine":                engineTag,
		},
	}

	return org, nil
}

// OrganizationFromGroup maps a directory group to its target organization.
func OrganizationFromGroup(g *M.GraphGroup) (*M.ZendeskOrganization, error) {
	if strings.TrimSpace(g.DisplayName) == "" {
		return nil, &MappingError{Kind: "group", ID: g.ID, Reason: "group has no display name"}
	}

	fields := map[string]interface{}{}
	var tags []string
	for i := range g.Extensions {
		ext := &g.Extensions[i]
		if ext.SdkVersion != "" {
			fields["sdk_version"] = ext.SdkVersion
		}
		if ext.UeVersion != "" {
			fields["ue_version"] = ext.UeVersion
		}
		if ext.HasNavigation {
			tags = append(tags, TagProductNavigation)
		}
		if ext.HasPhysics {
			tags = append(tags, TagProductPhysics)
		}
		if ext.HasAnimation {
			tags = append(tags, TagProductAnimation)
		}
		if ext.HasCloth {
			tags = append(tags, TagProductCloth)
		}
		if ext.HasDestruction {
			tags = append(tags, TagProductDestruction)
		}
		if ext.HasScript {
			tags = append(tags, TagProductScript)
		}
	}

	return &M.ZendeskOrganization{
		Name:               g.DisplayName,
		Details:            g.Description,
		ExternalID:         g.ID,
		SharedTickets:      true,
		SharedComments:     true,
		Tags:               tags,
		OrganizationFields: fields,
	}, nil
}

func userFromContact(c *M.SalesforceContact) (*M.ZendeskUser, error) {
	if c.Email == "" {
		return nil, &MappingError{
			Kind:   M.SalesforceObjectTypeNameContact,
			ID:     c.ID,
			Reason: "contact has no email",
		}
	}

	fields := map[string]interface{}{
		"salesforce_contact_id": c.ID,
	}
	if c.GithubUsername != "" {
		fields["github_username"] = c.GithubUsername
	}
	if c.MailingCountryCode != "" {
		fields["usage_location"] = "usage_location_" + c.MailingCountryCode
	}
	if c.Title != "" {
		fields["title"] = c.Title
	}
	if c.Department != "" {
		fields["department"] = c.Department
	}
	if c.MailingCity != "" {
		fields["city"] = c.MailingCity
	}

	return &M.ZendeskUser{
		Name:              c.Name,
		Email:             c.Email,
		Phone:             c.Phone,
		ExternalID:        c.ID,
		Verified:          true,
		Suspended:         c.HasLeft,
		Role:              "end-user",
		TicketRestriction: "organization",
		UserFields:        fields,
	}, nil
}

func userFromGraphUser(u *M.GraphUser) (*M.ZendeskUser, error) {
	if u.Mail == "" {
		return nil, &MappingError{Kind: "user", ID: u.ID, Reason: "directory user has no mail"}
	}

	fields := map[string]interface{}{}
	if u.ExtensionAttributes != nil {
		if u.ExtensionAttributes.ExtensionAttribute1 != "" {
			fields["github_username"] = u.ExtensionAttributes.ExtensionAttribute1
		}
		if u.ExtensionAttributes.ExtensionAttribute2 != "" {
			fields["salesforce_contact_id"] = u.ExtensionAttributes.ExtensionAttribute2
		}
	}
	if u.JobTitle != "" {
		fields["title"] = u.JobTitle
	}
	if u.Department != "" {
		fields["department"] = u.Department
	}
	if u.OfficeLocation != "" {
		fields["office_location"] = u.OfficeLocation
	}
	if u.UsageLocation != "" {
		fields["usage_location"] = "usage_location_" + u.UsageLocation
	}

	return &M.ZendeskUser{
		Name:       u.DisplayName,
		Email:      u.Mail,
		Phone:      u.Phone(),
		ExternalID: u.ID,
		Active:     u.AccountEnabled,
		Role:       "end-user",
		UserFields: fields,
	}, nil
}

func userFromEndUser(u *M.EndUser) (*M.ZendeskUser, error) {
	if u.Email == "" {
		return nil, &MappingError{Kind: "end_user", ID: u.EntraID, Reason: "end user has no email"}
	}
	return &M.ZendeskUser{
		ID:         u.ZendeskID,
		Name:       u.DisplayName,
		Email:      u.Email,
		ExternalID: u.EntraID,
		Role:       "end-user",
	}, nil
}

// UserFromSource maps any source user variant to the target representation,
// dispatched explicitly on the variant kind.
func UserFromSource(s M.UserSource) (*M.ZendeskUser, error) {
	switch s.Kind {
	case M.UserSourceProjectContact:
		return userFromContact(s.Contact)
	case M.UserSourceDirectoryUser:
		return userFromGraphUser(s.GraphUser)
	case M.UserSourceLegacyEndUser:
		return userFromEndUser(s.EndUser)
	default:
		return nil, &MappingError{Kind: "user", Reason: "unknown source kind"}
	}
}
