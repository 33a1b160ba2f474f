package field_sync

import (
	"strings"

	log "github.com/sirupsen/logrus"

	M "github.com/HarryGifford/entra-object-sync/model"
	U "github.com/HarryGifford/entra-object-sync/util"
)

// Max length the target accepts for a custom field option value.
const maxOptionValueLength = 255

// PicklistReader is the slice of the CRM client this driver consumes.
type PicklistReader interface {
	GetPicklistValues(objectName, fieldName string) ([]M.SalesforcePicklistValue, error)
}

// FieldWriter is the slice of the target client this driver consumes.
type FieldWriter interface {
	GetOrganizationField(key string) (*M.ZendeskOrganizationField, error)
	UpdateOrganizationField(field *M.ZendeskOrganizationField) (*M.ZendeskOrganizationField, error)
}

// Mapping binds one source picklist to one target organization field.
type Mapping struct {
	ObjectName string
	FieldName  string
	TargetKey  string
	Prefix     string
}

// DefaultMappings are the picklists mirrored onto target fields.
var DefaultMappings = []Mapping{
	{ObjectName: M.SalesforceObjectTypeNameProject, FieldName: "Products__c",
		TargetKey: "products", Prefix: "product"},
	{ObjectName: M.SalesforceObjectTypeNameProject, FieldName: "Development_Platform_s__c",
		TargetKey: "development_platforms", Prefix: "platform"},
	{ObjectName: M.SalesforceObjectTypeNameOpportunity, FieldName: "Territory__c",
		TargetKey: "territory_code", Prefix: "territorycode"},
}

// Status is the per-mapping outcome of one field sync run.
type Status struct {
	TargetKey string `json:"target_key"`
	Options   int    `json:"options,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Driver mirrors CRM picklist options onto target organization fields so
// agents always see the current option set.
type Driver struct {
	Source PicklistReader
	Target FieldWriter
}

func NewDriver(source PicklistReader, target FieldWriter) *Driver {
	return &Driver{Source: source, Target: target}
}

// NormalizeOptionValue builds the stored option value from a picklist
// label. The label is lowercased, non-alphanumeric runs collapse to a
// single underscore and the prefix namespaces the value per field.
func NormalizeOptionValue(prefix, label string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(label) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if alnum {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	value := strings.Trim(b.String(), "_")
	if prefix != "" {
		value = prefix + "_" + value
	}
	return U.TrimToLength(value, maxOptionValueLength)
}

// SyncFields runs every mapping, reporting per-mapping failures instead of
// aborting the run.
func (d *Driver) SyncFields(mappings []Mapping) ([]Status, bool) {
	statuses := make([]Status, 0, len(mappings))
	hasFailure := false
	for _, mapping := range mappings {
		status := d.syncField(mapping)
		if status.Message != "" {
			hasFailure = true
		}
		statuses = append(statuses, status)
	}
	return statuses, hasFailure
}

func (d *Driver) syncField(mapping Mapping) Status {
	status := Status{TargetKey: mapping.TargetKey}
	logCtx := log.WithFields(log.Fields{"object": mapping.ObjectName,
		"field": mapping.FieldName, "target_key": mapping.TargetKey})

	values, err := d.Source.GetPicklistValues(mapping.ObjectName, mapping.FieldName)
	if err != nil {
		logCtx.WithError(err).Error("Failed to get picklist values.")
		status.Message = err.Error()
		return status
	}

	options := make([]M.ZendeskOrganizationFieldOption, 0, len(values))
	seen := map[string]bool{}
	for _, value := range values {
		label := value.Label
		// AI is the legacy label of the navigation product.
		if label == "AI" {
			label = "Navigation"
		}

		normalized := NormalizeOptionValue(mapping.Prefix, label)
		if normalized == "" || normalized == mapping.Prefix+"_" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		options = append(options, M.ZendeskOrganizationFieldOption{
			Name:  label,
			Value: normalized,
		})
	}

	if len(options) == 0 {
		logCtx.Warn("Picklist produced no options, leaving field untouched.")
		status.Message = "picklist produced no options"
		return status
	}

	updated, err := d.Target.UpdateOrganizationField(&M.ZendeskOrganizationField{
		Key:                mapping.TargetKey,
		CustomFieldOptions: options,
	})
	if err != nil {
		logCtx.WithError(err).Error("Failed to update organization field.")
		status.Message = err.Error()
		return status
	}

	status.Options = len(updated.CustomFieldOptions)
	logCtx.WithField("options", status.Options).Info("Organization field synced.")
	return status
}
