package store

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/HarryGifford/entra-object-sync/filestore"
	M "github.com/HarryGifford/entra-object-sync/model"
)

const (
	SnapshotKindOrganizations = "organizations"
	SnapshotKindUsers         = "users"

	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Exporter writes dated snapshots of the target system's state, so a sync
// run's inputs and outputs can be inspected after the fact.
type Exporter struct {
	Files filestore.FileManager
}

func NewExporter(files filestore.FileManager) *Exporter {
	return &Exporter{Files: files}
}

func (e *Exporter) write(kind, format string, payload []byte) error {
	date := time.Now().UTC().Format("2006-01-02T15-04-05")
	dir, fileName := e.Files.GetSnapshotPathAndName(kind, date, format)

	if err := e.Files.Create(dir, fileName, bytes.NewReader(payload)); err != nil {
		return errors.Wrapf(err, "failed to write %s snapshot", kind)
	}
	log.WithFields(log.Fields{"kind": kind, "file": fileName,
		"bytes": len(payload)}).Info("Snapshot written.")
	return nil
}

// ExportOrganizationsJSON writes the full organization records.
func (e *Exporter) ExportOrganizationsJSON(orgs []M.ZendeskOrganization) error {
	payload, err := json.MarshalIndent(orgs, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode organizations")
	}
	return e.write(SnapshotKindOrganizations, FormatJSON, payload)
}

// ExportOrganizationsCSV writes a flat per-organization table.
func (e *Exporter) ExportOrganizationsCSV(orgs []M.ZendeskOrganization) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"id", "name", "external_id", "group_id", "tags",
		"service_level_agreement", "salesforce_project_id", "sdk_version"}
	if err := w.Write(header); err != nil {
		return err
	}

	for i := range orgs {
		org := &orgs[i]
		groupID := ""
		if org.GroupID != nil {
			groupID = strconv.FormatInt(*org.GroupID, 10)
		}
		row := []string{
			strconv.FormatInt(org.ID, 10),
			org.Name,
			org.ExternalID,
			groupID,
			strings.Join(org.Tags, ";"),
			fieldString(org.OrganizationFields, "service_level_agreement"),
			fieldString(org.OrganizationFields, "salesforce_project_id"),
			fieldString(org.OrganizationFields, "sdk_version"),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return e.write(SnapshotKindOrganizations, FormatCSV, buf.Bytes())
}

// ExportUsersJSON writes the full user records.
func (e *Exporter) ExportUsersJSON(users []M.ZendeskUser) error {
	payload, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode users")
	}
	return e.write(SnapshotKindUsers, FormatJSON, payload)
}

// ExportUsersCSV writes a flat per-user table.
func (e *Exporter) ExportUsersCSV(users []M.ZendeskUser) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"id", "name", "email", "external_id", "role",
		"suspended", "organization_id", "salesforce_contact_id"}
	if err := w.Write(header); err != nil {
		return err
	}

	for i := range users {
		user := &users[i]
		row := []string{
			strconv.FormatInt(user.ID, 10),
			user.Name,
			user.Email,
			user.ExternalID,
			user.Role,
			strconv.FormatBool(user.Suspended),
			strconv.FormatInt(user.OrganizationID, 10),
			fieldString(user.UserFields, "salesforce_contact_id"),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return e.write(SnapshotKindUsers, FormatCSV, buf.Bytes())
}

func fieldString(fields map[string]interface{}, key string) string {
	value, ok := fields[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}
