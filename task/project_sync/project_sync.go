package project_sync

import (
	"strconv"

	log "github.com/sirupsen/logrus"

	M "github.com/HarryGifford/entra-object-sync/model"
	"github.com/HarryGifford/entra-object-sync/sync"
	U "github.com/HarryGifford/entra-object-sync/util"
)

// SourceReader is the slice of the CRM client this driver consumes.
type SourceReader interface {
	GetProjectsByIDs(ids []string) ([]M.SalesforceProject, error)
	ListLinkedProjects() ([]M.SalesforceProject, error)
	GetContactsByOpportunityIDs(opportunityIDs []string) (map[string][]M.SalesforceContact, error)
	UpdateRecord(objectName, recordID string, fields map[string]interface{}) error
}

// Status is the per-project outcome of one sync run.
type Status struct {
	ProjectID      string            `json:"project_id"`
	OrganizationID int64             `json:"organization_id,omitempty"`
	Memberships    *sync.SyncSummary `json:"memberships,omitempty"`
	Skipped        bool              `json:"skipped,omitempty"`
	Message        string            `json:"message,omitempty"`
}

// Driver syncs CRM projects into target organizations, users and
// memberships.
type Driver struct {
	Source     SourceReader
	Reconciler *sync.Reconciler
	Lock       *sync.EntityLock
}

func NewDriver(source SourceReader, reconciler *sync.Reconciler, lock *sync.EntityLock) *Driver {
	return &Driver{Source: source, Reconciler: reconciler, Lock: lock}
}

// SyncProjects syncs the given project ids. An empty id list syncs every
// project already linked to an organization. Per-project failures are
// reported in the status list, not returned.
func (d *Driver) SyncProjects(projectIDs []string) ([]Status, bool) {
	var projects []M.SalesforceProject
	var err error
	if len(projectIDs) > 0 {
		projects, err = d.Source.GetProjectsByIDs(projectIDs)
	} else {
		projects, err = d.Source.ListLinkedProjects()
	}
	if err != nil {
		log.WithError(err).Error("Failed to fetch projects.")
		return []Status{{Message: err.Error()}}, true
	}

	contactsByOpportunity, err := d.fetchContacts(projects)
	if err != nil {
		log.WithError(err).Error("Failed to fetch contacts.")
		return []Status{{Message: err.Error()}}, true
	}

	d.preloadTargetIDs(projects, contactsByOpportunity)

	statuses := make([]Status, 0, len(projects))
	hasFailure := false
	for i := range projects {
		status := d.syncProject(&projects[i], contactsByOpportunity)
		if status.Message != "" && !status.Skipped {
			hasFailure = true
		}
		statuses = append(statuses, status)
	}
	return statuses, hasFailure
}

func (d *Driver) fetchContacts(projects []M.SalesforceProject) (map[string][]M.SalesforceContact, error) {
	var opportunityIDs []string
	for i := range projects {
		if projects[i].PrimaryOpportunityID != "" {
			opportunityIDs = append(opportunityIDs, projects[i].PrimaryOpportunityID)
		}
	}
	// Projects can share an opportunity.
	return d.Source.GetContactsByOpportunityIDs(U.UniqueStrings(opportunityIDs))
}

// preloadTargetIDs warms the run context with every id the run will touch
// so per-project reconciliation avoids single lookups. Failures here only
// cost extra lookups later.
func (d *Driver) preloadTargetIDs(projects []M.SalesforceProject,
	contactsByOpportunity map[string][]M.SalesforceContact) {

	projectIDs := make([]string, 0, len(projects))
	for i := range projects {
		projectIDs = append(projectIDs, projects[i].ID)
	}
	if err := d.Reconciler.PopulateOrganizationIDs(projectIDs); err != nil {
		log.WithError(err).Warn("Failed to preload organization ids.")
	}

	var contactIDs []string
	for _, contacts := range contactsByOpportunity {
		for i := range contacts {
			contactIDs = append(contactIDs, contacts[i].ID)
		}
	}
	if err := d.Reconciler.PopulateUserIDs(contactIDs); err != nil {
		log.WithError(err).Warn("Failed to preload user ids.")
	}
}

func (d *Driver) syncProject(project *M.SalesforceProject,
	contactsByOpportunity map[string][]M.SalesforceContact) Status {

	status := Status{ProjectID: project.ID}
	logCtx := log.WithField("project_id", project.ID)

	release, ok := d.Lock.Acquire("project", project.ID)
	if !ok {
		status.Skipped = true
		status.Message = "project is being synced by another run"
		return status
	}
	defer release()

	desired, err := sync.OrganizationFromProject(project)
	if err != nil {
		logCtx.WithError(err).Error("Failed to map project.")
		status.Message = err.Error()
		return status
	}

	orgID, err := d.Reconciler.ReconcileOrganization(desired)
	if err != nil {
		logCtx.WithError(err).Error("Failed to reconcile organization.")
		status.Message = err.Error()
		return status
	}
	status.OrganizationID = orgID

	d.writeBackOrganizationID(project, orgID)

	contacts := contactsByOpportunity[project.PrimaryOpportunityID]
	sources := make([]M.UserSource, 0, len(contacts))
	for i := range contacts {
		sources = append(sources, M.SourceFromContact(&contacts[i]))
	}

	resolved, err := d.Reconciler.ResolveUsers(sources)
	if err != nil {
		logCtx.WithError(err).Error("Failed to resolve users.")
		status.Message = err.Error()
		return status
	}

	d.writeBackUserIDs(contacts, resolved)

	userIDs := make([]int64, 0, len(contacts))
	for i := range contacts {
		// Departed contacts keep their user but lose the membership.
		if contacts[i].HasLeft {
			continue
		}
		if id, ok := resolved[contacts[i].ID]; ok {
			userIDs = append(userIDs, id)
		}
	}

	summary, err := d.Reconciler.ReconcileMembers(orgID, userIDs)
	if err != nil {
		logCtx.WithError(err).Error("Failed to reconcile memberships.")
		status.Message = err.Error()
		return status
	}
	status.Memberships = summary

	logCtx.WithFields(log.Fields{"organization_id": orgID, "added": summary.Added,
		"removed": summary.Removed, "failed": summary.Failed}).Info("Project synced.")
	return status
}

// writeBackOrganizationID stamps the target organization id onto the source
// project when it is missing or stale.
func (d *Driver) writeBackOrganizationID(project *M.SalesforceProject, orgID int64) {
	id := strconv.FormatInt(orgID, 10)
	if project.ZendeskOrganizationID == id {
		return
	}

	err := d.Source.UpdateRecord(M.SalesforceObjectTypeNameProject, project.ID,
		map[string]interface{}{"Zendesk_organization_id__c": id})
	if err != nil {
		log.WithFields(log.Fields{"project_id": project.ID,
			"organization_id": orgID}).WithError(err).Warn("Failed to write back organization id.")
		return
	}
	project.ZendeskOrganizationID = id
}

func (d *Driver) writeBackUserIDs(contacts []M.SalesforceContact, resolved map[string]int64) {
	for i := range contacts {
		userID, ok := resolved[contacts[i].ID]
		if !ok {
			continue
		}
		id := strconv.FormatInt(userID, 10)
		if contacts[i].ZendeskUserID == id {
			continue
		}

		err := d.Source.UpdateRecord(M.SalesforceObjectTypeNameContact, contacts[i].ID,
			map[string]interface{}{"Zendesk_user_id__c": id})
		if err != nil {
			log.WithFields(log.Fields{"contact_id": contacts[i].ID,
				"user_id": userID}).WithError(err).Warn("Failed to write back user id.")
			continue
		}
		contacts[i].ZendeskUserID = id
	}
}
