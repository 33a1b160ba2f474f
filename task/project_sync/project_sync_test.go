package project_sync

import (
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	M "github.com/HarryGifford/entra-object-sync/model"
	"github.com/HarryGifford/entra-object-sync/sync"
)

// fakeSource serves canned projects and contacts and records every
// UpdateRecord call, so tests can assert the id write-backs.
type fakeSource struct {
	projects map[string]*M.SalesforceProject
	contacts map[string][]M.SalesforceContact

	updates []string
}

func (f *fakeSource) GetProjectsByIDs(ids []string) ([]M.SalesforceProject, error) {
	var out []M.SalesforceProject
	for _, id := range ids {
		if project, ok := f.projects[id]; ok {
			out = append(out, *project)
		}
	}
	return out, nil
}

func (f *fakeSource) ListLinkedProjects() ([]M.SalesforceProject, error) {
	var out []M.SalesforceProject
	for _, project := range f.projects {
		if project.ZendeskOrganizationID != "" {
			out = append(out, *project)
		}
	}
	return out, nil
}

func (f *fakeSource) GetContactsByOpportunityIDs(opportunityIDs []string) (map[string][]M.SalesforceContact, error) {
	out := map[string][]M.SalesforceContact{}
	for _, id := range opportunityIDs {
		if contacts, ok := f.contacts[id]; ok {
			out[id] = contacts
		}
	}
	return out, nil
}

func (f *fakeSource) UpdateRecord(objectName, recordID string, fields map[string]interface{}) error {
	for field, value := range fields {
		f.updates = append(f.updates, fmt.Sprintf("%s:%s:%s=%v", objectName, recordID, field, value))
	}
	if objectName == M.SalesforceObjectTypeNameProject {
		if project, ok := f.projects[recordID]; ok {
			if id, ok := fields["Zendesk_organization_id__c"].(string); ok {
				project.ZendeskOrganizationID = id
			}
		}
	}
	if objectName == M.SalesforceObjectTypeNameContact {
		for opportunityID := range f.contacts {
			for i := range f.contacts[opportunityID] {
				if f.contacts[opportunityID][i].ID != recordID {
					continue
				}
				if id, ok := fields["Zendesk_user_id__c"].(string); ok {
					f.contacts[opportunityID][i].ZendeskUserID = id
				}
			}
		}
	}
	return nil
}

// fakeTarget is a minimal in-memory target, enough for the driver flow.
type fakeTarget struct {
	orgs        map[int64]*M.ZendeskOrganization
	users       map[int64]*M.ZendeskUser
	memberships map[int64]*M.ZendeskOrganizationMembership

	nextID int64

	orgCreates  int
	orgUpdates  int
	userJobs    int
	addJobs     int
	removeJobs  int
	userUpdates int
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		orgs:        map[int64]*M.ZendeskOrganization{},
		users:       map[int64]*M.ZendeskUser{},
		memberships: map[int64]*M.ZendeskOrganizationMembership{},
		nextID:      1000,
	}
}

func (f *fakeTarget) allocate() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeTarget) GetOrganizationsByExternalIDs(externalIDs []string) ([]M.ZendeskOrganization, error) {
	var out []M.ZendeskOrganization
	for _, externalID := range externalIDs {
		for _, org := range f.orgs {
			if org.ExternalID == externalID {
				out = append(out, *org)
			}
		}
	}
	return out, nil
}

func (f *fakeTarget) SearchOrganizationsByName(name string) ([]M.ZendeskOrganization, error) {
	var out []M.ZendeskOrganization
	for _, org := range f.orgs {
		if org.Name == name {
			out = append(out, *org)
		}
	}
	return out, nil
}

func (f *fakeTarget) GetUsersByExternalIDs(externalIDs []string) ([]M.ZendeskUser, error) {
	var out []M.ZendeskUser
	for _, externalID := range externalIDs {
		for _, user := range f.users {
			if user.ExternalID == externalID {
				out = append(out, *user)
			}
		}
	}
	return out, nil
}

func (f *fakeTarget) SearchUsersByEmail(email string) ([]M.ZendeskUser, error) {
	var out []M.ZendeskUser
	for _, user := range f.users {
		if user.Email == email {
			out = append(out, *user)
		}
	}
	return out, nil
}

func (f *fakeTarget) ListOrganizationMemberships(orgID int64, cursor string) ([]M.ZendeskOrganizationMembership, string, error) {
	var out []M.ZendeskOrganizationMembership
	for _, membership := range f.memberships {
		if membership.OrganizationID == orgID {
			out = append(out, *membership)
		}
	}
	return out, "", nil
}

func (f *fakeTarget) CreateOrganization(org *M.ZendeskOrganization) (*M.ZendeskOrganization, error) {
	for _, existing := range f.orgs {
		if existing.Name == org.Name {
			return nil, &sync.ConflictError{Kind: "organization", Key: org.Name}
		}
	}
	f.orgCreates++
	created := *org
	created.ID = f.allocate()
	f.orgs[created.ID] = &created
	return &created, nil
}

func (f *fakeTarget) UpdateOrganization(org *M.ZendeskOrganization) (*M.ZendeskOrganization, error) {
	if _, ok := f.orgs[org.ID]; !ok {
		return nil, &sync.NotFoundError{Kind: "organization", Key: strconv.FormatInt(org.ID, 10)}
	}
	f.orgUpdates++
	updated := *org
	f.orgs[org.ID] = &updated
	return &updated, nil
}

func (f *fakeTarget) CreateUser(user *M.ZendeskUser) (*M.ZendeskUser, error) {
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return nil, &sync.ConflictError{Kind: "user", Key: user.Email}
		}
	}
	created := *user
	created.ID = f.allocate()
	f.users[created.ID] = &created
	return &created, nil
}

func (f *fakeTarget) UpdateUser(user *M.ZendeskUser) (*M.ZendeskUser, error) {
	existing, ok := f.users[user.ID]
	if !ok {
		return nil, &sync.NotFoundError{Kind: "user", Key: strconv.FormatInt(user.ID, 10)}
	}
	f.userUpdates++
	if user.ExternalID != "" {
		existing.ExternalID = user.ExternalID
	}
	return existing, nil
}

func (f *fakeTarget) CreateManyUsers(users []M.ZendeskUser) (*M.ZendeskJobStatus, error) {
	f.userJobs++
	job := &M.ZendeskJobStatus{ID: "users", Status: M.ZendeskJobStatusCompleted}
	for i := range users {
		duplicate := false
		for _, existing := range f.users {
			if existing.Email == users[i].Email {
				duplicate = true
			}
		}
		if duplicate {
			job.Results = append(job.Results, M.ZendeskJobResult{
				Index: i, Status: M.ZendeskJobResultFailed, Error: "DuplicateValue",
			})
			continue
		}
		created := users[i]
		created.ID = f.allocate()
		f.users[created.ID] = &created
		job.Results = append(job.Results, M.ZendeskJobResult{
			Index: i, ID: created.ID, Status: M.ZendeskJobResultCreated,
		})
	}
	return job, nil
}

func (f *fakeTarget) CreateManyMemberships(memberships []M.ZendeskOrganizationMembership) (*M.ZendeskJobStatus, error) {
	f.addJobs++
	job := &M.ZendeskJobStatus{ID: "memberships", Status: M.ZendeskJobStatusCompleted}
	for i := range memberships {
		created := memberships[i]
		created.ID = f.allocate()
		f.memberships[created.ID] = &created
		job.Results = append(job.Results, M.ZendeskJobResult{
			Index: i, ID: created.ID, Status: M.ZendeskJobResultCreated,
		})
	}
	return job, nil
}

func (f *fakeTarget) DestroyManyMemberships(membershipIDs []int64) (*M.ZendeskJobStatus, error) {
	f.removeJobs++
	job := &M.ZendeskJobStatus{ID: "destroy", Status: M.ZendeskJobStatusCompleted}
	for i, id := range membershipIDs {
		delete(f.memberships, id)
		job.Results = append(job.Results, M.ZendeskJobResult{
			Index: i, ID: id, Status: M.ZendeskJobResultUpdated,
		})
	}
	return job, nil
}

func (f *fakeTarget) GetJobStatus(jobID string) (*M.ZendeskJobStatus, error) {
	return &M.ZendeskJobStatus{ID: jobID, Status: M.ZendeskJobStatusCompleted}, nil
}

func newTestDriver(source *fakeSource, target *fakeTarget) *Driver {
	runner := sync.NewJobRunner(target)
	runner.PollInterval = time.Millisecond
	reconciler := sync.NewReconciler(target, target, runner)
	return NewDriver(source, reconciler, sync.NewEntityLock(nil))
}

func newTestSource() *fakeSource {
	return &fakeSource{
		projects: map[string]*M.SalesforceProject{
			"a06xx0000001": {
				ID:                      "a06xx0000001",
				Name:                    "Dauntless",
				PrimaryOpportunityID:    "006xx0000001",
				SupportManagementStatus: "With DevRel - Active AM",
				Products:                "Physics",
				Developer:               &M.SalesforceAccount{ID: "001d", Name: "Phoenix Labs"},
				PrimaryOpportunity: &M.SalesforceOpportunity{ID: "006xx0000001",
					Territory: "EMEA"},
			},
		},
		contacts: map[string][]M.SalesforceContact{
			"006xx0000001": {
				{ID: "003a", Name: "Alice Doe", Email: "alice@example.com"},
				{ID: "003b", Name: "Bob Gone", Email: "bob@example.com", HasLeft: true},
			},
		},
	}
}

func TestSyncProjectsCreatesAndWritesBack(t *testing.T) {
	source := newTestSource()
	target := newFakeTarget()
	driver := newTestDriver(source, target)

	statuses, hasFailure := driver.SyncProjects([]string{"a06xx0000001"})
	assert.False(t, hasFailure)
	assert.Len(t, statuses, 1)
	assert.NotZero(t, statuses[0].OrganizationID)

	orgID := statuses[0].OrganizationID
	assert.Equal(t, 1, target.orgCreates)
	assert.Equal(t, "a06xx0000001", target.orgs[orgID].ExternalID)

	// Both contacts got users and stamped ids, but only the active one a
	// membership.
	assert.Len(t, target.users, 2)
	if assert.NotNil(t, statuses[0].Memberships) {
		assert.Equal(t, 1, statuses[0].Memberships.Added)
		assert.Equal(t, 0, statuses[0].Memberships.Removed)
	}
	assert.Len(t, target.memberships, 1)
	for _, membership := range target.memberships {
		assert.Equal(t, orgID, membership.OrganizationID)
		assert.Equal(t, "alice@example.com", target.users[membership.UserID].Email)
	}

	id := strconv.FormatInt(orgID, 10)
	assert.Contains(t, source.updates,
		"Project__c:a06xx0000001:Zendesk_organization_id__c="+id)
	assert.Equal(t, id, source.projects["a06xx0000001"].ZendeskOrganizationID)
	for _, contact := range source.contacts["006xx0000001"] {
		assert.NotEmpty(t, contact.ZendeskUserID)
	}
}

func TestSyncProjectsSecondRunMakesNoWrites(t *testing.T) {
	source := newTestSource()
	target := newFakeTarget()

	_, hasFailure := newTestDriver(source, target).SyncProjects([]string{"a06xx0000001"})
	assert.False(t, hasFailure)
	updateCalls := len(source.updates)

	// Fresh driver, unchanged source. Everything converged on the first
	// pass, so only the preloads and diff reads happen.
	_, hasFailure = newTestDriver(source, target).SyncProjects([]string{"a06xx0000001"})
	assert.False(t, hasFailure)

	assert.Equal(t, 1, target.orgCreates)
	assert.Equal(t, 0, target.orgUpdates)
	assert.Equal(t, 1, target.userJobs)
	assert.Equal(t, 1, target.addJobs)
	assert.Equal(t, 0, target.removeJobs)
	assert.Equal(t, updateCalls, len(source.updates))
}

func TestSyncProjectsEmptyListSyncsLinkedProjects(t *testing.T) {
	source := newTestSource()
	target := newFakeTarget()

	_, hasFailure := newTestDriver(source, target).SyncProjects([]string{"a06xx0000001"})
	assert.False(t, hasFailure)

	statuses, hasFailure := newTestDriver(source, target).SyncProjects(nil)
	assert.False(t, hasFailure)
	assert.Len(t, statuses, 1)
	assert.Equal(t, "a06xx0000001", statuses[0].ProjectID)
}

func TestSyncProjectsReportsMappingFailure(t *testing.T) {
	source := newTestSource()
	source.projects["a06xx0000001"].Name = ""
	source.projects["a06xx0000001"].Developer = nil
	target := newFakeTarget()

	statuses, hasFailure := newTestDriver(source, target).SyncProjects([]string{"a06xx0000001"})
	assert.True(t, hasFailure)
	assert.Len(t, statuses, 1)
	assert.NotEmpty(t, statuses[0].Message)
	assert.Equal(t, 0, target.orgCreates)
}
