package sync

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	M "github.com/HarryGifford/entra-object-sync/model"
)

// fakeTarget is an in-memory target system tracking write calls, so tests
// can assert convergence makes no further writes.
type fakeTarget struct {
	orgs        map[int64]*M.ZendeskOrganization
	users       map[int64]*M.ZendeskUser
	memberships map[int64]*M.ZendeskOrganizationMembership

	nextOrgID        int64
	nextUserID       int64
	nextMembershipID int64

	orgCreates   int
	orgUpdates   int
	userCreates  int
	userUpdates  int
	bulkUserJobs int
	addJobs      int
	removeJobs   int
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		orgs:             map[int64]*M.ZendeskOrganization{},
		users:            map[int64]*M.ZendeskUser{},
		memberships:      map[int64]*M.ZendeskOrganizationMembership{},
		nextOrgID:        100,
		nextUserID:       9000,
		nextMembershipID: 500,
	}
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
			return nil, &ConflictError{Kind: "organization", Key: org.Name}
		}
	}
	f.orgCreates++
	created := *org
	created.ID = f.nextOrgID
	f.nextOrgID++
	f.orgs[created.ID] = &created
	return &created, nil
}

func (f *fakeTarget) UpdateOrganization(org *M.ZendeskOrganization) (*M.ZendeskOrganization, error) {
	existing, ok := f.orgs[org.ID]
	if !ok {
		return nil, &NotFoundError{Kind: "organization", Key: fmt.Sprint(org.ID)}
	}
	f.orgUpdates++
	updated := *org
	if updated.Name == "" {
		updated.Name = existing.Name
	}
	f.orgs[org.ID] = &updated
	return &updated, nil
}

func (f *fakeTarget) CreateUser(user *M.ZendeskUser) (*M.ZendeskUser, error) {
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return nil, &ConflictError{Kind: "user", Key: user.Email}
		}
	}
	f.userCreates++
	created := *user
	created.ID = f.nextUserID
	f.nextUserID++
	f.users[created.ID] = &created
	return &created, nil
}

func (f *fakeTarget) UpdateUser(user *M.ZendeskUser) (*M.ZendeskUser, error) {
	existing, ok := f.users[user.ID]
	if !ok {
		return nil, &NotFoundError{Kind: "user", Key: fmt.Sprint(user.ID)}
	}
	f.userUpdates++
	if user.ExternalID != "" {
		existing.ExternalID = user.ExternalID
	}
	if user.Email != "" {
		existing.Email = user.Email
	}
	return existing, nil
}

func (f *fakeTarget) CreateManyUsers(users []M.ZendeskUser) (*M.ZendeskJobStatus, error) {
	f.bulkUserJobs++
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
		created.ID = f.nextUserID
		f.nextUserID++
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
		duplicate := false
		for _, existing := range f.memberships {
			if existing.UserID == memberships[i].UserID &&
				existing.OrganizationID == memberships[i].OrganizationID {
				duplicate = true
			}
		}
		if duplicate {
			job.Results = append(job.Results, M.ZendeskJobResult{
				Index: i, Status: M.ZendeskJobResultFailed, Error: "DuplicateValue",
			})
			continue
		}
		created := memberships[i]
		created.ID = f.nextMembershipID
		f.nextMembershipID++
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

func newTestReconciler(target *fakeTarget) *Reconciler {
	runner := NewJobRunner(target)
	runner.PollInterval = time.Millisecond
	return NewReconciler(target, target, runner)
}

func desiredOrg() *M.ZendeskOrganization {
	groupID := GroupDevRelEurope
	return &M.ZendeskOrganization{
		Name:           "Dauntless : Phoenix Labs",
		ExternalID:     "a06xx0000001",
		SharedTickets:  true,
		SharedComments: true,
		GroupID:        &groupID,
		Tags:           []string{TagProductPhysics},
		OrganizationFields: map[string]interface{}{
			"service_level_agreement": SLAClient,
		},
	}
}

func TestReconcileOrganizationCreates(t *testing.T) {
	target := newFakeTarget()
	r := newTestReconciler(target)

	id, err := r.ReconcileOrganization(desiredOrg())
	assert.Nil(t, err)
	assert.Equal(t, 1, target.orgCreates)
	assert.Equal(t, 0, target.orgUpdates)
	assert.Equal(t, "a06xx0000001", target.orgs[id].ExternalID)
}

func TestReconcileOrganizationIsIdempotent(t *testing.T) {
	target := newFakeTarget()

	first := newTestReconciler(target)
	_, err := first.ReconcileOrganization(desiredOrg())
	assert.Nil(t, err)

	// A second run over unchanged source data makes no write calls.
	second := newTestReconciler(target)
	assert.Nil(t, second.PopulateOrganizationIDs([]string{"a06xx0000001"}))
	_, err = second.ReconcileOrganization(desiredOrg())
	assert.Nil(t, err)

	assert.Equal(t, 1, target.orgCreates)
	assert.Equal(t, 0, target.orgUpdates)
}

func TestReconcileOrganizationUpdatesOnDrift(t *testing.T) {
	target := newFakeTarget()

	first := newTestReconciler(target)
	id, err := first.ReconcileOrganization(desiredOrg())
	assert.Nil(t, err)

	drifted := desiredOrg()
	drifted.Tags = []string{TagProductPhysics, TagProductCloth}

	second := newTestReconciler(target)
	assert.Nil(t, second.PopulateOrganizationIDs([]string{"a06xx0000001"}))
	updatedID, err := second.ReconcileOrganization(drifted)
	assert.Nil(t, err)
	assert.Equal(t, id, updatedID)
	assert.Equal(t, 1, target.orgUpdates)
	assert.ElementsMatch(t, drifted.Tags, target.orgs[id].Tags)
}

func TestReconcileOrganizationAdoptsOnConflict(t *testing.T) {
	target := newFakeTarget()

	// Pre-existing organization with the same name but no external id, as
	// left behind by a manual create.
	target.orgs[42] = &M.ZendeskOrganization{ID: 42, Name: "Dauntless : Phoenix Labs"}

	r := newTestReconciler(target)
	id, err := r.ReconcileOrganization(desiredOrg())
	assert.Nil(t, err)
	assert.Equal(t, int64(42), id)

	// The adopted record got the external id stamped on.
	assert.Equal(t, 0, target.orgCreates)
	assert.Equal(t, 1, target.orgUpdates)
	assert.Equal(t, "a06xx0000001", target.orgs[42].ExternalID)
}

func TestResolveUsersCreatesAndAdopts(t *testing.T) {
	target := newFakeTarget()

	// jamie already exists in the target under a different external id.
	target.users[9900] = &M.ZendeskUser{ID: 9900, Email: "jamie@phoenix.gg", ExternalID: "stale"}

	r := newTestReconciler(target)
	sources := []M.UserSource{
		M.SourceFromContact(&M.SalesforceContact{ID: "003a", Name: "Jamie Vo", Email: "jamie@phoenix.gg"}),
		M.SourceFromContact(&M.SalesforceContact{ID: "003b", Name: "Riley Mann", Email: "riley@phoenix.gg"}),
		M.SourceFromContact(&M.SalesforceContact{ID: "003c", Name: "No Email"}),
	}

	resolved, err := r.ResolveUsers(sources)
	assert.Nil(t, err)

	// riley was created, jamie adopted by email, the unmappable one skipped.
	assert.Len(t, resolved, 2)
	assert.Equal(t, int64(9900), resolved["003a"])
	assert.Equal(t, "003a", target.users[9900].ExternalID)
	assert.NotZero(t, resolved["003b"])

	// A rerun resolves everything from the preloaded context without a job.
	second := newTestReconciler(target)
	assert.Nil(t, second.PopulateUserIDs([]string{"003a", "003b"}))
	jobsBefore := target.bulkUserJobs
	resolvedAgain, err := second.ResolveUsers(sources[:2])
	assert.Nil(t, err)
	assert.Equal(t, resolved["003a"], resolvedAgain["003a"])
	assert.Equal(t, resolved["003b"], resolvedAgain["003b"])
	assert.Equal(t, jobsBefore, target.bulkUserJobs)
}

func TestReconcileMembersConverges(t *testing.T) {
	target := newFakeTarget()
	orgID := int64(77)
	target.memberships[1] = &M.ZendeskOrganizationMembership{ID: 1, UserID: 1001, OrganizationID: orgID}
	target.memberships[2] = &M.ZendeskOrganizationMembership{ID: 2, UserID: 1002, OrganizationID: orgID}
	target.memberships[3] = &M.ZendeskOrganizationMembership{ID: 3, UserID: 1003, OrganizationID: orgID}

	r := newTestReconciler(target)
	summary, err := r.ReconcileMembers(orgID, []int64{1002, 1003, 1004})
	assert.Nil(t, err)

	// {1001,1002,1003} -> {1002,1003,1004}: add 1004, remove 1001.
	assert.Equal(t, 1, summary.Added)
	assert.Equal(t, 1, summary.Removed)
	assert.Equal(t, 0, summary.Failed)

	remaining := map[int64]bool{}
	for _, membership := range target.memberships {
		if membership.OrganizationID == orgID {
			remaining[membership.UserID] = true
		}
	}
	assert.Equal(t, map[int64]bool{1002: true, 1003: true, 1004: true}, remaining)

	// The converged state needs no further jobs.
	addJobs, removeJobs := target.addJobs, target.removeJobs
	summary, err = r.ReconcileMembers(orgID, []int64{1002, 1003, 1004})
	assert.Nil(t, err)
	assert.Equal(t, 0, summary.Added+summary.Removed+summary.Failed)
	assert.Equal(t, addJobs, target.addJobs)
	assert.Equal(t, removeJobs, target.removeJobs)
}

func TestReconcileMembersDuplicateAddCountsAsAdded(t *testing.T) {
	target := newFakeTarget()
	orgID := int64(77)
	target.memberships[1] = &M.ZendeskOrganizationMembership{ID: 1, UserID: 1001, OrganizationID: orgID}

	r := newTestReconciler(target)

	// Force the add path to hit the duplicate branch by bypassing the
	// actual-state read.
	results, err := r.Runner.SubmitAndAwait(1, func(lo, hi int) (*M.ZendeskJobStatus, error) {
		return target.CreateManyMemberships([]M.ZendeskOrganizationMembership{
			{UserID: 1001, OrganizationID: orgID},
		})
	})
	assert.Nil(t, err)
	assert.True(t, results[0].Duplicate)
}

func TestReconcileUserSingle(t *testing.T) {
	target := newFakeTarget()
	r := newTestReconciler(target)

	source := M.SourceFromGraphUser(&M.GraphUser{
		ID: "f2a1", DisplayName: "Riley Mann", Mail: "riley@studio.gg",
	})

	id, err := r.ReconcileUser(source)
	assert.Nil(t, err)
	assert.Equal(t, 1, target.userCreates)
	assert.Equal(t, "f2a1", target.users[id].ExternalID)

	// Same source again is an in-place update, not a second create.
	again, err := r.ReconcileUser(source)
	assert.Nil(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, 1, target.userCreates)
	assert.Equal(t, 1, target.userUpdates)
}

func TestReconcileUserAdoptsConflict(t *testing.T) {
	target := newFakeTarget()
	target.users[9900] = &M.ZendeskUser{ID: 9900, Email: "riley@studio.gg"}

	r := newTestReconciler(target)
	id, err := r.ReconcileUser(M.SourceFromGraphUser(&M.GraphUser{
		ID: "f2a1", DisplayName: "Riley Mann", Mail: "riley@studio.gg",
	}))
	assert.Nil(t, err)
	assert.Equal(t, int64(9900), id)
	assert.Equal(t, "f2a1", target.users[9900].ExternalID)
	assert.Equal(t, 0, target.userCreates)
}
