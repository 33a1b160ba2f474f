package sync

import (
	"reflect"

	log "github.com/sirupsen/logrus"

	M "github.com/HarryGifford/entra-object-sync/model"
)

// TargetReader is the read capability of the target system.
type TargetReader interface {
	GetOrganizationsByExternalIDs(externalIDs []string) ([]M.ZendeskOrganization, error)
	SearchOrganizationsByName(name string) ([]M.ZendeskOrganization, error)
	GetUsersByExternalIDs(externalIDs []string) ([]M.ZendeskUser, error)
	SearchUsersByEmail(email string) ([]M.ZendeskUser, error)
	ListOrganizationMemberships(orgID int64, cursor string) ([]M.ZendeskOrganizationMembership, string, error)
}

// TargetWriter is the write capability of the target system. Create calls
// return a ConflictError on uniqueness rejection.
type TargetWriter interface {
	CreateOrganization(org *M.ZendeskOrganization) (*M.ZendeskOrganization, error)
	UpdateOrganization(org *M.ZendeskOrganization) (*M.ZendeskOrganization, error)
	CreateUser(user *M.ZendeskUser) (*M.ZendeskUser, error)
	UpdateUser(user *M.ZendeskUser) (*M.ZendeskUser, error)
	CreateManyUsers(users []M.ZendeskUser) (*M.ZendeskJobStatus, error)
	CreateManyMemberships(memberships []M.ZendeskOrganizationMembership) (*M.ZendeskJobStatus, error)
	DestroyManyMemberships(membershipIDs []int64) (*M.ZendeskJobStatus, error)
}

// SyncSummary reports the mutations of one membership reconciliation.
type SyncSummary struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

// Reconciler drives one entity at a time to convergence with the target
// system. All id state lives in the run-scoped SyncContext.
type Reconciler struct {
	Reader TargetReader
	Writer TargetWriter
	Runner *JobRunner
	Ctx    *SyncContext

	// Organizations fetched during this run, keyed by external id, kept so
	// the convergence diff does not refetch per entity.
	orgCache map[string]*M.ZendeskOrganization
}

func NewReconciler(reader TargetReader, writer TargetWriter, runner *JobRunner) *Reconciler {
	return &Reconciler{
		Reader:   reader,
		Writer:   writer,
		Runner:   runner,
		Ctx:      NewSyncContext(),
		orgCache: map[string]*M.ZendeskOrganization{},
	}
}

// PopulateOrganizationIDs preloads the external-id to organization-id map
// for a run, chunked to the lookup endpoint limit.
func (r *Reconciler) PopulateOrganizationIDs(externalIDs []string) error {
	for lo := 0; lo < len(externalIDs); lo += DefaultChunkSize {
		hi := lo + DefaultChunkSize
		if hi > len(externalIDs) {
			hi = len(externalIDs)
		}

		orgs, err := r.Reader.GetOrganizationsByExternalIDs(externalIDs[lo:hi])
		if err != nil {
			return err
		}
		for i := range orgs {
			r.Ctx.SetOrganizationID(orgs[i].ExternalID, orgs[i].ID)
			r.orgCache[orgs[i].ExternalID] = &orgs[i]
		}
	}
	return nil
}

// PopulateUserIDs preloads the external-id to user-id map for a run.
func (r *Reconciler) PopulateUserIDs(externalIDs []string) error {
	for lo := 0; lo < len(externalIDs); lo += DefaultChunkSize {
		hi := lo + DefaultChunkSize
		if hi > len(externalIDs) {
			hi = len(externalIDs)
		}

		users, err := r.Reader.GetUsersByExternalIDs(externalIDs[lo:hi])
		if err != nil {
			return err
		}
		for i := range users {
			r.Ctx.SetUserID(users[i].ExternalID, users[i].ID)
			r.Ctx.SetUserIDByEmail(users[i].Email, users[i].ID)
		}
	}
	return nil
}

// createOrLink is the shared create-or-adopt primitive. create is attempted
// first; a uniqueness conflict falls back to search on the natural key and,
// when a match is found, link stamps the external id onto the adopted
// record. A search miss after a conflict is a reported failure.
func (r *Reconciler) createOrLink(kind, key string,
	create func() (int64, error),
	search func() (int64, error),
	link func(id int64) error) (int64, error) {

	id, err := create()
	if err == nil {
		return id, nil
	}
	if !IsConflict(err) {
		return 0, err
	}

	log.WithFields(log.Fields{"kind": kind, "key": key}).
		Info("Create conflicted, adopting existing record.")

	id, err = search()
	if err != nil {
		return 0, err
	}

	if link != nil {
		if err := link(id); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// ReconcileOrganization resolves the desired organization to a target id.
// An organization already known by external id is updated only when its
// persisted shape differs, so a rerun over unchanged source data makes no
// write calls.
func (r *Reconciler) ReconcileOrganization(desired *M.ZendeskOrganization) (int64, error) {
	logCtx := log.WithFields(log.Fields{"run_id": r.Ctx.RunID,
		"external_id": desired.ExternalID, "name": desired.Name})

	actual, err := r.lookupOrganization(desired.ExternalID)
	if err != nil && !IsNotFound(err) {
		return 0, err
	}

	if actual != nil {
		r.Ctx.SetOrganizationID(desired.ExternalID, actual.ID)
		if !organizationNeedsUpdate(actual, desired) {
			logCtx.Debug("Organization already converged.")
			return actual.ID, nil
		}

		desired.ID = actual.ID
		updated, err := r.Writer.UpdateOrganization(desired)
		if err != nil {
			return 0, err
		}
		r.orgCache[desired.ExternalID] = desired
		logCtx.Info("Organization updated.")
		return updated.ID, nil
	}

	id, err := r.createOrLink("organization", desired.Name,
		func() (int64, error) {
			created, err := r.Writer.CreateOrganization(desired)
			if err != nil {
				return 0, err
			}
			logCtx.WithField("organization_id", created.ID).Info("Organization created.")
			return created.ID, nil
		},
		func() (int64, error) {
			return r.findOrganizationByName(desired.Name)
		},
		func(id int64) error {
			// Adopt the pre-existing record by stamping the external id.
			link := &M.ZendeskOrganization{
				ID:             id,
				ExternalID:     desired.ExternalID,
				SharedTickets:  desired.SharedTickets,
				SharedComments: desired.SharedComments,
			}
			_, err := r.Writer.UpdateOrganization(link)
			return err
		})
	if err != nil {
		return 0, err
	}

	desired.ID = id
	r.Ctx.SetOrganizationID(desired.ExternalID, id)
	r.orgCache[desired.ExternalID] = desired
	return id, nil
}

func (r *Reconciler) lookupOrganization(externalID string) (*M.ZendeskOrganization, error) {
	if externalID == "" {
		return nil, &NotFoundError{Kind: "organization", Key: externalID}
	}

	if org, ok := r.orgCache[externalID]; ok {
		return org, nil
	}

	orgs, err := r.Reader.GetOrganizationsByExternalIDs([]string{externalID})
	if err != nil {
		return nil, err
	}
	if len(orgs) == 0 {
		return nil, &NotFoundError{Kind: "organization", Key: externalID}
	}

	r.Ctx.SetOrganizationID(externalID, orgs[0].ID)
	r.orgCache[externalID] = &orgs[0]
	return &orgs[0], nil
}

// findOrganizationByName searches the target by name prefix and keeps only
// an exact match.
func (r *Reconciler) findOrganizationByName(name string) (int64, error) {
	orgs, err := r.Reader.SearchOrganizationsByName(name)
	if err != nil {
		return 0, err
	}
	for i := range orgs {
		if orgs[i].Name == name {
			return orgs[i].ID, nil
		}
	}
	return 0, &NotFoundError{Kind: "organization", Key: name}
}

// organizationNeedsUpdate compares the fields this system owns on the
// target record.
func organizationNeedsUpdate(actual, desired *M.ZendeskOrganization) bool {
	if actual.Name != desired.Name {
		return true
	}
	if (actual.GroupID == nil) != (desired.GroupID == nil) {
		return true
	}
	if actual.GroupID != nil && desired.GroupID != nil && *actual.GroupID != *desired.GroupID {
		return true
	}
	if !sameTags(actual.Tags, desired.Tags) {
		return true
	}
	for key, want := range desired.OrganizationFields {
		got, ok := actual.OrganizationFields[key]
		if !ok && want == nil {
			continue
		}
		if !reflect.DeepEqual(got, want) {
			return true
		}
	}
	return false
}

func sameTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, tag := range a {
		set[tag] = true
	}
	for _, tag := range b {
		if !set[tag] {
			return false
		}
	}
	return true
}

// ResolveUsers ensures every source user has a target id, creating missing
// users through the bulk endpoint and adopting duplicates by email. Users
// already known by external id are left untouched. The returned map is
// keyed by source external id.
func (r *Reconciler) ResolveUsers(sources []M.UserSource) (map[string]int64, error) {
	logCtx := log.WithField("run_id", r.Ctx.RunID)

	resolved := map[string]int64{}
	var toCreate []M.ZendeskUser
	var toCreateSource []M.UserSource

	for _, source := range sources {
		externalID := source.ExternalID()
		if id, ok := r.Ctx.UserID(externalID); ok {
			resolved[externalID] = id
			continue
		}
		if id, ok := r.Ctx.UserIDByEmail(source.Email()); ok {
			r.Ctx.SetUserID(externalID, id)
			resolved[externalID] = id
			continue
		}

		user, err := UserFromSource(source)
		if err != nil {
			logCtx.WithError(err).Warn("Skipping unmappable user.")
			continue
		}
		toCreate = append(toCreate, *user)
		toCreateSource = append(toCreateSource, source)
	}

	if len(toCreate) == 0 {
		return resolved, nil
	}

	logCtx.WithField("count", len(toCreate)).Info("Creating users.")

	results, err := r.Runner.SubmitAndAwait(len(toCreate), func(lo, hi int) (*M.ZendeskJobStatus, error) {
		return r.Writer.CreateManyUsers(toCreate[lo:hi])
	})
	if err != nil {
		return resolved, err
	}

	for i := range results {
		result := &results[i]
		if result.Index < 0 || result.Index >= len(toCreateSource) {
			logCtx.WithField("index", result.Index).Error("Job result index out of range.")
			continue
		}
		source := toCreateSource[result.Index]
		externalID := source.ExternalID()

		switch {
		case result.Status == M.ZendeskJobResultFailed && result.Duplicate:
			id, err := r.adoptUserByEmail(source)
			if err != nil {
				logCtx.WithError(err).WithField("email", source.Email()).
					Warn("Duplicate user could not be adopted.")
				continue
			}
			resolved[externalID] = id
		case result.Status == M.ZendeskJobResultFailed:
			logCtx.WithFields(log.Fields{"email": source.Email(),
				"details": result.Details}).Warn("User create failed.")
		default:
			r.Ctx.SetUserID(externalID, result.ID)
			r.Ctx.SetUserIDByEmail(source.Email(), result.ID)
			resolved[externalID] = result.ID
		}
	}

	return resolved, nil
}

// ReconcileUser resolves a single source user to a target id. A user
// already known by external id is updated in place, a new user is created
// with conflict recovery through the email natural key.
func (r *Reconciler) ReconcileUser(source M.UserSource) (int64, error) {
	desired, err := UserFromSource(source)
	if err != nil {
		return 0, err
	}

	externalID := source.ExternalID()
	logCtx := log.WithFields(log.Fields{"run_id": r.Ctx.RunID,
		"external_id": externalID, "email": source.Email()})

	if id, ok := r.Ctx.UserID(externalID); ok {
		desired.ID = id
		if _, err := r.Writer.UpdateUser(desired); err != nil {
			return 0, err
		}
		logCtx.Info("User updated.")
		return id, nil
	}

	users, err := r.Reader.GetUsersByExternalIDs([]string{externalID})
	if err != nil {
		return 0, err
	}
	if len(users) > 0 {
		desired.ID = users[0].ID
		if _, err := r.Writer.UpdateUser(desired); err != nil {
			return 0, err
		}
		r.Ctx.SetUserID(externalID, users[0].ID)
		r.Ctx.SetUserIDByEmail(source.Email(), users[0].ID)
		logCtx.Info("User updated.")
		return users[0].ID, nil
	}

	id, err := r.createOrLink("user", source.Email(),
		func() (int64, error) {
			created, err := r.Writer.CreateUser(desired)
			if err != nil {
				return 0, err
			}
			logCtx.WithField("user_id", created.ID).Info("User created.")
			return created.ID, nil
		},
		func() (int64, error) {
			return r.adoptUserByEmail(source)
		},
		nil)
	if err != nil {
		return 0, err
	}

	r.Ctx.SetUserID(externalID, id)
	r.Ctx.SetUserIDByEmail(source.Email(), id)
	return id, nil
}

// adoptUserByEmail recovers from a uniqueness conflict by searching the
// target on the user's email and linking the external id onto the match.
func (r *Reconciler) adoptUserByEmail(source M.UserSource) (int64, error) {
	email := source.Email()
	users, err := r.Reader.SearchUsersByEmail(email)
	if err != nil {
		return 0, err
	}

	for i := range users {
		if users[i].Email != email {
			continue
		}
		externalID := source.ExternalID()
		if users[i].ExternalID != externalID {
			_, err = r.Writer.UpdateUser(&M.ZendeskUser{
				ID:         users[i].ID,
				ExternalID: externalID,
			})
			if err != nil {
				return 0, err
			}
		}
		r.Ctx.SetUserID(externalID, users[i].ID)
		r.Ctx.SetUserIDByEmail(email, users[i].ID)
		return users[i].ID, nil
	}

	return 0, &NotFoundError{Kind: "user", Key: email}
}

// ReconcileMembers converges the organization's membership edges onto the
// desired user set. Edges only in desired are added, edges only in actual
// are removed, the intersection is untouched.
func (r *Reconciler) ReconcileMembers(orgID int64, desiredUserIDs []int64) (*SyncSummary, error) {
	logCtx := log.WithFields(log.Fields{"run_id": r.Ctx.RunID, "organization_id": orgID})

	actual, err := r.listMemberships(orgID)
	if err != nil {
		return nil, err
	}

	desired := make(map[int64]bool, len(desiredUserIDs))
	for _, userID := range desiredUserIDs {
		desired[userID] = true
	}

	var toAdd []M.ZendeskOrganizationMembership
	for _, userID := range desiredUserIDs {
		if _, exists := actual[userID]; !exists {
			toAdd = append(toAdd, M.ZendeskOrganizationMembership{
				UserID:         userID,
				OrganizationID: orgID,
			})
		}
	}

	var toRemove []int64
	for userID, membershipID := range actual {
		if !desired[userID] {
			toRemove = append(toRemove, membershipID)
		}
	}

	summary := &SyncSummary{}

	if len(toAdd) > 0 {
		logCtx.WithField("count", len(toAdd)).Info("Adding memberships.")
		results, err := r.Runner.SubmitAndAwait(len(toAdd), func(lo, hi int) (*M.ZendeskJobStatus, error) {
			return r.Writer.CreateManyMemberships(toAdd[lo:hi])
		})
		if err != nil {
			return summary, err
		}
		for i := range results {
			// A duplicate membership means the edge already exists.
			if results[i].Status == M.ZendeskJobResultFailed && !results[i].Duplicate {
				summary.Failed++
				continue
			}
			summary.Added++
		}
	}

	if len(toRemove) > 0 {
		logCtx.WithField("count", len(toRemove)).Info("Removing memberships.")
		results, err := r.Runner.SubmitAndAwait(len(toRemove), func(lo, hi int) (*M.ZendeskJobStatus, error) {
			return r.Writer.DestroyManyMemberships(toRemove[lo:hi])
		})
		if err != nil {
			return summary, err
		}
		for i := range results {
			if results[i].Status == M.ZendeskJobResultFailed {
				summary.Failed++
				continue
			}
			summary.Removed++
		}
	}

	return summary, nil
}

// listMemberships fetches all membership pages for the organization and
// returns the user id to membership id map.
func (r *Reconciler) listMemberships(orgID int64) (map[int64]int64, error) {
	memberships := map[int64]int64{}
	cursor := ""
	for {
		page, next, err := r.Reader.ListOrganizationMemberships(orgID, cursor)
		if err != nil {
			return nil, err
		}
		for i := range page {
			memberships[page[i].UserID] = page[i].ID
		}
		if next == "" {
			return memberships, nil
		}
		cursor = next
	}
}
