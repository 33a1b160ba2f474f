package user_provision

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	M "github.com/HarryGifford/entra-object-sync/model"
	"github.com/HarryGifford/entra-object-sync/sync"
)

// fakeDirectory is an in-memory directory keyed by id.
type fakeDirectory struct {
	users map[string]*M.GraphUser

	creates      int
	updates      int
	mailSearches int
	nextID       int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: map[string]*M.GraphUser{}}
}

func (f *fakeDirectory) GetUser(id string) (*M.GraphUser, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, &sync.NotFoundError{Kind: "directory_user", Key: id}
	}
	found := *user
	return &found, nil
}

func (f *fakeDirectory) FindUsersByMail(mail string) ([]M.GraphUser, error) {
	f.mailSearches++
	var out []M.GraphUser
	for _, user := range f.users {
		if user.Mail == mail {
			out = append(out, *user)
		}
	}
	return out, nil
}

func (f *fakeDirectory) CreateUser(user *M.GraphUser) (*M.GraphUser, error) {
	f.creates++
	f.nextID++
	created := *user
	created.ID = "entra-" + strconv.Itoa(f.nextID)
	f.users[created.ID] = &created
	return &created, nil
}

func (f *fakeDirectory) UpdateUser(user *M.GraphUser) error {
	if _, ok := f.users[user.ID]; !ok {
		return &sync.NotFoundError{Kind: "directory_user", Key: user.ID}
	}
	f.updates++
	updated := *user
	f.users[user.ID] = &updated
	return nil
}

// fakeContacts is an in-memory CRM contact table recording write-backs.
type fakeContacts struct {
	contacts map[string]*M.SalesforceContact
	updates  map[string]map[string]interface{}
}

func (f *fakeContacts) GetContactsByIDs(ids []string) ([]M.SalesforceContact, error) {
	var out []M.SalesforceContact
	for _, id := range ids {
		if contact, ok := f.contacts[id]; ok {
			out = append(out, *contact)
		}
	}
	return out, nil
}

func (f *fakeContacts) UpdateRecord(objectName, recordID string, fields map[string]interface{}) error {
	if f.updates == nil {
		f.updates = map[string]map[string]interface{}{}
	}
	f.updates[objectName+":"+recordID] = fields

	if contact, ok := f.contacts[recordID]; ok {
		if id, ok := fields["Zendesk_user_id__c"].(string); ok {
			contact.ZendeskUserID = id
		}
	}
	return nil
}

// fakeUserTarget implements the target interfaces for the user path only.
// The organization and membership methods are never reached by this driver.
type fakeUserTarget struct {
	users map[int64]*M.ZendeskUser

	creates int
	updates int
	nextID  int64
}

func newFakeUserTarget() *fakeUserTarget {
	return &fakeUserTarget{users: map[int64]*M.ZendeskUser{}, nextID: 9000}
}

func (f *fakeUserTarget) GetUsersByExternalIDs(externalIDs []string) ([]M.ZendeskUser, error) {
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

func (f *fakeUserTarget) SearchUsersByEmail(email string) ([]M.ZendeskUser, error) {
	var out []M.ZendeskUser
	for _, user := range f.users {
		if user.Email == email {
			out = append(out, *user)
		}
	}
	return out, nil
}

func (f *fakeUserTarget) CreateUser(user *M.ZendeskUser) (*M.ZendeskUser, error) {
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return nil, &sync.ConflictError{Kind: "user", Key: user.Email}
		}
	}
	f.creates++
	created := *user
	created.ID = f.nextID
	f.nextID++
	f.users[created.ID] = &created
	return &created, nil
}

func (f *fakeUserTarget) UpdateUser(user *M.ZendeskUser) (*M.ZendeskUser, error) {
	existing, ok := f.users[user.ID]
	if !ok {
		return nil, &sync.NotFoundError{Kind: "user", Key: strconv.FormatInt(user.ID, 10)}
	}
	f.updates++
	if user.ExternalID != "" {
		existing.ExternalID = user.ExternalID
	}
	if user.Name != "" {
		existing.Name = user.Name
	}
	return existing, nil
}

func (f *fakeUserTarget) GetOrganizationsByExternalIDs([]string) ([]M.ZendeskOrganization, error) {
	return nil, nil
}

func (f *fakeUserTarget) SearchOrganizationsByName(string) ([]M.ZendeskOrganization, error) {
	return nil, nil
}

func (f *fakeUserTarget) ListOrganizationMemberships(int64, string) ([]M.ZendeskOrganizationMembership, string, error) {
	return nil, "", nil
}

func (f *fakeUserTarget) CreateOrganization(*M.ZendeskOrganization) (*M.ZendeskOrganization, error) {
	return nil, nil
}

func (f *fakeUserTarget) UpdateOrganization(*M.ZendeskOrganization) (*M.ZendeskOrganization, error) {
	return nil, nil
}

func (f *fakeUserTarget) CreateManyUsers([]M.ZendeskUser) (*M.ZendeskJobStatus, error) {
	return nil, nil
}

func (f *fakeUserTarget) CreateManyMemberships([]M.ZendeskOrganizationMembership) (*M.ZendeskJobStatus, error) {
	return nil, nil
}

func (f *fakeUserTarget) DestroyManyMemberships([]int64) (*M.ZendeskJobStatus, error) {
	return nil, nil
}

func (f *fakeUserTarget) GetJobStatus(jobID string) (*M.ZendeskJobStatus, error) {
	return &M.ZendeskJobStatus{ID: jobID, Status: M.ZendeskJobStatusCompleted}, nil
}

func newTestDriver(directory *fakeDirectory, contacts *fakeContacts, target *fakeUserTarget) *Driver {
	reconciler := sync.NewReconciler(target, target, sync.NewJobRunner(target))
	return NewDriver(directory, contacts, reconciler, sync.NewEntityLock(nil))
}

func TestProvisionCreatesEverywhere(t *testing.T) {
	directory := newFakeDirectory()
	contacts := &fakeContacts{}
	target := newFakeUserTarget()
	driver := newTestDriver(directory, contacts, target)

	result, err := driver.Provision(&M.EndUser{
		Email:        "alice@example.com",
		DisplayName:  "Alice Doe",
		SalesforceID: "003a",
	})
	assert.Nil(t, err)

	assert.True(t, result.DirectoryNew)
	assert.NotEmpty(t, result.DirectoryID)
	assert.Equal(t, 1, directory.creates)

	assert.NotZero(t, result.TargetUserID)
	assert.Equal(t, 1, target.creates)
	assert.Equal(t, result.DirectoryID, target.users[result.TargetUserID].ExternalID)

	fields := contacts.updates["Contact:003a"]
	if assert.NotNil(t, fields) {
		assert.Equal(t, strconv.FormatInt(result.TargetUserID, 10), fields["Zendesk_user_id__c"])
	}
}

func TestProvisionUpdatesExistingDirectoryUser(t *testing.T) {
	directory := newFakeDirectory()
	target := newFakeUserTarget()
	driver := newTestDriver(directory, &fakeContacts{}, target)

	first, err := driver.Provision(&M.EndUser{Email: "alice@example.com", DisplayName: "Alice"})
	assert.Nil(t, err)

	// Same mail again. The directory user is updated in place and the
	// target user keeps its id.
	driver = newTestDriver(directory, &fakeContacts{}, target)
	second, err := driver.Provision(&M.EndUser{Email: "alice@example.com", DisplayName: "Alice Doe"})
	assert.Nil(t, err)

	assert.False(t, second.DirectoryNew)
	assert.Equal(t, first.DirectoryID, second.DirectoryID)
	assert.Equal(t, first.TargetUserID, second.TargetUserID)
	assert.Equal(t, 1, directory.creates)
	assert.Equal(t, 1, directory.updates)
	assert.Equal(t, 1, target.creates)
}

func TestProvisionAdoptsExistingTargetUser(t *testing.T) {
	directory := newFakeDirectory()
	target := newFakeUserTarget()
	target.users[42] = &M.ZendeskUser{ID: 42, Name: "Alice", Email: "alice@example.com"}
	driver := newTestDriver(directory, &fakeContacts{}, target)

	result, err := driver.Provision(&M.EndUser{Email: "alice@example.com", DisplayName: "Alice Doe"})
	assert.Nil(t, err)

	assert.Equal(t, int64(42), result.TargetUserID)
	assert.Equal(t, 0, target.creates)
	assert.Equal(t, result.DirectoryID, target.users[42].ExternalID)
}

func TestProvisionByDirectoryIDSkipsMailSearch(t *testing.T) {
	directory := newFakeDirectory()
	directory.users["entra-7"] = &M.GraphUser{ID: "entra-7", Mail: "alice@example.com"}
	target := newFakeUserTarget()
	driver := newTestDriver(directory, &fakeContacts{}, target)

	result, err := driver.Provision(&M.EndUser{
		Email:       "alice@example.com",
		DisplayName: "Alice Doe",
		EntraID:     "entra-7",
	})
	assert.Nil(t, err)

	assert.False(t, result.DirectoryNew)
	assert.Equal(t, "entra-7", result.DirectoryID)
	assert.Equal(t, 1, directory.updates)
	assert.Equal(t, 0, directory.creates)
	assert.Equal(t, 0, directory.mailSearches)
}

func TestProvisionUnknownDirectoryIDFallsBackToMail(t *testing.T) {
	directory := newFakeDirectory()
	target := newFakeUserTarget()
	driver := newTestDriver(directory, &fakeContacts{}, target)

	result, err := driver.Provision(&M.EndUser{
		Email:       "alice@example.com",
		DisplayName: "Alice Doe",
		EntraID:     "entra-stale",
	})
	assert.Nil(t, err)

	assert.True(t, result.DirectoryNew)
	assert.Equal(t, 1, directory.mailSearches)
	assert.Equal(t, 1, directory.creates)
}

func TestProvisionContactWriteBackIsIdempotent(t *testing.T) {
	directory := newFakeDirectory()
	contacts := &fakeContacts{contacts: map[string]*M.SalesforceContact{
		"003a": {ID: "003a", Email: "alice@example.com"},
	}}
	target := newFakeUserTarget()

	payload := M.EndUser{Email: "alice@example.com", DisplayName: "Alice", SalesforceID: "003a"}

	endUser := payload
	_, err := newTestDriver(directory, contacts, target).Provision(&endUser)
	assert.Nil(t, err)
	assert.Len(t, contacts.updates, 1)
	contacts.updates = nil

	// The contact already carries the id, the second run writes nothing.
	endUser = payload
	_, err = newTestDriver(directory, contacts, target).Provision(&endUser)
	assert.Nil(t, err)
	assert.Empty(t, contacts.updates)
}

func TestProvisionRequiresEmail(t *testing.T) {
	driver := newTestDriver(newFakeDirectory(), &fakeContacts{}, newFakeUserTarget())

	_, err := driver.Provision(&M.EndUser{DisplayName: "No Mail"})
	assert.True(t, sync.IsMapping(err))
}
