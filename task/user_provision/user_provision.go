package user_provision

import (
	"strconv"

	log "github.com/sirupsen/logrus"

	M "github.com/HarryGifford/entra-object-sync/model"
	"github.com/HarryGifford/entra-object-sync/sync"
)

// DirectoryWriter is the slice of the directory client this driver
// consumes.
type DirectoryWriter interface {
	GetUser(id string) (*M.GraphUser, error)
	FindUsersByMail(mail string) ([]M.GraphUser, error)
	CreateUser(user *M.GraphUser) (*M.GraphUser, error)
	UpdateUser(user *M.GraphUser) error
}

// ContactWriter back-writes target ids onto CRM contact records.
type ContactWriter interface {
	GetContactsByIDs(ids []string) ([]M.SalesforceContact, error)
	UpdateRecord(objectName, recordID string, fields map[string]interface{}) error
}

// Result reports the ids a provisioned user ended up with in each system.
type Result struct {
	Email         string `json:"email"`
	DirectoryID   string `json:"directory_id,omitempty"`
	TargetUserID  int64  `json:"target_user_id,omitempty"`
	ContactID     string `json:"contact_id,omitempty"`
	DirectoryNew  bool   `json:"directory_new,omitempty"`
	TargetUpdated bool   `json:"target_updated,omitempty"`
}

// Driver provisions a single user across the directory and the target
// system from one request payload.
type Driver struct {
	Directory  DirectoryWriter
	Contacts   ContactWriter
	Reconciler *sync.Reconciler
	Lock       *sync.EntityLock
}

func NewDriver(directory DirectoryWriter, contacts ContactWriter, reconciler *sync.Reconciler, lock *sync.EntityLock) *Driver {
	return &Driver{Directory: directory, Contacts: contacts, Reconciler: reconciler, Lock: lock}
}

// Provision upserts the user into the directory first, then reconciles the
// target user against the directory identity.
func (d *Driver) Provision(endUser *M.EndUser) (*Result, error) {
	if endUser.Email == "" {
		return nil, &sync.MappingError{Kind: "end_user", Reason: "email is required"}
	}

	logCtx := log.WithField("email", endUser.Email)

	release, ok := d.Lock.Acquire("end_user", endUser.Email)
	if !ok {
		return nil, &sync.ConflictError{Kind: "end_user", Key: endUser.Email}
	}
	defer release()

	result := &Result{Email: endUser.Email}

	directoryUser, created, err := d.upsertDirectoryUser(endUser)
	if err != nil {
		logCtx.WithError(err).Error("Failed to upsert directory user.")
		return nil, err
	}
	endUser.EntraID = directoryUser.ID
	result.DirectoryID = directoryUser.ID
	result.DirectoryNew = created

	userID, err := d.Reconciler.ReconcileUser(M.SourceFromGraphUser(directoryUser))
	if err != nil {
		logCtx.WithError(err).Error("Failed to reconcile target user.")
		return nil, err
	}
	result.TargetUserID = userID
	result.TargetUpdated = true

	if endUser.SalesforceID != "" {
		d.writeBackContact(endUser.SalesforceID, userID)
		result.ContactID = endUser.SalesforceID
	}

	logCtx.WithFields(log.Fields{"directory_id": directoryUser.ID,
		"user_id": userID}).Info("User provisioned.")
	return result, nil
}

// upsertDirectoryUser resolves the directory user by id when the payload
// carries one, else by mail, and updates it; a miss creates it. Returns
// whether a create happened.
func (d *Driver) upsertDirectoryUser(endUser *M.EndUser) (*M.GraphUser, bool, error) {
	desired := endUser.ToGraphUser()

	if endUser.EntraID != "" {
		known, err := d.Directory.GetUser(endUser.EntraID)
		if err != nil && !sync.IsNotFound(err) {
			return nil, false, err
		}
		if known != nil {
			desired.ID = known.ID
			if err := d.Directory.UpdateUser(desired); err != nil {
				return nil, false, err
			}
			return desired, false, nil
		}
	}

	existing, err := d.Directory.FindUsersByMail(endUser.Email)
	if err != nil {
		return nil, false, err
	}

	if len(existing) > 0 {
		desired.ID = existing[0].ID
		if err := d.Directory.UpdateUser(desired); err != nil {
			return nil, false, err
		}
		return desired, false, nil
	}

	created, err := d.Directory.CreateUser(desired)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// writeBackContact stamps the target user id onto the CRM contact, skipping
// the update when the persisted id already matches.
func (d *Driver) writeBackContact(contactID string, userID int64) {
	if d.Contacts == nil {
		return
	}
	logCtx := log.WithFields(log.Fields{"contact_id": contactID, "user_id": userID})

	id := strconv.FormatInt(userID, 10)
	contacts, err := d.Contacts.GetContactsByIDs([]string{contactID})
	if err != nil {
		logCtx.WithError(err).Warn("Failed to fetch contact for write back.")
	} else if len(contacts) > 0 && contacts[0].ZendeskUserID == id {
		return
	}

	err = d.Contacts.UpdateRecord(M.SalesforceObjectTypeNameContact, contactID,
		map[string]interface{}{"Zendesk_user_id__c": id})
	if err != nil {
		logCtx.WithError(err).Warn("Failed to write back user id.")
	}
}
