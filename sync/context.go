package sync

import (
	"github.com/google/uuid"
)

// SyncContext carries the per-run identifier maps between the source
// external ids and the target internal ids. It is rebuilt for every run and
// passed explicitly through the engine, nothing outlives the invocation.
type SyncContext struct {
	RunID string

	orgIDByExternalID  map[string]int64
	userIDByExternalID map[string]int64
	userIDByEmail      map[string]int64
}

func NewSyncContext() *SyncContext {
	return &SyncContext{
		RunID:              uuid.New().String(),
		orgIDByExternalID:  map[string]int64{},
		userIDByExternalID: map[string]int64{},
		userIDByEmail:      map[string]int64{},
	}
}

func (c *SyncContext) OrganizationID(externalID string) (int64, bool) {
	id, ok := c.orgIDByExternalID[externalID]
	return id, ok
}

func (c *SyncContext) SetOrganizationID(externalID string, id int64) {
	if externalID == "" || id == 0 {
		return
	}
	c.orgIDByExternalID[externalID] = id
}

func (c *SyncContext) UserID(externalID string) (int64, bool) {
	id, ok := c.userIDByExternalID[externalID]
	return id, ok
}

func (c *SyncContext) SetUserID(externalID string, id int64) {
	if externalID == "" || id == 0 {
		return
	}
	c.userIDByExternalID[externalID] = id
}

func (c *SyncContext) UserIDByEmail(email string) (int64, bool) {
	id, ok := c.userIDByEmail[email]
	return id, ok
}

func (c *SyncContext) SetUserIDByEmail(email string, id int64) {
	if email == "" || id == 0 {
		return
	}
	c.userIDByEmail[email] = id
}
