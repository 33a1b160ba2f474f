package org_provision

import (
	log "github.com/sirupsen/logrus"

	M "github.com/HarryGifford/entra-object-sync/model"
	"github.com/HarryGifford/entra-object-sync/sync"
)

// DirectoryReader is the slice of the directory client this driver
// consumes.
type DirectoryReader interface {
	ListGroups() ([]M.GraphGroup, error)
	GetGroupMembers(groupID string) ([]M.GraphUser, error)
}

// Status is the per-group outcome of one provisioning run.
type Status struct {
	GroupID        string            `json:"group_id"`
	OrganizationID int64             `json:"organization_id,omitempty"`
	Memberships    *sync.SyncSummary `json:"memberships,omitempty"`
	Skipped        bool              `json:"skipped,omitempty"`
	Message        string            `json:"message,omitempty"`
}

// Driver provisions directory groups as target organizations with their
// members as users.
type Driver struct {
	Directory  DirectoryReader
	Reconciler *sync.Reconciler
	Lock       *sync.EntityLock
}

func NewDriver(directory DirectoryReader, reconciler *sync.Reconciler, lock *sync.EntityLock) *Driver {
	return &Driver{Directory: directory, Reconciler: reconciler, Lock: lock}
}

// ProvisionAll walks every project group in the directory. Groups without
// a project extension are not ours and are skipped silently.
func (d *Driver) ProvisionAll() ([]Status, bool) {
	groups, err := d.Directory.ListGroups()
	if err != nil {
		log.WithError(err).Error("Failed to list groups.")
		return []Status{{Message: err.Error()}}, true
	}

	groupIDs := make([]string, 0, len(groups))
	for i := range groups {
		if len(groups[i].Extensions) > 0 {
			groupIDs = append(groupIDs, groups[i].ID)
		}
	}
	if err := d.Reconciler.PopulateOrganizationIDs(groupIDs); err != nil {
		log.WithError(err).Warn("Failed to preload organization ids.")
	}

	statuses := make([]Status, 0, len(groups))
	hasFailure := false
	for i := range groups {
		if len(groups[i].Extensions) == 0 {
			continue
		}
		status := d.provisionGroup(&groups[i])
		if status.Message != "" && !status.Skipped {
			hasFailure = true
		}
		statuses = append(statuses, status)
	}
	return statuses, hasFailure
}

func (d *Driver) provisionGroup(group *M.GraphGroup) Status {
	status := Status{GroupID: group.ID}
	logCtx := log.WithFields(log.Fields{"group_id": group.ID, "name": group.DisplayName})

	release, ok := d.Lock.Acquire("group", group.ID)
	if !ok {
		status.Skipped = true
		status.Message = "group is being provisioned by another run"
		return status
	}
	defer release()

	desired, err := sync.OrganizationFromGroup(group)
	if err != nil {
		logCtx.WithError(err).Error("Failed to map group.")
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

	members, err := d.Directory.GetGroupMembers(group.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list group members.")
		status.Message = err.Error()
		return status
	}

	memberIDs := make([]string, 0, len(members))
	for i := range members {
		memberIDs = append(memberIDs, members[i].ID)
	}
	if err := d.Reconciler.PopulateUserIDs(memberIDs); err != nil {
		logCtx.WithError(err).Warn("Failed to preload user ids.")
	}

	sources := make([]M.UserSource, 0, len(members))
	for i := range members {
		sources = append(sources, M.SourceFromGraphUser(&members[i]))
	}

	resolved, err := d.Reconciler.ResolveUsers(sources)
	if err != nil {
		logCtx.WithError(err).Error("Failed to resolve users.")
		status.Message = err.Error()
		return status
	}

	userIDs := make([]int64, 0, len(members))
	for i := range members {
		// Disabled accounts stay out of the organization.
		if members[i].AccountEnabled != nil && !*members[i].AccountEnabled {
			continue
		}
		if id, ok := resolved[members[i].ID]; ok {
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
		"removed": summary.Removed}).Info("Group provisioned.")
	return status
}
