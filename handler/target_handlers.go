package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/HarryGifford/entra-object-sync/store"
)

// GetOrganizationsHandler lists every target organization, optionally
// writing a snapshot with ?export=csv or ?export=json.
func GetOrganizationsHandler(c *gin.Context) {
	orgs, err := deps.Target.ListOrganizations()
	if err != nil {
		log.WithError(err).Error("Failed to list organizations.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	switch c.Query("export") {
	case store.FormatCSV:
		err = deps.Exporter.ExportOrganizationsCSV(orgs)
	case store.FormatJSON:
		err = deps.Exporter.ExportOrganizationsJSON(orgs)
	}
	if err != nil {
		log.WithError(err).Error("Failed to export organizations.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(orgs), "organizations": orgs})
}

// GetUsersHandler lists every target user, optionally writing a snapshot
// with ?export=csv or ?export=json.
func GetUsersHandler(c *gin.Context) {
	users, err := deps.Target.ListUsers()
	if err != nil {
		log.WithError(err).Error("Failed to list users.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	switch c.Query("export") {
	case store.FormatCSV:
		err = deps.Exporter.ExportUsersCSV(users)
	case store.FormatJSON:
		err = deps.Exporter.ExportUsersJSON(users)
	}
	if err != nil {
		log.WithError(err).Error("Failed to export users.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(users), "users": users})
}

// ImportMembershipsHandler reconciles membership edges from an uploaded
// CSV of organization and user external id pairs.
func ImportMembershipsHandler(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file upload"})
		return
	}
	defer file.Close()

	memberships, err := store.ParseMembershipCSV(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orgExternalIDs := make([]string, 0, len(memberships))
	var userExternalIDs []string
	for orgExternalID, userIDs := range memberships {
		orgExternalIDs = append(orgExternalIDs, orgExternalID)
		userExternalIDs = append(userExternalIDs, userIDs...)
	}

	r := deps.newReconciler()
	if err := r.PopulateOrganizationIDs(orgExternalIDs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := r.PopulateUserIDs(userExternalIDs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	summaries := map[string]interface{}{}
	hasFailure := false
	for orgExternalID, userExternalIDs := range memberships {
		logCtx := log.WithField("org_external_id", orgExternalID)

		orgID, ok := r.Ctx.OrganizationID(orgExternalID)
		if !ok {
			logCtx.Warn("Unknown organization in membership import.")
			summaries[orgExternalID] = gin.H{"error": "organization not found"}
			hasFailure = true
			continue
		}

		var userIDs []int64
		for _, userExternalID := range userExternalIDs {
			if id, ok := r.Ctx.UserID(userExternalID); ok {
				userIDs = append(userIDs, id)
			} else {
				logCtx.WithField("user_external_id", userExternalID).
					Warn("Unknown user in membership import.")
			}
		}

		summary, err := r.ReconcileMembers(orgID, userIDs)
		if err != nil {
			logCtx.WithError(err).Error("Failed to reconcile memberships.")
			summaries[orgExternalID] = gin.H{"error": err.Error()}
			hasFailure = true
			continue
		}
		summaries[orgExternalID] = summary
	}

	status := http.StatusOK
	if hasFailure {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"status": summaries})
}
