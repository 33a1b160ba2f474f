package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	M "github.com/HarryGifford/entra-object-sync/model"
	"github.com/HarryGifford/entra-object-sync/sync"
	"github.com/HarryGifford/entra-object-sync/task/field_sync"
	"github.com/HarryGifford/entra-object-sync/task/org_provision"
	"github.com/HarryGifford/entra-object-sync/task/project_sync"
	"github.com/HarryGifford/entra-object-sync/task/user_provision"
)

func StatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type syncProjectsRequest struct {
	ProjectIDs []string `json:"project_ids"`
}

// Test command.
// curl -H "Authorization: $TOKEN" -i -X POST "http://localhost:8080/projects/sync?ids=a06xx001,a06xx002"
func SyncProjectsHandler(c *gin.Context) {
	var projectIDs []string
	if ids := c.Query("ids"); ids != "" {
		for _, id := range strings.Split(ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				projectIDs = append(projectIDs, id)
			}
		}
	} else if c.Request.ContentLength > 0 {
		var req syncProjectsRequest
		if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "json decoding : " + err.Error()})
			return
		}
		projectIDs = req.ProjectIDs
	}

	driver := project_sync.NewDriver(deps.Salesforce, deps.newReconciler(), deps.Lock)
	statuses, hasFailure := driver.SyncProjects(projectIDs)

	status := http.StatusOK
	if hasFailure {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"status": statuses})
}

func ProvisionOrganizationsHandler(c *gin.Context) {
	driver := org_provision.NewDriver(deps.Graph, deps.newReconciler(), deps.Lock)
	statuses, hasFailure := driver.ProvisionAll()

	status := http.StatusOK
	if hasFailure {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"status": statuses})
}

func ProvisionUserHandler(c *gin.Context) {
	var endUser M.EndUser
	if err := c.BindJSON(&endUser); err != nil {
		log.WithError(err).Error("ProvisionUser failed. Json decoding failed.")
		c.JSON(http.StatusBadRequest, gin.H{"error": "json decoding : " + err.Error()})
		return
	}

	driver := user_provision.NewDriver(deps.Graph, deps.Salesforce, deps.newReconciler(), deps.Lock)
	result, err := driver.Provision(&endUser)
	if err != nil {
		if sync.IsMapping(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if sync.IsConflict(err) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		log.WithError(err).Error("ProvisionUser failed.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func SyncOrganizationFieldsHandler(c *gin.Context) {
	mappings := field_sync.DefaultMappings
	if fieldName := c.Query("salesforce_field"); fieldName != "" {
		targetKey := c.Query("zendesk_field_key")
		if targetKey == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "zendesk_field_key is required"})
			return
		}
		objectName := c.Query("object_name")
		if objectName == "" {
			objectName = M.SalesforceObjectTypeNameProject
		}
		mappings = []field_sync.Mapping{{ObjectName: objectName, FieldName: fieldName,
			TargetKey: targetKey, Prefix: c.Query("option_prefix")}}
	}

	driver := field_sync.NewDriver(deps.Salesforce, deps.Target)
	statuses, hasFailure := driver.SyncFields(mappings)

	status := http.StatusOK
	if hasFailure {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"status": statuses})
}
