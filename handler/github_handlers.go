package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	M "github.com/HarryGifford/entra-object-sync/model"
)

// RepoMembershipChecker answers repository collaborator checks.
type RepoMembershipChecker interface {
	IsRepoCollaborator(ctx context.Context, owner, repo, username string) (bool, error)
}

// Organizations claim issued to every signed-in user.
const organizationsClaim = "Havok"

// CheckGithubMembershipHandler reports whether a GitHub user is a
// collaborator on the given repository.
// curl -H "Authorization: $TOKEN" "http://localhost:8080/github/membership?owner=HavokPrivate&repo=UnrealEngine&username=octocat"
func CheckGithubMembershipHandler(c *gin.Context) {
	owner := c.Query("owner")
	repo := c.Query("repo")
	username := c.Query("username")
	if owner == "" || repo == "" || username == "" {
		c.JSON(http.StatusBadRequest,
			gin.H{"error": "Please provide owner, username, and repo."})
		return
	}

	if deps.Github == nil {
		c.JSON(http.StatusServiceUnavailable,
			gin.H{"error": "GitHub integration is not configured"})
		return
	}

	isMember, err := deps.Github.IsRepoCollaborator(c.Request.Context(), owner, repo, username)
	if err != nil {
		log.WithFields(log.Fields{"owner": owner, "repo": repo,
			"username": username}).WithError(err).Error("Failed to check GitHub membership.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"is_member": isMember})
}

// AuthEventsHandler answers token-issuance events from the identity
// provider with the organizations claim. The provider calls this route
// directly, so it stays outside the token-authorized group.
func AuthEventsHandler(c *gin.Context) {
	var event M.AuthEventsRequest
	if err := c.BindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "json decoding : " + err.Error()})
		return
	}

	correlationID := event.Data.AuthenticationContext.CorrelationID
	log.WithFields(log.Fields{"correlation_id": correlationID,
		"type": event.Type}).Info("Auth event received.")

	c.JSON(http.StatusOK, M.NewAuthEventsResponse(correlationID, organizationsClaim))
}
