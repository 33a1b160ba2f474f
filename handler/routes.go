package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/HarryGifford/entra-object-sync/integration/graph"
	"github.com/HarryGifford/entra-object-sync/integration/salesforce"
	"github.com/HarryGifford/entra-object-sync/integration/zendesk"
	mid "github.com/HarryGifford/entra-object-sync/middleware"
	"github.com/HarryGifford/entra-object-sync/store"
	"github.com/HarryGifford/entra-object-sync/sync"
)

// Dependencies are the long-lived clients the routes serve. Reconcilers
// are built per request since their id context is scoped to one run.
type Dependencies struct {
	Salesforce *salesforce.Client
	Graph      *graph.Client
	Target     *zendesk.Client
	Lock       *sync.EntityLock
	Exporter   *store.Exporter
	Github     RepoMembershipChecker
}

func (d *Dependencies) newReconciler() *sync.Reconciler {
	return sync.NewReconciler(d.Target, d.Target, sync.NewJobRunner(d.Target))
}

var deps *Dependencies

func InitRoutes(r *gin.Engine, d *Dependencies) {
	deps = d

	r.Use(mid.SetRequestID())
	r.Use(mid.Logger())
	r.Use(mid.CustomCors())

	r.GET("/status", StatusHandler)

	// Called by the identity provider during token issuance.
	r.POST("/auth_events", AuthEventsHandler)

	authorized := r.Group("/", mid.SetAuthByToken())
	authorized.POST("/projects/sync", SyncProjectsHandler)
	authorized.POST("/organizations/provision", ProvisionOrganizationsHandler)
	authorized.POST("/users/provision", ProvisionUserHandler)
	authorized.POST("/organization_fields/sync", SyncOrganizationFieldsHandler)
	authorized.POST("/memberships/import", ImportMembershipsHandler)
	authorized.GET("/organizations", GetOrganizationsHandler)
	authorized.GET("/users", GetUsersHandler)
	authorized.GET("/github/membership", CheckGithubMembershipHandler)
}
