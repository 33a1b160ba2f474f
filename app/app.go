package main

import (
	"context"
	"flag"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	C "github.com/HarryGifford/entra-object-sync/config"
	H "github.com/HarryGifford/entra-object-sync/handler"
	IntGithub "github.com/HarryGifford/entra-object-sync/integration/github"
	IntGraph "github.com/HarryGifford/entra-object-sync/integration/graph"
	IntSalesforce "github.com/HarryGifford/entra-object-sync/integration/salesforce"
	IntZendesk "github.com/HarryGifford/entra-object-sync/integration/zendesk"
	"github.com/HarryGifford/entra-object-sync/services/disk"
	"github.com/HarryGifford/entra-object-sync/store"
	"github.com/HarryGifford/entra-object-sync/sync"
)

// ./app --env=development --api_http_port=8080 --redis_host=localhost --redis_port=6379 --salesforce_instance_url=https://example.my.salesforce.com --snapshot_dir=/usr/local/var/entra-object-sync
func main() {
	env := flag.String("env", "development", "")
	port := flag.Int("api_http_port", 8080, "")

	redisHost := flag.String("redis_host", "localhost", "")
	redisPort := flag.Int("redis_port", 6379, "")

	salesforceInstanceURL := flag.String("salesforce_instance_url", "", "")
	snapshotDir := flag.String("snapshot_dir", "/usr/local/var/entra-object-sync", "")
	flag.Parse()

	config := &C.Configuration{
		AppName:               "app_server",
		Env:                   *env,
		Port:                  *port,
		RedisHost:             *redisHost,
		RedisPort:             *redisPort,
		SalesforceInstanceURL: *salesforceInstanceURL,
	}

	// Initialize configs and connections.
	if err := C.Init(config); err != nil {
		log.WithError(err).Fatal("Failed to initialize.")
		return
	}
	if err := C.LoadSecretsFromEnv(config); err != nil {
		log.WithError(err).Fatal("Failed to load secrets.")
		return
	}
	C.InitRedis(config.RedisHost, config.RedisPort)

	if !C.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	secrets := &config.Secrets
	salesforceClient := IntSalesforce.NewClient(config.SalesforceInstanceURL,
		secrets.SalesforceClientID, secrets.SalesforceClientSecret, secrets.SalesforceRefreshToken)
	graphClient := IntGraph.NewClient(context.Background(),
		secrets.GraphTenantID, secrets.GraphClientID, secrets.GraphClientSecret)
	zendeskClient := IntZendesk.NewClient(secrets.ZendeskSubdomain,
		secrets.ZendeskUser, secrets.ZendeskAPIToken)

	lock := sync.NewEntityLock(C.GetServices().Redsync)
	exporter := store.NewExporter(disk.New(*snapshotDir))

	r := gin.New()
	r.Use(gin.Recovery())

	dependencies := &H.Dependencies{
		Salesforce: salesforceClient,
		Graph:      graphClient,
		Target:     zendeskClient,
		Lock:       lock,
		Exporter:   exporter,
	}
	if secrets.GithubAppID != 0 && secrets.GithubPrivateKey != "" {
		githubClient, err := IntGithub.NewClient(secrets.GithubAppID,
			secrets.GithubInstallationID, []byte(secrets.GithubPrivateKey))
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize github client.")
			return
		}
		dependencies.Github = githubClient
	}

	H.InitRoutes(r, dependencies)

	r.Run(":" + strconv.Itoa(C.GetConfig().Port))
}
