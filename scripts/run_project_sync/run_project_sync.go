package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	C "github.com/HarryGifford/entra-object-sync/config"
	IntSalesforce "github.com/HarryGifford/entra-object-sync/integration/salesforce"
	IntZendesk "github.com/HarryGifford/entra-object-sync/integration/zendesk"
	"github.com/HarryGifford/entra-object-sync/sync"
	"github.com/HarryGifford/entra-object-sync/task/project_sync"
	U "github.com/HarryGifford/entra-object-sync/util"
)

func main() {
	env := flag.String("env", C.DEVELOPMENT, "")

	redisHost := flag.String("redis_host", "localhost", "")
	redisPort := flag.Int("redis_port", 6379, "")

	salesforceInstanceURL := flag.String("salesforce_instance_url", "", "")
	projectIDFlag := flag.String("project_ids", "",
		"Comma separated list of project record ids. Empty syncs every linked project.")
	flag.Parse()

	if !U.ContainsStringInArray([]string{C.DEVELOPMENT, C.STAGING, C.PRODUCTION}, *env) {
		panic(fmt.Errorf("env [ %s ] not recognised", *env))
	}

	appName := "project_sync_job"
	config := &C.Configuration{
		AppName:               appName,
		Env:                   *env,
		RedisHost:             *redisHost,
		RedisPort:             *redisPort,
		SalesforceInstanceURL: *salesforceInstanceURL,
	}

	if err := C.Init(config); err != nil {
		log.WithError(err).Fatal("Failed to initialize.")
		return
	}
	if err := C.LoadSecretsFromEnv(config); err != nil {
		log.WithError(err).Fatal("Failed to load secrets.")
		return
	}
	C.InitRedis(config.RedisHost, config.RedisPort)

	defer U.NotifyOnPanicWithError(*env, appName)

	var projectIDs []string
	for _, id := range strings.Split(*projectIDFlag, ",") {
		if id = strings.TrimSpace(id); id != "" {
			projectIDs = append(projectIDs, id)
		}
	}

	secrets := &config.Secrets
	salesforceClient := IntSalesforce.NewClient(config.SalesforceInstanceURL,
		secrets.SalesforceClientID, secrets.SalesforceClientSecret, secrets.SalesforceRefreshToken)
	zendeskClient := IntZendesk.NewClient(secrets.ZendeskSubdomain,
		secrets.ZendeskUser, secrets.ZendeskAPIToken)

	reconciler := sync.NewReconciler(zendeskClient, zendeskClient,
		sync.NewJobRunner(zendeskClient))
	lock := sync.NewEntityLock(C.GetServices().Redsync)
	driver := project_sync.NewDriver(salesforceClient, reconciler, lock)

	statuses, hasFailure := driver.SyncProjects(projectIDs)
	for _, status := range statuses {
		logCtx := log.WithFields(log.Fields{"project_id": status.ProjectID,
			"organization_id": status.OrganizationID})
		if status.Message != "" {
			logCtx.Error(status.Message)
			continue
		}
		logCtx.Info("Project synced.")
	}

	if hasFailure {
		os.Exit(1)
	}
}
