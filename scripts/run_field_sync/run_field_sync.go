package main

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	C "github.com/HarryGifford/entra-object-sync/config"
	IntSalesforce "github.com/HarryGifford/entra-object-sync/integration/salesforce"
	IntZendesk "github.com/HarryGifford/entra-object-sync/integration/zendesk"
	"github.com/HarryGifford/entra-object-sync/task/field_sync"
	U "github.com/HarryGifford/entra-object-sync/util"
)

func main() {
	env := flag.String("env", C.DEVELOPMENT, "")
	salesforceInstanceURL := flag.String("salesforce_instance_url", "", "")
	flag.Parse()

	if !U.ContainsStringInArray([]string{C.DEVELOPMENT, C.STAGING, C.PRODUCTION}, *env) {
		panic(fmt.Errorf("env [ %s ] not recognised", *env))
	}

	appName := "field_sync_job"
	config := &C.Configuration{
		AppName:               appName,
		Env:                   *env,
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

	defer U.NotifyOnPanicWithError(*env, appName)

	secrets := &config.Secrets
	salesforceClient := IntSalesforce.NewClient(config.SalesforceInstanceURL,
		secrets.SalesforceClientID, secrets.SalesforceClientSecret, secrets.SalesforceRefreshToken)
	zendeskClient := IntZendesk.NewClient(secrets.ZendeskSubdomain,
		secrets.ZendeskUser, secrets.ZendeskAPIToken)

	driver := field_sync.NewDriver(salesforceClient, zendeskClient)
	statuses, hasFailure := driver.SyncFields(field_sync.DefaultMappings)
	for _, status := range statuses {
		logCtx := log.WithField("target_key", status.TargetKey)
		if status.Message != "" {
			logCtx.Error(status.Message)
			continue
		}
		logCtx.WithField("options", status.Options).Info("Field synced.")
	}

	if hasFailure {
		os.Exit(1)
	}
}
