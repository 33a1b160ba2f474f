package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	C "github.com/HarryGifford/entra-object-sync/config"
	IntGraph "github.com/HarryGifford/entra-object-sync/integration/graph"
	IntZendesk "github.com/HarryGifford/entra-object-sync/integration/zendesk"
	"github.com/HarryGifford/entra-object-sync/sync"
	"github.com/HarryGifford/entra-object-sync/task/org_provision"
	U "github.com/HarryGifford/entra-object-sync/util"
)

func main() {
	env := flag.String("env", C.DEVELOPMENT, "")

	redisHost := flag.String("redis_host", "localhost", "")
	redisPort := flag.Int("redis_port", 6379, "")

	runInterval := flag.Duration("run_interval", 30*time.Minute, "Interval between provisioning runs.")
	runOnce := flag.Bool("run_once", false, "Run a single provisioning pass and exit.")
	flag.Parse()

	if !U.ContainsStringInArray([]string{C.DEVELOPMENT, C.STAGING, C.PRODUCTION}, *env) {
		panic(fmt.Errorf("env [ %s ] not recognised", *env))
	}

	appName := "org_provision_job"
	config := &C.Configuration{
		AppName:   appName,
		Env:       *env,
		RedisHost: *redisHost,
		RedisPort: *redisPort,
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

	secrets := &config.Secrets
	graphClient := IntGraph.NewClient(context.Background(),
		secrets.GraphTenantID, secrets.GraphClientID, secrets.GraphClientSecret)
	zendeskClient := IntZendesk.NewClient(secrets.ZendeskSubdomain,
		secrets.ZendeskUser, secrets.ZendeskAPIToken)
	lock := sync.NewEntityLock(C.GetServices().Redsync)

	for {
		reconciler := sync.NewReconciler(zendeskClient, zendeskClient,
			sync.NewJobRunner(zendeskClient))
		driver := org_provision.NewDriver(graphClient, reconciler, lock)

		statuses, hasFailure := driver.ProvisionAll()
		log.WithFields(log.Fields{"groups": len(statuses),
			"has_failure": hasFailure}).Info("Provisioning pass finished.")

		if *runOnce {
			if hasFailure {
				os.Exit(1)
			}
			return
		}
		time.Sleep(*runInterval)
	}
}
