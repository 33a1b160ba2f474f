package config

import (
	"strconv"
	"time"

	"github.com/RichardKnop/redsync"
	"github.com/gomodule/redigo/redis"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

const (
	DEVELOPMENT = "development"
	STAGING     = "staging"
	PRODUCTION  = "production"
)

// Secrets are the credentials for the external systems, loadable from the
// environment so mains never take them as flags in production.
type Secrets struct {
	SalesforceClientID     string `envconfig:"SALESFORCE_CLIENT_ID"`
	SalesforceClientSecret string `envconfig:"SALESFORCE_CLIENT_SECRET"`
	SalesforceRefreshToken string `envconfig:"SALESFORCE_REFRESH_TOKEN"`
	GraphTenantID          string `envconfig:"GRAPH_TENANT_ID"`
	GraphClientID          string `envconfig:"GRAPH_CLIENT_ID"`
	GraphClientSecret      string `envconfig:"GRAPH_CLIENT_SECRET"`
	ZendeskSubdomain       string `envconfig:"ZENDESK_SUBDOMAIN"`
	ZendeskUser            string `envconfig:"ZENDESK_USER"`
	ZendeskAPIToken        string `envconfig:"ZENDESK_API_TOKEN"`

	// APIToken authorizes inbound requests to this service's own routes.
	APIToken string `envconfig:"API_TOKEN"`

	GithubAppID          int64  `envconfig:"GITHUB_APP_ID"`
	GithubInstallationID int64  `envconfig:"GITHUB_INSTALLATION_ID"`
	GithubPrivateKey     string `envconfig:"GITHUB_PRIVATE_KEY"`

	// NotificationURL is the team alerting endpoint panics are posted to.
	NotificationURL string `envconfig:"NOTIFICATION_URL"`
}

type Configuration struct {
	AppName   string
	Env       string
	Port      int
	RedisHost string
	RedisPort int

	SalesforceInstanceURL string
	GraphBaseURL          string
	ZendeskBaseURL        string

	Secrets Secrets
}

// Services holds the shared connections of one process.
type Services struct {
	RedisPool *redis.Pool
	Redsync   *redsync.Redsync
}

var configuration *Configuration
var services = &Services{}

func initLogging() {
	// Log as JSON instead of the default ASCII formatter.
	log.SetFormatter(&log.JSONFormatter{})

	if IsDevelopment() {
		log.SetFormatter(&log.TextFormatter{})
		log.SetLevel(log.DebugLevel)
	}
}

// Init sets the process configuration and logging. Call once from main
// before anything else.
func Init(config *Configuration) error {
	configuration = config
	initLogging()
	return nil
}

// LoadSecretsFromEnv fills any credentials not already set from the
// process environment.
func LoadSecretsFromEnv(config *Configuration) error {
	var secrets Secrets
	if err := envconfig.Process("", &secrets); err != nil {
		return err
	}

	if config.Secrets.SalesforceClientID == "" {
		config.Secrets.SalesforceClientID = secrets.SalesforceClientID
	}
	if config.Secrets.SalesforceClientSecret == "" {
		config.Secrets.SalesforceClientSecret = secrets.SalesforceClientSecret
	}
	if config.Secrets.SalesforceRefreshToken == "" {
		config.Secrets.SalesforceRefreshToken = secrets.SalesforceRefreshToken
	}
	if config.Secrets.GraphTenantID == "" {
		config.Secrets.GraphTenantID = secrets.GraphTenantID
	}
	if config.Secrets.GraphClientID == "" {
		config.Secrets.GraphClientID = secrets.GraphClientID
	}
	if config.Secrets.GraphClientSecret == "" {
		config.Secrets.GraphClientSecret = secrets.GraphClientSecret
	}
	if config.Secrets.ZendeskSubdomain == "" {
		config.Secrets.ZendeskSubdomain = secrets.ZendeskSubdomain
	}
	if config.Secrets.ZendeskUser == "" {
		config.Secrets.ZendeskUser = secrets.ZendeskUser
	}
	if config.Secrets.ZendeskAPIToken == "" {
		config.Secrets.ZendeskAPIToken = secrets.ZendeskAPIToken
	}
	if config.Secrets.APIToken == "" {
		config.Secrets.APIToken = secrets.APIToken
	}
	if config.Secrets.GithubAppID == 0 {
		config.Secrets.GithubAppID = secrets.GithubAppID
	}
	if config.Secrets.GithubInstallationID == 0 {
		config.Secrets.GithubInstallationID = secrets.GithubInstallationID
	}
	if config.Secrets.GithubPrivateKey == "" {
		config.Secrets.GithubPrivateKey = secrets.GithubPrivateKey
	}
	if config.Secrets.NotificationURL == "" {
		config.Secrets.NotificationURL = secrets.NotificationURL
	}
	return nil
}

// InitRedis connects the lock backend. Optional, processes that never take
// entity locks can skip it.
func InitRedis(host string, port int) {
	pool := &redis.Pool{
		MaxIdle:     10,
		MaxActive:   20,
		IdleTimeout: 3 * time.Minute,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", redisAddr(host, port))
		},
	}

	services.RedisPool = pool
	services.Redsync = redsync.New([]redsync.Pool{pool})
}

func redisAddr(host string, port int) string {
	if port == 0 {
		port = 6379
	}
	return host + ":" + strconv.Itoa(port)
}

func GetConfig() *Configuration {
	return configuration
}

func GetServices() *Services {
	return services
}

func IsDevelopment() bool {
	return configuration == nil || configuration.Env == DEVELOPMENT
}
