package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	C "github.com/HarryGifford/entra-object-sync/config"
)

// NotifyThroughSNS posts an alert to the team notification topic configured
// in the secrets. In development the payload is printed instead of sent.
func NotifyThroughSNS(source, env string, message interface{}) error {
	if !ContainsStringInArray([]string{C.DEVELOPMENT, C.STAGING, C.PRODUCTION}, env) {
		return fmt.Errorf("notification skipped for env %s", env)
	}

	body := map[string]interface{}{
		"source":  source,
		"env":     env,
		"message": message,
	}
	jsonBody, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return err
	}
	if env == C.DEVELOPMENT {
		fmt.Println("-- Notification Template --")
		fmt.Println(string(jsonBody))
		return nil
	}

	topicURL := ""
	if config := C.GetConfig(); config != nil {
		topicURL = config.Secrets.NotificationURL
	}
	if topicURL == "" {
		return fmt.Errorf("notification topic url is not configured")
	}

	req, err := http.NewRequest("POST", topicURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return err
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return err
	} else if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification topic returned status %d", resp.StatusCode)
	}
	defer resp.Body.Close()

	return nil
}

// NotifyOnPanicWithError recovers a panic, logs it with the stack and
// notifies the team. Meant to be deferred at the top of jobs and workers.
func NotifyOnPanicWithError(env, appName string) {
	recovered := recover()
	if recovered == nil {
		return
	}

	stack := string(debug.Stack())
	log.WithFields(log.Fields{"app_name": appName, "env": env,
		"panic": recovered}).Error("Recovered from panic.")

	message := fmt.Sprintf("Panic on %s: %v\n\n%s", appName, recovered, stack)
	if err := NotifyThroughSNS(appName, env, message); err != nil {
		log.WithError(err).Error("Failed to notify panic.")
	}
}
