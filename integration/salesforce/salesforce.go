package salesforce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	M "github.com/HarryGifford/entra-object-sync/model"
	"github.com/HarryGifford/entra-object-sync/sync"
)

const (
	SALESFORCE_DATA_SERVICE_ROUTE = "/services/data/"
	SALESFORCE_API_VERSION        = "v52.0"
	SALESFORCE_TOKEN_ROUTE        = "/services/oauth2/token"
)

// QueryResponse is the envelope of the query route. Records stay raw until
// the caller decodes them into the typed object.
type QueryResponse struct {
	TotalSize      int               `json:"totalSize"`
	Done           bool              `json:"done"`
	Records        []json.RawMessage `json:"records"`
	NextRecordsUrl string            `json:"nextRecordsUrl"`
}

type DataServiceError struct {
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
}

type TokenError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Client talks to one Salesforce instance. The access token is refreshed
// lazily on first use and after expiry.
type Client struct {
	instanceURL  string
	clientID     string
	clientSecret string
	refreshToken string

	accessToken string
	tokenExpiry time.Time
	httpClient  *http.Client
}

func NewClient(instanceURL, clientID, clientSecret, refreshToken string) *Client {
	return &Client{
		instanceURL:  strings.TrimSuffix(instanceURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
}

// getAccessToken exchanges the refresh token for an access token.
func (c *Client) getAccessToken() (string, error) {
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	queryParams := fmt.Sprintf("grant_type=%s&refresh_token=%s&client_id=%s&client_secret=%s",
		"refresh_token", url.QueryEscape(c.refreshToken), url.QueryEscape(c.clientID),
		url.QueryEscape(c.clientSecret))
	tokenURL := c.instanceURL + SALESFORCE_TOKEN_ROUTE + "?" + queryParams

	req, err := http.NewRequest("POST", tokenURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &sync.TransportError{System: "salesforce", Op: "token", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody TokenError
		json.NewDecoder(resp.Body).Decode(&errBody)
		return "", fmt.Errorf("error while getting access token %s : %s",
			errBody.Error, errBody.ErrorDescription)
	}

	var jsonResponse map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&jsonResponse); err != nil {
		return "", err
	}

	accessToken, exists := jsonResponse["access_token"].(string)
	if !exists || accessToken == "" {
		return "", errors.New("failed to get access token by refresh token")
	}

	c.accessToken = accessToken
	c.tokenExpiry = time.Now().Add(50 * time.Minute)
	return accessToken, nil
}

func (c *Client) getRequest(requestURL string, out interface{}) error {
	accessToken, err := c.getAccessToken()
	if err != nil {
		return err
	}

	req, err := http.NewRequest("GET", requestURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &sync.TransportError{System: "salesforce", Op: "GET " + requestURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody []DataServiceError
		json.NewDecoder(resp.Body).Decode(&errBody)
		return &sync.TransportError{
			System: "salesforce",
			Op:     "GET " + requestURL,
			Err:    fmt.Errorf("status %d: %+v", resp.StatusCode, errBody),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.New("failed to decode response")
	}
	return nil
}

// queryAll runs a SOQL query and follows NextRecordsUrl until Done.
func (c *Client) queryAll(query string) ([]json.RawMessage, error) {
	queryURL := c.instanceURL + SALESFORCE_DATA_SERVICE_ROUTE + SALESFORCE_API_VERSION +
		"/query?q=" + url.QueryEscape(query)

	var records []json.RawMessage
	for {
		var queryResponse QueryResponse
		if err := c.getRequest(queryURL, &queryResponse); err != nil {
			return nil, err
		}
		records = append(records, queryResponse.Records...)

		if queryResponse.Done {
			return records, nil
		}
		if queryResponse.NextRecordsUrl == "" {
			return nil, errors.New("next batch route is missing")
		}
		queryURL = c.instanceURL + queryResponse.NextRecordsUrl
	}
}

// prefixFields qualifies a related object's field list for a SELECT clause.
func prefixFields(relation string, fields []string) []string {
	prefixed := make([]string, 0, len(fields))
	for _, field := range fields {
		prefixed = append(prefixed, relation+"."+field)
	}
	return prefixed
}

func quoteIDs(ids []string) string {
	quoted := make([]string, 0, len(ids))
	for _, id := range ids {
		quoted = append(quoted, "'"+strings.ReplaceAll(id, "'", "")+"'")
	}
	return strings.Join(quoted, ",")
}

func projectSelectClause() string {
	fields := append([]string{}, M.SalesforceProjectFields...)
	fields = append(fields, prefixFields("PrimaryOpportunity__r", M.SalesforceOpportunityFields)...)
	fields = append(fields, prefixFields("Publisher__r", M.SalesforceAccountFields)...)
	fields = append(fields, prefixFields("Developer__r", M.SalesforceAccountFields)...)
	fields = append(fields, prefixFields("Account_Manager_Primary__r", M.SalesforceUserFields)...)
	fields = append(fields, prefixFields("Account_Manager_Secondary__r", M.SalesforceUserFields)...)
	fields = append(fields, prefixFields("Account_Manager_Tertiary__r", M.SalesforceUserFields)...)
	return strings.Join(fields, ",")
}

func decodeProjects(records []json.RawMessage) ([]M.SalesforceProject, error) {
	projects := make([]M.SalesforceProject, 0, len(records))
	for i := range records {
		var project M.SalesforceProject
		if err := json.Unmarshal(records[i], &project); err != nil {
			return nil, errors.Wrap(err, "failed to decode project record")
		}
		projects = append(projects, project)
	}
	return projects, nil
}

// GetProjectsByIDs fetches projects with all related records inlined.
func (c *Client) GetProjectsByIDs(ids []string) ([]M.SalesforceProject, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE Id IN (%s)",
		projectSelectClause(), M.SalesforceObjectTypeNameProject, quoteIDs(ids))

	records, err := c.queryAll(query)
	if err != nil {
		return nil, err
	}

	projects, err := decodeProjects(records)
	if err != nil {
		return nil, err
	}

	if len(projects) != len(ids) {
		log.WithFields(log.Fields{"requested": len(ids),
			"found": len(projects)}).Warn("Some project ids did not resolve.")
	}
	return projects, nil
}

// ListLinkedProjects fetches every project that already carries a target
// organization id.
func (c *Client) ListLinkedProjects() ([]M.SalesforceProject, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE Zendesk_organization_id__c != null",
		projectSelectClause(), M.SalesforceObjectTypeNameProject)

	records, err := c.queryAll(query)
	if err != nil {
		return nil, err
	}
	return decodeProjects(records)
}

// GetContactsByOpportunityIDs fetches the contacts attached to the given
// opportunities through contact roles, grouped per opportunity and deduped
// on email within each group.
func (c *Client) GetContactsByOpportunityIDs(opportunityIDs []string) (map[string][]M.SalesforceContact, error) {
	if len(opportunityIDs) == 0 {
		return map[string][]M.SalesforceContact{}, nil
	}

	contactFields := strings.Join(prefixFields("Contact", M.SalesforceContactFields), ",")
	query := fmt.Sprintf("SELECT Id,OpportunityId,ContactId,%s FROM %s WHERE OpportunityId IN (%s)",
		contactFields, M.SalesforceObjectTypeNameContactRole, quoteIDs(opportunityIDs))

	records, err := c.queryAll(query)
	if err != nil {
		return nil, err
	}

	contactsByOpportunity := map[string][]M.SalesforceContact{}
	seenEmails := map[string]map[string]bool{}
	for i := range records {
		var role M.SalesforceContactRole
		if err := json.Unmarshal(records[i], &role); err != nil {
			return nil, errors.Wrap(err, "failed to decode contact role record")
		}
		if role.Contact == nil || role.Contact.Email == "" {
			continue
		}

		email := strings.ToLower(role.Contact.Email)
		if seenEmails[role.OpportunityID] == nil {
			seenEmails[role.OpportunityID] = map[string]bool{}
		}
		if seenEmails[role.OpportunityID][email] {
			continue
		}
		seenEmails[role.OpportunityID][email] = true

		contactsByOpportunity[role.OpportunityID] = append(
			contactsByOpportunity[role.OpportunityID], *role.Contact)
	}
	return contactsByOpportunity, nil
}

// GetContactsByIDs fetches contacts directly by record id.
func (c *Client) GetContactsByIDs(ids []string) ([]M.SalesforceContact, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE Id IN (%s)",
		strings.Join(M.SalesforceContactFields, ","),
		M.SalesforceObjectTypeNameContact, quoteIDs(ids))

	records, err := c.queryAll(query)
	if err != nil {
		return nil, err
	}

	contacts := make([]M.SalesforceContact, 0, len(records))
	for i := range records {
		var contact M.SalesforceContact
		if err := json.Unmarshal(records[i], &contact); err != nil {
			return nil, errors.Wrap(err, "failed to decode contact record")
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

// UpdateRecord patches the given fields on one record. Used to write the
// target system ids back onto the source records.
func (c *Client) UpdateRecord(objectName, recordID string, fields map[string]interface{}) error {
	accessToken, err := c.getAccessToken()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return errors.Wrap(err, "failed to encode record fields")
	}

	requestURL := c.instanceURL + SALESFORCE_DATA_SERVICE_ROUTE + SALESFORCE_API_VERSION +
		"/sobjects/" + objectName + "/" + recordID

	req, err := http.NewRequest("PATCH", requestURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &sync.TransportError{System: "salesforce", Op: "PATCH " + requestURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &sync.NotFoundError{Kind: objectName, Key: recordID}
	}
	if resp.StatusCode != http.StatusNoContent {
		var errBody []DataServiceError
		json.NewDecoder(resp.Body).Decode(&errBody)
		return &sync.TransportError{
			System: "salesforce",
			Op:     "PATCH " + requestURL,
			Err:    fmt.Errorf("status %d: %+v", resp.StatusCode, errBody),
		}
	}
	return nil
}

// GetObjectDescribe fetches the describe metadata for one object, including
// picklist options.
func (c *Client) GetObjectDescribe(objectName string) (*M.SalesforceObjectDescribe, error) {
	if objectName == "" {
		return nil, errors.New("missing object name")
	}

	describeURL := c.instanceURL + SALESFORCE_DATA_SERVICE_ROUTE + SALESFORCE_API_VERSION +
		"/sobjects/" + objectName + "/describe"

	var describe M.SalesforceObjectDescribe
	if err := c.getRequest(describeURL, &describe); err != nil {
		return nil, err
	}
	return &describe, nil
}

// GetPicklistValues returns the active picklist options of one field.
func (c *Client) GetPicklistValues(objectName, fieldName string) ([]M.SalesforcePicklistValue, error) {
	describe, err := c.GetObjectDescribe(objectName)
	if err != nil {
		return nil, err
	}

	for i := range describe.Fields {
		if describe.Fields[i].Name != fieldName {
			continue
		}
		values := make([]M.SalesforcePicklistValue, 0, len(describe.Fields[i].PicklistValues))
		for _, value := range describe.Fields[i].PicklistValues {
			if value.Active {
				values = append(values, value)
			}
		}
		return values, nil
	}
	return nil, &sync.NotFoundError{Kind: "picklist field", Key: objectName + "." + fieldName}
}
