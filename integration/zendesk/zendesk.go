package zendesk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	M "github.com/HarryGifford/entra-object-sync/model"
	"github.com/HarryGifford/entra-object-sync/sync"
)

const (
	apiRoute        = "/api/v2"
	defaultPageSize = 100

	// Delay between cursor pages to stay under the rate limit.
	pageFetchDelay = 100 * time.Millisecond
)

// Client is a typed client for the Zendesk REST resources this system
// touches. It satisfies the sync package's target capability interfaces.
type Client struct {
	baseURL    string
	user       string
	apiToken   string
	httpClient *http.Client
}

// NewClient builds a client for one subdomain with API token auth.
func NewClient(subdomain, user, apiToken string) *Client {
	return &Client{
		baseURL:  fmt.Sprintf("https://%s.zendesk.com", subdomain),
		user:     user,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

type apiError struct {
	Error       string                 `json:"error"`
	Description string                 `json:"description"`
	Details     map[string]interface{} `json:"details"`
}

func (c *Client) do(method, path string, body, out interface{}) error {
	requestURL := path
	if !strings.HasPrefix(path, "http") {
		requestURL = c.baseURL + apiRoute + path
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, requestURL, reader)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.SetBasicAuth(c.user+"/token", c.apiToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &sync.TransportError{System: "zendesk", Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity {
		var errBody apiError
		json.NewDecoder(resp.Body).Decode(&errBody)
		log.WithFields(log.Fields{"path": path, "error": errBody.Error,
			"description": errBody.Description}).Debug("Create rejected as duplicate.")
		return &sync.ConflictError{Kind: "record", Key: path}
	}

	if resp.StatusCode == http.StatusNotFound {
		return &sync.NotFoundError{Kind: "record", Key: path}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var errBody apiError
		json.NewDecoder(resp.Body).Decode(&errBody)
		return &sync.TransportError{
			System: "zendesk",
			Op:     method + " " + path,
			Err:    fmt.Errorf("status %d: %s %s", resp.StatusCode, errBody.Error, errBody.Description),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

type organizationResponse struct {
	Organization *M.ZendeskOrganization `json:"organization"`
}

type organizationsResponse struct {
	Organizations []M.ZendeskOrganization `json:"organizations"`
	Links         *cursorLinks            `json:"links"`
	Meta          *cursorMeta             `json:"meta"`
}

type userResponse struct {
	User *M.ZendeskUser `json:"user"`
}

type usersResponse struct {
	Users []M.ZendeskUser `json:"users"`
	Links *cursorLinks    `json:"links"`
	Meta  *cursorMeta     `json:"meta"`
}

type membershipsResponse struct {
	OrganizationMemberships []M.ZendeskOrganizationMembership `json:"organization_memberships"`
	Links                   *cursorLinks                      `json:"links"`
	Meta                    *cursorMeta                       `json:"meta"`
}

type jobStatusResponse struct {
	JobStatus *M.ZendeskJobStatus `json:"job_status"`
}

type organizationFieldResponse struct {
	OrganizationField *M.ZendeskOrganizationField `json:"organization_field"`
}

type cursorLinks struct {
	Prev string `json:"prev"`
	Next string `json:"next"`
}

type cursorMeta struct {
	HasMore bool `json:"has_more"`
}

// GetOrganizationsByExternalIDs looks up organizations by their source
// system identifiers. Missing ids are simply absent from the result.
func (c *Client) GetOrganizationsByExternalIDs(externalIDs []string) ([]M.ZendeskOrganization, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}

	path := "/organizations/show_many.json?external_ids=" +
		url.QueryEscape(strings.Join(externalIDs, ","))

	var resp organizationsResponse
	if err := c.do(http.MethodGet, path, nil, &resp); err != nil {
		if sync.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return resp.Organizations, nil
}

// SearchOrganizationsByName returns organizations whose name starts with
// the given prefix.
func (c *Client) SearchOrganizationsByName(name string) ([]M.ZendeskOrganization, error) {
	path := "/organizations/autocomplete.json?name=" + url.QueryEscape(name)

	var resp organizationsResponse
	if err := c.do(http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Organizations, nil
}

func (c *Client) CreateOrganization(org *M.ZendeskOrganization) (*M.ZendeskOrganization, error) {
	var resp organizationResponse
	err := c.do(http.MethodPost, "/organizations.json",
		organizationResponse{Organization: org}, &resp)
	if err != nil {
		if sync.IsConflict(err) {
			return nil, &sync.ConflictError{Kind: "organization", Key: org.Name}
		}
		return nil, err
	}
	return resp.Organization, nil
}

func (c *Client) UpdateOrganization(org *M.ZendeskOrganization) (*M.ZendeskOrganization, error) {
	var resp organizationResponse
	err := c.do(http.MethodPut, fmt.Sprintf("/organizations/%d.json", org.ID),
		organizationResponse{Organization: org}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Organization, nil
}

// ListOrganizations walks all organization pages with cursor pagination.
func (c *Client) ListOrganizations() ([]M.ZendeskOrganization, error) {
	var organizations []M.ZendeskOrganization

	path := fmt.Sprintf("/organizations.json?page[size]=%d", defaultPageSize)
	for {
		var resp organizationsResponse
		if err := c.do(http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		organizations = append(organizations, resp.Organizations...)

		if resp.Meta == nil || !resp.Meta.HasMore {
			return organizations, nil
		}
		if resp.Links == nil || resp.Links.Next == "" {
			return nil, errors.New("next page URL is missing")
		}
		path = resp.Links.Next
		time.Sleep(pageFetchDelay)
	}
}

// GetUsersByExternalIDs looks up users by their source system identifiers.
func (c *Client) GetUsersByExternalIDs(externalIDs []string) ([]M.ZendeskUser, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}

	path := "/users/show_many.json?external_ids=" +
		url.QueryEscape(strings.Join(externalIDs, ","))

	var resp usersResponse
	if err := c.do(http.MethodGet, path, nil, &resp); err != nil {
		if sync.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return resp.Users, nil
}

// SearchUsersByEmail searches users on the email natural key.
func (c *Client) SearchUsersByEmail(email string) ([]M.ZendeskUser, error) {
	path := "/users/search.json?query=" + url.QueryEscape("email:"+email)

	var resp usersResponse
	if err := c.do(http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

func (c *Client) CreateUser(user *M.ZendeskUser) (*M.ZendeskUser, error) {
	var resp userResponse
	err := c.do(http.MethodPost, "/users.json", userResponse{User: user}, &resp)
	if err != nil {
		if sync.IsConflict(err) {
			return nil, &sync.ConflictError{Kind: "user", Key: user.Email}
		}
		return nil, err
	}
	return resp.User, nil
}

func (c *Client) UpdateUser(user *M.ZendeskUser) (*M.ZendeskUser, error) {
	var resp userResponse
	err := c.do(http.MethodPut, fmt.Sprintf("/users/%d.json", user.ID),
		userResponse{User: user}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.User, nil
}

// ListUsers walks all user pages with cursor pagination.
func (c *Client) ListUsers() ([]M.ZendeskUser, error) {
	var users []M.ZendeskUser

	path := fmt.Sprintf("/users.json?page[size]=%d", defaultPageSize)
	for {
		var resp usersResponse
		if err := c.do(http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		users = append(users, resp.Users...)

		if resp.Meta == nil || !resp.Meta.HasMore {
			return users, nil
		}
		if resp.Links == nil || resp.Links.Next == "" {
			return nil, errors.New("next page URL is missing")
		}
		path = resp.Links.Next
		time.Sleep(pageFetchDelay)
	}
}

// CreateManyUsers submits one bulk create-or-update job.
func (c *Client) CreateManyUsers(users []M.ZendeskUser) (*M.ZendeskJobStatus, error) {
	var resp jobStatusResponse
	err := c.do(http.MethodPost, "/users/create_or_update_many.json",
		map[string]interface{}{"users": users}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.JobStatus, nil
}

// ListOrganizationMemberships returns one membership page. cursor is the
// next page URL from the previous call, empty for the first page. The
// returned cursor is empty on the last page.
func (c *Client) ListOrganizationMemberships(orgID int64, cursor string) ([]M.ZendeskOrganizationMembership, string, error) {
	path := cursor
	if path == "" {
		path = fmt.Sprintf("/organizations/%d/organization_memberships.json?page[size]=%d",
			orgID, defaultPageSize)
	}

	var resp membershipsResponse
	if err := c.do(http.MethodGet, path, nil, &resp); err != nil {
		return nil, "", err
	}

	next := ""
	if resp.Meta != nil && resp.Meta.HasMore && resp.Links != nil {
		next = resp.Links.Next
	}
	return resp.OrganizationMemberships, next, nil
}

// CreateManyMemberships submits one bulk membership-create job.
func (c *Client) CreateManyMemberships(memberships []M.ZendeskOrganizationMembership) (*M.ZendeskJobStatus, error) {
	var resp jobStatusResponse
	err := c.do(http.MethodPost, "/organization_memberships/create_many.json",
		map[string]interface{}{"organization_memberships": memberships}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.JobStatus, nil
}

// DestroyManyMemberships submits one bulk membership-delete job.
func (c *Client) DestroyManyMemberships(membershipIDs []int64) (*M.ZendeskJobStatus, error) {
	ids := make([]string, 0, len(membershipIDs))
	for _, id := range membershipIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}

	path := "/organization_memberships/destroy_many.json?ids=" + strings.Join(ids, ",")

	var resp jobStatusResponse
	if err := c.do(http.MethodDelete, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.JobStatus, nil
}

// GetJobStatus polls one async job.
func (c *Client) GetJobStatus(jobID string) (*M.ZendeskJobStatus, error) {
	var resp jobStatusResponse
	if err := c.do(http.MethodGet, "/job_statuses/"+jobID+".json", nil, &resp); err != nil {
		return nil, err
	}
	return resp.JobStatus, nil
}

// GetOrganizationField fetches one organization field with its options.
func (c *Client) GetOrganizationField(key string) (*M.ZendeskOrganizationField, error) {
	var resp organizationFieldResponse
	if err := c.do(http.MethodGet, "/organization_fields/"+key+".json", nil, &resp); err != nil {
		return nil, err
	}
	return resp.OrganizationField, nil
}

// UpdateOrganizationField replaces the custom field options of an
// organization field, preserving the ids of options that already exist so
// the target treats them as updates.
func (c *Client) UpdateOrganizationField(field *M.ZendeskOrganizationField) (*M.ZendeskOrganizationField, error) {
	current, err := c.GetOrganizationField(field.Key)
	if err != nil {
		return nil, err
	}

	optionIDs := map[string]*string{}
	for i := range current.CustomFieldOptions {
		optionIDs[current.CustomFieldOptions[i].Value] = current.CustomFieldOptions[i].ID
	}
	for i := range field.CustomFieldOptions {
		if id, ok := optionIDs[field.CustomFieldOptions[i].Value]; ok {
			field.CustomFieldOptions[i].ID = id
		}
	}

	var resp organizationFieldResponse
	err = c.do(http.MethodPut, "/organization_fields/"+field.Key+".json",
		organizationFieldResponse{OrganizationField: field}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.OrganizationField, nil
}
