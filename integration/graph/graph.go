package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2/clientcredentials"

	M "github.com/HarryGifford/entra-object-sync/model"
	"github.com/HarryGifford/entra-object-sync/sync"
)

const (
	GRAPH_BASE_URL    = "https://graph.microsoft.com/v1.0"
	GRAPH_SCOPE       = "https://graph.microsoft.com/.default"
	GRAPH_TOKEN_ROUTE = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"

	userSelectFields = "id,displayName,givenName,surname,mail,accountEnabled," +
		"jobTitle,department,officeLocation,mobilePhone,businessPhones," +
		"preferredLanguage,usageLocation,onPremisesExtensionAttributes"
)

type listResponse struct {
	Value    json.RawMessage `json:"value"`
	NextLink string          `json:"@odata.nextLink"`
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client talks to Microsoft Graph with an application token acquired
// through the client credentials grant.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Graph client for one tenant. The returned client
// refreshes its token transparently through the oauth2 token source.
func NewClient(ctx context.Context, tenantID, clientID, clientSecret string) *Client {
	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     fmt.Sprintf(GRAPH_TOKEN_ROUTE, tenantID),
		Scopes:       []string{GRAPH_SCOPE},
	}

	httpClient := conf.Client(ctx)
	httpClient.Timeout = 2 * time.Minute

	return &Client{
		baseURL:    GRAPH_BASE_URL,
		httpClient: httpClient,
	}
}

func (c *Client) do(method, path string, body, out interface{}) error {
	requestURL := path
	if !strings.HasPrefix(path, "http") {
		requestURL = c.baseURL + path
	}

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequest(method, requestURL, reader)
	} else {
		req, err = http.NewRequest(method, requestURL, nil)
	}
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &sync.TransportError{System: "graph", Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &sync.NotFoundError{Kind: "directory object", Key: path}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var errBody graphError
		json.NewDecoder(resp.Body).Decode(&errBody)
		return &sync.TransportError{
			System: "graph",
			Op:     method + " " + path,
			Err: fmt.Errorf("status %d: %s %s", resp.StatusCode,
				errBody.Error.Code, errBody.Error.Message),
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

// listAll walks @odata.nextLink pages and concatenates the raw value
// arrays for the caller to decode.
func (c *Client) listAll(path string, decode func(json.RawMessage) error) error {
	for path != "" {
		var page listResponse
		if err := c.do(http.MethodGet, path, nil, &page); err != nil {
			return err
		}
		if err := decode(page.Value); err != nil {
			return err
		}
		path = page.NextLink
	}
	return nil
}

// ListUsers fetches every directory user with the attribute set this
// system maps.
func (c *Client) ListUsers() ([]M.GraphUser, error) {
	var users []M.GraphUser
	path := "/users?$select=" + userSelectFields

	err := c.listAll(path, func(value json.RawMessage) error {
		var page []M.GraphUser
		if err := json.Unmarshal(value, &page); err != nil {
			return errors.Wrap(err, "failed to decode user page")
		}
		users = append(users, page...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser fetches one user by object id or principal name.
func (c *Client) GetUser(id string) (*M.GraphUser, error) {
	var user M.GraphUser
	path := "/users/" + url.PathEscape(id) + "?$select=" + userSelectFields
	if err := c.do(http.MethodGet, path, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindUsersByMail looks users up on the mail attribute.
func (c *Client) FindUsersByMail(mail string) ([]M.GraphUser, error) {
	filter := fmt.Sprintf("mail eq '%s'", strings.ReplaceAll(mail, "'", "''"))
	path := "/users?$select=" + userSelectFields + "&$filter=" + url.QueryEscape(filter)

	var users []M.GraphUser
	err := c.listAll(path, func(value json.RawMessage) error {
		var page []M.GraphUser
		if err := json.Unmarshal(value, &page); err != nil {
			return errors.Wrap(err, "failed to decode user page")
		}
		users = append(users, page...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) CreateUser(user *M.GraphUser) (*M.GraphUser, error) {
	var created M.GraphUser
	if err := c.do(http.MethodPost, "/users", user, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateUser(user *M.GraphUser) error {
	if user.ID == "" {
		return errors.New("missing user id")
	}
	return c.do(http.MethodPatch, "/users/"+url.PathEscape(user.ID), user, nil)
}

// ListGroups fetches every group with members and open extensions
// expanded. Groups without a project extension are still returned, the
// caller decides relevance.
func (c *Client) ListGroups() ([]M.GraphGroup, error) {
	var groups []M.GraphGroup
	path := "/groups?$select=id,displayName,description" +
		"&$expand=" + url.QueryEscape("members($select=id),extensions")

	err := c.listAll(path, func(value json.RawMessage) error {
		var page []M.GraphGroup
		if err := json.Unmarshal(value, &page); err != nil {
			return errors.Wrap(err, "failed to decode group page")
		}
		groups = append(groups, page...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// GetGroupMembers fetches the full member list of one group. Members past
// the expand cap of ListGroups come from here.
func (c *Client) GetGroupMembers(groupID string) ([]M.GraphUser, error) {
	var members []M.GraphUser
	path := "/groups/" + url.PathEscape(groupID) + "/members?$select=" + userSelectFields

	err := c.listAll(path, func(value json.RawMessage) error {
		var page []M.GraphUser
		if err := json.Unmarshal(value, &page); err != nil {
			return errors.Wrap(err, "failed to decode member page")
		}
		members = append(members, page...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}
