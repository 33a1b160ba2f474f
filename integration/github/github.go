package github

import (
	"context"
	"net/http"

	"github.com/bradleyfalzon/ghinstallation/v2"
	gh "github.com/google/go-github/v53/github"
	"github.com/pkg/errors"

	"github.com/HarryGifford/entra-object-sync/sync"
)

// Client answers repository membership checks as a GitHub App
// installation.
type Client struct {
	api *gh.Client
}

// NewClient authenticates as the GitHub App installation. privateKey is the
// app's PEM encoded signing key; the transport refreshes the installation
// token as it expires.
func NewClient(appID, installationID int64, privateKey []byte) (*Client, error) {
	transport, err := ghinstallation.New(http.DefaultTransport, appID, installationID, privateKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build github app transport")
	}
	return &Client{api: gh.NewClient(&http.Client{Transport: transport})}, nil
}

// IsRepoCollaborator reports whether the username is a collaborator on the
// owner's repository. An unknown user is not an error, just not a
// collaborator.
func (c *Client) IsRepoCollaborator(ctx context.Context, owner, repo, username string) (bool, error) {
	isCollaborator, _, err := c.api.Repositories.IsCollaborator(ctx, owner, repo, username)
	if err != nil {
		return false, &sync.TransportError{System: "github", Op: "IsCollaborator", Err: err}
	}
	return isCollaborator, nil
}
