// Package awsecr provides the Amazon ECR side of the publish step: registry
// authentication, repository management, and caller identity.
package awsecr

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/awse2b/awse2b/errors"
)

// Clients bundles the AWS service clients this package uses.
type Clients struct {
	ECR ECRAPI
	STS STSAPI
}

// NewClients builds AWS clients for the given region using the default
// credential chain.
func NewClients(ctx context.Context, region string) (*Clients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap("load AWS configuration", region, err)
	}
	return &Clients{
		ECR: ecr.NewFromConfig(cfg),
		STS: sts.NewFromConfig(cfg),
	}, nil
}

// RegistryAuth is a decoded ECR authorization: the registry endpoint plus
// docker-login credentials. Short-lived, never persisted.
type RegistryAuth struct {
	// Server is the registry endpoint without the https:// scheme, usable
	// both for docker login and as the image reference prefix.
	Server   string
	Username string
	Password string
}

// AccountID returns the AWS account of the current caller.
func (c *Clients) AccountID(ctx context.Context) (string, error) {
	out, err := c.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", errors.Wrap("get caller identity", "", err)
	}
	if out.Account == nil {
		return "", nil
	}
	return *out.Account, nil
}

// Authorize fetches and decodes an ECR authorization token into docker-login
// credentials.
func (c *Clients) Authorize(ctx context.Context) (*RegistryAuth, error) {
	out, err := c.ECR.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return nil, errors.Wrap("get ECR authorization token", "", err)
	}
	if len(out.AuthorizationData) == 0 {
		return nil, fmt.Errorf("ECR returned no authorization data")
	}

	data := out.AuthorizationData[0]
	if data.AuthorizationToken == nil {
		return nil, fmt.Errorf("ECR authorization data is missing a token")
	}

	decoded, err := base64.StdEncoding.DecodeString(*data.AuthorizationToken)
	if err != nil {
		return nil, errors.Wrap("decode ECR authorization token", "", err)
	}

	username, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return nil, fmt.Errorf("ECR authorization token is not in user:password form")
	}

	server := ""
	if data.ProxyEndpoint != nil {
		server = strings.TrimPrefix(*data.ProxyEndpoint, "https://")
	}

	return &RegistryAuth{
		Server:   server,
		Username: username,
		Password: password,
	}, nil
}

// EnsureRepository creates the repository if it does not already exist.
func (c *Clients) EnsureRepository(ctx context.Context, name string) error {
	_, err := c.ECR.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{
		RepositoryNames: []string{name},
	})
	if err == nil {
		return nil
	}

	_, err = c.ECR.CreateRepository(ctx, &ecr.CreateRepositoryInput{
		RepositoryName: &name,
	})
	return errors.Wrap("create ECR repository", name, err)
}
