package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"service-desk-bot/internal/domain"
	"service-desk-bot/internal/integrations/httpclient"
)

const defaultGraphURL = "https://graph.microsoft.com/v1.0"

type meResponse struct {
	ID                string `json:"id"`
	GivenName         string `json:"givenName"`
	Surname           string `json:"surname"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	MobilePhone       string `json:"mobilePhone"`
	UsageLocation     string `json:"usageLocation"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// Graph reads the signed-in user's own profile.
type Graph struct {
	http    *httpclient.Client
	baseURL string
}

func NewGraph(hc *httpclient.Client, baseURL string) (*Graph, error) {
	if hc == nil {
		return nil, errors.New("oauth: http client must not be nil")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultGraphURL
	}
	return &Graph{http: hc, baseURL: baseURL}, nil
}

// Me returns the profile of the token's owner with UserID set to the
// principal name and AuthToken set to token.
func (g *Graph) Me(ctx context.Context, token string) (domain.UserProfile, error) {
	if strings.TrimSpace(token) == "" {
		return domain.UserProfile{}, errors.New("oauth: me: token is empty")
	}
	var me meResponse
	if _, err := g.http.Do(ctx, httpclient.Request{
		Method:  http.MethodGet,
		URL:     g.baseURL + "/me",
		Headers: map[string]string{"Authorization": "Bearer " + token},
	}, &me); err != nil {
		return domain.UserProfile{}, fmt.Errorf("oauth: me: %w", err)
	}
	return domain.UserProfile{
		UserID:            me.UserPrincipalName,
		ObjectID:          me.ID,
		GivenName:         me.GivenName,
		Surname:           me.Surname,
		DisplayName:       me.DisplayName,
		Mail:              me.Mail,
		MobilePhone:       me.MobilePhone,
		UsageLocation:     me.UsageLocation,
		UserPrincipalName: me.UserPrincipalName,
		AuthToken:         token,
	}, nil
}
