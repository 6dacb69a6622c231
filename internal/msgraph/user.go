package msgraph

import (
	"context"
	"fmt"
	"net/url"
)

// User contains the signed-in user's basic profile from Microsoft Graph.
type User struct {
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// Email returns the user's address, falling back to the principal name when
// the mail attribute is not set.
func (u *User) Email() string {
	if u.Mail != "" {
		return u.Mail
	}
	return u.UserPrincipalName
}

// Me fetches the signed-in user's profile.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	params := url.Values{"$select": {"displayName,mail,userPrincipalName"}}

	var user User
	if err := c.getJSON(ctx, token, "/me", params, &user); err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	return &user, nil
}
