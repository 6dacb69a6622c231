package auth

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/metoffice/owa-checker/internal/config"
)

// Scopes requested from the Microsoft identity platform. offline_access is
// required for refresh tokens.
var Scopes = []string{
	"Calendars.Read",
	"Mail.Read",
	"openid",
	"offline_access",
	"User.Read",
	"User.ReadBasic.All",
}

// RedirectURI is the fixed loopback address registered for the application.
// Only used during the interactive flow.
const RedirectURI = "http://localhost:1234"

// OAuthConfig builds the oauth2 configuration for the given credential.
// The tenant from the credential selects the authority endpoint.
func OAuthConfig(cred config.Credential) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Endpoint:     microsoft.AzureADEndpoint(cred.Domain),
		RedirectURL:  RedirectURI,
		Scopes:       Scopes,
	}
}
