package msgraph

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// MailFolder is a mailbox folder as returned by /me/mailFolders.
type MailFolder struct {
	ID              string `json:"id"`
	DisplayName     string `json:"displayName"`
	UnreadItemCount int    `json:"unreadItemCount"`
}

// Message is an unread message with the fields the checker selects.
type Message struct {
	ID               string   `json:"id"`
	Subject          string   `json:"subject"`
	ReceivedDateTime string   `json:"receivedDateTime"`
	From             *Address `json:"from"`
}

// Address is a sender or recipient address.
type Address struct {
	EmailAddress struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"emailAddress"`
}

// SenderName returns the display name of the sender, or the bare address
// when no name is set.
func (m *Message) SenderName() string {
	if m.From == nil {
		return ""
	}
	if m.From.EmailAddress.Name != "" {
		return m.From.EmailAddress.Name
	}
	return m.From.EmailAddress.Address
}

// SenderAddress returns the sender's address.
func (m *Message) SenderAddress() string {
	if m.From == nil {
		return ""
	}
	return m.From.EmailAddress.Address
}

// listFolders walks /me/mailFolders following @odata.nextLink and returns
// the folders whose display name matches one of the given names
// (case-insensitive). Stops early once every requested name has been seen.
func (c *Client) listFolders(ctx context.Context, token string, names []string) ([]MailFolder, error) {
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[strings.ToLower(name)] = true
	}

	var matched []MailFolder
	next := "/me/mailFolders"
	for next != "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var page struct {
			Value    []MailFolder `json:"value"`
			NextLink string       `json:"@odata.nextLink"`
		}
		if err := c.getJSON(ctx, token, next, nil, &page); err != nil {
			return nil, fmt.Errorf("list mail folders: %w", err)
		}

		for _, folder := range page.Value {
			if wanted[strings.ToLower(folder.DisplayName)] {
				matched = append(matched, folder)
			}
		}
		if len(matched) == len(names) {
			break
		}
		next = page.NextLink
	}

	return matched, nil
}

// UnreadCount returns the total number of unread messages across the given
// folders. Preferred over counting NewMessages results since the message
// listing is truncated by the API's page size.
func (c *Client) UnreadCount(ctx context.Context, token string, folders []string) (int, error) {
	matched, err := c.listFolders(ctx, token, folders)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, folder := range matched {
		count += folder.UnreadItemCount
	}
	return count, nil
}

// NewMessages returns unread messages in the given folders, most recent
// first. When lastSeen is non-empty (a receivedDateTime value as returned by
// Graph) only messages received after it are returned.
func (c *Client) NewMessages(ctx context.Context, token string, folders []string, lastSeen string) ([]Message, error) {
	matched, err := c.listFolders(ctx, token, folders)
	if err != nil {
		return nil, err
	}

	filter := "isRead eq false"
	if lastSeen != "" {
		filter = fmt.Sprintf("isRead eq false and receivedDateTime gt %s", lastSeen)
	}
	params := url.Values{
		"$filter":  {filter},
		"$select":  {"receivedDateTime,subject,from"},
		"$orderby": {"receivedDateTime DESC"},
	}

	var messages []Message
	for _, folder := range matched {
		var page struct {
			Value []Message `json:"value"`
		}
		path := fmt.Sprintf("/me/mailFolders/%s/messages", folder.ID)
		if err := c.getJSON(ctx, token, path, params, &page); err != nil {
			return nil, fmt.Errorf("list messages in %q: %w", folder.DisplayName, err)
		}
		messages = append(messages, page.Value...)
	}

	return messages, nil
}
