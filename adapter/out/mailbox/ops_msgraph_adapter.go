// Package mailbox provides the Microsoft Graph mailbox adapter.
package mailbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"
	"bizops_server/pkg/httputil"
	"bizops_server/pkg/logger"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// refreshBuffer is how long before expiry the access token gets refreshed.
const refreshBuffer = 5 * time.Minute

// =============================================================================
// Graph Adapter
// =============================================================================

// GraphAdapter implements out.Mailbox for a monitored Outlook mailbox.
// Tokens live in the token repository; the adapter refreshes them inside
// the expiry buffer and persists rotated refresh tokens.
type GraphAdapter struct {
	config  *oauth2.Config
	client  *http.Client
	tokens  out.TokenRepository
	mailbox string // user principal name of the monitored mailbox

	mu sync.Mutex // guards token refresh
}

var _ out.Mailbox = (*GraphAdapter)(nil)

// GraphConfig holds Microsoft Graph configuration.
type GraphConfig struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	RedirectURL  string
	Mailbox      string
}

// NewGraphAdapter creates a new Graph adapter.
func NewGraphAdapter(cfg *GraphConfig, tokens out.TokenRepository) *GraphAdapter {
	tenantID := cfg.TenantID
	if tenantID == "" {
		tenantID = "common"
	}

	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes: []string{
			"https://graph.microsoft.com/Mail.ReadWrite",
			"https://graph.microsoft.com/User.Read",
			"offline_access",
		},
		Endpoint: microsoft.AzureADEndpoint(tenantID),
	}

	return &GraphAdapter{
		config:  config,
		client:  httputil.GraphClient(),
		tokens:  tokens,
		mailbox: cfg.Mailbox,
	}
}

// =============================================================================
// Messages
// =============================================================================

// GetMessage fetches a message by provider id.
func (a *GraphAdapter) GetMessage(ctx context.Context, messageID string) (*out.MailboxMessage, error) {
	var msg graphMessage
	path := fmt.Sprintf("%s/messages/%s", a.userPath(), messageID)
	if err := a.get(ctx, path, &msg); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("message %s: %w", messageID, out.ErrMessageGone)
		}
		return nil, err
	}

	return convertMessage(&msg), nil
}

// MoveMessage moves a message to the destination folder.
func (a *GraphAdapter) MoveMessage(ctx context.Context, messageID, folderID string) error {
	path := fmt.Sprintf("%s/messages/%s/move", a.userPath(), messageID)
	err := a.post(ctx, path, map[string]string{
		"destinationId": folderID,
	}, nil)
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("message %s: %w", messageID, out.ErrMessageGone)
		}
		return err
	}
	return nil
}

// ListFolders lists mail folders.
func (a *GraphAdapter) ListFolders(ctx context.Context) ([]*out.MailFolder, error) {
	var resp struct {
		Value []struct {
			ID          string `json:"id"`
			DisplayName string `json:"displayName"`
			TotalCount  int    `json:"totalItemCount"`
			UnreadCount int    `json:"unreadItemCount"`
		} `json:"value"`
	}

	path := fmt.Sprintf("%s/mailFolders?$top=100", a.userPath())
	if err := a.get(ctx, path, &resp); err != nil {
		return nil, err
	}

	folders := make([]*out.MailFolder, len(resp.Value))
	for i, f := range resp.Value {
		folders[i] = &out.MailFolder{
			ID:          f.ID,
			DisplayName: f.DisplayName,
			TotalCount:  f.TotalCount,
			UnreadCount: f.UnreadCount,
		}
	}

	return folders, nil
}

// Search returns messages matching a free-text query.
func (a *GraphAdapter) Search(ctx context.Context, query string, limit int) ([]*out.MailboxMessage, error) {
	params := url.Values{}
	params.Set("$top", fmt.Sprintf("%d", limit))
	params.Set("$search", fmt.Sprintf("%q", query))

	var resp struct {
		Value []graphMessage `json:"value"`
	}

	path := fmt.Sprintf("%s/messages?%s", a.userPath(), params.Encode())
	if err := a.get(ctx, path, &resp); err != nil {
		return nil, err
	}

	messages := make([]*out.MailboxMessage, len(resp.Value))
	for i := range resp.Value {
		messages[i] = convertMessage(&resp.Value[i])
	}

	return messages, nil
}

func (a *GraphAdapter) userPath() string {
	if a.mailbox == "" {
		return "/me"
	}
	return "/users/" + a.mailbox
}

// =============================================================================
// Token Handling
// =============================================================================

// accessToken returns a valid access token, refreshing inside the buffer.
func (a *GraphAdapter) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cached, err := a.tokens.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load mailbox token: %w", err)
	}
	if cached == nil {
		return "", errors.New("mailbox token not provisioned")
	}

	if !cached.NeedsRefresh(refreshBuffer) {
		return cached.AccessToken, nil
	}

	src := a.config.TokenSource(ctx, &oauth2.Token{
		AccessToken:  cached.AccessToken,
		RefreshToken: cached.RefreshToken,
		Expiry:       cached.ExpiresAt,
	})
	fresh, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("failed to refresh mailbox token: %w", err)
	}

	refreshToken := fresh.RefreshToken
	if refreshToken == "" {
		refreshToken = cached.RefreshToken
	}

	if err := a.tokens.Save(ctx, &domain.OAuthToken{
		AccessToken:  fresh.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    fresh.Expiry,
	}); err != nil {
		// The fresh token still works for this call.
		logger.WithError(err).Warn("failed to persist refreshed mailbox token")
	}

	return fresh.AccessToken, nil
}

// =============================================================================
// HTTP helpers
// =============================================================================

type graphError struct {
	Status int
	Body   string
}

func (e *graphError) Error() string {
	return fmt.Sprintf("graph API error: %d - %s", e.Status, e.Body)
}

func isNotFound(err error) bool {
	var ge *graphError
	return errors.As(err, &ge) && ge.Status == http.StatusNotFound
}

func (a *GraphAdapter) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", graphBaseURL+path, nil)
	if err != nil {
		return err
	}

	return a.doRequest(ctx, req, result)
}

func (a *GraphAdapter) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", graphBaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return a.doRequest(ctx, req, result)
}

func (a *GraphAdapter) doRequest(ctx context.Context, req *http.Request, result interface{}) error {
	token, err := a.accessToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return &graphError{Status: resp.StatusCode, Body: string(body)}
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// =============================================================================
// Wire Types
// =============================================================================

type graphMessage struct {
	ID               string         `json:"id"`
	ConversationID   string         `json:"conversationId"`
	Subject          string         `json:"subject"`
	BodyPreview      string         `json:"bodyPreview"`
	Body             graphBody      `json:"body"`
	From             graphRecipient `json:"from"`
	ParentFolderID   string         `json:"parentFolderId"`
	IsRead           bool           `json:"isRead"`
	ReceivedDateTime string         `json:"receivedDateTime"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphRecipient struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

type graphEmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func convertMessage(msg *graphMessage) *out.MailboxMessage {
	return &out.MailboxMessage{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Subject:        msg.Subject,
		From:           msg.From.EmailAddress.Address,
		BodyPreview:    msg.BodyPreview,
		Body:           msg.Body.Content,
		FolderID:       msg.ParentFolderID,
		ReceivedAt:     msg.ReceivedDateTime,
		IsRead:         msg.IsRead,
	}
}
