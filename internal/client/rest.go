package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/vovakirdan/pairchat-server/internal/core"
	"github.com/vovakirdan/pairchat-server/internal/proto"
	"github.com/vovakirdan/pairchat-server/internal/recency"
)

// Credentials is what the server returns on register and login.
type Credentials struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

type conversationDTO struct {
	ID          string                `json:"id"`
	Members     []string              `json:"members"`
	LastMessage *proto.MessagePayload `json:"lastMessage"`
	CreatedAt   time.Time             `json:"createdAt"`
}

// Login exchanges username and password for a token.
func Login(ctx context.Context, hc *http.Client, serverURL, username, password string) (*Credentials, error) {
	return authenticate(ctx, hc, serverURL, "/api/login", username, password)
}

// Register creates an account and returns its token.
func Register(ctx context.Context, hc *http.Client, serverURL, username, password string) (*Credentials, error) {
	return authenticate(ctx, hc, serverURL, "/api/register", username, password)
}

func authenticate(ctx context.Context, hc *http.Client, serverURL, path, username, password string) (*Credentials, error) {
	body := map[string]string{"username": username, "password": password}
	var creds Credentials
	if err := doJSON(ctx, hc, http.MethodPost, serverURL+path, "", body, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// OpenConversation creates or returns the conversation with peerID.
func (c *Client) OpenConversation(ctx context.Context, peerID string) (recency.Conversation, error) {
	var dto conversationDTO
	if err := doJSON(ctx, c.http, http.MethodPost, c.apiURL("/api/conversations"), c.cfg.Token, map[string]string{"peerId": peerID}, &dto); err != nil {
		return recency.Conversation{}, err
	}
	conv := c.adoptConversation(dto)
	c.view.Apply(conv)
	return conv, nil
}

// FetchConversations performs a full fetch of the conversation list and
// merges it into the view.
func (c *Client) FetchConversations(ctx context.Context) ([]recency.Conversation, error) {
	var dtos []conversationDTO
	if err := doJSON(ctx, c.http, http.MethodGet, c.apiURL("/api/conversations"), c.cfg.Token, nil, &dtos); err != nil {
		return nil, err
	}
	convs := lo.Map(dtos, func(d conversationDTO, _ int) recency.Conversation { return c.adoptConversation(d) })
	c.view.Apply(convs...)
	return convs, nil
}

// Resync fetches the newest messages of a conversation and reconciles local state with them.
func (c *Client) Resync(ctx context.Context, conversationID string, limit int) error {
	path := "/api/conversations/" + conversationID + "/messages"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var payloads []proto.MessagePayload
	if err := doJSON(ctx, c.http, http.MethodGet, c.apiURL(path), c.cfg.Token, nil, &payloads); err != nil {
		return err
	}
	c.Reconcile(conversationID, lo.Map(payloads, func(p proto.MessagePayload, _ int) *core.Message { return fromPayload(p) }))
	return nil
}

func (c *Client) adoptConversation(d conversationDTO) recency.Conversation {
	conv := recency.Conversation{ID: d.ID, CreatedAt: d.CreatedAt}
	copy(conv.Members[:], d.Members)
	if d.LastMessage != nil {
		conv.LastMessage = fromPayload(*d.LastMessage)
	}
	c.mu.Lock()
	c.members[d.ID] = conv.Members
	c.mu.Unlock()
	return conv
}

func (c *Client) apiURL(path string) string {
	return strings.TrimSuffix(c.cfg.ServerURL, "/") + path
}

func doJSON(ctx context.Context, hc *http.Client, method, url, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%s %s: status %d: %s", method, url, resp.StatusCode, apiErr.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
