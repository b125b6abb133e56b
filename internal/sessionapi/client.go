// Package sessionapi is the request/response surface of the game server:
// plain JSON over HTTP, most responses wrapped in a success-boolean
// envelope. The push-channel traffic lives in internal/realtime; this
// client only covers the one-shot calls.
package sessionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/GraysonReimer/WebGuesser/internal/roster"
)

// TokenSource supplies the bearer token for authorized calls. ok=false
// sends the request without credentials.
type TokenSource func() (token string, ok bool)

// Identity is the server's answer to an identity submission: the assigned
// player id and the access token for everything that follows.
type Identity struct {
	PlayerID int    `json:"playerId"`
	Token    string `json:"jwt"`
}

// GameInfo is the round progress summary for an active game.
type GameInfo struct {
	RoundIndex  int `json:"roundIndex"`
	TotalRounds int `json:"totalRounds"`
}

// Client talks to one game server.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenSource
}

// NewClient builds a client for the given base URL, e.g.
// "https://game.example.com".
func NewClient(baseURL string, token TokenSource) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		token:   token,
	}
}

// SetTimeout overrides the per-request timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.http.Timeout = d
}

// CreateSession asks the server for a brand-new lobby and returns its id.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var out struct {
		envelope
		LobbyID string `json:"lobbyId"`
	}
	if err := c.get(ctx, "/api/lobby/create", nil, &out); err != nil {
		return "", err
	}
	if !out.Success {
		return "", fmt.Errorf("create session: %w", ErrRefused)
	}
	return out.LobbyID, nil
}

// FetchPlayers returns the current roster of the lobby.
func (c *Client) FetchPlayers(ctx context.Context, lobbyID string) ([]roster.Player, error) {
	var out struct {
		envelope
		Players []roster.Player `json:"players"`
	}
	if err := c.get(ctx, "/api/lobby/players", url.Values{"lobbyId": {lobbyID}}, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("fetch players: %w", ErrRefused)
	}
	return out.Players, nil
}

// FetchKeywords returns the keywords configured for the lobby so far.
func (c *Client) FetchKeywords(ctx context.Context, lobbyID string) ([]string, error) {
	var out struct {
		envelope
		KeyWords []string `json:"keyWords"`
	}
	if err := c.get(ctx, "/api/lobby/keywords", url.Values{"lobbyId": {lobbyID}}, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("fetch keywords: %w", ErrRefused)
	}
	return out.KeyWords, nil
}

// SubmitIdentity registers the local player with the server and returns the
// assigned id and access token.
func (c *Client) SubmitIdentity(ctx context.Context, p roster.Player) (Identity, error) {
	var out struct {
		envelope
		PlayerInfo Identity `json:"playerInfo"`
	}
	if err := c.post(ctx, "/api/lobby/createclientinfo", p, &out); err != nil {
		return Identity{}, err
	}
	if !out.Success {
		return Identity{}, fmt.Errorf("submit identity: %w", ErrRefused)
	}
	return out.PlayerInfo, nil
}

// FetchAuthInfo checks whether the caller already has standing membership
// in the session. A nil player with nil error means "not authenticated";
// the caller should go through the public join flow instead.
func (c *Client) FetchAuthInfo(ctx context.Context, gameID string) (*roster.Player, error) {
	var out struct {
		Authenticated bool           `json:"authenticated"`
		ClientInfo    *roster.Player `json:"clientInfo"`
	}
	if err := c.get(ctx, "/api/lobby/getauthclient", url.Values{"gameId": {gameID}}, &out); err != nil {
		return nil, err
	}
	if !out.Authenticated {
		return nil, nil
	}
	return out.ClientInfo, nil
}

// JoinGame authorizes the caller for an in-progress game context.
func (c *Client) JoinGame(ctx context.Context, gameID string) error {
	var out envelope
	if err := c.get(ctx, "/api/game/join", url.Values{"id": {gameID}}, &out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("join game: %w", ErrRefused)
	}
	return nil
}

// SubmitAnswer posts the chosen round option.
func (c *Client) SubmitAnswer(ctx context.Context, optionID int, word string) error {
	body := struct {
		ID   int    `json:"id"`
		Word string `json:"word"`
	}{optionID, word}

	var out envelope
	if err := c.post(ctx, "/api/game/answer", body, &out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("submit answer: %w", ErrRefused)
	}
	return nil
}

// FetchRoundInfo returns the game's round progress.
func (c *Client) FetchRoundInfo(ctx context.Context, gameID string) (GameInfo, error) {
	var out GameInfo
	if err := c.get(ctx, "/api/game/info", url.Values{"gameId": {gameID}}, &out); err != nil {
		return GameInfo{}, err
	}
	return out, nil
}

// LoadRoundImage tells the server to fetch and prepare the image for the
// next round. Slow by design; the host announces a server wait first.
func (c *Client) LoadRoundImage(ctx context.Context, gameID string) error {
	var out json.RawMessage
	return c.get(ctx, "/api/game/loadroundimage", url.Values{"gameId": {gameID}}, &out)
}

// SetImageUnaltered tells the server to expose the uncompressed round image.
func (c *Client) SetImageUnaltered(ctx context.Context) error {
	var out json.RawMessage
	return c.get(ctx, "/api/game/settounaltered", nil, &out)
}

// NextImageAlteration asks the server to compute the next progressive
// alteration of the round image.
func (c *Client) NextImageAlteration(ctx context.Context) error {
	var out json.RawMessage
	return c.get(ctx, "/api/game/nextalteration", nil, &out)
}

type envelope struct {
	Success bool `json:"success"`
}

// ErrRefused marks a well-formed response whose envelope said no.
var ErrRefused = errors.New("server refused request")

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	target := c.baseURL + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	return c.do(ctx, http.MethodGet, target, nil, out)
}

func (c *Client) post(ctx context.Context, endpoint string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(b), out)
}

func (c *Client) do(ctx context.Context, method, target string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if tok, ok := c.token(); ok {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned status %d: %s", target, resp.StatusCode, string(respBody))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s response: %w", target, err)
	}
	return nil
}
