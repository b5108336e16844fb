package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "groupcal/internal/log"
	"groupcal/internal/model"
)

// Client talks to the group backend over JSON/HTTPS with bearer-token auth.
// Event reads are cached on disk (ETag / Last-Modified) so a network failure
// degrades to the last known body instead of blanking the schedule.
type Client struct {
	baseURL  string
	token    string
	client   *http.Client
	cacheDir string
}

// NewClient creates a backend client.
//
// cacheDir is the base directory for the per-URL event cache. Example:
// "/var/lib/groupcal/api-cache".
func NewClient(baseURL, token, cacheDir string) *Client {
	if cacheDir == "" {
		// Caller should set this explicitly; fall back to a relative dir
		// so that development runs without root permissions.
		cacheDir = "./var/api-cache"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheDir: cacheDir,
	}
}

// APIError is a non-2xx backend response. Callers can distinguish it from
// transport errors with errors.As.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Body)
}

// EventsResult is the outcome of fetching a group's one-time events.
// FromCache marks responses served from the disk cache (304 or a degraded
// fetch); callers surface that as partial data instead of hiding it.
type EventsResult struct {
	Events    []model.Event
	FromCache bool
}

// Wire envelopes. The backend wraps payloads as { "data": ... }.
type groupEnvelope struct {
	Data model.Group `json:"data"`
}

type eventsEnvelope struct {
	Data []model.Event `json:"data"`
}

type eventEnvelope struct {
	Data model.Event `json:"data"`
}

// cacheEntry holds HTTP cache metadata for a single events URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Group fetches the group entity (including its routines).
func (c *Client) Group(ctx context.Context, groupID string) (model.Group, error) {
	if groupID == "" {
		return model.Group{}, errors.New("api: group id is empty")
	}

	var env groupEnvelope
	if err := c.getJSON(ctx, "/groups/"+groupID, &env); err != nil {
		return model.Group{}, err
	}
	return env.Data, nil
}

// GroupEvents fetches the one-time events of a group, honoring ETag and
// Last-Modified via a disk cache keyed by a hash of the URL. On network
// error or a non-OK status the cached body, if any, is returned with
// FromCache set; only when no cached body exists does the call fail.
func (c *Client) GroupEvents(ctx context.Context, groupID string) (EventsResult, error) {
	if groupID == "" {
		return EventsResult{}, errors.New("api: group id is empty")
	}

	url := c.baseURL + "/groups/" + groupID + "/events"

	cachePath, err := c.cachePathForURL(url)
	if err != nil {
		return EventsResult{}, err
	}
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return EventsResult{}, err
	}

	meta, _ := c.loadCacheMeta(cachePath)
	cachedBody, _ := c.loadCacheBody(cachePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return EventsResult{}, err
	}
	c.authorize(req)

	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("api: events fetch network error, using cached body", err,
				"group", groupID, "url", redactURL(url))
			return decodeEvents(cachedBody, true)
		}
		return EventsResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return EventsResult{}, readErr
		}

		newMeta := cacheEntry{
			URL:          url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := c.saveCache(cachePath, newMeta, body); err != nil {
			// Log but still return the freshly fetched body.
			appLog.Error("api: events cache save failed", err, "group", groupID)
		}

		return decodeEvents(body, false)

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return EventsResult{}, errors.New("api: 304 Not Modified but no cached body available")
		}
		appLog.Debug("api: events not modified, using cache", "group", groupID)
		return decodeEvents(cachedBody, true)

	default:
		apiErr := newAPIError(resp)
		if len(cachedBody) > 0 {
			appLog.Error("api: events fetch non-OK, using cached body", apiErr,
				"group", groupID, "url", redactURL(url), "status", resp.StatusCode)
			return decodeEvents(cachedBody, true)
		}
		return EventsResult{}, apiErr
	}
}

// CreateEvent creates a one-time event in the group and returns the stored
// entity (with its server-assigned id).
func (c *Client) CreateEvent(ctx context.Context, groupID string, ev model.Event) (model.Event, error) {
	if groupID == "" {
		return model.Event{}, errors.New("api: group id is empty")
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return model.Event{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/groups/"+groupID+"/events", bytes.NewReader(payload))
	if err != nil {
		return model.Event{}, err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return model.Event{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return model.Event{}, newAPIError(resp)
	}

	var env eventEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return model.Event{}, err
	}
	return env.Data, nil
}

// UpdateEvent replaces a one-time event and returns the stored entity.
func (c *Client) UpdateEvent(ctx context.Context, groupID string, ev model.Event) (model.Event, error) {
	if groupID == "" || ev.ID == "" {
		return model.Event{}, errors.New("api: group or event id is empty")
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return model.Event{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/groups/"+groupID+"/events/"+ev.ID, bytes.NewReader(payload))
	if err != nil {
		return model.Event{}, err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return model.Event{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Event{}, newAPIError(resp)
	}

	var env eventEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return model.Event{}, err
	}
	return env.Data, nil
}

// DeleteEvent removes a one-time event from the group.
func (c *Client) DeleteEvent(ctx context.Context, groupID, eventID string) error {
	if groupID == "" || eventID == "" {
		return errors.New("api: group or event id is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/groups/"+groupID+"/events/"+eventID, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return newAPIError(resp)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return newAPIError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
}

func decodeEvents(body []byte, fromCache bool) (EventsResult, error) {
	var env eventsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return EventsResult{}, err
	}
	return EventsResult{Events: env.Data, FromCache: fromCache}, nil
}

func newAPIError(resp *http.Response) *APIError {
	// Keep a short prefix of the body for diagnostics; backends tend to
	// return a JSON error object here.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &APIError{
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
	}
}

// redactURL hides the path and query of a backend URL for logging purposes.
// Group ids live in the path and should not end up in log files.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "api://...(redacted)"
	}

	// Find the next slash after the host.
	j := i + 3
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + redactedSuffix
}

func (c *Client) cachePathForURL(url string) (string, error) {
	if url == "" {
		return "", errors.New("empty url")
	}
	sum := sha256.Sum256([]byte(url))
	// Use first 16 hex chars as directory name.
	dir := hex.EncodeToString(sum[:8])
	return filepath.Join(c.cacheDir, dir), nil
}

func (c *Client) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (c *Client) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.json"))
}

func (c *Client) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.json"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}
