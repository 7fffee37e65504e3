package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	catchup "verdant-cloud/internal/catchup/application"
	snapdomain "verdant-cloud/internal/snapshot/domain"
)

// ResyncData is the authoritative state bundle returned by the full resync
// endpoint.
type ResyncData struct {
	Telemetry map[string]snapdomain.TelemetryValue `json:"telemetry"`
	Commands  []snapdomain.CommandView             `json:"commands"`
	Alerts    []snapdomain.Alert                   `json:"alerts"`
}

type resyncEnvelope struct {
	Status    string     `json:"status"`
	Data      ResyncData `json:"data"`
	Timestamp int64      `json:"timestamp"`
}

// APIClient is a minimal REST client for the sync endpoints.
type APIClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewAPIClient constructs an API client.
func NewAPIClient(baseURL, token string) (*APIClient, error) {
	if baseURL == "" {
		return nil, errors.New("realtime: empty base url")
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Snapshot fetches a point-in-time zone snapshot.
func (c *APIClient) Snapshot(ctx context.Context, zoneID string) (snapdomain.Snapshot, error) {
	if zoneID == "" {
		return snapdomain.Snapshot{}, errors.New("realtime: empty zone id")
	}
	var snap snapdomain.Snapshot
	path := "/api/v1/zones/" + url.PathEscape(zoneID) + "/snapshot"
	if err := c.getJSON(ctx, path, &snap); err != nil {
		return snapdomain.Snapshot{}, err
	}
	return snap, nil
}

// EventsAfter fetches one catch-up page of events strictly after afterID.
func (c *APIClient) EventsAfter(ctx context.Context, zoneID string, afterID int64, limit int) (catchup.Page, error) {
	if zoneID == "" {
		return catchup.Page{}, errors.New("realtime: empty zone id")
	}
	query := url.Values{}
	query.Set("after_id", strconv.FormatInt(afterID, 10))
	query.Set("order", "asc")
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var page catchup.Page
	path := "/api/v1/zones/" + url.PathEscape(zoneID) + "/events?" + query.Encode()
	if err := c.getJSON(ctx, path, &page); err != nil {
		return catchup.Page{}, err
	}
	return page, nil
}

// Resync fetches the authoritative reconciliation bundle for a zone.
func (c *APIClient) Resync(ctx context.Context, zoneID string) (ResyncData, error) {
	if zoneID == "" {
		return ResyncData{}, errors.New("realtime: empty zone id")
	}
	var envelope resyncEnvelope
	path := "/api/v1/zones/" + url.PathEscape(zoneID) + "/resync"
	if err := c.getJSON(ctx, path, &envelope); err != nil {
		return ResyncData{}, err
	}
	if envelope.Status != "ok" {
		return ResyncData{}, fmt.Errorf("realtime: resync status %q", envelope.Status)
	}
	return envelope.Data, nil
}

func (c *APIClient) getJSON(ctx context.Context, path string, out any) error {
	if c == nil || c.client == nil {
		return errors.New("realtime: nil api client")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("realtime: http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
