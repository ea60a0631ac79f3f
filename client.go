package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type (
	StampResponse struct {
		Success  bool   `json:"success"`
		Message  string `json:"message"`
		Time     string `json:"time"`
		Document string `json:"document"`
	}

	StatusResponse struct {
		Timestamp    string `json:"timestamp"`
		DocumentPath string `json:"document_path"`
		Month        string `json:"month"`
		ServerStatus string `json:"server_status"`
	}

	ErrorResponse struct {
		Error string `json:"error"`
	}

	// PanelEvent is a message pushed by the panel's websocket.
	PanelEvent struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
)

// APIClient drives a running panel over HTTP.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *APIClient) CheckIn() (*StampResponse, error) {
	var res StampResponse
	if err := c.do(http.MethodPost, "/api/checkin", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *APIClient) CheckOut() (*StampResponse, error) {
	var res StampResponse
	if err := c.do(http.MethodPost, "/api/checkout", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *APIClient) Status() (*StatusResponse, error) {
	var res StatusResponse
	if err := c.do(http.MethodGet, "/api/status", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *APIClient) do(method, path string, out any) error {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		var errRes ErrorResponse
		body, _ := io.ReadAll(res.Body)
		if err := json.Unmarshal(body, &errRes); err != nil || errRes.Error == "" {
			return fmt.Errorf("panel returned %s", res.Status)
		}
		return fmt.Errorf("%s", errRes.Error)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

// Watch subscribes to panel events and calls handle for each one until the
// connection closes or handle returns an error.
func (c *APIClient) Watch(handle func(PanelEvent) error) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid panel url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("error connecting to %s: %w", u, err)
	}
	defer conn.Close()

	for {
		var ev PanelEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("error reading event: %w", err)
		}
		if err := handle(ev); err != nil {
			return err
		}
	}
}
