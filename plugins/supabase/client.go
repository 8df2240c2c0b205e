package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"meditrackctl/model"
)

const (
	authAdminUsersPath = "/auth/v1/admin/users"
	restPath           = "/rest/v1"
	listUsersPerPage   = 50
)

var (
	ErrUserAlreadyExists = errors.New("supabase: user already exists")
	ErrUserNotFound      = errors.New("supabase: user not found")
)

// Client talks to a Supabase project: the GoTrue admin API for account
// management and the PostgREST data API for table access. Which rows are
// visible depends entirely on the key the client was built with (service-role
// keys bypass row-level security, anon keys do not).
type Client struct {
	BaseURL string
	APIKey  string

	httpc *http.Client
}

// NewClient builds a client authenticated with apiKey. The bearer header is
// handled by an oauth2 static-token transport; the PostgREST apikey header is
// set per request.
func NewClient(baseURL, apiKey string) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey})
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		httpc:   oauth2.NewClient(context.Background(), ts),
	}
}

func (c *Client) newRequest(method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewBuffer(body)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// CreateUserRequest is the payload for the admin create-user endpoint.
// EmailConfirm skips the confirmation mail, which is what we want for
// accounts provisioned out-of-band.
type CreateUserRequest struct {
	Email        string         `json:"email"`
	Password     string         `json:"password"`
	EmailConfirm bool           `json:"email_confirm"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// AdminUser models the JSON returned by the GoTrue admin endpoints.
type AdminUser struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	Role             string         `json:"role"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	UserMetadata     map[string]any `json:"user_metadata"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

type listUsersResponse struct {
	Users []AdminUser `json:"users"`
	Aud   string      `json:"aud"`
}

// CreateAdminUser calls POST /auth/v1/admin/users. Account creation is not
// idempotent on the backend: a second call for the same email errors instead
// of returning the existing row, so duplicates are surfaced as
// ErrUserAlreadyExists for the caller to branch on.
func (c *Client) CreateAdminUser(create CreateUserRequest) (*AdminUser, error) {
	jsonBody, err := json.Marshal(create)
	if err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}

	req, err := c.newRequest("POST", authAdminUsersPath, jsonBody)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var authErr Error
		if err := json.Unmarshal(body, &authErr); err == nil && authErr.any() {
			if isDuplicateUser(authErr.ErrorCode, authErr.message()) {
				return nil, fmt.Errorf("%w: %s", ErrUserAlreadyExists, authErr.message())
			}
			return nil, fmt.Errorf("CreateAdminUser failed for %s (%s): %s – %s",
				create.Email, authErr.ErrorCode, resp.Status, authErr.message())
		}
		// Fallback: unknown error format
		return nil, fmt.Errorf("CreateAdminUser failed: %s – %s", resp.Status, string(body))
	}

	var user AdminUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &user, nil
}

// ListUsers pages through GET /auth/v1/admin/users and returns every account
// in the identity store.
func (c *Client) ListUsers() ([]AdminUser, error) {
	var allUsers []AdminUser
	page := 1
	for {
		path := fmt.Sprintf("%s?page=%d&per_page=%d", authAdminUsersPath, page, listUsersPerPage)
		req, err := c.newRequest("GET", path, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("ListUsers failed: %s – %s", resp.Status, string(body))
		}

		var lr listUsersResponse
		if err := json.Unmarshal(body, &lr); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}

		allUsers = append(allUsers, lr.Users...)
		if len(lr.Users) < listUsersPerPage {
			break
		}
		page++
	}
	return allUsers, nil
}

// FindUserByEmail lists accounts and matches the email exactly
// (case-insensitive, trimmed). Returns ErrUserNotFound when absent.
func (c *Client) FindUserByEmail(email string) (*AdminUser, error) {
	users, err := c.ListUsers()
	if err != nil {
		return nil, err
	}
	target := normalizeEmail(email)
	if target == "" {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	for i, u := range users {
		if normalizeEmail(u.Email) == target {
			return &users[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUserNotFound, email)
}

// ProfileUpdate is the PATCH body that flips a profile to fully privileged.
type ProfileUpdate struct {
	Role       model.Role `json:"role"`
	IsApproved bool       `json:"is_approved"`
	ApprovedBy string     `json:"approved_by"`
	ApprovedAt string     `json:"approved_at"`
}

// UpdateProfile calls PATCH /rest/v1/user_profiles?id=eq.{userID}.
func (c *Client) UpdateProfile(userID string, patch ProfileUpdate) error {
	jsonBody, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to encode body: %w", err)
	}

	path := fmt.Sprintf("%s/user_profiles?id=eq.%s", restPath, url.QueryEscape(userID))
	req, err := c.newRequest("PATCH", path, jsonBody)
	if err != nil {
		return err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("UpdateProfile failed for %s: %s – %s", userID, resp.Status, string(body))
	}
	return nil
}

// GetProfileByEmail reads the user_profiles row for an email, or nil when no
// row matches.
func (c *Client) GetProfileByEmail(email string) (*model.UserProfile, error) {
	path := fmt.Sprintf("%s/user_profiles?select=*&email=eq.%s", restPath, url.QueryEscape(email))
	req, err := c.newRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GetProfileByEmail failed: %s – %s", resp.Status, string(body))
	}

	var profiles []model.UserProfile
	if err := json.Unmarshal(body, &profiles); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(profiles) == 0 {
		return nil, nil
	}
	return &profiles[0], nil
}

// CountRows returns the exact row count for a table via the PostgREST
// Content-Range header, touching at most one row of data.
func (c *Client) CountRows(table string) (int64, error) {
	path := fmt.Sprintf("%s/%s?select=id&limit=1", restPath, url.PathEscape(table))
	req, err := c.newRequest("GET", path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", "count=exact")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("CountRows failed for %s: %s – %s", table, resp.Status, string(body))
	}

	// Content-Range is "0-0/42" or "*/0" for an empty table.
	contentRange := resp.Header.Get("Content-Range")
	idx := strings.LastIndex(contentRange, "/")
	if idx < 0 {
		return 0, fmt.Errorf("CountRows: missing Content-Range header for %s", table)
	}
	count, err := strconv.ParseInt(contentRange[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("CountRows: bad Content-Range %q: %w", contentRange, err)
	}
	return count, nil
}

// ExecSQL submits an arbitrary SQL script to the exec_sql RPC endpoint. The
// endpoint is not a stock Supabase capability; callers must be prepared for
// it to be absent on a given deployment.
func (c *Client) ExecSQL(sqlContent string) error {
	jsonBody, err := json.Marshal(map[string]string{"sql": sqlContent})
	if err != nil {
		return fmt.Errorf("failed to encode body: %w", err)
	}

	req, err := c.newRequest("POST", restPath+"/rpc/exec_sql", jsonBody)
	if err != nil {
		return err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ExecSQL failed: %s – %s", resp.Status, string(body))
	}
	return nil
}

// Query describes a PostgREST read: selected columns, row limit, sort order.
type Query struct {
	Select string
	Limit  int
	Order  string
}

func (q Query) encode() string {
	values := url.Values{}
	if q.Select != "" {
		values.Set("select", q.Select)
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Order != "" {
		values.Set("order", q.Order)
	}
	return values.Encode()
}

// RowsResult is the raw outcome of a single data-API attempt. Non-2xx
// statuses are not turned into errors here: the smoke tests want to inspect
// the status and report the raw body themselves.
type RowsResult struct {
	Status int
	Body   []byte
}

// OK reports whether the attempt came back 200/201.
func (r *RowsResult) OK() bool {
	return r.Status == http.StatusOK || r.Status == http.StatusCreated
}

// Decode unmarshals the body into v.
func (r *RowsResult) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Select issues GET /rest/v1/{table} with the query encoded as parameters.
// Only transport-level failures return an error.
func (c *Client) Select(table string, q Query) (*RowsResult, error) {
	path := restPath + "/" + url.PathEscape(table)
	if encoded := q.encode(); encoded != "" {
		path += "?" + encoded
	}
	req, err := c.newRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &RowsResult{Status: resp.StatusCode, Body: body}, nil
}

// Insert issues POST /rest/v1/{table} with record as the JSON body and asks
// for the created representation back.
func (c *Client) Insert(table string, record any) (*RowsResult, error) {
	jsonBody, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}

	req, err := c.newRequest("POST", restPath+"/"+url.PathEscape(table), jsonBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &RowsResult{Status: resp.StatusCode, Body: body}, nil
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
