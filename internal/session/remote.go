package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// RemoteAuthenticator delegates login and registration to the credential
// service over HTTP
type RemoteAuthenticator struct {
	BaseURL string
	HTTP    *http.Client
}

// NewRemoteAuthenticator returns an authenticator for the service at baseURL
func NewRemoteAuthenticator(baseURL string) *RemoteAuthenticator {
	return &RemoteAuthenticator{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type remoteUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type remoteResponse struct {
	Msg    string           `json:"msg"`
	Token  string           `json:"token"`
	User   remoteUser       `json:"user"`
	Error  string           `json:"error"`
	Errors []FieldViolation `json:"errors"`
}

// Login posts to /login. Rejected credentials, including identifiers the
// service refuses as malformed, surface as ErrInvalidLogin.
func (a *RemoteAuthenticator) Login(ctx context.Context, identifier, password string) (User, string, error) {
	res, status, err := a.post(ctx, "/login", map[string]string{
		"email":    strings.TrimSpace(identifier),
		"password": password,
	})
	if err != nil {
		return User{}, "", err
	}
	if status == http.StatusBadRequest {
		return User{}, "", ErrInvalidLogin
	}
	if status != http.StatusOK {
		return User{}, "", fmt.Errorf("login: unexpected status %d: %s", status, res.Error)
	}
	u := User{ID: res.User.ID, FullName: res.User.Name, Email: res.User.Email, Role: res.User.Role}
	return u, res.Token, nil
}

// Register posts to /register. The issued token is discarded.
func (a *RemoteAuthenticator) Register(ctx context.Context, req RegisterRequest) error {
	res, status, err := a.post(ctx, "/register", map[string]string{
		"name":     req.FullName,
		"email":    req.Email,
		"password": req.Password,
		"role":     req.Role,
		"phone":    req.Phone,
	})
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusBadRequest && len(res.Errors) > 0:
		return &ValidationError{Fields: res.Errors}
	case status == http.StatusBadRequest && res.Error == "User already exists":
		return ErrEmailRegistered
	default:
		return fmt.Errorf("register: unexpected status %d: %s", status, res.Error)
	}
}

func (a *RemoteAuthenticator) post(ctx context.Context, path string, body any) (*remoteResponse, int, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := a.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("credential service: %w", err)
	}
	defer resp.Body.Close()

	var res remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode %s response: %w", path, err)
	}
	return &res, resp.StatusCode, nil
}
