package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Supabase asks the hosted auth server who owns the token.
type Supabase struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewSupabase(baseURL, apiKey string, client *http.Client) *Supabase {
	if client == nil {
		client = http.DefaultClient
	}
	return &Supabase{baseURL: baseURL, apiKey: apiKey, client: client}
}

func (a *Supabase) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: auth server status %d", ErrUnavailable, resp.StatusCode)
	default:
		return "", fmt.Errorf("%w: auth server status %d", ErrUnauthorized, resp.StatusCode)
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&user); err != nil {
		return "", fmt.Errorf("%w: decode user: %v", ErrUnavailable, err)
	}
	if user.ID == "" {
		return "", fmt.Errorf("%w: empty user id", ErrUnauthorized)
	}
	return user.ID, nil
}
