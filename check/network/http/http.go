package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/alarmistdev/readiness/check"
)

const introspectionQuery = `{ __schema { types { name } } }`

// Check creates a check that succeeds once url answers with expectedStatus.
func Check(method, url string, expectedStatus int, config check.Config) check.Check {
	client := &http.Client{Timeout: config.AttemptTimeout}

	return check.CheckFunc(func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, url, http.NoBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		_, err = do(client, req, expectedStatus)

		return err
	})
}

// CheckGraphQL creates a check that sends an introspection query to a GraphQL
// endpoint. It succeeds once the endpoint answers with expectedStatus and a
// response without errors, i.e. once the schema is loaded.
func CheckGraphQL(method, url string, expectedStatus int, config check.Config) check.Check {
	client := &http.Client{Timeout: config.AttemptTimeout}

	return check.CheckFunc(func(ctx context.Context) error {
		jsonBody, err := json.Marshal(map[string]string{"query": introspectionQuery})
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(jsonBody))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		body, err := do(client, req, expectedStatus)
		if err != nil {
			return err
		}

		var resp struct {
			Errors []struct {
				Message string `json:"message"`
			} `json:"errors"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return check.QueryFailure(fmt.Errorf("failed to decode graphql response: %w", err))
		}
		if len(resp.Errors) > 0 {
			return check.Mismatch(fmt.Errorf("graphql response has errors: %s", resp.Errors[0].Message))
		}

		return nil
	})
}

func do(client *http.Client, req *http.Request, expectedStatus int) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, check.ConnectFailure(fmt.Errorf("failed to make request: %w", err))
	}
	defer resp.Body.Close()

	// Read fully so the connection can be reused by the next attempt.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, check.QueryFailure(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != expectedStatus {
		return nil, check.Mismatch(fmt.Errorf("unexpected status code: got %d, want %d", resp.StatusCode, expectedStatus))
	}

	return body, nil
}
