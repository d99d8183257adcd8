package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSigner hands transactions to a remote signing service that holds the
// oracle key and executes them on chain.
type HTTPSigner struct {
	url    string
	token  string
	client *http.Client
}

func NewHTTPSigner(url, token string) *HTTPSigner {
	return &HTTPSigner{url: url, token: token, client: &http.Client{Timeout: 30 * time.Second}}
}

func (s *HTTPSigner) Sign(ctx context.Context, tx Transaction) (Receipt, error) {
	body, err := json.Marshal(tx)
	if err != nil {
		return Receipt{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("signer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(resp.Body)
		return Receipt{}, fmt.Errorf("signer returned error %d: %s", resp.StatusCode, string(msg))
	}

	var receipt Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return Receipt{}, fmt.Errorf("decode receipt: %w", err)
	}
	if receipt.Digest == "" {
		return Receipt{}, fmt.Errorf("signer returned no transaction digest")
	}
	return receipt, nil
}
