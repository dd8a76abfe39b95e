package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody caps how much of a failed response is kept as Detail.
const maxErrorBody = 64 << 10

// doJSON sends body (if any) as JSON and decodes a 2xx response into out.
// Anything else becomes *Error carrying the response payload.
func doJSON(ctx context.Context, hc *http.Client, gateway, op, method, url string, headers map[string]string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Gateway: gateway, Operation: op, Detail: "could not encode request", Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return &Error{Gateway: gateway, Operation: op, Detail: err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := hc.Do(req)
	if err != nil {
		detail := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			detail = "gateway did not answer in time"
		}
		return &Error{Gateway: gateway, Operation: op, Detail: detail, Err: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	if err != nil {
		return &Error{Gateway: gateway, Operation: op, StatusCode: res.StatusCode, Detail: err.Error(), Err: err}
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &Error{
			Gateway:    gateway,
			Operation:  op,
			StatusCode: res.StatusCode,
			Detail:     decodeDetail(raw),
			Err:        fmt.Errorf("unexpected status %s", res.Status),
		}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Gateway: gateway, Operation: op, StatusCode: res.StatusCode, Detail: decodeDetail(raw), Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func decodeDetail(raw []byte) interface{} {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return string(raw)
}
