package integration

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestHealthEndpoints(t *testing.T) {
	env := newAuthTestServer(t)

	resp, body := env.doJSON(t, http.MethodGet, "/health/live", nil, requestOptions{})
	if resp.StatusCode != http.StatusOK || !body.Success {
		t.Fatalf("live status = %d success = %v", resp.StatusCode, body.Success)
	}

	resp, body = env.doJSON(t, http.MethodGet, "/health/ready", nil, requestOptions{})
	if resp.StatusCode != http.StatusOK || !body.Success {
		t.Fatalf("ready status = %d success = %v", resp.StatusCode, body.Success)
	}
	var data struct {
		Status string `json:"status"`
		Checks []struct {
			Name    string `json:"name"`
			Healthy bool   `json:"healthy"`
		} `json:"checks"`
	}
	if err := json.Unmarshal(body.Data, &data); err != nil {
		t.Fatalf("decode ready payload: %v", err)
	}
	if data.Status != "ready" || len(data.Checks) == 0 {
		t.Fatalf("unexpected ready payload: %+v", data)
	}
	for _, c := range data.Checks {
		if !c.Healthy {
			t.Fatalf("check %s unhealthy", c.Name)
		}
	}
}
