// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// mockServer creates a test server that returns the given response.
func mockServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(handler)
}

// apiHandler creates a handler that returns a standard API response.
func apiHandler(data interface{}, statusCode int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)

		resp := map[string]interface{}{
			"data": data,
		}
		json.NewEncoder(w).Encode(resp)
	}
}

// apiErrorHandler creates a handler that returns an API error.
func apiErrorHandler(code, message string, statusCode int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)

		resp := map[string]interface{}{
			"error": map[string]string{
				"code":    code,
				"message": message,
			},
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func testInstance(id, status string) Instance {
	return Instance{
		ID: id,
		InstanceConfig: InstanceConfig{
			Name:             "survival",
			WorkingDirectory: "/srv/survival",
			StartCommand:     "java -jar paper.jar nogui",
			StopCommand:      "stop",
			Type:             "minecraft-java",
		},
		Status: status,
	}
}

func TestNew(t *testing.T) {
	c := New("http://localhost:23333")

	if c.BaseURL() != "http://localhost:23333" {
		t.Errorf("BaseURL() = %q, want %q", c.BaseURL(), "http://localhost:23333")
	}
	if c.Version() != LatestVersion {
		t.Errorf("Version() = %q, want %q", c.Version(), LatestVersion)
	}
	if c.Instances == nil || c.Java == nil || c.Events == nil {
		t.Error("sub-client is nil")
	}
}

func TestNewWithOptions(t *testing.T) {
	t.Run("WithVersion", func(t *testing.T) {
		c := New("http://localhost:23333", WithVersion("2026-09-01"))
		if c.Version() != "2026-09-01" {
			t.Errorf("Version() = %q, want %q", c.Version(), "2026-09-01")
		}
	})

	t.Run("WithHTTPClient and WithTimeout", func(t *testing.T) {
		hc := &http.Client{}
		New("http://localhost:23333", WithHTTPClient(hc), WithTimeout(90*time.Second))
		if hc.Timeout != 90*time.Second {
			t.Errorf("Timeout = %v, want 90s", hc.Timeout)
		}
	})

	t.Run("trailing slash removed", func(t *testing.T) {
		c := New("http://localhost:23333/")
		if c.BaseURL() != "http://localhost:23333" {
			t.Errorf("BaseURL() = %q, want trailing slash removed", c.BaseURL())
		}
	})
}

func TestAPIError(t *testing.T) {
	err := &APIError{Code: CodeNotFound, Message: "instance not found"}
	if err.Error() != "NOT_FOUND: instance not found" {
		t.Errorf("Error() = %q", err.Error())
	}

	err2 := &APIError{Message: "Something went wrong"}
	if err2.Error() != "Something went wrong" {
		t.Errorf("Error() = %q, want %q", err2.Error(), "Something went wrong")
	}
}

func TestVersionHeader(t *testing.T) {
	var receivedVersion string
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		receivedVersion = r.Header.Get(VersionHeader)
		apiHandler([]Instance{}, http.StatusOK)(w, r)
	})
	defer server.Close()

	c := New(server.URL, WithVersion(Version20261001))
	_, _ = c.Instances.List(context.Background())

	if receivedVersion != Version20261001 {
		t.Errorf("%s header = %q, want %q", VersionHeader, receivedVersion, Version20261001)
	}
}

func TestInstanceClient_List(t *testing.T) {
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/instances" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		apiHandler([]Instance{testInstance("a", StatusRunning), testInstance("b", StatusStopped)}, http.StatusOK)(w, r)
	})
	defer server.Close()

	instances, err := New(server.URL).Instances.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(instances) != 2 {
		t.Fatalf("len = %d, want 2", len(instances))
	}
	if instances[0].Status != StatusRunning || instances[0].Name != "survival" {
		t.Errorf("instances[0] = %+v", instances[0])
	}
}

func TestInstanceClient_Get(t *testing.T) {
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/instances/abc" {
			t.Errorf("path = %q", r.URL.Path)
		}
		inst := testInstance("abc", StatusRunning)
		inst.PID = 4242
		apiHandler(inst, http.StatusOK)(w, r)
	})
	defer server.Close()

	inst, err := New(server.URL).Instances.Get(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if inst.ID != "abc" || inst.PID != 4242 {
		t.Errorf("Get() = %+v", inst)
	}
}

func TestInstanceClient_CreateAndUpdate(t *testing.T) {
	var methods []string
	var bodies []InstanceConfig
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method+" "+r.URL.Path)
		var cfg InstanceConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			t.Errorf("decode body: %v", err)
		}
		bodies = append(bodies, cfg)
		inst := testInstance("new", StatusStopped)
		inst.InstanceConfig = cfg
		status := http.StatusOK
		if r.Method == http.MethodPost {
			status = http.StatusCreated
		}
		apiHandler(inst, status)(w, r)
	})
	defer server.Close()

	c := New(server.URL)
	cfg := InstanceConfig{Name: "lobby", WorkingDirectory: "/srv/lobby", StopCommand: "ctrl+c"}
	inst, err := c.Instances.Create(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if inst.ID != "new" || inst.Name != "lobby" {
		t.Errorf("Create() = %+v", inst)
	}

	cfg.Description = "hub"
	if _, err := c.Instances.Update(context.Background(), "new", cfg); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	want := []string{"POST /api/v1/instances", "PUT /api/v1/instances/new"}
	if len(methods) != 2 || methods[0] != want[0] || methods[1] != want[1] {
		t.Errorf("requests = %v, want %v", methods, want)
	}
	if bodies[1].Description != "hub" {
		t.Errorf("update body = %+v", bodies[1])
	}
}

func TestInstanceClient_Actions(t *testing.T) {
	tests := []struct {
		name string
		call func(*InstanceClient) (*Instance, error)
		path string
	}{
		{"Start", func(s *InstanceClient) (*Instance, error) { return s.Start(context.Background(), "x") }, "/api/v1/instances/x/start"},
		{"Stop", func(s *InstanceClient) (*Instance, error) { return s.Stop(context.Background(), "x") }, "/api/v1/instances/x/stop"},
		{"Restart", func(s *InstanceClient) (*Instance, error) { return s.Restart(context.Background(), "x") }, "/api/v1/instances/x/restart"},
		{"CloseTerminal", func(s *InstanceClient) (*Instance, error) { return s.CloseTerminal(context.Background(), "x") }, "/api/v1/instances/x/terminal/close"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != tt.path {
					t.Errorf("request = %s %s, want POST %s", r.Method, r.URL.Path, tt.path)
				}
				apiHandler(testInstance("x", StatusRunning), http.StatusOK)(w, r)
			})
			defer server.Close()

			inst, err := tt.call(New(server.URL).Instances)
			if err != nil {
				t.Fatalf("%s() error = %v", tt.name, err)
			}
			if inst.ID != "x" {
				t.Errorf("ID = %q", inst.ID)
			}
		})
	}
}

func TestInstanceClient_Delete(t *testing.T) {
	var method string
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		apiHandler(map[string]string{"id": "x"}, http.StatusOK)(w, r)
	})
	defer server.Close()

	if err := New(server.URL).Instances.Delete(context.Background(), "x"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if method != http.MethodDelete {
		t.Errorf("method = %q, want DELETE", method)
	}
}

func TestInstanceClient_Input(t *testing.T) {
	var body map[string]interface{}
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/instances/x/input" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		apiHandler(map[string]int{"bytes": 5}, http.StatusOK)(w, r)
	})
	defer server.Close()

	n, err := New(server.URL).Instances.Input(context.Background(), "x", "list", true)
	if err != nil {
		t.Fatalf("Input() error = %v", err)
	}
	if n != 5 {
		t.Errorf("bytes = %d, want 5", n)
	}
	if body["data"] != "list" || body["line"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestInstanceClient_Error(t *testing.T) {
	server := mockServer(t, apiErrorHandler(CodeConflict, "instance is starting", http.StatusConflict))
	defer server.Close()

	_, err := New(server.URL).Instances.Start(context.Background(), "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Code != CodeConflict || apiErr.Message != "instance is starting" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestInstanceClient_NonEnvelopeError(t *testing.T) {
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("bad gateway"))
	})
	defer server.Close()

	_, err := New(server.URL).Instances.List(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestJavaClient_List(t *testing.T) {
	server := mockServer(t, apiHandler([]JavaEnvironment{
		{Version: "17", Installed: true, ExecutablePath: "/opt/java/17/bin/java", Source: "root"},
	}, http.StatusOK))
	defer server.Close()

	envs, err := New(server.URL).Java.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(envs) != 1 || envs[0].Version != "17" || !envs[0].Installed {
		t.Errorf("List() = %+v", envs)
	}
}

func TestClient_ServerVersion(t *testing.T) {
	server := mockServer(t, apiHandler(map[string]string{"version": "1.2.0", "api_version": Version20261001}, http.StatusOK))
	defer server.Close()

	build, api, err := New(server.URL).ServerVersion(context.Background())
	if err != nil {
		t.Fatalf("ServerVersion() error = %v", err)
	}
	if build != "1.2.0" || api != Version20261001 {
		t.Errorf("ServerVersion() = %q, %q", build, api)
	}
}

func TestEventClient_List(t *testing.T) {
	since := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("limit") != "10" {
			t.Errorf("limit = %q", q.Get("limit"))
		}
		if q.Get("instance") != "x" {
			t.Errorf("instance = %q", q.Get("instance"))
		}
		if types := q["type"]; len(types) != 2 || types[0] != "instance.*" {
			t.Errorf("type = %v", types)
		}
		if q.Get("since") != "2026-10-01T12:00:00Z" {
			t.Errorf("since = %q", q.Get("since"))
		}
		apiHandler([]Event{{ID: "e1", Type: "instance.status_changed", Instance: "x",
			Payload: map[string]interface{}{"status": "running"}}}, http.StatusOK)(w, r)
	})
	defer server.Close()

	events, err := New(server.URL).Events.List(context.Background(), &ListOptions{
		Limit:    10,
		Types:    []string{"instance.*", "boot.finished"},
		Instance: "x",
		Since:    since,
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(events) != 1 || events[0].Payload["status"] != "running" {
		t.Errorf("List() = %+v", events)
	}
}

func TestContextCancellation(t *testing.T) {
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		apiHandler([]Instance{}, http.StatusOK)(w, r)
	})
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(server.URL).Instances.List(ctx); err == nil {
		t.Error("expected error due to cancelled context")
	}
}

func TestInvalidJSON(t *testing.T) {
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": "not an object"}`))
	})
	defer server.Close()

	c := New(server.URL)
	if _, err := c.Instances.Get(context.Background(), "x"); err == nil {
		t.Error("Get: expected parse error")
	}
	if _, err := c.Java.List(context.Background()); err == nil {
		t.Error("Java.List: expected parse error")
	}
	if _, err := c.Events.List(context.Background(), nil); err == nil {
		t.Error("Events.List: expected parse error")
	}
}
