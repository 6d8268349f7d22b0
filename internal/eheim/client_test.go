package eheim

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// hubHost strips the scheme from an httptest server URL, leaving the
// host:port form the client expects.
func hubHost(serverURL string) string {
	return strings.TrimPrefix(serverURL, "http://")
}

func testDevice(version string) Device {
	return Device{
		MAC:     "AA:BB:CC:DD:EE:FF",
		IP:      "10.0.0.5",
		Version: version,
		Model:   "professionel 5e 450",
		Group:   GroupForVersion(version),
	}
}

func TestClient_GetDeviceData_TextJSONContentType(t *testing.T) {
	var gotPath, gotQuery string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("to")

		// The hub mislabels JSON as text/json.
		w.Header().Set("Content-Type", "text/json")
		w.Write([]byte(`{"filterActive": 1, "freq": 7500}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := New(Config{Host: hubHost(srv.URL)}, nil)
	defer client.Close()

	doc, err := client.GetDeviceData(context.Background(), testDevice("professionel5e"))
	if err != nil {
		t.Fatalf("GetDeviceData() error = %v", err)
	}

	if gotPath != "/api/professionel5e/state" {
		t.Errorf("request path = %q, want %q", gotPath, "/api/professionel5e/state")
	}

	if gotQuery != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("to parameter = %q, want device MAC", gotQuery)
	}

	if doc["filterActive"] != float64(1) {
		t.Errorf("filterActive = %v, want 1", doc["filterActive"])
	}
}

func TestClient_ContentTypeEquivalence(t *testing.T) {
	// All JSON labels must decode identically; only a foreign label falls
	// back to raw text.
	tests := []struct {
		name        string
		contentType string
		wantJSON    bool
	}{
		{name: "application/json", contentType: "application/json", wantJSON: true},
		{name: "text/json", contentType: "text/json", wantJSON: true},
		{name: "application/json with charset", contentType: "application/json; charset=utf-8", wantJSON: true},
		{name: "text/json with charset", contentType: "text/json; charset=utf-8", wantJSON: true},
		{name: "text/plain falls back to raw", contentType: "text/plain", wantJSON: false},
		{name: "text/html falls back to raw", contentType: "text/html", wantJSON: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.Write([]byte(`{"filterActive": 1}`)) //nolint:errcheck
			}))
			defer srv.Close()

			client := New(Config{Host: hubHost(srv.URL)}, nil)
			defer client.Close()

			res, err := client.get(context.Background(), client.host, "professionel5e/state", nil)
			if err != nil {
				t.Fatalf("get() error = %v", err)
			}

			if tt.wantJSON {
				doc, ok := res.(map[string]any)
				if !ok {
					t.Fatalf("decoded %T, want JSON object", res)
				}
				if doc["filterActive"] != float64(1) {
					t.Errorf("filterActive = %v, want 1", doc["filterActive"])
				}
			} else {
				raw, ok := res.(string)
				if !ok {
					t.Fatalf("decoded %T, want raw string", res)
				}
				if raw != `{"filterActive": 1}` {
					t.Errorf("raw body = %q", raw)
				}
			}
		})
	}
}

func TestClient_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/json")
		w.Write([]byte(`{"filterActive": `)) //nolint:errcheck
	}))
	defer srv.Close()

	client := New(Config{Host: hubHost(srv.URL)}, nil)
	defer client.Close()

	_, err := client.GetDeviceData(context.Background(), testDevice("professionel5e"))
	if !errors.Is(err, ErrPayload) {
		t.Errorf("GetDeviceData() error = %v, want ErrPayload", err)
	}
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{name: "401 is auth error", status: http.StatusUnauthorized, sentinel: ErrAuth},
		{name: "403 is auth error", status: http.StatusForbidden, sentinel: ErrAuth},
		{name: "404 is not found", status: http.StatusNotFound, sentinel: ErrNotFound},
		{name: "500 is connection error", status: http.StatusInternalServerError, sentinel: ErrConnection},
		{name: "503 is connection error", status: http.StatusServiceUnavailable, sentinel: ErrConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := New(Config{Host: hubHost(srv.URL)}, nil)
			defer client.Close()

			_, err := client.GetDeviceData(context.Background(), testDevice("professionel5e"))
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("error = %v, want %v", err, tt.sentinel)
			}

			// Plain status failures must never classify as timeouts.
			if errors.Is(err, ErrTimeout) {
				t.Errorf("error = %v unexpectedly matches ErrTimeout", err)
			}
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := New(Config{Host: hubHost(srv.URL), Timeout: 50 * time.Millisecond}, nil)
	defer client.Close()

	_, err := client.GetDeviceData(context.Background(), testDevice("professionel5e"))

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}

	// A timeout is also a connection failure.
	if !errors.Is(err, ErrConnection) {
		t.Errorf("error = %v, want ErrConnection match as well", err)
	}
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	host := hubHost(srv.URL)
	srv.Close()

	client := New(Config{Host: host}, nil)
	defer client.Close()

	_, err := client.GetDeviceData(context.Background(), testDevice("professionel5e"))

	if !errors.Is(err, ErrConnection) {
		t.Errorf("error = %v, want ErrConnection", err)
	}

	if errors.Is(err, ErrTimeout) {
		t.Errorf("refused connection classified as timeout: %v", err)
	}
}

func TestClient_BasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "api" || pass != "admin" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	// Empty credentials fall back to the firmware's fixed account.
	client := New(Config{Host: hubHost(srv.URL)}, nil)
	defer client.Close()

	if _, err := client.GetDeviceData(context.Background(), testDevice("professionel5e")); err != nil {
		t.Errorf("GetDeviceData() with default credentials error = %v", err)
	}

	wrong := New(Config{Host: hubHost(srv.URL), Username: "nope", Password: "nope"}, nil)
	defer wrong.Close()

	_, err := wrong.GetDeviceData(context.Background(), testDevice("professionel5e"))
	if !errors.Is(err, ErrAuth) {
		t.Errorf("GetDeviceData() with bad credentials error = %v, want ErrAuth", err)
	}
}

func TestClient_FetchDevices(t *testing.T) {
	// Two devices answering userdata on their own addresses.
	dev1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/userdata" {
			t.Errorf("device 1 got path %q, want /api/userdata", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/json")
		w.Write([]byte(`{"mac": "AA:BB:CC:DD:EE:FF", "version": "professionel5e", "name": "Filter", "model": "professionel 5e 450"}`)) //nolint:errcheck
	}))
	defer dev1.Close()

	dev2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/json")
		w.Write([]byte(`{"mac": "11:22:33:44:55:66", "version": "phcontrol", "name": "pH"}`)) //nolint:errcheck
	}))
	defer dev2.Close()

	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/devicelist" {
			t.Errorf("hub got path %q, want /api/devicelist", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"clientIPList": []string{hubHost(dev1.URL), hubHost(dev2.URL)},
		})
	}))
	defer hub.Close()

	client := New(Config{Host: hubHost(hub.URL)}, nil)
	defer client.Close()

	devices, err := client.FetchDevices(context.Background())
	if err != nil {
		t.Fatalf("FetchDevices() error = %v", err)
	}

	if len(devices) != 2 {
		t.Fatalf("len(devices) = %d, want 2", len(devices))
	}

	// Hub ordering is preserved.
	if devices[0].MAC != "AA:BB:CC:DD:EE:FF" || devices[1].MAC != "11:22:33:44:55:66" {
		t.Errorf("device order = [%s, %s], want hub list order", devices[0].MAC, devices[1].MAC)
	}

	// The address each userdata came from passes through.
	if devices[0].IP != hubHost(dev1.URL) {
		t.Errorf("devices[0].IP = %q, want %q", devices[0].IP, hubHost(dev1.URL))
	}
	if devices[1].IP != hubHost(dev2.URL) {
		t.Errorf("devices[1].IP = %q, want %q", devices[1].IP, hubHost(dev2.URL))
	}

	if devices[0].Group != GroupFilter {
		t.Errorf("devices[0].Group = %q, want %q", devices[0].Group, GroupFilter)
	}
	if devices[1].Group != GroupPHControl {
		t.Errorf("devices[1].Group = %q, want %q", devices[1].Group, GroupPHControl)
	}
}

func TestClient_FetchDevices_AllOrNothing(t *testing.T) {
	var laterCalled bool

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	later := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		laterCalled = true
		w.Header().Set("Content-Type", "text/json")
		w.Write([]byte(`{"mac": "11:22:33:44:55:66", "version": "phcontrol"}`)) //nolint:errcheck
	}))
	defer later.Close()

	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"clientIPList": []string{hubHost(failing.URL), hubHost(later.URL)},
		})
	}))
	defer hub.Close()

	client := New(Config{Host: hubHost(hub.URL)}, nil)
	defer client.Close()

	devices, err := client.FetchDevices(context.Background())

	if !errors.Is(err, ErrConnection) {
		t.Errorf("FetchDevices() error = %v, want ErrConnection", err)
	}

	if devices != nil {
		t.Errorf("FetchDevices() returned partial list %v, want nil", devices)
	}

	// The first failure aborts the fetch; the second address is never hit.
	if laterCalled {
		t.Error("fetch continued past the first failure")
	}
}

func TestClient_FetchDevices_MissingClientIPList(t *testing.T) {
	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"unexpected": true}`)) //nolint:errcheck
	}))
	defer hub.Close()

	client := New(Config{Host: hubHost(hub.URL)}, nil)
	defer client.Close()

	_, err := client.FetchDevices(context.Background())
	if !errors.Is(err, ErrPayload) {
		t.Errorf("FetchDevices() error = %v, want ErrPayload", err)
	}
}

func TestClient_ValidateConnection(t *testing.T) {
	t.Run("empty device list", func(t *testing.T) {
		hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"clientIPList": []}`)) //nolint:errcheck
		}))
		defer hub.Close()

		client := New(Config{Host: hubHost(hub.URL)}, nil)
		defer client.Close()

		_, err := client.ValidateConnection(context.Background())
		if !errors.Is(err, ErrNoDevices) {
			t.Errorf("ValidateConnection() error = %v, want ErrNoDevices", err)
		}
	})

	t.Run("devices present", func(t *testing.T) {
		dev := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/json")
			w.Write([]byte(`{"mac": "AA:BB:CC:DD:EE:FF", "version": "heater"}`)) //nolint:errcheck
		}))
		defer dev.Close()

		hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
				"clientIPList": []string{hubHost(dev.URL)},
			})
		}))
		defer hub.Close()

		client := New(Config{Host: hubHost(hub.URL)}, nil)
		defer client.Close()

		devices, err := client.ValidateConnection(context.Background())
		if err != nil {
			t.Fatalf("ValidateConnection() error = %v", err)
		}
		if len(devices) != 1 || devices[0].MAC != "AA:BB:CC:DD:EE:FF" {
			t.Errorf("ValidateConnection() devices = %v", devices)
		}
	})
}

func TestClient_GetDeviceData_UnknownVersion(t *testing.T) {
	var called bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := New(Config{Host: hubHost(srv.URL)}, nil)
	defer client.Close()

	_, err := client.GetDeviceData(context.Background(), testDevice("ledcontrol-mk2"))

	if !errors.Is(err, ErrUnknownVersion) {
		t.Errorf("GetDeviceData() error = %v, want ErrUnknownVersion", err)
	}

	// A version lookup failure is a configuration problem; no request
	// may leave the client.
	if called {
		t.Error("GetDeviceData() issued a request for an unknown version")
	}

	if errors.Is(err, ErrConnection) {
		t.Errorf("unknown version classified as transport failure: %v", err)
	}
}

func TestClient_SetFilterState(t *testing.T) {
	tests := []struct {
		name       string
		active     bool
		wantActive float64
	}{
		{name: "turn on", active: true, wantActive: 1},
		{name: "turn off", active: false, wantActive: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotMethod, gotPath string
			var gotBody map[string]any

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotMethod = r.Method
				gotPath = r.URL.Path
				json.NewDecoder(r.Body).Decode(&gotBody) //nolint:errcheck

				w.Header().Set("Content-Type", "text/json")
				w.Write([]byte(`{}`)) //nolint:errcheck
			}))
			defer srv.Close()

			client := New(Config{Host: hubHost(srv.URL)}, nil)
			defer client.Close()

			if err := client.SetFilterState(context.Background(), testDevice("professionel5e"), tt.active); err != nil {
				t.Fatalf("SetFilterState() error = %v", err)
			}

			if gotMethod != http.MethodPost {
				t.Errorf("method = %q, want POST", gotMethod)
			}
			if gotPath != "/api/professionel5e/active" {
				t.Errorf("path = %q, want /api/professionel5e/active", gotPath)
			}
			if gotBody["to"] != "AA:BB:CC:DD:EE:FF" {
				t.Errorf("body to = %v, want device MAC", gotBody["to"])
			}
			if gotBody["active"] != tt.wantActive {
				t.Errorf("body active = %v, want %v", gotBody["active"], tt.wantActive)
			}
		})
	}
}

func TestClient_SetPHControlState(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody) //nolint:errcheck

		w.Header().Set("Content-Type", "text/json")
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := New(Config{Host: hubHost(srv.URL)}, nil)
	defer client.Close()

	device := testDevice("phcontrol")
	if err := client.SetPHControlState(context.Background(), device, true); err != nil {
		t.Fatalf("SetPHControlState() error = %v", err)
	}

	if gotPath != "/api/phcontrol/active" {
		t.Errorf("path = %q, want /api/phcontrol/active", gotPath)
	}
	if gotBody["active"] != float64(1) {
		t.Errorf("body active = %v, want 1", gotBody["active"])
	}
}

func TestClient_Close_Idempotent(t *testing.T) {
	client := New(Config{Host: "192.0.2.1"}, nil)

	client.Close()
	client.Close() // second call is a no-op
}
