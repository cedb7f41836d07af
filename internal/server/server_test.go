package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/go-cmp/cmp"

	"github.com/kiesman99/tfwgen/internal/api"
	"github.com/kiesman99/tfwgen/internal/raster"
	"github.com/kiesman99/tfwgen/internal/raster/rastertest"
)

// Test server setup
func setupTestServer(opts Options) *httptest.Server {
	opts.Driver = raster.GeoTIFFDriverName
	apiServer := NewServer("1.0.0-test", opts)
	return httptest.NewServer(apiServer.Router(30 * time.Second))
}

func postRaster(t *testing.T, url string, body []byte) *http.Response {
	t.Helper()

	resp, err := http.Post(url, "image/tiff", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// worldFileResponses loads the API document and returns the responses
// declared for creating a world file.
func worldFileResponses(t *testing.T) *openapi3.Responses {
	t.Helper()

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile("../../api/openapi.yaml")
	if err != nil {
		t.Fatalf("Failed to load API document: %v", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		t.Fatalf("Invalid API document: %v", err)
	}

	item := doc.Paths.Value("/worldfile")
	if item == nil || item.Post == nil {
		t.Fatal("API document has no POST /worldfile")
	}
	return item.Post.Responses
}

func TestHealthEndpoint(t *testing.T) {
	server := setupTestServer(Options{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", contentType)
	}

	var healthResp api.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if healthResp.Status != api.Healthy {
		t.Errorf("Expected status 'healthy', got %s", healthResp.Status)
	}

	if healthResp.Version == nil || *healthResp.Version != "1.0.0-test" {
		t.Errorf("Expected version '1.0.0-test', got %v", healthResp.Version)
	}

	if healthResp.Uptime == nil || *healthResp.Uptime < 0 {
		t.Errorf("Expected valid uptime, got %v", healthResp.Uptime)
	}

	if healthResp.Drivers == nil || len(*healthResp.Drivers) == 0 {
		t.Errorf("Expected registered drivers, got %v", healthResp.Drivers)
	}

	if time.Since(healthResp.Timestamp) > time.Minute {
		t.Errorf("Timestamp seems too old: %v", healthResp.Timestamp)
	}
}

func TestLegacyHealthRedirect(t *testing.T) {
	server := setupTestServer(Options{})
	defer server.Close()

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	resp, err := client.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMovedPermanently {
		t.Errorf("Expected status 301, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/api/v1/health" {
		t.Errorf("Expected redirect to /api/v1/health, got %q", loc)
	}
}

func TestWorldFileEndpoint_Success(t *testing.T) {
	server := setupTestServer(Options{})
	defer server.Close()

	resp := postRaster(t, server.URL+"/api/v1/worldfile", rastertest.Encode(rastertest.NorthUp(500000, 4000000, 10)))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d. Body: %s", resp.StatusCode, string(body))
	}

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Expected text/plain, got %s", ct)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	want := "10.00000000\n0.00000000\n0.00000000\n-10.00000000\n500005.00000000\n3999995.00000000\n"
	if diff := cmp.Diff(want, string(body)); diff != "" {
		t.Errorf("Unexpected world file (-want +got):\n%s", diff)
	}
}

func TestWorldFileEndpoint_NoGeoTransform(t *testing.T) {
	server := setupTestServer(Options{})
	defer server.Close()

	plain := rastertest.Encode(rastertest.Options{Width: 2, Height: 2})

	t.Run("Default transform", func(t *testing.T) {
		resp := postRaster(t, server.URL+"/api/v1/worldfile", plain)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		want := "1.00000000\n0.00000000\n0.00000000\n1.00000000\n0.50000000\n0.50000000\n"
		if diff := cmp.Diff(want, string(body)); diff != "" {
			t.Errorf("Unexpected world file (-want +got):\n%s", diff)
		}
	})

	t.Run("Strict", func(t *testing.T) {
		resp := postRaster(t, server.URL+"/api/v1/worldfile?strict=true", plain)
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("Expected status 422, got %d", resp.StatusCode)
		}
		var errorResp api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
			t.Fatalf("Failed to decode error response: %v", err)
		}
		if errorResp.Error != "NO_GEOTRANSFORM" {
			t.Errorf("Expected NO_GEOTRANSFORM, got %s", errorResp.Error)
		}
		if errorResp.RequestId == nil || *errorResp.RequestId == "" {
			t.Error("Expected request_id in error response")
		}
	})
}

func TestWorldFileEndpoint_Errors(t *testing.T) {
	server := setupTestServer(Options{MaxUploadSize: 4096})
	defer server.Close()

	testCases := []struct {
		name           string
		query          string
		body           []byte
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "Empty body",
			body:           nil,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_REQUEST",
		},
		{
			name:           "Not a raster",
			body:           []byte("definitely not a tiff"),
			expectedStatus: http.StatusUnsupportedMediaType,
			expectedError:  "UNSUPPORTED_RASTER",
		},
		{
			name:           "Invalid strict parameter",
			query:          "?strict=maybe",
			body:           rastertest.Encode(rastertest.NorthUp(0, 0, 1)),
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_REQUEST",
		},
		{
			name:           "Unknown driver",
			query:          "?driver=nope",
			body:           rastertest.Encode(rastertest.NorthUp(0, 0, 1)),
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_REQUEST",
		},
		{
			name:           "Upload too large",
			body:           bytes.Repeat([]byte{0}, 8192),
			expectedStatus: http.StatusRequestEntityTooLarge,
			expectedError:  "UPLOAD_TOO_LARGE",
		},
	}

	documented := worldFileResponses(t)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if documented.Value(strconv.Itoa(tc.expectedStatus)) == nil {
				t.Errorf("Status %d is not documented in api/openapi.yaml", tc.expectedStatus)
			}

			resp := postRaster(t, server.URL+"/api/v1/worldfile"+tc.query, tc.body)

			if resp.StatusCode != tc.expectedStatus {
				responseBody, _ := io.ReadAll(resp.Body)
				t.Fatalf("Expected status %d, got %d. Body: %s", tc.expectedStatus, resp.StatusCode, string(responseBody))
			}

			var errorResp map[string]interface{}
			if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
				t.Fatalf("Failed to decode error response: %v", err)
			}

			if errorCode, ok := errorResp["error"].(string); !ok || errorCode != tc.expectedError {
				t.Errorf("Expected error code %s, got %v", tc.expectedError, errorResp["error"])
			}
		})
	}
}

func TestCORSHeaders(t *testing.T) {
	server := setupTestServer(Options{})
	defer server.Close()

	req, err := http.NewRequest("OPTIONS", server.URL+"/api/v1/worldfile", nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected Access-Control-Allow-Origin: *")
	}

	if !strings.Contains(resp.Header.Get("Access-Control-Allow-Methods"), "POST") {
		t.Error("Expected Access-Control-Allow-Methods to include POST")
	}

	if !strings.Contains(resp.Header.Get("Access-Control-Allow-Headers"), "Content-Type") {
		t.Error("Expected Access-Control-Allow-Headers to include Content-Type")
	}
}
