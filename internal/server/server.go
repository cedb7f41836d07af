package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kiesman99/tfwgen/internal/api"
	"github.com/kiesman99/tfwgen/internal/generator"
	"github.com/kiesman99/tfwgen/internal/raster"
)

// DefaultMaxUploadSize limits raster uploads to 512 MiB
const DefaultMaxUploadSize = 512 << 20

// Options holds server defaults applied when a request does not override them
type Options struct {
	Driver        string
	Strict        bool
	MaxUploadSize int64
}

// Server implements the ServerInterface from the generated API
type Server struct {
	startTime time.Time
	version   string
	opts      Options
}

// NewServer creates a new server instance
func NewServer(version string, opts Options) *Server {
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = DefaultMaxUploadSize
	}
	return &Server{
		startTime: time.Now(),
		version:   version,
		opts:      opts,
	}
}

// Router returns the chi router serving the API below /api/v1
func (s *Server) Router(timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(timeout))

	// CORS middleware for API access
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	api.HandlerWithOptions(s, api.ChiServerOptions{
		BaseURL:          "/api/v1",
		BaseRouter:       r,
		ErrorHandlerFunc: s.handleParamError,
	})

	// Unversioned health endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/v1/health", http.StatusMovedPermanently)
	})

	return r
}

// GetHealth implements the health check endpoint
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	uptime := int(time.Since(s.startTime).Seconds())
	drivers := raster.Drivers()

	response := api.HealthResponse{
		Status:    api.Healthy,
		Timestamp: time.Now(),
		Uptime:    &uptime,
		Version:   &s.version,
		Drivers:   &drivers,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}

// CreateWorldFile reads the uploaded raster and responds with its world file
func (s *Server) CreateWorldFile(w http.ResponseWriter, r *http.Request, params api.CreateWorldFileParams) {
	requestID := middleware.GetReqID(r.Context())

	opts := &generator.Options{
		Driver: s.opts.Driver,
		Strict: s.opts.Strict,
	}
	if params.Driver != nil {
		opts.Driver = *params.Driver
	}
	if params.Strict != nil {
		opts.Strict = *params.Strict
	}

	gen, err := generator.New(opts)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), requestID)
		return
	}

	path, size, err := s.spoolUpload(w, r)
	if path != "" {
		defer os.Remove(path)
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeErrorResponse(w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE",
				fmt.Sprintf("raster exceeds %d bytes", maxErr.Limit), requestID)
			return
		}
		log.Printf("Error reading upload: %v", err)
		s.writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Internal server error", requestID)
		return
	}
	if size == 0 {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST",
			"request body must contain a raster", requestID)
		return
	}

	rec, err := gen.Describe(path)
	if err != nil {
		s.handleGeneratorError(w, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(http.StatusOK)
	if _, err := rec.WriteTo(w); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

// spoolUpload copies the request body into a temporary file because raster
// drivers open datasets by path.
func (s *Server) spoolUpload(w http.ResponseWriter, r *http.Request) (string, int64, error) {
	f, err := os.CreateTemp("", "tfwgen-*.tif")
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	body := http.MaxBytesReader(w, r.Body, s.opts.MaxUploadSize)
	n, err := io.Copy(f, body)
	if err != nil {
		return f.Name(), n, err
	}
	return f.Name(), n, f.Close()
}

// handleGeneratorError maps generator failures to API error responses
func (s *Server) handleGeneratorError(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, raster.ErrNoGeoTransform):
		s.writeErrorResponse(w, http.StatusUnprocessableEntity, "NO_GEOTRANSFORM",
			"raster has no geotransform", requestID)
	case errors.Is(err, raster.ErrFormat):
		s.writeErrorResponse(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_RASTER",
			"raster could not be read", requestID)
	default:
		log.Printf("Error generating world file: %v", err)
		s.writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Internal server error", requestID)
	}
}

func (s *Server) handleParamError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(),
		middleware.GetReqID(r.Context()))
}

// writeErrorResponse writes a standard error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message, requestID string) {
	response := api.ErrorResponse{
		Error:   errorCode,
		Message: message,
	}
	if requestID != "" {
		response.RequestId = &requestID
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}
