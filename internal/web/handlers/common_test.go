package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/safefind/safefind/internal/embedding"
	"github.com/safefind/safefind/internal/facematch"
	"github.com/safefind/safefind/internal/imaging"
)

func TestRespondJSON_SetsStatusCode(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"OK", http.StatusOK},
		{"Created", http.StatusCreated},
		{"BadRequest", http.StatusBadRequest},
		{"NotFound", http.StatusNotFound},
		{"InternalServerError", http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondJSON(recorder, tc.statusCode, nil)

			if recorder.Code != tc.statusCode {
				t.Errorf("expected status %d, got %d", tc.statusCode, recorder.Code)
			}
			assertContentType(t, recorder, "application/json")
		})
	}
}

func TestRespondImageError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"unsupported", imaging.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, "only JPEG and PNG images are allowed"},
		{"corrupt", fmt.Errorf("%w: unexpected EOF", imaging.ErrCorruptImage), http.StatusBadRequest, ""},
		{"too small", fmt.Errorf("%w: 100x100", imaging.ErrTooSmall), http.StatusBadRequest, ""},
		{"too blurry", fmt.Errorf("%w: sharpness 3.0", imaging.ErrTooBlurry), http.StatusBadRequest, ""},
		{"too large", fmt.Errorf("%w: 20000x20000", imaging.ErrTooLarge), http.StatusRequestEntityTooLarge, ""},
		{"no face with side", &facematch.NoFaceError{Side: facematch.SideB}, http.StatusUnprocessableEntity, "no face detected in image b"},
		{"bare no face", facematch.ErrNoFaceDetected, http.StatusUnprocessableEntity, "no face detected"},
		{"embedding failure", fmt.Errorf("%w: timeout", embedding.ErrEmbeddingFailure), http.StatusBadGateway, "image processing failed"},
		{"anything else", errors.New("disk on fire"), http.StatusInternalServerError, "image processing failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondImageError(recorder, testLogger(), tt.err)

			assertStatusCode(t, recorder, tt.wantStatus)
			if tt.wantError != "" {
				assertJSONError(t, recorder, tt.wantError)
			}
		})
	}
}

func TestFormInt(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		send    bool
		want    int
		wantOK  bool
		wantErr bool
	}{
		{"absent", "", false, 0, false, false},
		{"valid", "12", true, 12, true, false},
		{"padded", " 7 ", true, 7, true, false},
		{"negative", "-1", true, 0, true, true},
		{"text", "ten", true, 0, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{}
			if tt.send {
				form.Set("age", tt.value)
			}
			req := httptest.NewRequest("POST", "/", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if err := parseForm(req); err != nil {
				t.Fatalf("parseForm: %v", err)
			}

			got, ok, err := formInt(req, "age")
			if (err != nil) != tt.wantErr {
				t.Fatalf("formInt() error = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("formInt() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("id\r\nforged line"); got != "idforged line" {
		t.Errorf("sanitizeForLog() = %q", got)
	}
}

func TestHealthCheck(t *testing.T) {
	recorder := httptest.NewRecorder()
	HealthCheck(recorder, httptest.NewRequest("GET", "/api/v1/health", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp map[string]string
	parseJSONResponse(t, recorder, &resp)
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %q", resp["status"])
	}
}
