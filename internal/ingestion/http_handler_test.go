package ingestion

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func multipartUpload(t *testing.T, dataset, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("dataset", dataset); err != nil {
		t.Fatalf("failed to write dataset field: %v", err)
	}
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("failed to create file part: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write file part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestHTTPHandlerUploadAndRead(t *testing.T) {
	store := newMemoryStore()
	handler := NewHTTPHandler(newTestService(store), 1<<20, nil)

	body, contentType := multipartUpload(t, "portafolio", "v1.csv", firstUpload)
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	for _, key := range []string{"projects", "advertencias", "totalRows", "proyectosCreados", "proyectosBorradorIncompleto", "filasDescartadas", "version", "changes", "changeLog", "kpis"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("expected %q in response", key)
		}
	}

	versionID := store.last().ID

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/versions?dataset=portafolio", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), versionID.String()) {
		t.Fatalf("expected version listing, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/versions/"+versionID.String()+"/changes", nil))
	var changes []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &changes); err != nil || len(changes) != 3 {
		t.Fatalf("expected three change entries, got %d (%v): %s", len(changes), err, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/kpis?dataset=portafolio", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"totalProjects": 3`) {
		t.Fatalf("unexpected kpi response %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHTTPHandlerErrors(t *testing.T) {
	handler := NewHTTPHandler(newTestService(newMemoryStore()), 256, nil)

	cases := []struct {
		name   string
		req    func() *http.Request
		status int
	}{
		{
			name: "unknown version",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/api/versions/"+uuid.NewString()+"/changes", nil)
			},
			status: http.StatusNotFound,
		},
		{
			name: "malformed version id",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/api/versions/abc/changes", nil)
			},
			status: http.StatusBadRequest,
		},
		{
			name: "missing dataset",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/api/versions", nil)
			},
			status: http.StatusBadRequest,
		},
		{
			name: "bad limit",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/api/versions?dataset=x&limit=-1", nil)
			},
			status: http.StatusBadRequest,
		},
		{
			name: "upload over ceiling",
			req: func() *http.Request {
				body, contentType := multipartUpload(t, "portafolio", "grande.csv", strings.Repeat("x", 1024))
				req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
				req.Header.Set("Content-Type", contentType)
				return req
			},
			status: http.StatusRequestEntityTooLarge,
		},
		{
			name: "wrong method",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodDelete, "/api/uploads", nil)
			},
			status: http.StatusMethodNotAllowed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, tc.req())
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHTTPHandlerUnsupportedUpload(t *testing.T) {
	handler := NewHTTPHandler(newTestService(newMemoryStore()), 1<<20, nil)

	body, contentType := multipartUpload(t, "portafolio", "notas.txt", "hola")
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d: %s", rec.Code, rec.Body.String())
	}
}
