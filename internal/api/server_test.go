package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bmlt-tools/naws-importer/internal/bmlt"
	"github.com/bmlt-tools/naws-importer/internal/config"
	"github.com/bmlt-tools/naws-importer/internal/importer"
)

// stubClient serves a minimal root server: one service body, no
// formats, no existing meetings.
type stubClient struct {
	mu      sync.Mutex
	created []bmlt.MeetingCreate
	fail    bool
}

func (c *stubClient) GetServiceBodies(context.Context) ([]bmlt.ServiceBody, error) {
	if c.fail {
		return nil, errors.New("unreachable")
	}
	return []bmlt.ServiceBody{{ID: 7, Name: "Test Area", WorldID: "AR63340"}}, nil
}

func (c *stubClient) GetFormats(context.Context) ([]bmlt.Format, error) {
	return nil, nil
}

func (c *stubClient) GetMeetings(context.Context) ([]bmlt.Meeting, error) {
	return nil, nil
}

func (c *stubClient) CreateMeeting(_ context.Context, spec bmlt.MeetingCreate) (*bmlt.Meeting, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created = append(c.created, spec)
	return &bmlt.Meeting{ID: len(c.created), Name: spec.Name, WorldID: spec.WorldID}, nil
}

func (c *stubClient) CreateServiceBody(context.Context, bmlt.ServiceBodyCreate) (*bmlt.ServiceBody, error) {
	return nil, errors.New("not supported in stub")
}

func (c *stubClient) GetCurrentUser(context.Context) (*bmlt.User, error) {
	return &bmlt.User{ID: 1, Username: "admin"}, nil
}

func testServer(client importer.RootServerClient) *Server {
	cfg := &config.Config{}
	cfg.Import.BatchSize = 5
	cfg.Import.BatchDelayMs = 1
	return NewServer(cfg, client, importer.NewMemoryProgressStore(), nil, nil)
}

const sampleCSV = `Committee,CommitteeName,AreaRegion,ParentName,Day,Time,Address,City
G0000001,Serenity Group,AR63340,Test Area,Monday,1930,123 Main St,Springfield
G0000002,Hope Group,AR63340,Test Area,Tuesday,930,456 Oak Ave,Springfield
`

func uploadRequest(t *testing.T, target, filename, contents string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(contents)); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandleValidate(t *testing.T) {
	srv := testServer(&stubClient{})
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, uploadRequest(t, "/api/import/validate", "export.csv", sampleCSV))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var report importer.ValidationReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if !report.Valid || report.Preview.ValidRows != 2 {
		t.Errorf("report = %+v", report)
	}
}

func TestHandleValidateRejectsUnsupportedType(t *testing.T) {
	srv := testServer(&stubClient{})
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, uploadRequest(t, "/api/import/validate", "export.pdf", "junk"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestImportLifecycle(t *testing.T) {
	client := &stubClient{}
	srv := testServer(client)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/api/import/", "export.csv", sampleCSV))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var started map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil {
		t.Fatal(err)
	}
	jobID := started["jobId"]
	if jobID == "" {
		t.Fatal("no job id returned")
	}

	// Poll until the background run finishes.
	var status importer.JobStatus
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/import/"+jobID, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status endpoint = %d", rec.Code)
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			t.Fatal(err)
		}
		if status.Done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish: %+v", status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if status.Cancelled || status.Outcome == nil || status.Outcome.Succeeded != 2 {
		t.Errorf("final status = %+v", status)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/import/"+jobID+"/result", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("result endpoint = %d", rec.Code)
	}
	var outcome importer.ImportOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatal(err)
	}
	if outcome.Succeeded != 2 || !outcome.Success {
		t.Errorf("outcome = %+v", outcome)
	}
}

func TestJobStatusUnknown(t *testing.T) {
	srv := testServer(&stubClient{})
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/import/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCancelNotRunning(t *testing.T) {
	srv := testServer(&stubClient{})
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/import/nope/cancel", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	srv := testServer(&stubClient{})
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
