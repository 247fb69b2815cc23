package bmlt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer returns a fake root server that grants tokens and
// dispatches the given handlers by path.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["username"] != "admin" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "Invalid credentials"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-token",
			"expires_at":   0,
			"token_type":   "bearer",
			"userId":       42,
		})
	})
	for path, h := range handlers {
		mux.HandleFunc(path, h)
	}
	return httptest.NewServer(mux)
}

func newTestClient(srv *httptest.Server) *Client {
	c := NewClient(Config{BaseURL: srv.URL, Username: "admin", Password: "pw", MaxRetries: 1})
	c.SetHTTPClient(srv.Client())
	return c
}

func TestGetServiceBodies(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/servicebodies": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode([]ServiceBody{
				{ID: 1, Name: "Mid-State Area", Type: ServiceBodyTypeArea, WorldID: "AR63340"},
				{ID: 2, Name: "Plains Region", Type: ServiceBodyTypeRegion, WorldID: "RG150"},
			})
		},
	})
	defer srv.Close()

	bodies, err := newTestClient(srv).GetServiceBodies(context.Background())
	require.NoError(t, err)
	require.Len(t, bodies, 2)
	assert.Equal(t, "AR63340", bodies[0].WorldID)
	assert.Equal(t, ServiceBodyTypeRegion, bodies[1].Type)
}

func TestCreateMeeting(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/meetings": func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			var spec MeetingCreate
			require.NoError(t, json.NewDecoder(r.Body).Decode(&spec))
			assert.Equal(t, "Early Risers", spec.Name)
			assert.Equal(t, VenueTypeHybrid, spec.VenueType)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(Meeting{
				ID: 99, Name: spec.Name, Day: spec.Day,
				StartTime: spec.StartTime, WorldID: spec.WorldID,
			})
		},
	})
	defer srv.Close()

	meeting, err := newTestClient(srv).CreateMeeting(context.Background(), MeetingCreate{
		Name:      "Early Risers",
		Day:       1,
		StartTime: "06:30",
		VenueType: VenueTypeHybrid,
		WorldID:   "G00012345",
	})
	require.NoError(t, err)
	assert.Equal(t, 99, meeting.ID)
	assert.Equal(t, "G00012345", meeting.WorldID)
}

func TestCreateMeetingValidationError(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/meetings": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"message": "The given data was invalid.",
				"errors": map[string][]string{
					"startTime": {"The start time format is invalid."},
				},
			})
		},
	})
	defer srv.Close()

	_, err := newTestClient(srv).CreateMeeting(context.Background(), MeetingCreate{})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok, "expected *APIError, got %T", err)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Contains(t, apiErr.Flatten(), "startTime: The start time format is invalid.")
}

func TestGetCurrentUser(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/users/42": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(User{ID: 42, Username: "admin", Type: "admin"})
		},
	})
	defer srv.Close()

	user, err := newTestClient(srv).GetCurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, user.ID)
	assert.Equal(t, "admin", user.Username)
}

func TestAuthFailure(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Username: "wrong", Password: "pw", MaxRetries: 1})
	c.SetHTTPClient(srv.Client())

	_, err := c.GetFormats(context.Background())
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestAPIErrorFlatten(t *testing.T) {
	tests := []struct {
		name string
		err  APIError
		want string
	}{
		{"message only", APIError{StatusCode: 500, Message: "boom"}, "boom"},
		{"status only", APIError{StatusCode: 503}, "request failed with status 503"},
		{
			"field errors win over message",
			APIError{
				StatusCode: 422,
				Message:    "The given data was invalid.",
				Errors: map[string][]string{
					"day":  {"must be between 0 and 6"},
					"name": {"required"},
				},
			},
			"day: must be between 0 and 6, name: required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Flatten())
		})
	}
}
