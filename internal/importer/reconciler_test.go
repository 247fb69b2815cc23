package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/bmlt-tools/naws-importer/internal/bmlt"
)

func TestExtractRequiredServiceBodies(t *testing.T) {
	records := []Record{
		{AreaRegion: "AR100", ParentName: "First Area"},
		{AreaRegion: "ar100", ParentName: "Renamed Area"},  // dup code: first name wins
		{AreaRegion: "RG200", ParentName: "Some Region"},
		{AreaRegion: "AR300", ParentName: ""},              // no name: skipped
		{AreaRegion: "", ParentName: "Orphan"},             // no code: skipped
		{AreaRegion: "AR400", ParentName: "Gone", Delete: "D"},
	}

	required := ExtractRequiredServiceBodies(records)

	if len(required) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(required), required)
	}
	if required[0].Code != "AR100" || required[0].Name != "First Area" {
		t.Errorf("first = %+v", required[0])
	}
	if required[1].Code != "RG200" || required[1].Name != "Some Region" {
		t.Errorf("second = %+v", required[1])
	}

	// Extraction is a pure function of the records.
	again := ExtractRequiredServiceBodies(records)
	if len(again) != len(required) {
		t.Error("extraction is not repeatable")
	}
}

func TestFindMissingServiceBodies(t *testing.T) {
	table := NewServiceBodyTable([]bmlt.ServiceBody{{ID: 1, WorldID: "AR100"}})
	required := []RequiredServiceBody{
		{Code: "ar100", Name: "Known"},
		{Code: "RG200", Name: "Unknown"},
	}

	missing := FindMissingServiceBodies(required, table)
	if len(missing) != 1 || missing[0].Code != "RG200" {
		t.Errorf("missing = %v", missing)
	}
}

func TestServiceBodyTypeForCode(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"AR63340", bmlt.ServiceBodyTypeArea},
		{"ar99", bmlt.ServiceBodyTypeArea},
		{"RG100", bmlt.ServiceBodyTypeRegion},
		{"G0012345", bmlt.ServiceBodyTypeRegion},
	}
	for _, tt := range tests {
		if got := serviceBodyTypeForCode(tt.code); got != tt.want {
			t.Errorf("serviceBodyTypeForCode(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

// fakeCreator is an in-memory ServiceBodyCreator with scriptable
// failures.
type fakeCreator struct {
	mu      sync.Mutex
	bodies  []bmlt.ServiceBody
	nextID  int
	failFor map[string]error
	creates int
}

func newFakeCreator(existing ...bmlt.ServiceBody) *fakeCreator {
	return &fakeCreator{bodies: existing, nextID: 100, failFor: make(map[string]error)}
}

func (f *fakeCreator) GetServiceBodies(context.Context) ([]bmlt.ServiceBody, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bmlt.ServiceBody, len(f.bodies))
	copy(out, f.bodies)
	return out, nil
}

func (f *fakeCreator) CreateServiceBody(_ context.Context, spec bmlt.ServiceBodyCreate) (*bmlt.ServiceBody, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if err, ok := f.failFor[spec.WorldID]; ok {
		return nil, err
	}
	f.nextID++
	body := bmlt.ServiceBody{
		ID:          f.nextID,
		Name:        spec.Name,
		Type:        spec.Type,
		WorldID:     spec.WorldID,
		AdminUserID: spec.AdminUserID,
	}
	f.bodies = append(f.bodies, body)
	return &body, nil
}

func TestCreateMissingServiceBodies(t *testing.T) {
	creator := newFakeCreator()
	missing := []RequiredServiceBody{
		{Code: "AR100", Name: "New Area"},
		{Code: "RG200", Name: "New Region"},
	}

	var events []string
	result := CreateMissingServiceBodies(context.Background(), creator, missing, 42,
		func(ordinal, total int, name string) {
			events = append(events, fmt.Sprintf("%d/%d %s", ordinal, total, name))
		})

	if result.CreatedCount != 2 || len(result.Resolved) != 2 || len(result.Errors) != 0 {
		t.Fatalf("result = %+v", result)
	}
	if result.Resolved[0].Type != bmlt.ServiceBodyTypeArea {
		t.Errorf("AR code created as %q", result.Resolved[0].Type)
	}
	if result.Resolved[1].Type != bmlt.ServiceBodyTypeRegion {
		t.Errorf("RG code created as %q", result.Resolved[1].Type)
	}
	if result.Resolved[0].AdminUserID != 42 {
		t.Errorf("AdminUserID = %d, want 42", result.Resolved[0].AdminUserID)
	}
	if len(events) != 2 || events[0] != "1/2 New Area" {
		t.Errorf("progress events = %v", events)
	}
}

func TestCreateMissingServiceBodiesReusesExisting(t *testing.T) {
	// The body appears on the server between extraction and creation —
	// another actor raced this run.
	creator := newFakeCreator(bmlt.ServiceBody{ID: 50, Name: "Already There", WorldID: "AR100"})

	result := CreateMissingServiceBodies(context.Background(), creator,
		[]RequiredServiceBody{{Code: "ar100", Name: "New Area"}}, 42, nil)

	if creator.creates != 0 {
		t.Errorf("creates = %d, want 0", creator.creates)
	}
	if result.CreatedCount != 0 {
		t.Errorf("CreatedCount = %d, want 0", result.CreatedCount)
	}
	if len(result.Resolved) != 1 || result.Resolved[0].ID != 50 {
		t.Errorf("Resolved = %v", result.Resolved)
	}
}

func TestCreateMissingServiceBodiesFailureContinues(t *testing.T) {
	creator := newFakeCreator()
	creator.failFor["AR100"] = errors.New("boom")
	missing := []RequiredServiceBody{
		{Code: "AR100", Name: "Doomed Area"},
		{Code: "RG200", Name: "Fine Region"},
	}

	result := CreateMissingServiceBodies(context.Background(), creator, missing, 42, nil)

	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "Doomed Area") {
		t.Fatalf("Errors = %v", result.Errors)
	}
	if result.CreatedCount != 1 || len(result.Resolved) != 1 {
		t.Errorf("result = %+v", result)
	}
	if result.Resolved[0].WorldID != "RG200" {
		t.Errorf("Resolved = %v", result.Resolved)
	}
}
