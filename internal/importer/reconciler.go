package importer

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/bmlt-tools/naws-importer/internal/bmlt"
)

// areaCodePrefix marks NAWS world codes for area service bodies; every
// other code is treated as a region. Fixed rule, not configurable.
const areaCodePrefix = "AR"

// RequiredServiceBody is a service body the spreadsheet references.
type RequiredServiceBody struct {
	Code string
	Name string
}

// ExtractRequiredServiceBodies scans records for referenced service
// bodies, deduplicated by upper-cased code. Delete-flagged rows and
// rows missing either the code or the display name are skipped; on a
// duplicated code the first-seen name wins. Order follows first
// appearance in the file.
func ExtractRequiredServiceBodies(records []Record) []RequiredServiceBody {
	seen := make(map[string]bool)
	var required []RequiredServiceBody

	for _, rec := range records {
		if rec.IsDeleteFlagged() {
			continue
		}
		code := strings.TrimSpace(rec.AreaRegion)
		name := strings.TrimSpace(rec.ParentName)
		if code == "" || name == "" {
			continue
		}
		key := strings.ToUpper(code)
		if seen[key] {
			continue
		}
		seen[key] = true
		required = append(required, RequiredServiceBody{Code: code, Name: name})
	}

	return required
}

// FindMissingServiceBodies returns the required bodies absent from the
// snapshot, compared case-insensitively.
func FindMissingServiceBodies(required []RequiredServiceBody, table *ServiceBodyTable) []RequiredServiceBody {
	var missing []RequiredServiceBody
	for _, req := range required {
		if !table.Contains(req.Code) {
			missing = append(missing, req)
		}
	}
	return missing
}

// serviceBodyTypeForCode applies the fixed prefix rule.
func serviceBodyTypeForCode(code string) string {
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(code)), areaCodePrefix) {
		return bmlt.ServiceBodyTypeArea
	}
	return bmlt.ServiceBodyTypeRegion
}

// ReconcileResult reports a reconciliation pass. Resolved holds every
// body now available for mapping, whether created by this run or found
// already present on re-check.
type ReconcileResult struct {
	Resolved     []bmlt.ServiceBody
	CreatedCount int
	Errors       []string
	Warnings     []string
}

// ServiceBodyCreator is the slice of the root server client the
// reconciler needs.
type ServiceBodyCreator interface {
	GetServiceBodies(ctx context.Context) ([]bmlt.ServiceBody, error)
	CreateServiceBody(ctx context.Context, spec bmlt.ServiceBodyCreate) (*bmlt.ServiceBody, error)
}

// CreateMissingServiceBodies creates the missing bodies one at a time.
// Creation is deliberately sequential: each entry re-fetches the remote
// list first, so a body created moments ago by this run or by another
// actor is reused instead of recreated. adminUserID becomes the
// administrative owner of every created body. One entry failing is
// recorded and does not stop the rest; progress is reported once per
// entry attempted.
func CreateMissingServiceBodies(
	ctx context.Context,
	client ServiceBodyCreator,
	missing []RequiredServiceBody,
	adminUserID int,
	progress func(ordinal, total int, name string),
) *ReconcileResult {
	result := &ReconcileResult{}

	for i, req := range missing {
		if progress != nil {
			progress(i+1, len(missing), req.Name)
		}

		current, err := client.GetServiceBodies(ctx)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Failed to re-check service bodies before creating '%s': %s", req.Name, err))
			continue
		}
		if existing := findByWorldID(current, req.Code); existing != nil {
			log.Printf("[Reconciler] Service body %s (%s) already exists, reusing id %d",
				req.Name, req.Code, existing.ID)
			result.Resolved = append(result.Resolved, *existing)
			continue
		}

		created, err := client.CreateServiceBody(ctx, bmlt.ServiceBodyCreate{
			Name:            req.Name,
			Description:     fmt.Sprintf("Imported from NAWS export (%s)", req.Code),
			Type:            serviceBodyTypeForCode(req.Code),
			WorldID:         strings.ToUpper(req.Code),
			AdminUserID:     adminUserID,
			AssignedUserIDs: []int{adminUserID},
		})
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Failed to create service body '%s' (%s): %s", req.Name, req.Code, flattenClientError(err)))
			continue
		}

		log.Printf("[Reconciler] Created service body %s (%s) with id %d", req.Name, req.Code, created.ID)
		result.Resolved = append(result.Resolved, *created)
		result.CreatedCount++
	}

	return result
}

func findByWorldID(bodies []bmlt.ServiceBody, code string) *bmlt.ServiceBody {
	target := strings.ToUpper(strings.TrimSpace(code))
	for i := range bodies {
		if strings.ToUpper(strings.TrimSpace(bodies[i].WorldID)) == target {
			return &bodies[i]
		}
	}
	return nil
}

// flattenClientError reduces a root server error to one human-readable
// string; anything unstructured keeps its plain message.
func flattenClientError(err error) string {
	if apiErr, ok := err.(*bmlt.APIError); ok {
		return apiErr.Flatten()
	}
	return err.Error()
}
