package importer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/bmlt-tools/naws-importer/internal/bmlt"
	"github.com/bmlt-tools/naws-importer/internal/sheet"
)

// Pipeline defaults; Options overrides them per run.
const (
	DefaultBatchSize         = 5
	DefaultBatchDelay        = 500 * time.Millisecond
	DefaultMaxStoredMeetings = 10
	DefaultMaxStoredErrors   = 50
)

// ErrImportCancelled reports a caller-initiated abort. It is distinct
// from data and network errors: the outcome returned alongside it holds
// everything completed before the abort, and nothing is rolled back.
var ErrImportCancelled = errors.New("import cancelled")

// RootServerClient is the remote surface the engine drives.
type RootServerClient interface {
	GetServiceBodies(ctx context.Context) ([]bmlt.ServiceBody, error)
	GetFormats(ctx context.Context) ([]bmlt.Format, error)
	GetMeetings(ctx context.Context) ([]bmlt.Meeting, error)
	CreateMeeting(ctx context.Context, spec bmlt.MeetingCreate) (*bmlt.Meeting, error)
	CreateServiceBody(ctx context.Context, spec bmlt.ServiceBodyCreate) (*bmlt.ServiceBody, error)
	GetCurrentUser(ctx context.Context) (*bmlt.User, error)
}

// Options tunes a run. Zero values take the package defaults.
type Options struct {
	BatchSize         int
	BatchDelay        time.Duration
	MaxStoredMeetings int
	MaxStoredErrors   int
	DefaultLatitude   float64
	DefaultLongitude  float64
	Progress          ProgressFunc
}

// Engine drives the import pipeline end to end. It owns phase
// sequencing and is the only component aware of concurrency and
// cancellation.
type Engine struct {
	client RootServerClient
	opts   Options
}

// NewEngine creates an engine for the given root server client.
func NewEngine(client RootServerClient, opts Options) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchDelay <= 0 {
		opts.BatchDelay = DefaultBatchDelay
	}
	if opts.MaxStoredMeetings <= 0 {
		opts.MaxStoredMeetings = DefaultMaxStoredMeetings
	}
	if opts.MaxStoredErrors <= 0 {
		opts.MaxStoredErrors = DefaultMaxStoredErrors
	}
	return &Engine{client: client, opts: opts}
}

func (e *Engine) report(phase Phase, step, total int, message string, percent int) {
	if e.opts.Progress != nil {
		e.opts.Progress(ProgressEvent{
			Phase:      phase,
			Step:       step,
			TotalSteps: total,
			Message:    message,
			Percent:    percent,
		})
	}
}

// addError appends a row-tagged error up to the storage cap. The
// callers' failure counters stay exact regardless.
func (e *Engine) addError(outcome *ImportOutcome, msg string) {
	if len(outcome.Errors) < e.opts.MaxStoredErrors {
		outcome.Errors = append(outcome.Errors, msg)
	}
}

// Run executes a full import of the given grid. It always returns a
// populated outcome; the error is non-nil only for cancellation
// (ErrImportCancelled). Structural failures terminate early but are
// reported inside the outcome.
func (e *Engine) Run(ctx context.Context, grid *sheet.Grid) (*ImportOutcome, error) {
	start := time.Now()
	outcome := &ImportOutcome{}
	finish := func() *ImportOutcome {
		outcome.Duration = time.Since(start)
		outcome.Success = outcome.Succeeded > 0
		return outcome
	}

	// Phase 1: parse and normalize.
	e.report(PhaseParsing, 1, 7, "Parsing spreadsheet", 0)
	parsed := ParseGrid(grid)
	outcome.Warnings = append(outcome.Warnings, parsed.Warnings...)
	if len(parsed.Errors) > 0 {
		for _, msg := range parsed.Errors {
			e.addError(outcome, msg)
		}
		e.report(PhaseError, 1, 7, "Spreadsheet failed validation", 0)
		return finish(), nil
	}

	// Phase 2: fetch server configuration.
	e.report(PhaseServerConfig, 2, 7, "Fetching server configuration", 15)
	serviceBodies, err := e.client.GetServiceBodies(ctx)
	if err != nil {
		e.addError(outcome, fmt.Sprintf("Failed to fetch service bodies: %s", flattenClientError(err)))
		e.report(PhaseError, 2, 7, "Could not reach root server", 15)
		return finish(), nil
	}
	formats, err := e.client.GetFormats(ctx)
	if err != nil {
		e.addError(outcome, fmt.Sprintf("Failed to fetch formats: %s", flattenClientError(err)))
		e.report(PhaseError, 2, 7, "Could not reach root server", 15)
		return finish(), nil
	}

	// Phase 3: build lookup snapshots.
	e.report(PhaseMappingSetup, 3, 7, "Building lookup tables", 30)
	tables := LookupTables{
		ServiceBodies: NewServiceBodyTable(serviceBodies),
		Formats:       NewFormatTable(formats),
	}

	// Phase 4: reconcile missing service bodies.
	e.report(PhaseReconciliation, 4, 7, "Checking service bodies", 45)
	tables, reconcileOK := e.reconcileServiceBodies(ctx, parsed.Records, tables, outcome)
	if !reconcileOK {
		e.report(PhaseError, 4, 7, "Service body reconciliation failed", 45)
		return finish(), nil
	}

	// Phase 5: fetch existing meetings for duplicate checks.
	e.report(PhaseDuplicateCheck, 5, 7, "Checking for existing meetings", 55)
	existing := e.fetchExistingWorldIDs(ctx, outcome)

	// Phase 6: submit in batches.
	e.report(PhaseSubmission, 6, 7, "Submitting meetings", 60)
	if err := e.submit(ctx, parsed.Records, tables, existing, outcome); err != nil {
		e.report(PhaseError, 6, 7, "Import cancelled", 60)
		return finish(), err
	}

	e.report(PhaseCompleted, 7, 7,
		fmt.Sprintf("Import complete: %d created, %d failed, %d skipped",
			outcome.Succeeded, outcome.Failed, outcome.Skipped), 100)
	return finish(), nil
}

// reconcileServiceBodies creates service bodies the spreadsheet needs
// but the server lacks, returning a fresh snapshot with the results
// merged in. A false return means a structural failure (the acting
// identity could not be resolved) already recorded in the outcome.
func (e *Engine) reconcileServiceBodies(ctx context.Context, records []Record, tables LookupTables, outcome *ImportOutcome) (LookupTables, bool) {
	required := ExtractRequiredServiceBodies(records)
	missing := FindMissingServiceBodies(required, tables.ServiceBodies)
	if len(missing) == 0 {
		return tables, true
	}

	// Every creation is owned by the acting user, so an unresolvable
	// identity dooms the whole step, not individual rows.
	user, err := e.client.GetCurrentUser(ctx)
	if err != nil {
		e.addError(outcome, fmt.Sprintf(
			"Cannot create %d missing service bodies: failed to resolve current user: %s",
			len(missing), flattenClientError(err)))
		return tables, false
	}

	result := CreateMissingServiceBodies(ctx, e.client, missing, user.ID,
		func(ordinal, total int, name string) {
			percent := 45 + 10*ordinal/total
			e.report(PhaseReconciliation, 4, 7,
				fmt.Sprintf("Creating service body %d/%d: %s", ordinal, total, name), percent)
		})

	for _, msg := range result.Errors {
		e.addError(outcome, msg)
	}
	outcome.Warnings = append(outcome.Warnings, result.Warnings...)
	outcome.ServiceBodiesCreated = result.CreatedCount

	return LookupTables{
		ServiceBodies: tables.ServiceBodies.WithCreated(result.Resolved),
		Formats:       tables.Formats,
	}, true
}

// fetchExistingWorldIDs returns the case-insensitive set of world ids
// already on the server. A fetch failure degrades to an empty set —
// the run prefers risking a duplicate create (the server's own
// uniqueness constraints backstop it) over aborting entirely.
func (e *Engine) fetchExistingWorldIDs(ctx context.Context, outcome *ImportOutcome) map[string]bool {
	existing := make(map[string]bool)
	meetings, err := e.client.GetMeetings(ctx)
	if err != nil {
		log.Printf("[Engine] Failed to fetch existing meetings, duplicate check disabled: %v", err)
		outcome.Warnings = append(outcome.Warnings,
			fmt.Sprintf("Could not fetch existing meetings; duplicate check skipped: %s", flattenClientError(err)))
		return existing
	}
	for _, m := range meetings {
		id := strings.ToUpper(strings.TrimSpace(m.WorldID))
		if id != "" {
			existing[id] = true
		}
	}
	return existing
}

// rowResult is one row's settled submission outcome.
type rowResult struct {
	rowNumber int
	meeting   *bmlt.Meeting
	skipped   bool
	errs      []string
	warns     []string
}

// submit drives the batched creation of all submittable rows. Batches
// run strictly in input order with at most BatchSize concurrent create
// calls; the engine waits for a batch to settle, sleeps the pacing
// delay, then starts the next. Cancellation is checked at batch
// boundaries only, so partial-batch outcomes stay well-defined.
func (e *Engine) submit(ctx context.Context, records []Record, tables LookupTables, existing map[string]bool, outcome *ImportOutcome) error {
	// Rows missing required fields were already flagged by validation;
	// they are retained for diagnostics but never submitted or counted.
	var submittable []Record
	for _, rec := range records {
		if rec.HasRequiredFields() {
			submittable = append(submittable, rec)
		}
	}

	totalBatches := (len(submittable) + e.opts.BatchSize - 1) / e.opts.BatchSize

	for b := 0; b < totalBatches; b++ {
		if err := ctx.Err(); err != nil {
			log.Printf("[Engine] Import cancelled before batch %d/%d", b+1, totalBatches)
			return ErrImportCancelled
		}

		lo := b * e.opts.BatchSize
		hi := lo + e.opts.BatchSize
		if hi > len(submittable) {
			hi = len(submittable)
		}
		batch := submittable[lo:hi]

		percent := 60 + 30*b/totalBatches
		e.report(PhaseSubmission, 6, 7,
			fmt.Sprintf("Submitting batch %d/%d", b+1, totalBatches), percent)

		results := make([]rowResult, len(batch))
		var wg sync.WaitGroup
		for i, rec := range batch {
			wg.Add(1)
			go func(i int, rec Record) {
				defer wg.Done()
				results[i] = e.submitRow(ctx, rec, tables, existing)
			}(i, rec)
		}
		wg.Wait()

		// Aggregate in input order so capped lists are deterministic.
		for _, res := range results {
			outcome.Processed++
			outcome.Warnings = append(outcome.Warnings, res.warns...)
			switch {
			case res.skipped:
				outcome.Skipped++
			case len(res.errs) > 0:
				outcome.Failed++
				for _, msg := range res.errs {
					e.addError(outcome, msg)
				}
			case res.meeting != nil:
				outcome.Succeeded++
				if len(outcome.CreatedMeetings) < e.opts.MaxStoredMeetings {
					outcome.CreatedMeetings = append(outcome.CreatedMeetings, *res.meeting)
				}
			}
		}

		if b < totalBatches-1 {
			select {
			case <-time.After(e.opts.BatchDelay):
			case <-ctx.Done():
				return ErrImportCancelled
			}
		}
	}

	return nil
}

// submitRow settles a single row: duplicate short-circuit, mapping,
// then the remote create. A create failure — including a timeout — is
// an ordinary per-row failure, never a run abort.
func (e *Engine) submitRow(ctx context.Context, rec Record, tables LookupTables, existing map[string]bool) rowResult {
	res := rowResult{rowNumber: rec.RowNumber}

	if rec.Committee != "" && existing[strings.ToUpper(rec.Committee)] {
		res.skipped = true
		res.warns = append(res.warns, fmt.Sprintf(
			"Row %d: skipped — meeting with world id %s already exists", rec.RowNumber, rec.Committee))
		return res
	}

	req, errs, warns := MapRecord(rec, tables, MapperDefaults{
		Latitude:  e.opts.DefaultLatitude,
		Longitude: e.opts.DefaultLongitude,
	})
	res.warns = append(res.warns, warns...)
	if len(errs) > 0 {
		res.errs = errs
		return res
	}
	if req == nil {
		res.skipped = true
		return res
	}

	meeting, err := e.client.CreateMeeting(ctx, *req)
	if err != nil {
		res.errs = append(res.errs, fmt.Sprintf(
			"Row %d: failed to create meeting '%s': %s", rec.RowNumber, rec.Name, flattenClientError(err)))
		return res
	}

	res.meeting = meeting
	return res
}
