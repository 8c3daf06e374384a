package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"

	"amsf/internal/comparison"
	crmmemory "amsf/internal/crm/store/memory"
	"amsf/internal/filing"
	"amsf/internal/submission/models"
	"amsf/internal/submission/service"
	"amsf/internal/submission/store/memory"
	"amsf/internal/survey/engine"
	"amsf/internal/taxonomy"
	"amsf/internal/validation/local"
	"amsf/internal/validation/orchestrator"
	"amsf/internal/validation/remote"
	"amsf/internal/xbrl"
	id "amsf/pkg/domain"
)

// cliUser is the actor recorded for every change made from the command line.
var cliUser = id.UserID(uuid.NewSHA1(uuid.NameSpaceOID, []byte("amsf/surveyctl")))

type rootOptions struct {
	fixture      string
	answersPath  string
	taxonomyPath string
	org          string
	year         int
	lenient      bool
	remoteURL    string
	remoteWait   time.Duration
	verbose      bool
}

// workspace is an in-memory copy of the whole pipeline fed from a CRM fixture.
type workspace struct {
	tax         *taxonomy.Taxonomy
	engine      *engine.Engine
	submissions *service.Service
	filing      *filing.Service
	validator   *orchestrator.Orchestrator
	org         id.OrganizationID
	year        int
	answers     map[string]string
}

func openWorkspace(opts *rootOptions, stderr io.Writer) (*workspace, error) {
	if opts.fixture == "" {
		return nil, fmt.Errorf("--fixture is required")
	}
	orgID, err := id.ParseOrganizationID(opts.org)
	if err != nil {
		return nil, fmt.Errorf("--org: %w", err)
	}
	if opts.year < models.MinYear || opts.year > models.MaxYear {
		return nil, fmt.Errorf("--year must be between %d and %d", models.MinYear, models.MaxYear)
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	tax, err := taxonomy.Load(opts.taxonomyPath)
	if err != nil {
		return nil, err
	}
	crm, err := crmmemory.FromFile(opts.fixture)
	if err != nil {
		return nil, err
	}
	answers, err := loadAnswers(opts.answersPath)
	if err != nil {
		return nil, err
	}
	store := memory.NewInMemory()
	eng, err := engine.New(crm, store, tax, engine.WithLogger(log))
	if err != nil {
		return nil, err
	}
	submissions := service.New(store, eng, tax, service.WithLogger(log))

	var remoteV remote.Validator
	if opts.remoteURL != "" {
		remoteV = remote.NewClient(opts.remoteURL, remote.WithTimeout(opts.remoteWait), remote.WithLogger(log))
	}
	validator := orchestrator.New(local.New(tax), remoteV, remoteV != nil, orchestrator.WithLogger(log))

	return &workspace{
		tax:         tax,
		engine:      eng,
		submissions: submissions,
		validator:   validator,
		filing: filing.New(submissions, crm, tax,
			xbrl.New(tax, xbrl.Options{Strict: !opts.lenient, Logger: log}),
			validator,
			filing.WithLogger(log),
			filing.WithComparator(comparison.New(submissions, tax, comparison.WithLogger(log))),
		),
		org:     orgID,
		year:    opts.year,
		answers: answers,
	}, nil
}

// loadAnswers reads a JSON object of element code to answer.
func loadAnswers(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}
	var answers map[string]string
	if err := json.Unmarshal(raw, &answers); err != nil {
		return nil, fmt.Errorf("decode answers %s: %w", path, err)
	}
	return answers, nil
}

// draft creates the submission for year. Creation computes its values; the
// reporting year also receives the --answers file.
func (w *workspace) draft(ctx context.Context, year int) (*models.Submission, error) {
	sub, err := w.submissions.Create(ctx, w.org, year, cliUser)
	if err != nil || year != w.year {
		return sub, err
	}
	codes := make([]string, 0, len(w.answers))
	for code := range w.answers {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		if _, err := w.submissions.SaveAnswer(ctx, sub.ID, cliUser, code, w.answers[code]); err != nil {
			return nil, fmt.Errorf("answer %s: %w", code, err)
		}
	}
	return sub, nil
}
