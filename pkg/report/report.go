// Package report turns pipeline results into the documents pkgwarden emits:
// JSON validation and sync reports, and a Graphviz view of the dependency
// edges a validation rejected.
//
// Every report carries a fresh run id so a CI log line, a JSON artifact and
// a rendered diagram from the same run can be matched up.
package report

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/pkgwarden/pkg/boundary"
	"github.com/matzehuels/pkgwarden/pkg/errors"
	"github.com/matzehuels/pkgwarden/pkg/reconcile"
)

// Validation is the document written for one validation run.
type Validation struct {
	RunID               string           `json:"runId"`
	Package             string           `json:"package"`
	Status              boundary.Status  `json:"status"`
	Passed              bool             `json:"passed"`
	ScannedAssets       int              `json:"scannedAssets"`
	ScannedDependencies int              `json:"scannedDependencies"`
	AllowedRoots        []string         `json:"allowedRoots,omitempty"`
	Issues              []boundary.Issue `json:"issues"`
	Tip                 string           `json:"tip,omitempty"`
	ErrorCode           errors.Code      `json:"errorCode,omitempty"`
	Error               string           `json:"error,omitempty"`
	GeneratedAt         time.Time        `json:"generatedAt"`
}

// NewValidation builds the report of a completed validation run.
func NewValidation(pkg string, r *boundary.Result) *Validation {
	v := &Validation{
		RunID:       uuid.NewString(),
		Package:     pkg,
		Issues:      []boundary.Issue{},
		GeneratedAt: time.Now().UTC(),
	}
	if r == nil {
		v.Status = boundary.StatusError
		return v
	}
	v.Status = r.Status
	v.Passed = r.Passed()
	v.ScannedAssets = r.ScannedAssets
	v.ScannedDependencies = r.ScannedDependencies
	v.AllowedRoots = r.AllowedRoots
	v.Tip = r.Tip
	if r.Issues != nil {
		v.Issues = r.Issues
	}
	return v
}

// FromError builds the terminal report of a run that failed before
// producing a result. Counts stay zero and no issues are listed. Errors
// without a code are reported as UNKNOWN.
func FromError(pkg string, err error) *Validation {
	v := NewValidation(pkg, nil)
	if err == nil {
		return v
	}
	v.ErrorCode = errors.GetCode(errors.Classify(err))
	v.Error = err.Error()
	return v
}

// Sync is the document written for one sync run.
type Sync struct {
	RunID       string    `json:"runId"`
	Package     string    `json:"package"`
	Manifest    string    `json:"manifest"`
	DryRun      bool      `json:"dryRun"`
	GeneratedAt time.Time `json:"generatedAt"`
	*reconcile.SyncReport
}

// NewSync wraps a sync report.
func NewSync(pkg, manifest string, dryRun bool, r *reconcile.SyncReport) *Sync {
	if r == nil {
		r = &reconcile.SyncReport{}
	}
	return &Sync{
		RunID:       uuid.NewString(),
		Package:     pkg,
		Manifest:    manifest,
		DryRun:      dryRun,
		GeneratedAt: time.Now().UTC(),
		SyncReport:  r,
	}
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WriteJSONFile writes v as indented JSON to path.
func WriteJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfiguration, err, "create report %s", path)
	}
	if err := WriteJSON(f, v); err != nil {
		f.Close()
		return errors.Wrap(errors.ErrCodeUnknown, err, "write report %s", path)
	}
	return f.Close()
}
