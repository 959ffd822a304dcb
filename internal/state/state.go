// Package state persists one workflow run as a JSON document keyed by ADW ID.
package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/google/uuid"
)

// ADWIDLength is the number of characters kept from a minted UUID.
const ADWIDLength = 8

// IssueClass is the classification of the issue that started a run.
// Values keep the slash command form the plan stage dispatches on.
type IssueClass string

const (
	ClassChore   IssueClass = "/chore"
	ClassBug     IssueClass = "/bug"
	ClassFeature IssueClass = "/feature"
	ClassPatch   IssueClass = "/patch"
)

// Valid reports whether c is one of the known classes.
func (c IssueClass) Valid() bool {
	switch c {
	case ClassChore, ClassBug, ClassFeature, ClassPatch:
		return true
	}

	return false
}

// Name returns the class without its leading slash.
func (c IssueClass) Name() string {
	if len(c) > 0 && c[0] == '/' {
		return string(c[1:])
	}

	return string(c)
}

// ParseIssueClass accepts "feature" or "/feature" forms.
func ParseIssueClass(s string) (IssueClass, error) {
	c := IssueClass(s)
	if len(s) > 0 && s[0] != '/' {
		c = IssueClass("/" + s)
	}
	if !c.Valid() {
		return "", fmt.Errorf("unknown issue class %q", s)
	}

	return c, nil
}

// WorkflowState is the durable record shared by every stage of a run.
// Fields not known to this version are kept in Extra and written back untouched.
type WorkflowState struct {
	ADWID             string     `json:"adw_id"`
	IssueNumber       string     `json:"issue_number,omitempty"`
	BranchName        string     `json:"branch_name,omitempty"`
	IssueClass        IssueClass `json:"issue_class,omitempty"`
	PlanFile          string     `json:"plan_file,omitempty"`
	SpecFile          string     `json:"spec_file,omitempty"`
	PatchFile         string     `json:"patch_file,omitempty"`
	PRURL             string     `json:"pr_url,omitempty"`
	ReviewScreenshots []string   `json:"review_screenshots,omitempty"`
	DocumentationPath string     `json:"documentation_path,omitempty"`
	Phase             Phase      `json:"phase,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Errors
var (
	ErrNotFound     = errors.New("workflow state not found")
	ErrMissingField = errors.New("required state field missing")
	ErrMismatchedID = errors.New("state file adw_id does not match")
)

// NewID mints a fresh ADW ID.
func NewID() string {
	return uuid.New().String()[:ADWIDLength]
}

// New returns an empty in-memory record for adwID. Nothing is written.
func New(adwID, issueNumber string) *WorkflowState {
	return &WorkflowState{
		ADWID:       adwID,
		IssueNumber: issueNumber,
		Phase:       PhaseNone,
	}
}

// SpecPath returns the document describing the planned change:
// spec_file when set, otherwise plan_file, otherwise patch_file.
func (s *WorkflowState) SpecPath() string {
	switch {
	case s.SpecFile != "":
		return s.SpecFile
	case s.PlanFile != "":
		return s.PlanFile
	default:
		return s.PatchFile
	}
}

// Require returns ErrMissingField naming the first absent or empty key.
func (s *WorkflowState) Require(keys ...string) error {
	for _, k := range keys {
		switch v := s.Get(k, nil).(type) {
		case nil:
			return fmt.Errorf("%w: %s", ErrMissingField, k)
		case string:
			if v == "" {
				return fmt.Errorf("%w: %s", ErrMissingField, k)
			}
		case []any:
			if len(v) == 0 {
				return fmt.Errorf("%w: %s", ErrMissingField, k)
			}
		}
	}

	return nil
}

// Get returns the stored value for key, or def when it is absent.
// Named fields are returned with their JSON representation decoded
// into plain Go values (string, []any, float64, map[string]any).
func (s *WorkflowState) Get(key string, def any) any {
	fields, err := s.fields()
	if err != nil {
		return def
	}
	raw, ok := fields[key]
	if !ok {
		return def
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return def
	}

	return v
}

// Update merges fields into the record, last write wins per key.
// It does not touch the disk.
func (s *WorkflowState) Update(fields map[string]any) error {
	current, err := s.fields()
	if err != nil {
		return err
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", k, err)
		}
		current[k] = raw
	}

	return s.setFields(current)
}

// MarshalJSON writes named fields and Extra as one object with sorted keys.
func (s *WorkflowState) MarshalJSON() ([]byte, error) {
	fields, err := s.fields()
	if err != nil {
		return nil, err
	}

	return json.Marshal(fields)
}

// UnmarshalJSON reads named fields and keeps everything else in Extra.
func (s *WorkflowState) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	return s.setFields(fields)
}

// Encode returns the canonical on-disk form: sorted keys, two space
// indent and a trailing newline.
func (s *WorkflowState) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}

	return append(data, '\n'), nil
}

// Decode parses a state document and validates it.
func Decode(data []byte) (*WorkflowState, error) {
	var st WorkflowState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}

	return &st, nil
}

// Read decodes a state document from r, as written by ToStdout.
func Read(r io.Reader) (*WorkflowState, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrNotFound
	}

	return Decode(data)
}

// ToStdout writes the canonical form to w so a parent process can pick it up.
func (s *WorkflowState) ToStdout(w io.Writer) error {
	data, err := s.Encode()
	if err != nil {
		return err
	}
	_, err = w.Write(data)

	return err
}

// Validate checks field values that have a closed domain.
func (s *WorkflowState) Validate() error {
	if s.ADWID == "" {
		return fmt.Errorf("%w: adw_id", ErrMissingField)
	}
	if s.IssueClass != "" && !s.IssueClass.Valid() {
		return fmt.Errorf("invalid issue_class %q", s.IssueClass)
	}
	if !s.Phase.Valid() {
		return fmt.Errorf("invalid phase %q", s.Phase)
	}

	return nil
}

// plain drops the custom marshalers so the named fields can be
// encoded with their struct tags.
type plain WorkflowState

var knownKeys = []string{
	"adw_id", "issue_number", "branch_name", "issue_class", "plan_file", "spec_file",
	"patch_file", "pr_url", "review_screenshots", "documentation_path", "phase",
}

func (s *WorkflowState) fields() (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(s.Extra)+len(knownKeys))
	for k, v := range s.Extra {
		out[k] = v
	}

	data, err := json.Marshal((*plain)(s))
	if err != nil {
		return nil, err
	}
	var named map[string]json.RawMessage
	if err := json.Unmarshal(data, &named); err != nil {
		return nil, err
	}
	for k, v := range named {
		out[k] = v
	}

	return out, nil
}

func (s *WorkflowState) setFields(fields map[string]json.RawMessage) error {
	// issue_number arrives as a number from older writers.
	if raw, ok := fields["issue_number"]; ok && len(raw) > 0 && raw[0] != '"' && string(raw) != "null" {
		fields["issue_number"] = json.RawMessage(`"` + string(raw) + `"`)
	}

	named := make(map[string]json.RawMessage)
	extra := make(map[string]json.RawMessage)
	for k, v := range fields {
		if slices.Contains(knownKeys, k) {
			named[k] = v
		} else {
			extra[k] = v
		}
	}

	data, err := json.Marshal(named)
	if err != nil {
		return err
	}
	var next WorkflowState
	if err := json.Unmarshal(data, (*plain)(&next)); err != nil {
		return fmt.Errorf("decode state fields: %w", err)
	}
	if len(extra) > 0 {
		next.Extra = extra
	}
	*s = next

	return nil
}
