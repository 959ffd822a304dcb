package agent

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// maxLineSize bounds one stream-json record.
const maxLineSize = 10 * 1024 * 1024

// Outcome is the interpretation of one agent output stream. It is one of
// Completed, Aborted or Malformed.
type Outcome interface {
	outcome()
}

// Completed holds the terminal result record.
type Completed struct {
	Text      string
	SessionID string
	IsError   bool
	Subtype   string
	CostUSD   float64
}

// Aborted means the stream ended without a usable result record.
type Aborted struct {
	Reason string
}

// Malformed means a line could not be decoded and no result followed it.
type Malformed struct {
	Line string
	Err  error
}

func (Completed) outcome() {}
func (Aborted) outcome()   {}
func (Malformed) outcome() {}

// resultRecord is the subset of the stream-json result message we read.
type resultRecord struct {
	Type      string  `json:"type"`
	Subtype   string  `json:"subtype"`
	Result    string  `json:"result"`
	IsError   bool    `json:"is_error"`
	SessionID string  `json:"session_id"`
	CostUSD   float64 `json:"total_cost_usd"`
}

const subtypeErrorDuringExecution = "error_during_execution"

// ParseStream reads line-delimited JSON and returns the outcome along with
// every decoded record in order.
func ParseStream(r io.Reader) (Outcome, []json.RawMessage, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var (
		records  []json.RawMessage
		last     *resultRecord
		badLine  string
		badErr   error
		afterBad bool
	)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec resultRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			badLine, badErr = string(line), err
			afterBad = true

			continue
		}
		records = append(records, json.RawMessage(bytes.Clone(line)))

		if rec.Type == "result" {
			r := rec
			last = &r
			afterBad = false
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, records, fmt.Errorf("read agent output: %w", err)
	}

	switch {
	case last != nil && !afterBad:
		if last.Subtype == subtypeErrorDuringExecution {
			return Aborted{Reason: "error during execution, no result returned"}, records, nil
		}

		return Completed{
			Text:      last.Result,
			SessionID: last.SessionID,
			IsError:   last.IsError,
			Subtype:   last.Subtype,
			CostUSD:   last.CostUSD,
		}, records, nil
	case badErr != nil:
		return Malformed{Line: badLine, Err: badErr}, records, nil
	default:
		return Aborted{Reason: "no result message in agent output"}, records, nil
	}
}

// ParseFile is ParseStream over a file on disk.
func ParseFile(path string) (Outcome, []json.RawMessage, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()

	return ParseStream(f)
}

// EncodeRecords renders records as an indented JSON array.
func EncodeRecords(records []json.RawMessage) ([]byte, error) {
	if records == nil {
		records = []json.RawMessage{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}

	return append(data, '\n'), nil
}
