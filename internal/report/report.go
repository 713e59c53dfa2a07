// Package report renders a sweep result as console text, JSON, or CSV. All
// renderings are pure functions of the same result; generating one never
// re-runs the sweep or affects another format.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/m0h1nd4/parallel-ping-sweeper/internal/sweeper"
)

// ExportError reports a failure writing an export file. The in-memory
// result and any exports already written stay valid.
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("failed to write %s export to %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// Meta mirrors the meta object of the JSON export schema.
type Meta struct {
	GeneratedAt string  `json:"generated_at"`
	Network     string  `json:"network"`
	TimeoutS    float64 `json:"timeout_s"`
	Concurrency int     `json:"concurrency"`
}

// Entry mirrors one element of the results array.
type Entry struct {
	IP        string   `json:"ip"`
	Online    bool     `json:"online"`
	RTTMillis *float64 `json:"rtt_ms"`
	Error     *string  `json:"error"`
}

// Document is the complete JSON export payload. Field names are a
// compatibility surface for downstream tooling.
type Document struct {
	Meta    Meta    `json:"meta"`
	Results []Entry `json:"results"`
}

// BuildDocument maps a result onto the export schema, in enumeration order.
// The only-online filter applies to exports the same way it applies to the
// console listing.
func BuildDocument(result *sweeper.Result) Document {
	entries := make([]Entry, 0, len(result.Outcomes))
	for _, outcome := range result.Outcomes {
		if result.Config.OnlyOnline && !outcome.Online {
			continue
		}
		entry := Entry{
			IP:        outcome.IP,
			Online:    outcome.Online,
			RTTMillis: outcome.RTTMillis,
		}
		if outcome.Err != "" {
			errValue := outcome.Err
			entry.Error = &errValue
		}
		entries = append(entries, entry)
	}

	return Document{
		Meta: Meta{
			GeneratedAt: result.GeneratedAt.UTC().Format(time.RFC3339),
			Network:     result.Network.String(),
			TimeoutS:    result.Config.TimeoutS,
			Concurrency: result.Config.Concurrency,
		},
		Results: entries,
	}
}

// RenderJSON returns the indented JSON document for the result.
func RenderJSON(result *sweeper.Result) ([]byte, error) {
	data, err := json.MarshalIndent(BuildDocument(result), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// WriteJSON writes the JSON export to path.
func WriteJSON(result *sweeper.Result, path string) error {
	data, err := RenderJSON(result)
	if err != nil {
		return &ExportError{Format: "json", Path: path, Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &ExportError{Format: "json", Path: path, Err: err}
	}
	return nil
}

// RenderCSV renders the CSV export: a header row followed by one row per
// matching host in enumeration order.
func RenderCSV(result *sweeper.Result, w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"ip", "online", "rtt_ms", "error"}); err != nil {
		return err
	}
	for _, outcome := range result.Outcomes {
		if result.Config.OnlyOnline && !outcome.Online {
			continue
		}
		rtt := ""
		if outcome.RTTMillis != nil {
			rtt = strconv.FormatFloat(*outcome.RTTMillis, 'f', -1, 64)
		}
		row := []string{outcome.IP, strconv.FormatBool(outcome.Online), rtt, outcome.Err}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteCSV writes the CSV export to path.
func WriteCSV(result *sweeper.Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return &ExportError{Format: "csv", Path: path, Err: err}
	}

	if err := RenderCSV(result, f); err != nil {
		_ = f.Close()
		return &ExportError{Format: "csv", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &ExportError{Format: "csv", Path: path, Err: err}
	}
	return nil
}

// Console prints the human-readable summary: the network, the online count,
// and the matching host list. Honors the only-online filter; quiet
// suppresses the output entirely.
func Console(w io.Writer, result *sweeper.Result) {
	if result.Config.Quiet {
		return
	}

	fmt.Fprintf(w, "Network: %s\n", result.Network.String())
	fmt.Fprintf(w, "Online hosts: %d\n", result.OnlineCount)
	for _, outcome := range result.Outcomes {
		if result.Config.OnlyOnline && !outcome.Online {
			continue
		}
		if outcome.Online {
			fmt.Fprintln(w, outcome.IP)
		} else if !result.Config.OnlyOnline {
			status := "offline"
			if outcome.Err != "" {
				status = outcome.Err
			}
			fmt.Fprintf(w, "%s\t%s\n", outcome.IP, status)
		}
	}
}
