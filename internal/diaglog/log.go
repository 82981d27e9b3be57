package diaglog

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Snapshot limits, matching what offline tooling expects: the tail of
// the response stream is what matters when a session dies, so the
// snapshot keeps the most recent entries rather than growing unbounded.
const (
	snapshotResponseLimit = 100
	snapshotErrorLimit    = 50
)

// Log is the in-memory diagnostic record for one device session.
// All appends are O(1); nothing is ever mutated or removed. Log is not
// safe for concurrent use: the scan loop owns it for its lifetime,
// matching the single-reader transport discipline.
type Log struct {
	responses       []ResponseEntry
	errors          []ErrorEntry
	challenges      []ChallengeEntry
	loaderResponses []LoaderResponseEntry

	// storageErrs records failures of the vault or live stream.
	// They surface in Save and Summary, never from the hot path.
	storageErrs []string

	// vaultPath is the append-only challenge dump, empty to disable.
	vaultPath string

	// live receives one JSON line per record for tailing, nil to disable.
	live io.Writer

	logger *slog.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithVaultPath enables the append-only challenge vault at path.
func WithVaultPath(path string) Option {
	return func(l *Log) { l.vaultPath = path }
}

// WithLiveWriter streams every record to w as newline-delimited JSON.
// Readers of this stream must not expect a single top-level envelope;
// that is what Save is for.
func WithLiveWriter(w io.Writer) Option {
	return func(l *Log) { l.live = w }
}

// WithLogger sets the slog logger for debug echoes of logged records.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// New creates an empty diagnostic log.
func New(opts ...Option) *Log {
	l := &Log{
		responses:       make([]ResponseEntry, 0),
		errors:          make([]ErrorEntry, 0),
		challenges:      make([]ChallengeEntry, 0),
		loaderResponses: make([]LoaderResponseEntry, 0),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// LogResponse appends one device response.
func (l *Log) LogResponse(source, respType, status string, data []byte) {
	entry := NewResponseEntry(source, respType, status, data)
	l.responses = append(l.responses, entry)
	l.stream("response", entry)
	l.logger.Debug("device response", "source", source, "type", respType, "status", status)
}

// LogError appends one protocol or connection error.
func (l *Log) LogError(errType, message string, context map[string]string) {
	entry := ErrorEntry{
		Timestamp: time.Now(),
		Type:      errType,
		Message:   message,
		Context:   context,
	}
	l.errors = append(l.errors, entry)
	l.stream("error", entry)
	l.logger.Debug("device error recorded", "type", errType, "message", message)
}

// LogChallenge appends an SLA challenge and mirrors it to the vault.
// A vault write failure is recorded as a storage error; the challenge
// itself is always retained in memory.
func (l *Log) LogChallenge(data []byte) {
	entry := ChallengeEntry{
		Timestamp:    time.Now(),
		ChallengeHex: hex.EncodeToString(data),
		Size:         len(data),
	}
	l.challenges = append(l.challenges, entry)
	l.stream("challenge", entry)

	if l.vaultPath != "" {
		if err := appendToVault(l.vaultPath, entry); err != nil {
			l.recordStorageErr("challenge vault", err)
		}
	}
}

// LogLoaderResponse appends a Firehose loader handshake result.
func (l *Log) LogLoaderResponse(loader, response string, success bool) {
	entry := LoaderResponseEntry{
		Timestamp: time.Now(),
		Loader:    loader,
		Response:  response,
		Success:   success,
	}
	l.loaderResponses = append(l.loaderResponses, entry)
	l.stream("loader_response", entry)
	l.logger.Debug("loader response", "loader", loader, "success", success)
}

// Counts returns (responses, challenges, loader responses, errors).
func (l *Log) Counts() (int, int, int, int) {
	return len(l.responses), len(l.challenges), len(l.loaderResponses), len(l.errors)
}

// ErrorHistogram returns error counts keyed by error type.
func (l *Log) ErrorHistogram() map[string]int {
	hist := make(map[string]int, 8)
	for _, e := range l.errors {
		hist[e.Type]++
	}
	return hist
}

// snapshot is the JSON document Save produces.
type snapshot struct {
	GenerationTimestamp  time.Time             `json:"generation_timestamp"`
	TotalResponses       int                   `json:"total_responses"`
	SLAChallengesCount   int                   `json:"sla_challenges_count"`
	LoaderResponsesCount int                   `json:"loader_responses_count"`
	ErrorsCount          int                   `json:"errors_count"`
	ErrorHistogram       map[string]int        `json:"error_histogram,omitempty"`
	Responses            []ResponseEntry       `json:"responses"`
	SLAChallenges        []ChallengeEntry      `json:"sla_challenges"`
	LoaderResponses      []LoaderResponseEntry `json:"loader_responses"`
	Errors               []ErrorEntry          `json:"errors"`
	StorageErrors        []string              `json:"storage_errors,omitempty"`
}

// Save serializes the log to path as a single well-formed JSON document.
// Counters always reflect the full session; the responses and errors
// arrays carry the most recent entries up to the snapshot limits. Save
// is idempotent, in that calling it twice with no new events writes
// identical counters, and safe after a partial scan: the file is written
// to a temp path and renamed so a crash never leaves a torn snapshot.
func (l *Log) Save(path string) (string, error) {
	snap := snapshot{
		GenerationTimestamp:  time.Now(),
		TotalResponses:       len(l.responses),
		SLAChallengesCount:   len(l.challenges),
		LoaderResponsesCount: len(l.loaderResponses),
		ErrorsCount:          len(l.errors),
		ErrorHistogram:       l.ErrorHistogram(),
		Responses:            tail(l.responses, snapshotResponseLimit),
		SLAChallenges:        l.challenges,
		LoaderResponses:      l.loaderResponses,
		Errors:               tail(l.errors, snapshotErrorLimit),
		StorageErrors:        l.storageErrs,
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize diagnostics: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write diagnostics: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to finalize diagnostics: %w", err)
	}

	l.logger.Info("diagnostics saved", "path", path)
	return path, nil
}

// Summary returns a human-readable rollup of the session. It is computed
// from memory alone and never requires a prior Save.
func (l *Log) Summary() string {
	var b strings.Builder

	b.WriteString("SLA Response Diagnostics Summary\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&b, "Total Responses: %d\n", len(l.responses))
	fmt.Fprintf(&b, "SLA Challenges Received: %d\n", len(l.challenges))
	fmt.Fprintf(&b, "Loader Responses: %d\n", len(l.loaderResponses))
	fmt.Fprintf(&b, "Errors: %d\n", len(l.errors))

	if last := l.lastResponseTime(); !last.IsZero() {
		fmt.Fprintf(&b, "Last Response: %s\n", last.Format(time.RFC3339))
	}
	if len(l.errors) > 0 {
		fmt.Fprintf(&b, "Last Error: %s\n", l.errors[len(l.errors)-1].Type)
	}

	if len(l.loaderResponses) > 0 {
		ok := 0
		for _, lr := range l.loaderResponses {
			if lr.Success {
				ok++
			}
		}
		fmt.Fprintf(&b, "Loader Success Rate: %.1f%%\n",
			float64(ok)/float64(len(l.loaderResponses))*100)
	}

	if hist := l.ErrorHistogram(); len(hist) > 0 {
		b.WriteString("Errors by type:\n")
		for typ, n := range hist {
			fmt.Fprintf(&b, "  %s: %d\n", typ, n)
		}
	}

	if len(l.storageErrs) > 0 {
		fmt.Fprintf(&b, "Storage errors during session: %d\n", len(l.storageErrs))
	}

	return b.String()
}

// lastResponseTime returns the timestamp of the most recent response.
func (l *Log) lastResponseTime() time.Time {
	if len(l.responses) == 0 {
		return time.Time{}
	}
	return l.responses[len(l.responses)-1].Timestamp
}

// stream writes one record to the live NDJSON stream, best effort.
func (l *Log) stream(kind string, entry any) {
	if l.live == nil {
		return
	}
	line := struct {
		Kind  string `json:"kind"`
		Entry any    `json:"entry"`
	}{Kind: kind, Entry: entry}

	data, err := json.Marshal(line)
	if err != nil {
		l.recordStorageErr("live stream encode", err)
		return
	}
	if _, err := l.live.Write(append(data, '\n')); err != nil {
		l.recordStorageErr("live stream write", err)
	}
}

// recordStorageErr notes a storage failure without raising it.
func (l *Log) recordStorageErr(where string, err error) {
	l.storageErrs = append(l.storageErrs, fmt.Sprintf("%s: %v", where, err))
	l.logger.Warn("diagnostic storage failure", "where", where, "error", err)
}

// appendToVault appends one challenge to the vault file: a timestamp
// comment line, the hex bytes, and a blank separator line.
func appendToVault(path string, entry ChallengeEntry) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) //nolint:gosec // Vault path comes from config
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "# %s\n%s\n\n",
		entry.Timestamp.Format(time.RFC3339), entry.ChallengeHex)
	return err
}

// tail returns the last n elements of s, or s itself when shorter.
func tail[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
