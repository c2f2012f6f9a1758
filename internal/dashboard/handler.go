package dashboard

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"

	editsync "github.com/steveyegge/edit-ghi/internal/sync"
)

// Broadcaster receives formatted messages. *Server implements it.
type Broadcaster interface {
	Broadcast(msg Message)
}

// RunStartedData announces a run.
type RunStartedData struct {
	Run    int      `json:"run"`
	Reason string   `json:"reason"`
	Files  []string `json:"files"`
}

// ItemData is the outcome for one item.
type ItemData struct {
	RunID string `json:"run_id"`
	editsync.ItemResult
}

// RunCompleteData summarizes a finished run.
type RunCompleteData struct {
	Run         int             `json:"run"`
	RunID       string          `json:"run_id"`
	Tracker     string          `json:"tracker"`
	DryRun      bool            `json:"dry_run,omitempty"`
	RemoteCount int             `json:"remote_count"`
	Counts      editsync.Counts `json:"counts"`
	LocalWrites []string        `json:"local_writes,omitempty"`
	Duration    time.Duration   `json:"duration"`
	Error       string          `json:"error,omitempty"`
}

// Handler turns run events into dashboard messages.
type Handler struct {
	out    Broadcaster
	logger *log.Logger

	mu   sync.Mutex
	runs int
}

// NewHandler creates a handler that broadcasts through out.
func NewHandler(out Broadcaster, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(os.Stderr, "[dashboard] ", log.LstdFlags)
	}
	return &Handler{out: out, logger: logger}
}

// OnRunStarted announces a run and returns its sequence number.
func (h *Handler) OnRunStarted(reason string, files []string) int {
	h.mu.Lock()
	h.runs++
	n := h.runs
	h.mu.Unlock()

	h.send(MessageTypeRunStarted, RunStartedData{Run: n, Reason: reason, Files: files})
	return n
}

// OnReport broadcasts each item result and then the run summary. report
// may be nil when the run failed before it produced one.
func (h *Handler) OnReport(run int, report *editsync.Report, err error) {
	done := RunCompleteData{Run: run}
	if err != nil {
		done.Error = err.Error()
	}
	if report != nil {
		for _, res := range report.Results {
			h.send(MessageTypeItem, ItemData{RunID: report.RunID, ItemResult: res})
		}
		done.RunID = report.RunID
		done.Tracker = report.Tracker
		done.DryRun = report.DryRun
		done.RemoteCount = report.RemoteCount
		done.Counts = report.Counts()
		done.LocalWrites = report.LocalWrites
		done.Duration = report.Duration()
	}
	h.send(MessageTypeRunComplete, done)
}

// Runs returns the number of runs announced.
func (h *Handler) Runs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runs
}

func (h *Handler) send(typ MessageType, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}
	h.out.Broadcast(Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}
