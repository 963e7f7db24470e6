// Package notify delivers the short user-facing messages produced by the import workflow.
package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"adonel/internal/logger"
	"adonel/pkg/models"
)

// Level is the severity shown to the user.
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one message for the user.
type Notification struct {
	Level   Level  `json:"type"`
	Message string `json:"message"`
}

// Notifier receives notifications. Implementations must not block for long.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.WithComponent("notify")}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) {
	var event *zerolog.Event
	switch n.Level {
	case LevelError:
		event = l.log.Error()
	case LevelWarning:
		event = l.log.Warn()
	default:
		event = l.log.Info()
	}
	event.Str("type", string(n.Level)).Msg(n.Message)
}

// Writer prints one notification per line, for terminals.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

func (w *Writer) Notify(_ context.Context, n Notification) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, n.Message)
}

// Recorder keeps every notification it receives.
type Recorder struct {
	mu   sync.Mutex
	list []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, n)
}

// All returns the recorded notifications in arrival order.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.list...)
}

// Last returns the most recent notification, if any.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.list) == 0 {
		return Notification{}, false
	}
	return r.list[len(r.list)-1], true
}

// Drain returns and forgets the recorded notifications.
func (r *Recorder) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.list
	r.list = nil
	return out
}

// Multi fans a notification out to several notifiers, in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(context.Context, Notification) {})

// ParseResult summarizes a parsed selection: valid files are those not flagged invalid.
func ParseResult(records []models.Record) Notification {
	valid, invalid := 0, 0
	for _, r := range records {
		if r.Invalid {
			invalid++
		} else {
			valid++
		}
	}
	if valid == 0 {
		return Notification{Level: LevelError, Message: "❌ Nenhum arquivo válido encontrado"}
	}
	msg := fmt.Sprintf("✅ %d arquivo(s) processado(s)", valid)
	if invalid > 0 {
		msg += fmt.Sprintf(" (%d com erro)", invalid)
	}
	return Notification{Level: LevelSuccess, Message: msg}
}

// ParseFailed reports a parse request that did not complete.
func ParseFailed(message string) Notification {
	return Notification{Level: LevelError, Message: "Erro ao processar arquivos: " + message}
}

// ManualAdded confirms a manual entry was queued for import.
func ManualAdded(kind models.Kind) Notification {
	noun := kind.Noun()
	return Notification{
		Level:   LevelSuccess,
		Message: fmt.Sprintf("✅ %s adicionada à lista de importação", strings.ToUpper(noun[:1])+noun[1:]),
	}
}

// ImportSucceeded reports a batch the backend accepted entirely.
func ImportSucceeded(kind models.Kind, imported int) Notification {
	return Notification{
		Level:   LevelSuccess,
		Message: fmt.Sprintf("✅ %d %s(s) importada(s) com sucesso!", imported, kind.Noun()),
	}
}

// ImportPartial reports a batch where the backend rejected some lines.
func ImportPartial(kind models.Kind, imported, rejected int) Notification {
	return Notification{
		Level:   LevelWarning,
		Message: fmt.Sprintf("⚠️ %d %s(s) importada(s), %d rejeitada(s)", imported, kind.Noun(), rejected),
	}
}

// ImportFailed reports a commit that did not reach or was refused by the backend.
func ImportFailed(message string) Notification {
	return Notification{Level: LevelError, Message: "Erro ao importar: " + message}
}
