// Package workitem adapts the remote job invoker to the host workflow
// engine's work item contract.
package workitem

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/oriys/tower/internal/domain"
	"github.com/oriys/tower/internal/executor"
	"github.com/oriys/tower/internal/logging"
	"github.com/oriys/tower/internal/metrics"
	"github.com/oriys/tower/internal/observability"
	"go.opentelemetry.io/otel/attribute"
)

// Manager is the host side of a work item: it is told when an item
// completes or is aborted.
type Manager interface {
	CompleteWorkItem(id string, results map[string]any)
	AbortWorkItem(id string)
}

// FailureRecorder is implemented by managers that want to know about
// failed work items. The host contract itself has no failure callback.
type FailureRecorder interface {
	FailWorkItem(id string, err error)
}

// Handler executes and aborts work items.
type Handler interface {
	ExecuteWorkItem(ctx context.Context, item *domain.WorkItem, m Manager) error
	AbortWorkItem(item *domain.WorkItem, m Manager)
}

// HandlerError is returned by ExecuteWorkItem when the handler is not
// configured to swallow faults.
type HandlerError struct {
	WorkItemID string
	Err        error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("work item %s: %v", e.WorkItemID, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// ErrAlreadyRunning is returned when a work item ID is executed twice
// concurrently. It is returned as is, whatever LogThrownException says,
// and the manager is not told.
var ErrAlreadyRunning = errors.New("work item already running")

// Outcomes recorded in metrics.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeAborted   = "aborted"
)

var attrOutcome = attribute.Key("tower.work_item.outcome")

// TowerHandler runs Tower job-template work items.
type TowerHandler struct {
	invoker executor.Invoker

	// LogThrownException makes ExecuteWorkItem log faults and return nil,
	// leaving the work item pending. When false the fault is returned as a
	// *HandlerError.
	LogThrownException bool

	mu       sync.Mutex
	inflight map[string]*run
}

type run struct {
	cancel  context.CancelFunc
	aborted bool
}

// NewTowerHandler creates a handler that invokes through inv.
func NewTowerHandler(inv executor.Invoker, logThrownException bool) *TowerHandler {
	return &TowerHandler{
		invoker:            inv,
		LogThrownException: logThrownException,
		inflight:           make(map[string]*run),
	}
}

// ExecuteWorkItem reads the item's parameters, performs the call and
// reports the results to m.
func (h *TowerHandler) ExecuteWorkItem(ctx context.Context, item *domain.WorkItem, m Manager) error {
	if item == nil {
		return h.fault("", m, domain.NewError(domain.KindMissingParameter, "execute work item", fmt.Errorf("nil work item")))
	}

	req, err := item.InvocationRequest()
	if err != nil {
		return h.fault(item.ID, m, err)
	}

	ctx, cancel := context.WithCancel(executor.ContextWithWorkItemID(ctx, item.ID))
	defer cancel()

	// A duplicate must not touch the manager: the record belongs to the
	// run already in flight.
	r, err := h.track(item.ID, cancel)
	if err != nil {
		logging.Op().Warn("work item rejected", "work_item_id", item.ID, "error", err)
		return err
	}
	defer h.untrack(item.ID)

	ctx, span := observability.StartSpan(ctx, "tower.work_item",
		observability.AttrWorkItemID.String(item.ID),
		observability.AttrResultType.String(req.ResultType),
	)
	defer span.End()
	log := logging.OpWithTrace(observability.GetTraceID(ctx), observability.GetSpanID(ctx))

	log.Debug("executing work item",
		"work_item_id", item.ID,
		"name", item.Name,
		"method", req.Method,
		"url", req.TargetURL)

	result, err := h.invoker.Invoke(ctx, req)
	if err != nil {
		if h.wasAborted(r) {
			span.SetAttributes(attrOutcome.String(OutcomeAborted))
			log.Info("work item aborted during invocation", "work_item_id", item.ID)
			return nil
		}
		observability.SetSpanError(span, err)
		return h.fault(item.ID, m, err)
	}

	m.CompleteWorkItem(item.ID, result.Results())
	metrics.RecordWorkItem(OutcomeCompleted)
	span.SetAttributes(attrOutcome.String(OutcomeCompleted))
	observability.SetSpanOK(span)
	return nil
}

// AbortWorkItem cancels the item's in-flight call, if any, and tells m.
// Only an abort that interrupts a running call is counted.
func (h *TowerHandler) AbortWorkItem(item *domain.WorkItem, m Manager) {
	if item == nil {
		return
	}
	h.mu.Lock()
	r, running := h.inflight[item.ID]
	if running && !r.aborted {
		r.aborted = true
		r.cancel()
	} else {
		running = false
	}
	h.mu.Unlock()

	m.AbortWorkItem(item.ID)
	if !running {
		logging.Op().Debug("abort for work item not in flight", "work_item_id", item.ID)
		return
	}
	metrics.RecordWorkItem(OutcomeAborted)
	logging.Op().Info("work item aborted", "work_item_id", item.ID)
}

// InFlight returns the number of work items currently executing.
func (h *TowerHandler) InFlight() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.inflight)
}

func (h *TowerHandler) track(id string, cancel context.CancelFunc) (*run, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.inflight[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, id)
	}
	r := &run{cancel: cancel}
	h.inflight[id] = r
	return r, nil
}

func (h *TowerHandler) untrack(id string) {
	h.mu.Lock()
	delete(h.inflight, id)
	h.mu.Unlock()
}

func (h *TowerHandler) wasAborted(r *run) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return r.aborted
}

// fault applies the log-or-throw policy.
func (h *TowerHandler) fault(id string, m Manager, err error) error {
	metrics.RecordWorkItem(OutcomeFailed)
	if f, ok := m.(FailureRecorder); ok && id != "" {
		f.FailWorkItem(id, err)
	}
	if h.LogThrownException {
		logging.Op().Error("work item failed",
			"work_item_id", id,
			"kind", domain.KindOf(err),
			"error", err)
		return nil
	}
	return &HandlerError{WorkItemID: id, Err: err}
}
