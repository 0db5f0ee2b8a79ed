// Package mailbox bridges the tool catalog to the external mailbox
// backend. The Gateway owns one lazily-created, cached backend handle
// and exposes one method per tool, each translating backend outcomes
// (success payload, declared domain error, or anything unanticipated)
// into a uniform Result. No fault escapes this layer.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/warden-mail/warden/internal/instrumentation"
	"github.com/warden-mail/warden/internal/logging"
	"github.com/warden-mail/warden/internal/tools"
)

// Gateway is the façade around the mailbox backend and rule service.
type Gateway struct {
	mu         sync.Mutex
	backend    Backend
	newBackend BackendFactory

	ruleSvc RuleService
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// NewGateway creates a gateway that acquires its backend handle on
// first use via factory. The handle is cached for the process
// lifetime; initialization races are serialized by a mutex so cold
// concurrent starts trigger a single authentication attempt.
func NewGateway(factory BackendFactory, ruleSvc RuleService, logger *slog.Logger, metrics *instrumentation.Metrics) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		newBackend: factory,
		ruleSvc:    ruleSvc,
		logger:     logger,
		metrics:    metrics,
	}
}

// ensureBackend returns the cached backend handle, creating it on
// first use. A factory that yields neither a handle nor an error is
// surfaced as a domain error rather than a nil that would crash the
// first downstream call.
func (g *Gateway) ensureBackend(ctx context.Context) (Backend, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.backend != nil {
		return g.backend, nil
	}

	g.logger.Info("mailbox backend not initialized, initializing")
	start := time.Now()
	backend, err := g.newBackend(ctx)
	if err != nil {
		g.metrics.RecordBackendOperation(ctx, "authenticate", instrumentation.StatusError, time.Since(start))
		var berr *BackendError
		if errors.As(err, &berr) {
			return nil, berr
		}
		return nil, NewBackendError(CodeBackendError, "failed to initialize mailbox backend: %v", err)
	}
	if backend == nil {
		g.metrics.RecordBackendOperation(ctx, "authenticate", instrumentation.StatusError, time.Since(start))
		return nil, NewBackendError(CodeBackendError, "mailbox backend initialization returned no client")
	}
	g.metrics.RecordBackendOperation(ctx, "authenticate", instrumentation.StatusSuccess, time.Since(start))

	g.backend = backend
	g.logger.Info("mailbox backend initialized and cached")
	return g.backend, nil
}

// classify converts any error into a failure Result with a stable
// error code. Declared domain errors keep their classification;
// everything else falls back to the unexpected-adapter bucket.
func (g *Gateway) classify(op string, err error) Result {
	var berr *BackendError
	if errors.As(err, &berr) {
		g.logger.Error("mailbox operation failed",
			logging.Operation(op), slog.String("error_code", berr.Code), logging.Err(err))
		return Fail(berr.Code, berr.Message)
	}
	g.logger.Error("unexpected error in mailbox operation", logging.Operation(op), logging.Err(err))
	return Fail(CodeUnexpected, fmt.Sprintf("Unexpected error: %v", err))
}

// guard converts panics in a gateway method into an unexpected-error
// Result so the boundary between backend faults and dispatch faults
// never leaks an unhandled fault upward.
func (g *Gateway) guard(op string, result *Result) {
	if r := recover(); r != nil {
		g.logger.Error("panic in mailbox operation", logging.Operation(op), slog.Any("panic", r))
		*result = Fail(CodeUnexpected, fmt.Sprintf("Unexpected error: %v", r))
	}
}

func (g *Gateway) record(ctx context.Context, op string, start time.Time, result Result) Result {
	status := instrumentation.StatusSuccess
	if !result.Success {
		status = instrumentation.StatusError
	}
	g.metrics.RecordBackendOperation(ctx, op, status, time.Since(start))
	return result
}

// ListEmails returns a bounded page of message summaries plus an
// opaque continuation token.
func (g *Gateway) ListEmails(ctx context.Context, params *tools.ListEmailsParams) (result Result) {
	defer g.guard("list_emails", &result)
	start := time.Now()

	backend, err := g.ensureBackend(ctx)
	if err != nil {
		return g.record(ctx, "list_emails", start, g.classify("list_emails", err))
	}

	page, err := backend.ListMessages(ctx, params.Query, params.EffectiveMaxResults(), params.PageToken)
	if err != nil {
		return g.record(ctx, "list_emails", start, g.classify("list_emails", err))
	}

	summaries := make([]tools.EmailSummary, 0, len(page.Messages))
	for _, msg := range page.Messages {
		summaries = append(summaries, tools.EmailSummary{ID: msg.ID, ThreadID: msg.ThreadID})
	}

	return g.record(ctx, "list_emails", start, OK(tools.ListEmailsOutput{
		EmailSummaries: summaries,
		NextPageToken:  page.NextPageToken,
	}))
}

// GetEmailDetails retrieves one message in the requested format.
func (g *Gateway) GetEmailDetails(ctx context.Context, params *tools.GetEmailDetailsParams) (result Result) {
	defer g.guard("get_email_details", &result)
	start := time.Now()

	backend, err := g.ensureBackend(ctx)
	if err != nil {
		return g.record(ctx, "get_email_details", start, g.classify("get_email_details", err))
	}

	details, err := backend.GetMessageDetails(ctx, params.MessageID, params.EffectiveFormat())
	if err != nil {
		return g.record(ctx, "get_email_details", start, g.classify("get_email_details", err))
	}

	return g.record(ctx, "get_email_details", start, OK(details))
}

// TrashEmails moves the given messages to the trash folder. An empty
// ID list short-circuits without contacting the backend, returning a
// zero-count payload shaped like a success response.
func (g *Gateway) TrashEmails(ctx context.Context, params *tools.TrashEmailsParams) (result Result) {
	defer g.guard("trash_emails", &result)

	if len(params.MessageIDs) == 0 {
		return FailWithData(CodeInvalidParameter, "No message IDs provided to trash.",
			tools.TrashEmailsOutput{TrashedCount: 0, StatusMessage: "No message IDs provided."})
	}

	start := time.Now()
	backend, err := g.ensureBackend(ctx)
	if err != nil {
		return g.record(ctx, "trash_emails", start, g.withZeroTrash(g.classify("trash_emails", err)))
	}

	ok, err := backend.BatchTrashMessages(ctx, params.MessageIDs)
	if err != nil {
		return g.record(ctx, "trash_emails", start, g.withZeroTrash(g.classify("trash_emails", err)))
	}
	if !ok {
		msg := fmt.Sprintf("Operation to move %d email(s) to trash reported failure without an error.", len(params.MessageIDs))
		g.logger.Warn(msg, logging.Operation("trash_emails"))
		return g.record(ctx, "trash_emails", start, FailWithData(CodeOperationFailed, msg,
			tools.TrashEmailsOutput{TrashedCount: 0, StatusMessage: msg}))
	}

	msg := fmt.Sprintf("Successfully moved %d email(s) to trash.", len(params.MessageIDs))
	g.logger.Info(msg, logging.Operation("trash_emails"))
	return g.record(ctx, "trash_emails", start, OK(tools.TrashEmailsOutput{
		TrashedCount:  len(params.MessageIDs),
		StatusMessage: msg,
	}))
}

func (g *Gateway) withZeroTrash(r Result) Result {
	r.Data = tools.TrashEmailsOutput{TrashedCount: 0, StatusMessage: r.ErrorMessage}
	return r
}

// LabelEmails adds and/or removes labels on the given messages. Empty
// ID lists and empty label sets are rejected up front.
func (g *Gateway) LabelEmails(ctx context.Context, params *tools.LabelEmailsParams) (result Result) {
	defer g.guard("label_emails", &result)

	if len(params.MessageIDs) == 0 {
		return FailWithData(CodeInvalidParameter, "No message IDs provided to label.",
			tools.LabelEmailsOutput{ModifiedCount: 0, StatusMessage: "No message IDs provided."})
	}
	if len(params.AddLabelNames) == 0 && len(params.RemoveLabelNames) == 0 {
		return FailWithData(CodeInvalidParameter, "No labels provided to add or remove.",
			tools.LabelEmailsOutput{ModifiedCount: 0, StatusMessage: "No labels specified for modification."})
	}

	start := time.Now()
	backend, err := g.ensureBackend(ctx)
	if err != nil {
		return g.record(ctx, "label_emails", start, g.withZeroLabel(g.classify("label_emails", err)))
	}

	ok, err := backend.BatchModifyMessageLabels(ctx, params.MessageIDs, params.AddLabelNames, params.RemoveLabelNames)
	if err != nil {
		return g.record(ctx, "label_emails", start, g.withZeroLabel(g.classify("label_emails", err)))
	}
	if !ok {
		msg := "Label modification operation reported failure without an error."
		g.logger.Warn(msg, logging.Operation("label_emails"))
		return g.record(ctx, "label_emails", start, FailWithData(CodeOperationFailed, msg,
			tools.LabelEmailsOutput{ModifiedCount: 0, StatusMessage: msg}))
	}

	msg := fmt.Sprintf("Successfully initiated label modification for %d email(s).", len(params.MessageIDs))
	if len(params.AddLabelNames) > 0 {
		msg += fmt.Sprintf(" Added: %v.", params.AddLabelNames)
	}
	if len(params.RemoveLabelNames) > 0 {
		msg += fmt.Sprintf(" Removed: %v.", params.RemoveLabelNames)
	}
	g.logger.Info(msg, logging.Operation("label_emails"))
	return g.record(ctx, "label_emails", start, OK(tools.LabelEmailsOutput{
		ModifiedCount: len(params.MessageIDs),
		StatusMessage: msg,
	}))
}

func (g *Gateway) withZeroLabel(r Result) Result {
	r.Data = tools.LabelEmailsOutput{ModifiedCount: 0, StatusMessage: r.ErrorMessage}
	return r
}

// MarkEmails marks the given messages as read or unread. The state is
// normalized to lower case; anything outside {read, unread} is
// rejected before contacting the backend.
func (g *Gateway) MarkEmails(ctx context.Context, params *tools.MarkEmailsParams) (result Result) {
	defer g.guard("mark_emails", &result)

	if len(params.MessageIDs) == 0 {
		return FailWithData(CodeInvalidParameter, "No message IDs provided to mark.",
			tools.MarkEmailsOutput{ModifiedCount: 0, StatusMessage: "No message IDs provided."})
	}
	markAs := strings.ToLower(params.MarkAs)
	if markAs != "read" && markAs != "unread" {
		msg := fmt.Sprintf("Invalid 'mark_as' value: %s.", params.MarkAs)
		return FailWithData(CodeInvalidParameter, msg,
			tools.MarkEmailsOutput{ModifiedCount: 0, StatusMessage: msg})
	}

	start := time.Now()
	backend, err := g.ensureBackend(ctx)
	if err != nil {
		return g.record(ctx, "mark_emails", start, g.withZeroMark(g.classify("mark_emails", err)))
	}

	ok, err := backend.BatchMarkMessages(ctx, params.MessageIDs, markAs)
	if err != nil {
		return g.record(ctx, "mark_emails", start, g.withZeroMark(g.classify("mark_emails", err)))
	}
	if !ok {
		msg := fmt.Sprintf("Mark as %q operation reported failure without an error.", markAs)
		g.logger.Warn(msg, logging.Operation("mark_emails"))
		return g.record(ctx, "mark_emails", start, FailWithData(CodeOperationFailed, msg,
			tools.MarkEmailsOutput{ModifiedCount: 0, StatusMessage: msg}))
	}

	msg := fmt.Sprintf("Successfully marked %d email(s) as %s.", len(params.MessageIDs), markAs)
	g.logger.Info(msg, logging.Operation("mark_emails"))
	return g.record(ctx, "mark_emails", start, OK(tools.MarkEmailsOutput{
		ModifiedCount: len(params.MessageIDs),
		StatusMessage: msg,
	}))
}

func (g *Gateway) withZeroMark(r Result) Result {
	r.Data = tools.MarkEmailsOutput{ModifiedCount: 0, StatusMessage: r.ErrorMessage}
	return r
}

// ApplyRules composes the effective search filter and hands off to the
// rule service. Dates come in slash-delimited and are reformatted for
// the backend; the all_mail override discards the composed filter
// entirely. Dry-run is a pass-through flag, not enforced here.
func (g *Gateway) ApplyRules(ctx context.Context, params *tools.ApplyRulesParams) (result Result) {
	defer g.guard("apply_rules", &result)
	start := time.Now()

	var queryParts []string
	if params.GmailQueryFilter != "" {
		queryParts = append(queryParts, params.GmailQueryFilter)
	}
	if params.DateAfter != "" {
		queryParts = append(queryParts, "after:"+strings.ReplaceAll(params.DateAfter, "/", "-"))
	}
	if params.DateBefore != "" {
		queryParts = append(queryParts, "before:"+strings.ReplaceAll(params.DateBefore, "/", "-"))
	}
	finalQuery := strings.TrimSpace(strings.Join(queryParts, " "))
	if params.AllMail {
		finalQuery = ""
	}

	backend, err := g.ensureBackend(ctx)
	if err != nil {
		return g.record(ctx, "apply_rules", start, g.classify("apply_rules", err))
	}

	g.logger.Info("applying rules",
		logging.Operation("apply_rules"),
		slog.String("effective_query", finalQuery),
		slog.Bool("dry_run", params.DryRun))

	summary, err := g.ruleSvc.ApplyRules(ctx, backend, ApplyOptions{
		QueryFilter: finalQuery,
		RuleIDs:     params.RuleIDsToApply,
		DryRun:      params.DryRun,
		ScanLimit:   params.ScanLimit,
	})
	if err != nil {
		return g.record(ctx, "apply_rules", start, g.classify("apply_rules", err))
	}

	return g.record(ctx, "apply_rules", start, OK(summary))
}

// ListRules returns all stored rule definitions. No mailbox access is
// required.
func (g *Gateway) ListRules(ctx context.Context) (result Result) {
	defer g.guard("list_rules", &result)
	start := time.Now()

	ruleDefs, err := g.ruleSvc.LoadRules(ctx)
	if err != nil {
		return g.record(ctx, "list_rules", start, g.classify("list_rules", err))
	}
	if ruleDefs == nil {
		ruleDefs = []map[string]any{}
	}

	return g.record(ctx, "list_rules", start, OK(tools.ListRulesOutput{Rules: ruleDefs}))
}

// AddRule validates and stores a new rule, returning the created rule
// with its server-generated ID and timestamps. Shape violations come
// back with a classification distinct from storage failures.
func (g *Gateway) AddRule(ctx context.Context, params *tools.AddRuleParams) (result Result) {
	defer g.guard("add_rule", &result)
	start := time.Now()

	created, err := g.ruleSvc.AddRule(ctx, params.RuleDefinition)
	if err != nil {
		return g.record(ctx, "add_rule", start, g.classify("add_rule", err))
	}

	return g.record(ctx, "add_rule", start, OK(created))
}

// DeleteRule deletes a rule by ID or name. A not-found outcome is
// re-mapped to a clearer, identifier-inclusive message.
func (g *Gateway) DeleteRule(ctx context.Context, params *tools.DeleteRuleParams) (result Result) {
	defer g.guard("delete_rule", &result)
	start := time.Now()

	ok, err := g.ruleSvc.DeleteRule(ctx, params.RuleIdentifier)
	if err != nil {
		var berr *BackendError
		if errors.As(err, &berr) && berr.Code == CodeRuleNotFound {
			g.logger.Warn("rule not found", logging.Operation("delete_rule"),
				slog.String("rule_identifier", params.RuleIdentifier))
			return g.record(ctx, "delete_rule", start,
				Fail(CodeRuleNotFound, fmt.Sprintf("Rule '%s' not found.", params.RuleIdentifier)))
		}
		return g.record(ctx, "delete_rule", start, g.classify("delete_rule", err))
	}
	if !ok {
		msg := fmt.Sprintf("Rule deletion for '%s' reported failure without an error.", params.RuleIdentifier)
		g.logger.Warn(msg, logging.Operation("delete_rule"))
		return g.record(ctx, "delete_rule", start, Fail(CodeOperationFailed, msg))
	}

	msg := fmt.Sprintf("Successfully deleted rule: %s", params.RuleIdentifier)
	g.logger.Info(msg, logging.Operation("delete_rule"))
	return g.record(ctx, "delete_rule", start, OK(tools.DeleteRuleOutput{
		StatusMessage:         msg,
		DeletedRuleIdentifier: params.RuleIdentifier,
	}))
}

// DeleteEmailsPermanently permanently deletes the given messages. This
// is irreversible; the empty-ID short circuit mirrors the other
// mutating operations.
func (g *Gateway) DeleteEmailsPermanently(ctx context.Context, params *tools.DeleteEmailsPermanentlyParams) (result Result) {
	defer g.guard("delete_emails_permanently", &result)

	if len(params.MessageIDs) == 0 {
		return FailWithData(CodeInvalidParameter, "No message IDs provided to permanently delete.",
			tools.DeleteEmailsPermanentlyOutput{DeletedCount: 0, StatusMessage: "No message IDs provided."})
	}

	g.logger.Warn("permanently deleting emails, this is irreversible",
		logging.Operation("delete_emails_permanently"),
		slog.Int("count", len(params.MessageIDs)))

	start := time.Now()
	backend, err := g.ensureBackend(ctx)
	if err != nil {
		return g.record(ctx, "delete_emails_permanently", start, g.withZeroDelete(g.classify("delete_emails_permanently", err)))
	}

	ok, err := backend.BatchDeletePermanently(ctx, params.MessageIDs)
	if err != nil {
		return g.record(ctx, "delete_emails_permanently", start, g.withZeroDelete(g.classify("delete_emails_permanently", err)))
	}
	if !ok {
		msg := fmt.Sprintf("Permanent deletion operation reported failure without an error for %d email(s).", len(params.MessageIDs))
		g.logger.Warn(msg, logging.Operation("delete_emails_permanently"))
		return g.record(ctx, "delete_emails_permanently", start, FailWithData(CodeOperationFailed, msg,
			tools.DeleteEmailsPermanentlyOutput{DeletedCount: 0, StatusMessage: msg}))
	}

	msg := fmt.Sprintf("Successfully initiated permanent deletion for %d email(s).", len(params.MessageIDs))
	g.logger.Info(msg, logging.Operation("delete_emails_permanently"))
	return g.record(ctx, "delete_emails_permanently", start, OK(tools.DeleteEmailsPermanentlyOutput{
		DeletedCount:  len(params.MessageIDs),
		StatusMessage: msg,
	}))
}

func (g *Gateway) withZeroDelete(r Result) Result {
	r.Data = tools.DeleteEmailsPermanentlyOutput{DeletedCount: 0, StatusMessage: r.ErrorMessage}
	return r
}
