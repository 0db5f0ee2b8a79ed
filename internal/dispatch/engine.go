// Package dispatch routes tool requests through the fixed pipeline:
// load session context, validate against the catalog, invoke the
// mailbox gateway, map the outcome into a response envelope and append
// the interaction to the session history.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/warden-mail/warden/internal/instrumentation"
	"github.com/warden-mail/warden/internal/logging"
	"github.com/warden-mail/warden/internal/mailbox"
	"github.com/warden-mail/warden/internal/protocol"
	"github.com/warden-mail/warden/internal/registry"
	"github.com/warden-mail/warden/internal/session"
	"github.com/warden-mail/warden/internal/tools"
)

// Gateway is the typed surface the engine invokes per tool. The
// mailbox gateway satisfies it; tests substitute fakes.
type Gateway interface {
	ListEmails(ctx context.Context, params *tools.ListEmailsParams) mailbox.Result
	GetEmailDetails(ctx context.Context, params *tools.GetEmailDetailsParams) mailbox.Result
	TrashEmails(ctx context.Context, params *tools.TrashEmailsParams) mailbox.Result
	LabelEmails(ctx context.Context, params *tools.LabelEmailsParams) mailbox.Result
	MarkEmails(ctx context.Context, params *tools.MarkEmailsParams) mailbox.Result
	ApplyRules(ctx context.Context, params *tools.ApplyRulesParams) mailbox.Result
	ListRules(ctx context.Context) mailbox.Result
	AddRule(ctx context.Context, params *tools.AddRuleParams) mailbox.Result
	DeleteRule(ctx context.Context, params *tools.DeleteRuleParams) mailbox.Result
	DeleteEmailsPermanently(ctx context.Context, params *tools.DeleteEmailsPermanentlyParams) mailbox.Result
}

// Config collects the engine's collaborators. Sessions may be nil, in
// which case context load/save is skipped entirely.
type Config struct {
	Registry      *registry.Registry
	Gateway       Gateway
	Sessions      session.Store
	SessionTTL    time.Duration
	DefaultUserID string
	Logger        *slog.Logger
	Metrics       *instrumentation.Metrics
	Audit         *instrumentation.AuditLogger
}

// Engine executes tool requests and answers discovery queries.
type Engine struct {
	registry      *registry.Registry
	gateway       Gateway
	sessions      session.Store
	sessionTTL    time.Duration
	defaultUserID string
	logger        *slog.Logger
	metrics       *instrumentation.Metrics
	audit         *instrumentation.AuditLogger
}

// NewEngine builds an engine from its collaborators.
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry:      cfg.Registry,
		gateway:       cfg.Gateway,
		sessions:      cfg.Sessions,
		sessionTTL:    cfg.SessionTTL,
		defaultUserID: cfg.DefaultUserID,
		logger:        logging.WithComponent(logger, "dispatch"),
		metrics:       cfg.Metrics,
		audit:         cfg.Audit,
	}
}

// ToolDescriptor is one discovery catalog entry.
type ToolDescriptor struct {
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	InputSchema  *jsonschema.Schema `json:"input_schema"`
	OutputSchema *jsonschema.Schema `json:"output_schema"`
}

// ListTools returns the full tool catalog in registration order. The
// catalog is static for the life of the process.
func (e *Engine) ListTools() []ToolDescriptor {
	defs := e.registry.List()
	out := make([]ToolDescriptor, 0, len(defs))
	for _, def := range defs {
		out = append(out, ToolDescriptor{
			Name:         def.Name,
			Description:  def.Description,
			InputSchema:  def.InputSchema,
			OutputSchema: def.OutputSchema,
		})
	}
	return out
}

// Execute runs one tool request through the pipeline and always
// returns a well-formed envelope. Faults anywhere inside are caught
// here and converted into a generic error response.
func (e *Engine) Execute(ctx context.Context, req *protocol.ToolRequest) (resp *protocol.ToolResponse) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tool execution panicked",
				logging.Tool(req.ToolName),
				slog.Any("panic", r),
			)
			resp = protocol.NewToolErrorResponse(
				fmt.Sprintf("An unexpected error occurred while executing tool %s.", req.ToolName))
		}
	}()

	start := time.Now()
	userID := req.UserID
	if userID == "" {
		userID = e.defaultUserID
	}

	ctx, span := instrumentation.StartToolSpan(ctx, req.ToolName,
		instrumentation.NewSpanAttributeBuilder().
			WithTool(req.ToolName).
			WithSessionHash(logging.Anonymize(req.SessionID)).
			Build()...)
	defer span.End()

	invocation := instrumentation.NewToolInvocation(req.ToolName).
		WithCaller(userID, req.SessionID).
		WithSpanContext(ctx)

	sessCtx := e.loadContext(ctx, userID, req.SessionID)

	if _, ok := e.registry.Lookup(req.ToolName); !ok {
		return e.reject(ctx, invocation, start,
			fmt.Sprintf("unknown tool_name: %s", req.ToolName))
	}

	params, verr := e.registry.ValidateAndParse(req.ToolName, req.Input)
	if verr != nil {
		return e.reject(ctx, invocation, start, verr.Error())
	}

	// The label tool carries a constraint the schema alone cannot
	// express: at least one of the two label lists must be present.
	if lp, ok := params.(*tools.LabelEmailsParams); ok {
		if len(lp.AddLabelNames) == 0 && len(lp.RemoveLabelNames) == 0 {
			return e.reject(ctx, invocation, start,
				"At least one of add_label_names or remove_label_names must be provided.")
		}
	}

	result := e.invoke(ctx, req.ToolName, params)

	duration := time.Since(start)
	if result.Success {
		instrumentation.SetSpanSuccess(span)
		e.metrics.RecordToolInvocation(ctx, req.ToolName, instrumentation.StatusSuccess, duration)
		e.audit.LogToolInvocation(invocation.CompleteSuccess())
	} else {
		instrumentation.SetSpanError(span, fmt.Errorf("%s: %s", result.ErrorCode, result.ErrorMessage))
		e.metrics.RecordToolInvocation(ctx, req.ToolName, instrumentation.StatusError, duration)
		e.audit.LogToolInvocation(invocation.Complete(false, fmt.Errorf("%s", result.ErrorMessage)))
		e.logger.Warn("tool returned error",
			logging.Tool(req.ToolName),
			slog.String("error_code", result.ErrorCode),
			slog.String("error_message", result.ErrorMessage),
		)
		return protocol.NewToolErrorResponse(result.ErrorMessage)
	}

	resp = protocol.NewToolResponse(result.Data)
	e.saveContext(ctx, userID, req, sessCtx, resp.ToolResultID, result.Data)
	return resp
}

// reject produces a request-shape error envelope. These calls never
// reach the gateway, so no gateway metrics are recorded for them.
func (e *Engine) reject(ctx context.Context, invocation *instrumentation.ToolInvocation, start time.Time, message string) *protocol.ToolResponse {
	e.metrics.RecordToolInvocation(ctx, invocation.Tool, instrumentation.StatusError, time.Since(start))
	e.audit.LogToolInvocation(invocation.Complete(false, fmt.Errorf("%s", message)))
	e.logger.Warn("request rejected",
		logging.Tool(invocation.Tool),
		slog.String("reason", message),
	)
	return protocol.NewToolErrorResponse(message)
}

func (e *Engine) invoke(ctx context.Context, name string, params any) mailbox.Result {
	switch name {
	case "warden_list_emails":
		return e.gateway.ListEmails(ctx, params.(*tools.ListEmailsParams))
	case "warden_get_email_details":
		return e.gateway.GetEmailDetails(ctx, params.(*tools.GetEmailDetailsParams))
	case "warden_trash_emails":
		return e.gateway.TrashEmails(ctx, params.(*tools.TrashEmailsParams))
	case "warden_label_emails":
		return e.gateway.LabelEmails(ctx, params.(*tools.LabelEmailsParams))
	case "warden_mark_emails":
		return e.gateway.MarkEmails(ctx, params.(*tools.MarkEmailsParams))
	case "warden_apply_rules":
		return e.gateway.ApplyRules(ctx, params.(*tools.ApplyRulesParams))
	case "warden_list_rules":
		return e.gateway.ListRules(ctx)
	case "warden_add_rule":
		return e.gateway.AddRule(ctx, params.(*tools.AddRuleParams))
	case "warden_delete_rule":
		return e.gateway.DeleteRule(ctx, params.(*tools.DeleteRuleParams))
	case "warden_delete_emails_permanently":
		return e.gateway.DeleteEmailsPermanently(ctx, params.(*tools.DeleteEmailsPermanentlyParams))
	default:
		return mailbox.Fail(mailbox.CodeUnexpected,
			fmt.Sprintf("no handler registered for tool %s", name))
	}
}

// loadContext fetches the session history, best-effort. A load failure
// is logged and treated as an empty history.
func (e *Engine) loadContext(ctx context.Context, userID, sessionID string) *session.Context {
	if e.sessions == nil || sessionID == "" {
		return nil
	}
	sessCtx, err := e.sessions.Get(ctx, userID, sessionID)
	if err != nil {
		e.logger.Warn("failed to load session context",
			logging.SessionHash(sessionID),
			logging.Err(err),
		)
		return nil
	}
	return sessCtx
}

// saveContext appends the just-completed interaction and persists the
// history, best-effort. A save failure never surfaces to the caller.
func (e *Engine) saveContext(ctx context.Context, userID string, req *protocol.ToolRequest, sessCtx *session.Context, toolResultID string, output any) {
	if e.sessions == nil || req.SessionID == "" {
		return
	}
	if sessCtx == nil {
		sessCtx = &session.Context{}
	}
	sessCtx.Append(session.Interaction{
		ToolResultID:  toolResultID,
		ToolName:      req.ToolName,
		Input:         req.Input,
		OutputSummary: output,
		Timestamp:     time.Now().UTC(),
	})
	if err := e.sessions.Save(ctx, userID, req.SessionID, sessCtx, e.sessionTTL); err != nil {
		e.logger.Warn("failed to save session context",
			logging.SessionHash(req.SessionID),
			logging.Err(err),
		)
	}
}
