package mailbox

import (
	"context"

	"github.com/warden-mail/warden/internal/tools"
)

// MessageRef identifies one message in a list result page.
type MessageRef struct {
	ID       string
	ThreadID string
}

// ListResult is one bounded page of message references. An empty
// NextPageToken means there are no further pages.
type ListResult struct {
	Messages      []MessageRef
	NextPageToken string
}

// MessageMeta is the flattened metadata the rule engine evaluates
// conditions against.
type MessageMeta struct {
	ID       string
	ThreadID string
	From     string
	To       string
	Subject  string
	Snippet  string
	LabelIDs []string
}

// Backend is the external mailbox API surface the gateway calls into.
// Implementations return success payloads, *BackendError for declared
// domain failures, or any other error for unanticipated faults; the
// gateway is the sole translator of this boundary.
type Backend interface {
	ListMessages(ctx context.Context, query string, maxResults int, pageToken string) (*ListResult, error)
	GetMessageDetails(ctx context.Context, messageID, format string) (*tools.EmailDetails, error)
	GetMessageMetadata(ctx context.Context, messageID string) (*MessageMeta, error)
	BatchTrashMessages(ctx context.Context, messageIDs []string) (bool, error)
	BatchModifyMessageLabels(ctx context.Context, messageIDs, addLabelNames, removeLabelNames []string) (bool, error)
	BatchMarkMessages(ctx context.Context, messageIDs []string, markAs string) (bool, error)
	BatchDeletePermanently(ctx context.Context, messageIDs []string) (bool, error)
}

// ApplyOptions carries the already-composed parameters for a rule
// application run. QueryFilter is the effective search filter; empty
// targets the unfiltered corpus.
type ApplyOptions struct {
	QueryFilter string
	RuleIDs     []string
	DryRun      bool
	ScanLimit   *int
}

// RuleService is the rule storage and evaluation collaborator.
type RuleService interface {
	LoadRules(ctx context.Context) ([]map[string]any, error)
	AddRule(ctx context.Context, definition map[string]any) (map[string]any, error)
	DeleteRule(ctx context.Context, identifier string) (bool, error)
	ApplyRules(ctx context.Context, backend Backend, opts ApplyOptions) (*tools.ApplyRulesOutput, error)
}

// BackendFactory produces an authenticated backend handle. It is
// called at most once per process by the gateway's lazy initializer.
type BackendFactory func(ctx context.Context) (Backend, error)
