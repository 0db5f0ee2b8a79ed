// Package tools defines the typed parameter and output structures for
// every tool in the warden catalog. The structs carry three tag sets:
// json for wire decoding, validate for schema-declared constraints,
// and jsonschema for the discovery endpoint's schema export.
package tools

// ListEmailsParams are the parameters for warden_list_emails.
type ListEmailsParams struct {
	Query      string `json:"query,omitempty" jsonschema:"description=Gmail query string to filter emails (e.g. 'is:unread')"`
	MaxResults *int   `json:"max_results,omitempty" validate:"omitempty,gt=0,lte=100" jsonschema:"description=Maximum number of emails to return,default=10"`
	PageToken  string `json:"page_token,omitempty" jsonschema:"description=Token for retrieving the next page of results"`
}

// EffectiveMaxResults returns the requested page size or the default of 10.
func (p *ListEmailsParams) EffectiveMaxResults() int {
	if p.MaxResults == nil {
		return 10
	}
	return *p.MaxResults
}

// EmailSummary is one entry in a list result page.
type EmailSummary struct {
	ID       string `json:"id" jsonschema:"description=The unique ID of the email message"`
	ThreadID string `json:"thread_id,omitempty" jsonschema:"description=The ID of the email thread"`
}

// ListEmailsOutput is the output of warden_list_emails. An absent
// NextPageToken means there are no further pages.
type ListEmailsOutput struct {
	EmailSummaries []EmailSummary `json:"email_summaries" jsonschema:"description=List of email summaries"`
	NextPageToken  string         `json:"next_page_token,omitempty" jsonschema:"description=Token for the next page of results when more are available"`
}

// GetEmailDetailsParams are the parameters for warden_get_email_details.
type GetEmailDetailsParams struct {
	MessageID string `json:"message_id" validate:"required" jsonschema:"description=The ID of the email message to retrieve"`
	Format    string `json:"format,omitempty" validate:"omitempty,oneof=full metadata minimal raw" jsonschema:"description=Format of the email details to retrieve,default=full,enum=full,enum=metadata,enum=minimal,enum=raw"`
}

// EffectiveFormat returns the requested format or the default of "full".
func (p *GetEmailDetailsParams) EffectiveFormat() string {
	if p.Format == "" {
		return "full"
	}
	return p.Format
}

// EmailDetails is the output of warden_get_email_details. Payload is
// present in the full format, Raw in the raw format.
type EmailDetails struct {
	ID           string   `json:"id"`
	ThreadID     string   `json:"thread_id,omitempty"`
	LabelIDs     []string `json:"label_ids,omitempty"`
	Snippet      string   `json:"snippet,omitempty"`
	HistoryID    uint64   `json:"history_id,omitempty"`
	InternalDate int64    `json:"internal_date,omitempty"`
	SizeEstimate int64    `json:"size_estimate,omitempty"`
	Payload      any      `json:"payload,omitempty"`
	Raw          string   `json:"raw,omitempty"`
}

// TrashEmailsParams are the parameters for warden_trash_emails.
type TrashEmailsParams struct {
	MessageIDs []string `json:"message_ids" validate:"required" jsonschema:"description=A list of message IDs to be moved to trash"`
}

// TrashEmailsOutput is the output of warden_trash_emails.
type TrashEmailsOutput struct {
	TrashedCount  int    `json:"trashed_count"`
	StatusMessage string `json:"status_message"`
}

// LabelEmailsParams are the parameters for warden_label_emails. At
// least one of AddLabelNames/RemoveLabelNames must be supplied; that
// semantic rule is enforced by the dispatch engine after parsing.
type LabelEmailsParams struct {
	MessageIDs       []string `json:"message_ids" validate:"required" jsonschema:"description=A list of message IDs to label"`
	AddLabelNames    []string `json:"add_label_names,omitempty" jsonschema:"description=List of label names to add"`
	RemoveLabelNames []string `json:"remove_label_names,omitempty" jsonschema:"description=List of label names to remove"`
}

// LabelEmailsOutput is the output of warden_label_emails.
type LabelEmailsOutput struct {
	ModifiedCount int    `json:"modified_count"`
	StatusMessage string `json:"status_message"`
}

// MarkEmailsParams are the parameters for warden_mark_emails.
type MarkEmailsParams struct {
	MessageIDs []string `json:"message_ids" validate:"required" jsonschema:"description=A list of message IDs to mark as read or unread"`
	MarkAs     string   `json:"mark_as" validate:"required,oneof=read unread" jsonschema:"description=Whether to mark messages as 'read' or 'unread',enum=read,enum=unread"`
}

// MarkEmailsOutput is the output of warden_mark_emails.
type MarkEmailsOutput struct {
	ModifiedCount int    `json:"modified_count"`
	StatusMessage string `json:"status_message"`
}

// ApplyRulesParams are the parameters for warden_apply_rules.
type ApplyRulesParams struct {
	GmailQueryFilter string   `json:"gmail_query_filter,omitempty" jsonschema:"description=Base Gmail query string"`
	RuleIDsToApply   []string `json:"rule_ids_to_apply,omitempty" jsonschema:"description=Optional list of specific rule IDs to apply"`
	DryRun           bool     `json:"dry_run,omitempty" jsonschema:"description=When true the run is simulated without making changes"`
	ScanLimit        *int     `json:"scan_limit,omitempty" validate:"omitempty,gt=0" jsonschema:"description=Optional limit on messages to scan"`
	DateAfter        string   `json:"date_after,omitempty" jsonschema:"description=Apply to emails after this date (YYYY/MM/DD)"`
	DateBefore       string   `json:"date_before,omitempty" jsonschema:"description=Apply to emails before this date (YYYY/MM/DD)"`
	AllMail          bool     `json:"all_mail,omitempty" jsonschema:"description=When true other filters are ignored and all mail is targeted"`
}

// ApplyRulesOutput is the output of warden_apply_rules: a per-rule
// summary of actions taken (or that would be taken under dry run).
type ApplyRulesOutput struct {
	TotalMessagesScanned int                 `json:"total_messages_scanned"`
	TotalMessagesMatched int                 `json:"total_messages_matched"`
	DryRun               bool                `json:"dry_run"`
	RuleSummaries        []RuleApplySummary  `json:"rule_summaries"`
	ActionsTaken         map[string][]string `json:"actions_taken,omitempty" jsonschema:"description=Message IDs per executed action type"`
}

// RuleApplySummary reports the outcome of one rule during apply-rules.
type RuleApplySummary struct {
	RuleID         string `json:"rule_id"`
	RuleName       string `json:"rule_name"`
	MatchedCount   int    `json:"matched_count"`
	ActionsApplied int    `json:"actions_applied"`
}

// ListRulesOutput is the output of warden_list_rules.
type ListRulesOutput struct {
	Rules []map[string]any `json:"rules" jsonschema:"description=All configured rules with their definitions"`
}

// AddRuleParams are the parameters for warden_add_rule.
type AddRuleParams struct {
	RuleDefinition map[string]any `json:"rule_definition" validate:"required" jsonschema:"description=Full rule definition with its name and its conditions and actions"`
}

// DeleteRuleParams are the parameters for warden_delete_rule.
type DeleteRuleParams struct {
	RuleIdentifier string `json:"rule_identifier" validate:"required" jsonschema:"description=The ID or name of the rule to delete"`
}

// DeleteRuleOutput is the output of warden_delete_rule.
type DeleteRuleOutput struct {
	StatusMessage         string `json:"status_message"`
	DeletedRuleIdentifier string `json:"deleted_rule_identifier"`
}

// DeleteEmailsPermanentlyParams are the parameters for
// warden_delete_emails_permanently.
type DeleteEmailsPermanentlyParams struct {
	MessageIDs []string `json:"message_ids" validate:"required" jsonschema:"description=List of message IDs for permanent deletion"`
}

// DeleteEmailsPermanentlyOutput is the output of
// warden_delete_emails_permanently.
type DeleteEmailsPermanentlyOutput struct {
	DeletedCount  int    `json:"deleted_count"`
	StatusMessage string `json:"status_message"`
}
