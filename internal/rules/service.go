package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/warden-mail/warden/internal/instrumentation"
	"github.com/warden-mail/warden/internal/logging"
	"github.com/warden-mail/warden/internal/mailbox"
	"github.com/warden-mail/warden/internal/tools"
)

// defaultScanLimit bounds an apply-rules run when the caller does not
// provide a scan limit, so an unfiltered mailbox cannot turn one tool
// call into an unbounded crawl.
const defaultScanLimit = 500

// listPageSize is the page size used when scanning messages.
const listPageSize = 50

// Service stores filtering rules and applies them to mailbox messages.
// It implements the gateway's rule collaborator interface.
type Service struct {
	store    *Store
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	validate *validator.Validate
}

// NewService creates a rule service on top of the given store.
func NewService(store *Store, logger *slog.Logger, metrics *instrumentation.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		logger:   logging.WithComponent(logger, "rules"),
		metrics:  metrics,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// LoadRules returns all stored rules as generic definitions.
func (s *Service) LoadRules(ctx context.Context) ([]map[string]any, error) {
	rules, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	defs := make([]map[string]any, 0, len(rules))
	for i := range rules {
		def, err := ruleToMap(&rules[i])
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// AddRule validates and stores a new rule definition, returning the
// stored form including the assigned ID and timestamps.
func (s *Service) AddRule(ctx context.Context, definition map[string]any) (map[string]any, error) {
	rule, err := parseDefinition(definition)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(rule); err != nil {
		return nil, mailbox.NewBackendError(mailbox.CodeInvalidRuleDefinition, "invalid rule definition: %v", err)
	}

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := s.store.Insert(ctx, rule); err != nil {
		return nil, err
	}
	return ruleToMap(rule)
}

// DeleteRule removes the rule matching the identifier by ID or name.
func (s *Service) DeleteRule(ctx context.Context, identifier string) (bool, error) {
	if err := s.store.Delete(ctx, identifier); err != nil {
		return false, err
	}
	return true, nil
}

// ApplyRules scans messages matching the query filter and runs the
// selected rules' actions on every match. Under dry run the actions
// are only counted, never executed.
func (s *Service) ApplyRules(ctx context.Context, backend mailbox.Backend, opts mailbox.ApplyOptions) (*tools.ApplyRulesOutput, error) {
	selected, err := s.selectRules(ctx, opts.RuleIDs)
	if err != nil {
		return nil, err
	}

	out := &tools.ApplyRulesOutput{
		DryRun:       opts.DryRun,
		ActionsTaken: map[string][]string{},
	}
	if len(selected) == 0 {
		out.RuleSummaries = []tools.RuleApplySummary{}
		return out, nil
	}

	scanLimit := defaultScanLimit
	if opts.ScanLimit != nil {
		scanLimit = *opts.ScanLimit
	}

	run := newApplyRun(selected)

	pageToken := ""
	for out.TotalMessagesScanned < scanLimit {
		pageSize := listPageSize
		if remaining := scanLimit - out.TotalMessagesScanned; remaining < pageSize {
			pageSize = remaining
		}

		page, err := backend.ListMessages(ctx, opts.QueryFilter, pageSize, pageToken)
		if err != nil {
			return nil, err
		}

		for _, ref := range page.Messages {
			out.TotalMessagesScanned++

			meta, err := backend.GetMessageMetadata(ctx, ref.ID)
			if err != nil {
				s.logger.WarnContext(ctx, "skipping message, metadata fetch failed",
					slog.String("message_id", ref.ID), logging.Err(err))
				continue
			}
			run.evaluate(meta)
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	out.TotalMessagesMatched = len(run.matched)
	out.RuleSummaries = run.summaries()

	for i := range selected {
		s.metrics.RecordRuleMatches(ctx, selected[i].ID, int64(run.matchCounts[selected[i].ID]))
	}

	if !opts.DryRun {
		if err := run.execute(ctx, backend, out.ActionsTaken); err != nil {
			return nil, err
		}
	} else {
		run.report(out.ActionsTaken)
	}

	s.logger.InfoContext(ctx, "rules applied",
		logging.Operation("apply_rules"),
		slog.Int("scanned", out.TotalMessagesScanned),
		slog.Int("matched", out.TotalMessagesMatched),
		slog.Bool("dry_run", opts.DryRun))

	return out, nil
}

// selectRules loads the enabled rules, narrowed to the requested IDs
// or names when given. Requesting only unknown rules is an error.
func (s *Service) selectRules(ctx context.Context, ruleIDs []string) ([]Rule, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	var selected []Rule
	if len(ruleIDs) == 0 {
		for _, r := range all {
			if r.IsEnabled {
				selected = append(selected, r)
			}
		}
		return selected, nil
	}

	wanted := make(map[string]bool, len(ruleIDs))
	for _, id := range ruleIDs {
		wanted[id] = true
	}
	for _, r := range all {
		if r.IsEnabled && (wanted[r.ID] || wanted[r.Name]) {
			selected = append(selected, r)
		}
	}
	if len(selected) == 0 {
		return nil, mailbox.NewBackendError(mailbox.CodeRuleNotFound, "none of the requested rules exist or are enabled")
	}
	return selected, nil
}

// applyRun accumulates matches and pending actions over one scan.
type applyRun struct {
	rules       []Rule
	matched     map[string]bool
	matchCounts map[string]int

	trash      []string
	markRead   []string
	markUnread []string
	addLabels  map[string][]string
	delLabels  map[string][]string
}

func newApplyRun(rules []Rule) *applyRun {
	return &applyRun{
		rules:       rules,
		matched:     map[string]bool{},
		matchCounts: map[string]int{},
		addLabels:   map[string][]string{},
		delLabels:   map[string][]string{},
	}
}

// evaluate runs every rule against one message and queues the actions
// of each matching rule.
func (run *applyRun) evaluate(meta *mailbox.MessageMeta) {
	for i := range run.rules {
		rule := &run.rules[i]
		if !rule.Matches(meta) {
			continue
		}
		run.matched[meta.ID] = true
		run.matchCounts[rule.ID]++

		for _, action := range rule.Actions {
			switch action.Type {
			case ActionTrash:
				run.trash = append(run.trash, meta.ID)
			case ActionMarkRead:
				run.markRead = append(run.markRead, meta.ID)
			case ActionMarkUnread:
				run.markUnread = append(run.markUnread, meta.ID)
			case ActionAddLabel:
				run.addLabels[action.LabelName] = append(run.addLabels[action.LabelName], meta.ID)
			case ActionRemoveLabel:
				run.delLabels[action.LabelName] = append(run.delLabels[action.LabelName], meta.ID)
			}
		}
	}
}

// summaries builds the per-rule outcome report in rule order.
func (run *applyRun) summaries() []tools.RuleApplySummary {
	out := make([]tools.RuleApplySummary, 0, len(run.rules))
	for i := range run.rules {
		rule := &run.rules[i]
		count := run.matchCounts[rule.ID]
		out = append(out, tools.RuleApplySummary{
			RuleID:         rule.ID,
			RuleName:       rule.Name,
			MatchedCount:   count,
			ActionsApplied: count * len(rule.Actions),
		})
	}
	return out
}

// report fills the actions map without executing anything (dry run).
func (run *applyRun) report(actions map[string][]string) {
	if len(run.markRead) > 0 {
		actions[ActionMarkRead] = run.markRead
	}
	if len(run.markUnread) > 0 {
		actions[ActionMarkUnread] = run.markUnread
	}
	for label, ids := range run.addLabels {
		actions[ActionAddLabel+":"+label] = ids
	}
	for label, ids := range run.delLabels {
		actions[ActionRemoveLabel+":"+label] = ids
	}
	if len(run.trash) > 0 {
		actions[ActionTrash] = run.trash
	}
}

// execute runs the queued actions against the backend. Label and mark
// actions run before trash so a message receiving both still gets its
// labels updated.
func (run *applyRun) execute(ctx context.Context, backend mailbox.Backend, actions map[string][]string) error {
	if len(run.markRead) > 0 {
		if _, err := backend.BatchMarkMessages(ctx, run.markRead, "read"); err != nil {
			return err
		}
		actions[ActionMarkRead] = run.markRead
	}
	if len(run.markUnread) > 0 {
		if _, err := backend.BatchMarkMessages(ctx, run.markUnread, "unread"); err != nil {
			return err
		}
		actions[ActionMarkUnread] = run.markUnread
	}
	for label, ids := range run.addLabels {
		if _, err := backend.BatchModifyMessageLabels(ctx, ids, []string{label}, nil); err != nil {
			return err
		}
		actions[ActionAddLabel+":"+label] = ids
	}
	for label, ids := range run.delLabels {
		if _, err := backend.BatchModifyMessageLabels(ctx, ids, nil, []string{label}); err != nil {
			return err
		}
		actions[ActionRemoveLabel+":"+label] = ids
	}
	if len(run.trash) > 0 {
		if _, err := backend.BatchTrashMessages(ctx, run.trash); err != nil {
			return err
		}
		actions[ActionTrash] = run.trash
	}
	return nil
}

// parseDefinition strictly decodes a generic definition into a Rule,
// supplying the enabled and conjunction defaults for absent fields.
func parseDefinition(definition map[string]any) (*Rule, error) {
	raw, err := json.Marshal(definition)
	if err != nil {
		return nil, mailbox.NewBackendError(mailbox.CodeInvalidRuleDefinition, "invalid rule definition: %v", err)
	}

	rule := &Rule{
		IsEnabled:            true,
		ConditionConjunction: ConjunctionAnd,
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(rule); err != nil {
		return nil, mailbox.NewBackendError(mailbox.CodeInvalidRuleDefinition, "invalid rule definition: %v", err)
	}
	if rule.ConditionConjunction == "" {
		rule.ConditionConjunction = ConjunctionAnd
	}
	return rule, nil
}

// ruleToMap converts a rule to its wire definition shape.
func ruleToMap(rule *Rule) (map[string]any, error) {
	raw, err := json.Marshal(rule)
	if err != nil {
		return nil, mailbox.NewBackendError(mailbox.CodeRuleStorageError, "failed to encode rule %q: %v", rule.ID, err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, mailbox.NewBackendError(mailbox.CodeRuleStorageError, "failed to encode rule %q: %v", rule.ID, err)
	}
	return out, nil
}
