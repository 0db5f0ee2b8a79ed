package rules

import (
	"strings"
	"time"

	"github.com/warden-mail/warden/internal/mailbox"
)

// Condition fields a rule can inspect.
const (
	FieldFrom    = "from"
	FieldTo      = "to"
	FieldSubject = "subject"
	FieldSnippet = "body_snippet"
	FieldLabel   = "label"
)

// Condition operators.
const (
	OperatorContains    = "contains"
	OperatorNotContains = "not_contains"
	OperatorEquals      = "equals"
	OperatorNotEquals   = "not_equals"
	OperatorStartsWith  = "starts_with"
	OperatorEndsWith    = "ends_with"
)

// Action types a rule can perform.
const (
	ActionTrash       = "trash"
	ActionAddLabel    = "add_label"
	ActionRemoveLabel = "remove_label"
	ActionMarkRead    = "mark_read"
	ActionMarkUnread  = "mark_unread"
)

// Conjunctions for combining a rule's conditions.
const (
	ConjunctionAnd = "AND"
	ConjunctionOr  = "OR"
)

// Condition is a single predicate over message metadata.
type Condition struct {
	Field    string `json:"field" validate:"required,oneof=from to subject body_snippet label"`
	Operator string `json:"operator" validate:"required,oneof=contains not_contains equals not_equals starts_with ends_with"`
	Value    string `json:"value" validate:"required"`
}

// Action is a single operation applied to a matched message.
type Action struct {
	Type string `json:"type" validate:"required,oneof=trash add_label remove_label mark_read mark_unread"`

	// LabelName is required for add_label and remove_label actions.
	LabelName string `json:"label_name,omitempty" validate:"required_if=Type add_label,required_if=Type remove_label"`
}

// Rule is a stored filtering rule: a named set of conditions and the
// actions to run on messages matching them.
type Rule struct {
	ID                   string      `json:"id" gorm:"primaryKey"`
	Name                 string      `json:"name" gorm:"uniqueIndex;not null" validate:"required"`
	Description          string      `json:"description,omitempty"`
	IsEnabled            bool        `json:"is_enabled"`
	Conditions           []Condition `json:"conditions" gorm:"serializer:json" validate:"required,min=1,dive"`
	ConditionConjunction string      `json:"condition_conjunction" validate:"omitempty,oneof=AND OR"`
	Actions              []Action    `json:"actions" gorm:"serializer:json" validate:"required,min=1,dive"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// Matches reports whether the rule's conditions hold for the given
// message metadata, combined with the rule's conjunction.
func (r *Rule) Matches(meta *mailbox.MessageMeta) bool {
	if len(r.Conditions) == 0 {
		return false
	}

	for _, cond := range r.Conditions {
		matched := cond.matches(meta)
		if r.ConditionConjunction == ConjunctionOr {
			if matched {
				return true
			}
		} else if !matched {
			return false
		}
	}
	return r.ConditionConjunction != ConjunctionOr
}

func (c *Condition) matches(meta *mailbox.MessageMeta) bool {
	switch c.Field {
	case FieldLabel:
		// Positive operators match if any label satisfies the
		// predicate; negative operators require all labels to.
		negative := c.Operator == OperatorNotContains || c.Operator == OperatorNotEquals
		for _, label := range meta.LabelIDs {
			if compare(label, c.Operator, c.Value) != negative {
				return !negative
			}
		}
		return negative
	case FieldFrom:
		return compare(meta.From, c.Operator, c.Value)
	case FieldTo:
		return compare(meta.To, c.Operator, c.Value)
	case FieldSubject:
		return compare(meta.Subject, c.Operator, c.Value)
	case FieldSnippet:
		return compare(meta.Snippet, c.Operator, c.Value)
	}
	return false
}

// compare evaluates one operator case-insensitively.
func compare(have, operator, want string) bool {
	have = strings.ToLower(have)
	want = strings.ToLower(want)

	switch operator {
	case OperatorContains:
		return strings.Contains(have, want)
	case OperatorNotContains:
		return !strings.Contains(have, want)
	case OperatorEquals:
		return have == want
	case OperatorNotEquals:
		return have != want
	case OperatorStartsWith:
		return strings.HasPrefix(have, want)
	case OperatorEndsWith:
		return strings.HasSuffix(have, want)
	}
	return false
}
