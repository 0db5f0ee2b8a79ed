package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warden-mail/warden/internal/mailbox"
)

func TestConditionMatches(t *testing.T) {
	meta := &mailbox.MessageMeta{
		ID:       "m1",
		From:     "Newsletter <news@shop.example.com>",
		To:       "jane@example.com",
		Subject:  "Weekly Deals Inside",
		Snippet:  "This week only: 20% off everything",
		LabelIDs: []string{"INBOX", "UNREAD", "CATEGORY_PROMOTIONS"},
	}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"from contains", Condition{Field: FieldFrom, Operator: OperatorContains, Value: "shop.example.com"}, true},
		{"from contains is case-insensitive", Condition{Field: FieldFrom, Operator: OperatorContains, Value: "NEWSLETTER"}, true},
		{"from not_contains", Condition{Field: FieldFrom, Operator: OperatorNotContains, Value: "bank.example"}, true},
		{"subject equals full string", Condition{Field: FieldSubject, Operator: OperatorEquals, Value: "weekly deals inside"}, true},
		{"subject equals partial fails", Condition{Field: FieldSubject, Operator: OperatorEquals, Value: "weekly"}, false},
		{"subject not_equals", Condition{Field: FieldSubject, Operator: OperatorNotEquals, Value: "other"}, true},
		{"subject starts_with", Condition{Field: FieldSubject, Operator: OperatorStartsWith, Value: "weekly"}, true},
		{"subject ends_with", Condition{Field: FieldSubject, Operator: OperatorEndsWith, Value: "inside"}, true},
		{"snippet contains", Condition{Field: FieldSnippet, Operator: OperatorContains, Value: "20% off"}, true},
		{"to contains", Condition{Field: FieldTo, Operator: OperatorContains, Value: "jane"}, true},
		{"label equals matches any label", Condition{Field: FieldLabel, Operator: OperatorEquals, Value: "unread"}, true},
		{"label equals no match", Condition{Field: FieldLabel, Operator: OperatorEquals, Value: "SPAM"}, false},
		{"label not_contains requires all labels", Condition{Field: FieldLabel, Operator: OperatorNotContains, Value: "promotions"}, false},
		{"label not_contains all clean", Condition{Field: FieldLabel, Operator: OperatorNotContains, Value: "spam"}, true},
		{"unknown field never matches", Condition{Field: "header", Operator: OperatorContains, Value: "x"}, false},
		{"unknown operator never matches", Condition{Field: FieldFrom, Operator: "regex", Value: "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.matches(meta))
		})
	}
}

func TestRuleMatchesConjunction(t *testing.T) {
	meta := &mailbox.MessageMeta{
		From:    "alerts@bank.example.com",
		Subject: "Statement ready",
	}

	fromBank := Condition{Field: FieldFrom, Operator: OperatorContains, Value: "bank.example.com"}
	subjectInvoice := Condition{Field: FieldSubject, Operator: OperatorContains, Value: "invoice"}

	tests := []struct {
		name        string
		conjunction string
		conditions  []Condition
		want        bool
	}{
		{"AND all match", ConjunctionAnd, []Condition{fromBank}, true},
		{"AND one fails", ConjunctionAnd, []Condition{fromBank, subjectInvoice}, false},
		{"OR one matches", ConjunctionOr, []Condition{subjectInvoice, fromBank}, true},
		{"OR none match", ConjunctionOr, []Condition{subjectInvoice}, false},
		{"empty conjunction behaves as AND", "", []Condition{fromBank, subjectInvoice}, false},
		{"no conditions never match", ConjunctionAnd, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := Rule{
				Name:                 "test",
				ConditionConjunction: tt.conjunction,
				Conditions:           tt.conditions,
			}
			assert.Equal(t, tt.want, rule.Matches(meta))
		})
	}
}
