// Package registry holds the closed catalog of tool definitions: one
// entry per supported operation, with the parameter and result schemas
// used both for request validation and for the discovery endpoint.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"github.com/warden-mail/warden/internal/tools"
)

// Definition describes one tool in the catalog. The set is closed and
// built once at process start; definitions are read-only thereafter.
type Definition struct {
	Name         string
	Description  string
	InputSchema  *jsonschema.Schema
	OutputSchema *jsonschema.Schema

	// newParams returns a pointer to a fresh parameter struct for this
	// tool, or nil when the tool takes no parameters.
	newParams func() any
}

// Registry is the closed tool catalog. List returns definitions in
// registration order, which is stable for the life of the process.
type Registry struct {
	defs     []*Definition
	byName   map[string]*Definition
	validate *validator.Validate
}

// FieldViolation describes one schema constraint failure.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries the per-field violations of a failed parse.
// It is always convertible into a tool-level error envelope and never
// escalates into a fault.
type ValidationError struct {
	ToolName   string
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return fmt.Sprintf("Invalid parameters for %s: [%s]", e.ToolName, strings.Join(parts, "; "))
}

// New builds the catalog with all ten tool definitions.
func New() *Registry {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report violations using wire field names rather than Go names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	r := &Registry{
		byName:   make(map[string]*Definition),
		validate: v,
	}

	r.register(&Definition{
		Name:         "warden_list_emails",
		Description:  "Lists email messages based on a query, with support for pagination. Provides summaries including message ID and thread ID.",
		InputSchema:  reflectSchema(&tools.ListEmailsParams{}),
		OutputSchema: reflectSchema(&tools.ListEmailsOutput{}),
		newParams:    func() any { return &tools.ListEmailsParams{} },
	})
	r.register(&Definition{
		Name:         "warden_get_email_details",
		Description:  "Retrieves the full details of a specific email message, including headers, payload and raw content based on the specified format.",
		InputSchema:  reflectSchema(&tools.GetEmailDetailsParams{}),
		OutputSchema: reflectSchema(&tools.EmailDetails{}),
		newParams:    func() any { return &tools.GetEmailDetailsParams{} },
	})
	r.register(&Definition{
		Name:         "warden_trash_emails",
		Description:  "Moves specified emails to the trash folder. Returns a count of trashed emails and a status message.",
		InputSchema:  reflectSchema(&tools.TrashEmailsParams{}),
		OutputSchema: reflectSchema(&tools.TrashEmailsOutput{}),
		newParams:    func() any { return &tools.TrashEmailsParams{} },
	})
	r.register(&Definition{
		Name:         "warden_label_emails",
		Description:  "Adds or removes specified labels from emails. Returns a count of modified emails and a status message.",
		InputSchema:  reflectSchema(&tools.LabelEmailsParams{}),
		OutputSchema: reflectSchema(&tools.LabelEmailsOutput{}),
		newParams:    func() any { return &tools.LabelEmailsParams{} },
	})
	r.register(&Definition{
		Name:         "warden_mark_emails",
		Description:  "Marks specified emails as read or unread. Returns a count of modified emails and a status message.",
		InputSchema:  reflectSchema(&tools.MarkEmailsParams{}),
		OutputSchema: reflectSchema(&tools.MarkEmailsOutput{}),
		newParams:    func() any { return &tools.MarkEmailsParams{} },
	})
	r.register(&Definition{
		Name:         "warden_apply_rules",
		Description:  "Applies filtering rules to emails in the mailbox based on various criteria. Can be run in dry-run mode. Returns a detailed summary of actions taken or that would be taken.",
		InputSchema:  reflectSchema(&tools.ApplyRulesParams{}),
		OutputSchema: reflectSchema(&tools.ApplyRulesOutput{}),
		newParams:    func() any { return &tools.ApplyRulesParams{} },
	})
	r.register(&Definition{
		Name:         "warden_list_rules",
		Description:  "Lists all configured filtering rules, including their definitions (name, conditions, actions).",
		InputSchema:  emptyObjectSchema(),
		OutputSchema: reflectSchema(&tools.ListRulesOutput{}),
		newParams:    nil,
	})
	r.register(&Definition{
		Name:         "warden_add_rule",
		Description:  "Adds a new filtering rule. Expects a full rule definition and returns the created rule, including its server-generated ID and timestamps.",
		InputSchema:  reflectSchema(&tools.AddRuleParams{}),
		OutputSchema: emptyObjectSchema(),
		newParams:    func() any { return &tools.AddRuleParams{} },
	})
	r.register(&Definition{
		Name:         "warden_delete_rule",
		Description:  "Deletes a filtering rule by its ID or name. Returns a status message and the identifier of the deleted rule.",
		InputSchema:  reflectSchema(&tools.DeleteRuleParams{}),
		OutputSchema: reflectSchema(&tools.DeleteRuleOutput{}),
		newParams:    func() any { return &tools.DeleteRuleParams{} },
	})
	r.register(&Definition{
		Name:         "warden_delete_emails_permanently",
		Description:  "PERMANENTLY deletes specified emails from the mailbox. This action is irreversible and emails cannot be recovered. Returns a count of deleted emails and a status message.",
		InputSchema:  reflectSchema(&tools.DeleteEmailsPermanentlyParams{}),
		OutputSchema: reflectSchema(&tools.DeleteEmailsPermanentlyOutput{}),
		newParams:    func() any { return &tools.DeleteEmailsPermanentlyParams{} },
	})

	return r
}

func (r *Registry) register(def *Definition) {
	if _, exists := r.byName[def.Name]; exists {
		panic(fmt.Sprintf("duplicate tool definition: %s", def.Name))
	}
	r.defs = append(r.defs, def)
	r.byName[def.Name] = def
}

// Lookup resolves a tool definition by name.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	def, ok := r.byName[name]
	return def, ok
}

// List returns all definitions in registration order.
func (r *Registry) List() []*Definition {
	out := make([]*Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.defs)
}

// ValidateAndParse decodes the raw input payload into the tool's typed
// parameter struct and runs the schema-declared constraints. Unknown
// input fields are ignored. On failure it returns a *ValidationError;
// it never panics or returns any other error kind.
func (r *Registry) ValidateAndParse(name string, rawInput map[string]any) (any, *ValidationError) {
	def, ok := r.byName[name]
	if !ok {
		return nil, &ValidationError{
			ToolName:   name,
			Violations: []FieldViolation{{Field: "tool_name", Message: "unknown tool"}},
		}
	}
	if def.newParams == nil {
		return nil, nil
	}

	params := def.newParams()

	// Round-trip through JSON for lenient decoding: fields the schema
	// does not declare are dropped rather than rejected.
	encoded, err := json.Marshal(rawInput)
	if err != nil {
		return nil, &ValidationError{
			ToolName:   name,
			Violations: []FieldViolation{{Field: "input", Message: err.Error()}},
		}
	}
	if err := json.Unmarshal(encoded, params); err != nil {
		violation := FieldViolation{Field: "input", Message: err.Error()}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			violation = FieldViolation{
				Field:   typeErr.Field,
				Message: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
			}
		}
		return nil, &ValidationError{ToolName: name, Violations: []FieldViolation{violation}}
	}

	if err := r.validate.Struct(params); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, &ValidationError{
				ToolName:   name,
				Violations: []FieldViolation{{Field: "input", Message: err.Error()}},
			}
		}
		violations := make([]FieldViolation, 0, len(verrs))
		for _, fe := range verrs {
			violations = append(violations, FieldViolation{
				Field:   fe.Field(),
				Message: describeViolation(fe),
			})
		}
		return nil, &ValidationError{ToolName: name, Violations: violations}
	}

	return params, nil
}

func describeViolation(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed %q constraint", fe.Tag())
	}
}

func reflectSchema(v any) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	return r.Reflect(v)
}

func emptyObjectSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object"}
}
