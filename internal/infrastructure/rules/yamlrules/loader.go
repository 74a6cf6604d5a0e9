package yamlrules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/finverge/fieldops/internal/core/domain"
)

// Loader reads validation rule sets from a YAML file, letting operations
// teams tighten field demands per operation type without a deploy. Absent or
// empty files fall back to the built-in rule book.
//
// File shape:
//
//	operations:
//	  payment:
//	    min_photos: 0
//	    rules:
//	      - field: amount
//	        required: true
//	        check: positive_number
//	      - field: referenceNumber
//	        required: true
//	        when_any:
//	          - field: paymentMode
//	            equals: [UPI, CHEQUE, NEFT, RTGS]
type fileSchema struct {
	Operations map[string]operationSchema `yaml:"operations"`
}

type operationSchema struct {
	MinPhotos int          `yaml:"min_photos"`
	Rules     []ruleSchema `yaml:"rules"`
}

type ruleSchema struct {
	Field    string            `yaml:"field"`
	Required bool              `yaml:"required"`
	Check    string            `yaml:"check"`
	WhenAny  []conditionSchema `yaml:"when_any"`
}

type conditionSchema struct {
	Field  string   `yaml:"field"`
	Equals []string `yaml:"equals"`
}

// Load compiles the YAML file at path into a rule book. An empty path returns
// the defaults.
func Load(path string) (domain.RuleBook, error) {
	if path == "" {
		return domain.DefaultRuleBook(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var schema fileSchema
	if err := yaml.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("parse rules yaml: %w", err)
	}
	if len(schema.Operations) == 0 {
		return domain.DefaultRuleBook(), nil
	}

	book := make(domain.RuleBook, len(schema.Operations))
	for opName, opSchema := range schema.Operations {
		op, err := domain.ParseOperationType(opName)
		if err != nil {
			return nil, fmt.Errorf("rules file: %w", err)
		}
		set, err := compileRuleSet(opSchema)
		if err != nil {
			return nil, fmt.Errorf("rules file: operation %s: %w", opName, err)
		}
		book[op] = set
	}
	return book, nil
}

func compileRuleSet(schema operationSchema) (domain.RuleSet, error) {
	set := domain.RuleSet{MinPhotos: schema.MinPhotos}
	for _, rule := range schema.Rules {
		if rule.Field == "" {
			return domain.RuleSet{}, fmt.Errorf("rule without field name")
		}
		check, err := parseCheck(rule.Check)
		if err != nil {
			return domain.RuleSet{}, fmt.Errorf("field %s: %w", rule.Field, err)
		}
		set.Rules = append(set.Rules, domain.ValidationRule{
			FieldName:   rule.Field,
			Required:    rule.Required,
			Check:       check,
			AppliesWhen: compileConditions(rule.WhenAny),
		})
	}
	return set, nil
}

func parseCheck(raw string) (domain.FieldCheck, error) {
	switch domain.FieldCheck(raw) {
	case "", domain.CheckNonEmpty:
		return domain.CheckNonEmpty, nil
	case domain.CheckNumber, domain.CheckPositiveNumber:
		return domain.FieldCheck(raw), nil
	default:
		return "", fmt.Errorf("unknown check %q", raw)
	}
}

func compileConditions(conditions []conditionSchema) func(map[string]string) bool {
	if len(conditions) == 0 {
		return nil
	}
	predicates := make([]func(map[string]string) bool, 0, len(conditions))
	for _, c := range conditions {
		predicates = append(predicates, domain.FieldEquals(c.Field, c.Equals...))
	}
	return func(fields map[string]string) bool {
		for _, p := range predicates {
			if p(fields) {
				return true
			}
		}
		return false
	}
}
