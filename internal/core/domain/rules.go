package domain

import (
	"fmt"
	"strconv"
	"strings"
)

type FieldCheck string

const (
	// CheckNonEmpty only demands a non-blank value.
	CheckNonEmpty FieldCheck = "nonempty"
	// CheckNumber demands a parseable non-negative number.
	CheckNumber FieldCheck = "number"
	// CheckPositiveNumber demands a parseable number strictly greater than zero.
	CheckPositiveNumber FieldCheck = "positive_number"
)

// ValidationRule demands one field of a submission. A nil AppliesWhen means
// the rule always applies; otherwise it is evaluated against the submitted
// fields before the demand is made.
type ValidationRule struct {
	FieldName   string
	Required    bool
	Check       FieldCheck
	AppliesWhen func(fields map[string]string) bool
}

// RuleSet is the full demand for one operation type.
type RuleSet struct {
	Rules     []ValidationRule
	MinPhotos int
}

// RuleBook maps operation types to their rule sets.
type RuleBook map[OperationType]RuleSet

// FieldEquals builds an AppliesWhen predicate matching any of the given
// values, case-insensitively.
func FieldEquals(name string, values ...string) func(map[string]string) bool {
	return func(fields map[string]string) bool {
		got := strings.TrimSpace(fields[name])
		for _, v := range values {
			if strings.EqualFold(got, v) {
				return true
			}
		}
		return false
	}
}

func anyOf(predicates ...func(map[string]string) bool) func(map[string]string) bool {
	return func(fields map[string]string) bool {
		for _, p := range predicates {
			if p(fields) {
				return true
			}
		}
		return false
	}
}

// DefaultRuleBook carries the field demands observed per operation type:
// verification and visits need notes plus photo evidence, a PTP follow-up
// needs its date and amount, traceable payment modes need a reference number,
// and a yard entry needs the odometer plus four photos of the vehicle.
func DefaultRuleBook() RuleBook {
	ptp := anyOf(
		FieldEquals("disposition", "PTP"),
		FieldEquals("followUpType", "PTP"),
	)
	traceableMode := FieldEquals("paymentMode", "UPI", "CHEQUE", "NEFT", "RTGS")

	return RuleBook{
		OpVerification: {
			Rules: []ValidationRule{
				{FieldName: "notes", Required: true},
			},
			MinPhotos: 1,
		},
		OpVisit: {
			Rules: []ValidationRule{
				{FieldName: "discussionPoints", Required: true},
			},
			MinPhotos: 1,
		},
		OpFollowUp: {
			Rules: []ValidationRule{
				{FieldName: "disposition", Required: true},
				{FieldName: "ptpDate", Required: true, AppliesWhen: ptp},
				{FieldName: "ptpAmount", Required: true, Check: CheckPositiveNumber, AppliesWhen: ptp},
			},
		},
		OpPayment: {
			Rules: []ValidationRule{
				{FieldName: "amount", Required: true, Check: CheckPositiveNumber},
				{FieldName: "paymentMode", Required: true},
				{FieldName: "referenceNumber", Required: true, AppliesWhen: traceableMode},
			},
		},
		OpYardEntry: {
			Rules: []ValidationRule{
				{FieldName: "odometerReading", Required: true, Check: CheckNumber},
			},
			MinPhotos: 4,
		},
	}
}

// Validate checks fields and attachments against the operation's rule set and
// collects every failure. It returns nil or a single *ValidationError; no
// partial acceptance exists.
func (rb RuleBook) Validate(op OperationType, fields map[string]string, attachments []Attachment) error {
	set, ok := rb[op]
	if !ok {
		return WrapError(ErrInvalidInput, "validate submission", fmt.Errorf("no rule set for operation type %q", op))
	}

	var missing []string
	for _, rule := range set.Rules {
		if rule.AppliesWhen != nil && !rule.AppliesWhen(fields) {
			continue
		}
		if !rule.Required {
			continue
		}
		if !checkValue(rule.Check, fields[rule.FieldName]) {
			missing = append(missing, rule.FieldName)
		}
	}

	if set.MinPhotos > 0 && countAttachments(attachments, AttachmentPhoto) < set.MinPhotos {
		missing = append(missing, fmt.Sprintf("photos (minimum %d)", set.MinPhotos))
	}

	if len(missing) > 0 {
		return &ValidationError{MissingFields: missing}
	}
	return nil
}

func checkValue(check FieldCheck, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	switch check {
	case CheckNumber:
		n, err := strconv.ParseFloat(value, 64)
		return err == nil && n >= 0
	case CheckPositiveNumber:
		n, err := strconv.ParseFloat(value, 64)
		return err == nil && n > 0
	default:
		return true
	}
}

func countAttachments(attachments []Attachment, kind AttachmentType) int {
	n := 0
	for _, a := range attachments {
		if a.Type == kind {
			n++
		}
	}
	return n
}
