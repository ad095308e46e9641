package core

// RuleDefinition is the external, declarative shape of a sequence rule as
// produced by a rule loader (YAML file, API request body). It carries no
// compiled state; detect.CompileRule turns it into an executable rule and is
// the single place definitions are validated.
type RuleDefinition struct {
	// ID uniquely identifies the rule. Opaque to matching logic.
	ID string `json:"id" yaml:"id"`

	// Name is a human-readable label. Opaque to matching logic.
	Name string `json:"name" yaml:"name"`

	// By lists the dotted field paths whose value tuple partitions events
	// into independent correlation groups. Empty means one global group.
	By []string `json:"by" yaml:"by"`

	// WithinSeconds bounds the elapsed time between the first and last
	// matched step of a candidate sequence. Inclusive at the boundary.
	WithinSeconds float64 `json:"within_seconds" yaml:"within_seconds"`

	// Sequence is the ordered list of steps; at least two are required.
	Sequence []StepDefinition `json:"sequence" yaml:"sequence"`

	// Output controls the rendered match message and its timestamp binding.
	Output OutputDefinition `json:"output" yaml:"output"`
}

// StepDefinition declares one step of a rule's sequence.
type StepDefinition struct {
	// As is the rule-scoped alias naming this step. Must be unique within
	// the rule and is referenceable from the output definition.
	As string `json:"as" yaml:"as"`

	// Where is the predicate expression source for this step.
	Where string `json:"where" yaml:"where"`
}

// OutputDefinition declares how a completed match is reported.
type OutputDefinition struct {
	// TimestampRef names the step alias whose bound event supplies the
	// match timestamp and the primary context for template rendering.
	TimestampRef string `json:"timestamp_ref" yaml:"timestamp_ref"`

	// Format is the message template. `{field.path}` placeholders resolve
	// against the event bound to TimestampRef, falling back to the group
	// key values.
	Format string `json:"format" yaml:"format"`
}
