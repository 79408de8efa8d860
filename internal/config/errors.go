package config

import (
	"fmt"
	"io/fs"
	"strings"
)

// Stage names the step at which a configuration was rejected.
type Stage string

const (
	StageDecode   Stage = "decode"
	StageValidate Stage = "validate"
	StageSave     Stage = "save"
)

// hint is the recovery advice printed for each rejection stage.
func (s Stage) hint() string {
	switch s {
	case StageDecode:
		return "Restore from the .bak file next to it, or re-create it with 'posematch init'"
	case StageValidate:
		return "Run 'posematch verify' to list every offending database and setting"
	case StageSave:
		return "Nothing was written; fix the database or settings values and retry"
	}
	return ""
}

// describe renders a headline plus optional detail and advice lines, the
// layout every config error shares.
func describe(head, detail, advice string) string {
	var b strings.Builder
	b.WriteString(head)
	if detail != "" {
		b.WriteString("\n  ")
		b.WriteString(detail)
	}
	if advice != "" {
		b.WriteString("\n💡 ")
		b.WriteString(advice)
	}
	return b.String()
}

// PermissionError reports a config path the process may not read or write.
type PermissionError struct {
	Path    string
	Op      string // "read" or "write"
	Fix     string
	Details string
}

func (e *PermissionError) Error() string {
	return describe(fmt.Sprintf("cannot %s posematch config at %s", e.Op, e.Path), e.Details, e.Fix)
}

// Is lets callers test against fs.ErrPermission.
func (e *PermissionError) Is(target error) bool { return target == fs.ErrPermission }

// ConfigNotFoundError is returned by LoadFrom when the file does not exist.
// Commands that can run on database directories alone treat it as absent
// configuration rather than a failure.
type ConfigNotFoundError struct {
	Path string
}

func (e *ConfigNotFoundError) Error() string {
	return describe("no posematch config at "+e.Path, "",
		"Run 'posematch init' to create one, or pass database directories directly")
}

// Is lets callers test against fs.ErrNotExist.
func (e *ConfigNotFoundError) Is(target error) bool { return target == fs.ErrNotExist }

// InvalidConfigError wraps a decode, validation or pre-save failure.
type InvalidConfigError struct {
	Path  string
	Stage Stage
	Err   error
}

func (e *InvalidConfigError) Error() string {
	detail := ""
	if e.Err != nil {
		detail = e.Err.Error()
	}
	return describe(fmt.Sprintf("config %s rejected at %s", e.Path, e.Stage), detail, e.Stage.hint())
}

func (e *InvalidConfigError) Unwrap() error { return e.Err }
