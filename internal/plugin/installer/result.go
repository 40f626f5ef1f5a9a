package installer

import (
	"errors"
	"fmt"
)

// Stage names one step of an install or uninstall.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageAuth      Stage = "authenticate"
	StageResolve   Stage = "resolve"
	StagePrepare   Stage = "prepare"
	StageDownload  Stage = "download"
	StageExtract   Stage = "extract"
	StageVerify    Stage = "verify"
	StageComplete  Stage = "complete"
	StageInstall   Stage = "install"
	StageUninstall Stage = "uninstall"
	StageInternal  Stage = "internal"
)

// Kind classifies why a stage failed.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuth          Kind = "auth"
	KindUnknownSource Kind = "unknown_source"
	KindFileSystem    Kind = "filesystem"
	KindDownload      Kind = "download"
	KindVerification  Kind = "verification"
	KindProcess       Kind = "process"
	KindInternal      Kind = "internal"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated with GitHub CLI")
	ErrUnknownPlugin    = errors.New("unknown plugin name")
	ErrNoArtifact       = errors.New("no plugin archive found")
	ErrNoManifest       = errors.New("plugin manifest not found")
)

// User-facing detail strings with fixed wording.
const (
	AuthRemediation  = "Not authenticated with GitHub CLI. Run 'gh auth login' to re-authenticate, then retry the install."
	UnknownPluginMsg = "Unknown plugin name"
)

// StageError is the failure of a single pipeline stage.
type StageError struct {
	Stage   Stage
	Kind    Kind
	Message string // summary shown as the error line
	Detail  string // diagnostic shown as the detail line; defaults to Err
	Err     error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func (e *StageError) detail() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Result is the outcome of every installer operation.
type Result struct {
	Success    bool   `json:"success"`
	PluginName string `json:"pluginName"`
	Message    string `json:"message"`
	Error      string `json:"error,omitempty"`
	Stage      Stage  `json:"stage,omitempty"`
	Kind       Kind   `json:"kind,omitempty"`
	Path       string `json:"path,omitempty"`

	cause error
}

// Err returns the failure as an error, or nil for a successful result.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	if r.cause != nil {
		return r.cause
	}
	return errors.New(r.Message)
}

func succeeded(name string, stage Stage, message, path string) Result {
	return Result{
		Success:    true,
		PluginName: name,
		Message:    message,
		Stage:      stage,
		Path:       path,
	}
}

func failed(name string, err error) Result {
	var se *StageError
	if !errors.As(err, &se) {
		se = &StageError{
			Stage:   StageInternal,
			Kind:    KindInternal,
			Message: "Unexpected error during installation",
			Err:     err,
		}
	}
	return Result{
		Success:    false,
		PluginName: name,
		Message:    se.Message,
		Error:      se.detail(),
		Stage:      se.Stage,
		Kind:       se.Kind,
		cause:      se,
	}
}
