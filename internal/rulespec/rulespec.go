// Package rulespec loads workflow rule definitions from CUE files.
//
// A rule file declares rules under the top-level "rule" struct, keyed by
// rule ID. All .cue files in a directory form one CUE package, so a rule
// may be split across files as long as the parts unify.
package rulespec

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/switchyard/internal/domain"
)

// LoadMode controls how errors are handled while loading.
type LoadMode int

const (
	// FailFast stops on the first error.
	FailFast LoadMode = iota
	// CollectAll compiles every rule and returns all errors.
	CollectAll
)

// Load error codes.
const (
	ErrCodeNotFound    = "E001"
	ErrCodeNoFiles     = "E002"
	ErrCodeLoadFailed  = "E003"
	ErrCodeBuildFailed = "E004"
	ErrCodeNoRules     = "E005"
)

// LoadError is a failure to read or build the CUE input itself.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Result holds the rules compiled from a directory, sorted by ID.
type Result struct {
	Rules     []domain.WorkflowRule
	FileCount int
}

// LoadDir loads every .cue file in dir (not recursive) and compiles the
// rules they declare.
func LoadDir(dir string, mode LoadMode) (*Result, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("rules directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("accessing rules directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	// Files are named explicitly so that package-less rule files unify
	// into one instance instead of being excluded by the package loader.
	args := make([]string, len(files))
	for i, f := range files {
		args[i] = filepath.Base(f)
	}
	instances := load.Instances(args, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	if inst := instances[0]; inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := cuecontext.New().BuildInstance(instances[0])
	if err := value.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	rules, errs := compileAll(value, mode)
	return &Result{Rules: rules, FileCount: len(files)}, errs
}

// LoadSource compiles rules from a single CUE document. filename is used
// only for error positions.
func LoadSource(filename, src string, mode LoadMode) ([]domain.WorkflowRule, []error) {
	value := cuecontext.New().CompileString(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}
	return compileAll(value, mode)
}

func compileAll(value cue.Value, mode LoadMode) ([]domain.WorkflowRule, []error) {
	rulesVal := value.LookupPath(cue.ParsePath("rule"))
	if !rulesVal.Exists() {
		return nil, []error{&LoadError{Code: ErrCodeNoRules, Message: "no rule struct found"}}
	}

	iter, err := rulesVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var (
		rules []domain.WorkflowRule
		errs  []error
	)
	for iter.Next() {
		r, err := Compile(iter.Value())
		if err != nil {
			errs = append(errs, err)
			if mode == FailFast {
				return rules, errs
			}
			continue
		}
		rules = append(rules, r)
	}
	if len(rules) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoRules, Message: "rule struct is empty"})
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, errs
}
