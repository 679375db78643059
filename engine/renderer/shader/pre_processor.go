// pre_processor.go implements the WGSL shader-def pre-processor. It scans shader source
// line by line for directives and emits only the lines whose enclosing conditional blocks
// are active for the requested set of shader defines.
//
// Supported directives (each must be the only token group on its line):
//   - #ifdef NAME / #ifndef NAME: open a block active when NAME is (not) defined
//   - #else: invert the innermost block
//   - #endif: close the innermost block
//   - #import NAME: inline the named module once per Process call, processed with the same defines
package shader

import (
	"fmt"
	"strings"
)

// ImportResolver returns the source of the module registered under name.
type ImportResolver func(name string) (string, bool)

// conditional tracks one open #ifdef/#ifndef block.
type conditional struct {
	// parentActive is whether the enclosing block was emitting lines when this block opened.
	parentActive bool
	// taken is whether the current branch of this block is selected by the defines.
	taken bool
	// sawElse prevents a second #else in the same block.
	sawElse bool
	line    int
}

func (c conditional) active() bool {
	return c.parentActive && c.taken
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	resolve ImportResolver
}

// PreProcessor expands shader-def directives in WGSL source so a single shader file can
// produce every pipeline variant.
type PreProcessor interface {
	// Process evaluates the directives in source against defs and returns the resulting WGSL.
	// Imported modules are inlined at the position of their first #import and processed with the
	// same defines; later imports of the same module emit nothing.
	//
	// Parameters:
	//   - source: the raw WGSL source containing directives
	//   - defs: the shader defines that are set for this variant
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: ErrUnterminatedIf, ErrUnbalancedDirective or ErrUnknownShader (wrapped with the line number)
	Process(source string, defs []string) (string, error)
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor that resolves #import directives through resolve.
// A nil resolver rejects every #import.
//
// Parameters:
//   - resolve: the lookup used for #import names
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor
func NewPreProcessor(resolve ImportResolver) PreProcessor {
	if resolve == nil {
		resolve = func(string) (string, bool) { return "", false }
	}
	return &preProcessor{resolve: resolve}
}

func (p *preProcessor) Process(source string, defs []string) (string, error) {
	defined := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		defined[d] = struct{}{}
	}
	imported := make(map[string]struct{})
	var out strings.Builder
	if err := p.process(&out, source, defined, imported); err != nil {
		return "", err
	}
	return out.String(), nil
}

func (p *preProcessor) process(out *strings.Builder, source string, defined, imported map[string]struct{}) error {
	var stack []conditional
	active := func() bool {
		return len(stack) == 0 || stack[len(stack)-1].active()
	}

	lines := strings.Split(source, "\n")
	for i, line := range lines {
		lineNo := i + 1
		directive, arg, ok := parseDirective(line)
		if !ok {
			if active() {
				out.WriteString(line)
				out.WriteByte('\n')
			}
			continue
		}

		switch directive {
		case "#ifdef", "#ifndef":
			if arg == "" {
				return fmt.Errorf("line %d: %s requires a define name", lineNo, directive)
			}
			_, isSet := defined[arg]
			stack = append(stack, conditional{
				parentActive: active(),
				taken:        isSet == (directive == "#ifdef"),
				line:         lineNo,
			})
		case "#else":
			if len(stack) == 0 {
				return fmt.Errorf("line %d: %w", lineNo, ErrUnbalancedDirective)
			}
			top := &stack[len(stack)-1]
			if top.sawElse {
				return fmt.Errorf("line %d: duplicate #else: %w", lineNo, ErrUnbalancedDirective)
			}
			top.sawElse = true
			top.taken = !top.taken
		case "#endif":
			if len(stack) == 0 {
				return fmt.Errorf("line %d: %w", lineNo, ErrUnbalancedDirective)
			}
			stack = stack[:len(stack)-1]
		case "#import":
			if !active() {
				continue
			}
			if _, done := imported[arg]; done {
				continue
			}
			src, found := p.resolve(arg)
			if !found {
				return fmt.Errorf("line %d: import %q: %w", lineNo, arg, ErrUnknownShader)
			}
			imported[arg] = struct{}{}
			if err := p.process(out, src, defined, imported); err != nil {
				return fmt.Errorf("import %q: %w", arg, err)
			}
		default:
			// unknown directives pass through untouched
			if active() {
				out.WriteString(line)
				out.WriteByte('\n')
			}
		}
	}

	if len(stack) > 0 {
		return fmt.Errorf("line %d: %w", stack[len(stack)-1].line, ErrUnterminatedIf)
	}
	return nil
}

// parseDirective splits a directive line into its keyword and argument.
// Returns ok=false for ordinary source lines.
func parseDirective(line string) (directive, arg string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return "", "", false
	}
	fields := strings.Fields(trimmed)
	directive = fields[0]
	if len(fields) > 1 {
		arg = fields[1]
	}
	return directive, arg, true
}
