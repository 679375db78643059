package shader

import (
	"fmt"

	"github.com/gogpu/naga"
)

// Validate parses, lowers and validates WGSL source with the naga front end so malformed
// variants are rejected before they reach the GPU driver.
//
// Parameters:
//   - source: the processed WGSL source
//
// Returns:
//   - error: nil if the source is valid, otherwise the first parse, lowering or validation error
func Validate(source string) error {
	ast, err := naga.Parse(source)
	if err != nil {
		return fmt.Errorf("shader: %w", err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return fmt.Errorf("shader: lower: %w", err)
	}
	issues, err := naga.Validate(module)
	if err != nil {
		return fmt.Errorf("shader: validate: %w", err)
	}
	if len(issues) > 0 {
		return fmt.Errorf("shader: validate: %s (%d issues)", issues[0].Error(), len(issues))
	}
	return nil
}
