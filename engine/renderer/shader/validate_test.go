package shader

import "testing"

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantErr bool
	}{
		{
			name:   "valid vertex shader",
			source: "@vertex fn main(@location(0) pos: vec3<f32>) -> @builtin(position) vec4<f32> { return vec4<f32>(pos.x, pos.y, pos.z, 1.0); }",
		},
		{
			name:    "syntax error",
			source:  "@vertex fn main( -> {",
			wantErr: true,
		},
		{
			name:    "undefined identifier",
			source:  "@vertex fn main() -> @builtin(position) vec4<f32> { return missing; }",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.source)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
