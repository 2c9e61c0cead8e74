package inspect

import (
	"errors"
	"testing"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *Path
		wantErr error
	}{
		{
			name:  "kind only",
			input: "connectors",
			want:  &Path{Kind: KindConnector, IsPartial: true},
		},
		{
			name:  "object by id",
			input: "crtc/32",
			want:  &Path{Kind: KindCrtc, ID: 32},
		},
		{
			name:  "object by hex id",
			input: "plane/0x1f",
			want:  &Path{Kind: KindPlane, ID: 31},
		},
		{
			name:  "object by name",
			input: "connector/Virtual-1",
			want:  &Path{Kind: KindConnector, Name: "Virtual-1"},
		},
		{
			name:  "card prefix",
			input: "card1/enc/5",
			want:  &Path{Card: "card1", Kind: KindEncoder, ID: 5},
		},
		{
			name:  "alias is case-insensitive",
			input: "FB",
			want:  &Path{Kind: KindFramebuffer, IsPartial: true},
		},
		{
			name:  "surrounding whitespace",
			input: "  prop/DPMS ",
			want:  &Path{Kind: KindProperty, Name: "DPMS"},
		},
		{name: "empty", input: "", wantErr: ErrEmptyPath},
		{name: "leading slash", input: "/crtc/1", wantErr: ErrInvalidPath},
		{name: "trailing slash", input: "crtc/", wantErr: ErrInvalidPath},
		{name: "double slash", input: "card0//crtc", wantErr: ErrInvalidPath},
		{name: "too deep", input: "crtc/1/2", wantErr: ErrInvalidPath},
		{name: "card only", input: "card0", wantErr: ErrInvalidPath},
		{name: "unknown kind", input: "gpu/1", wantErr: ErrUnknownKind},
		{name: "zero id", input: "crtc/0", wantErr: ErrInvalidNumber},
		{name: "name on unnamed kind", input: "fb/main", wantErr: ErrInvalidNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePath(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParsePath(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePath(%q) unexpected error: %v", tt.input, err)
			}
			if got.Card != tt.want.Card || got.Kind != tt.want.Kind || got.ID != tt.want.ID ||
				got.Name != tt.want.Name || got.IsPartial != tt.want.IsPartial {
				t.Errorf("ParsePath(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestPathString(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"connectors", "connector"},
		{"crtc/0x20", "crtc/32"},
		{"card0/conn/Virtual-1", "card0/connector/Virtual-1"},
		{"fbs", "fb"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParsePath(tt.input)
			if err != nil {
				t.Fatalf("ParsePath(%q) error = %v", tt.input, err)
			}
			if got := p.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
