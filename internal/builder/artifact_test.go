package builder

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestResolveArtifactOrder(t *testing.T) {
	tests := []struct {
		name    string
		present []string
		want    string // extension expected, "" when nothing resolves
	}{
		{"hex wins over everything", []string{".hex", ".bin", ".uf2"}, ".hex"},
		{"bin wins over uf2", []string{".bin", ".uf2"}, ".bin"},
		{"uf2 as last resort", []string{".uf2"}, ".uf2"},
		{"nothing produced", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, ext := range tt.present {
				if err := os.WriteFile(filepath.Join(dir, "blink.ino"+ext), []byte{1}, 0644); err != nil {
					t.Fatal(err)
				}
			}
			got := resolveArtifact(dir, "blink.ino")
			if tt.want == "" {
				if got != "" {
					t.Errorf("expected empty artifact path, got %q", got)
				}
				return
			}
			if want := filepath.Join(dir, "blink.ino"+tt.want); got != want {
				t.Errorf("got %q, want %q", got, want)
			}
		})
	}
}

func TestUsedLibraries(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "encounter order with duplicates kept",
			raw: "Using library Servo at version 1.1.8 in folder: /libs/Servo\n" +
				"Compiling sketch...\n" +
				"Using library Wire at version 1.0 in folder: /libs/Wire\n" +
				"Using library Servo at version 1.1.8 in folder: /libs/Servo\n",
			want: []string{"Servo@1.1.8", "Wire@1.0", "Servo@1.1.8"},
		},
		{
			name: "library name with spaces",
			raw:  "Using library Adafruit GFX Library at version 1.11.9 in folder: /libs/gfx\n",
			want: []string{"Adafruit GFX Library@1.11.9"},
		},
		{
			name: "no libraries",
			raw:  "Compiling core...\nLinking...\n",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := usedLibraries(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
