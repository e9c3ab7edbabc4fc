package util

import "testing"

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "c-1.jpg", want: "c-1.jpg"},
		{in: " nested/name.png ", want: "nested_name.png"},
		{in: `win\path.jpg`, want: "win_path.jpg"},
		{in: "../etc/passwd", wantErr: true},
		{in: "   ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := SanitizeFileName(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("SanitizeFileName(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("SanitizeFileName(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeNamespace(t *testing.T) {
	cases := map[string]string{
		"consultations": "consultations",
		" Photos/2024 ":  "photos2024",
		"../..":          "default",
		"":               "default",
	}
	for in, want := range cases {
		if got := SanitizeNamespace(in); got != want {
			t.Fatalf("SanitizeNamespace(%q) = %q, want %q", in, got, want)
		}
	}
}
