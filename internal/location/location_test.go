package location

import (
	"path/filepath"
	"testing"
)

func TestFromPath(t *testing.T) {
	root := filepath.FromSlash("/photos/classified")

	cases := []struct {
		name    string
		path    string
		want    Place
		wantErr bool
	}{
		{
			name: "country and city",
			path: "/photos/classified/Mexico/Oaxaca/IMG_001.jpg",
			want: Place{Country: "Mexico", City: "Oaxaca"},
		},
		{
			name: "country only",
			path: "/photos/classified/Peru/IMG_002.jpg",
			want: Place{Country: "Peru"},
		},
		{
			name:    "file at root",
			path:    "/photos/classified/IMG_003.jpg",
			wantErr: true,
		},
		{
			name:    "nested too deep",
			path:    "/photos/classified/Mexico/Oaxaca/day1/IMG_004.jpg",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromPath(root, filepath.FromSlash(tc.path))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestExtractMetadataRejectsNonImages(t *testing.T) {
	if _, err := ExtractMetadata(filepath.Join(t.TempDir(), "missing.jpg")); err == nil {
		t.Error("expected error for missing file")
	}
}
