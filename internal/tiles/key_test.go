package tiles

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestKeyValid(t *testing.T) {
	tests := []struct {
		key  Key
		want bool
	}{
		{key: Key{Zoom: 0, X: 0, Y: 0}, want: true},
		{key: Key{Zoom: 0, X: 1, Y: 0}, want: false},
		{key: Key{Zoom: 3, X: 7, Y: 7}, want: true},
		{key: Key{Zoom: 3, X: 8, Y: 7}, want: false},
		{key: Key{Zoom: 3, X: -1, Y: 2}, want: false},
		{key: Key{Zoom: -1}, want: false},
	}

	for _, tt := range tests {
		if got := tt.key.Valid(); got != tt.want {
			t.Errorf("%v.Valid() = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestKeyURL(t *testing.T) {
	k := Key{Zoom: 12, X: 2200, Y: 1343, Server: "https://{z}.example.com/tiles/{z}/{x}/{y}.png?key=abc"}

	want := "https://12.example.com/tiles/12/2200/1343.png?key=abc"
	if diff := cmp.Diff(want, k.URL()); diff != "" {
		t.Errorf("URL() mismatch (-want +got):\n%v", diff)
	}
}

func TestValidateTemplate(t *testing.T) {
	tests := []struct {
		template string
		wantErr  bool
	}{
		{template: "https://a.tile.openstreetmap.org/{z}/{x}/{y}.png"},
		{template: "https://mt0.google.com/vt/lyrs=m&hl=en&x={x}&y={y}&z={z}&s=Ga"},
		{template: "https://example.com/{z}/{x}.png", wantErr: true},
		{template: "", wantErr: true},
	}

	for _, tt := range tests {
		err := ValidateTemplate(tt.template)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidTemplate) {
				t.Errorf("ValidateTemplate(%q) = %v, want ErrInvalidTemplate", tt.template, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ValidateTemplate(%q) unexpected error: %v", tt.template, err)
		}
	}
}
