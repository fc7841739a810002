package task

import "testing"

func TestStatus_Terminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusFailed, StatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() || s.IsActive() {
			t.Errorf("%s should be terminal", s)
		}
	}

	active := []Status{StatusPending, StatusProcessing}
	for _, s := range active {
		if s.IsTerminal() || !s.IsActive() {
			t.Errorf("%s should be active", s)
		}
	}

	if Status("unknown").IsTerminal() || Status("unknown").IsActive() {
		t.Error("unknown status should be neither terminal nor active")
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"jpeg": FormatJPEG,
		"JPG":  FormatJPEG,
		"png":  FormatPNG,
		"tif":  FormatTIFF,
		"tiff": FormatTIFF,
	}
	for in, want := range cases {
		got, ok := ParseFormat(in)
		if !ok || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}

	if _, ok := ParseFormat("webp"); ok {
		t.Error("webp should not parse")
	}
}

func TestFormat_Extension(t *testing.T) {
	if FormatTIFF.Extension() != ".tiff" {
		t.Errorf("unexpected tiff extension %s", FormatTIFF.Extension())
	}
	if FormatJPEG.ContentType() != "image/jpeg" {
		t.Errorf("unexpected jpeg content type %s", FormatJPEG.ContentType())
	}
}
