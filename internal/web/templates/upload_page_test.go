package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestUploadPage(t *testing.T) {
	var buf bytes.Buffer
	err := UploadPage(PageData{Title: "<Ingest>", MaxFileSize: 16 << 20}).Render(context.Background(), &buf)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	html := buf.String()

	for _, want := range []string{
		`action="/upload"`,
		`name="file"`,
		`enctype="multipart/form-data"`,
		"&lt;Ingest&gt;",
		"16 MB",
		"/uploads",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered page missing %q", want)
		}
	}
	if strings.Contains(html, "<Ingest>") {
		t.Error("title was not escaped")
	}
}

func TestUploadPage_DefaultTitle(t *testing.T) {
	var buf bytes.Buffer
	if err := UploadPage(PageData{}).Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "<title>CSV Upload</title>") {
		t.Error("default title not rendered")
	}
}
