// Package templates holds the HTML components served by the web package.
package templates

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

// PageData is what the upload page needs to render.
type PageData struct {
	Title       string
	MaxFileSize int64
}

// UploadPage renders the upload form. The form posts multipart field
// "file" to /upload and the script lists previous uploads from /uploads.
func UploadPage(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := data.Title
		if title == "" {
			title = "CSV Upload"
		}
		if _, err := io.WriteString(w, pageHead); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "<title>"+templ.EscapeString(title)+"</title></head><body><main><h1>"+
			templ.EscapeString(title)+"</h1>"); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `<form id="upload-form" method="post" action="/upload" enctype="multipart/form-data">`+
			`<input type="file" name="file" accept=".csv" required>`+
			`<button type="submit">Upload</button>`+
			`<p class="hint">CSV files up to `+templ.EscapeString(formatMiB(data.MaxFileSize))+`.</p>`+
			`</form><div id="result" role="status"></div><h2>Uploads</h2>`+
			`<table id="uploads"><thead><tr><th>ID</th><th>File</th><th>Uploaded</th><th>Rows</th><th>Status</th></tr></thead>`+
			`<tbody></tbody></table></main>`); err != nil {
			return err
		}
		_, err := io.WriteString(w, pageScript+"</body></html>")
		return err
	})
}

func formatMiB(n int64) string {
	if n <= 0 {
		return "the configured limit"
	}
	return strconv.FormatInt(n>>20, 10) + " MB"
}

const pageHead = `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">` +
	`<meta name="viewport" content="width=device-width, initial-scale=1">` +
	`<style>body{font-family:system-ui,sans-serif;margin:2rem auto;max-width:56rem;padding:0 1rem}` +
	`table{border-collapse:collapse;width:100%}td,th{border-bottom:1px solid #ddd;padding:.4rem;text-align:left}` +
	`.ok{color:#166534}.err{color:#b91c1c}.hint{color:#555;font-size:.9rem}</style>`

const pageScript = `<script>
(function () {
  var form = document.getElementById('upload-form');
  var result = document.getElementById('result');
  var body = document.querySelector('#uploads tbody');

  function text(v) { return document.createTextNode(v == null ? '' : String(v)); }

  function load() {
    fetch('/uploads').then(function (r) { return r.json(); }).then(function (j) {
      body.textContent = '';
      (j.uploads || []).forEach(function (u) {
        var tr = document.createElement('tr');
        [u.id, u.filename, u.upload_date, u.total_rows, u.status].forEach(function (v) {
          var td = document.createElement('td');
          td.appendChild(text(v));
          tr.appendChild(td);
        });
        body.appendChild(tr);
      });
    });
  }

  form.addEventListener('submit', function (e) {
    e.preventDefault();
    fetch('/upload', { method: 'POST', body: new FormData(form) })
      .then(function (r) { return r.json(); })
      .then(function (j) {
        result.className = j.success ? 'ok' : 'err';
        result.textContent = j.message + (j.code ? ' (' + j.code + ')' : '');
        load();
      })
      .catch(function () {
        result.className = 'err';
        result.textContent = 'Upload failed';
      });
  });

  load();
})();
</script>`
