package handler

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/porttfolio/internal/client"
	"github.com/hitoshi/porttfolio/internal/middleware"
)

//go:embed templates/*.html
var templatesFS embed.FS

// 画面名
const (
	pageLogin        = "login"
	pageRegistration = "registration"
	pageHome         = "home"
)

// pages は画面ごとにレイアウトと本文を組み合わせたテンプレート。
var pages = map[string]*template.Template{
	pageLogin:        parsePage("login.html"),
	pageRegistration: parsePage("registration.html"),
	pageHome:         parsePage("home.html"),
}

func parsePage(file string) *template.Template {
	return template.Must(template.New("layout.html").ParseFS(templatesFS, "templates/layout.html", "templates/"+file))
}

// layoutData はすべての画面に共通の表示データ。
type layoutData struct {
	Title     string
	DarkMode  bool
	CSRFField string
	CSRFToken string
}

func newLayoutData(r *http.Request, c *client.Client, title string) layoutData {
	d := layoutData{
		Title:     title,
		CSRFField: middleware.CSRFFormField,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
	}
	if c.Theme != nil {
		d.DarkMode = c.Theme.Get()
	}
	return d
}

// render はテンプレートをバッファに描画してから書き込む。
// 描画に失敗した場合は途中まで書かれたHTMLを返さずに500を返す。
func render(w http.ResponseWriter, status int, page string, data any) {
	var buf bytes.Buffer
	if err := pages[page].ExecuteTemplate(&buf, "layout.html", data); err != nil {
		slog.Error("failed to render page",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
