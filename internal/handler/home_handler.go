package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/porttfolio/internal/guard"
	"github.com/hitoshi/porttfolio/internal/middleware"
	"github.com/hitoshi/porttfolio/internal/model"
)

// Quote は銘柄の表示用データ。値は固定で、取得や計算は行わない。
type Quote struct {
	Symbol string
	Price  string
	Change string
	Volume string
}

// Up は前日比がプラスかどうかを返す。
func (q Quote) Up() bool {
	return strings.HasPrefix(q.Change, "+")
}

// MarketOverview はダッシュボードに表示する固定の市場データ。
var MarketOverview = []Quote{
	{Symbol: "AAPL", Price: "150.25", Change: "+2.5%", Volume: "78.5M"},
	{Symbol: "GOOGL", Price: "2750.80", Change: "-0.8%", Volume: "2.1M"},
	{Symbol: "MSFT", Price: "310.45", Change: "+1.2%", Volume: "25.3M"},
	{Symbol: "AMZN", Price: "3300.15", Change: "+0.5%", Volume: "3.8M"},
}

type feature struct {
	Title       string
	Description string
}

var features = []feature{
	{"Trade Stocks", "Access real-time market data and execute trades"},
	{"Learn Trading", "Access educational resources and trading strategies"},
	{"Algo Trading", "Create and backtest automated trading strategies"},
}

// homeView はダッシュボードの表示データ。
type homeView struct {
	layoutData
	UserLabel string
	Market    []Quote
	Features  []feature
}

// Home はダッシュボードを表示する。ルートガードの内側で呼ばれる。
// GET /home
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	c, ok := h.clientFrom(w, r)
	if !ok {
		return
	}
	c.UnmountWizard()

	state, ok := guard.StateFrom(r.Context())
	if !ok {
		state = c.Session.State()
	}

	label := ""
	if ident := state.Identity; ident != nil {
		label = ident.DisplayName
		if label == "" {
			label = ident.Email
		}
	}

	render(w, http.StatusOK, pageHome, homeView{
		layoutData: newLayoutData(r, c, "Dashboard"),
		UserLabel:  label,
		Market:     MarketOverview,
		Features:   features,
	})
}

// ToggleTheme は表示モードを切り替えて元の画面へ戻る。
// POST /theme/toggle
func (h *Handler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	c, ok := h.clientFrom(w, r)
	if !ok {
		return
	}

	if _, err := c.Theme.Toggle(r.Context()); err != nil {
		slog.Error("failed to toggle theme",
			slog.String("client_id", c.ID),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewThemeStorageError())
		return
	}

	seeOther(w, r, localPath(r.PostFormValue("return_to"), "/home"))
}
