package handler

import (
	"net/http"

	"github.com/hitoshi/porttfolio/internal/client"
	"github.com/hitoshi/porttfolio/internal/registration"
)

// option は選択肢の表示データ。
type option struct {
	Value    string
	Label    string
	Selected bool
}

var (
	maritalStatusChoices = [][2]string{
		{"single", "Single"},
		{"married", "Married"},
		{"divorced", "Divorced"},
		{"widowed", "Widowed"},
	}
	sexChoices = [][2]string{
		{"male", "Male"},
		{"female", "Female"},
		{"other", "Other"},
	}
	riskLevelChoices = [][2]string{
		{"low", "Low - Conservative"},
		{"medium", "Medium - Moderate"},
		{"high", "High - Aggressive"},
	}
	experienceLevelChoices = [][2]string{
		{"beginner", "Beginner (0-1 years)"},
		{"intermediate", "Intermediate (1-3 years)"},
		{"advanced", "Advanced (3-5 years)"},
		{"expert", "Expert (5+ years)"},
	}
)

func options(choices [][2]string, selected string) []option {
	out := make([]option, len(choices))
	for i, c := range choices {
		out[i] = option{Value: c[0], Label: c[1], Selected: c[0] == selected}
	}
	return out
}

// registrationView は登録画面の表示データ。
type registrationView struct {
	layoutData
	Steps            []string
	Step             int
	CanGoBack        bool
	NextLabel        string
	Error            string
	Draft            registration.Draft
	HasPassword      bool
	MaritalStatuses  []option
	Sexes            []option
	RiskLevels       []option
	ExperienceLevels []option
}

func newRegistrationView(r *http.Request, c *client.Client, wz *registration.Wizard) registrationView {
	d := wz.Draft()
	return registrationView{
		layoutData:       newLayoutData(r, c, "Create Account"),
		Steps:            registration.Steps,
		Step:             wz.Step(),
		CanGoBack:        wz.CanGoBack(),
		NextLabel:        wz.NextLabel(),
		Error:            wz.Error(),
		Draft:            d,
		HasPassword:      d.Password != "",
		MaritalStatuses:  options(maritalStatusChoices, d.MaritalStatus),
		Sexes:            options(sexChoices, d.Sex),
		RiskLevels:       options(riskLevelChoices, d.RiskLevel),
		ExperienceLevels: options(experienceLevelChoices, d.ExperienceLevel),
	}
}

// RegistrationPage は空の登録ウィザードを表示する。
// GET /registration
func (h *Handler) RegistrationPage(w http.ResponseWriter, r *http.Request) {
	c, ok := h.clientFrom(w, r)
	if !ok {
		return
	}

	wz := c.MountWizard()
	render(w, http.StatusOK, pageRegistration, newRegistrationView(r, c, wz))
}

// RegistrationSubmit はウィザードの進む・戻る操作を処理する。
// POST /registration (action=next|back)
func (h *Handler) RegistrationSubmit(w http.ResponseWriter, r *http.Request) {
	c, ok := h.clientFrom(w, r)
	if !ok {
		return
	}

	// クライアントが破棄された後の送信では新しいウィザードから始める
	wz := c.Wizard()
	if wz == nil {
		wz = c.MountWizard()
	}

	flow := registration.NewFlow(c.Session, h.config.ProfileSink, h.config.Recorder)

	switch r.PostFormValue("action") {
	case "back":
		flow.Back(wz, r.PostForm)
	case "next", "":
		wz.Apply(r.PostForm)
		if outcome := flow.Next(r.Context(), wz); outcome.Redirect != "" {
			c.UnmountWizard()
			seeOther(w, r, outcome.Redirect)
			return
		}
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	render(w, http.StatusOK, pageRegistration, newRegistrationView(r, c, wz))
}
