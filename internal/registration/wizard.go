// Package registration はアカウント登録ウィザードとその送信フローを提供する。
package registration

import (
	"fmt"
	"net/url"
	"sync"
)

// Steps はウィザードの各ステップの見出し。
var Steps = []string{"Personal Information", "Trading Profile"}

// フォーム項目名
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldName            = "name"
	FieldAge             = "age"
	FieldDOB             = "dob"
	FieldMaritalStatus   = "maritalStatus"
	FieldSex             = "sex"
	FieldRiskLevel       = "riskLevel"
	FieldExperienceLevel = "experienceLevel"
)

// stepFields はステップごとに入力する項目。
var stepFields = [][]string{
	{FieldEmail, FieldPassword, FieldName, FieldAge, FieldDOB, FieldMaritalStatus, FieldSex},
	{FieldRiskLevel, FieldExperienceLevel},
}

// Draft は登録フォームの入力内容。値の検証は行わない。
type Draft struct {
	Email           string
	Password        string
	Name            string
	Age             string
	DOB             string
	MaritalStatus   string
	Sex             string
	RiskLevel       string
	ExperienceLevel string
}

// Profile は資格情報以外の登録項目を返す。
func (d Draft) Profile() Profile {
	return Profile{
		Name:            d.Name,
		Age:             d.Age,
		DOB:             d.DOB,
		MaritalStatus:   d.MaritalStatus,
		Sex:             d.Sex,
		RiskLevel:       d.RiskLevel,
		ExperienceLevel: d.ExperienceLevel,
	}
}

func (d *Draft) field(name string) (*string, bool) {
	switch name {
	case FieldEmail:
		return &d.Email, true
	case FieldPassword:
		return &d.Password, true
	case FieldName:
		return &d.Name, true
	case FieldAge:
		return &d.Age, true
	case FieldDOB:
		return &d.DOB, true
	case FieldMaritalStatus:
		return &d.MaritalStatus, true
	case FieldSex:
		return &d.Sex, true
	case FieldRiskLevel:
		return &d.RiskLevel, true
	case FieldExperienceLevel:
		return &d.ExperienceLevel, true
	}
	return nil, false
}

// Wizard は2ステップの登録ウィザードの状態。
// ステップは前後に1つずつしか移動できず、移動しても入力内容は消えない。
type Wizard struct {
	mu    sync.Mutex
	step  int
	draft Draft
	err   string
}

// NewWizard は空の入力内容でステップ0のウィザードを生成する。
func NewWizard() *Wizard {
	return &Wizard{}
}

// Step は現在のステップ番号を返す。
func (w *Wizard) Step() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// StepLabel は現在のステップの見出しを返す。
func (w *Wizard) StepLabel() string {
	return Steps[w.Step()]
}

// CanGoBack は戻る操作が可能かを返す。ステップ0では不可。
func (w *Wizard) CanGoBack() bool {
	return w.Step() > 0
}

// IsTerminal は現在のステップが最終ステップかを返す。
func (w *Wizard) IsTerminal() bool {
	return w.Step() == len(Steps)-1
}

// NextLabel は進む操作のボタン名を返す。
func (w *Wizard) NextLabel() string {
	if w.IsTerminal() {
		return "Submit"
	}
	return "Next"
}

// Draft は入力内容のコピーを返す。
func (w *Wizard) Draft() Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

// Error は直前の送信で表示するエラーメッセージを返す。
func (w *Wizard) Error() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Set は項目に値を設定する。
func (w *Wizard) Set(field, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.draft.field(field)
	if !ok {
		return fmt.Errorf("unknown registration field %q", field)
	}
	*p = value
	return nil
}

// Apply は送信されたフォームから現在のステップの項目を取り込む。
// 他のステップの項目は無視する。パスワードは画面に再表示しないため、
// 空で送信された場合は既存の値を維持する。
func (w *Wizard) Apply(form url.Values) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, name := range stepFields[w.step] {
		if _, present := form[name]; !present {
			continue
		}
		value := form.Get(name)
		if name == FieldPassword && value == "" {
			continue
		}
		p, _ := w.draft.field(name)
		*p = value
	}
}

// advance は最終ステップでなければ次のステップへ進む。
func (w *Wizard) advance() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step < len(Steps)-1 {
		w.step++
	}
	w.err = ""
}

// Back は前のステップへ戻る。ステップ0では何もしない。
func (w *Wizard) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step > 0 {
		w.step--
	}
	w.err = ""
}

func (w *Wizard) setError(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = msg
}

// Fields はステップで入力する項目名を返す。
func Fields(step int) []string {
	if step < 0 || step >= len(stepFields) {
		return nil
	}
	return append([]string(nil), stepFields[step]...)
}
