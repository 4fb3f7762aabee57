package presenter

import "strings"

const (
	UnknownPresenter Option = iota
	TextPresenter
	JSONPresenter
)

var optionStr = []string{
	"UnknownPresenter",
	"text",
	"json",
}

var Options = []Option{
	TextPresenter,
	JSONPresenter,
}

type Option int

func ParseOption(userStr string) Option {
	switch strings.ToLower(userStr) {
	case "", strings.ToLower(TextPresenter.String()), "table":
		return TextPresenter
	case strings.ToLower(JSONPresenter.String()):
		return JSONPresenter
	default:
		return UnknownPresenter
	}
}

func (o Option) String() string {
	if int(o) >= len(optionStr) || o < 0 {
		return optionStr[0]
	}

	return optionStr[o]
}
