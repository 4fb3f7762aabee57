/*
Package presenter renders the report of a verification run, either as a human readable table or as JSON.
*/
package presenter

import (
	"io"

	"github.com/anchore/forbiddenapis/forbiddenapis/presenter/json"
	"github.com/anchore/forbiddenapis/forbiddenapis/presenter/models"
	"github.com/anchore/forbiddenapis/forbiddenapis/presenter/text"
)

type Presenter interface {
	Present(io.Writer) error
}

// GetPresenter returns the presenter for the given option, or nil when the option is unknown.
func GetPresenter(option Option, doc models.Document, withColor bool) Presenter {
	switch option {
	case TextPresenter:
		return text.NewPresenter(doc, withColor)
	case JSONPresenter:
		return json.NewPresenter(doc)
	default:
		return nil
	}
}
