package presenter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anchore/forbiddenapis/forbiddenapis/presenter/json"
	"github.com/anchore/forbiddenapis/forbiddenapis/presenter/models"
	"github.com/anchore/forbiddenapis/forbiddenapis/presenter/text"
)

func TestParseOption(t *testing.T) {
	tests := []struct {
		input string
		want  Option
	}{
		{input: "", want: TextPresenter},
		{input: "TEXT", want: TextPresenter},
		{input: "table", want: TextPresenter},
		{input: "json", want: JSONPresenter},
		{input: "sarif", want: UnknownPresenter},
	}
	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			assert.Equal(t, test.want, ParseOption(test.input))
		})
	}
}

func TestGetPresenter(t *testing.T) {
	assert.IsType(t, &text.Presenter{}, GetPresenter(TextPresenter, models.Document{}, false))
	assert.IsType(t, &json.Presenter{}, GetPresenter(JSONPresenter, models.Document{}, false))
	assert.Nil(t, GetPresenter(UnknownPresenter, models.Document{}, false))
}
