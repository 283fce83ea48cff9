package searchdecisions

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"gov-decisions-workers/internal/models"
)

type Input struct {
	Text             string            `json:"text,omitempty"`
	Topic            string            `json:"topic,omitempty"`
	Ministries       []string          `json:"ministries,omitempty"`
	DateRange        *models.DateRange `json:"dateRange,omitempty"`
	GovernmentNumber int               `json:"governmentNumber,omitempty"`
	DecisionNumber   int               `json:"decisionNumber,omitempty"`
	From             int               `json:"from,omitempty"`
	Size             int               `json:"size,omitempty"`
}

func (in Input) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.GovernmentNumber, validation.Min(0), validation.Max(50)),
		validation.Field(&in.DecisionNumber, validation.Min(0)),
		validation.Field(&in.From, validation.Min(0)),
		validation.Field(&in.Size, validation.Min(0)),
		validation.Field(&in.Ministries, validation.Each(validation.Required)),
		validation.Field(&in.DateRange, validation.By(validDateRange)),
	)
}

// HasCriteria reports whether the input narrows the search at all.
func (in Input) HasCriteria() bool {
	return in.Text != "" || in.Topic != "" || len(in.Ministries) > 0 || in.DateRange != nil ||
		in.GovernmentNumber > 0 || in.DecisionNumber > 0
}

func validDateRange(v interface{}) error {
	dr, _ := v.(*models.DateRange)
	if dr == nil {
		return nil
	}
	if err := validation.ValidateStruct(dr,
		validation.Field(&dr.Start, validation.Required, validation.Date("2006-01-02")),
		validation.Field(&dr.End, validation.Required, validation.Date("2006-01-02")),
	); err != nil {
		return err
	}
	if dr.Start > dr.End {
		return validation.NewError("validation_date_range", "start must not be after end")
	}
	return nil
}

type Output struct {
	Data      []map[string]interface{} `json:"data"`
	TotalHits int64                    `json:"totalHits"`
	MaxScore  float64                  `json:"maxScore"`
	Took      int64                    `json:"took"` // milliseconds
	Cached    bool                     `json:"cached"`
}
