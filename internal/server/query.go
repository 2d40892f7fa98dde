package server

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/alfredjeanlab/evreg/internal/catalog"
	"github.com/alfredjeanlab/evreg/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// listQuery is the query string of GET /v1/events. Limit is nil when absent.
type listQuery struct {
	Category  string `validate:"omitempty,max=128"`
	Search    string `validate:"omitempty,max=256"`
	Status    string `validate:"omitempty,oneof=available full"`
	Limit     *int   `validate:"omitnil,min=1,max=100"`
	NextToken string `validate:"omitempty,base64rawurl"`
}

func parseListQuery(q url.Values) (*listQuery, error) {
	lq := &listQuery{
		Category:  q.Get("category"),
		Search:    q.Get("search"),
		Status:    q.Get("status"),
		NextToken: q.Get("nextToken"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("limit: %q is not an integer", v)
		}
		lq.Limit = &n
	}
	if err := validate.Struct(lq); err != nil {
		return nil, describeValidation(err)
	}
	return lq, nil
}

func (q *listQuery) filter() model.EventFilter {
	return model.EventFilter{Category: q.Category, Search: q.Search, Status: model.Status(q.Status)}
}

func (q *listQuery) limit() int {
	if q.Limit == nil {
		return catalog.DefaultLimit
	}
	return *q.Limit
}

// describeValidation reports the first failing field in request terms.
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := map[string]string{
		"Category":  "category",
		"Search":    "search",
		"Status":    "status",
		"Limit":     "limit",
		"NextToken": "nextToken",
	}[fe.Field()]
	switch fe.Tag() {
	case "oneof":
		return fmt.Errorf("%s: must be one of %s", field, fe.Param())
	case "min", "max":
		if field == "limit" {
			return fmt.Errorf("limit: must be between 1 and %d", catalog.MaxLimit)
		}
		return fmt.Errorf("%s: must be at most %s characters", field, fe.Param())
	case "base64rawurl":
		return fmt.Errorf("%s: malformed token", field)
	}
	return fmt.Errorf("%s: invalid value", field)
}
