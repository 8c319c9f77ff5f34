package dto

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cesargomez89/recshelf/internal/constants"
	"github.com/cesargomez89/recshelf/internal/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) ToMap() map[string]string {
	return map[string]string{e.Field: e.Message}
}

func ToMap(errs []ValidationError) map[string]string {
	result := make(map[string]string)
	for _, e := range errs {
		result[e.Field] = e.Message
	}
	return result
}

func ToResponse(errs []ValidationError) string {
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// ListQuery is a validated recordings listing request.
type ListQuery struct {
	Status   *domain.RecordingStatus
	Page     int
	PageSize int
}

// ParseListQuery reads status, page and page_size. Missing values take
// defaults; malformed ones are reported.
func ParseListQuery(status, page, pageSize string) (ListQuery, []ValidationError) {
	q := ListQuery{Page: 1, PageSize: constants.DefaultPageSize}
	var errs []ValidationError

	if status != "" {
		s, err := domain.ParseRecordingStatus(status)
		if err != nil {
			errs = append(errs, ValidationError{Field: "status", Message: "unknown status"})
		} else {
			q.Status = &s
		}
	}

	if n, verr := parsePositive("page", page); verr != nil {
		errs = append(errs, *verr)
	} else if n > 0 {
		q.Page = n
	}

	if n, verr := parsePositive("page_size", pageSize); verr != nil {
		errs = append(errs, *verr)
	} else if n > 0 {
		if n > constants.MaxPageSize {
			errs = append(errs, ValidationError{Field: "page_size", Message: fmt.Sprintf("must be at most %d", constants.MaxPageSize)})
		} else {
			q.PageSize = n
		}
	}

	return q, errs
}

// ParseLimit reads a history limit, defaulting to constants.MaxHistoryItems.
func ParseLimit(raw string) (int, []ValidationError) {
	n, verr := parsePositive("limit", raw)
	if verr != nil {
		return 0, []ValidationError{*verr}
	}
	if n == 0 || n > constants.MaxHistoryItems {
		return constants.MaxHistoryItems, nil
	}
	return n, nil
}

func parsePositive(field, raw string) (int, *ValidationError) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, &ValidationError{Field: field, Message: "must be a positive integer"}
	}
	return n, nil
}

// Validate checks the requested status name.
func (r TransitionRequest) Validate() (domain.RecordingStatus, []ValidationError) {
	if strings.TrimSpace(r.Status) == "" {
		return 0, []ValidationError{{Field: "status", Message: "is required"}}
	}
	s, err := domain.ParseRecordingStatus(r.Status)
	if err != nil {
		return 0, []ValidationError{{Field: "status", Message: "unknown status"}}
	}
	return s, nil
}
