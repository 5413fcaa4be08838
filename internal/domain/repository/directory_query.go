package repository

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/oksasatya/staff-directory/internal/domain/entity"
)

const MaxFilterLength = 100

var ErrInvalidFilter = errors.New("invalid filter")

// DirectoryQuery is the colleague search predicate:
//
//	(firstName ~ Filter OR lastName ~ Filter)
//	AND positionSeniorityIndex <= MaxSeniorityIndex
//	AND id != ExcludeUserID
//
// Filter is a case-sensitive regular expression; an empty filter matches everyone.
type DirectoryQuery struct {
	Filter            string
	MaxSeniorityIndex int
	ExcludeUserID     string

	pattern *regexp.Regexp
}

func NewDirectoryQuery(filter string, maxSeniority int, excludeUserID string) (DirectoryQuery, error) {
	if len(filter) > MaxFilterLength {
		return DirectoryQuery{}, fmt.Errorf("%w: longer than %d characters", ErrInvalidFilter, MaxFilterLength)
	}
	re, err := regexp.Compile(filter)
	if err != nil {
		return DirectoryQuery{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return DirectoryQuery{
		Filter:            filter,
		MaxSeniorityIndex: maxSeniority,
		ExcludeUserID:     excludeUserID,
		pattern:           re,
	}, nil
}

// Matches evaluates the predicate in process.
func (q DirectoryQuery) Matches(u *entity.User) bool {
	if u == nil || u.ID == q.ExcludeUserID || !u.VisibleTo(q.MaxSeniorityIndex) {
		return false
	}
	if q.Filter == "" {
		return true
	}
	re := q.pattern
	if re == nil {
		var err error
		if re, err = regexp.Compile(q.Filter); err != nil {
			return false
		}
	}
	return re.MatchString(u.FirstName) || re.MatchString(u.LastName)
}
