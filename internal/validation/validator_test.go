package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type meeting struct {
	Days  string `json:"days" validate:"required,weekdays"`
	Start string `json:"start" validate:"required,clock"`
}

type signup struct {
	Email    string    `json:"email" validate:"required,email"`
	Decision string    `json:"decision" validate:"omitempty,oneof=approve reject"`
	Meetings []meeting `json:"meetings" validate:"dive"`
}

func TestValidateStructPasses(t *testing.T) {
	err := ValidateStruct(&signup{
		Email:    "ada@school.edu",
		Decision: "approve",
		Meetings: []meeting{{Days: "mwf", Start: "09:00"}},
	})
	require.NoError(t, err)
}

func TestValidateStructReportsNestedPaths(t *testing.T) {
	err := ValidateStruct(&signup{
		Email:    "nope",
		Decision: "maybe",
		Meetings: []meeting{{Days: "MM", Start: "9am"}},
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, []string{"must be one of: approve, reject"}, verr.Fields()["decision"])
	require.Equal(t, []string{"must list meeting days using M, T, W, R, F, S and U"}, verr.Fields()["meetings[0].days"])
	require.Equal(t, []string{"must be a time of day such as 09:30"}, verr.Fields()["meetings[0].start"])
	require.Equal(t, "decision must be one of: approve, reject, and 3 other errors", verr.Error())
	require.Equal(t, 400, verr.ProblemStatus())
}

func TestValidateStructReportsExcludedCharacters(t *testing.T) {
	type class struct {
		Section string `json:"section" validate:"required,excludes=-"`
	}

	var verr *ValidationError
	require.ErrorAs(t, ValidateStruct(&class{Section: "A-1"}), &verr)
	require.Equal(t, []string{`must not contain "-"`}, verr.Fields()["section"])
	require.NoError(t, ValidateStruct(&class{Section: "A1"}))
}
