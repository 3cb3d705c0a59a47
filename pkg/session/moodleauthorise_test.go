package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/labgate/pkg/auth"
	"github.com/marmos91/labgate/pkg/lms"
	"github.com/marmos91/labgate/pkg/lms/lmstest"
)

func TestMoodleAuthoriseReconciles(t *testing.T) {
	db := lmstest.New(t)
	db.AddCategory(1, "Engineering", 0)
	db.AddCategory(2, "Electrical", 1)
	u := db.AddUser(lms.User{Username: "jdoe", Confirmed: true})
	cs := db.AddCourse(lms.Course{Category: 1, ShortName: "CS101", FullName: "Intro to CS"})
	ee := db.AddCourse(lms.Course{Category: 2, ShortName: "EE200", FullName: "Circuits"})
	old := db.AddCourse(lms.Course{Category: 1, ShortName: "CS999", FullName: "Dropped"})
	db.Enrol(u.ID, cs.ID, 0)
	db.Enrol(u.ID, ee.ID, 0)
	db.Enrol(u.ID, old.ID, 1)

	s := newStore(t)
	seedGroups(t, s, "cs-labs", "eng-labs", "stale", "dropped")
	seedPrincipal(t, s, "mdl_jdoe", "stale")

	step, err := NewMoodleAuthorise(MoodleAuthoriseConfig{Rules: []CourseRule{
		{Field: FieldCourseShortName, Pattern: "CS1*", Groups: []string{"cs-labs"}},
		{Field: FieldCategoryName, Pattern: "Engineering", Groups: []string{"eng-labs"}},
		{Field: FieldCourseFullName, Pattern: "Dropped", Groups: []string{"dropped"}},
	}}, db.Client(), s)
	require.NoError(t, err)

	info := &lmsInfo{BasicInfo: auth.NewInfo("uni", "mdl_jdoe"), id: u.ID}
	require.NoError(t, step.Setup(context.Background(), result(auth.TypeMoodle, info)))
	assert.Equal(t, []string{"cs-labs", "eng-labs"}, groupNames(t, s, "mdl_jdoe"))
}

func TestMoodleAuthoriseGroups(t *testing.T) {
	step, err := NewMoodleAuthorise(MoodleAuthoriseConfig{Rules: []CourseRule{
		{Field: FieldCourseID, Pattern: "42", Groups: []string{"b", "a"}},
		{Field: FieldCategoryID, Pattern: "7", Groups: []string{"a"}},
	}}, lmstest.New(t).Client(), newStore(t))
	require.NoError(t, err)

	cats := map[int64]lms.Category{7: {ID: 7, Name: "Root"}, 8: {ID: 8, Name: "Sub", Parent: 7}}
	got := step.Groups([]lms.Course{{ID: 42, Category: 8}}, cats)
	assert.Equal(t, []string{"a", "b"}, got)

	assert.Empty(t, step.Groups([]lms.Course{{ID: 1, Category: 99}}, cats))
}

func TestNewMoodleAuthoriseValidation(t *testing.T) {
	db := lmstest.New(t)
	s := newStore(t)

	_, err := NewMoodleAuthorise(MoodleAuthoriseConfig{}, db.Client(), s)
	assert.ErrorIs(t, err, auth.ErrConfiguration)

	_, err = NewMoodleAuthorise(MoodleAuthoriseConfig{Rules: []CourseRule{
		{Field: "course_role", Pattern: "*", Groups: []string{"x"}},
	}}, db.Client(), s)
	assert.ErrorIs(t, err, auth.ErrConfiguration)
}

func TestMoodleAuthoriseRequiresLMSAccount(t *testing.T) {
	step, err := NewMoodleAuthorise(MoodleAuthoriseConfig{Rules: []CourseRule{
		{Field: FieldCourseID, Pattern: "*", Groups: []string{"x"}},
	}}, lmstest.New(t).Client(), newStore(t))
	require.NoError(t, err)

	err = step.Setup(context.Background(), result(auth.TypeMoodle, auth.NewInfo("uni", "x")))
	assert.ErrorIs(t, err, auth.ErrConfiguration)
}
