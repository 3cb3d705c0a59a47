package session

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/marmos91/labgate/internal/logger"
	"github.com/marmos91/labgate/pkg/auth"
	"github.com/marmos91/labgate/pkg/lms"
	"github.com/marmos91/labgate/pkg/rules"
)

// Course rule fields.
const (
	FieldCourseID        = "course_id"
	FieldCourseShortName = "course_shortname"
	FieldCourseFullName  = "course_fullname"
	FieldCategoryID      = "category_id"
	FieldCategoryName    = "category_name"
)

// CourseRule grants groups to users enrolled in a matching course.
// Category fields match any category on the course's ancestor path.
type CourseRule struct {
	Field   string   `mapstructure:"field" yaml:"field" validate:"required,oneof=course_id course_shortname course_fullname category_id category_name"`
	Pattern string   `mapstructure:"pattern" yaml:"pattern" validate:"required"`
	Groups  []string `mapstructure:"groups" yaml:"groups" validate:"required,min=1"`
}

// Enrolments reads course enrolments from the LMS.
type Enrolments interface {
	EnrolledCourses(ctx context.Context, userID int64) ([]lms.Course, error)
	Categories(ctx context.Context) (map[int64]lms.Category, error)
}

// MoodleAuthoriseConfig configures enrolment-driven group sync.
type MoodleAuthoriseConfig struct {
	Rules               []CourseRule `mapstructure:"rules" yaml:"rules" validate:"required,min=1,dive"`
	CreateMissingGroups bool         `mapstructure:"create_missing_groups" yaml:"create_missing_groups"`
}

// MoodleAuthorise makes the principal's groups equal the union of the
// groups granted by rules matching its LMS enrolments.
type MoodleAuthorise struct {
	cfg        MoodleAuthoriseConfig
	enrolments Enrolments
	groups     GroupReconciler
}

// NewMoodleAuthorise validates the rules.
func NewMoodleAuthorise(cfg MoodleAuthoriseConfig, enrolments Enrolments, groups GroupReconciler) (*MoodleAuthorise, error) {
	if len(cfg.Rules) == 0 {
		return nil, auth.Configuration("moodle authorise step: no rules configured")
	}
	if enrolments == nil || groups == nil {
		return nil, auth.Configuration("moodle authorise step: lms and group store are required")
	}
	for i, r := range cfg.Rules {
		switch r.Field {
		case FieldCourseID, FieldCourseShortName, FieldCourseFullName, FieldCategoryID, FieldCategoryName:
		default:
			return nil, auth.Configuration("moodle authorise step: rule %d: unknown field %q", i, r.Field)
		}
		if r.Pattern == "" || len(r.Groups) == 0 {
			return nil, auth.Configuration("moodle authorise step: rule %d needs a pattern and groups", i)
		}
	}
	return &MoodleAuthorise{cfg: cfg, enrolments: enrolments, groups: groups}, nil
}

func (s *MoodleAuthorise) Name() string { return StepMoodleAuthorise }

func (s *MoodleAuthorise) Setup(ctx context.Context, res *auth.Result) error {
	acct, ok := res.Info.(auth.LMSAccount)
	if !ok {
		return auth.Configuration("moodle authorise step: %s login carries no LMS account", res.Type)
	}

	courses, err := s.enrolments.EnrolledCourses(ctx, acct.LMSUserID())
	if err != nil {
		return fmt.Errorf("load enrolments: %w", err)
	}
	var categories map[int64]lms.Category
	if len(courses) > 0 {
		if categories, err = s.enrolments.Categories(ctx); err != nil {
			return fmt.Errorf("load categories: %w", err)
		}
	}

	desired := s.Groups(courses, categories)
	logger.DebugCtx(ctx, "Evaluated course rules",
		logger.Username(res.Info.Username()),
		logger.KeyCount, len(courses))
	return reconcile(ctx, s.groups, res.Info, desired, s.cfg.CreateMissingGroups)
}

// Groups returns the sorted union of groups granted for courses.
func (s *MoodleAuthorise) Groups(courses []lms.Course, categories map[int64]lms.Category) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range courses {
		path := lms.CategoryPath(categories, c.Category)
		for _, r := range s.cfg.Rules {
			if !ruleMatches(r, c, path) {
				continue
			}
			for _, g := range r.Groups {
				if _, dup := seen[g]; !dup {
					seen[g] = struct{}{}
					out = append(out, g)
				}
			}
		}
	}
	slices.Sort(out)
	return out
}

func ruleMatches(r CourseRule, c lms.Course, path []lms.Category) bool {
	switch r.Field {
	case FieldCourseID:
		return rules.MatchWildcard(r.Pattern, strconv.FormatInt(c.ID, 10))
	case FieldCourseShortName:
		return rules.MatchWildcard(r.Pattern, c.ShortName)
	case FieldCourseFullName:
		return rules.MatchWildcard(r.Pattern, c.FullName)
	case FieldCategoryID:
		for _, cat := range path {
			if rules.MatchWildcard(r.Pattern, strconv.FormatInt(cat.ID, 10)) {
				return true
			}
		}
	case FieldCategoryName:
		for _, cat := range path {
			if rules.MatchWildcard(r.Pattern, cat.Name) {
				return true
			}
		}
	}
	return false
}
