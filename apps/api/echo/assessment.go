package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/access"
	"github.com/darasahq/darasa/core/assessment"
	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/user"
)

type assessmentApi struct {
	svc       *assessment.Service
	courseSvc *course.Service
	validate  *validator.Validate
}

func registerAssessmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, gate *gate, deps ServerDeps) {
	api := assessmentApi{svc: deps.AssessmentSvc, courseSvc: deps.CourseSvc, validate: deps.Validate}

	// management endpoints
	mg := g.Group("", jwt, gate.authorize(user.RoleAdmin))
	mg.POST("/courses/:id/assessments", api.create)
	mg.GET("/courses/:id/assessments", api.queryByCourse)
	mg.GET("/assessments/:id", api.retrieve)
	mg.DELETE("/assessments/:id", api.destroy)
	mg.GET("/assessments/:id/submissions", api.querySubmissions)
	mg.POST("/submissions/:id/grade", api.grade)

	// delegated staff endpoints
	sg := g.Group("/staff", jwt, gate.authorize(user.RoleSubAdmin))
	sg.POST("/courses/:id/assessments", api.create,
		gate.requirePermission(access.ModuleAssessmentManagement, "Create Assessment"))
	sg.GET("/courses/:id/assessments", api.queryByCourse,
		gate.requirePermission(access.ModuleAssessmentManagement, "View Assessments"))
	sg.GET("/assessments/:id", api.retrieve,
		gate.requirePermission(access.ModuleAssessmentManagement, "View Assessments"))
	sg.DELETE("/assessments/:id", api.destroy,
		gate.requirePermission(access.ModuleAssessmentManagement, "Delete Assessment"))
	sg.GET("/assessments/:id/submissions", api.querySubmissions,
		gate.requirePermission(access.ModuleAssessmentManagement, "View Assessments"))
	sg.POST("/submissions/:id/grade", api.grade,
		gate.requirePermission(access.ModuleAssessmentManagement, "Grade Submission"))

	// learner endpoints
	lg := g.Group("/learn", jwt, gate.authorize(user.RoleUser))
	lg.GET("/courses/:id/assessments", api.queryByCourse)
	lg.POST("/assessments/:id/submit", api.submit)
	lg.GET("/assessments/:id/submission", api.mySubmission)
}

// Handlers

func (api *assessmentApi) create(ctx echo.Context) error {
	c, err := api.courseOrNotFound(ctx, "id")
	if err != nil {
		return err
	}

	var data assessment.NewAssessment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssessment")
	}
	data.CourseID = c.ID
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating assessment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *assessmentApi) queryByCourse(ctx echo.Context) error {
	c, err := api.courseOrNotFound(ctx, "id")
	if err != nil {
		return err
	}

	assessments, err := api.svc.QueryByCourse(ctx.Request().Context(), c.ID)
	if err != nil {
		return errors.Wrap(err, "querying assessments")
	}
	if assessments == nil {
		assessments = []assessment.Assessment{}
	}
	return ctx.JSON(http.StatusOK, assessments)
}

func (api *assessmentApi) retrieve(ctx echo.Context) error {
	a, err := api.objectOrNotFound(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assessmentApi) destroy(ctx echo.Context) error {
	a, err := api.objectOrNotFound(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), a.ID); err != nil {
		return errors.Wrap(err, "deleting assessment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assessmentApi) querySubmissions(ctx echo.Context) error {
	a, err := api.objectOrNotFound(ctx)
	if err != nil {
		return err
	}
	subs, err := api.svc.SubmissionsByAssessment(ctx.Request().Context(), a.ID)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []assessment.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *assessmentApi) grade(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	var data assessment.GradeSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeSubmission")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	sub, err := api.svc.Grade(ctx.Request().Context(), id, claims.UserID(), data)
	if err != nil {
		switch errors.Cause(err) {
		case assessment.ErrSubmissionNotFound:
			return errHttpNotFound
		case assessment.ErrNotTheory:
			return core.NewValidationError(assessment.ErrNotTheory)
		}
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *assessmentApi) submit(ctx echo.Context) error {
	a, err := api.objectOrNotFound(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	// only enrolled learners may submit
	if _, err := api.courseSvc.GetEnrollment(ctx.Request().Context(), a.CourseID, claims.UserID()); err != nil {
		if errors.Cause(err) == course.ErrNotEnrolled {
			return core.NewValidationError(course.ErrNotEnrolled)
		}
		return errors.Wrap(err, "checking enrollment")
	}

	var data assessment.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), a.ID, claims.UserID(), data)
	if err != nil {
		if errors.Cause(err) == assessment.ErrAlreadySubmitted {
			return core.NewValidationError(assessment.ErrAlreadySubmitted)
		}
		return errors.Wrap(err, "submitting answers")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *assessmentApi) mySubmission(ctx echo.Context) error {
	a, err := api.objectOrNotFound(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	sub, err := api.svc.GetSubmission(ctx.Request().Context(), a.ID, claims.UserID())
	if err != nil {
		if errors.Cause(err) == assessment.ErrSubmissionNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

// courseOrNotFound resolves the course path param and hides courses outside
// the caller's organization.
func (api *assessmentApi) courseOrNotFound(ctx echo.Context, param string) (course.Course, error) {
	id, err := intParam(ctx, param)
	if err != nil {
		return course.Course{}, err
	}
	c, err := api.courseSvc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return course.Course{}, errHttpNotFound
		}
		return course.Course{}, errors.Wrap(err, "finding course by ID")
	}
	if c.OrgID != contextOrgID(ctx) {
		return course.Course{}, errHttpNotFound
	}
	return c, nil
}

func (api *assessmentApi) objectOrNotFound(ctx echo.Context) (assessment.Assessment, error) {
	id, err := intParam(ctx, "id")
	if err != nil {
		return assessment.Assessment{}, err
	}
	a, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == assessment.ErrNotFound {
			return assessment.Assessment{}, errHttpNotFound
		}
		return assessment.Assessment{}, errors.Wrap(err, "finding assessment by ID")
	}

	// scope through the owning course
	if _, err := api.courseOrg(ctx, a.CourseID); err != nil {
		return assessment.Assessment{}, err
	}
	return a, nil
}

func (api *assessmentApi) courseOrg(ctx echo.Context, courseID int) (course.Course, error) {
	c, err := api.courseSvc.GetByID(ctx.Request().Context(), courseID)
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return course.Course{}, errHttpNotFound
		}
		return course.Course{}, errors.Wrap(err, "finding course by ID")
	}
	if c.OrgID != contextOrgID(ctx) {
		return course.Course{}, errHttpNotFound
	}
	return c, nil
}
