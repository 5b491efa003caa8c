package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/access"
	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/user"
)

type courseApi struct {
	svc      *course.Service
	validate *validator.Validate
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, gate *gate, deps ServerDeps) {
	api := courseApi{svc: deps.CourseSvc, validate: deps.Validate}

	// management endpoints
	mg := g.Group("/courses", jwt, gate.authorize(user.RoleAdmin))
	mg.POST("", api.create)
	mg.GET("", api.query)
	mg.GET("/:id", api.retrieve)
	mg.PUT("/:id", api.update)
	mg.DELETE("/:id", api.destroy)
	mg.POST("/:id/lessons", api.addLesson)
	mg.DELETE("/:id/lessons/:lessonID", api.destroyLesson)
	mg.POST("/:id/enrollments", api.enroll)

	// delegated staff endpoints
	sg := g.Group("/staff/courses", jwt, gate.authorize(user.RoleSubAdmin))
	sg.POST("", api.create, gate.requirePermission(access.ModuleCourseManagement, "Create Course"))
	sg.GET("", api.query, gate.requirePermission(access.ModuleCourseManagement, "View Courses"))
	sg.GET("/:id", api.retrieve, gate.requirePermission(access.ModuleCourseManagement, "View Courses"))
	sg.PUT("/:id", api.update, gate.requirePermission(access.ModuleCourseManagement, "Update Course"))
	sg.DELETE("/:id", api.destroy, gate.requirePermission(access.ModuleCourseManagement, "Delete Course"))
	sg.POST("/:id/lessons", api.addLesson, gate.requirePermission(access.ModuleCourseManagement, "Manage Lessons"))
	sg.DELETE("/:id/lessons/:lessonID", api.destroyLesson, gate.requirePermission(access.ModuleCourseManagement, "Manage Lessons"))
	sg.POST("/:id/enrollments", api.enroll, gate.requirePermission(access.ModuleCourseManagement, "Enroll Learner"))

	// learner endpoints
	lg := g.Group("/learn", jwt, gate.authorize(user.RoleUser))
	lg.GET("/courses", api.queryPublished)
	lg.GET("/courses/:id", api.retrievePublished)
	lg.POST("/courses/:id/enroll", api.selfEnroll)
	lg.GET("/enrollments", api.myEnrollments)
	lg.POST("/courses/:id/lessons/:lessonID/complete", api.completeLesson)
}

// Handlers

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	data.OrgID = contextOrgID(ctx)
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) query(ctx echo.Context) error {
	courses, err := api.svc.QueryByOrg(ctx.Request().Context(), contextOrgID(ctx))
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	c, err := api.objectOrNotFound(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) update(ctx echo.Context) error {
	c, err := api.objectOrNotFound(ctx)
	if err != nil {
		return err
	}

	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}

	c, err = api.svc.Update(ctx.Request().Context(), c.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	c, err := api.objectOrNotFound(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), c.ID); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) addLesson(ctx echo.Context) error {
	c, err := api.objectOrNotFound(ctx)
	if err != nil {
		return err
	}

	var data course.NewLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	lesson, err := api.svc.AddLesson(ctx.Request().Context(), c.ID, data)
	if err != nil {
		return errors.Wrap(err, "adding lesson")
	}
	return ctx.JSON(http.StatusCreated, lesson)
}

func (api *courseApi) destroyLesson(ctx echo.Context) error {
	c, err := api.objectOrNotFound(ctx)
	if err != nil {
		return err
	}
	lessonID, err := intParam(ctx, "lessonID")
	if err != nil {
		return err
	}
	for _, lesson := range c.Lessons {
		if lesson.ID == lessonID {
			if err := api.svc.DeleteLessons(ctx.Request().Context(), lessonID); err != nil {
				return errors.Wrap(err, "deleting lesson")
			}
			return ctx.NoContent(http.StatusNoContent)
		}
	}
	return errHttpNotFound
}

func (api *courseApi) enroll(ctx echo.Context) error {
	c, err := api.objectOrNotFound(ctx)
	if err != nil {
		return err
	}

	var data EnrollRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	enr, err := api.svc.Enroll(ctx.Request().Context(), c.ID, data.UserID)
	if err != nil {
		return enrollError(err)
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *courseApi) queryPublished(ctx echo.Context) error {
	courses, err := api.svc.QueryByOrg(ctx.Request().Context(), contextOrgID(ctx))
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	published := []course.Course{}
	for _, c := range courses {
		if c.IsPublished {
			published = append(published, c)
		}
	}
	return ctx.JSON(http.StatusOK, published)
}

func (api *courseApi) retrievePublished(ctx echo.Context) error {
	c, err := api.objectOrNotFound(ctx)
	if err != nil {
		return err
	}
	if !c.IsPublished {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) selfEnroll(ctx echo.Context) error {
	c, err := api.objectOrNotFound(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	enr, err := api.svc.Enroll(ctx.Request().Context(), c.ID, claims.UserID())
	if err != nil {
		return enrollError(err)
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *courseApi) myEnrollments(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	enrs, err := api.svc.EnrollmentsByUser(ctx.Request().Context(), claims.UserID())
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrs == nil {
		enrs = []course.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (api *courseApi) completeLesson(ctx echo.Context) error {
	c, err := api.objectOrNotFound(ctx)
	if err != nil {
		return err
	}
	lessonID, err := intParam(ctx, "lessonID")
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	enr, err := api.svc.CompleteLesson(ctx.Request().Context(), c.ID, claims.UserID(), lessonID)
	if err != nil {
		switch errors.Cause(err) {
		case course.ErrNotEnrolled, course.ErrLessonNotFound:
			return core.NewValidationError(errors.Cause(err))
		}
		return errors.Wrap(err, "completing lesson")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *courseApi) objectOrNotFound(ctx echo.Context) (course.Course, error) {
	id, err := intParam(ctx, "id")
	if err != nil {
		return course.Course{}, err
	}
	c, err := api.svc.GetByID(ctx.Request().Context(), id)
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

func enrollError(err error) error {
	switch errors.Cause(err) {
	case course.ErrAlreadyEnrolled, course.ErrNotPublished:
		return core.NewValidationError(errors.Cause(err))
	}
	return errors.Wrap(err, "enrolling learner")
}

type EnrollRequest struct {
	UserID int `json:"user_id" validate:"required"`
}
