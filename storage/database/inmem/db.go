// Package inmemdb provides map-backed repositories. They power tests and
// local hacking; the sqlx and gorm backends are the production paths.
package inmemdb

import (
	"sync"

	"github.com/darasahq/darasa/core/access"
	"github.com/darasahq/darasa/core/assessment"
	"github.com/darasahq/darasa/core/billing"
	"github.com/darasahq/darasa/core/booking"
	"github.com/darasahq/darasa/core/certificate"
	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/org"
	"github.com/darasahq/darasa/core/user"
)

type (
	DB struct {
		user        *userTable
		org         *orgTable
		access      *accessTable
		course      *courseTable
		assessment  *assessmentTable
		billing     *billingTable
		certificate *certificateTable
		booking     *bookingTable
	}

	userTable struct {
		mutex sync.RWMutex
		table map[int]*user.User
	}

	orgTable struct {
		mutex sync.RWMutex
		table map[int]*org.Organization
	}

	accessTable struct {
		mutex       sync.RWMutex
		permissions map[int]*access.Permission
		roles       map[int]*access.Role
		subAdmins   map[int]*access.SubAdmin
	}

	courseTable struct {
		mutex       sync.RWMutex
		courses     map[int]*course.Course
		lessons     map[int]*course.Lesson
		enrollments map[int]*course.Enrollment
	}

	assessmentTable struct {
		mutex       sync.RWMutex
		assessments map[int]*assessment.Assessment
		submissions map[int]*assessment.Submission
	}

	billingTable struct {
		mutex sync.RWMutex
		table map[int]*billing.Invoice
	}

	certificateTable struct {
		mutex sync.RWMutex
		table map[int]*certificate.Certificate
	}

	bookingTable struct {
		mutex sync.RWMutex
		table map[int]*booking.Booking
	}
)

func NewDB() *DB {
	return &DB{
		user: &userTable{table: make(map[int]*user.User)},
		org:  &orgTable{table: make(map[int]*org.Organization)},
		access: &accessTable{
			permissions: make(map[int]*access.Permission),
			roles:       make(map[int]*access.Role),
			subAdmins:   make(map[int]*access.SubAdmin),
		},
		course: &courseTable{
			courses:     make(map[int]*course.Course),
			lessons:     make(map[int]*course.Lesson),
			enrollments: make(map[int]*course.Enrollment),
		},
		assessment: &assessmentTable{
			assessments: make(map[int]*assessment.Assessment),
			submissions: make(map[int]*assessment.Submission),
		},
		billing:     &billingTable{table: make(map[int]*billing.Invoice)},
		certificate: &certificateTable{table: make(map[int]*certificate.Certificate)},
		booking:     &bookingTable{table: make(map[int]*booking.Booking)},
	}
}
