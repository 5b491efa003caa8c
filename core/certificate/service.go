package certificate

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/course"
	"github.com/darasahq/darasa/core/user"
)

var (
	ErrNotFound      = errors.New("certificate not found")
	ErrNotCompleted  = errors.New("course is not completed")
	ErrAlreadyIssued = errors.New("a certificate was already issued for this enrollment")
	ErrInvalidCode   = errors.New("invalid verification code")

	salt = []byte("darasa.core.certificate")
)

type (
	Repository interface {
		CreateCertificate(ctx context.Context, c Certificate) (Certificate, error)
		GetCertificateBySerial(ctx context.Context, serial string) (Certificate, error)
		GetCertificateByEnrollment(ctx context.Context, courseID, userID int) (Certificate, error)
		QueryCertificatesByUser(ctx context.Context, userID int) ([]Certificate, error)
	}

	Service struct {
		conf      *core.Config
		repo      Repository
		courseSvc *course.Service
		usrSvc    *user.Service
		mailSvc   core.EmailService
	}
)

func NewService(conf *core.Config, repo Repository, courseSvc *course.Service, usrSvc *user.Service, mailSvc core.EmailService) *Service {
	return &Service{conf: conf, repo: repo, courseSvc: courseSvc, usrSvc: usrSvc, mailSvc: mailSvc}
}

// Issue creates a certificate for a completed enrollment and emails the
// learner. Issuing twice for the same enrollment fails.
func (svc *Service) Issue(ctx context.Context, courseID, userID int) (Certificate, error) {
	enr, err := svc.courseSvc.GetEnrollment(ctx, courseID, userID)
	if err != nil {
		return Certificate{}, err
	}
	if !enr.IsComplete() {
		return Certificate{}, ErrNotCompleted
	}
	if _, err := svc.repo.GetCertificateByEnrollment(ctx, courseID, userID); err == nil {
		return Certificate{}, ErrAlreadyIssued
	} else if errors.Cause(err) != ErrNotFound {
		return Certificate{}, err
	}

	crs, err := svc.courseSvc.GetByID(ctx, courseID)
	if err != nil {
		return Certificate{}, err
	}
	usr, err := svc.usrSvc.GetByID(ctx, userID)
	if err != nil {
		return Certificate{}, err
	}

	serial := uuid.New().String()
	cert := Certificate{
		OrgID:    crs.OrgID,
		CourseID: courseID,
		UserID:   userID,
		Serial:   serial,
		Code:     svc.sign(serial, courseID, userID),
		IssuedAt: time.Now().UTC(),
	}
	cert, err = svc.repo.CreateCertificate(ctx, cert)
	if err != nil {
		return Certificate{}, err
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Certificate of Completion",
		TextContent: fmt.Sprintf(
			"Congratulations %s!\n\nYou completed %q."+
				"\nYour certificate serial is %s; verify it any time at %s/certificates/%s.",
			usr.Name, crs.Title, cert.Serial, svc.conf.FrontendBaseURL, cert.Serial,
		),
	})
	return cert, nil
}

// Verify checks a presented (serial, code) pair against the stored record.
func (svc *Service) Verify(ctx context.Context, serial, code string) (Certificate, error) {
	cert, err := svc.repo.GetCertificateBySerial(ctx, serial)
	if err != nil {
		return Certificate{}, err
	}
	expected := svc.sign(cert.Serial, cert.CourseID, cert.UserID)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 0 {
		return Certificate{}, ErrInvalidCode
	}
	return cert, nil
}

func (svc *Service) QueryByUser(ctx context.Context, userID int) ([]Certificate, error) {
	return svc.repo.QueryCertificatesByUser(ctx, userID)
}

func (svc *Service) sign(serial string, courseID, userID int) string {
	key := sha256.Sum256(append(salt, svc.conf.SecretKey...))
	h := hmac.New(sha256.New, key[:])
	h.Write([]byte(serial))
	h.Write([]byte(strconv.Itoa(courseID)))
	h.Write([]byte(strconv.Itoa(userID)))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
