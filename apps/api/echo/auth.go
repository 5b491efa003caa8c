package echoapi

import (
	"context"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/access"
	"github.com/darasahq/darasa/core/org"
	"github.com/darasahq/darasa/core/user"
)

// context keys populated by the auth middleware and the authorization gate
var (
	contextUserKey     = "user"
	contextOrgKey      = "org"
	contextSubAdminKey = "subAdmin"
	contextPermsKey    = "permissions"
)

// Claims represents the authorization claims transmitted via a JWT.
// Role-specific foreign keys (org id, sub-admin profile id) are denormalized
// into the token at issuance; the gate re-verifies them against storage on
// every request.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64     `json:"oriat,omitempty"`
	Username     string    `json:"username,omitempty"`
	Email        string    `json:"email,omitempty"`
	Role         user.Role `json:"role,omitempty"`
	OrgID        int       `json:"org_id,omitempty"`
	SubAdminID   int       `json:"subadmin_id,omitempty"`
}

// UserID returns the numeric subject id; 0 when the subject is malformed.
func (c Claims) UserID() int {
	id, _ := strconv.Atoi(c.Subject)
	return id
}

type jwtAuth struct {
	conf   *core.Config
	config middleware.JWTConfig
}

func newJWTAuth(conf *core.Config) *jwtAuth {
	return &jwtAuth{
		conf: conf,
		config: middleware.JWTConfig{
			SigningKey:    conf.SecretKey,
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    "userToken",
			Claims:        new(Claims),
		},
	}
}

func (a *jwtAuth) middleware() echo.MiddlewareFunc {
	return middleware.JWTWithConfig(a.config)
}

func (a *jwtAuth) claimsFor(usr user.User, subAdminID int, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.conf.AppName,
			Subject:   strconv.Itoa(usr.ID),
			ExpiresAt: now.Add(a.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Email:        usr.Email,
		Role:         usr.Role,
		OrgID:        usr.OrgID,
		SubAdminID:   subAdminID,
	}
	return claims
}

// generateToken generates a signed JWT token string representing the user Claims.
func (a *jwtAuth) generateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(a.config.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(a.config.SigningKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func authenticate(
	ctx context.Context,
	uname, pwd string,
	usrSvc *user.Service,
	accessSvc *access.Service,
	auth *jwtAuth,
) (*Claims, error) {
	usr, err := usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if !usr.IsActive {
		return nil, errAccountDeactivated
	}

	// sub-admins get their profile id embedded in the token; a missing
	// profile is left at 0 and rejected by the gate at request time
	var subAdminID int
	if usr.IsSubAdmin() {
		if sa, err := accessSvc.GetSubAdminByUserID(ctx, usr.ID); err == nil {
			subAdminID = sa.ID
		} else if cause := errors.Cause(err); cause != access.ErrSubAdminNotFound && cause != access.ErrPermissionUnresolved {
			return nil, errors.Wrap(err, "finding sub-admin profile")
		}
	}

	usr, err = usrSvc.SetLastLogin(ctx, usr)
	if err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return auth.claimsFor(usr, subAdminID), nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get("userToken").(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context, svc *user.Service, clms ...Claims) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return user.User{}, errors.Wrap(err, "getting context claims")
		}
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.UserID())
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// contextOrgID resolves the acting organization: the enriched Organization
// for admins, the token's org claim otherwise.
func contextOrgID(ctx echo.Context) int {
	if o, ok := ctx.Get(contextOrgKey).(org.Organization); ok {
		return o.ID
	}
	if claims, err := getContextClaims(ctx); err == nil {
		return claims.OrgID
	}
	return 0
}

func refreshToken(ctx echo.Context, svc *user.Service, auth *jwtAuth) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	usr, err := getContextUser(ctx, svc, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	// check if user is still active
	if !usr.IsActive {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(auth.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	newClaims := auth.claimsFor(usr, claims.SubAdminID, claims.OrigIssuedAt)
	token, err := auth.generateToken(newClaims)
	return token, errors.Wrap(err, "generating token")
}
