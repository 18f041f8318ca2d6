package services

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"avtotest/models"

	"github.com/google/uuid"
)

const (
	MsgAuthRequired  = "Avtorizatsiya talab qilinadi"
	MsgInvalidToken  = "Yaroqsiz token"
	MsgAdminOnly     = "Faqat admin foydalanuvchi yaratishi mumkin"
	MsgMissingFields = "Barcha maydonlar to'ldirilishi kerak"
	MsgInvalidRole   = "Yaroqsiz rol"
)

// Identity is what the provisioner needs from the identity service.
type Identity interface {
	ResolveToken(ctx context.Context, token string) (*models.User, error)
	GetUserRole(ctx context.Context, userID uuid.UUID) (models.Role, error)
	CreateAccount(ctx context.Context, req NewAccount) (*models.User, error)
	DeleteAccount(ctx context.Context, userID uuid.UUID) error
	AssignRole(ctx context.Context, userID uuid.UUID, role models.Role) error
}

type ProvisionRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// Provisioner is the only code path that creates accounts. Every step runs
// in order and the first failure ends the request.
type Provisioner struct {
	identity Identity
}

func NewProvisioner(identity Identity) *Provisioner {
	return &Provisioner{identity: identity}
}

// Provision authenticates the caller from authHeader, requires the caller's
// stored role to be admin, and only then parses and validates body.
func (p *Provisioner) Provision(ctx context.Context, authHeader string, body []byte) (*models.User, error) {
	caller, err := p.authenticate(ctx, authHeader)
	if err != nil {
		return nil, err
	}

	if err := p.authorize(ctx, caller); err != nil {
		return nil, err
	}

	req, err := parseProvisionRequest(body)
	if err != nil {
		return nil, err
	}

	user, err := p.identity.CreateAccount(ctx, NewAccount{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		return nil, NewDownstreamError(err)
	}

	if err := p.identity.AssignRole(ctx, user.ID, models.Role(req.Role)); err != nil {
		// An account without a role must not survive.
		if delErr := p.identity.DeleteAccount(ctx, user.ID); delErr != nil {
			log.Printf("Failed to roll back account %s after role assignment error: %v (manual cleanup required)", user.ID, delErr)
		}
		return nil, NewDownstreamError(err)
	}

	log.Printf("Admin %s created %s account %s (%s)", caller.ID, req.Role, user.ID, user.Email)
	return user, nil
}

func (p *Provisioner) authenticate(ctx context.Context, authHeader string) (*models.User, error) {
	if authHeader == "" {
		return nil, NewUnauthenticatedError(MsgAuthRequired)
	}

	token := strings.Replace(authHeader, "Bearer ", "", 1)
	caller, err := p.identity.ResolveToken(ctx, token)
	if err != nil || caller == nil {
		return nil, &Error{Kind: KindUnauthenticated, Message: MsgInvalidToken, Err: err}
	}
	return caller, nil
}

func (p *Provisioner) authorize(ctx context.Context, caller *models.User) error {
	role, err := p.identity.GetUserRole(ctx, caller.ID)
	if err != nil || role != models.RoleAdmin {
		return &Error{Kind: KindForbidden, Message: MsgAdminOnly, Err: err}
	}
	return nil
}

func parseProvisionRequest(body []byte) (*ProvisionRequest, error) {
	var req ProvisionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &Error{Kind: KindInvalidInput, Message: err.Error(), Err: err}
	}

	if req.Email == "" || req.Password == "" || req.FullName == "" || req.Role == "" {
		return nil, NewInvalidInputError(MsgMissingFields)
	}

	switch models.Role(req.Role) {
	case models.RoleTeacher, models.RoleStudent:
	default:
		return nil, NewInvalidInputError(MsgInvalidRole)
	}

	return &req, nil
}
