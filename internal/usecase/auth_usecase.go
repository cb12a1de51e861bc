package usecase

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"xprexx/internal/config"
	"xprexx/internal/domain/model"
	"xprexx/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

var (
	//400 入力不足
	ErrValidation = NewHTTPError(http.StatusBadRequest, "validation error")
	//401 認証失敗
	ErrUnauthorized = NewHTTPError(http.StatusUnauthorized, MsgUnauthorized)
	//403　停止ユーザー
	ErrForbidden = NewHTTPError(http.StatusForbidden, "forbidden")
	//409 email重複
	ErrEmailAlreadyUsed = NewHTTPError(http.StatusConflict, "email already used")
	//500
	ErrInternal = NewHTTPError(http.StatusInternalServerError, "internal error")
)

// accesstokenの有効期限
const accessTokenTTL = 15 * time.Minute

// usecaseがValidatorInterfaceに依存する約束
type AuthValidator interface {
	ValidateRegister(ctx context.Context, email string, password string) error
	ValidateLogin(ctx context.Context, email string, password string) error
	ValidateForceLogout(ctx context.Context, targetUserID int64) error
}

type UserDTO struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	TokenVersion int        `json:"token_version"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

type JwtAccessTokenDTO struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenVersion int    `json:"token_version"`
}

type AuthRegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type AuthRegisterResponse struct {
	User UserDTO `json:"user"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginResponse struct {
	User  UserDTO           `json:"user"`
	Token JwtAccessTokenDTO `json:"token"`
}

type ForceLogoutResponse struct {
	UserID          int64 `json:"user_id"`
	NewTokenVersion int   `json:"new_token_version"`
}

type UserListOutput struct {
	Items []UserDTO `json:"items"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}

type AuthUsecase struct {
	cfg       config.Config
	users     repository.UserRepository
	auditRepo repository.AuditLogRepository
	validator AuthValidator
	clock     Clock
}

func NewAuthUsecase(
	cfg config.Config,
	users repository.UserRepository,
	auditRepo repository.AuditLogRepository,
	validator AuthValidator,
	clock Clock,
) *AuthUsecase {
	return &AuthUsecase{
		cfg:       cfg,
		users:     users,
		auditRepo: auditRepo,
		validator: validator,
		clock:     clock,
	}
}

func (u *AuthUsecase) Register(ctx context.Context, req AuthRegisterRequest) (*AuthRegisterResponse, error) {
	user, err := u.createUser(ctx, req, model.RoleUser)
	if err != nil {
		return nil, err
	}
	return &AuthRegisterResponse{User: toUserDTO(user)}, nil
}

// 管理者アカウント作成（CLIからのみ）
func (u *AuthUsecase) CreateAdmin(ctx context.Context, req AuthRegisterRequest) (*UserDTO, error) {
	user, err := u.createUser(ctx, req, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	dto := toUserDTO(user)
	return &dto, nil
}

func (u *AuthUsecase) createUser(ctx context.Context, req AuthRegisterRequest, role model.Role) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	//入力検証（validatorに寄せる）
	if err := u.validator.ValidateRegister(ctx, email, req.Password); err != nil {
		return nil, err
	}

	//パスワードは必ずハッシュ化して保存（平文保存しない）
	pwHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrInternal
	}

	user := &model.User{
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(pwHash),
		Role:         role,
		TokenVersion: 0,
		IsActive:     true,
	}

	if err := u.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrEmailAlreadyUsed
		}
		return nil, storeUnavailable(err)
	}
	return user, nil
}

func (u *AuthUsecase) Login(ctx context.Context, req AuthLoginRequest) (*AuthLoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := u.validator.ValidateLogin(ctx, email, req.Password); err != nil {
		return nil, err
	}

	//ユーザー取得
	user, err := u.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, storeUnavailable(err)
	}
	if user == nil {
		return nil, ErrUnauthorized
	}

	//パスワード照合（bcrypt）
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrUnauthorized
	}

	//停止ユーザーはログイン不可
	if !user.IsActive {
		return nil, ErrForbidden
	}

	//last_login更新（失敗してもログインは通す）
	now := u.clock.Now()
	user.LastLoginAt = &now
	_ = u.users.Update(ctx, user)

	accessToken, expiresIn, err := u.issueAccessToken(user, now)
	if err != nil {
		return nil, ErrInternal
	}

	return &AuthLoginResponse{
		User: toUserDTO(user),
		Token: JwtAccessTokenDTO{
			AccessToken:  accessToken,
			ExpiresIn:    expiresIn,
			TokenVersion: user.TokenVersion,
		},
	}, nil
}

func (u *AuthUsecase) Me(ctx context.Context, userID int64) (*UserDTO, error) {
	if userID <= 0 {
		return nil, ErrUnauthorized
	}

	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return nil, storeUnavailable(err)
	}
	if user == nil {
		return nil, ErrUnauthorized
	}
	if !user.IsActive {
		return nil, ErrForbidden
	}

	dto := toUserDTO(user)
	return &dto, nil
}

// token_versionを上げて、発行済みのaccess tokenを全部無効にする
func (u *AuthUsecase) ForceLogout(ctx context.Context, actor model.Actor, targetUserID int64) (*ForceLogoutResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := u.validator.ValidateForceLogout(ctx, targetUserID); err != nil {
		return nil, err
	}

	before, err := u.findUser(ctx, targetUserID)
	if err != nil {
		return nil, err
	}

	if err := u.users.IncrementTokenVersion(ctx, targetUserID); err != nil {
		return nil, storeError(err, "user not found")
	}

	//更新後を取得してnew_token_versionを返す
	user, err := u.findUser(ctx, targetUserID)
	if err != nil {
		return nil, err
	}

	u.writeUserAudit(ctx, actor, model.AuditActionForceLogout, user.ID,
		map[string]int{"token_version": before.TokenVersion},
		map[string]int{"token_version": user.TokenVersion},
	)

	return &ForceLogoutResponse{
		UserID:          user.ID,
		NewTokenVersion: user.TokenVersion,
	}, nil
}

func (u *AuthUsecase) ListUsers(ctx context.Context, actor model.Actor, page int, limit int) (UserListOutput, error) {
	if err := requireAdmin(actor); err != nil {
		return UserListOutput{}, err
	}
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = 50
	}
	if page < 1 {
		return UserListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if limit < 1 || limit > 100 {
		return UserListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	users, total, err := u.users.List(ctx, page, limit)
	if err != nil {
		return UserListOutput{}, storeUnavailable(err)
	}

	items := make([]UserDTO, 0, len(users))
	for i := range users {
		items = append(items, toUserDTO(&users[i]))
	}
	return UserListOutput{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// 停止にしたときはtoken_versionも上げて即ログアウトさせる
func (u *AuthUsecase) SetUserActive(ctx context.Context, actor model.Actor, targetUserID int64, active bool) (*UserDTO, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if targetUserID <= 0 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid user_id")
	}
	if targetUserID == actor.UserID && !active {
		return nil, NewHTTPError(http.StatusConflict, "cannot deactivate yourself")
	}

	before, err := u.findUser(ctx, targetUserID)
	if err != nil {
		return nil, err
	}

	if err := u.users.SetActive(ctx, targetUserID, active); err != nil {
		return nil, storeError(err, "user not found")
	}
	if !active {
		if err := u.users.IncrementTokenVersion(ctx, targetUserID); err != nil {
			return nil, storeError(err, "user not found")
		}
	}

	user, err := u.findUser(ctx, targetUserID)
	if err != nil {
		return nil, err
	}

	u.writeUserAudit(ctx, actor, model.AuditActionUpdateUserActive, user.ID,
		map[string]bool{"is_active": before.IsActive},
		map[string]bool{"is_active": user.IsActive},
	)

	dto := toUserDTO(user)
	return &dto, nil
}

func (u *AuthUsecase) findUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := u.users.FindByID(ctx, id)
	if err != nil {
		return nil, storeUnavailable(err)
	}
	if user == nil {
		return nil, NewHTTPError(http.StatusNotFound, "user not found")
	}
	return user, nil
}

// ユーザー操作の監査ログ（失敗しても操作自体は戻さない）
func (u *AuthUsecase) writeUserAudit(ctx context.Context, actor model.Actor, action model.AuditAction, userID int64, before interface{}, after interface{}) {
	if u.auditRepo == nil {
		return
	}
	_ = u.auditRepo.Create(ctx, model.AuditLog{
		ActorUserID:  actor.UserID,
		Action:       action,
		ResourceType: model.AuditResourceUser,
		ResourceID:   strconv.FormatInt(userID, 10),
		BeforeJSON:   auditJSON(before),
		AfterJSON:    auditJSON(after),
		CreatedAt:    u.clock.Now(),
	})
}

// jwt発行
func (u *AuthUsecase) issueAccessToken(user *model.User, now time.Time) (string, int, error) {
	exp := now.Add(accessTokenTTL)

	claims := jwt.MapClaims{
		"sub":  user.ID,
		"role": string(user.Role),
		"tv":   user.TokenVersion,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := t.SignedString([]byte(u.cfg.JWTSecret))
	if err != nil {
		return "", 0, err
	}

	return signed, int(accessTokenTTL.Seconds()), nil
}

// model.UserをAPI返却用DTOに変換。
func toUserDTO(u *model.User) UserDTO {
	return UserDTO{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         string(u.Role),
		TokenVersion: u.TokenVersion,
		IsActive:     u.IsActive,
		LastLoginAt:  u.LastLoginAt,
	}
}
