package casdoor

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/redis/go-redis/v9"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/cache"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/models"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/repositories"
)

// Casdoor user properties carrying ranking scope membership.
const (
	PropertyDepartment = "department_id"
	PropertyCollege    = "college_id"
)

// CasdoorConfig holds the configuration for Casdoor connection
type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
}

// userSource is the subset of the Casdoor client used for lookups.
type userSource interface {
	GetUserByUserId(userId string) (*casdoorsdk.User, error)
}

type UserCasdoor struct {
	client userSource
	users  *cache.CacheHelper
}

// UserCacheConfig bounds how long a role or scope change in Casdoor can go
// unnoticed.
var UserCacheConfig = cache.CacheConfig{
	TTL:    15 * time.Minute,
	Prefix: "user:",
}

func NewUserCasdoor(config CasdoorConfig, redisClient *redis.Client) *UserCasdoor {
	client := casdoorsdk.NewClient(
		config.Endpoint,
		config.ClientID,
		config.ClientSecret,
		config.Certificate,
		config.OrganizationName,
		config.ApplicationName,
	)
	return newUserCasdoor(client, redisClient)
}

func newUserCasdoor(client userSource, redisClient *redis.Client) *UserCasdoor {
	return &UserCasdoor{
		client: client,
		users:  cache.NewCacheHelper(redisClient, UserCacheConfig),
	}
}

// ===== CONVERSION METHODS =====

func convertCasdoorUserToModel(casdoorUser *casdoorsdk.User) *models.User {
	if casdoorUser == nil {
		return nil
	}

	user := &models.User{
		ID:       casdoorUser.Id,
		FullName: casdoorUser.DisplayName,
		Email:    casdoorUser.Email,
		Role:     convertCasdoorRolesToModel(casdoorUser),
	}
	if v := propertyOrEmpty(casdoorUser.Properties, PropertyDepartment); v != "" {
		user.DepartmentID = &v
	}
	if v := propertyOrEmpty(casdoorUser.Properties, PropertyCollege); v != "" {
		user.CollegeID = &v
	}
	return user
}

// ToUser converts a Casdoor account, such as the one embedded in token
// claims. Accounts without roles fall back to their account type.
func ToUser(casdoorUser *casdoorsdk.User) *models.User {
	user := convertCasdoorUserToModel(casdoorUser)
	if user != nil && user.Role == models.RoleStudent {
		user.Role = mapSingleCasdoorRoleToUserRole(casdoorUser.Type)
	}
	return user
}

func convertCasdoorRolesToModel(casdoorUser *casdoorsdk.User) models.UserRole {
	var roles []models.UserRole
	for _, casdoorRole := range casdoorUser.Roles {
		if casdoorRole == nil {
			continue
		}
		mapped := mapSingleCasdoorRoleToUserRole(casdoorRole.Name)
		if !slices.Contains(roles, mapped) {
			roles = append(roles, mapped)
		}
	}

	// admin wins over any other role
	if slices.Contains(roles, models.RoleAdmin) || casdoorUser.IsAdmin {
		return models.RoleAdmin
	}
	if slices.Contains(roles, models.RoleFaculty) {
		return models.RoleFaculty
	}
	return models.RoleStudent
}

func mapSingleCasdoorRoleToUserRole(casdoorType string) models.UserRole {
	switch strings.ToLower(casdoorType) {
	case "teacher", "instructor", "faculty", "proctor":
		return models.RoleFaculty
	case "admin", "administrator":
		return models.RoleAdmin
	default:
		return models.RoleStudent
	}
}

func propertyOrEmpty(properties map[string]string, key string) string {
	if properties == nil {
		return ""
	}
	return strings.TrimSpace(properties[key])
}

// ===== READ OPERATIONS =====

// GetByID retrieves a user by ID, consulting redis before Casdoor.
func (u *UserCasdoor) GetByID(ctx context.Context, id string) (*models.User, error) {
	return cache.ReadThrough(ctx, u.users, "id:"+id, func() (*models.User, error) {
		casdoorUser, err := u.client.GetUserByUserId(id)
		if err != nil {
			return nil, fmt.Errorf("failed to get user from Casdoor: %w", err)
		}
		if casdoorUser == nil {
			return nil, fmt.Errorf("user %s: %w", id, repositories.ErrNotFound)
		}
		return convertCasdoorUserToModel(casdoorUser), nil
	})
}

var _ repositories.IdentityRepository = (*UserCasdoor)(nil)

// StaticIdentity is an identity source backed by a user table filled at
// startup or from verified token claims, used when the service runs without
// Casdoor.
type StaticIdentity struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

func NewStaticIdentity(users ...*models.User) *StaticIdentity {
	s := &StaticIdentity{users: make(map[string]*models.User, len(users))}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

// Put records or replaces a user.
func (s *StaticIdentity) Put(user *models.User) {
	cp := *user
	s.mu.Lock()
	s.users[user.ID] = &cp
	s.mu.Unlock()
}

func (s *StaticIdentity) GetByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	u, ok := s.users[id]
	s.mu.RUnlock()
	if ok {
		cp := *u
		return &cp, nil
	}
	// Unknown callers are treated as students without scope membership.
	return &models.User{ID: id, Role: models.RoleStudent}, nil
}
