package models

import (
	"context"
	"errors"
	"time"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/utils"
)

type UserRole string

const (
	UserRoleAdmin        UserRole = "admin"
	UserRoleDoctor       UserRole = "doctor"
	UserRoleReceptionist UserRole = "receptionist"
	UserRolePharmacist   UserRole = "pharmacist"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	FullName  string    `gorm:"size:200" json:"full_name"`
	Role      UserRole  `gorm:"type:enum('admin','doctor','receptionist','pharmacist');not null;default:receptionist" json:"role"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewUser struct {
	Username string   `json:"username" validate:"required,min=3"`
	Password string   `json:"password" validate:"required,min=8"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role" validate:"required,oneof=admin doctor receptionist pharmacist"`
}

var ErrInvalidCredentials = errors.New("invalid username or password")

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[User](ctx, "username", input.Username, 0); err != nil {
		return nil, err
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		Username: input.Username,
		Password: hashed,
		FullName: input.FullName,
		Role:     input.Role,
		IsActive: utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Login checks the credentials and issues a signed token carrying the
// user's id and role.
func Login(ctx context.Context, username string, password string) (string, *User, error) {
	db := config.GetDB()
	var user User
	err := db.WithContext(ctx).
		Where("username = ? AND is_active = true", username).
		First(&user).Error
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}

	if err := utils.ComparePassword(user.Password, password); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := utils.JwtGenerate(user.ID, string(user.Role))
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	user, err := utils.FetchSingleModel[User](ctx, id)
	if err != nil {
		return nil, newConcurrentModification("user", id, err)
	}
	return user, nil
}
