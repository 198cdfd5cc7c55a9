package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"contentops-backend/auth"
)

const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

type User struct {
	Id        string  `json:"id" gorm:"primaryKey"`
	FirstName string  `json:"first_name" gorm:"not null"`
	LastName  string  `json:"last_name" gorm:"not null"`
	Email     string  `json:"email" gorm:"unique;not null"`
	Password  []byte  `json:"-" gorm:"not null"`
	Role      string  `json:"role" gorm:"not null;default:client"`
	ClientID  *string `json:"client_id" gorm:"index"`
}

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	user.Id = uuid.NewString()
	return
}

func (user *User) SetPassword(password string) error {
	hashed, err := auth.HashSecret(password)
	if err != nil {
		return err
	}
	user.Password = hashed
	return nil
}

func (user *User) ComparePassword(password string) error {
	return auth.VerifySecret(password, user.Password)
}
