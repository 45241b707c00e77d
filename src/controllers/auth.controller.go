package controllers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"carhub/src/db"
	"carhub/src/lib"
	"carhub/src/models"
	"carhub/src/types"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SyncUser mirrors the identity provider's user into the local users table.
// Keyed on the external uid, so calling it on every sign-in is safe: an
// existing row is updated in place, never duplicated.
func SyncUser(ctx *gin.Context) (*models.User, int, error) {
	var body types.SyncUserRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("%s: %w", err.Error(), types.ErrValidation)
	}
	role := types.UserRole(body.Role)
	if role == "" {
		role = types.ROLE_BUYER
	}
	user := models.User{
		UID:   body.UID,
		Email: body.Email,
		Name:  body.Name,
		Role:  role,
	}
	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "uid"}},
				DoUpdates: clause.AssignmentColumns([]string{"email", "name"}),
			}).
			Create(&user).
			Error
	})
	if err != nil {
		log.Printf("SyncUser failed for uid [%s]: %s\n", body.UID, err.Error())
		return nil, http.StatusInternalServerError, err
	}
	if rd := lib.GetRedisClient(); rd != nil {
		rd.Set(context.Background(), fmt.Sprintf("user:%s:email", user.UID), user.Email, 24*time.Hour)
	}
	return &user, http.StatusOK, nil
}
