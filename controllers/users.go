package controllers

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/mail"

	"farmmarket/models"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

// Register creates a farmer or buyer account. The role comes from the
// signup form; admins are provisioned out of band.
func (api *API) Register(c *gin.Context) {
	var user models.User
	if err := c.ShouldBindJSON(&user); err != nil {
		log.Println(err)
		sendError(c, http.StatusBadRequest, err.Error())
		return
	}

	if user.Role == "" {
		user.Role = string(models.Buyer)
	}

	if err := validateUser(user, true); err != nil {
		log.Println(err)
		sendError(c, http.StatusBadRequest, err.Error())
		return
	}

	var exists bool
	if err := api.Db.QueryRow("SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND NOT deleted)", user.Email).Scan(&exists); err != nil {
		log.Println(err)
		sendInternalError(c, err)
		return
	}

	if exists {
		sendError(c, http.StatusConflict, "email-already-exist")
		return
	}

	if _, err := api.Db.Exec(`
		INSERT INTO users (email, name, password, role, location, latitude, longitude, created_at, updated_at)
		VALUES ($1, $2, crypt($3, gen_salt('bf', 8)), $4, $5, $6, $7, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, user.Email, user.Name, user.Password, user.Role, nullString(user.Location), user.Latitude, user.Longitude); err != nil {
		log.Println(err)
		sendInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, genericOK)
}

func (api *API) GetProfile(c *gin.Context) {
	userId := ParsePayload(c).Id

	if userId == "" {
		sendError(c, http.StatusBadRequest, "missing-id")
		return
	}

	if _, err := uuid.FromString(userId); err != nil {
		sendError(c, http.StatusBadRequest, "invalid-id")
		return
	}

	user, err := api.getUser("id = $1", userId)
	if err != nil {
		if err == sql.ErrNoRows {
			sendError(c, http.StatusNotFound, "user-not-found")
			return
		}

		log.Println(err)
		sendInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetSellerProfile is the public view of a farmer, shown on product pages.
func (api *API) GetSellerProfile(c *gin.Context) {
	sellerId := c.Param("id")

	if _, err := uuid.FromString(sellerId); err != nil {
		sendError(c, http.StatusBadRequest, "invalid-id")
		return
	}

	user, err := api.getUser("id = $1 AND role = $2", sellerId, string(models.Farmer))
	if err != nil {
		if err == sql.ErrNoRows {
			sendError(c, http.StatusNotFound, "seller-not-found")
			return
		}

		log.Println(err)
		sendInternalError(c, err)
		return
	}

	// buyers do not get the seller's contact address
	user.Email = ""

	c.JSON(http.StatusOK, user)
}

func (api *API) UpdateProfile(c *gin.Context) {
	userId := ParsePayload(c).Id

	var user models.User
	if err := c.ShouldBindJSON(&user); err != nil {
		log.Println(err)
		sendError(c, http.StatusBadRequest, err.Error())
		return
	}

	updatePassword := user.Password != ""

	if err := validateUser(user, updatePassword); err != nil {
		log.Println(err)
		sendError(c, http.StatusBadRequest, err.Error())
		return
	}

	q := "UPDATE users SET name = $1, email = $2, location = $3, latitude = $4, longitude = $5"
	stms := []interface{}{user.Name, user.Email, nullString(user.Location), user.Latitude, user.Longitude}

	if updatePassword {
		q += fmt.Sprintf(", password = crypt($%d, gen_salt('bf', 8))", len(stms)+1)
		stms = append(stms, user.Password)
	}

	stms = append(stms, userId)
	q += fmt.Sprintf(", updated_at = CURRENT_TIMESTAMP WHERE id = $%d AND NOT deleted", len(stms))

	if _, err := api.Db.Exec(q, stms...); err != nil {
		log.Println(err)
		sendInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, genericOK)
}

func (api *API) getUser(where string, stms ...interface{}) (user models.User, err error) {
	var location sql.NullString
	var latitude, longitude sql.NullFloat64

	err = api.Db.QueryRow(`SELECT id, email, name, role, location, latitude, longitude, created_at, updated_at
		FROM users WHERE NOT deleted AND `+where, stms...).
		Scan(&user.Id, &user.Email, &user.Name, &user.Role, &location, &latitude, &longitude,
			&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return
	}

	user.Location = location.String
	if latitude.Valid && longitude.Valid {
		user.Latitude = &latitude.Float64
		user.Longitude = &longitude.Float64
	}

	return
}

func validateUser(user models.User, checkPassword bool) error {
	if user.Email == "" {
		return errors.New("missing-email")
	}

	if user.Name == "" {
		return errors.New("missing-name")
	}

	if _, err := mail.ParseAddress(user.Email); err != nil {
		log.Println(err)
		return errors.New("invalid-email")
	}

	if user.Role != "" && user.Role != string(models.Farmer) && user.Role != string(models.Buyer) {
		return errors.New("invalid-role")
	}

	if (user.Latitude == nil) != (user.Longitude == nil) {
		return errors.New("incomplete-coordinates")
	}

	if checkPassword {
		if user.Password == "" {
			return errors.New("missing-password")
		}

		if len(user.Password) < 8 {
			return errors.New("password-must-be-at-least-8-characters")
		}
	}

	return nil
}
