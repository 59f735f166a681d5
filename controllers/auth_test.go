package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"farmmarket/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"gotest.tools/assert"
)

var authLabels = []string{"id", "email", "name", "role", "created_at", "updated_at", "is_correct"}

func TestAuthenticate(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.Equal(t, nil, err)

	api := NewAPI()
	api.Db = db

	// nil request (400)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var genericResp GenericResponse

	req, _ := http.NewRequest("POST", "", nil)
	c.Request = req
	api.Authenticate(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request", genericResp.Message)

	// bad request (400)
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	payload := parsePayload(models.AuthRequest{})
	req, _ = http.NewRequest("POST", "", payload)
	c.Request = req
	api.Authenticate(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing-email-or-password", genericResp.Message)

	// err select (500)
	reqAuth := models.AuthRequest{
		Email:    "farmer@example.com",
		Password: "password123",
	}
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	payload = parsePayload(reqAuth)

	dbMock.ExpectQuery("SELECT id.*").WillReturnError(errors.New("err-select"))

	req, _ = http.NewRequest("POST", "", payload)
	c.Request = req
	api.Authenticate(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "err-select", genericResp.Message)

	// unknown email (401)
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	payload = parsePayload(reqAuth)

	dbMock.ExpectQuery("SELECT id.*").
		WillReturnRows(sqlmock.NewRows(authLabels))

	req, _ = http.NewRequest("POST", "", payload)
	c.Request = req
	api.Authenticate(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid-email-or-password", genericResp.Message)

	// invalid password (401)
	mockUUID := "d234578a-ee95-4dab-b5ed-e0a83b03bbfc"
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	payload = parsePayload(reqAuth)

	dbMock.ExpectQuery("SELECT id.*").
		WillReturnRows(sqlmock.NewRows(authLabels).
			AddRow(mockUUID, reqAuth.Email, "Ana", models.Farmer, time.Now(), time.Now(), false))

	req, _ = http.NewRequest("POST", "", payload)
	c.Request = req
	api.Authenticate(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid-email-or-password", genericResp.Message)

	// err generate token (500)
	redisDB, redisMock := redismock.NewClientMock()
	api.Redis = redisDB

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	payload = parsePayload(reqAuth)

	dbMock.ExpectQuery("SELECT id.*").
		WillReturnRows(sqlmock.NewRows(authLabels).
			AddRow(mockUUID, reqAuth.Email, "Ana", models.Farmer, time.Now(), time.Now(), true))

	redisMock.ExpectGet("auth:" + reqAuth.Email).SetVal("stale-session")
	redisMock.ExpectDel("stale-session").SetVal(1)
	redisMock.Regexp().ExpectSet("[.]", "[.]", 30*time.Minute).SetErr(errors.New("err-set"))

	req, _ = http.NewRequest("POST", "", payload)
	c.Request = req
	api.Authenticate(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "err-set", genericResp.Message)

	// 200
	redisDB, redisMock = redismock.NewClientMock()
	api.Redis = redisDB

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	payload = parsePayload(reqAuth)

	dbMock.ExpectQuery("SELECT id.*").
		WillReturnRows(sqlmock.NewRows(authLabels).
			AddRow(mockUUID, reqAuth.Email, "Ana", models.Farmer, time.Now(), time.Now(), true))

	redisMock.ExpectGet("auth:" + reqAuth.Email).SetVal("stale-session")
	redisMock.ExpectDel("stale-session").SetVal(1)
	redisMock.Regexp().ExpectSet("[.]", "[.]", 30*time.Minute).SetVal("OK")
	redisMock.Regexp().ExpectSet("[.]", "[.]", 30*time.Minute).SetVal("OK")
	redisMock.Regexp().ExpectSet("[.]", "[.]", 30*time.Minute).SetVal("OK")

	req, _ = http.NewRequest("POST", "", payload)
	c.Request = req
	api.Authenticate(c)

	var respOK models.AuthResponse

	err = json.NewDecoder(w.Body).Decode(&respOK)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, reqAuth.Email, respOK.Email)
	assert.Equal(t, "Ana", respOK.Name)
	assert.Equal(t, string(models.Farmer), respOK.Role)
}

func TestCheckSession(t *testing.T) {
	api := NewAPI()

	redisDB, redisMock := redismock.NewClientMock()
	api.Redis = redisDB

	// err redis (500)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var genericResp GenericResponse

	redisMock.ExpectGet("auth:farmer@example.com").SetErr(errors.New("err-redis"))

	req, _ := http.NewRequest("GET", "", nil)
	c.Request = req
	c.Request.Header.Set("payload", "{\"user\":{\"email\":\"farmer@example.com\"}}")
	api.CheckSession(c)

	err := json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "err-redis", genericResp.Message)

	// session gone (401)
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)

	redisMock.ExpectGet("auth:farmer@example.com").SetErr(redis.Nil)

	req, _ = http.NewRequest("GET", "", nil)
	c.Request = req
	c.Request.Header.Set("payload", "{\"user\":{\"email\":\"farmer@example.com\"}}")
	api.CheckSession(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", genericResp.Message)

	// 200
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)

	redisMock.ExpectGet("auth:farmer@example.com").SetVal("token")

	req, _ = http.NewRequest("GET", "", nil)
	c.Request = req
	c.Request.Header.Set("payload", "{\"user\":{\"email\":\"farmer@example.com\"}}")
	api.CheckSession(c)

	var respOk map[string]string
	err = json.NewDecoder(w.Body).Decode(&respOk)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", respOk["message"])
}

func TestLogout(t *testing.T) {
	api := NewAPI()

	redisDB, redisMock := redismock.NewClientMock()
	api.Redis = redisDB

	payloadHeader := "{\"user\":{\"email\":\"farmer@example.com\"},\"refresh-token\":\"refresh123\"}"

	// err redis (500)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var genericResp GenericResponse

	redisMock.ExpectDel("token123").SetErr(errors.New("err-del"))

	req, _ := http.NewRequest("GET", "", nil)
	c.Request = req
	c.Request.Header.Set("Authorization", "Bearer token123")
	c.Request.Header.Set("payload", payloadHeader)
	api.Logout(c)

	err := json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "err-del", genericResp.Message)

	// 200, session, refresh and email keys all dropped
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)

	redisMock.ExpectDel("token123").SetVal(1)
	redisMock.ExpectDel("refresh123").SetVal(1)
	redisMock.ExpectDel("auth:farmer@example.com").SetVal(1)

	req, _ = http.NewRequest("GET", "", nil)
	c.Request = req
	c.Request.Header.Set("Authorization", "Bearer token123")
	c.Request.Header.Set("payload", payloadHeader)
	api.Logout(c)

	var respOk map[string]string
	err = json.NewDecoder(w.Body).Decode(&respOk)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", respOk["message"])
	assert.Equal(t, nil, redisMock.ExpectationsWereMet())
}

func TestForgotPassword(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.Equal(t, nil, err)

	api := NewAPI()
	api.Db = db

	// nil request (400)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var genericResp GenericResponse

	req, _ := http.NewRequest("POST", "", nil)
	c.Request = req
	api.ForgotPassword(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// missing email (400)
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)

	req, _ = http.NewRequest("POST", "", parsePayload(map[string]string{}))
	c.Request = req
	api.ForgotPassword(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing-email", genericResp.Message)

	// unknown address still answers ok (200)
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)

	dbMock.ExpectQuery("SELECT id.*").WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req, _ = http.NewRequest("POST", "", parsePayload(map[string]string{"email": "nobody@example.com"}))
	c.Request = req
	api.ForgotPassword(c)

	var respOk map[string]string
	err = json.NewDecoder(w.Body).Decode(&respOk)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", respOk["message"])

	// err storing token (500)
	redisDB, redisMock := redismock.NewClientMock()
	api.Redis = redisDB

	mockUserID := "63eb226a-d612-412b-b8d4-a3e17b7d2228"
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)

	dbMock.ExpectQuery("SELECT id.*").WithArgs("farmer@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(mockUserID))
	redisMock.Regexp().ExpectSet("reset:.*", mockUserID, 30*time.Minute).SetErr(errors.New("err-set"))

	req, _ = http.NewRequest("POST", "", parsePayload(map[string]string{"email": "farmer@example.com"}))
	c.Request = req
	api.ForgotPassword(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "err-set", genericResp.Message)
}

func TestVerifyTokenReset(t *testing.T) {
	api := NewAPI()

	redisDB, redisMock := redismock.NewClientMock()
	api.Redis = redisDB

	// token not found (404)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var genericResp GenericResponse

	redisMock.ExpectGet("reset:abc123").SetErr(redis.Nil)

	req, _ := http.NewRequest("GET", "", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: "abc123"}}
	api.VerifyTokenReset(c)

	err := json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "token-not-found", genericResp.Message)

	// 200
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)

	redisMock.ExpectGet("reset:abc123").SetVal("user-id")

	req, _ = http.NewRequest("GET", "", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: "abc123"}}
	api.VerifyTokenReset(c)

	var respOk map[string]string
	err = json.NewDecoder(w.Body).Decode(&respOk)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", respOk["message"])
}

func TestUpdateUserReset(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.Equal(t, nil, err)

	api := NewAPI()
	api.Db = db

	// short password (400)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var genericResp GenericResponse

	req, _ := http.NewRequest("POST", "", parsePayload(models.PasswordReset{Password: "short"}))
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: "abc123"}}
	api.UpdateUserReset(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "password-must-be-at-least-8-characters", genericResp.Message)

	// confirmation mismatch (400)
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)

	req, _ = http.NewRequest("POST", "", parsePayload(models.PasswordReset{
		Password: "password123", PasswordConfirmation: "password124"}))
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: "abc123"}}
	api.UpdateUserReset(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "password-confirmation-mismatch", genericResp.Message)

	// token not found (404)
	redisDB, redisMock := redismock.NewClientMock()
	api.Redis = redisDB

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)

	redisMock.ExpectGet("reset:abc123").SetErr(redis.Nil)

	req, _ = http.NewRequest("POST", "", parsePayload(models.PasswordReset{
		Password: "password123", PasswordConfirmation: "password123"}))
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: "abc123"}}
	api.UpdateUserReset(c)

	err = json.NewDecoder(w.Body).Decode(&genericResp)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "token-not-found", genericResp.Message)

	// 200, token and sessions invalidated
	mockUserID := "63eb226a-d612-412b-b8d4-a3e17b7d2228"
	redisDB, redisMock = redismock.NewClientMock()
	api.Redis = redisDB

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)

	redisMock.ExpectGet("reset:abc123").SetVal(mockUserID)
	dbMock.ExpectQuery("UPDATE users.*").WithArgs("password123", mockUserID).
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("farmer@example.com"))
	redisMock.ExpectDel("reset:abc123").SetVal(1)
	redisMock.ExpectDel("auth:farmer@example.com").SetVal(1)

	req, _ = http.NewRequest("POST", "", parsePayload(models.PasswordReset{
		Password: "password123", PasswordConfirmation: "password123"}))
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: "abc123"}}
	api.UpdateUserReset(c)

	var respOk map[string]string
	err = json.NewDecoder(w.Body).Decode(&respOk)
	assert.Equal(t, nil, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", respOk["message"])
	assert.Equal(t, nil, redisMock.ExpectationsWereMet())
}
