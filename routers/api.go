package routers

import (
	"database/sql"
	"log"
	"os"
	"time"

	"farmmarket/controllers"
	"farmmarket/middlewares"
	"farmmarket/search"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
)

func Route() *gin.Engine {
	router := gin.Default()
	router.Use(CORS())
	api := controllers.NewAPI()

	api.Db = newDB(nil)
	api.Db.SetConnMaxLifetime(5 * time.Minute)
	api.Search = search.NewEngine(api.Db, 20)

	redisHost := os.Getenv("REDIS_HOST")
	redisPort := os.Getenv("REDIS_PORT")

	api.Redis = redis.NewClient(&redis.Options{
		Addr: redisHost + ":" + redisPort,
		DB:   0,
	})

	router.POST("/api/register", api.Register)
	router.POST("/api/login", api.Authenticate)
	router.GET("/api/check-session", middlewares.Auth(api.Redis), api.CheckSession)
	router.GET("/api/refresh-session", middlewares.Auth(api.Redis), api.RefreshSession)
	router.GET("/api/logout", middlewares.Auth(api.Redis), api.Logout)
	router.POST("/api/forgot-password", api.ForgotPassword)
	router.GET("/api/verify-token/:token", api.VerifyTokenReset)
	router.POST("/api/reset-password/:token", api.UpdateUserReset)

	// browsing and search are public
	router.GET("/api/search", api.SearchProducts)
	router.POST("/api/search", api.SearchProductsPost)
	router.GET("/api/categories", api.GetCategories)
	router.GET("/api/sellers/:id", api.GetSellerProfile)

	product := router.Group("/api/products")
	{
		product.GET("", api.ListProducts)
		product.GET("/:id", api.GetProduct)
		// mutations require a session and ownership
		product.POST("", middlewares.Auth(api.Redis), api.CreateProduct)
		product.PUT("/:id", middlewares.Auth(api.Redis), api.UpdateProduct)
		product.DELETE("/:id", middlewares.Auth(api.Redis), api.DeleteProduct)
	}

	profile := router.Group("/api/profile")
	profile.Use(middlewares.Auth(api.Redis))
	{
		profile.GET("", api.GetProfile)
		profile.PUT("", api.UpdateProfile)
	}

	return router
}

// CORS Cross Origin Resource Sharing
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, "+
			"Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func newDB(indb *sql.DB) *sql.DB {
	if indb != nil {
		return indb
	}
	connString := os.Getenv("DB_CONNECTION_STRING")
	if connString == "" {
		log.Fatal("Please provide DB_CONNECTION_STRING environment variable")
	}

	var err error
	conn, err := sql.Open("postgres", connString)
	if err != nil {
		log.Fatalf("Cannot connect to db with connection %s: %v", connString, err)
	}

	err = conn.Ping()
	if err != nil {
		log.Fatal(err)
	}

	return conn
}
