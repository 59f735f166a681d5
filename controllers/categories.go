package controllers

import (
	"log"
	"net/http"

	"farmmarket/models"

	"github.com/gin-gonic/gin"
)

// GetCategories returns the distinct category labels currently in use,
// with listing counts, for the search filter dropdown.
func (api *API) GetCategories(c *gin.Context) {
	rows, err := api.Db.Query(`
		SELECT category, COUNT(1) FROM products
		WHERE NOT deleted AND category IS NOT NULL AND category <> ''
		GROUP BY category
		ORDER BY category ASC`)
	if err != nil {
		log.Println(err)
		sendInternalError(c, err)
		return
	}

	defer rows.Close()

	categories := []models.CategoryCount{}
	for rows.Next() {
		var category models.CategoryCount
		if err := rows.Scan(&category.Name, &category.Total); err != nil {
			log.Println(err)
			sendInternalError(c, err)
			return
		}

		categories = append(categories, category)
	}

	c.JSON(http.StatusOK, models.CategoryList{Categories: categories})
}
