package controllers

import (
	"log"
	"net/http"
	"strconv"

	"farmmarket/search"

	"github.com/gin-gonic/gin"
)

// SearchProducts handles GET /api/search with query-string parameters.
func (api *API) SearchProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))

	q := search.Query{
		Text:     c.Query("query"),
		Category: c.Query("category"),
		SortBy:   c.Query("sortBy"),
		Page:     page,
		PageSize: pageSize,
	}

	latS, lngS := c.Query("lat"), c.Query("lng")
	if latS != "" || lngS != "" {
		loc := &search.Location{}
		if lat, err := strconv.ParseFloat(latS, 64); err == nil {
			loc.Lat = &lat
		}
		if lng, err := strconv.ParseFloat(lngS, 64); err == nil {
			loc.Lng = &lng
		}
		loc.RadiusMeters, _ = strconv.ParseFloat(c.Query("radius"), 64)
		q.Location = loc
	}

	api.runSearch(c, q)
}

// SearchProductsPost handles POST /api/search with the filters as a JSON
// body, the shape the dashboard submits.
func (api *API) SearchProductsPost(c *gin.Context) {
	var q search.Query
	if err := c.ShouldBindJSON(&q); err != nil {
		log.Println(err)
		sendError(c, http.StatusBadRequest, err.Error())
		return
	}

	// the body endpoint historically served smaller pages
	if q.PageSize < 1 {
		q.PageSize = 10
	}

	api.runSearch(c, q)
}

func (api *API) runSearch(c *gin.Context, q search.Query) {
	result, err := api.Search.Search(q)
	if err != nil {
		if search.IsValidationError(err) {
			sendError(c, http.StatusBadRequest, err.Error())
			return
		}
		log.Println(err)
		sendInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
