package controllers

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"farmmarket/models"

	"github.com/360EntSecGroup-Skylar/excelize/v2"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

const productColumns = `id, product_name, description, price, unit, category, location,
	latitude, longitude, rating, image, seller_id, created_at, updated_at`

// ListProducts is the public listing feed, newest first. It backs both the
// buyer dashboard and the seller's "my listings" view (seller_id filter),
// and can stream the result as a spreadsheet instead of JSON.
func (api *API) ListProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	sellerId := c.Query("seller_id")

	asExcel, _ := strconv.ParseBool(c.Query("export_as_excel"))

	if page < 1 {
		page = 1
	}

	if limit < 1 {
		limit = 20
	}

	selectQ := "SELECT " + productColumns + " FROM products WHERE NOT deleted"
	countQ := "SELECT COUNT(1) FROM products WHERE NOT deleted"

	var filterQ string
	var stms []interface{}

	if _, err := uuid.FromString(sellerId); err == nil {
		filterQ = fmt.Sprintf(" AND seller_id = $%d", len(stms)+1)
		stms = append(stms, sellerId)
	}

	selectQ += filterQ
	countQ += filterQ

	offset := (page - 1) * limit
	pagination := fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	orderVal := " ORDER BY created_at DESC, id ASC"

	products, err := api.getProducts(selectQ+orderVal+pagination, stms)
	if err != nil {
		log.Println(err)
		sendInternalError(c, err)
		return
	}

	if asExcel {
		handleExcelListings(c, products)
		return
	}

	var productList models.ProductList
	productList.Total, err = api.GetTotal(countQ, stms)
	if err != nil {
		log.Println(err)
		sendInternalError(c, err)
		return
	}

	productList.Products = products
	productList.Limit = limit
	productList.Page = page

	c.JSON(http.StatusOK, productList)
}

func (api *API) GetProduct(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.FromString(id); err != nil {
		sendError(c, http.StatusBadRequest, "invalid-id")
		return
	}

	product, err := api.scanProduct(api.Db.QueryRow(
		"SELECT "+productColumns+" FROM products WHERE id = $1 AND NOT deleted", id))
	if err != nil {
		if err == sql.ErrNoRows {
			sendError(c, http.StatusNotFound, "product-not-found")
			return
		}
		log.Println(err)
		sendInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (api *API) CreateProduct(c *gin.Context) {
	u := ParsePayload(c)

	if u.Role != string(models.Farmer) && u.Role != string(models.Admin) {
		sendError(c, http.StatusForbidden, "only-farmers-can-list-produce")
		return
	}

	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		log.Println(err)
		sendError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := validateProduct(product); err != nil {
		sendError(c, http.StatusBadRequest, err.Error())
		return
	}

	product.Id = uuid.Must(uuid.NewV4()).String()
	product.SellerId = u.Id

	err := api.Db.QueryRow(`
		INSERT INTO products
		(id, product_name, description, price, unit, category, location,
			latitude, longitude, rating, image, seller_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING created_at, updated_at
	`, product.Id, product.ProductName, nullString(product.Description), product.Price,
		nullString(product.Unit), nullString(product.Category), nullString(product.Location),
		product.Latitude, product.Longitude, product.Rating, nullString(product.Image),
		product.SellerId).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		log.Println(err)
		sendInternalError(c, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

func (api *API) UpdateProduct(c *gin.Context) {
	u := ParsePayload(c)

	id := c.Param("id")
	if _, err := uuid.FromString(id); err != nil {
		sendError(c, http.StatusBadRequest, "invalid-id")
		return
	}

	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		log.Println(err)
		sendError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := validateProduct(product); err != nil {
		sendError(c, http.StatusBadRequest, err.Error())
		return
	}

	q := `UPDATE products SET
			product_name = $1, description = $2, price = $3, unit = $4,
			category = $5, location = $6, latitude = $7, longitude = $8,
			rating = $9, image = $10, updated_at = CURRENT_TIMESTAMP
		WHERE id = $11 AND NOT deleted`
	stms := []interface{}{product.ProductName, nullString(product.Description),
		product.Price, nullString(product.Unit), nullString(product.Category),
		nullString(product.Location), product.Latitude, product.Longitude,
		product.Rating, nullString(product.Image), id}

	// a not-owned row answers 404, same as an absent one
	if u.Role != string(models.Admin) {
		q += fmt.Sprintf(" AND seller_id = $%d", len(stms)+1)
		stms = append(stms, u.Id)
	}

	q += " RETURNING seller_id, created_at, updated_at"

	product.Id = id
	err := api.Db.QueryRow(q, stms...).Scan(&product.SellerId, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			sendError(c, http.StatusNotFound, "product-not-found")
			return
		}
		log.Println(err)
		sendInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (api *API) DeleteProduct(c *gin.Context) {
	u := ParsePayload(c)

	id := c.Param("id")
	if _, err := uuid.FromString(id); err != nil {
		sendError(c, http.StatusBadRequest, "invalid-id")
		return
	}

	q := "UPDATE products SET deleted = true, updated_at = CURRENT_TIMESTAMP WHERE id = $1 AND NOT deleted"
	stms := []interface{}{id}

	if u.Role != string(models.Admin) {
		q += fmt.Sprintf(" AND seller_id = $%d", len(stms)+1)
		stms = append(stms, u.Id)
	}

	tag, err := api.Db.Exec(q, stms...)
	if err != nil {
		log.Println(err)
		sendInternalError(c, err)
		return
	}

	if t, _ := tag.RowsAffected(); t == 0 {
		sendError(c, http.StatusNotFound, "product-not-found")
		return
	}

	c.Status(http.StatusNoContent)
}

func handleExcelListings(c *gin.Context, products []models.Product) {
	if len(products) == 0 {
		sendError(c, http.StatusNotFound, "products-not-found")
		return
	}

	f := excelize.NewFile()

	sheet := "Listings"
	f.NewSheet(sheet)
	// delete default sheet
	f.DeleteSheet("Sheet1")

	err := f.SetColWidth(sheet, "A", "G", 30)
	if err != nil {
		sendInternalError(c, err)
		return
	}

	headerStyle, err := f.NewStyle(s1)
	if err != nil {
		sendInternalError(c, err)
		return
	}

	dataStyle, err := f.NewStyle(s2)
	if err != nil {
		sendInternalError(c, err)
		return
	}

	streamWriter, err := f.NewStreamWriter(sheet)
	if err != nil {
		sendInternalError(c, err)
		return
	}

	if err = streamWriter.SetRow("A1", []interface{}{
		excelize.Cell{StyleID: headerStyle, Value: "Product"},
		excelize.Cell{StyleID: headerStyle, Value: "Category"},
		excelize.Cell{StyleID: headerStyle, Value: "Price"},
		excelize.Cell{StyleID: headerStyle, Value: "Unit"},
		excelize.Cell{StyleID: headerStyle, Value: "Location"},
		excelize.Cell{StyleID: headerStyle, Value: "Rating"},
		excelize.Cell{StyleID: headerStyle, Value: "Listed"}}); err != nil {
		sendInternalError(c, err)
		return
	}

	for n, product := range products {
		rating := "-"
		if product.Rating != nil {
			rating = fmt.Sprintf("%.1f", *product.Rating)
		}

		row := make([]interface{}, 7)
		row[0] = excelize.Cell{StyleID: dataStyle, Value: product.ProductName}
		row[1] = excelize.Cell{StyleID: dataStyle, Value: product.Category}
		row[2] = excelize.Cell{StyleID: dataStyle, Value: "$" + humanize.Commaf(product.Price)}
		row[3] = excelize.Cell{StyleID: dataStyle, Value: product.Unit}
		row[4] = excelize.Cell{StyleID: dataStyle, Value: product.Location}
		row[5] = excelize.Cell{StyleID: dataStyle, Value: rating}
		row[6] = excelize.Cell{StyleID: dataStyle, Value: humanize.Time(product.CreatedAt)}

		cell, _ := excelize.CoordinatesToCellName(1, n+2)
		if err = streamWriter.SetRow(cell, row); err != nil {
			sendInternalError(c, err)
			return
		}
	}

	if err := streamWriter.Flush(); err != nil {
		sendInternalError(c, err)
		return
	}

	fileName := fmt.Sprintf("listings_%s.xlsx", time.Now().UTC().Format("20060102_150405"))

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment;filename=\""+fileName+"\"")

	if _, err := f.WriteTo(c.Writer); err != nil {
		sendInternalError(c, err)
		return
	}
}

func (api *API) getProducts(q string, stms []interface{}) (products []models.Product, err error) {
	rows, err := api.Db.Query(q, stms...)
	if err != nil {
		log.Println(err)
		return
	}

	defer rows.Close()

	products = []models.Product{}
	for rows.Next() {
		product, err := api.scanProduct(rows)
		if err != nil {
			log.Println(err)
			return nil, err
		}

		products = append(products, product)
	}

	return
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (api *API) scanProduct(row rowScanner) (product models.Product, err error) {
	var description, unit, category, location, image sql.NullString
	var latitude, longitude, rating sql.NullFloat64

	err = row.Scan(&product.Id, &product.ProductName, &description, &product.Price,
		&unit, &category, &location, &latitude, &longitude, &rating,
		&image, &product.SellerId, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return
	}

	product.Description = description.String
	product.Unit = unit.String
	product.Category = category.String
	product.Location = location.String
	product.Image = image.String

	if latitude.Valid && longitude.Valid {
		product.Latitude = &latitude.Float64
		product.Longitude = &longitude.Float64
	}
	if rating.Valid {
		product.Rating = &rating.Float64
	}

	return
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func validateProduct(product models.Product) error {
	if product.ProductName == "" {
		return errors.New("missing-product-name")
	}

	if product.Price < 0 {
		return errors.New("invalid-price")
	}

	if product.Rating != nil && (*product.Rating < 0 || *product.Rating > 5) {
		return errors.New("invalid-rating")
	}

	if (product.Latitude == nil) != (product.Longitude == nil) {
		return errors.New("incomplete-coordinates")
	}

	if product.Latitude != nil {
		if *product.Latitude < -90 || *product.Latitude > 90 ||
			*product.Longitude < -180 || *product.Longitude > 180 {
			return errors.New("invalid-coordinates")
		}
	}

	return nil
}
