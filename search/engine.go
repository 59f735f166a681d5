package search

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"

	"farmmarket/models"
)

const (
	SortRelevance = "relevance"
	SortPriceLow  = "price_low"
	SortPriceHigh = "price_high"
	SortRating    = "rating"
	SortDistance  = "distance"
)

const (
	MaxPageSize         = 100
	DefaultRadiusMeters = 50000
)

var sortOptions = []string{SortRelevance, SortPriceLow, SortPriceHigh, SortRating, SortDistance}

var (
	ErrInvalidSort        = errors.New("invalid-sort-option-must-be-one-of-" + strings.Join(sortOptions, "-"))
	ErrIncompleteLocation = errors.New("incomplete-location-both-lat-and-lng-required")
	ErrInvalidCoordinates = errors.New("invalid-coordinates")
	ErrDistanceSort       = errors.New("distance-sort-requires-location")
)

// IsValidationError reports whether err is caller-fixable, i.e. detected
// before any database access.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidSort) ||
		errors.Is(err, ErrIncompleteLocation) ||
		errors.Is(err, ErrInvalidCoordinates) ||
		errors.Is(err, ErrDistanceSort)
}

// Location is a reference point with a radius in meters. Lat and Lng are
// pointers so a request carrying only one of them can be rejected instead
// of silently reading a zero.
type Location struct {
	Lat          *float64 `json:"lat"`
	Lng          *float64 `json:"lng"`
	RadiusMeters float64  `json:"radius"`
}

type Query struct {
	Text     string    `json:"query"`
	Category string    `json:"category"`
	Location *Location `json:"location"`
	SortBy   string    `json:"sortBy"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
}

type Result struct {
	Products   []models.Product `json:"products"`
	Total      int32            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}

// Engine turns a Query into one deterministic, paginated product page.
// It holds no state beyond the database handle, so concurrent searches
// need no coordination.
type Engine struct {
	Db              *sql.DB
	DefaultPageSize int
}

func NewEngine(db *sql.DB, defaultPageSize int) *Engine {
	return &Engine{Db: db, DefaultPageSize: defaultPageSize}
}

func (e *Engine) Search(q Query) (Result, error) {
	q, err := e.normalize(q)
	if err != nil {
		return Result{}, err
	}

	filterQ, stms, distExpr := buildFilter(q)

	selectQ := `SELECT
			id, product_name, description, price, unit, category, location,
			latitude, longitude, rating, image, seller_id, created_at, updated_at`
	if distExpr != "" {
		selectQ += ", " + distExpr + " AS distance"
	}
	selectQ += " FROM products WHERE NOT deleted" + filterQ
	countQ := "SELECT COUNT(1) FROM products WHERE NOT deleted" + filterQ

	offset := (q.Page - 1) * q.PageSize
	pagination := fmt.Sprintf(" LIMIT %d OFFSET %d", q.PageSize, offset)
	orderVal := orderBy(q.SortBy)

	products, err := e.queryProducts(selectQ+orderVal+pagination, stms, distExpr != "")
	if err != nil {
		return Result{}, err
	}

	var total int32
	if err := e.Db.QueryRow(countQ, stms...).Scan(&total); err != nil {
		log.Println(err)
		return Result{}, err
	}

	return Result{
		Products:   products,
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(q.PageSize))),
	}, nil
}

func (e *Engine) normalize(q Query) (Query, error) {
	if q.SortBy == "" {
		q.SortBy = SortRelevance
	}

	valid := false
	for _, opt := range sortOptions {
		if q.SortBy == opt {
			valid = true
			break
		}
	}
	if !valid {
		return q, ErrInvalidSort
	}

	if loc := q.Location; loc != nil {
		if loc.Lat == nil || loc.Lng == nil {
			return q, ErrIncompleteLocation
		}
		if *loc.Lat < -90 || *loc.Lat > 90 || *loc.Lng < -180 || *loc.Lng > 180 {
			return q, ErrInvalidCoordinates
		}
		if loc.RadiusMeters <= 0 {
			loc.RadiusMeters = DefaultRadiusMeters
		}
	}

	if q.SortBy == SortDistance && q.Location == nil {
		return q, ErrDistanceSort
	}

	if q.Page < 1 {
		q.Page = 1
	}

	if q.PageSize < 1 {
		q.PageSize = e.DefaultPageSize
	}

	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}

	return q, nil
}

func buildFilter(q Query) (filterQ string, stms []interface{}, distExpr string) {
	if q.Text != "" {
		filterQ += fmt.Sprintf(" AND product_name ILIKE $%d", len(stms)+1)
		stms = append(stms, "%"+q.Text+"%")
	}

	if q.Category != "" {
		filterQ += fmt.Sprintf(" AND category = $%d", len(stms)+1)
		stms = append(stms, q.Category)
	}

	if q.Location != nil {
		latIdx := len(stms) + 1
		stms = append(stms, *q.Location.Lat)
		lngIdx := len(stms) + 1
		stms = append(stms, *q.Location.Lng)

		distExpr = haversineExpr(latIdx, lngIdx)

		filterQ += " AND latitude IS NOT NULL AND longitude IS NOT NULL"
		filterQ += fmt.Sprintf(" AND %s <= $%d", distExpr, len(stms)+1)
		stms = append(stms, q.Location.RadiusMeters)
	}

	return
}

// haversineExpr renders the great-circle distance in meters between the
// reference point and the row's coordinates. 12742000 is the Earth's
// diameter in meters.
func haversineExpr(latIdx, lngIdx int) string {
	return fmt.Sprintf(
		"(12742000 * asin(sqrt(pow(sin((radians(latitude) - radians($%d)) / 2), 2)"+
			" + cos(radians($%d)) * cos(radians(latitude))"+
			" * pow(sin((radians(longitude) - radians($%d)) / 2), 2))))",
		latIdx, latIdx, lngIdx)
}

// orderBy maps a validated sort option onto an ORDER BY clause. Ties are
// always broken by id so identical queries return identical pages.
func orderBy(sortBy string) string {
	switch sortBy {
	case SortPriceLow:
		return " ORDER BY price ASC, id ASC"
	case SortPriceHigh:
		return " ORDER BY price DESC, id ASC"
	case SortRating:
		return " ORDER BY rating DESC NULLS LAST, id ASC"
	case SortDistance:
		return " ORDER BY distance ASC, id ASC"
	default:
		// relevance: ILIKE carries no rank, newest listings first
		return " ORDER BY created_at DESC, id ASC"
	}
}

func (e *Engine) queryProducts(q string, stms []interface{}, withDistance bool) ([]models.Product, error) {
	rows, err := e.Db.Query(q, stms...)
	if err != nil {
		log.Println(err)
		return nil, err
	}

	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var product models.Product
		var description, unit, category, location, image sql.NullString
		var latitude, longitude, rating, distance sql.NullFloat64

		dest := []interface{}{
			&product.Id, &product.ProductName, &description, &product.Price,
			&unit, &category, &location, &latitude, &longitude, &rating,
			&image, &product.SellerId, &product.CreatedAt, &product.UpdatedAt,
		}
		if withDistance {
			dest = append(dest, &distance)
		}

		if err := rows.Scan(dest...); err != nil {
			log.Println(err)
			return nil, err
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
		if distance.Valid {
			product.Distance = &distance.Float64
		}

		products = append(products, product)
	}

	return products, rows.Err()
}
