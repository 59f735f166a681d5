package models

import "time"

type ProductList struct {
	Products []Product `json:"products"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
	Total    int32     `json:"total"`
}

type Product struct {
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Id          string    `json:"id"`
	ProductName string    `json:"product_name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Unit        string    `json:"unit,omitempty"`
	Category    string    `json:"category,omitempty"`
	Location    string    `json:"location,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Rating      *float64  `json:"rating,omitempty"`
	Image       string    `json:"image,omitempty"`
	SellerId    string    `json:"seller_id"`
	// Distance is derived per request, never stored. Set only when the
	// search carried a reference location.
	Distance *float64 `json:"distance,omitempty"`
}
