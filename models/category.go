package models

type CategoryList struct {
	Categories []CategoryCount `json:"categories"`
}

type CategoryCount struct {
	Name  string `json:"name"`
	Total int32  `json:"total"`
}
