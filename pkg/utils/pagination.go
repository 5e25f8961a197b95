package utils

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const DefaultPageSize = 20

type PaginationParams struct {
	Page   int
	Limit  int
	Offset int
}

func NewPagination(page, limit int) PaginationParams {
	if page < 1 {
		page = 1
	}
	return PaginationParams{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// ParsePagination reads page and pageSize from the query string. The page
// size is passed through unclamped so the caller can reject it; a value that
// is present but not an integer is an error.
func ParsePagination(c *fiber.Ctx) (PaginationParams, error) {
	page, err := parseIntDefault("page", c.Query("page"), 1)
	if err != nil {
		return PaginationParams{}, err
	}
	limit, err := parseIntDefault("pageSize", c.Query("pageSize"), DefaultPageSize)
	if err != nil {
		return PaginationParams{}, err
	}
	return NewPagination(page, limit), nil
}

func ApplyPagination(db *gorm.DB, p PaginationParams) *gorm.DB {
	return db.Offset(p.Offset).Limit(p.Limit)
}

func parseIntDefault(name, value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return parsed, nil
}
