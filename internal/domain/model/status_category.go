package model

import "strings"

// 表示用の分類（バッジの色など）。
type StatusCategory string

const (
	StatusCategorySuccess StatusCategory = "success"
	StatusCategoryActive  StatusCategory = "active"
	StatusCategoryPending StatusCategory = "pending"
	StatusCategoryError   StatusCategory = "error"
	StatusCategoryNeutral StatusCategory = "neutral"
)

// ClassifyStatus maps any status string to a presentation category.
// Unknown input is neutral; the function never fails.
func ClassifyStatus(status string) StatusCategory {
	s := strings.ToLower(strings.TrimSpace(status))

	switch s {
	case "delivered":
		return StatusCategorySuccess
	case "in transit", "out for delivery":
		return StatusCategoryActive
	case "processing", "order received":
		return StatusCategoryPending
	case "delayed", "exception":
		return StatusCategoryError
	}

	// "In Transit (International)" などの派生
	if strings.HasPrefix(s, "in transit (") {
		return StatusCategoryActive
	}
	return StatusCategoryNeutral
}
