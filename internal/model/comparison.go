package model

import "github.com/google/uuid"

// ComparisonScores holds the similarity metrics between two images.
// CORREL, CHISQR, INTERSECT and BHATTACHARYYA are computed over normalized
// grayscale histograms; MSE, PSNR and SSIM over the raw pixels.
type ComparisonScores struct {
	Correlation   float64 `json:"CORREL"`
	ChiSquare     float64 `json:"CHISQR"`
	Intersection  float64 `json:"INTERSECT"`
	Bhattacharyya float64 `json:"BHATTACHARYYA"`
	MSE           float64 `json:"MSE"`
	PSNR          float64 `json:"PSNR"`
	SSIM          float64 `json:"SSIM"`
}

// ComparisonResult is the outcome of comparing two images: the pixel-level
// scores plus flags describing whether the declared metadata differed.
// Immutable once computed.
type ComparisonResult struct {
	FirstImageID    uuid.UUID        `json:"first_image_id"`
	SecondImageID   uuid.UUID        `json:"second_image_id"`
	Scores          ComparisonScores `json:"scores"`
	DifferentNames  bool             `json:"different_names"`
	DifferentWidth  bool             `json:"different_width"`
	DifferentHeight bool             `json:"different_height"`
}
