package persistence

import "time"

// User is one registered account with its declared allergen profile.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Allergies    []string  `json:"allergies"`
	CreatedAt    time.Time `json:"created_at"`
}

// ScanRecord is one stored label scan.
type ScanRecord struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	ProductName string    `json:"product_name"`
	RawText     string    `json:"raw_text"`
	Detected    []string  `json:"detected"`
	CreatedAt   time.Time `json:"created_at"`
}

// FeedbackEntry is a user-reported reaction to a product.
type FeedbackEntry struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	ProductName string    `json:"product_name"`
	Reaction    string    `json:"reaction"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProductFeedbackCount aggregates feedback volume per product.
type ProductFeedbackCount struct {
	ProductName string `json:"product_name"`
	Count       int    `json:"count"`
}

// HarmfulIngredient is an ingredient that lowers the health score by Weight
// points when present.
type HarmfulIngredient struct {
	Ingredient string `json:"ingredient"`
	Weight     int    `json:"weight"`
}

// PredictiveRule links a food-item name to an allergen it commonly carries.
type PredictiveRule struct {
	FoodItem string `json:"food_item"`
	Allergen string `json:"possible_allergen"`
}

// Product is a barcode-indexed product with its ingredient list.
type Product struct {
	Barcode     string `json:"barcode"`
	Name        string `json:"name"`
	Ingredients string `json:"ingredients"`
}
