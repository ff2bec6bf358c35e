package models

// OrderStatus константы статусов заказов.
// Последовательность статусов ведёт внешний процесс оформления;
// escrow и споры её не проверяют.
const (
	OrderStatusPending   = "pending"
	OrderStatusAccepted  = "accepted"
	OrderStatusPaid      = "paid"
	OrderStatusCompleted = "completed"
	OrderStatusCanceled  = "canceled"
)

// OrderType константы типов заказов.
const (
	OrderTypeRental = "rental"
	OrderTypeHiring = "hiring"
	OrderTypeSale   = "sale"
)

// UserRole константы ролей пользователей.
const (
	RoleSeeker   = "seeker"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
)

// ListingCategory константы категорий объявлений.
const (
	ListingCategoryEquipment = "equipment"
	ListingCategoryLabor     = "labor"
	ListingCategoryProduce   = "produce"
)

// ValidOrderStatuses список валидных статусов заказов.
var ValidOrderStatuses = map[string]struct{}{
	OrderStatusPending:   {},
	OrderStatusAccepted:  {},
	OrderStatusPaid:      {},
	OrderStatusCompleted: {},
	OrderStatusCanceled:  {},
}

// ValidOrderTypes список валидных типов заказов.
var ValidOrderTypes = map[string]struct{}{
	OrderTypeRental: {},
	OrderTypeHiring: {},
	OrderTypeSale:   {},
}

// ValidListingCategories список валидных категорий объявлений.
var ValidListingCategories = map[string]struct{}{
	ListingCategoryEquipment: {},
	ListingCategoryLabor:     {},
	ListingCategoryProduce:   {},
}
