package repo

import "gorm.io/gorm"

// GormRepo is the credential store handle shared by the service layer.
// Each method is a single store call; no cross-call transactions.
type GormRepo struct {
	DB *gorm.DB
}
